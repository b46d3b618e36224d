package models

// AlarmPayload 创建/更新闹钟的用户输入（部分字段，builder 负责补默认值和校验）
type AlarmPayload struct {
	Type          AlarmType `json:"type"`
	Label         string    `json:"label"`
	IsEnabled     *bool     `json:"is_enabled,omitempty"`
	Sound         *Sound    `json:"sound,omitempty"`
	Volume        *float64  `json:"volume,omitempty"`
	Vibrate       *bool     `json:"vibrate,omitempty"`
	SnoozeEnabled *bool     `json:"snooze_enabled,omitempty"`
	SnoozeMinutes *int      `json:"snooze_duration,omitempty"`
	MaxSnoozes    *int      `json:"max_snooze_count,omitempty"`

	Time     *TimeAlarmSpec     `json:"time_alarm,omitempty"`
	Sleep    *SleepAlarmSpec    `json:"sleep_alarm,omitempty"`
	Location *LocationAlarmSpec `json:"location_alarm,omitempty"`
}
