package models

import "time"

// ActiveAlarmState 当前响铃状态快照（进程级单例，重启后重置，不持久化）
type ActiveAlarmState struct {
	ActiveAlarmID string `json:"active_alarm_id,omitempty"` // 空 = Idle
	IsPlaying     bool   `json:"is_playing"`
	IsSnoozed     bool   `json:"is_snoozed"`
	SnoozeCount   int    `json:"snooze_count"`
}

// LocationAlarmStatus 位置闹钟的实时状态（派生数据，每次位置更新重算，不持久化）
type LocationAlarmStatus struct {
	AlarmID      string    `json:"alarm_id"`
	LastPosition *Position `json:"last_position,omitempty"`
	IsInRange    bool      `json:"is_in_range"`
	DistanceM    float64   `json:"distance_m"`
}

// SleepSummary 睡眠目标对比（由 goal_minutes 与就寝/起床间隔派生）
type SleepSummary struct {
	NightlyMinutes int  `json:"nightly_minutes"`
	GoalMinutes    *int `json:"goal_minutes,omitempty"`
	GoalMet        bool `json:"goal_met"`
	DeficitMinutes int  `json:"deficit_minutes"` // 未达标时缺口分钟数，达标为 0
}

// TriggerEvent 位置闹钟触发事件（tracker 发出，store 消费）
type TriggerEvent struct {
	AlarmID   string    `json:"alarm_id"`
	DistanceM float64   `json:"distance_m"`
	Arrival   bool      `json:"arrival"` // true=进入围栏触发，false=离开触发
	At        time.Time `json:"at"`
}
