package models

import (
	"time"
)

// AlarmType 闹钟类型（tagged union 的判别字段）
type AlarmType string

const (
	AlarmTypeTime     AlarmType = "time_alarm"     // 定时闹钟
	AlarmTypeSleep    AlarmType = "sleep_alarm"    // 睡眠闹钟（就寝 + 起床）
	AlarmTypeLocation AlarmType = "location_alarm" // 位置闹钟（地理围栏）
)

// Valid 判断闹钟类型是否为已知值
func (t AlarmType) Valid() bool {
	switch t {
	case AlarmTypeTime, AlarmTypeSleep, AlarmTypeLocation:
		return true
	}
	return false
}

// Weekday 星期（0=Sunday ... 6=Saturday，与 time.Weekday 对齐）
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// String 返回星期的短名称
func (d Weekday) String() string {
	if d < Sunday || d > Saturday {
		return "???"
	}
	return weekdayNames[d]
}

// Valid 判断星期值是否在合法范围内
func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// RepeatType 位置闹钟的重复类型（目前仅作为数据保存，tracker 不感知星期）
type RepeatType string

const (
	RepeatOnce     RepeatType = "once"
	RepeatWeekdays RepeatType = "weekdays"
	RepeatEveryday RepeatType = "everyday"
	RepeatCustom   RepeatType = "custom"
)

// Valid 判断重复类型是否为已知值
func (r RepeatType) Valid() bool {
	switch r {
	case RepeatOnce, RepeatWeekdays, RepeatEveryday, RepeatCustom:
		return true
	}
	return false
}

// Sound 闹钟铃声引用
type Sound struct {
	Name      string `json:"name"`
	URI       string `json:"uri,omitempty"`
	IsDefault bool   `json:"is_default"`
}

// Coordinates 经纬度坐标（度）
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Position 设备位置（来自定位平台的回调）
type Position struct {
	Coordinates
	AccuracyM float64   `json:"accuracy_m,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TargetLocation 位置闹钟的目标地点
type TargetLocation struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
	ProviderID  string      `json:"provider_id,omitempty"` // 外部地图服务的地点ID（可选）
}

// TimeAlarmSpec 定时闹钟的变体字段
type TimeAlarmSpec struct {
	TimeOfDay               string    `json:"time"`        // "HH:MM"（24小时制）
	RepeatDays              []Weekday `json:"repeat_days"` // 空 = 只响一次
	DeleteAfterNotification bool      `json:"delete_after_notification"`
}

// SleepAlarmSpec 睡眠闹钟的变体字段（就寝通知 + 起床通知两条流）
type SleepAlarmSpec struct {
	Bedtime           string    `json:"bedtime"`      // "HH:MM"
	WakeUpTime        string    `json:"wake_up_time"` // "HH:MM"
	RepeatDays        []Weekday `json:"repeat_days"`
	GoalMinutes       *int      `json:"goal_minutes,omitempty"`
	GentleWakeMinutes *int      `json:"gentle_wake_minutes,omitempty"`
}

// LocationAlarmSpec 位置闹钟的变体字段
type LocationAlarmSpec struct {
	Target               TargetLocation `json:"target_location"`
	RadiusMeters         float64        `json:"radius_meters"`
	TimeBeforeArrivalMin *int           `json:"time_before_arrival,omitempty"` // 仅保存，tracker 不用它提前触发
	ArrivalTrigger       bool           `json:"arrival_trigger"`               // true=进入触发，false=离开触发
	RepeatType           RepeatType     `json:"repeat_type"`
}

// Alarm 闹钟实体（tagged union：Time/Sleep/Location 恰好一个非 nil）
type Alarm struct {
	ID            string    `json:"id"`
	Type          AlarmType `json:"type"`
	Label         string    `json:"label"`
	IsEnabled     bool      `json:"is_enabled"`
	Sound         Sound     `json:"sound"`
	Volume        float64   `json:"volume"` // [0,1]
	Vibrate       bool      `json:"vibrate"`
	SnoozeEnabled bool      `json:"snooze_enabled"`
	SnoozeMinutes int       `json:"snooze_duration"` // 分钟，>0
	MaxSnoozes    int       `json:"max_snooze_count"`

	// 调度句柄（由平台返回的不透明ID；未调度时为空。定时闹钟按重复日
	// 逐日建立每周触发器，所以是列表；一次性闹钟恰好一个元素）
	NotificationIDs        []string `json:"notification_ids,omitempty"`
	BedtimeNotificationIDs []string `json:"bedtime_notification_ids,omitempty"`
	WakeNotificationIDs    []string `json:"wake_notification_ids,omitempty"`

	Time     *TimeAlarmSpec     `json:"time_alarm,omitempty"`
	Sleep    *SleepAlarmSpec    `json:"sleep_alarm,omitempty"`
	Location *LocationAlarmSpec `json:"location_alarm,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasHandles 判断闹钟当前是否持有任何调度句柄
func (a *Alarm) HasHandles() bool {
	return len(a.NotificationIDs) > 0 ||
		len(a.BedtimeNotificationIDs) > 0 ||
		len(a.WakeNotificationIDs) > 0
}

// ClearHandles 清空所有调度句柄
func (a *Alarm) ClearHandles() {
	a.NotificationIDs = nil
	a.BedtimeNotificationIDs = nil
	a.WakeNotificationIDs = nil
}

// AllHandles 返回所有调度句柄（取消时逐个处理）
func (a *Alarm) AllHandles() []string {
	out := make([]string, 0, len(a.NotificationIDs)+len(a.BedtimeNotificationIDs)+len(a.WakeNotificationIDs))
	out = append(out, a.NotificationIDs...)
	out = append(out, a.BedtimeNotificationIDs...)
	out = append(out, a.WakeNotificationIDs...)
	return out
}

// Clone 深拷贝闹钟（store 对外只暴露副本，避免外部直接改内部状态）
func (a *Alarm) Clone() *Alarm {
	dup := *a
	dup.NotificationIDs = append([]string(nil), a.NotificationIDs...)
	dup.BedtimeNotificationIDs = append([]string(nil), a.BedtimeNotificationIDs...)
	dup.WakeNotificationIDs = append([]string(nil), a.WakeNotificationIDs...)
	if a.Time != nil {
		t := *a.Time
		t.RepeatDays = append([]Weekday(nil), a.Time.RepeatDays...)
		dup.Time = &t
	}
	if a.Sleep != nil {
		s := *a.Sleep
		s.RepeatDays = append([]Weekday(nil), a.Sleep.RepeatDays...)
		if a.Sleep.GoalMinutes != nil {
			g := *a.Sleep.GoalMinutes
			s.GoalMinutes = &g
		}
		if a.Sleep.GentleWakeMinutes != nil {
			g := *a.Sleep.GentleWakeMinutes
			s.GentleWakeMinutes = &g
		}
		dup.Sleep = &s
	}
	if a.Location != nil {
		l := *a.Location
		if a.Location.TimeBeforeArrivalMin != nil {
			m := *a.Location.TimeBeforeArrivalMin
			l.TimeBeforeArrivalMin = &m
		}
		dup.Location = &l
	}
	return &dup
}
