// Package clock 纯时间计算：把 (HH:MM, 重复星期集合) 换算成下一次触发的绝对时间。
// 所有函数都以显式的 now 参数工作，不读系统时钟，便于测试。
package clock

import (
	"fmt"
	"time"

	"waketime/internal/models"
)

// ParseTimeOfDay 解析 "HH:MM"（24小时制，两位数字），返回小时和分钟
func ParseTimeOfDay(s string) (int, int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	var hour, minute int
	for _, c := range []byte(s[:2]) {
		if c < '0' || c > '9' {
			return 0, 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
		}
		hour = hour*10 + int(c-'0')
	}
	for _, c := range []byte(s[3:]) {
		if c < '0' || c > '9' {
			return 0, 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
		}
		minute = minute*10 + int(c-'0')
	}
	if hour > 23 {
		return 0, 0, fmt.Errorf("invalid time of day %q: hour out of range", s)
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q: minute out of range", s)
	}
	return hour, minute, nil
}

// NextFireTime 计算下一次触发时间（严格晚于 now）。
// repeatDays 为空：今天的 HH:MM，已过则顺延到明天。
// repeatDays 非空：在所选星期中取最早的下一次（当天未过也算）。
func NextFireTime(timeOfDay string, repeatDays []models.Weekday, now time.Time) (time.Time, error) {
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())

	if len(repeatDays) == 0 {
		if !today.After(now) {
			return today.AddDate(0, 0, 1), nil
		}
		return today, nil
	}

	var best time.Time
	for _, day := range repeatDays {
		if !day.Valid() {
			return time.Time{}, fmt.Errorf("invalid repeat day %d", day)
		}
		cand := nextWeekdayOccurrence(today, now, day)
		if best.IsZero() || cand.Before(best) {
			best = cand
		}
	}
	return best, nil
}

// NextWakeFireTime 计算睡眠闹钟起床通知的下一次触发时间。
// 当起床时间在一天内数值上早于就寝时间（跨午夜，如 bed 23:00 / wake 07:00）时，
// 每个重复日的起床触发都落在该日的下一个星期，保证同一天内起床不会先于就寝响。
func NextWakeFireTime(bedtime, wakeUpTime string, repeatDays []models.Weekday, now time.Time) (time.Time, error) {
	crosses, err := WakeCrossesMidnight(bedtime, wakeUpTime)
	if err != nil {
		return time.Time{}, err
	}
	if !crosses {
		return NextFireTime(wakeUpTime, repeatDays, now)
	}

	hour, minute, err := ParseTimeOfDay(wakeUpTime)
	if err != nil {
		return time.Time{}, err
	}

	if len(repeatDays) == 0 {
		// 一次性：起床落在就寝触发的次日
		bedFire, err := NextFireTime(bedtime, nil, now)
		if err != nil {
			return time.Time{}, err
		}
		wake := bedFire.AddDate(0, 0, 1)
		return time.Date(wake.Year(), wake.Month(), wake.Day(), hour, minute, 0, 0, wake.Location()), nil
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	var best time.Time
	for _, day := range repeatDays {
		if !day.Valid() {
			return time.Time{}, fmt.Errorf("invalid repeat day %d", day)
		}
		shifted := models.Weekday((int(day) + 1) % 7)
		cand := nextWeekdayOccurrence(today, now, shifted)
		if best.IsZero() || cand.Before(best) {
			best = cand
		}
	}
	return best, nil
}

// WakeCrossesMidnight 判断起床时间是否跨到就寝时间的次日
func WakeCrossesMidnight(bedtime, wakeUpTime string) (bool, error) {
	bedHour, bedMinute, err := ParseTimeOfDay(bedtime)
	if err != nil {
		return false, err
	}
	wakeHour, wakeMinute, err := ParseTimeOfDay(wakeUpTime)
	if err != nil {
		return false, err
	}
	return wakeHour*60+wakeMinute < bedHour*60+bedMinute, nil
}

// SleepDuration 计算一晚的睡眠时长（就寝到起床，跨午夜自动进位）
func SleepDuration(bedtime, wakeUpTime string) (time.Duration, error) {
	bedHour, bedMinute, err := ParseTimeOfDay(bedtime)
	if err != nil {
		return 0, err
	}
	wakeHour, wakeMinute, err := ParseTimeOfDay(wakeUpTime)
	if err != nil {
		return 0, err
	}
	minutes := (wakeHour*60 + wakeMinute) - (bedHour*60 + bedMinute)
	if minutes < 0 {
		minutes += 24 * 60
	}
	return time.Duration(minutes) * time.Minute, nil
}

// nextWeekdayOccurrence 给定今天 HH:MM 的基准时间，返回 day 对应星期的下一次出现
// （严格晚于 now；当天时刻未过也算当天）
func nextWeekdayOccurrence(todayAt, now time.Time, day models.Weekday) time.Time {
	daysAhead := (int(day) - int(now.Weekday()) + 7) % 7
	cand := todayAt.AddDate(0, 0, daysAhead)
	if !cand.After(now) {
		cand = cand.AddDate(0, 0, 7)
	}
	return cand
}
