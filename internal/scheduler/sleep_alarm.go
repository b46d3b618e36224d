package scheduler

import (
	"context"
	"fmt"
	"time"

	"waketime/internal/clock"
	"waketime/internal/models"
)

// sleepScheduler 睡眠闹钟策略：就寝和起床各一条通知流。
// 起床时间跨午夜时（wake 的分钟数小于 bedtime），每个重复日的起床触发
// 顺延到下一个星期，保证同一天内起床不会先于就寝。
// 两条流的句柄分开返回，只改起床时间时可以单独取消起床流。
type sleepScheduler struct {
	parent *Scheduler
}

func (s *sleepScheduler) schedule(ctx context.Context, alarm *models.Alarm, now time.Time) (Handles, error) {
	if alarm.Sleep == nil {
		return Handles{}, fmt.Errorf("alarm %s has no sleep alarm fields", alarm.ID)
	}
	spec := alarm.Sleep
	channel := s.parent.resolve(alarm)
	bedContent := s.parent.contentFor(alarm, "bedtime")
	wakeContent := s.parent.contentFor(alarm, "wake")

	crosses, err := clock.WakeCrossesMidnight(spec.Bedtime, spec.WakeUpTime)
	if err != nil {
		return Handles{}, err
	}

	var handles Handles
	fail := func(err error) (Handles, error) {
		s.rollback(ctx, handles)
		return Handles{}, err
	}

	if len(spec.RepeatDays) == 0 {
		bedAt, err := clock.NextFireTime(spec.Bedtime, nil, now)
		if err != nil {
			return Handles{}, err
		}
		wakeAt, err := clock.NextWakeFireTime(spec.Bedtime, spec.WakeUpTime, nil, now)
		if err != nil {
			return Handles{}, err
		}

		bedHandle, err := s.parent.notifier.ScheduleAt(ctx, bedAt, bedContent, channel)
		if err != nil {
			return fail(fmt.Errorf("failed to schedule bedtime notification: %w", err))
		}
		handles.BedtimeIDs = append(handles.BedtimeIDs, bedHandle)

		wakeHandle, err := s.parent.notifier.ScheduleAt(ctx, wakeAt, wakeContent, channel)
		if err != nil {
			return fail(fmt.Errorf("failed to schedule wake notification: %w", err))
		}
		handles.WakeIDs = append(handles.WakeIDs, wakeHandle)
		return handles, nil
	}

	bedHour, bedMinute, err := clock.ParseTimeOfDay(spec.Bedtime)
	if err != nil {
		return Handles{}, err
	}
	wakeHour, wakeMinute, err := clock.ParseTimeOfDay(spec.WakeUpTime)
	if err != nil {
		return Handles{}, err
	}

	for _, day := range spec.RepeatDays {
		bedHandle, err := s.parent.notifier.ScheduleWeekly(ctx, day, bedHour, bedMinute, bedContent, channel)
		if err != nil {
			return fail(fmt.Errorf("failed to schedule weekly bedtime for %s: %w", day, err))
		}
		handles.BedtimeIDs = append(handles.BedtimeIDs, bedHandle)

		wakeDay := day
		if crosses {
			wakeDay = models.Weekday((int(day) + 1) % 7)
		}
		wakeHandle, err := s.parent.notifier.ScheduleWeekly(ctx, wakeDay, wakeHour, wakeMinute, wakeContent, channel)
		if err != nil {
			return fail(fmt.Errorf("failed to schedule weekly wake for %s: %w", wakeDay, err))
		}
		handles.WakeIDs = append(handles.WakeIDs, wakeHandle)
	}
	return handles, nil
}

func (s *sleepScheduler) rollback(ctx context.Context, handles Handles) {
	for _, handle := range append(handles.BedtimeIDs, handles.WakeIDs...) {
		_ = s.parent.notifier.Cancel(ctx, handle)
	}
}
