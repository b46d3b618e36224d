package scheduler

import (
	"context"
	"fmt"
	"time"

	"waketime/internal/clock"
	"waketime/internal/models"

	"go.uber.org/zap"
)

// timeScheduler 定时闹钟策略：
// 无重复日 → 一条一次性通知（下一次触发时刻）；
// 有重复日 → 每个所选星期一条 OS 原生每周重复触发器（自续期，应用被杀后仍有效）。
type timeScheduler struct {
	parent *Scheduler
}

func (t *timeScheduler) schedule(ctx context.Context, alarm *models.Alarm, now time.Time) (Handles, error) {
	if alarm.Time == nil {
		return Handles{}, fmt.Errorf("alarm %s has no time alarm fields", alarm.ID)
	}
	spec := alarm.Time
	channel := t.parent.resolve(alarm)
	content := t.parent.contentFor(alarm, "alarm")

	if len(spec.RepeatDays) == 0 {
		fireAt, err := clock.NextFireTime(spec.TimeOfDay, nil, now)
		if err != nil {
			return Handles{}, err
		}
		handle, err := t.parent.notifier.ScheduleAt(ctx, fireAt, content, channel)
		if err != nil {
			return Handles{}, fmt.Errorf("failed to schedule time alarm: %w", err)
		}
		return Handles{NotificationIDs: []string{handle}}, nil
	}

	hour, minute, err := clock.ParseTimeOfDay(spec.TimeOfDay)
	if err != nil {
		return Handles{}, err
	}

	handles := Handles{NotificationIDs: make([]string, 0, len(spec.RepeatDays))}
	for _, day := range spec.RepeatDays {
		handle, err := t.parent.notifier.ScheduleWeekly(ctx, day, hour, minute, content, channel)
		if err != nil {
			// 部分成功的句柄回收，避免孤儿通知
			t.rollback(ctx, handles.NotificationIDs)
			return Handles{}, fmt.Errorf("failed to schedule weekly trigger for %s: %w", day, err)
		}
		handles.NotificationIDs = append(handles.NotificationIDs, handle)
	}
	return handles, nil
}

func (t *timeScheduler) rollback(ctx context.Context, handles []string) {
	for _, handle := range handles {
		if err := t.parent.notifier.Cancel(ctx, handle); err != nil {
			t.parent.logger.Warn("Failed to roll back notification handle",
				zap.String("handle", handle),
				zap.Error(err),
			)
		}
	}
}
