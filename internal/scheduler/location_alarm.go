package scheduler

import (
	"context"
	"fmt"
	"time"

	"waketime/internal/models"
)

// locationScheduler 位置闹钟策略：不向 OS 预约任何未来通知——
// 触发时刻由 tracker 的围栏判定决定，schedule 阶段没有可预约的时间点。
// 真正的通知在 store 收到触发事件后经 FireNow 立即展示。
type locationScheduler struct {
	parent *Scheduler
}

func (l *locationScheduler) schedule(_ context.Context, alarm *models.Alarm, _ time.Time) (Handles, error) {
	if alarm.Location == nil {
		return Handles{}, fmt.Errorf("alarm %s has no location alarm fields", alarm.ID)
	}
	// 位置闹钟的"调度"是 tracker 注册，句柄集合始终为空
	return Handles{}, nil
}
