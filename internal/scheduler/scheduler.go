// Package scheduler 把闹钟实体换算成平台通知请求：按变体分派到对应策略，
// 并负责显式、幂等的取消。
package scheduler

import (
	"context"
	"fmt"
	"time"

	"waketime/internal/config"
	"waketime/internal/models"
	"waketime/internal/platform"

	"go.uber.org/zap"
)

// Handles 一次调度产生的平台句柄集合
type Handles struct {
	NotificationIDs []string // 定时闹钟（一次性恰好一个；按重复日每日一个）
	BedtimeIDs      []string // 睡眠闹钟就寝流
	WakeIDs         []string // 睡眠闹钟起床流
}

// Empty 判断句柄集合是否为空
func (h Handles) Empty() bool {
	return len(h.NotificationIDs) == 0 && len(h.BedtimeIDs) == 0 && len(h.WakeIDs) == 0
}

// ChannelResolver 把闹钟解析成通知渠道描述（渠道/重要级选择在引擎之外完成）
type ChannelResolver func(alarm *models.Alarm) platform.ChannelDescriptor

// DefaultChannelResolver 默认渠道解析：固定 alarm 渠道，铃声取闹钟配置
func DefaultChannelResolver(alarm *models.Alarm) platform.ChannelDescriptor {
	return platform.ChannelDescriptor{
		ID:         "alarm",
		SoundName:  alarm.Sound.Name,
		Importance: "max",
	}
}

// Scheduler 通知调度器（按闹钟变体分派策略）
type Scheduler struct {
	config   *config.Config
	notifier platform.NotificationPlatform
	resolve  ChannelResolver
	logger   *zap.Logger

	// 变体策略
	timeAlarm     *timeScheduler
	sleepAlarm    *sleepScheduler
	locationAlarm *locationScheduler
}

// NewScheduler 创建通知调度器
func NewScheduler(
	cfg *config.Config,
	notifier platform.NotificationPlatform,
	resolve ChannelResolver,
	logger *zap.Logger,
) *Scheduler {
	if resolve == nil {
		resolve = DefaultChannelResolver
	}
	s := &Scheduler{
		config:   cfg,
		notifier: notifier,
		resolve:  resolve,
		logger:   logger,
	}
	s.timeAlarm = &timeScheduler{parent: s}
	s.sleepAlarm = &sleepScheduler{parent: s}
	s.locationAlarm = &locationScheduler{parent: s}
	return s
}

// Schedule 为闹钟建立平台通知，返回新句柄。
// 调用方（store）保证执行前已取消旧句柄（cancel-then-create）。
func (s *Scheduler) Schedule(ctx context.Context, alarm *models.Alarm, now time.Time) (Handles, error) {
	switch alarm.Type {
	case models.AlarmTypeTime:
		return s.timeAlarm.schedule(ctx, alarm, now)
	case models.AlarmTypeSleep:
		return s.sleepAlarm.schedule(ctx, alarm, now)
	case models.AlarmTypeLocation:
		return s.locationAlarm.schedule(ctx, alarm, now)
	default:
		return Handles{}, fmt.Errorf("unknown alarm type %q", alarm.Type)
	}
}

// Cancel 取消闹钟持有的全部句柄。幂等：未知/已触发的句柄不报错；
// 单个句柄取消失败只记日志，继续处理其余句柄。
func (s *Scheduler) Cancel(ctx context.Context, alarm *models.Alarm) {
	for _, handle := range alarm.AllHandles() {
		if err := s.notifier.Cancel(ctx, handle); err != nil {
			s.logger.Warn("Failed to cancel notification",
				zap.String("alarm_id", alarm.ID),
				zap.String("handle", handle),
				zap.Error(err),
			)
		}
	}
}

// FireNow 立即展示一条本地通知（位置闹钟触发时由 store 调用）
func (s *Scheduler) FireNow(ctx context.Context, alarm *models.Alarm) error {
	content := s.contentFor(alarm, "trigger")
	if err := s.notifier.Present(ctx, content, s.resolve(alarm)); err != nil {
		return fmt.Errorf("failed to present notification: %w", err)
	}
	return nil
}

// contentFor 构建通知内容，Data 负载用于把平台回调关联回闹钟
func (s *Scheduler) contentFor(alarm *models.Alarm, kind string) platform.NotificationContent {
	content := platform.NotificationContent{
		AlarmID:   alarm.ID,
		AlarmType: string(alarm.Type),
		Title:     alarm.Label,
		Data: map[string]string{
			"alarm_id": alarm.ID,
			"type":     string(alarm.Type),
			"kind":     kind,
		},
	}

	switch kind {
	case "bedtime":
		content.Body = "Time to get ready for bed"
	case "wake":
		content.Body = "Time to wake up"
		if alarm.Sleep != nil && alarm.Sleep.GentleWakeMinutes != nil {
			content.Data["gentle_wake_minutes"] = fmt.Sprintf("%d", *alarm.Sleep.GentleWakeMinutes)
		}
	case "trigger":
		if alarm.Location != nil {
			if alarm.Location.ArrivalTrigger {
				content.Body = fmt.Sprintf("You are arriving at %s", alarm.Location.Target.Name)
			} else {
				content.Body = fmt.Sprintf("You are leaving %s", alarm.Location.Target.Name)
			}
		}
	default:
		content.Body = "Alarm"
	}

	return content
}
