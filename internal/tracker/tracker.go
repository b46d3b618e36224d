// Package tracker 位置闹钟的地理围栏跟踪：全部启用的位置闹钟共享一个
// OS 级位置监听，每次位置更新逐个评估进出围栏的状态翻转（滞回触发）。
package tracker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"waketime/internal/config"
	"waketime/internal/models"
	"waketime/internal/platform"

	"go.uber.org/zap"
)

// ErrPermissionDenied 前台定位权限被拒：跟踪不得启动，错误必须上抛给调用方
var ErrPermissionDenied = errors.New("foreground location permission denied")

// trackedAlarm 单个被跟踪闹钟的会话状态
type trackedAlarm struct {
	alarm *models.Alarm
	// wasInRange 注册时一律从 false 起步：即使设备已经在围栏内，
	// 触发也要求观察到一次状态翻转，避免应用重启在目标附近时误触发
	wasInRange bool
	// triggered 置位后在本跟踪会话内抑制再次触发，
	// 直到整组重新注册（任意闹钟 CRUD）或跟踪停止才清除
	triggered bool
	status    models.LocationAlarmStatus
}

// Tracker 地理围栏跟踪器。进程内仅此一份监听，由 store 持有（构造注入，非全局单例）。
type Tracker struct {
	config *config.Config
	geo    platform.GeoPlatform
	logger *zap.Logger

	mu      sync.Mutex
	tracked map[string]*trackedAlarm
	sub     platform.Subscription

	triggers chan models.TriggerEvent
}

// NewTracker 创建地理围栏跟踪器
func NewTracker(cfg *config.Config, geo platform.GeoPlatform, logger *zap.Logger) *Tracker {
	return &Tracker{
		config:   cfg,
		geo:      geo,
		logger:   logger,
		tracked:  make(map[string]*trackedAlarm),
		triggers: make(chan models.TriggerEvent, cfg.Tracker.TriggerBuffer),
	}
}

// Triggers 触发事件通道（store 消费）
func (t *Tracker) Triggers() <-chan models.TriggerEvent {
	return t.triggers
}

// ReplaceAll 用当前启用的位置闹钟全集重建跟踪状态（全量重置：
// 清空所有 wasInRange/triggered，成员变化后过期的已触发标记不得抑制重新加入的闹钟）。
// 集合为空时释放监听；首个非空集合建立监听，前台权限被拒则返回 ErrPermissionDenied。
func (t *Tracker) ReplaceAll(ctx context.Context, alarms []*models.Alarm) error {
	fresh := make(map[string]*trackedAlarm)
	for _, alarm := range alarms {
		if alarm.Type != models.AlarmTypeLocation || alarm.Location == nil || !alarm.IsEnabled {
			continue
		}
		dup := alarm.Clone()
		fresh[alarm.ID] = &trackedAlarm{
			alarm:  dup,
			status: models.LocationAlarmStatus{AlarmID: alarm.ID},
		}
	}

	if len(fresh) == 0 {
		t.Stop()
		return nil
	}

	t.mu.Lock()
	watching := t.sub != nil
	t.mu.Unlock()

	if !watching {
		// 权限请求可能弹出系统对话框，不持锁等待
		granted, err := t.geo.RequestForegroundPermission(ctx)
		if err != nil {
			return err
		}
		if !granted {
			return ErrPermissionDenied
		}

		background, err := t.geo.RequestBackgroundPermission(ctx)
		if err != nil || !background {
			// 后台权限是建议性的：缺失只记日志，前台模式继续跟踪
			t.logger.Warn("Background location permission not granted, tracking in foreground only",
				zap.Error(err),
			)
		}

		sub, err := t.geo.WatchPosition(ctx, platform.WatchOptions{
			IntervalSeconds: t.config.Tracker.WatchIntervalSeconds,
			HighAccuracy:    t.config.Tracker.HighAccuracy,
		}, t.onPosition)
		if err != nil {
			return err
		}

		t.mu.Lock()
		t.sub = sub
		t.tracked = fresh
		t.mu.Unlock()

		t.logger.Info("Location tracking started",
			zap.Int("alarm_count", len(fresh)),
		)
		return nil
	}

	t.mu.Lock()
	t.tracked = fresh
	t.mu.Unlock()

	t.logger.Debug("Location tracking set replaced",
		zap.Int("alarm_count", len(fresh)),
	)
	return nil
}

// Stop 停止跟踪：释放监听并清空所有会话状态
func (t *Tracker) Stop() {
	t.mu.Lock()
	sub := t.sub
	t.sub = nil
	t.tracked = make(map[string]*trackedAlarm)
	t.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
		t.logger.Info("Location tracking stopped")
	}
}

// Statuses 返回所有被跟踪闹钟的实时状态快照（按闹钟ID排序）
func (t *Tracker) Statuses() []models.LocationAlarmStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.LocationAlarmStatus, 0, len(t.tracked))
	for _, ta := range t.tracked {
		out = append(out, ta.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AlarmID < out[j].AlarmID })
	return out
}

// onPosition 位置监听回调：逐个闹钟评估围栏状态。
// 单个闹钟的异常只记日志，绝不打断共享监听循环里其余闹钟的评估。
func (t *Tracker) onPosition(pos models.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, ta := range t.tracked {
		t.evaluate(id, ta, pos)
	}
}

// evaluate 评估单个闹钟的一次位置更新
func (t *Tracker) evaluate(id string, ta *trackedAlarm, pos models.Position) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Panic evaluating location alarm",
				zap.String("alarm_id", id),
				zap.Any("panic", r),
			)
		}
	}()

	spec := ta.alarm.Location
	distance := HaversineMeters(pos.Coordinates, spec.Target.Coordinates)
	isInRange := distance <= spec.RadiusMeters

	p := pos
	ta.status = models.LocationAlarmStatus{
		AlarmID:      id,
		LastPosition: &p,
		IsInRange:    isInRange,
		DistanceM:    distance,
	}

	var shouldTrigger bool
	if spec.ArrivalTrigger {
		shouldTrigger = !ta.wasInRange && isInRange // 进入围栏
	} else {
		shouldTrigger = ta.wasInRange && !isInRange // 离开围栏
	}

	if shouldTrigger && !ta.triggered {
		ta.triggered = true
		event := models.TriggerEvent{
			AlarmID:   id,
			DistanceM: distance,
			Arrival:   spec.ArrivalTrigger,
			At:        time.Now(),
		}
		select {
		case t.triggers <- event:
			t.logger.Info("Location alarm triggered",
				zap.String("alarm_id", id),
				zap.Float64("distance_m", distance),
				zap.Bool("arrival", spec.ArrivalTrigger),
			)
		default:
			// 通道满时丢弃事件而不是阻塞监听回调
			t.logger.Warn("Trigger channel full, dropping event",
				zap.String("alarm_id", id),
			)
		}
	}

	ta.wasInRange = isInRange
}
