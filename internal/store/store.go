// Package store 闹钟引擎的中枢状态机：持有闹钟集合与响铃/贪睡状态，
// 在每次 CRUD 上协调通知调度与位置跟踪（先拆旧、再装新），
// 并消费平台回调（通知点击、围栏触发）驱动响铃流转。
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"waketime/internal/builder"
	"waketime/internal/clock"
	"waketime/internal/config"
	"waketime/internal/models"
	"waketime/internal/platform"
	"waketime/internal/playback"
	"waketime/internal/repository"
	"waketime/internal/scheduler"
	"waketime/internal/tracker"

	"go.uber.org/zap"
)

var (
	// ErrAlarmNotFound 集合中没有该ID的闹钟
	ErrAlarmNotFound = errors.New("alarm not found")
	// ErrTypeChange 闹钟类型不允许变更（跨变体更新会让旧句柄按错误的变体拆除）
	ErrTypeChange = errors.New("alarm type cannot be changed")
)

// Store 闹钟存储/编排器。所有依赖构造注入，进程内恰好一份（由 cmd 持有）。
type Store struct {
	config    *config.Config
	logger    *zap.Logger
	repo      *repository.AlarmRepository
	builder   *builder.Builder
	scheduler *scheduler.Scheduler
	tracker   *tracker.Tracker
	driver    *playback.Driver

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu     sync.Mutex
	alarms []*models.Alarm

	// 响铃状态（进程级，重启不保留）
	active      models.ActiveAlarmState
	activeAlarm *models.Alarm
	snoozeTimer *time.Timer
	snoozeGen   int // 代号递增使过期的贪睡回调失效，防止复活已停止的闹钟
}

// NewStore 创建编排器并注册通知点击回调
func NewStore(
	cfg *config.Config,
	logger *zap.Logger,
	repo *repository.AlarmRepository,
	bld *builder.Builder,
	sched *scheduler.Scheduler,
	trk *tracker.Tracker,
	drv *playback.Driver,
	notifier platform.NotificationPlatform,
	now func() time.Time,
) *Store {
	if now == nil {
		now = time.Now
	}
	s := &Store{
		config:    cfg,
		logger:    logger,
		repo:      repo,
		builder:   bld,
		scheduler: sched,
		tracker:   trk,
		driver:    drv,
		now:       now,
		afterFunc: time.AfterFunc,
	}
	notifier.OnResponse(s.onNotificationResponse)
	return s
}

// Load 从持久化存储恢复闹钟集合并重建位置跟踪。
// OS 预约的通知在进程外存续，这里不重新调度；响铃状态一律从 Idle 开始。
func (s *Store) Load(ctx context.Context) error {
	alarms, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load alarm collection: %w", err)
	}

	s.mu.Lock()
	s.alarms = alarms
	locations := s.enabledLocationAlarmsLocked()
	s.mu.Unlock()

	s.logger.Info("Alarm collection loaded",
		zap.Int("alarm_count", len(alarms)),
	)

	if err := s.tracker.ReplaceAll(ctx, locations); err != nil {
		// 启动时权限未授予只降级记录，等用户下一次操作再试
		s.logger.Error("Failed to restore location tracking",
			zap.Error(err),
		)
	}
	return nil
}

// Run 消费围栏触发事件直到上下文取消
func (s *Store) Run(ctx context.Context) error {
	s.logger.Info("Alarm store started")
	for {
		select {
		case <-ctx.Done():
			s.StopAlarm()
			s.tracker.Stop()
			s.logger.Info("Alarm store stopped")
			return nil
		case event := <-s.tracker.Triggers():
			s.handleLocationTrigger(ctx, event)
		}
	}
}

// AddAlarm 校验、补默认值并新增闹钟；启用状态下随即建立通知/跟踪
func (s *Store) AddAlarm(ctx context.Context, payload *models.AlarmPayload) (*models.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.builder.Normalize(payload)
	if errs := s.builder.Validate(payload); errs != nil {
		return nil, errs
	}

	alarm, err := s.builder.Build(payload, s.now())
	if err != nil {
		return nil, err
	}

	if alarm.IsEnabled {
		s.scheduleLocked(ctx, alarm)
	}

	s.alarms = append(s.alarms, alarm)
	s.persistLocked(ctx)

	trackErr := s.refreshTrackingLocked(ctx)

	s.logger.Info("Alarm added",
		zap.String("alarm_id", alarm.ID),
		zap.String("type", string(alarm.Type)),
		zap.Bool("enabled", alarm.IsEnabled),
	)

	// 位置闹钟的跟踪启动失败（典型：权限被拒）要大声上抛，
	// 调用方必须明确提示，而不是装作在跟踪
	if trackErr != nil && alarm.Type == models.AlarmTypeLocation {
		return alarm.Clone(), trackErr
	}
	return alarm.Clone(), nil
}

// UpdateAlarm 更新闹钟：先按旧形态拆除调度，再合并字段、按新状态重建。
// 非法负载在任何拆除动作之前拒绝，绝不半套用。
func (s *Store) UpdateAlarm(ctx context.Context, id string, payload *models.AlarmPayload) (*models.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return nil, ErrAlarmNotFound
	}
	existing := s.alarms[idx]

	if payload.Type != "" && payload.Type != existing.Type {
		return nil, ErrTypeChange
	}
	if (payload.Time != nil && existing.Time == nil) ||
		(payload.Sleep != nil && existing.Sleep == nil) ||
		(payload.Location != nil && existing.Location == nil) {
		return nil, ErrTypeChange
	}

	merged := s.builder.Merge(existing, payload, s.now())
	if errs := s.builder.Validate(builder.PayloadOf(merged)); errs != nil {
		return nil, errs
	}

	// 先用旧形态拆干净，避免新旧通知同时存活
	s.scheduler.Cancel(ctx, existing)
	merged.ClearHandles()

	if merged.IsEnabled {
		s.scheduleLocked(ctx, merged)
	}

	s.alarms[idx] = merged
	s.persistLocked(ctx)

	trackErr := s.refreshTrackingLocked(ctx)

	s.logger.Info("Alarm updated",
		zap.String("alarm_id", id),
		zap.Bool("enabled", merged.IsEnabled),
	)

	if trackErr != nil && merged.Type == models.AlarmTypeLocation {
		return merged.Clone(), trackErr
	}
	return merged.Clone(), nil
}

// DeleteAlarm 删除闹钟：拆除调度、移出集合；正响铃的闹钟被删时停止响铃
func (s *Store) DeleteAlarm(ctx context.Context, id string) error {
	s.mu.Lock()

	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrAlarmNotFound
	}

	ringing := s.active.ActiveAlarmID == id
	s.removeLocked(ctx, idx)
	s.mu.Unlock()

	if ringing {
		s.StopAlarm()
	}
	return nil
}

// ToggleAlarm 翻转启用状态（updateAlarm 的语法糖）
func (s *Store) ToggleAlarm(ctx context.Context, id string) (*models.Alarm, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrAlarmNotFound
	}
	enabled := !s.alarms[idx].IsEnabled
	s.mu.Unlock()

	return s.UpdateAlarm(ctx, id, &models.AlarmPayload{IsEnabled: &enabled})
}

// Alarms 返回集合快照（深拷贝）
func (s *Store) Alarms() []*models.Alarm {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Alarm, len(s.alarms))
	for i, a := range s.alarms {
		out[i] = a.Clone()
	}
	return out
}

// GetAlarm 按ID取闹钟（深拷贝）
func (s *Store) GetAlarm(id string) (*models.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return nil, ErrAlarmNotFound
	}
	return s.alarms[idx].Clone(), nil
}

// TriggerAlarm 无条件进入响铃：清掉未决的贪睡计时器，贪睡预算归零
// （重新触发——比如用户点了新到的通知——总是重置预算）
func (s *Store) TriggerAlarm(alarm *models.Alarm) {
	s.mu.Lock()
	s.cancelSnoozeLocked()
	s.activeAlarm = alarm.Clone()
	s.active = models.ActiveAlarmState{
		ActiveAlarmID: alarm.ID,
		IsPlaying:     true,
	}
	s.mu.Unlock()

	s.logger.Info("Alarm ringing",
		zap.String("alarm_id", alarm.ID),
		zap.String("label", alarm.Label),
	)
	s.driver.Start(context.Background(), alarm)
}

// SnoozeAlarm 贪睡：没有活动闹钟时是 no-op；预算用尽（或闹钟禁用贪睡）
// 时强制停止；否则计数加一、停声，armed 计时器到点后重新响铃。
func (s *Store) SnoozeAlarm() {
	s.mu.Lock()

	if s.active.ActiveAlarmID == "" {
		s.mu.Unlock()
		return
	}

	alarm := s.activeAlarm
	if !alarm.SnoozeEnabled || s.active.SnoozeCount >= alarm.MaxSnoozes {
		count := s.active.SnoozeCount
		s.mu.Unlock()
		s.logger.Info("Snooze budget exhausted, stopping alarm",
			zap.String("alarm_id", alarm.ID),
			zap.Int("snooze_count", count),
		)
		s.StopAlarm()
		return
	}

	s.cancelSnoozeLocked()
	s.active.SnoozeCount++
	s.active.IsSnoozed = true
	s.active.IsPlaying = false

	gen := s.snoozeGen
	target := alarm
	duration := time.Duration(alarm.SnoozeMinutes) * time.Minute
	s.snoozeTimer = s.afterFunc(duration, func() {
		s.mu.Lock()
		stale := gen != s.snoozeGen
		s.mu.Unlock()
		if stale {
			return
		}
		s.TriggerAlarm(target)
	})

	count := s.active.SnoozeCount
	s.mu.Unlock()

	s.logger.Info("Alarm snoozed",
		zap.String("alarm_id", alarm.ID),
		zap.Int("snooze_count", count),
		zap.Duration("duration", duration),
	)
	s.driver.Stop()
}

// StopAlarm 停止响铃：清掉贪睡计时器，无条件回到 Idle（幂等）
func (s *Store) StopAlarm() {
	s.mu.Lock()
	s.cancelSnoozeLocked()
	stopped := s.active.ActiveAlarmID
	s.active = models.ActiveAlarmState{}
	s.activeAlarm = nil
	s.mu.Unlock()

	if stopped != "" {
		s.logger.Info("Alarm stopped",
			zap.String("alarm_id", stopped),
		)
	}
	s.driver.Stop()
}

// ActiveState 响铃状态快照
func (s *Store) ActiveState() models.ActiveAlarmState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SaveUIState 持久化 UI 自留状态（引擎不解释其内容）
func (s *Store) SaveUIState(ctx context.Context, state json.RawMessage) error {
	return s.repo.SaveUIState(ctx, state)
}

// LoadUIState 读取 UI 自留状态；从未保存过时返回 repository.ErrNotFound
func (s *Store) LoadUIState(ctx context.Context) (json.RawMessage, error) {
	return s.repo.LoadUIState(ctx)
}

// LocationStatuses 被跟踪位置闹钟的实时状态（UI 展示用）
func (s *Store) LocationStatuses() []models.LocationAlarmStatus {
	return s.tracker.Statuses()
}

// NextAlarmTime 计算下一次触发时间：禁用或位置闹钟返回 nil
// （位置闹钟没有确定的"下一次时间"），睡眠闹钟取就寝/起床中较早者
func (s *Store) NextAlarmTime(alarm *models.Alarm) (*time.Time, error) {
	if !alarm.IsEnabled {
		return nil, nil
	}

	switch alarm.Type {
	case models.AlarmTypeTime:
		next, err := clock.NextFireTime(alarm.Time.TimeOfDay, alarm.Time.RepeatDays, s.now())
		if err != nil {
			return nil, err
		}
		return &next, nil
	case models.AlarmTypeSleep:
		bed, err := clock.NextFireTime(alarm.Sleep.Bedtime, alarm.Sleep.RepeatDays, s.now())
		if err != nil {
			return nil, err
		}
		wake, err := clock.NextWakeFireTime(alarm.Sleep.Bedtime, alarm.Sleep.WakeUpTime, alarm.Sleep.RepeatDays, s.now())
		if err != nil {
			return nil, err
		}
		next := bed
		if wake.Before(bed) {
			next = wake
		}
		return &next, nil
	default:
		return nil, nil
	}
}

// SleepSummary 睡眠目标对比：每晚时长 vs goal_minutes
func (s *Store) SleepSummary(alarm *models.Alarm) (*models.SleepSummary, error) {
	if alarm.Sleep == nil {
		return nil, fmt.Errorf("alarm %s is not a sleep alarm", alarm.ID)
	}

	nightly, err := clock.SleepDuration(alarm.Sleep.Bedtime, alarm.Sleep.WakeUpTime)
	if err != nil {
		return nil, err
	}

	summary := &models.SleepSummary{
		NightlyMinutes: int(nightly.Minutes()),
		GoalMinutes:    alarm.Sleep.GoalMinutes,
		GoalMet:        true,
	}
	if alarm.Sleep.GoalMinutes != nil && summary.NightlyMinutes < *alarm.Sleep.GoalMinutes {
		summary.GoalMet = false
		summary.DeficitMinutes = *alarm.Sleep.GoalMinutes - summary.NightlyMinutes
	}
	return summary, nil
}

// handleLocationTrigger 围栏触发：立即展示通知并进入响铃。
// 回调驱动路径里任何错误只记日志，不得打断其余闹钟的处理。
func (s *Store) handleLocationTrigger(ctx context.Context, event models.TriggerEvent) {
	alarm, err := s.GetAlarm(event.AlarmID)
	if err != nil {
		s.logger.Warn("Trigger for unknown alarm",
			zap.String("alarm_id", event.AlarmID),
		)
		return
	}

	if err := s.scheduler.FireNow(ctx, alarm); err != nil {
		s.logger.Error("Failed to present location notification",
			zap.String("alarm_id", alarm.ID),
			zap.Error(err),
		)
	}
	s.TriggerAlarm(alarm)
}

// onNotificationResponse 用户点击通知：进入响铃；一次性闹钟完全触发后清理——
// 定时闹钟按 delete_after_notification 删除或禁用，
// 睡眠闹钟在起床通知（最后一条）触发后禁用（不删除）
func (s *Store) onNotificationResponse(content platform.NotificationContent) {
	alarm, err := s.GetAlarm(content.AlarmID)
	if err != nil {
		s.logger.Warn("Notification response for unknown alarm",
			zap.String("alarm_id", content.AlarmID),
		)
		return
	}

	s.TriggerAlarm(alarm)

	ctx := context.Background()
	switch {
	case alarm.Time != nil && len(alarm.Time.RepeatDays) == 0:
		if alarm.Time.DeleteAfterNotification {
			s.mu.Lock()
			if idx := s.indexLocked(alarm.ID); idx >= 0 {
				s.removeLocked(ctx, idx)
			}
			s.mu.Unlock()
		} else {
			s.disableFired(ctx, alarm.ID)
		}
	case alarm.Sleep != nil && len(alarm.Sleep.RepeatDays) == 0 && content.Data["kind"] == "wake":
		s.disableFired(ctx, alarm.ID)
	}
}

// scheduleLocked 建立通知并回填句柄。平台调度失败是可恢复的降级：
// 闹钟保持启用但没有句柄，下一次编辑/开关会重试。
func (s *Store) scheduleLocked(ctx context.Context, alarm *models.Alarm) {
	handles, err := s.scheduler.Schedule(ctx, alarm, s.now())
	if err != nil {
		s.logger.Error("Failed to schedule alarm, keeping it enabled without handles",
			zap.String("alarm_id", alarm.ID),
			zap.Error(err),
		)
		return
	}
	alarm.NotificationIDs = handles.NotificationIDs
	alarm.BedtimeNotificationIDs = handles.BedtimeIDs
	alarm.WakeNotificationIDs = handles.WakeIDs
}

// persistLocked 尽力持久化：失败只记日志，本会话内以内存状态为准
func (s *Store) persistLocked(ctx context.Context) {
	if err := s.repo.SaveAll(ctx, s.alarms); err != nil {
		s.logger.Error("Failed to persist alarm collection",
			zap.Error(err),
		)
	}
}

// refreshTrackingLocked 任何 CRUD 后全量重建位置跟踪集合
// （全量重置语义：清除所有已触发/在围栏内标记）
func (s *Store) refreshTrackingLocked(ctx context.Context) error {
	err := s.tracker.ReplaceAll(ctx, s.enabledLocationAlarmsLocked())
	if err != nil {
		s.logger.Error("Failed to refresh location tracking",
			zap.Error(err),
		)
	}
	return err
}

// enabledLocationAlarmsLocked 当前启用的位置闹钟（克隆）
func (s *Store) enabledLocationAlarmsLocked() []*models.Alarm {
	var out []*models.Alarm
	for _, a := range s.alarms {
		if a.Type == models.AlarmTypeLocation && a.IsEnabled {
			out = append(out, a.Clone())
		}
	}
	return out
}

// removeLocked 拆除调度并移出集合（持锁调用）
func (s *Store) removeLocked(ctx context.Context, idx int) {
	alarm := s.alarms[idx]
	s.scheduler.Cancel(ctx, alarm)
	s.alarms = append(s.alarms[:idx], s.alarms[idx+1:]...)
	s.persistLocked(ctx)
	_ = s.refreshTrackingLocked(ctx)

	s.logger.Info("Alarm deleted",
		zap.String("alarm_id", alarm.ID),
	)
}

// disableFired 一次性闹钟触发后就地禁用（句柄已随触发失效）
func (s *Store) disableFired(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.alarms[idx].IsEnabled = false
	s.alarms[idx].ClearHandles()
	s.alarms[idx].UpdatedAt = s.now()
	s.persistLocked(ctx)
}

// cancelSnoozeLocked 取消未决的贪睡计时器并使在途回调失效
func (s *Store) cancelSnoozeLocked() {
	if s.snoozeTimer != nil {
		s.snoozeTimer.Stop()
		s.snoozeTimer = nil
	}
	s.snoozeGen++
}

// indexLocked 按ID查下标，未找到返回 -1
func (s *Store) indexLocked(id string) int {
	for i, a := range s.alarms {
		if a.ID == id {
			return i
		}
	}
	return -1
}
