package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"waketime/internal/builder"
	"waketime/internal/config"
	"waketime/internal/models"
	"waketime/internal/platform/localsim"
	"waketime/internal/playback"
	"waketime/internal/repository"
	"waketime/internal/scheduler"
	"waketime/internal/tracker"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 固定"现在"：2024-01-01 21:04 UTC，周一，当天 06:30 已经过去
var testNow = time.Date(2024, 1, 1, 21, 4, 0, 0, time.UTC)

type testEnv struct {
	store    *Store
	notifier *localsim.Notifier
	geo      *localsim.Geo
	audio    *localsim.Audio
	haptics  *localsim.Haptics
	redis    *miniredis.Miniredis
}

func setupTestStore(t *testing.T) *testEnv {
	os.Clearenv()
	cfg, err := config.Load()
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := zap.NewNop()

	notifier := localsim.NewNotifier()
	geo := localsim.NewGeo()
	audio := localsim.NewAudio()
	haptics := localsim.NewHaptics()

	repo := repository.NewAlarmRepository(cfg, redisClient, logger)
	bld := builder.NewBuilder(cfg, logger)
	sched := scheduler.NewScheduler(cfg, notifier, nil, logger)
	trk := tracker.NewTracker(cfg, geo, logger)
	drv := playback.NewDriver(cfg, audio, haptics, logger)

	s := NewStore(cfg, logger, repo, bld, sched, trk, drv, notifier,
		func() time.Time { return testNow })
	return &testEnv{store: s, notifier: notifier, geo: geo, audio: audio, haptics: haptics, redis: mr}
}

// blockTimers 让贪睡计时器永不触发，回调由测试手动驱动
func blockTimers(s *Store) *[]func() {
	var pending []func()
	s.afterFunc = func(_ time.Duration, f func()) *time.Timer {
		pending = append(pending, f)
		return time.NewTimer(time.Hour)
	}
	return &pending
}

func oneShotPayload(timeOfDay string) *models.AlarmPayload {
	return &models.AlarmPayload{
		Type: models.AlarmTypeTime,
		Time: &models.TimeAlarmSpec{TimeOfDay: timeOfDay},
	}
}

func locationPayload() *models.AlarmPayload {
	return &models.AlarmPayload{
		Type: models.AlarmTypeLocation,
		Location: &models.LocationAlarmSpec{
			Target: models.TargetLocation{
				ID:          "loc-1",
				Name:        "Central Station",
				Coordinates: models.Coordinates{Latitude: 59.3307, Longitude: 18.0586},
			},
			ArrivalTrigger: true,
		},
	}
}

func TestStore_AddAlarm_OneShotScheduledTomorrow(t *testing.T) {
	env := setupTestStore(t)

	// 21:04 新增 06:30 无重复闹钟 -> 恰好一条通知，落在明天 06:30
	alarm, err := env.store.AddAlarm(context.Background(), oneShotPayload("06:30"))
	require.NoError(t, err)
	require.Len(t, alarm.NotificationIDs, 1)

	live := env.notifier.Live()
	require.Len(t, live, 1)
	assert.Equal(t, time.Date(2024, 1, 2, 6, 30, 0, 0, time.UTC), live[0].At)
	assert.Equal(t, alarm.ID, live[0].Content.AlarmID)
}

func TestStore_AddAlarm_InvalidPayloadNotPersisted(t *testing.T) {
	env := setupTestStore(t)

	_, err := env.store.AddAlarm(context.Background(), oneShotPayload("25:99"))

	var verrs builder.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	// 非法负载不得进入集合，也不得触达平台或存储
	assert.Empty(t, env.store.Alarms())
	assert.Empty(t, env.notifier.Live())
	assert.Empty(t, env.redis.Keys())
}

func TestStore_AddAlarm_SchedulingFailureKeepsAlarmEnabled(t *testing.T) {
	env := setupTestStore(t)
	env.notifier.FailSchedule = true

	alarm, err := env.store.AddAlarm(context.Background(), oneShotPayload("06:30"))
	require.NoError(t, err)

	// 平台调度失败可恢复：闹钟保留且保持启用，只是没有句柄
	assert.True(t, alarm.IsEnabled)
	assert.False(t, alarm.HasHandles())
	assert.Len(t, env.store.Alarms(), 1)
}

func TestStore_UpdateAlarm_ExactlyOneLiveNotification(t *testing.T) {
	env := setupTestStore(t)

	alarm, err := env.store.AddAlarm(context.Background(), oneShotPayload("06:30"))
	require.NoError(t, err)

	// 改时间：旧通知必须拆除，任一时刻每个闹钟至多一套存活通知
	updated, err := env.store.UpdateAlarm(context.Background(), alarm.ID, &models.AlarmPayload{
		Time: &models.TimeAlarmSpec{TimeOfDay: "07:15"},
	})
	require.NoError(t, err)

	live := env.notifier.LiveForAlarm(alarm.ID)
	require.Len(t, live, 1)
	assert.Equal(t, time.Date(2024, 1, 2, 7, 15, 0, 0, time.UTC), live[0].At)
	assert.NotEqual(t, alarm.NotificationIDs, updated.NotificationIDs)
}

func TestStore_UpdateAlarm_TypeChangeRejected(t *testing.T) {
	env := setupTestStore(t)

	alarm, err := env.store.AddAlarm(context.Background(), oneShotPayload("06:30"))
	require.NoError(t, err)

	_, err = env.store.UpdateAlarm(context.Background(), alarm.ID, &models.AlarmPayload{
		Type: models.AlarmTypeLocation,
	})
	assert.ErrorIs(t, err, ErrTypeChange)

	// 变体负载与既有类型不符同样拒绝
	_, err = env.store.UpdateAlarm(context.Background(), alarm.ID, locationPayload())
	assert.ErrorIs(t, err, ErrTypeChange)
}

func TestStore_UpdateAlarm_InvalidPayloadLeavesOldScheduleIntact(t *testing.T) {
	env := setupTestStore(t)

	alarm, err := env.store.AddAlarm(context.Background(), oneShotPayload("06:30"))
	require.NoError(t, err)

	_, err = env.store.UpdateAlarm(context.Background(), alarm.ID, &models.AlarmPayload{
		Time: &models.TimeAlarmSpec{TimeOfDay: "not-a-time"},
	})
	var verrs builder.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	// 校验在拆除之前：旧通知原封不动
	live := env.notifier.LiveForAlarm(alarm.ID)
	require.Len(t, live, 1)
	assert.Equal(t, time.Date(2024, 1, 2, 6, 30, 0, 0, time.UTC), live[0].At)
}

func TestStore_ToggleAlarm_TearsDownAndRestores(t *testing.T) {
	env := setupTestStore(t)

	alarm, err := env.store.AddAlarm(context.Background(), oneShotPayload("06:30"))
	require.NoError(t, err)

	off, err := env.store.ToggleAlarm(context.Background(), alarm.ID)
	require.NoError(t, err)
	assert.False(t, off.IsEnabled)
	assert.Empty(t, env.notifier.Live())

	on, err := env.store.ToggleAlarm(context.Background(), alarm.ID)
	require.NoError(t, err)
	assert.True(t, on.IsEnabled)
	assert.Len(t, env.notifier.Live(), 1)
}

func TestStore_DeleteAlarm_Teardown(t *testing.T) {
	env := setupTestStore(t)

	alarm, err := env.store.AddAlarm(context.Background(), oneShotPayload("06:30"))
	require.NoError(t, err)

	require.NoError(t, env.store.DeleteAlarm(context.Background(), alarm.ID))
	assert.Empty(t, env.store.Alarms())
	assert.Empty(t, env.notifier.Live())

	assert.ErrorIs(t, env.store.DeleteAlarm(context.Background(), alarm.ID), ErrAlarmNotFound)
}

func TestStore_AddAlarm_LocationPermissionDenied(t *testing.T) {
	env := setupTestStore(t)
	env.geo.ForegroundGranted = false

	_, err := env.store.AddAlarm(context.Background(), locationPayload())
	assert.ErrorIs(t, err, tracker.ErrPermissionDenied)
	assert.False(t, env.geo.Watching())
}

func TestStore_AddAlarm_LocationStartsTracking(t *testing.T) {
	env := setupTestStore(t)

	alarm, err := env.store.AddAlarm(context.Background(), locationPayload())
	require.NoError(t, err)
	// 位置闹钟不做预约，触发时才展示通知
	assert.False(t, alarm.HasHandles())
	assert.True(t, env.geo.Watching())

	require.NoError(t, env.store.DeleteAlarm(context.Background(), alarm.ID))
	assert.False(t, env.geo.Watching())
}

func TestStore_Snooze_BudgetExhaustedForcesStop(t *testing.T) {
	env := setupTestStore(t)
	blockTimers(env.store)

	alarm, err := env.store.AddAlarm(context.Background(), oneShotPayload("06:30"))
	require.NoError(t, err)

	env.store.TriggerAlarm(alarm)
	require.True(t, env.store.ActiveState().IsPlaying)

	// maxSnoozeCount 默认 3：前三次贪睡计数递增
	for i := 1; i <= 3; i++ {
		env.store.SnoozeAlarm()
		state := env.store.ActiveState()
		assert.Equal(t, i, state.SnoozeCount)
		assert.True(t, state.IsSnoozed)
		assert.False(t, state.IsPlaying)
	}

	// 第四次：预算耗尽，强制停止回到 Idle
	env.store.SnoozeAlarm()
	state := env.store.ActiveState()
	assert.Empty(t, state.ActiveAlarmID)
	assert.False(t, state.IsSnoozed)
	assert.Zero(t, state.SnoozeCount)
	assert.False(t, env.store.driver.IsActive())
}

func TestStore_Snooze_TimerRefiresSameAlarm(t *testing.T) {
	env := setupTestStore(t)
	pending := blockTimers(env.store)

	payload := oneShotPayload("06:30")
	one := 1
	payload.SnoozeMinutes = &one
	payload.MaxSnoozes = &one
	alarm, err := env.store.AddAlarm(context.Background(), payload)
	require.NoError(t, err)

	env.store.TriggerAlarm(alarm)
	env.store.SnoozeAlarm()

	state := env.store.ActiveState()
	assert.Equal(t, alarm.ID, state.ActiveAlarmID)
	assert.Equal(t, 1, state.SnoozeCount)
	assert.True(t, state.IsSnoozed)

	// 贪睡计时到点：同一闹钟重新响铃
	require.Len(t, *pending, 1)
	(*pending)[0]()

	state = env.store.ActiveState()
	assert.Equal(t, alarm.ID, state.ActiveAlarmID)
	assert.True(t, state.IsPlaying)
	assert.False(t, state.IsSnoozed)
}

func TestStore_Stop_InvalidatesPendingSnooze(t *testing.T) {
	env := setupTestStore(t)
	pending := blockTimers(env.store)

	alarm, err := env.store.AddAlarm(context.Background(), oneShotPayload("06:30"))
	require.NoError(t, err)

	env.store.TriggerAlarm(alarm)
	env.store.SnoozeAlarm()
	env.store.StopAlarm()

	// 停止后在途的贪睡回调不得复活闹钟
	require.Len(t, *pending, 1)
	(*pending)[0]()
	assert.Empty(t, env.store.ActiveState().ActiveAlarmID)
}

func TestStore_Snooze_NoActiveAlarmIsNoOp(t *testing.T) {
	env := setupTestStore(t)

	env.store.SnoozeAlarm()
	assert.Empty(t, env.store.ActiveState().ActiveAlarmID)

	env.store.StopAlarm()
	assert.Empty(t, env.store.ActiveState().ActiveAlarmID)
}

func TestStore_TriggerAlarm_ResetsSnoozeBudget(t *testing.T) {
	env := setupTestStore(t)
	blockTimers(env.store)

	alarm, err := env.store.AddAlarm(context.Background(), oneShotPayload("06:30"))
	require.NoError(t, err)

	env.store.TriggerAlarm(alarm)
	env.store.SnoozeAlarm()
	env.store.SnoozeAlarm()
	require.Equal(t, 2, env.store.ActiveState().SnoozeCount)

	// 重新触发（比如用户点了新到的通知）总是重置预算
	env.store.TriggerAlarm(alarm)
	state := env.store.ActiveState()
	assert.Zero(t, state.SnoozeCount)
	assert.True(t, state.IsPlaying)
}

func TestStore_NotificationResponse_OneShotRingsThenDisables(t *testing.T) {
	env := setupTestStore(t)

	alarm, err := env.store.AddAlarm(context.Background(), oneShotPayload("06:30"))
	require.NoError(t, err)
	require.Len(t, alarm.NotificationIDs, 1)

	env.notifier.Tap(alarm.NotificationIDs[0])

	state := env.store.ActiveState()
	assert.Equal(t, alarm.ID, state.ActiveAlarmID)
	assert.True(t, state.IsPlaying)

	// 一次性闹钟触发后就地禁用（delete_after_notification 未设）
	got, err := env.store.GetAlarm(alarm.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEnabled)
	assert.False(t, got.HasHandles())
}

func TestStore_NotificationResponse_DeleteAfterNotification(t *testing.T) {
	env := setupTestStore(t)

	payload := oneShotPayload("06:30")
	payload.Time.DeleteAfterNotification = true
	alarm, err := env.store.AddAlarm(context.Background(), payload)
	require.NoError(t, err)

	env.notifier.Tap(alarm.NotificationIDs[0])

	// 闹钟从集合移除，但响铃继续（用户仍需手动停止）
	_, err = env.store.GetAlarm(alarm.ID)
	assert.ErrorIs(t, err, ErrAlarmNotFound)
	assert.Equal(t, alarm.ID, env.store.ActiveState().ActiveAlarmID)
}

func TestStore_NotificationResponse_RepeatingAlarmStaysEnabled(t *testing.T) {
	env := setupTestStore(t)

	payload := oneShotPayload("06:30")
	payload.Time.RepeatDays = []models.Weekday{models.Tuesday, models.Thursday}
	alarm, err := env.store.AddAlarm(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, alarm.NotificationIDs, 2)

	env.notifier.Tap(alarm.NotificationIDs[0])

	got, err := env.store.GetAlarm(alarm.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEnabled)
	// 每周触发器原生重复，点击后句柄依旧存活
	assert.Len(t, env.notifier.LiveForAlarm(alarm.ID), 2)
}

func TestStore_NotificationResponse_OneShotSleepDisablesAfterWake(t *testing.T) {
	env := setupTestStore(t)

	alarm, err := env.store.AddAlarm(context.Background(), &models.AlarmPayload{
		Type:  models.AlarmTypeSleep,
		Sleep: &models.SleepAlarmSpec{Bedtime: "22:30", WakeUpTime: "06:30"},
	})
	require.NoError(t, err)
	require.Len(t, alarm.BedtimeNotificationIDs, 1)
	require.Len(t, alarm.WakeNotificationIDs, 1)

	// 就寝通知触发：闹钟还没走完，保持启用
	env.notifier.Tap(alarm.BedtimeNotificationIDs[0])
	got, err := env.store.GetAlarm(alarm.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEnabled)

	// 起床通知（最后一条）触发：一次性睡眠闹钟禁用而不是删除
	env.notifier.Tap(alarm.WakeNotificationIDs[0])
	got, err = env.store.GetAlarm(alarm.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEnabled)
	assert.False(t, got.HasHandles())
}

func TestStore_Run_LocationTriggerRingsAlarm(t *testing.T) {
	env := setupTestStore(t)

	alarm, err := env.store.AddAlarm(context.Background(), locationPayload())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = env.store.Run(ctx) }()

	// 先圈外再圈内：跨界沿进入方向触发
	env.geo.Emit(59.34, 18.0586)
	env.geo.Emit(59.3307, 18.0586)

	require.Eventually(t, func() bool {
		return env.store.ActiveState().ActiveAlarmID == alarm.ID
	}, time.Second, 10*time.Millisecond)

	presented := env.notifier.Presented()
	require.Len(t, presented, 1)
	assert.Equal(t, alarm.ID, presented[0].AlarmID)
}

func TestStore_Load_RestoresCollectionAndTracking(t *testing.T) {
	env := setupTestStore(t)

	_, err := env.store.AddAlarm(context.Background(), oneShotPayload("06:30"))
	require.NoError(t, err)
	_, err = env.store.AddAlarm(context.Background(), locationPayload())
	require.NoError(t, err)

	// 第二个 store 共享同一 redis：模拟进程重启后的恢复
	cfg, err := config.Load()
	require.NoError(t, err)
	redisClient := redis.NewClient(&redis.Options{Addr: env.redis.Addr()})
	logger := zap.NewNop()
	geo := localsim.NewGeo()
	notifier := localsim.NewNotifier()

	repo := repository.NewAlarmRepository(cfg, redisClient, logger)
	trk := tracker.NewTracker(cfg, geo, logger)
	restored := NewStore(cfg, logger, repo,
		builder.NewBuilder(cfg, logger),
		scheduler.NewScheduler(cfg, notifier, nil, logger),
		trk,
		playback.NewDriver(cfg, localsim.NewAudio(), localsim.NewHaptics(), logger),
		notifier,
		func() time.Time { return testNow })

	require.NoError(t, restored.Load(context.Background()))
	assert.Len(t, restored.Alarms(), 2)
	assert.True(t, geo.Watching())
}

func TestStore_NextAlarmTime(t *testing.T) {
	env := setupTestStore(t)
	ctx := context.Background()

	// 定时闹钟：明天 06:30
	timeAlarm, err := env.store.AddAlarm(ctx, oneShotPayload("06:30"))
	require.NoError(t, err)
	next, err := env.store.NextAlarmTime(timeAlarm)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2024, 1, 2, 6, 30, 0, 0, time.UTC), *next)

	// 禁用后没有下一次
	disabled, err := env.store.ToggleAlarm(ctx, timeAlarm.ID)
	require.NoError(t, err)
	next, err = env.store.NextAlarmTime(disabled)
	require.NoError(t, err)
	assert.Nil(t, next)

	// 睡眠闹钟：22:30 就寝晚于 06:30 起床之前，取较早的就寝时刻
	sleepAlarm, err := env.store.AddAlarm(ctx, &models.AlarmPayload{
		Type:  models.AlarmTypeSleep,
		Sleep: &models.SleepAlarmSpec{Bedtime: "22:30", WakeUpTime: "06:30"},
	})
	require.NoError(t, err)
	next, err = env.store.NextAlarmTime(sleepAlarm)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2024, 1, 1, 22, 30, 0, 0, time.UTC), *next)

	// 位置闹钟没有确定的下一次时间
	locAlarm, err := env.store.AddAlarm(ctx, locationPayload())
	require.NoError(t, err)
	next, err = env.store.NextAlarmTime(locAlarm)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestStore_UIStatePassthrough(t *testing.T) {
	env := setupTestStore(t)
	ctx := context.Background()

	_, err := env.store.LoadUIState(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	state := json.RawMessage(`{"selected_tab":"alarms"}`)
	require.NoError(t, env.store.SaveUIState(ctx, state))

	got, err := env.store.LoadUIState(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(state), string(got))
}

func TestStore_SleepSummary(t *testing.T) {
	env := setupTestStore(t)

	goal := 480
	alarm, err := env.store.AddAlarm(context.Background(), &models.AlarmPayload{
		Type: models.AlarmTypeSleep,
		Sleep: &models.SleepAlarmSpec{
			Bedtime:     "23:30",
			WakeUpTime:  "06:30",
			GoalMinutes: &goal,
		},
	})
	require.NoError(t, err)

	summary, err := env.store.SleepSummary(alarm)
	require.NoError(t, err)
	assert.Equal(t, 420, summary.NightlyMinutes)
	assert.False(t, summary.GoalMet)
	assert.Equal(t, 60, summary.DeficitMinutes)

	_, err = env.store.SleepSummary(&models.Alarm{ID: "x", Type: models.AlarmTypeTime})
	assert.Error(t, err)
}
