package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "waketime:", cfg.Store.KeyPrefix)
	assert.Equal(t, "alarms", cfg.Store.AlarmsSuffix)
	assert.Equal(t, "ui-state", cfg.Store.UIStateSuffix)
	assert.Equal(t, 0.8, cfg.Store.DefaultVolume)
	assert.Equal(t, 5, cfg.Store.SnoozeMinutes)
	assert.Equal(t, 3, cfg.Store.MaxSnoozes)
	assert.Equal(t, 100.0, cfg.Store.RadiusMeters)
	assert.Equal(t, 5, cfg.Store.ArrivalLeadMin)
	assert.Equal(t, 50, cfg.Store.LabelMaxLen)

	assert.Equal(t, 5, cfg.Tracker.WatchIntervalSeconds)
	assert.True(t, cfg.Tracker.HighAccuracy)
	assert.Equal(t, 16, cfg.Tracker.TriggerBuffer)

	assert.Equal(t, 1, cfg.Playback.HapticIntervalSeconds)
	assert.Equal(t, "heavy", cfg.Playback.HapticStyle)
	assert.Equal(t, "default_alarm", cfg.Playback.DefaultSoundSource)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// 设置环境变量
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("REDIS_PASSWORD", "test-password")
	os.Setenv("REDIS_DB", "3")
	os.Setenv("STORE_KEY_PREFIX", "test:")
	os.Setenv("TRACKER_WATCH_INTERVAL", "10")
	os.Setenv("PLAYBACK_HAPTIC_INTERVAL", "2")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	// 验证环境变量覆盖
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "test-password", cfg.Redis.Password)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "test:", cfg.Store.KeyPrefix)
	assert.Equal(t, 10, cfg.Tracker.WatchIntervalSeconds)
	assert.Equal(t, 2, cfg.Playback.HapticIntervalSeconds)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// 清理环境变量
	os.Clearenv()
}

func TestConfig_StorageKeys(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "waketime:alarms", cfg.AlarmsKey())
	assert.Equal(t, "waketime:ui-state", cfg.UIStateKey())
}

func TestGetEnvInt_Invalid(t *testing.T) {
	// 非数字回落到默认值
	os.Setenv("TEST_INT_KEY", "not-a-number")
	assert.Equal(t, 7, getEnvInt("TEST_INT_KEY", 7))
	os.Unsetenv("TEST_INT_KEY")
}
