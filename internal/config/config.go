package config

import (
	"fmt"
	"os"
)

// Config 闹钟引擎配置
type Config struct {
	// Redis 持久化存储配置（闹钟集合以 JSON 文档保存）
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// Store 存储键与闹钟默认值
	Store struct {
		KeyPrefix      string // 存储键前缀，如 "waketime:"
		AlarmsSuffix   string // 闹钟集合文档键后缀，如 "alarms"
		UIStateSuffix  string // UI 状态文档键后缀，如 "ui-state"
		DefaultVolume  float64
		SnoozeMinutes  int     // 默认贪睡时长（分钟）
		MaxSnoozes     int     // 默认贪睡次数上限
		RadiusMeters   float64 // 位置闹钟默认围栏半径（米）
		ArrivalLeadMin int     // 位置闹钟默认提前量（分钟，仅保存）
		LabelMaxLen    int     // 标签最大长度
	}

	// Tracker 位置监听配置
	Tracker struct {
		WatchIntervalSeconds int
		HighAccuracy         bool
		TriggerBuffer        int // 触发事件通道容量
	}

	// Playback 响铃播放配置
	Playback struct {
		HapticIntervalSeconds int
		HapticStyle           string
		DefaultSoundSource    string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量覆盖默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Store.KeyPrefix = getEnv("STORE_KEY_PREFIX", "waketime:")
	cfg.Store.AlarmsSuffix = "alarms"
	cfg.Store.UIStateSuffix = "ui-state"
	cfg.Store.DefaultVolume = 0.8
	cfg.Store.SnoozeMinutes = 5
	cfg.Store.MaxSnoozes = 3
	cfg.Store.RadiusMeters = 100
	cfg.Store.ArrivalLeadMin = 5
	cfg.Store.LabelMaxLen = 50

	cfg.Tracker.WatchIntervalSeconds = getEnvInt("TRACKER_WATCH_INTERVAL", 5)
	cfg.Tracker.HighAccuracy = true
	cfg.Tracker.TriggerBuffer = 16

	cfg.Playback.HapticIntervalSeconds = getEnvInt("PLAYBACK_HAPTIC_INTERVAL", 1)
	cfg.Playback.HapticStyle = getEnv("PLAYBACK_HAPTIC_STYLE", "heavy")
	cfg.Playback.DefaultSoundSource = getEnv("PLAYBACK_DEFAULT_SOUND", "default_alarm")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// AlarmsKey 闹钟集合的完整存储键
func (c *Config) AlarmsKey() string {
	return c.Store.KeyPrefix + c.Store.AlarmsSuffix
}

// UIStateKey UI 状态的完整存储键
func (c *Config) UIStateKey() string {
	return c.Store.KeyPrefix + c.Store.UIStateSuffix
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}
