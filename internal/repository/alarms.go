// Package repository 闹钟集合的持久化：整个集合序列化为一份 JSON 文档，
// 保存在键值存储（Redis）的固定键下；UI 状态作为不透明文档单独保存。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"waketime/internal/config"
	"waketime/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrNotFound 请求的文档不存在
var ErrNotFound = errors.New("document not found")

// AlarmRepository 闹钟集合仓库
type AlarmRepository struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewAlarmRepository 创建闹钟集合仓库
func NewAlarmRepository(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *AlarmRepository {
	return &AlarmRepository{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// LoadAll 读取闹钟集合；键不存在返回空集合（首次启动）
func (r *AlarmRepository) LoadAll(ctx context.Context) ([]*models.Alarm, error) {
	val, err := r.redisClient.Get(ctx, r.config.AlarmsKey()).Result()
	if err != nil {
		if err == redis.Nil {
			return []*models.Alarm{}, nil
		}
		return nil, fmt.Errorf("failed to load alarms: %w", err)
	}

	var alarms []*models.Alarm
	if err := json.Unmarshal([]byte(val), &alarms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alarms: %w", err)
	}
	return alarms, nil
}

// SaveAll 整体写入闹钟集合（单文档，无 TTL）
func (r *AlarmRepository) SaveAll(ctx context.Context, alarms []*models.Alarm) error {
	jsonData, err := json.Marshal(alarms)
	if err != nil {
		return fmt.Errorf("failed to marshal alarms: %w", err)
	}

	if err := r.redisClient.Set(ctx, r.config.AlarmsKey(), jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to save alarms: %w", err)
	}
	return nil
}

// SaveUIState 保存 UI 状态文档（对引擎不透明，原样读写）
func (r *AlarmRepository) SaveUIState(ctx context.Context, state json.RawMessage) error {
	if err := r.redisClient.Set(ctx, r.config.UIStateKey(), []byte(state), 0).Err(); err != nil {
		return fmt.Errorf("failed to save ui state: %w", err)
	}
	return nil
}

// LoadUIState 读取 UI 状态文档；不存在返回 ErrNotFound
func (r *AlarmRepository) LoadUIState(ctx context.Context) (json.RawMessage, error) {
	val, err := r.redisClient.Get(ctx, r.config.UIStateKey()).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load ui state: %w", err)
	}
	return json.RawMessage(val), nil
}
