// Package platform 定义本引擎消费的平台协作方接口（通知、定位、音频/震动）。
// 真实实现位于移动端宿主；仓库内的 localsim 子包提供进程内实现，供守护进程
// 开发联调和各包测试使用。
package platform

import (
	"context"
	"time"

	"waketime/internal/models"
)

// NotificationContent 通知内容，Data 携带不透明负载用于把平台回调关联回闹钟
type NotificationContent struct {
	AlarmID   string            `json:"alarm_id"`
	AlarmType string            `json:"alarm_type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
}

// ChannelDescriptor 已解析的通知渠道（渠道/重要级/铃声文件的选择在本引擎之外完成）
type ChannelDescriptor struct {
	ID         string `json:"id"`
	SoundName  string `json:"sound_name,omitempty"`
	Importance string `json:"importance,omitempty"`
}

// NotificationPlatform 平台通知原语
type NotificationPlatform interface {
	// ScheduleAt 在指定时刻安排一条一次性通知，返回不透明句柄
	ScheduleAt(ctx context.Context, at time.Time, content NotificationContent, channel ChannelDescriptor) (string, error)
	// ScheduleWeekly 安排每周重复通知（OS 原生重复，自续期）
	ScheduleWeekly(ctx context.Context, weekday models.Weekday, hour, minute int, content NotificationContent, channel ChannelDescriptor) (string, error)
	// Cancel 取消句柄对应的通知；未知/已触发的句柄不报错（幂等）
	Cancel(ctx context.Context, handle string) error
	// Present 立即展示一条本地通知（位置闹钟触发时使用）
	Present(ctx context.Context, content NotificationContent, channel ChannelDescriptor) error
	// OnResponse 注册用户点击通知后的回调
	OnResponse(fn func(content NotificationContent))
}

// Subscription 位置监听订阅
type Subscription interface {
	Unsubscribe()
}

// WatchOptions 位置监听参数
type WatchOptions struct {
	IntervalSeconds int  `json:"interval_seconds"`
	HighAccuracy    bool `json:"high_accuracy"`
}

// GeoPlatform 平台定位原语
type GeoPlatform interface {
	RequestForegroundPermission(ctx context.Context) (bool, error)
	RequestBackgroundPermission(ctx context.Context) (bool, error)
	WatchPosition(ctx context.Context, opts WatchOptions, fn func(models.Position)) (Subscription, error)
	GetCurrentPosition(ctx context.Context, opts WatchOptions) (models.Position, error)
}

// AudioPlayer 平台音频播放器
type AudioPlayer interface {
	Play() error
	Pause() error
	SeekStart() error
	SetLoop(loop bool) error
	SetVolume(volume float64) error
	Remove() error
}

// AudioPlatform 平台音频会话
type AudioPlatform interface {
	CreatePlayer(ctx context.Context, source string) (AudioPlayer, error)
}

// HapticsPlatform 平台震动原语
type HapticsPlatform interface {
	Vibrate(style string)
}
