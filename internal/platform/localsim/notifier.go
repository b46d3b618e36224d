// Package localsim 平台协作方的进程内实现：守护进程的开发联调环境，
// 也是 scheduler / tracker / store / playback 各包测试的测试替身。
package localsim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"waketime/internal/models"
	"waketime/internal/platform"
)

// ScheduledNotification 一条已登记的通知
type ScheduledNotification struct {
	Handle  string
	At      time.Time // 一次性通知的触发时刻（weekly 为零值）
	Weekly  bool
	Weekday models.Weekday
	Hour    int
	Minute  int
	Content platform.NotificationContent
	Channel platform.ChannelDescriptor
}

// Notifier 内存通知平台
type Notifier struct {
	mu        sync.Mutex
	seq       int
	scheduled map[string]ScheduledNotification
	presented []platform.NotificationContent
	onTap     func(platform.NotificationContent)

	// FailSchedule 为 true 时所有调度调用返回错误（模拟 SchedulingFailure）
	FailSchedule bool
}

// NewNotifier 创建内存通知平台
func NewNotifier() *Notifier {
	return &Notifier{scheduled: make(map[string]ScheduledNotification)}
}

// ScheduleAt 登记一次性通知
func (n *Notifier) ScheduleAt(_ context.Context, at time.Time, content platform.NotificationContent, channel platform.ChannelDescriptor) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailSchedule {
		return "", fmt.Errorf("notification platform unavailable")
	}
	n.seq++
	handle := fmt.Sprintf("ntf-%d", n.seq)
	n.scheduled[handle] = ScheduledNotification{
		Handle:  handle,
		At:      at,
		Content: content,
		Channel: channel,
	}
	return handle, nil
}

// ScheduleWeekly 登记每周重复通知
func (n *Notifier) ScheduleWeekly(_ context.Context, weekday models.Weekday, hour, minute int, content platform.NotificationContent, channel platform.ChannelDescriptor) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailSchedule {
		return "", fmt.Errorf("notification platform unavailable")
	}
	n.seq++
	handle := fmt.Sprintf("ntf-%d", n.seq)
	n.scheduled[handle] = ScheduledNotification{
		Handle:  handle,
		Weekly:  true,
		Weekday: weekday,
		Hour:    hour,
		Minute:  minute,
		Content: content,
		Channel: channel,
	}
	return handle, nil
}

// Cancel 取消通知；未知句柄静默成功（幂等）
func (n *Notifier) Cancel(_ context.Context, handle string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.scheduled, handle)
	return nil
}

// Present 立即展示通知
func (n *Notifier) Present(_ context.Context, content platform.NotificationContent, channel platform.ChannelDescriptor) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailSchedule {
		return fmt.Errorf("notification platform unavailable")
	}
	n.presented = append(n.presented, content)
	return nil
}

// OnResponse 注册点击回调
func (n *Notifier) OnResponse(fn func(platform.NotificationContent)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onTap = fn
}

// Tap 模拟用户点击某条已登记的通知
func (n *Notifier) Tap(handle string) {
	n.mu.Lock()
	ntf, ok := n.scheduled[handle]
	fn := n.onTap
	if ok && !ntf.Weekly {
		// 一次性通知触发后句柄随之失效
		delete(n.scheduled, handle)
	}
	n.mu.Unlock()
	if ok && fn != nil {
		fn(ntf.Content)
	}
}

// Live 返回当前存活的通知句柄快照
func (n *Notifier) Live() []ScheduledNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ScheduledNotification, 0, len(n.scheduled))
	for _, s := range n.scheduled {
		out = append(out, s)
	}
	return out
}

// LiveForAlarm 返回某个闹钟当前存活的通知
func (n *Notifier) LiveForAlarm(alarmID string) []ScheduledNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []ScheduledNotification
	for _, s := range n.scheduled {
		if s.Content.AlarmID == alarmID {
			out = append(out, s)
		}
	}
	return out
}

// Presented 返回已立即展示的通知内容
func (n *Notifier) Presented() []platform.NotificationContent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]platform.NotificationContent(nil), n.presented...)
}
