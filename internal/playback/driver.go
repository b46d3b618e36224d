// Package playback 响铃输出：循环播放铃声 + 周期性震动。
// 铃声加载/播放失败时退化为仅震动——闹钟必须发出可感知的信号，
// 播放失败从不作为用户可见错误上抛。
package playback

import (
	"context"
	"sync"
	"time"

	"waketime/internal/config"
	"waketime/internal/models"
	"waketime/internal/platform"

	"go.uber.org/zap"
)

// Driver 声音/震动驱动（进程内单例，由 store 持有）
type Driver struct {
	config  *config.Config
	audio   platform.AudioPlatform
	haptics platform.HapticsPlatform
	logger  *zap.Logger

	mu          sync.Mutex
	starting    bool
	player      platform.AudioPlayer
	stopHaptics chan struct{}
}

// NewDriver 创建播放驱动
func NewDriver(
	cfg *config.Config,
	audio platform.AudioPlatform,
	haptics platform.HapticsPlatform,
	logger *zap.Logger,
) *Driver {
	return &Driver{
		config:  cfg,
		audio:   audio,
		haptics: haptics,
		logger:  logger,
	}
}

// Start 开始响铃。并发重入保护：已有一次 Start 在进行中时直接返回（no-op），
// 不排队也不重复启动。先停掉既有播放，再加载铃声循环播放并启动震动脉冲。
func (d *Driver) Start(ctx context.Context, alarm *models.Alarm) {
	d.mu.Lock()
	if d.starting {
		d.mu.Unlock()
		d.logger.Debug("Playback start already in progress, ignoring",
			zap.String("alarm_id", alarm.ID),
		)
		return
	}
	d.starting = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.starting = false
		d.mu.Unlock()
	}()

	// 旧的播放先停干净
	d.Stop()

	source := d.resolveSource(alarm)
	player, ok := d.createPlayer(ctx, alarm, source)

	d.mu.Lock()
	d.player = player

	// 震动：闹钟开了震动就震；铃声起不来时无条件震（保底信号）。
	// 首次脉冲同步发出，调用方返回时已有可感知信号
	if alarm.Vibrate || !ok {
		stop := make(chan struct{})
		d.stopHaptics = stop
		d.haptics.Vibrate(d.config.Playback.HapticStyle)
		go d.hapticLoop(stop)
	}
	d.mu.Unlock()

	d.logger.Info("Playback started",
		zap.String("alarm_id", alarm.ID),
		zap.String("source", source),
		zap.Bool("audio_ok", ok),
	)
}

// createPlayer 加载并启动循环播放；任何一步失败都回收播放器并返回 nil
// （调用方退化为仅震动）
func (d *Driver) createPlayer(ctx context.Context, alarm *models.Alarm, source string) (platform.AudioPlayer, bool) {
	player, err := d.audio.CreatePlayer(ctx, source)
	if err != nil {
		d.logger.Error("Failed to load alarm sound, falling back to haptics only",
			zap.String("alarm_id", alarm.ID),
			zap.String("source", source),
			zap.Error(err),
		)
		return nil, false
	}

	err = player.SetLoop(true)
	if err == nil {
		err = player.SetVolume(alarm.Volume)
	}
	if err == nil {
		err = player.Play()
	}
	if err != nil {
		d.logger.Error("Failed to start alarm sound, falling back to haptics only",
			zap.String("alarm_id", alarm.ID),
			zap.Error(err),
		)
		_ = player.Remove()
		return nil, false
	}
	return player, true
}

// Stop 停止响铃（幂等）：停震动、暂停并回绕铃声、释放播放器
func (d *Driver) Stop() {
	d.mu.Lock()
	player := d.player
	stop := d.stopHaptics
	d.player = nil
	d.stopHaptics = nil
	d.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if player != nil {
		if err := player.Pause(); err != nil {
			d.logger.Warn("Failed to pause player", zap.Error(err))
		}
		if err := player.SeekStart(); err != nil {
			d.logger.Warn("Failed to rewind player", zap.Error(err))
		}
		if err := player.Remove(); err != nil {
			d.logger.Warn("Failed to release player", zap.Error(err))
		}
		d.logger.Info("Playback stopped")
	}
}

// IsActive 判断当前是否在响铃（有播放器或震动循环任一存活）
func (d *Driver) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.player != nil || d.stopHaptics != nil
}

// resolveSource 解析铃声来源：URI 优先，默认铃声回落到配置
func (d *Driver) resolveSource(alarm *models.Alarm) string {
	if alarm.Sound.IsDefault || (alarm.Sound.URI == "" && alarm.Sound.Name == "") {
		return d.config.Playback.DefaultSoundSource
	}
	if alarm.Sound.URI != "" {
		return alarm.Sound.URI
	}
	return alarm.Sound.Name
}

// hapticLoop 周期性震动直到停止信号（首次脉冲由 Start 同步发出）
func (d *Driver) hapticLoop(stop chan struct{}) {
	interval := time.Duration(d.config.Playback.HapticIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.haptics.Vibrate(d.config.Playback.HapticStyle)
		}
	}
}
