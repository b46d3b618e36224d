package localsim

import (
	"context"
	"fmt"
	"sync"

	"waketime/internal/platform"
)

// Audio 内存音频平台
type Audio struct {
	mu      sync.Mutex
	players []*AudioPlayer

	// FailCreate 为 true 时 CreatePlayer 返回错误（模拟音频资源加载失败）
	FailCreate bool
	// FailPlay 为 true 时新建播放器的 Play 返回错误
	FailPlay bool
}

// NewAudio 创建内存音频平台
func NewAudio() *Audio {
	return &Audio{}
}

// CreatePlayer 创建内存播放器
func (a *Audio) CreatePlayer(_ context.Context, source string) (platform.AudioPlayer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailCreate {
		return nil, fmt.Errorf("failed to load sound source %q", source)
	}
	p := &AudioPlayer{Source: source, failPlay: a.FailPlay}
	a.players = append(a.players, p)
	return p, nil
}

// Players 返回创建过的播放器快照
func (a *Audio) Players() []*AudioPlayer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*AudioPlayer(nil), a.players...)
}

// AudioPlayer 内存播放器，记录所有控制调用
type AudioPlayer struct {
	mu       sync.Mutex
	failPlay bool

	Source   string
	Playing  bool
	Looping  bool
	Volume   float64
	Position int // 0 = 已回绕
	Removed  bool
}

func (p *AudioPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPlay {
		return fmt.Errorf("audio session rejected playback")
	}
	p.Playing = true
	p.Position = 1
	return nil
}

func (p *AudioPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Playing = false
	return nil
}

func (p *AudioPlayer) SeekStart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Position = 0
	return nil
}

func (p *AudioPlayer) SetLoop(loop bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Looping = loop
	return nil
}

func (p *AudioPlayer) SetVolume(volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Volume = volume
	return nil
}

func (p *AudioPlayer) Remove() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Removed = true
	p.Playing = false
	return nil
}

// IsPlaying 线程安全地读取播放状态
func (p *AudioPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Playing
}

// Haptics 内存震动平台，按样式计数
type Haptics struct {
	mu     sync.Mutex
	pulses map[string]int
}

// NewHaptics 创建内存震动平台
func NewHaptics() *Haptics {
	return &Haptics{pulses: make(map[string]int)}
}

// Vibrate 记录一次震动
func (h *Haptics) Vibrate(style string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pulses[style]++
}

// Pulses 返回某个样式的累计震动次数
func (h *Haptics) Pulses(style string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pulses[style]
}

// Total 返回所有样式的累计震动次数
func (h *Haptics) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, n := range h.pulses {
		total += n
	}
	return total
}
