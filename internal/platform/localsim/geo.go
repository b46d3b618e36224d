package localsim

import (
	"context"
	"sync"
	"time"

	"waketime/internal/models"
	"waketime/internal/platform"
)

// Geo 内存定位平台：权限结果可脚本化，位置更新由 Emit 手动注入
type Geo struct {
	mu       sync.Mutex
	callback func(models.Position)
	watches  int

	// ForegroundGranted / BackgroundGranted 控制权限请求的结果
	ForegroundGranted bool
	BackgroundGranted bool
	// Current GetCurrentPosition 的返回值
	Current models.Position
}

// NewGeo 创建内存定位平台（默认前后台权限均已授予）
func NewGeo() *Geo {
	return &Geo{ForegroundGranted: true, BackgroundGranted: true}
}

// RequestForegroundPermission 返回脚本化的前台权限结果
func (g *Geo) RequestForegroundPermission(_ context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ForegroundGranted, nil
}

// RequestBackgroundPermission 返回脚本化的后台权限结果
func (g *Geo) RequestBackgroundPermission(_ context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.BackgroundGranted, nil
}

// WatchPosition 登记位置回调
func (g *Geo) WatchPosition(_ context.Context, _ platform.WatchOptions, fn func(models.Position)) (platform.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callback = fn
	g.watches++
	return &geoSubscription{geo: g}, nil
}

// GetCurrentPosition 返回脚本化的当前位置
func (g *Geo) GetCurrentPosition(_ context.Context, _ platform.WatchOptions) (models.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Current, nil
}

// Emit 向活跃的监听注入一次位置更新
func (g *Geo) Emit(lat, lon float64) {
	g.mu.Lock()
	fn := g.callback
	g.mu.Unlock()
	if fn != nil {
		fn(models.Position{
			Coordinates: models.Coordinates{Latitude: lat, Longitude: lon},
			Timestamp:   time.Now(),
		})
	}
}

// Watching 判断当前是否有活跃监听
func (g *Geo) Watching() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.callback != nil
}

// WatchCount 返回累计建立过的监听数（用于断言共享单监听）
func (g *Geo) WatchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.watches
}

type geoSubscription struct {
	geo  *Geo
	once sync.Once
}

func (s *geoSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.geo.mu.Lock()
		s.geo.callback = nil
		s.geo.mu.Unlock()
	})
}
