package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"waketime/internal/builder"
	"waketime/internal/config"
	"waketime/internal/logger"
	"waketime/internal/platform/localsim"
	"waketime/internal/playback"
	"waketime/internal/repository"
	"waketime/internal/scheduler"
	"waketime/internal/store"
	"waketime/internal/tracker"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "waketime")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 连接 Redis（闹钟集合的持久化存储）
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err),
		)
	}

	// 4. 平台协作方（进程内模拟实现，真实部署替换为移动端桥接）
	notifier := localsim.NewNotifier()
	geo := localsim.NewGeo()
	audio := localsim.NewAudio()
	haptics := localsim.NewHaptics()

	// 5. 组装闹钟引擎
	repo := repository.NewAlarmRepository(cfg, redisClient, log)
	alarmStore := store.NewStore(cfg, log, repo,
		builder.NewBuilder(cfg, log),
		scheduler.NewScheduler(cfg, notifier, nil, log),
		tracker.NewTracker(cfg, geo, log),
		playback.NewDriver(cfg, audio, haptics, log),
		notifier,
		nil,
	)

	if err := alarmStore.Load(ctx); err != nil {
		log.Fatal("Failed to load alarm collection",
			zap.Error(err),
		)
	}

	// 6. 启动引擎（在 goroutine 中消费围栏触发）
	storeErrChan := make(chan error, 1)
	go func() {
		if err := alarmStore.Run(ctx); err != nil {
			storeErrChan <- err
		}
	}()

	// 7. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		cancel()
	case err := <-storeErrChan:
		log.Fatal("Alarm engine error",
			zap.Error(err),
		)
	}

	log.Info("Alarm engine stopped")
}
