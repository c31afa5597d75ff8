package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"quantdesk/alerts"
	"quantdesk/config"
	"quantdesk/engine"
	"quantdesk/event"
	"quantdesk/logger"
	"quantdesk/metrics"
	"quantdesk/monitor"
	"quantdesk/storage"
	"quantdesk/web"
	"quantdesk/worker"
)

// Version 版本号
var Version = "1.2.0"

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	showVersion := flag.Bool("version", false, "显示版本号并退出")
	flag.Parse()

	if *showVersion {
		fmt.Printf("quantdesk %s\n", Version)
		return
	}

	// 加载配置；文件不存在时用默认配置启动
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("⚠️ 配置文件 %s 不存在，使用默认配置", *configPath)
			cfg = config.DefaultConfig()
		} else {
			logger.Fatal("❌ 加载配置失败: %v", err)
		}
	}

	logger.SetLevel(logger.ParseLogLevel(cfg.System.LogLevel))
	if cfg.System.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.System.Timezone); err == nil {
			logger.SetLocation(loc)
		} else {
			logger.Warn("⚠️ 时区 %s 无效，使用本地时区: %v", cfg.System.Timezone, err)
		}
	}
	defer logger.Close()

	logger.Info("🚀 quantdesk %s 启动中...", Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 事件总线
	eventBus := event.NewEventBus(1000)
	defer eventBus.Close()

	// 持久化存储
	store, err := storage.NewStore(&storage.Config{
		Type:            cfg.Database.Type,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal("❌ 初始化数据库失败: %v", err)
	}
	defer store.Close()
	logger.Info("✅ 数据库已连接: %s", cfg.Database.Type)

	// 二级结果缓存（可选）
	l2, err := engine.NewResultCache(&engine.CacheConfig{
		Enabled: cfg.Engine.Cache.Enabled,
		Type:    cfg.Engine.Cache.Type,
		Prefix:  cfg.Engine.Cache.Prefix,
		TTL:     time.Duration(cfg.Engine.Cache.TTL) * time.Second,
		Redis: engine.RedisCacheConfig{
			Addr:     cfg.Engine.Cache.Redis.Addr,
			Password: cfg.Engine.Cache.Redis.Password,
			DB:       cfg.Engine.Cache.Redis.DB,
			PoolSize: cfg.Engine.Cache.Redis.PoolSize,
		},
	})
	if err != nil {
		logger.Fatal("❌ 初始化结果缓存失败: %v", err)
	}
	defer l2.Close()
	engineOpts := []engine.Option{engine.WithResultCache(l2)}

	// worker 池
	workers := cfg.Engine.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool := worker.NewPool(workers, cfg.Engine.QueueSize, engineOpts...)
	defer pool.Close()

	// 预警管理器
	alertManager := alerts.NewManager(store, eventBus)

	// 系统监控
	if cfg.Monitor.Enabled {
		collector := monitor.NewCollector(time.Duration(cfg.Monitor.Interval) * time.Second)
		collector.Start(ctx)
		defer collector.Stop()

		runtimeCollector := metrics.NewSystemMetricsCollector(time.Duration(cfg.Monitor.Interval) * time.Second)
		runtimeCollector.Start()
		defer runtimeCollector.Stop()
		logger.Info("✅ 系统监控已启动，采集间隔 %ds", cfg.Monitor.Interval)
	}

	// 配置热重载
	watcher, err := config.NewWatcher(*configPath)
	if err != nil {
		logger.Warn("⚠️ 配置热重载不可用: %v", err)
	} else if err := watcher.Start(ctx); err != nil {
		logger.Warn("⚠️ 配置热重载启动失败: %v", err)
	} else {
		defer watcher.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case newCfg, ok := <-watcher.Updates():
					if !ok {
						return
					}
					// 进程内只热应用日志级别，其余字段需重启生效
					logger.SetLevel(logger.ParseLogLevel(newCfg.System.LogLevel))
					eventBus.Publish(&event.Event{
						Type: event.EventTypeConfigReloaded,
						Data: map[string]interface{}{"path": *configPath},
					})
					logger.Info("🔄 配置已重载: %s", *configPath)
				case err, ok := <-watcher.Errors():
					if !ok {
						return
					}
					logger.Warn("⚠️ 配置重载失败: %v", err)
				}
			}
		}()
	}

	// Web 服务（REST + WebSocket）
	// 回测用独立 Engine，与 worker 池各自持有缓存
	server := web.NewServer(cfg, pool, engine.New(engineOpts...), store, alertManager, eventBus)
	if err := server.Start(ctx); err != nil {
		logger.Fatal("❌ 启动 Web 服务失败: %v", err)
	}

	eventBus.Publish(&event.Event{
		Type: event.EventTypeSystemStart,
		Data: map[string]interface{}{"version": Version},
	})
	logger.Info("✅ 系统初始化完成，程序正在运行中...")
	logger.Info("💡 按 Ctrl+C 退出程序")

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("🛑 收到退出信号，开始优雅关闭...")
	eventBus.Publish(&event.Event{
		Type: event.EventTypeSystemStop,
		Data: map[string]interface{}{"reason": "收到退出信号"},
	})

	cancel()
	server.Stop()

	// 给事件消费协程留出清理时间
	time.Sleep(500 * time.Millisecond)
	logger.Info("👋 quantdesk 已退出")
}
