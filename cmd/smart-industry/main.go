package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"smart-industry/common/logger"
	"smart-industry/internal/config"
	"smart-industry/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "smart-industry")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 创建上下文（SIGINT/SIGTERM 时取消）
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. 创建服务
	app, err := service.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create smart-industry service", zap.Error(err))
	}
	defer app.Close()

	// 5. 启动服务（阻塞到收到信号）
	if err := app.Start(ctx); err != nil {
		log.Error("Service error", zap.Error(err))
		app.Close()
		os.Exit(1)
	}

	log.Info("Smart-industry service stopped")
}
