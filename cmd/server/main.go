package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/palemoky/doudizhu-server/internal/config"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/server"
	"github.com/palemoky/doudizhu-server/internal/server/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	envPath := flag.String("env", ".env", "环境变量文件路径")
	flag.Parse()

	// .env 需要在读取配置前载入
	if err := config.LoadDotEnv(*envPath); err != nil {
		log.Fatalf("读取 %s 失败: %v", *envPath, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("加载配置文件失败，使用默认配置: %v", err)
		cfg = config.Default()
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		cancel()
		log.Fatalf("连接存储失败: %v", err)
	}
	// 上次进程遗留的在线标记
	if err := store.ClearOnline(ctx); err != nil {
		cancel()
		log.Fatalf("清除在线状态失败: %v", err)
	}
	cancel()

	srv, err := server.New(cfg, store)
	if err != nil {
		log.Fatalf("创建服务器失败: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		sig := <-quit
		logger.LogInfo("🛑 收到信号 %v，正在关闭服务器...", sig)
		srv.GracefulShutdown(cfg.Game.ShutdownTimeoutDuration())
		close(done)
	}()

	logger.LogInfo("🎮 斗地主服务器启动中 (存储: %s)", cfg.Storage.Driver)
	if err := srv.Start(); err != nil {
		log.Fatalf("服务器启动失败: %v", err)
	}
	<-done
}
