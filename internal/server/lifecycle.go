package server

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
)

// 优雅关闭时检查对局的间隔
const shutdownCheckInterval = time.Second

// monitorStats 定期输出服务器状态
func (s *Server) monitorStats() {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			stats := s.match.Stats()

			logger.LogInfo("📊 [监控] 连接: %d/%d | 在线: %d | 匹配中: %d | 对局: %d | Goroutines: %d | 内存: %.2f MB",
				len(s.semaphore), s.maxConnections,
				s.sessions.OnlineCount(),
				stats.Players,
				s.play.Count(),
				runtime.NumGoroutine(),
				float64(m.Alloc)/1024/1024)
		}
	}
}

// EnterMaintenanceMode 进入维护模式：拒绝新连接和新的匹配
func (s *Server) EnterMaintenanceMode() {
	s.maintenanceMu.Lock()
	s.maintenanceMode = true
	s.maintenanceMu.Unlock()

	s.BroadcastToLobby(codec.NewErrorMessageWithText(protocol.ErrCodeServerMaintenance,
		"👷🏻‍♂️ 维护模式：停止新的匹配"))
	logger.LogInfo("🔧 进入维护模式：停止新连接和匹配")
}

// IsMaintenanceMode 是否处于维护模式
func (s *Server) IsMaintenanceMode() bool {
	s.maintenanceMu.RLock()
	defer s.maintenanceMu.RUnlock()
	return s.maintenanceMode
}

// GracefulShutdown 进入维护模式，等待进行中的对局结束后关闭
func (s *Server) GracefulShutdown(timeout time.Duration) {
	s.EnterMaintenanceMode()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(shutdownCheckInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		active := s.play.Count()
		if active == 0 {
			logger.LogInfo("✅ 所有对局已结束")
			break
		}
		logger.LogInfo("⏳ 等待 %d 个对局结束...", active)
		<-ticker.C
	}
	if active := s.play.Count(); active > 0 {
		logger.LogWarn("⚠️ 超时，仍有 %d 个对局进行中，强制关闭", active)
		s.BroadcastToLobby(codec.NewErrorMessageWithText(protocol.ErrCodeServerMaintenance,
			fmt.Sprintf("🚧 服务器停机维护，%d 个对局被中止", active)))
	}

	s.Shutdown()
}

// Shutdown 立即关闭：停止对局计时、断开所有连接、等待战绩写入后释放存储
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.stop)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.shutdownHTTP(ctx)

		s.play.Shutdown()

		s.clientsMu.RLock()
		clients := make([]*Client, 0, len(s.clients))
		for _, c := range s.clients {
			clients = append(clients, c)
		}
		s.clientsMu.RUnlock()
		for _, c := range clients {
			c.Close()
		}
		s.readers.Wait()

		s.handler.Wait()
		s.sessions.Close()
		s.rateLimiter.Close()
		if err := s.store.Close(); err != nil {
			logger.LogWarn("⚠️ 关闭存储出错: %v", err)
		}
		logger.LogInfo("👋 服务器已关闭")
	})
}
