// Package server 提供 WebSocket 接入：连接管理、安全限制与生命周期
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/palemoky/doudizhu-server/internal/config"
	"github.com/palemoky/doudizhu-server/internal/game/match"
	"github.com/palemoky/doudizhu-server/internal/game/play"
	"github.com/palemoky/doudizhu-server/internal/game/room"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/server/handler"
	"github.com/palemoky/doudizhu-server/internal/server/session"
	"github.com/palemoky/doudizhu-server/internal/server/storage"
)

const (
	// 单 IP 每秒建立连接数上限
	connPerSecond = 5
	// 连接超速后的封禁时长
	connBanDuration = time.Minute
	// 监控日志间隔
	monitorInterval = 30 * time.Second
)

// Server WebSocket 服务器
type Server struct {
	config   *config.Config
	format   codec.Format
	upgrader websocket.Upgrader
	http     *http.Server

	store    storage.AccountStore
	sessions *session.Manager
	match    *match.Session
	play     *play.Session
	handler  *handler.Handler

	clients   map[string]*Client
	clientsMu sync.RWMutex
	readers   sync.WaitGroup // 每个连接的 ReadPump

	// 安全组件
	rateLimiter    *RateLimiter
	originChecker  *OriginChecker
	messageLimiter *MessageRateLimiter

	// 连接控制
	maxConnections int
	semaphore      chan struct{}

	// 维护模式
	maintenanceMode bool
	maintenanceMu   sync.RWMutex

	stop      chan struct{}
	closeOnce sync.Once
}

// New 创建服务器并装配匹配、对局与账号组件
func New(cfg *config.Config, store storage.AccountStore) (*Server, error) {
	format, err := codec.ParseFormat(cfg.Server.Codec)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:         cfg,
		format:         format,
		store:          store,
		sessions:       session.NewManager(session.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLDuration())),
		clients:        make(map[string]*Client),
		rateLimiter:    NewRateLimiter(connPerSecond, cfg.Server.ConnPerMinute, connBanDuration),
		originChecker:  NewOriginChecker(cfg.Server.AllowedOrigins),
		messageLimiter: NewMessageRateLimiter(cfg.Server.MessagesPerSecond),
		maxConnections: cfg.Server.MaxConnections,
		semaphore:      make(chan struct{}, cfg.Server.MaxConnections),
		stop:           make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originChecker.Check,
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// 匹配房间与对局房间共用一个房间号序列
	seq := room.NewSequence()
	s.match = match.NewSession(seq, func(ev match.AllReadyEvent) { s.handler.StartGame(ev) })
	s.play = play.NewSession(seq, play.Options{
		TurnTimeout:   cfg.Game.TurnTimeoutDuration(),
		GrabTimeout:   cfg.Game.GrabTimeoutDuration(),
		BaseCoin:      cfg.Game.BaseCoin,
		ValidatePlays: cfg.Game.ValidatePlays,
		Redeal:        cfg.Game.Redeal(),
	}, func(res play.Result) { s.handler.RecordResult(res) })
	s.handler = handler.New(handler.Deps{
		Store:       store,
		Sessions:    s.sessions,
		Match:       s.match,
		Play:        s.play,
		Maintenance: s.IsMaintenanceMode,
	})

	logger.LogInfo("🔒 安全配置: 连接限制=%d/min, 消息限制=%d/s, 最大连接数=%d, 编码=%s",
		cfg.Server.ConnPerMinute, cfg.Server.MessagesPerSecond, cfg.Server.MaxConnections, format)
	return s, nil
}

// Routes HTTP 路由
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start 启动监听，阻塞直到服务器关闭
func (s *Server) Start() error {
	go s.monitorStats()

	logger.LogInfo("🚀 服务器启动在 ws://%s/ws (CPU核心数: %d)", s.http.Addr, runtime.NumCPU())
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleWebSocket 校验后升级连接并启动读写协程
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := GetClientIP(r)

	if s.IsMaintenanceMode() {
		logger.LogInfo("🔧 维护模式，拒绝新连接: %s", clientIP)
		http.Error(w, "Server is under maintenance, please try again later", http.StatusServiceUnavailable)
		return
	}

	select {
	case s.semaphore <- struct{}{}:
	default:
		logger.LogWarn("🚫 达到最大连接数限制 (%d), IP: %s", s.maxConnections, clientIP)
		http.Error(w, "Server Full", http.StatusServiceUnavailable)
		return
	}
	release := func() { <-s.semaphore }

	if !s.originChecker.Check(r) {
		release()
		logger.LogWarn("🚫 来源验证失败: %s (IP: %s)", r.Header.Get("Origin"), clientIP)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}
	if !s.rateLimiter.Allow(clientIP) {
		release()
		logger.LogWarn("🚫 IP %s 请求过于频繁", clientIP)
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		release()
		logger.LogWarn("WebSocket 升级失败: %v", err)
		return
	}

	client := NewClient(s, conn, clientIP)
	client.release = release
	s.registerClient(client)

	_ = client.SendMessage(codec.MustNewMessage(protocol.MsgConnected, protocol.ConnectedPayload{
		ConnectionID: client.ConnID(),
	}))
	logger.LogDebug("✅ 连接 %s 已建立 (IP: %s)", client.ConnID(), clientIP)

	s.readers.Go(client.ReadPump)
	go client.WritePump()
}

// handleHealth 健康检查接口
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.IsMaintenanceMode() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("MAINTENANCE"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) registerClient(c *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[c.ConnID()] = c
}

func (s *Server) unregisterClient(c *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if _, ok := s.clients[c.ConnID()]; ok {
		delete(s.clients, c.ConnID())
		logger.LogDebug("❌ 连接 %s 已断开", c.ConnID())
	}
}

// shutdownHTTP 停止接受新请求
func (s *Server) shutdownHTTP(ctx context.Context) {
	if err := s.http.Shutdown(ctx); err != nil {
		logger.LogWarn("⚠️ HTTP 服务关闭出错: %v", err)
	}
}
