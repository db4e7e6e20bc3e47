// Package handler 按消息类型分发客户端请求
package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/palemoky/doudizhu-server/internal/apperrors"
	"github.com/palemoky/doudizhu-server/internal/game/match"
	"github.com/palemoky/doudizhu-server/internal/game/play"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/server/session"
	"github.com/palemoky/doudizhu-server/internal/server/storage"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// storeTimeout 单次存储操作超时
const storeTimeout = 5 * time.Second

// Deps 处理器依赖
type Deps struct {
	Store    storage.AccountStore
	Sessions *session.Manager
	Match    *match.Session
	Play     *play.Session

	// Maintenance 返回 true 时拒绝进入匹配，可为 nil
	Maintenance func() bool
}

// Handler 消息处理器
type Handler struct {
	store       storage.AccountStore
	sessions    *session.Manager
	match       *match.Session
	play        *play.Session
	maintenance func() bool

	handlers map[protocol.MessageType]handlerFunc
	public   map[protocol.MessageType]bool // 无需登录的消息

	pending sync.WaitGroup // 异步写入的战绩
}

// handlerFunc 统一的处理器函数签名
type handlerFunc func(c types.Conn, msg *protocol.Message)

// New 创建处理器
func New(deps Deps) *Handler {
	h := &Handler{
		store:       deps.Store,
		sessions:    deps.Sessions,
		match:       deps.Match,
		play:        deps.Play,
		maintenance: deps.Maintenance,
	}
	h.initHandlers()
	return h
}

// initHandlers 初始化消息处理器映射
func (h *Handler) initHandlers() {
	h.handlers = map[protocol.MessageType]handlerFunc{
		// 连接操作
		protocol.MsgPing:      h.handlePing,
		protocol.MsgReconnect: h.handleReconnect,

		// 账号
		protocol.MsgRegister:    h.handleRegister,
		protocol.MsgLogin:       h.handleLogin,
		protocol.MsgGetUserInfo: func(c types.Conn, _ *protocol.Message) { h.handleGetUserInfo(c) },
		protocol.MsgGetRankList: func(c types.Conn, _ *protocol.Message) { h.handleGetRankList(c) },
		protocol.MsgGetStats:    func(c types.Conn, _ *protocol.Message) { h.handleGetStats(c) },
		protocol.MsgGetOnline:   func(c types.Conn, _ *protocol.Message) { h.handleGetOnline(c) },

		// 匹配
		protocol.MsgMatchEnter:   func(c types.Conn, _ *protocol.Message) { h.handleMatchEnter(c) },
		protocol.MsgMatchExit:    func(c types.Conn, _ *protocol.Message) { h.handleMatchExit(c) },
		protocol.MsgMatchReady:   func(c types.Conn, _ *protocol.Message) { h.handleMatchReady(c, true) },
		protocol.MsgMatchUnready: func(c types.Conn, _ *protocol.Message) { h.handleMatchReady(c, false) },

		// 游戏操作
		protocol.MsgGrabLandlord: h.handleGrabLandlord,
		protocol.MsgPlayCards:    h.handlePlayCards,
		protocol.MsgPass:         func(c types.Conn, _ *protocol.Message) { h.handlePass(c) },
	}
	h.public = map[protocol.MessageType]bool{
		protocol.MsgPing:      true,
		protocol.MsgReconnect: true,
		protocol.MsgRegister:  true,
		protocol.MsgLogin:     true,
		protocol.MsgGetOnline: true,
	}
}

// Handle 处理消息
func (h *Handler) Handle(c types.Conn, msg *protocol.Message) {
	handler, ok := h.handlers[msg.Type]
	if !ok {
		logger.LogWarn("⚠️ 未知消息类型: '%s' (连接: %s, Payload长度=%d bytes)", msg.Type, c.ConnID(), len(msg.Payload))
		send(c, codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}
	if !h.public[msg.Type] && !c.IsLoggedIn() {
		sendError(c, apperrors.ErrNotLoggedIn)
		return
	}
	handler(c, msg)
}

// Wait 等待异步写入完成，用于优雅关闭
func (h *Handler) Wait() {
	h.pending.Wait()
}

func storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

func send(c types.Conn, msg *protocol.Message) {
	if err := c.SendMessage(msg); err != nil {
		logger.LogDebug("📴 发送 %s 到连接 %s 失败: %v", msg.Type, c.ConnID(), err)
	}
}

// sendError 回复错误：GameError 使用其错误码，其他错误视为存储异常
func sendError(c types.Conn, err error) {
	var gameErr *apperrors.GameError
	if errors.As(err, &gameErr) {
		send(c, codec.NewErrorMessage(gameErr.Code))
		return
	}
	logger.LogError("❌ 处理请求失败 (连接: %s): %v", c.ConnID(), err)
	send(c, codec.NewErrorMessage(protocol.ErrCodeStorage))
}
