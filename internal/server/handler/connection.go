package handler

import (
	"time"

	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/server/session"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// handlePing 处理心跳消息
func (h *Handler) handlePing(c types.Conn, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.PingPayload](msg)
	if err != nil {
		return
	}

	// 立即回复 pong
	send(c, codec.MustNewMessage(protocol.MsgPong, protocol.PongPayload{
		ClientTimestamp: payload.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	}))
}

// handleReconnect 处理断线重连：校验令牌，绑定到原用户并恢复对局座位
func (h *Handler) handleReconnect(c types.Conn, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.ReconnectPayload](msg)
	if err != nil || payload.Token == "" {
		send(c, codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}
	if c.IsLoggedIn() {
		send(c, codec.NewErrorMessage(protocol.ErrCodeUserOnline))
		return
	}

	_, err = h.sessions.Reconnect(payload.Token, func(claims *session.Claims) types.Player {
		c.Bind(protocol.UserInfo{UserID: claims.UserID, Username: claims.Username})
		return c
	})
	if err != nil {
		logger.LogInfo("🔄 连接 %s 重连失败: %v", c.ConnID(), err)
		sendError(c, err)
		return
	}

	// 补全头像与金币
	ctx, cancel := storeContext()
	defer cancel()
	if u, err := h.store.GetUser(ctx, c.GetID()); err == nil {
		c.Bind(u.Info())
	} else {
		logger.LogWarn("⚠️ 重连后读取用户 %d 失败: %v", c.GetID(), err)
	}

	token, err := h.sessions.Token(c)
	if err != nil {
		logger.LogWarn("⚠️ 重新签发令牌失败: %v", err)
	}
	inGame := h.play.Rebind(c)

	send(c, codec.MustNewMessage(protocol.MsgReconnected, protocol.ReconnectedPayload{
		User:           c.UserInfo(),
		InGame:         inGame,
		ReconnectToken: token,
	}))
	logger.WithPlayer(c.GetID(), c.GetName()).Infof("🔄 重连成功，对局中: %v", inGame)
}

// Disconnect 连接断开：退出匹配，保留登录会话等待重连
//
// 对局中的座位保留，超时由回合计时器代为操作。
func (h *Handler) Disconnect(c types.Conn) {
	if !c.IsLoggedIn() {
		return
	}
	log := logger.WithPlayer(c.GetID(), c.GetName())

	h.match.ExitRoom(c)
	if !h.sessions.SetOffline(c) {
		// 已被新连接接管
		return
	}

	ctx, cancel := storeContext()
	defer cancel()
	if err := h.store.Logout(ctx, c.GetID()); err != nil {
		log.Errorf("❌ 标记离线失败: %v", err)
	}
	log.Info("👋 玩家断开连接")
}
