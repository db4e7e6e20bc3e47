package handler

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/palemoky/doudizhu-server/internal/apperrors"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/server/storage"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// maxUsernameLen 用户名最大字符数
const maxUsernameLen = 16

// accountCode 把账号错误映射为返回码
func accountCode(err error) int {
	switch {
	case err == nil:
		return protocol.AccountSuccess
	case errors.Is(err, apperrors.ErrUserNotFound):
		return protocol.AccountUserNotFound
	case errors.Is(err, apperrors.ErrUserExist):
		return protocol.AccountUserExist
	case errors.Is(err, apperrors.ErrPasswordMismatch):
		return protocol.AccountPasswordMismatch
	case errors.Is(err, apperrors.ErrUserOnline):
		return protocol.AccountUserOnline
	default:
		return protocol.AccountFailure
	}
}

// parseAccount 解析并校验账号请求
func parseAccount(msg *protocol.Message) (*protocol.AccountPayload, bool) {
	payload, err := codec.ParsePayload[protocol.AccountPayload](msg)
	if err != nil {
		return nil, false
	}
	payload.Username = strings.TrimSpace(payload.Username)
	n := utf8.RuneCountInString(payload.Username)
	if n == 0 || n > maxUsernameLen || payload.PasswordHash == "" {
		return nil, false
	}
	return payload, true
}

// handleRegister 处理注册
func (h *Handler) handleRegister(c types.Conn, msg *protocol.Message) {
	payload, ok := parseAccount(msg)
	if !ok {
		send(c, codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	ctx, cancel := storeContext()
	defer cancel()
	u, err := h.store.Register(ctx, payload.Username, payload.PasswordHash)

	result := protocol.AccountResultPayload{Code: accountCode(err)}
	if err != nil {
		if result.Code == protocol.AccountFailure {
			logger.LogError("❌ 注册用户 %s 失败: %v", payload.Username, err)
		}
	} else {
		info := u.Info()
		result.User = &info
		logger.WithPlayer(u.ID, u.Username).Info("📝 新用户注册")
	}
	send(c, codec.MustNewMessage(protocol.MsgRegisterResult, result))
}

// handleLogin 处理登录：存储校验后绑定连接并签发重连令牌
func (h *Handler) handleLogin(c types.Conn, msg *protocol.Message) {
	payload, ok := parseAccount(msg)
	if !ok {
		send(c, codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}
	if c.IsLoggedIn() {
		send(c, codec.MustNewMessage(protocol.MsgLoginResult, protocol.AccountResultPayload{
			Code: protocol.AccountUserOnline,
		}))
		return
	}

	ctx, cancel := storeContext()
	defer cancel()
	u, err := h.store.Login(ctx, payload.Username, payload.PasswordHash)
	if err != nil {
		code := accountCode(err)
		if code == protocol.AccountFailure {
			logger.LogError("❌ 用户 %s 登录失败: %v", payload.Username, err)
		}
		send(c, codec.MustNewMessage(protocol.MsgLoginResult, protocol.AccountResultPayload{Code: code}))
		return
	}

	c.Bind(u.Info())
	token, err := h.sessions.Login(c)
	if err != nil {
		// 重连的旧会话仍在线，存储中的在线标记由那条连接负责清除
		c.Unbind()
		send(c, codec.MustNewMessage(protocol.MsgLoginResult, protocol.AccountResultPayload{
			Code: accountCode(err),
		}))
		return
	}

	info := u.Info()
	send(c, codec.MustNewMessage(protocol.MsgLoginResult, protocol.AccountResultPayload{
		Code:           protocol.AccountSuccess,
		User:           &info,
		ReconnectToken: token,
	}))
	logger.WithPlayer(u.ID, u.Username).Info("✅ 玩家登录")
}

// handleGetUserInfo 返回当前用户信息，并刷新连接上缓存的金币
func (h *Handler) handleGetUserInfo(c types.Conn) {
	ctx, cancel := storeContext()
	defer cancel()
	u, err := h.store.GetUser(ctx, c.GetID())
	if err != nil {
		sendError(c, err)
		return
	}
	c.Bind(u.Info())
	send(c, codec.MustNewMessage(protocol.MsgUserInfo, u.Info()))
}

// handleGetRankList 金币排行榜前 10 名
func (h *Handler) handleGetRankList(c types.Conn) {
	ctx, cancel := storeContext()
	defer cancel()
	entries, err := h.store.RankList(ctx, storage.DefaultRankLimit)
	if err != nil {
		sendError(c, err)
		return
	}

	items := make([]protocol.RankItem, len(entries))
	for i, e := range entries {
		items[i] = protocol.RankItem{Rank: e.Rank, Username: e.Username, Coin: e.Coin}
	}
	send(c, codec.MustNewMessage(protocol.MsgRankList, protocol.RankListPayload{Items: items}))
}

// handleGetStats 个人战绩
func (h *Handler) handleGetStats(c types.Conn) {
	ctx, cancel := storeContext()
	defer cancel()
	u, err := h.store.GetUser(ctx, c.GetID())
	if err != nil {
		sendError(c, err)
		return
	}

	winRate := 0.0
	if u.Games > 0 {
		winRate = float64(u.Wins) / float64(u.Games) * 100
	}
	send(c, codec.MustNewMessage(protocol.MsgStats, protocol.StatsPayload{
		Games:         u.Games,
		Wins:          u.Wins,
		WinRate:       winRate,
		LandlordGames: u.LandlordGames,
		LandlordWins:  u.LandlordWins,
		CurrentStreak: u.CurrentStreak,
		MaxWinStreak:  u.MaxWinStreak,
	}))
}

// handleGetOnline 在线人数
func (h *Handler) handleGetOnline(c types.Conn) {
	send(c, codec.MustNewMessage(protocol.MsgOnlineCount, protocol.OnlineCountPayload{
		Count: h.sessions.OnlineCount(),
	}))
}
