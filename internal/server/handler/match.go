package handler

import (
	"github.com/palemoky/doudizhu-server/internal/apperrors"
	"github.com/palemoky/doudizhu-server/internal/game/match"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// handleMatchEnter 进入匹配
func (h *Handler) handleMatchEnter(c types.Conn) {
	if h.maintenance != nil && h.maintenance() {
		send(c, codec.NewErrorMessage(protocol.ErrCodeServerMaintenance))
		return
	}
	if h.play.InGame(c) {
		sendError(c, apperrors.ErrAlreadyInGame)
		return
	}
	h.match.EnterRoom(c)
}

// handleMatchExit 退出匹配
func (h *Handler) handleMatchExit(c types.Conn) {
	if h.match.ExitRoom(c) == nil {
		sendError(c, apperrors.ErrNotMatching)
	}
}

// handleMatchReady 准备/取消准备
func (h *Handler) handleMatchReady(c types.Conn, ready bool) {
	var ok bool
	if ready {
		ok = h.match.Ready(c)
	} else {
		ok = h.match.UnReady(c)
	}
	if !ok {
		sendError(c, apperrors.ErrNotMatching)
	}
}

// StartGame 匹配房间全员准备后回收房间并开局
//
// 回调与 DestroyRoom 之间若有人离开或取消准备，本次开局放弃。
func (h *Handler) StartGame(ev match.AllReadyEvent) {
	players, ok := h.match.DestroyRoom(ev.RoomID)
	if !ok {
		logger.WithRoom(ev.RoomID).Info("⏭️ 匹配房间状态已变化，取消开局")
		return
	}
	h.play.CreateRoom(players)
}
