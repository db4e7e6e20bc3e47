package handler

import (
	"github.com/palemoky/doudizhu-server/internal/apperrors"
	"github.com/palemoky/doudizhu-server/internal/game/play"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/protocol/convert"
	"github.com/palemoky/doudizhu-server/internal/server/storage"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// handleGrabLandlord 处理抢/不抢地主
func (h *Handler) handleGrabLandlord(c types.Conn, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.GrabLandlordPayload](msg)
	if err != nil {
		send(c, codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}
	if err := h.play.GrabLandlord(c, payload.Grab); err != nil {
		sendError(c, err)
	}
}

// handlePlayCards 处理出牌，空列表等同于不出
func (h *Handler) handlePlayCards(c types.Conn, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.PlayCardsPayload](msg)
	if err != nil {
		send(c, codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}
	cards, err := convert.InfosToCards(payload.Cards)
	if err != nil {
		sendError(c, apperrors.ErrInvalidCards)
		return
	}
	if err := h.play.PlayCard(c, cards); err != nil {
		sendError(c, err)
	}
}

// handlePass 处理不出
func (h *Handler) handlePass(c types.Conn) {
	if err := h.play.PassTurn(c); err != nil {
		sendError(c, err)
	}
}

// RecordResult 对局结束回调：异步写入战绩，完成后向仍在线的玩家推送最新信息
//
// 在对局房间锁内调用，只启动协程不做阻塞操作。
func (h *Handler) RecordResult(res play.Result) {
	changes := make([]storage.CoinChange, len(res.Seats))
	players := make([]types.Player, len(res.Seats))
	for i, s := range res.Seats {
		changes[i] = storage.CoinChange{
			UserID:     s.Player.GetID(),
			Delta:      s.CoinDelta,
			Won:        s.Won,
			IsLandlord: s.IsLandlord,
		}
		players[i] = s.Player
	}

	h.pending.Go(func() {
		ctx, cancel := storeContext()
		defer cancel()

		log := logger.WithRoom(res.RoomID)
		if err := h.store.RecordResult(ctx, changes); err != nil {
			log.Errorf("❌ 保存战绩失败: %v", err)
			return
		}
		log.Debug("💾 战绩已保存")

		for _, p := range players {
			conn, ok := h.sessions.Player(p.GetID()).(types.Conn)
			if !ok {
				continue
			}
			u, err := h.store.GetUser(ctx, conn.GetID())
			if err != nil {
				continue
			}
			conn.Bind(u.Info())
			send(conn, codec.MustNewMessage(protocol.MsgUserInfo, u.Info()))
		}
	})
}
