package play

import (
	"github.com/palemoky/doudizhu-server/internal/apperrors"
	"github.com/palemoky/doudizhu-server/internal/game/card"
	"github.com/palemoky/doudizhu-server/internal/game/rule"
	"github.com/palemoky/doudizhu-server/internal/game/turn"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/protocol/convert"
)

// checkTurn 当前是否允许 seat 在 phase 阶段行动
func (r *Room) checkTurn(seat int, phase turn.Phase) error {
	if !r.started || r.over {
		return apperrors.ErrGameNotStart
	}
	if r.turns.Phase() != phase {
		return apperrors.ErrWrongPhase
	}
	if !r.turns.IsCurrentTurn(seat) {
		return apperrors.ErrNotYourTurn
	}
	return nil
}

// GrabLandlord 抢/不抢地主
func (r *Room) GrabLandlord(seat int, isGrab bool) error {
	r.Lock()
	defer r.Unlock()

	if err := r.checkTurn(seat, turn.PhaseGrabLandlord); err != nil {
		return err
	}
	r.grab(seat, isGrab)
	return nil
}

// PlayCard 出牌，空列表等同于不出
func (r *Room) PlayCard(seat int, cards []card.Card) error {
	r.Lock()
	defer r.Unlock()

	if err := r.checkTurn(seat, turn.PhasePlayCard); err != nil {
		return err
	}
	if len(cards) == 0 {
		return r.pass(seat)
	}
	return r.play(seat, cards)
}

// PassTurn 不出
func (r *Room) PassTurn(seat int) error {
	r.Lock()
	defer r.Unlock()

	if err := r.checkTurn(seat, turn.PhasePlayCard); err != nil {
		return err
	}
	return r.pass(seat)
}

func (r *Room) grab(seat int, isGrab bool) {
	if r.grabs.Decided() {
		return
	}

	var (
		landlord int
		decided  bool
	)
	if isGrab {
		r.broadcast(codec.MustNewMessage(protocol.MsgGrab, protocol.SeatPayload{Seat: seat}))
		landlord, decided = r.grabs.Grab(seat)
	} else {
		r.broadcast(codec.MustNewMessage(protocol.MsgNoGrab, protocol.SeatPayload{Seat: seat}))
		landlord, decided = r.grabs.Pass(seat)
	}

	if !decided {
		r.turns.EndTurn(seat)
		return
	}
	r.becomeLandlord(landlord)
}

// becomeLandlord 地主确定：收底牌、亮底牌、进入出牌阶段
func (r *Room) becomeLandlord(seat int) {
	log := logger.WithRoom(r.ID())
	if seat == turn.NoLandlord {
		if r.opts.Redeal {
			log.Info("🔄 无人抢地主，重新发牌")
			r.redeal()
			return
		}
		// 手牌保持原样，本局作废，玩家可以重新匹配
		log.Warnf("⚠️ 无人抢地主 (不抢 %d 次)，未开启重新发牌，本局作废", r.grabs.Passes())
		r.abort()
		return
	}

	r.landlord = seat
	hand := r.seats[seat].hand
	hand.Add(r.under...)
	hand.Sort()

	r.broadcast(codec.MustNewMessage(protocol.MsgLandlord, protocol.LandlordPayload{
		Seat:       seat,
		UnderCards: convert.CardsToInfos(r.under),
	}))
	log.Infof("👑 座位 %d (%s) 成为地主，抢 %d 次", seat, r.seats[seat].player.GetName(), r.grabs.Grabs())

	r.turns.EndGrabPhase(seat)
}

// abort 结束对局且不结算
func (r *Room) abort() {
	r.over = true
	r.stopTimer()
	r.broadcast(codec.MustNewMessage(protocol.MsgGameAbort, nil))
	if r.onAbort != nil {
		r.onAbort(r.ID())
	}
}

// redeal 重新洗牌发牌，从 0 号座位重新抢地主
func (r *Room) redeal() {
	r.stopTimer()
	r.grabs.Reset()
	r.turns.Reset()
	r.broadcast(codec.MustNewMessage(protocol.MsgRedeal, nil))
	r.dealCards()
	r.turns.Start(0)
}

func (r *Room) play(seat int, cards []card.Card) error {
	hand := r.seats[seat].hand
	set := rule.Classify(cards)

	if r.opts.ValidatePlays {
		if !set.IsValid() {
			return apperrors.ErrInvalidCards
		}
		if !hand.Contains(cards) {
			return apperrors.ErrCardsNotHeld
		}
		if !r.leads(seat) && !set.Beats(r.lastHand) {
			return apperrors.ErrCannotBeat
		}
	}

	hand.Remove(cards...)
	r.lastHand = set
	r.lastSeat = seat
	if set.Type == rule.Bomb || set.Type == rule.JokerBomb {
		r.bombs++
	}

	r.broadcast(codec.MustNewMessage(protocol.MsgCardPlayed, protocol.CardPlayedPayload{
		Seat:      seat,
		Cards:     convert.CardsToInfos(cards),
		HandType:  set.Type.String(),
		CardsLeft: hand.Len(),
	}))

	if hand.IsEmpty() {
		r.gameOver(seat)
		return nil
	}
	r.turns.EndTurn(seat)
	return nil
}

func (r *Room) pass(seat int) error {
	if r.opts.ValidatePlays && r.leads(seat) {
		return apperrors.ErrMustPlay
	}
	r.broadcast(codec.MustNewMessage(protocol.MsgPlayerPass, protocol.SeatPayload{Seat: seat}))
	r.turns.EndTurn(seat)
	return nil
}

// gameOver 有人出完手牌：停止计时、结算并广播
func (r *Room) gameOver(winner int) {
	r.over = true
	r.stopTimer()

	res := r.settle(winner)
	r.broadcast(codec.MustNewMessage(protocol.MsgGameOver, res.Payload()))

	role := "农民"
	if res.LandlordWon {
		role = "地主"
	}
	logger.WithRoom(r.ID()).Infof("🎮 游戏结束！获胜者: %s (%s)，倍数 %d",
		r.seats[winner].player.GetName(), role, res.Multiple)

	if r.onGameOver != nil {
		r.onGameOver(res)
	}
}
