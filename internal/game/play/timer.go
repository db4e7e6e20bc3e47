package play

import (
	"time"

	"github.com/palemoky/doudizhu-server/internal/game/turn"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
)

// phaseName 阶段在协议中的名称
func phaseName(p turn.Phase) string {
	if p == turn.PhasePlayCard {
		return protocol.PhasePlayCard
	}
	return protocol.PhaseGrabLandlord
}

func (r *Room) timeoutFor(p turn.Phase) time.Duration {
	if p == turn.PhasePlayCard {
		return r.opts.TurnTimeout
	}
	return r.opts.GrabTimeout
}

// onTurnStarted 回合开始：广播并启动计时器，在房间锁内调用
func (r *Room) onTurnStarted(seat int, phase turn.Phase) {
	r.turnSeq++
	timeout := r.timeoutFor(phase)
	r.broadcast(codec.MustNewMessage(protocol.MsgTurnStart, protocol.TurnPayload{
		Seat:    seat,
		Phase:   phaseName(phase),
		Timeout: int(timeout / time.Second),
	}))
	r.armTimer(seat, r.turnSeq, timeout)
}

// onTurnEnded 回合结束：取消计时器并广播，在房间锁内调用
func (r *Room) onTurnEnded(seat int, phase turn.Phase) {
	r.stopTimer()
	r.broadcast(codec.MustNewMessage(protocol.MsgTurnEnd, protocol.TurnPayload{
		Seat:  seat,
		Phase: phaseName(phase),
	}))
}

// --- 超时控制 ---

func (r *Room) armTimer(seat int, seq uint64, d time.Duration) {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if d <= 0 {
		return
	}
	r.timer = time.AfterFunc(d, func() {
		r.handleTimeout(seat, seq)
	})
}

func (r *Room) stopTimer() {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// handleTimeout 超时默认动作：抢地主阶段不抢，出牌阶段不出（必须首出时出最小的牌）
//
// 取消计时器是尽力而为，迟到的回调靠回合序号和 IsCurrentTurn 复查识别。
func (r *Room) handleTimeout(seat int, seq uint64) {
	r.Lock()
	defer r.Unlock()

	if r.over || seq != r.turnSeq || !r.turns.IsCurrentTurn(seat) {
		return
	}

	log := logger.WithRoom(r.ID())
	switch r.turns.Phase() {
	case turn.PhaseGrabLandlord:
		log.Infof("⏰ 座位 %d 抢地主超时，自动不抢", seat)
		r.grab(seat, false)
	case turn.PhasePlayCard:
		if r.opts.ValidatePlays && r.leads(seat) {
			set, _ := r.seats[seat].hand.AnyOpeningSet()
			log.Infof("⏰ 座位 %d 出牌超时，自动出 %s", seat, set.Type)
			if err := r.play(seat, set.Cards); err != nil {
				log.Errorf("自动出牌失败: %v", err)
			}
		} else {
			log.Infof("⏰ 座位 %d 出牌超时，自动不出", seat)
			if err := r.pass(seat); err != nil {
				log.Errorf("自动不出失败: %v", err)
			}
		}
	}

	// 默认动作没有结束回合时强制结束；抢地主已有结果时回合由结果推进
	if r.turns.Phase() == turn.PhaseGrabLandlord && r.grabs.Decided() {
		return
	}
	if !r.over && seq == r.turnSeq && r.turns.IsCurrentTurn(seat) {
		r.turns.ForceEnd(seat)
	}
}
