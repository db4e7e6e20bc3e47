// Package play 实现对局房间：发牌、抢地主、出牌、回合计时与结算。
package play

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/palemoky/doudizhu-server/internal/game/card"
	"github.com/palemoky/doudizhu-server/internal/game/room"
	"github.com/palemoky/doudizhu-server/internal/game/rule"
	"github.com/palemoky/doudizhu-server/internal/game/turn"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/protocol/convert"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// UnderCardCount 底牌张数
const UnderCardCount = 3

// Options 对局参数
type Options struct {
	TurnTimeout   time.Duration // 出牌超时，0 表示不计时
	GrabTimeout   time.Duration // 抢地主超时，0 表示不计时
	BaseCoin      int64         // 底分
	ValidatePlays bool          // 校验牌型、持有与大小
	Redeal        bool          // 无人抢地主时重新发牌

	// NewDeck 返回本局使用的牌，为 nil 时使用洗好的整副牌
	NewDeck func() card.Deck
}

func (o Options) deck() card.Deck {
	if o.NewDeck != nil {
		return o.NewDeck()
	}
	d := card.NewDeck()
	d.Shuffle()
	return d
}

// seat 座位：玩家与手牌
type seat struct {
	player types.Player
	hand   *rule.Hand
}

// Room 对局房间
//
// 所有改变状态的入口（出牌、不出、抢地主、超时回调）都持有同一把房间锁。
type Room struct {
	room.Base

	opts       Options
	onGameOver func(Result)
	onAbort    func(roomID int64) // 本局作废时由会话注销房间，在房间锁内调用

	seats    [room.Capacity]seat
	under    []card.Card
	lastHand rule.CardSet
	lastSeat int // 打出 lastHand 的座位，-1 表示本轮还没人出牌
	landlord int
	bombs    int
	started  bool
	over     bool

	turns   *turn.Manager
	grabs   *turn.GrabManager
	turnSeq uint64 // 每次回合开始加一，用于识别过期的超时回调

	timer   *time.Timer
	timerMu sync.Mutex
}

// NewRoom 创建对局房间，players 按座位排列且必须正好三人
func NewRoom(id int64, players []types.Player, opts Options, onGameOver func(Result)) *Room {
	if len(players) != room.Capacity {
		panic(fmt.Sprintf("play: room needs %d players, got %d", room.Capacity, len(players)))
	}
	r := &Room{
		opts:       opts,
		onGameOver: onGameOver,
		lastHand:   rule.Pass(),
		lastSeat:   -1,
		landlord:   turn.NoLandlord,
		grabs:      turn.NewGrabManager(room.Capacity),
	}
	r.SetID(id)
	for i, p := range players {
		r.seats[i] = seat{player: p, hand: rule.NewHand()}
	}
	r.turns = turn.NewManager(room.Capacity, turn.Listener{
		OnTurnStarted: r.onTurnStarted,
		OnTurnEnded:   r.onTurnEnded,
	})
	return r
}

// GameStart 发牌并从 0 号座位开始抢地主
func (r *Room) GameStart() {
	r.Lock()
	defer r.Unlock()

	if r.started {
		return
	}
	r.started = true
	r.dealCards()
	logger.WithRoom(r.ID()).Infof("🎮 游戏开始，玩家: %s, %s, %s",
		r.seats[0].player.GetName(), r.seats[1].player.GetName(), r.seats[2].player.GetName())
	r.turns.Start(0)
}

// dealCards 洗牌后前 3 张为底牌，其余平分给三个座位
func (r *Room) dealCards() {
	deck := r.opts.deck()
	r.under = slices.Clone(deck[:UnderCardCount])
	rest := deck[UnderCardCount:]
	per := len(rest) / room.Capacity
	for i := range r.seats {
		hand := rule.NewHand(rest[i*per : (i+1)*per]...)
		hand.Sort()
		r.seats[i].hand = hand
	}

	r.lastHand = rule.Pass()
	r.lastSeat = -1
	r.landlord = turn.NoLandlord
	r.bombs = 0

	seats := r.seatInfos()
	for i, s := range r.seats {
		msg := codec.MustNewMessage(protocol.MsgDealCards, protocol.DealCardsPayload{
			RoomID: r.ID(),
			Seat:   i,
			Seats:  seats,
			Cards:  convert.CardsToInfos(s.hand.Cards()),
			Score:  s.hand.Score(),
		})
		if err := s.player.SendMessage(msg); err != nil {
			logger.WithRoom(r.ID()).Warnf("📴 发牌给玩家 %s 失败: %v", s.player.GetName(), err)
		}
	}
}

func (r *Room) seatInfos() []protocol.SeatInfo {
	infos := make([]protocol.SeatInfo, len(r.seats))
	for i, s := range r.seats {
		infos[i] = protocol.SeatInfo{Seat: i, User: s.player.UserInfo()}
	}
	return infos
}

func (r *Room) players() []types.Player {
	players := make([]types.Player, len(r.seats))
	for i, s := range r.seats {
		players[i] = s.player
	}
	return players
}

func (r *Room) broadcast(msg *protocol.Message) {
	room.Broadcast(r.players(), msg, nil)
}

// leads 本轮是否由 seat 自由出牌
func (r *Room) leads(seat int) bool {
	return r.lastHand.IsPass() || r.lastSeat == seat
}

// --- 只读访问 ---

// Players 按座位返回玩家
func (r *Room) Players() []types.Player {
	r.Lock()
	defer r.Unlock()
	return r.players()
}

// SeatOf 玩家的座位号，不在房间返回 -1
func (r *Room) SeatOf(userID int64) int {
	r.Lock()
	defer r.Unlock()
	for i, s := range r.seats {
		if s.player.GetID() == userID {
			return i
		}
	}
	return -1
}

// HandOf 座位手牌副本
func (r *Room) HandOf(seat int) []card.Card {
	r.Lock()
	defer r.Unlock()
	if seat < 0 || seat >= len(r.seats) {
		return nil
	}
	return r.seats[seat].hand.Cards()
}

// UnderCards 底牌副本
func (r *Room) UnderCards() []card.Card {
	r.Lock()
	defer r.Unlock()
	return slices.Clone(r.under)
}

// Landlord 地主座位，未确定时为 turn.NoLandlord
func (r *Room) Landlord() int {
	r.Lock()
	defer r.Unlock()
	return r.landlord
}

// LastHand 上一手牌及出牌座位
func (r *Room) LastHand() (rule.CardSet, int) {
	r.Lock()
	defer r.Unlock()
	return r.lastHand, r.lastSeat
}

// Turn 当前座位与阶段
func (r *Room) Turn() (int, turn.Phase) {
	r.Lock()
	defer r.Unlock()
	return r.turns.Current(), r.turns.Phase()
}

// IsCurrentTurn 是否轮到 seat
func (r *Room) IsCurrentTurn(seat int) bool {
	r.Lock()
	defer r.Unlock()
	return !r.over && r.turns.IsCurrentTurn(seat)
}

// IsOver 对局是否已结束
func (r *Room) IsOver() bool {
	r.Lock()
	defer r.Unlock()
	return r.over
}

// Rebind 玩家重连后替换座位上的连接，并补发当前手牌
func (r *Room) Rebind(p types.Player) bool {
	r.Lock()
	defer r.Unlock()
	for i := range r.seats {
		if r.seats[i].player.GetID() != p.GetID() {
			continue
		}
		r.seats[i].player = p
		msg := codec.MustNewMessage(protocol.MsgDealCards, protocol.DealCardsPayload{
			RoomID: r.ID(),
			Seat:   i,
			Seats:  r.seatInfos(),
			Cards:  convert.CardsToInfos(r.seats[i].hand.Cards()),
			Score:  r.seats[i].hand.Score(),
		})
		if err := p.SendMessage(msg); err != nil {
			logger.WithRoom(r.ID()).Warnf("📴 重连补发手牌给座位 %d 失败: %v", i, err)
		}
		return true
	}
	return false
}

// Stop 结束对局但不结算，用于服务器关闭
func (r *Room) Stop() {
	r.Lock()
	defer r.Unlock()
	r.over = true
	r.stopTimer()
}
