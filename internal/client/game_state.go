package client

import (
	"errors"
	"fmt"
	"slices"

	"github.com/palemoky/doudizhu-server/internal/game/card"
	"github.com/palemoky/doudizhu-server/internal/game/rule"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/protocol/convert"
)

const (
	seatCount   = 3
	initialHand = 17
)

var errNoCards = errors.New("没有输入牌")

// SeatState 座位上的公开信息
type SeatState struct {
	User       protocol.UserInfo
	CardsLeft  int
	IsLandlord bool
}

// GameState 客户端视角的牌局状态，由服务器消息驱动
type GameState struct {
	RoomID int64
	Seat   int // 自己的座位
	Seats  []SeatState

	Hand       []card.Card
	UnderCards []card.Card
	Landlord   int

	TurnSeat int
	Phase    string
	Timeout  int

	LastPlayed   []card.Card
	LastSeat     int
	LastHandType string

	Result *protocol.GameOverPayload

	Counter *CardCounter
}

// NewGameState 空状态
func NewGameState() *GameState {
	gs := &GameState{}
	gs.Reset()
	return gs
}

// Reset 清空牌局
func (gs *GameState) Reset() {
	*gs = GameState{
		Seat:     -1,
		Seats:    make([]SeatState, seatCount),
		Landlord: -1,
		TurnSeat: -1,
		LastSeat: -1,
		Counter:  NewCardCounter(),
	}
}

// InGame 是否已发牌且未结束
func (gs *GameState) InGame() bool {
	return gs.Seat >= 0 && gs.Result == nil
}

// MyTurn 是否轮到自己
func (gs *GameState) MyTurn() bool {
	return gs.InGame() && gs.TurnSeat == gs.Seat
}

// IsLandlord 自己是否为地主
func (gs *GameState) IsLandlord() bool {
	return gs.Seat >= 0 && gs.Landlord == gs.Seat
}

// SeatName 座位上的玩家名
func (gs *GameState) SeatName(seat int) string {
	if seat < 0 || seat >= len(gs.Seats) {
		return "?"
	}
	if seat == gs.Seat {
		return "你"
	}
	if name := gs.Seats[seat].User.Username; name != "" {
		return name
	}
	return fmt.Sprintf("座位%d", seat)
}

// Apply 处理一条对局消息，返回事件描述；不是对局消息时 handled 为 false
func (gs *GameState) Apply(msg *protocol.Message) (event string, handled bool, err error) {
	switch msg.Type {
	case protocol.MsgDealCards:
		p, err := codec.ParsePayload[protocol.DealCardsPayload](msg)
		if err != nil {
			return "", true, err
		}
		gs.deal(p)
		return fmt.Sprintf("🃏 发牌完成，你在 %d 号座位，手牌评分 %d", p.Seat, p.Score), true, nil

	case protocol.MsgGrab, protocol.MsgNoGrab, protocol.MsgPlayerPass:
		p, err := codec.ParsePayload[protocol.SeatPayload](msg)
		if err != nil {
			return "", true, err
		}
		action := map[protocol.MessageType]string{
			protocol.MsgGrab:       "抢地主",
			protocol.MsgNoGrab:     "不抢",
			protocol.MsgPlayerPass: "不出",
		}[msg.Type]
		return fmt.Sprintf("%s: %s", gs.SeatName(p.Seat), action), true, nil

	case protocol.MsgLandlord:
		p, err := codec.ParsePayload[protocol.LandlordPayload](msg)
		if err != nil {
			return "", true, err
		}
		gs.becomeLandlord(p)
		return fmt.Sprintf("👑 %s 成为地主，底牌: %s", gs.SeatName(p.Seat), card.Format(gs.UnderCards)), true, nil

	case protocol.MsgTurnStart:
		p, err := codec.ParsePayload[protocol.TurnPayload](msg)
		if err != nil {
			return "", true, err
		}
		gs.TurnSeat, gs.Phase, gs.Timeout = p.Seat, p.Phase, p.Timeout
		// 一轮无人压过，回到出牌者手上
		if p.Phase == protocol.PhasePlayCard && p.Seat == gs.LastSeat {
			gs.LastPlayed, gs.LastHandType = nil, ""
		}
		return "", true, nil

	case protocol.MsgTurnEnd:
		return "", true, nil

	case protocol.MsgCardPlayed:
		p, err := codec.ParsePayload[protocol.CardPlayedPayload](msg)
		if err != nil {
			return "", true, err
		}
		cards := toCards(p.Cards)
		gs.played(p.Seat, cards, p.HandType, p.CardsLeft)
		return fmt.Sprintf("%s 出牌 [%s] %s，剩 %d 张", gs.SeatName(p.Seat), p.HandType, card.Format(cards), p.CardsLeft), true, nil

	case protocol.MsgRedeal:
		seat, seats := gs.Seat, gs.Seats
		gs.Reset()
		gs.Seat, gs.Seats = seat, seats
		return "🔄 无人抢地主，重新发牌", true, nil

	case protocol.MsgGameAbort:
		gs.Reset()
		return "🚫 无人抢地主，本局作废", true, nil

	case protocol.MsgGameOver:
		p, err := codec.ParsePayload[protocol.GameOverPayload](msg)
		if err != nil {
			return "", true, err
		}
		gs.Result = p
		gs.TurnSeat = -1
		return gs.resultText(), true, nil
	}
	return "", false, nil
}

func (gs *GameState) deal(p *protocol.DealCardsPayload) {
	gs.Reset()
	gs.RoomID = p.RoomID
	gs.Seat = p.Seat
	for _, s := range p.Seats {
		if s.Seat >= 0 && s.Seat < len(gs.Seats) {
			gs.Seats[s.Seat] = SeatState{User: s.User, CardsLeft: initialHand}
		}
	}
	gs.Hand = toCards(p.Cards)
	card.Sort(gs.Hand)
	gs.Counter.Deduct(gs.Hand)
	// 重连补发时手牌可能已不足 17 张
	if gs.Seat >= 0 && gs.Seat < len(gs.Seats) {
		gs.Seats[gs.Seat].CardsLeft = len(gs.Hand)
	}
}

func (gs *GameState) becomeLandlord(p *protocol.LandlordPayload) {
	gs.Landlord = p.Seat
	gs.UnderCards = toCards(p.UnderCards)
	if p.Seat < 0 || p.Seat >= len(gs.Seats) {
		return
	}
	gs.Seats[p.Seat].IsLandlord = true
	gs.Seats[p.Seat].CardsLeft += len(gs.UnderCards)
	if p.Seat == gs.Seat {
		gs.Hand = append(gs.Hand, gs.UnderCards...)
		card.Sort(gs.Hand)
		gs.Counter.Deduct(gs.UnderCards)
	}
}

func (gs *GameState) played(seat int, cards []card.Card, handType string, left int) {
	if seat == gs.Seat {
		gs.Hand = slices.DeleteFunc(gs.Hand, func(c card.Card) bool { return slices.Contains(cards, c) })
	} else {
		gs.Counter.Deduct(cards)
	}
	if seat >= 0 && seat < len(gs.Seats) {
		gs.Seats[seat].CardsLeft = left
	}
	gs.LastPlayed = cards
	gs.LastSeat = seat
	gs.LastHandType = handType
}

func (gs *GameState) resultText() string {
	r := gs.Result
	side := "农民"
	if r.LandlordWon {
		side = "地主"
	}
	text := fmt.Sprintf("🎉 游戏结束，%s获胜 (倍数 %d)", side, r.Multiple)
	for _, s := range r.Seats {
		if s.Seat == gs.Seat {
			text += fmt.Sprintf("，你的金币 %+d", s.CoinDelta)
		}
	}
	return text
}

// PickCards 按点数从手牌中挑出要出的牌，例如 "334455" 或 "10JQKA"
func (gs *GameState) PickCards(input string) ([]card.Card, error) {
	counts, err := card.ParseWeights(input)
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return nil, errNoCards
	}

	picked := make([]card.Card, 0, len(input))
	for w, n := range counts {
		got := 0
		for _, c := range gs.Hand {
			if got == n {
				break
			}
			if c.Weight() == w {
				picked = append(picked, c)
				got++
			}
		}
		if got < n {
			return nil, fmt.Errorf("你没有足够的 %s", w)
		}
	}
	card.Sort(picked)
	return picked, nil
}

// Hint 提示一手能出的牌，需要跟牌时压过上家
func (gs *GameState) Hint() ([]card.Card, bool) {
	hand := rule.NewHand(gs.Hand...)
	prev := rule.Pass()
	if len(gs.LastPlayed) > 0 && gs.LastSeat != gs.Seat {
		prev = rule.Classify(gs.LastPlayed)
	}
	set, ok := hand.GreaterThan(prev)
	if !ok {
		return nil, false
	}
	return set.Cards, true
}

// MustLead 本轮是否由自己首出
func (gs *GameState) MustLead() bool {
	return len(gs.LastPlayed) == 0 || gs.LastSeat == gs.Seat
}

// toCards 服务端下发的牌不再校验
func toCards(infos []protocol.CardInfo) []card.Card {
	cards := make([]card.Card, len(infos))
	for i, info := range infos {
		cards[i] = convert.InfoToCard(info)
	}
	return cards
}
