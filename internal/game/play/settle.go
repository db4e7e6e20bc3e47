package play

import (
	"github.com/palemoky/doudizhu-server/internal/game/card"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/convert"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// maxBombDoubling 倍数上限为 2^maxBombDoubling
const maxBombDoubling = 20

// SeatResult 单个座位的结算
type SeatResult struct {
	Seat       int
	Player     types.Player
	IsLandlord bool
	Won        bool
	CoinDelta  int64
	Cards      []card.Card // 剩余手牌
}

// Result 一局的结算结果
type Result struct {
	RoomID       int64
	WinnerSeat   int
	LandlordSeat int
	LandlordWon  bool
	Multiple     int
	Seats        []SeatResult
}

// Payload 转换为 game_over 消息
func (res Result) Payload() protocol.GameOverPayload {
	seats := make([]protocol.SeatResult, len(res.Seats))
	for i, s := range res.Seats {
		seats[i] = protocol.SeatResult{
			Seat:       s.Seat,
			UserID:     s.Player.GetID(),
			IsLandlord: s.IsLandlord,
			CoinDelta:  s.CoinDelta,
			Cards:      convert.CardsToInfos(s.Cards),
		}
	}
	return protocol.GameOverPayload{
		WinnerSeat:   res.WinnerSeat,
		LandlordSeat: res.LandlordSeat,
		LandlordWon:  res.LandlordWon,
		Multiple:     res.Multiple,
		Seats:        seats,
	}
}

// settle 结算：每个炸弹翻倍，地主输赢两份，农民各一份
func (r *Room) settle(winner int) Result {
	multiple := 1 << min(r.bombs, maxBombDoubling)
	stake := r.opts.BaseCoin * int64(multiple)
	landlordWon := winner == r.landlord

	res := Result{
		RoomID:       r.ID(),
		WinnerSeat:   winner,
		LandlordSeat: r.landlord,
		LandlordWon:  landlordWon,
		Multiple:     multiple,
		Seats:        make([]SeatResult, len(r.seats)),
	}
	for i, s := range r.seats {
		isLandlord := i == r.landlord
		delta := stake
		if isLandlord {
			delta = 2 * stake
		}
		won := isLandlord == landlordWon
		if !won {
			delta = -delta
		}
		res.Seats[i] = SeatResult{
			Seat:       i,
			Player:     s.player,
			IsLandlord: isLandlord,
			Won:        won,
			CoinDelta:  delta,
			Cards:      s.hand.Cards(),
		}
	}
	return res
}
