package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/doudizhu-server/internal/game/card"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/protocol/convert"
)

func apply(t *testing.T, gs *GameState, msgType protocol.MessageType, payload any) string {
	t.Helper()
	event, handled, err := gs.Apply(codec.MustNewMessage(msgType, payload))
	require.NoError(t, err)
	require.True(t, handled)
	return event
}

func TestCardCounter(t *testing.T) {
	t.Parallel()
	cc := NewCardCounter()
	assert.Equal(t, card.DeckSize, cc.Total())
	assert.Equal(t, 4, cc.Remaining(card.WeightA))
	assert.Equal(t, 1, cc.Remaining(card.WeightRedJoker))

	cc.Deduct(card.MustParse("AAR"))
	assert.Equal(t, 2, cc.Remaining(card.WeightA))
	assert.Zero(t, cc.Remaining(card.WeightRedJoker))

	// 不会扣成负数
	cc.Deduct(card.MustParse("R"))
	assert.Zero(t, cc.Remaining(card.WeightRedJoker))
	assert.Equal(t, card.DeckSize-3, cc.Total())

	cc.Reset()
	assert.Equal(t, card.DeckSize, cc.Total())
}

func TestGameState_FullRound(t *testing.T) {
	t.Parallel()
	gs := NewGameState()
	assert.False(t, gs.InGame())

	hand := card.MustParse("33344455566677782")
	apply(t, gs, protocol.MsgDealCards, protocol.DealCardsPayload{
		RoomID: 9,
		Seat:   1,
		Seats: []protocol.SeatInfo{
			{Seat: 0, User: protocol.UserInfo{Username: "alice"}},
			{Seat: 1, User: protocol.UserInfo{Username: "bob"}},
			{Seat: 2, User: protocol.UserInfo{Username: "carol"}},
		},
		Cards: convert.CardsToInfos(hand),
	})
	require.True(t, gs.InGame())
	assert.Equal(t, int64(9), gs.RoomID)
	assert.Len(t, gs.Hand, 17)
	assert.Equal(t, card.Weight2, gs.Hand[0].Weight(), "手牌从大到小排列")
	assert.Equal(t, card.DeckSize-17, gs.Counter.Total())
	assert.Equal(t, "alice", gs.SeatName(0))
	assert.Equal(t, "你", gs.SeatName(1))

	event := apply(t, gs, protocol.MsgGrab, protocol.SeatPayload{Seat: 0})
	assert.Contains(t, event, "alice")

	apply(t, gs, protocol.MsgLandlord, protocol.LandlordPayload{
		Seat:       0,
		UnderCards: convert.CardsToInfos(card.MustParse("BRA")),
	})
	assert.Equal(t, 0, gs.Landlord)
	assert.False(t, gs.IsLandlord())
	assert.Len(t, gs.Hand, 17, "别人的底牌不进自己手里")
	assert.Equal(t, 20, gs.Seats[0].CardsLeft)

	apply(t, gs, protocol.MsgTurnStart, protocol.TurnPayload{Seat: 0, Phase: protocol.PhasePlayCard, Timeout: 30})
	assert.False(t, gs.MyTurn())
	assert.True(t, gs.MustLead())

	apply(t, gs, protocol.MsgCardPlayed, protocol.CardPlayedPayload{
		Seat:      0,
		Cards:     convert.CardsToInfos(card.MustParse("BR")),
		HandType:  "王炸",
		CardsLeft: 18,
	})
	assert.Equal(t, 18, gs.Seats[0].CardsLeft)
	assert.Zero(t, gs.Counter.Remaining(card.WeightBlackJoker))

	apply(t, gs, protocol.MsgTurnStart, protocol.TurnPayload{Seat: 1, Phase: protocol.PhasePlayCard, Timeout: 30})
	require.True(t, gs.MyTurn())
	assert.False(t, gs.MustLead())
	_, ok := gs.Hint()
	assert.False(t, ok, "压不过王炸")

	apply(t, gs, protocol.MsgPlayerPass, protocol.SeatPayload{Seat: 1})
	apply(t, gs, protocol.MsgPlayerPass, protocol.SeatPayload{Seat: 2})
	apply(t, gs, protocol.MsgTurnStart, protocol.TurnPayload{Seat: 0, Phase: protocol.PhasePlayCard})
	assert.Empty(t, gs.LastPlayed, "一轮结束后清空上家出牌")

	apply(t, gs, protocol.MsgCardPlayed, protocol.CardPlayedPayload{
		Seat:      0,
		Cards:     convert.CardsToInfos(card.MustParse("A")),
		HandType:  "单张",
		CardsLeft: 17,
	})
	apply(t, gs, protocol.MsgTurnStart, protocol.TurnPayload{Seat: 1, Phase: protocol.PhasePlayCard})
	hint, ok := gs.Hint()
	require.True(t, ok)
	require.Len(t, hint, 1)
	assert.Equal(t, card.Weight2, hint[0].Weight())

	picked, err := gs.PickCards("333")
	require.NoError(t, err)
	apply(t, gs, protocol.MsgCardPlayed, protocol.CardPlayedPayload{
		Seat:      1,
		Cards:     convert.CardsToInfos(picked),
		HandType:  "三张",
		CardsLeft: 14,
	})
	assert.Len(t, gs.Hand, 14)
	assert.Equal(t, 14, gs.Seats[1].CardsLeft)
	assert.Equal(t, 1, gs.Counter.Remaining(card.Weight3), "自己出的牌不重复扣除")

	event = apply(t, gs, protocol.MsgGameOver, protocol.GameOverPayload{
		WinnerSeat:   2,
		LandlordSeat: 0,
		Multiple:     2,
		Seats:        []protocol.SeatResult{{Seat: 1, CoinDelta: 20}},
	})
	assert.Contains(t, event, "农民获胜")
	assert.Contains(t, event, "+20")
	assert.False(t, gs.InGame())
	assert.False(t, gs.MyTurn())
}

func TestGameState_LandlordGetsUnderCards(t *testing.T) {
	t.Parallel()
	gs := NewGameState()
	apply(t, gs, protocol.MsgDealCards, protocol.DealCardsPayload{
		Seat:  2,
		Cards: convert.CardsToInfos(card.MustParse("33344455566677788")),
	})
	apply(t, gs, protocol.MsgLandlord, protocol.LandlordPayload{
		Seat:       2,
		UnderCards: convert.CardsToInfos(card.MustParse("BR2")),
	})
	assert.True(t, gs.IsLandlord())
	assert.Len(t, gs.Hand, 20)
	assert.Equal(t, card.WeightRedJoker, gs.Hand[0].Weight())
	assert.Equal(t, card.DeckSize-20, gs.Counter.Total())

	// 首出时提示整手以外的最小牌型
	apply(t, gs, protocol.MsgTurnStart, protocol.TurnPayload{Seat: 2, Phase: protocol.PhasePlayCard})
	_, ok := gs.Hint()
	assert.True(t, ok)

	apply(t, gs, protocol.MsgRedeal, nil)
	assert.Empty(t, gs.Hand)
	assert.Equal(t, 2, gs.Seat, "重新发牌保留座位")
	assert.Equal(t, -1, gs.Landlord)

	apply(t, gs, protocol.MsgGameAbort, nil)
	assert.False(t, gs.InGame())
	assert.Equal(t, -1, gs.Seat)
}

func TestGameState_PickCards(t *testing.T) {
	t.Parallel()
	gs := NewGameState()
	gs.Hand = card.MustParse("BQQ10109")
	card.Sort(gs.Hand)

	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "pair", input: "QQ", want: 2},
		{name: "ten as 10", input: "1010", want: 2},
		{name: "ten as T", input: "tt", want: 2},
		{name: "joker", input: "b", want: 1},
		{name: "with spaces", input: "Q Q 9", want: 3},
		{name: "not enough", input: "999", wantErr: true},
		{name: "missing joker", input: "R", wantErr: true},
		{name: "bad char", input: "Z", wantErr: true},
		{name: "empty", input: " ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			picked, err := gs.PickCards(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, picked, tt.want)
		})
	}
}

func TestGameState_IgnoresOtherMessages(t *testing.T) {
	t.Parallel()
	gs := NewGameState()
	_, handled, err := gs.Apply(codec.MustNewMessage(protocol.MsgOnlineCount, protocol.OnlineCountPayload{Count: 3}))
	require.NoError(t, err)
	assert.False(t, handled)
}
