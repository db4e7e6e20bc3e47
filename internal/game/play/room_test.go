package play

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/doudizhu-server/internal/apperrors"
	"github.com/palemoky/doudizhu-server/internal/game/card"
	"github.com/palemoky/doudizhu-server/internal/game/rule"
	"github.com/palemoky/doudizhu-server/internal/game/turn"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/testutil"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// fixedDeck 按 底牌 + 座位0 + 座位1 + 座位2 的顺序排列的牌
func fixedDeck(layout string) func() card.Deck {
	return func() card.Deck {
		return card.Deck(card.MustParse(layout))
	}
}

type resultSink struct {
	mu      sync.Mutex
	results []Result
}

func (s *resultSink) record(res Result) {
	s.mu.Lock()
	s.results = append(s.results, res)
	s.mu.Unlock()
}

func (s *resultSink) all() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.results...)
}

func newTestRoom(t *testing.T, opts Options) (*Room, []*testutil.RecordingPlayer, *resultSink) {
	t.Helper()
	ps := testutil.NewPlayers(3)
	sink := &resultSink{}
	r := NewRoom(1, []types.Player{ps[0], ps[1], ps[2]}, opts, sink.record)
	t.Cleanup(r.Stop)
	return r, ps, sink
}

// grabBySeat0 座位 0 抢，其余不抢，座位 0 成为地主
func grabBySeat0(t *testing.T, r *Room) {
	t.Helper()
	require.NoError(t, r.GrabLandlord(0, true))
	require.NoError(t, r.GrabLandlord(1, false))
	require.NoError(t, r.GrabLandlord(2, false))
	require.Equal(t, 0, r.Landlord())
}

func TestRoom_DealCards(t *testing.T) {
	t.Parallel()

	r, ps, _ := newTestRoom(t, Options{})
	r.GameStart()

	all := make(map[card.Card]bool)
	for seat := range 3 {
		hand := r.HandOf(seat)
		assert.Len(t, hand, 17)
		for _, c := range hand {
			all[c] = true
		}

		msg := ps[seat].Last(protocol.MsgDealCards)
		require.NotNil(t, msg)
		deal, err := codec.ParsePayload[protocol.DealCardsPayload](msg)
		require.NoError(t, err)
		assert.Equal(t, seat, deal.Seat)
		assert.Len(t, deal.Cards, 17)
		assert.Len(t, deal.Seats, 3)
	}
	under := r.UnderCards()
	assert.Len(t, under, UnderCardCount)
	for _, c := range under {
		all[c] = true
	}
	assert.Len(t, all, card.DeckSize, "手牌加底牌还原整副牌且无重复")

	// 手牌按权重从大到小
	hand := r.HandOf(0)
	for i := 1; i < len(hand); i++ {
		assert.GreaterOrEqual(t, hand[i-1].Weight(), hand[i].Weight())
	}

	seat, phase := r.Turn()
	assert.Equal(t, 0, seat)
	assert.Equal(t, turn.PhaseGrabLandlord, phase)
}

func TestRoom_TurnGuards(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRoom(t, Options{NewDeck: fixedDeck("JQK345")})

	assert.ErrorIs(t, r.GrabLandlord(0, true), apperrors.ErrGameNotStart)

	r.GameStart()
	assert.ErrorIs(t, r.GrabLandlord(1, true), apperrors.ErrNotYourTurn)
	assert.ErrorIs(t, r.PlayCard(0, card.MustParse("4")), apperrors.ErrWrongPhase)
	assert.ErrorIs(t, r.PassTurn(0), apperrors.ErrWrongPhase)
	assert.True(t, r.IsCurrentTurn(0))
	assert.False(t, r.IsCurrentTurn(1))
}

func TestRoom_LandlordAndGameOver(t *testing.T) {
	t.Parallel()

	r, ps, sink := newTestRoom(t, Options{BaseCoin: 10, NewDeck: fixedDeck("333567")})
	r.GameStart()
	grabBySeat0(t, r)

	// 地主收走底牌
	assert.ElementsMatch(t, card.MustParse("3335"), r.HandOf(0))
	msg := ps[1].Last(protocol.MsgLandlord)
	require.NotNil(t, msg)
	ll, err := codec.ParsePayload[protocol.LandlordPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, 0, ll.Seat)
	assert.Len(t, ll.UnderCards, 3)

	seat, phase := r.Turn()
	assert.Equal(t, 0, seat)
	assert.Equal(t, turn.PhasePlayCard, phase)

	require.NoError(t, r.PlayCard(0, r.HandOf(0)))
	assert.True(t, r.IsOver())

	results := sink.all()
	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, 0, res.WinnerSeat)
	assert.True(t, res.LandlordWon)
	assert.Equal(t, 1, res.Multiple)
	assert.Equal(t, int64(20), res.Seats[0].CoinDelta)
	assert.Equal(t, int64(-10), res.Seats[1].CoinDelta)
	assert.Equal(t, int64(-10), res.Seats[2].CoinDelta)

	played, err := codec.ParsePayload[protocol.CardPlayedPayload](ps[2].Last(protocol.MsgCardPlayed))
	require.NoError(t, err)
	assert.Equal(t, rule.TripleWithOne.String(), played.HandType)
	assert.Zero(t, played.CardsLeft)

	for _, p := range ps {
		assert.Equal(t, 1, p.Count(protocol.MsgGameOver))
	}
	assert.ErrorIs(t, r.PassTurn(1), apperrors.ErrGameNotStart)
}

func TestRoom_BombsDoubleStake(t *testing.T) {
	t.Parallel()

	r, _, sink := newTestRoom(t, Options{BaseCoin: 10, NewDeck: fixedDeck("JQK333344445678")})
	r.GameStart()
	grabBySeat0(t, r)

	require.NoError(t, r.PlayCard(0, card.MustParse("3333")))
	require.NoError(t, r.PlayCard(1, card.MustParse("4444")))

	results := sink.all()
	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, 1, res.WinnerSeat)
	assert.False(t, res.LandlordWon)
	assert.Equal(t, 4, res.Multiple)
	assert.Equal(t, int64(-80), res.Seats[0].CoinDelta)
	assert.Equal(t, int64(40), res.Seats[1].CoinDelta)
	assert.Equal(t, int64(40), res.Seats[2].CoinDelta)
	assert.True(t, res.Seats[2].Won)
	assert.Len(t, res.Seats[0].Cards, 3)
}

func TestRoom_PermissivePlays(t *testing.T) {
	t.Parallel()

	r, ps, _ := newTestRoom(t, Options{NewDeck: fixedDeck("JQK334455")})
	r.GameStart()
	grabBySeat0(t, r)

	// 不校验时，无效牌型与不持有的牌都会被接受
	require.NoError(t, r.PlayCard(0, card.MustParse("3K")))
	set, seat := r.LastHand()
	assert.Equal(t, rule.Invalid, set.Type)
	assert.Equal(t, 0, seat)

	require.NoError(t, r.PlayCard(1, card.MustParse("A")))
	assert.Len(t, r.HandOf(1), 2, "不持有的牌被忽略")

	require.NoError(t, r.PlayCard(2, nil))
	assert.Equal(t, 1, ps[0].Count(protocol.MsgPlayerPass))
	assert.True(t, r.IsCurrentTurn(0))
}

func TestRoom_ValidatedPlays(t *testing.T) {
	t.Parallel()

	r, _, sink := newTestRoom(t, Options{BaseCoin: 10, ValidatePlays: true, NewDeck: fixedDeck("JQK334455")})
	r.GameStart()
	grabBySeat0(t, r)

	assert.ErrorIs(t, r.PassTurn(0), apperrors.ErrMustPlay)
	assert.ErrorIs(t, r.PlayCard(0, card.MustParse("JQK")), apperrors.ErrInvalidCards)
	assert.ErrorIs(t, r.PlayCard(0, card.MustParse("A")), apperrors.ErrCardsNotHeld)
	assert.True(t, r.IsCurrentTurn(0), "被拒绝的出牌不结束回合")

	require.NoError(t, r.PlayCard(0, card.MustParse("33")))
	assert.ErrorIs(t, r.PlayCard(1, card.MustParse("4")), apperrors.ErrCannotBeat)
	require.NoError(t, r.PassTurn(1))
	require.NoError(t, r.PassTurn(2))

	// 两家不出后地主重新首出
	assert.ErrorIs(t, r.PassTurn(0), apperrors.ErrMustPlay)
	require.NoError(t, r.PlayCard(0, card.MustParse("J")))
	assert.ErrorIs(t, r.PlayCard(1, card.MustParse("4")), apperrors.ErrCannotBeat)
	require.NoError(t, r.PlayCard(1, nil))
	assert.Empty(t, sink.all())
}

func TestRoom_RedealWhenNobodyGrabs(t *testing.T) {
	t.Parallel()

	r, ps, _ := newTestRoom(t, Options{Redeal: true})
	r.GameStart()

	require.NoError(t, r.GrabLandlord(0, false))
	require.NoError(t, r.GrabLandlord(1, false))
	require.NoError(t, r.GrabLandlord(2, false))

	for _, p := range ps {
		assert.Equal(t, 1, p.Count(protocol.MsgRedeal))
		assert.Equal(t, 2, p.Count(protocol.MsgDealCards))
	}
	assert.Len(t, r.HandOf(0), 17)
	assert.Equal(t, -1, r.Landlord())
	seat, phase := r.Turn()
	assert.Equal(t, 0, seat)
	assert.Equal(t, turn.PhaseGrabLandlord, phase)

	// 新一局可以正常抢地主
	require.NoError(t, r.GrabLandlord(0, true))
}

func TestRoom_NoRedeal(t *testing.T) {
	t.Parallel()

	r, ps, _ := newTestRoom(t, Options{Redeal: false})
	r.GameStart()
	hand := r.HandOf(0)

	require.NoError(t, r.GrabLandlord(0, false))
	require.NoError(t, r.GrabLandlord(1, false))
	require.NoError(t, r.GrabLandlord(2, false))

	assert.Equal(t, 0, ps[0].Count(protocol.MsgRedeal))
	assert.Equal(t, hand, r.HandOf(0), "手牌保持不变")
	assert.True(t, r.IsOver())
	for _, p := range ps {
		assert.Equal(t, 1, p.Count(protocol.MsgGameAbort))
	}
	assert.ErrorIs(t, r.GrabLandlord(0, true), apperrors.ErrGameNotStart)
}

func TestRoom_NoRedealAfterTimeoutsGoesQuiet(t *testing.T) {
	t.Parallel()

	r, ps, sink := newTestRoom(t, Options{Redeal: false, GrabTimeout: 5 * time.Millisecond})
	var aborted []int64
	var mu sync.Mutex
	r.onAbort = func(id int64) {
		mu.Lock()
		aborted = append(aborted, id)
		mu.Unlock()
	}
	r.GameStart()

	require.Eventually(t, r.IsOver, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// 三次超时不抢后停止，不再有新的回合
	assert.Equal(t, 3, ps[0].Count(protocol.MsgTurnStart))
	assert.Equal(t, 3, ps[0].Count(protocol.MsgNoGrab))
	assert.Equal(t, 1, ps[0].Count(protocol.MsgGameAbort))
	assert.Equal(t, -1, r.Landlord())
	assert.Empty(t, sink.all())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{r.ID()}, aborted)
}

func TestRoom_GrabAfterDecisionIsIgnored(t *testing.T) {
	t.Parallel()

	r, ps, _ := newTestRoom(t, Options{Redeal: false})
	r.GameStart()
	require.NoError(t, r.GrabLandlord(0, false))
	require.NoError(t, r.GrabLandlord(1, false))
	require.NoError(t, r.GrabLandlord(2, false))

	r.Lock()
	r.grab(0, false)
	r.Unlock()
	assert.Equal(t, 3, ps[0].Count(protocol.MsgNoGrab))
}

func TestRoom_GrabTwiceWins(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRoom(t, Options{})
	r.GameStart()

	require.NoError(t, r.GrabLandlord(0, true))
	require.NoError(t, r.GrabLandlord(1, true))
	require.NoError(t, r.GrabLandlord(2, true))
	assert.Equal(t, -1, r.Landlord())
	require.NoError(t, r.GrabLandlord(0, true))
	assert.Equal(t, 0, r.Landlord())
	assert.Len(t, r.HandOf(0), 20)
}

func TestRoom_StaleTimeoutIsIgnored(t *testing.T) {
	t.Parallel()

	r, ps, _ := newTestRoom(t, Options{})
	r.GameStart()

	r.Lock()
	stale := r.turnSeq
	r.Unlock()

	require.NoError(t, r.GrabLandlord(0, true))
	r.handleTimeout(0, stale)
	seat, _ := r.Turn()
	assert.Equal(t, 1, seat)

	r.Lock()
	current := r.turnSeq
	r.Unlock()

	// 超时默认动作只推进一次
	r.handleTimeout(1, current)
	seat, _ = r.Turn()
	assert.Equal(t, 2, seat)
	assert.Equal(t, 1, ps[0].Count(protocol.MsgNoGrab))
}

func TestRoom_GrabTimeoutLeadsToRedeal(t *testing.T) {
	t.Parallel()

	r, ps, _ := newTestRoom(t, Options{GrabTimeout: 10 * time.Millisecond, Redeal: true})
	r.GameStart()

	assert.Eventually(t, func() bool {
		return ps[0].Count(protocol.MsgRedeal) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	r.Stop()
	assert.False(t, r.IsCurrentTurn(0))
}

func TestRoom_PlayTimeoutPasses(t *testing.T) {
	t.Parallel()

	r, ps, _ := newTestRoom(t, Options{TurnTimeout: 10 * time.Millisecond})
	r.GameStart()
	grabBySeat0(t, r)

	assert.Eventually(t, func() bool {
		return ps[1].Count(protocol.MsgPlayerPass) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	r.Stop()
	assert.Len(t, r.HandOf(0), 20, "不校验时超时只做不出")
}

func TestRoom_PlayTimeoutLeadsWithSmallest(t *testing.T) {
	t.Parallel()

	r, ps, _ := newTestRoom(t, Options{TurnTimeout: 10 * time.Millisecond, ValidatePlays: true})
	r.GameStart()
	grabBySeat0(t, r)

	assert.Eventually(t, func() bool {
		return ps[1].Count(protocol.MsgCardPlayed) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	r.Stop()
	assert.Less(t, len(r.HandOf(0)), 20)
}

func TestRoom_Rebind(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRoom(t, Options{})
	r.GameStart()

	fresh := testutil.NewPlayer(2)
	assert.True(t, r.Rebind(fresh))
	assert.Equal(t, 1, fresh.Count(protocol.MsgDealCards))
	assert.Same(t, fresh, r.Players()[1])
	assert.False(t, r.Rebind(testutil.NewPlayer(99)))
}

// 修改全局 logger，不并行执行
func TestRoom_RebindLogsSendFailure(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	r, _, _ := newTestRoom(t, Options{})
	r.GameStart()

	gone := testutil.NewPlayer(3)
	gone.SetOffline(true)
	assert.True(t, r.Rebind(gone), "发送失败仍然换绑座位")
	assert.Same(t, gone, r.Players()[2])
	assert.Contains(t, buf.String(), "重连补发手牌给座位 2 失败")
}
