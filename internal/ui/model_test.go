package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/doudizhu-server/internal/client"
	"github.com/palemoky/doudizhu-server/internal/game/card"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/protocol/convert"
	"github.com/palemoky/doudizhu-server/internal/sound"
)

type sentMsg struct {
	Type    protocol.MessageType
	Payload any
}

type fakeConn struct {
	sent []sentMsg
	err  error
}

func (c *fakeConn) Send(msgType protocol.MessageType, payload any) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMsg{Type: msgType, Payload: payload})
	return nil
}

func (c *fakeConn) Latency() int64 { return 12 }

func (c *fakeConn) last() sentMsg {
	if len(c.sent) == 0 {
		return sentMsg{}
	}
	return c.sent[len(c.sent)-1]
}

type fakeSound struct{ played []string }

func (s *fakeSound) Play(name string) { s.played = append(s.played, name) }

func newTestModel() (*Model, *fakeConn, *fakeSound) {
	conn, snd := &fakeConn{}, &fakeSound{}
	return NewModel(conn, make(chan *protocol.Message), snd), conn, snd
}

func serve(m *Model, msgType protocol.MessageType, payload any) {
	m.Update(ServerMsg{Msg: codec.MustNewMessage(msgType, payload)})
}

func enter(m *Model, line string) tea.Cmd {
	m.input.SetValue(line)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

var alice = protocol.UserInfo{UserID: 1, Username: "alice", IconName: "🐱", Coin: 1000}

func loggedIn(t *testing.T) (*Model, *fakeConn, *fakeSound) {
	t.Helper()
	m, conn, snd := newTestModel()
	serve(m, protocol.MsgConnected, protocol.ConnectedPayload{ConnectionID: "c1"})
	serve(m, protocol.MsgLoginResult, protocol.AccountResultPayload{Code: protocol.AccountSuccess, User: &alice, ReconnectToken: "tok"})
	require.Equal(t, PhaseLobby, m.Phase())
	return m, conn, snd
}

func TestModel_Login(t *testing.T) {
	t.Parallel()
	m, conn, _ := newTestModel()
	assert.Equal(t, PhaseConnecting, m.Phase())

	serve(m, protocol.MsgConnected, protocol.ConnectedPayload{ConnectionID: "c1"})
	require.Equal(t, PhaseLogin, m.Phase())

	enter(m, "login alice")
	assert.Empty(t, conn.sent, "缺少密码不发送")
	assert.True(t, m.noticeErr)

	enter(m, "login alice secret")
	require.Len(t, conn.sent, 1)
	assert.Equal(t, protocol.MsgLogin, conn.last().Type)
	assert.Equal(t, protocol.AccountPayload{Username: "alice", PasswordHash: client.HashPassword("secret")}, conn.last().Payload)

	serve(m, protocol.MsgLoginResult, protocol.AccountResultPayload{Code: protocol.AccountPasswordMismatch})
	assert.Equal(t, PhaseLogin, m.Phase())
	assert.Contains(t, m.notice, "用户名和密码不匹配")

	serve(m, protocol.MsgLoginResult, protocol.AccountResultPayload{Code: protocol.AccountSuccess, User: &alice})
	assert.Equal(t, PhaseLobby, m.Phase())
	assert.Equal(t, protocol.MsgGetOnline, conn.last().Type)
	assert.Contains(t, m.View(), "alice")
}

func TestModel_LobbyCommands(t *testing.T) {
	t.Parallel()
	m, conn, _ := loggedIn(t)

	tests := []struct {
		input string
		want  protocol.MessageType
	}{
		{"match", protocol.MsgMatchEnter},
		{"rank", protocol.MsgGetRankList},
		{"stats", protocol.MsgGetStats},
		{"online", protocol.MsgGetOnline},
		{"info", protocol.MsgGetUserInfo},
	}
	for _, tt := range tests {
		enter(m, tt.input)
		assert.Equal(t, tt.want, conn.last().Type, tt.input)
	}

	serve(m, protocol.MsgRankList, protocol.RankListPayload{Items: []protocol.RankItem{{Rank: 1, Username: "bob", Coin: 2000}}})
	serve(m, protocol.MsgStats, protocol.StatsPayload{Games: 4, Wins: 3, WinRate: 75, CurrentStreak: -2})
	serve(m, protocol.MsgOnlineCount, protocol.OnlineCountPayload{Count: 7})
	view := m.View()
	assert.Contains(t, view, "bob")
	assert.Contains(t, view, "2 连败")
	assert.Contains(t, view, "在线 7")

	assert.NotNil(t, enter(m, "quit"))
}

func TestModel_Matching(t *testing.T) {
	t.Parallel()
	m, conn, _ := loggedIn(t)

	serve(m, protocol.MsgMatchRoom, protocol.MatchRoomPayload{RoomID: 5, Members: []protocol.MatchMember{{User: alice}}})
	require.Equal(t, PhaseMatching, m.Phase())

	bob := protocol.UserInfo{UserID: 2, Username: "bob"}
	serve(m, protocol.MsgMatchEnter, protocol.MatchUserPayload{RoomID: 5, User: bob})
	serve(m, protocol.MsgMatchReady, protocol.MatchUserPayload{RoomID: 5, User: bob})
	// 其他房间的消息忽略
	serve(m, protocol.MsgMatchEnter, protocol.MatchUserPayload{RoomID: 6, User: protocol.UserInfo{UserID: 3}})
	require.Len(t, m.room.Members, 2)
	assert.True(t, m.room.Members[1].Ready)
	assert.Contains(t, m.View(), "2/3")

	serve(m, protocol.MsgMatchExit, protocol.MatchUserPayload{RoomID: 5, User: bob})
	assert.Len(t, m.room.Members, 1)

	enter(m, "r")
	assert.Equal(t, protocol.MsgMatchReady, conn.last().Type)
	enter(m, "u")
	assert.Equal(t, protocol.MsgMatchUnready, conn.last().Type)
	enter(m, "e")
	assert.Equal(t, protocol.MsgMatchExit, conn.last().Type)
	assert.Equal(t, PhaseLobby, m.Phase())
}

func TestModel_Game(t *testing.T) {
	t.Parallel()
	m, conn, snd := loggedIn(t)

	serve(m, protocol.MsgDealCards, protocol.DealCardsPayload{
		RoomID: 5,
		Seat:   0,
		Seats: []protocol.SeatInfo{
			{Seat: 0, User: alice},
			{Seat: 1, User: protocol.UserInfo{Username: "bob"}},
			{Seat: 2, User: protocol.UserInfo{Username: "carol"}},
		},
		Cards: convert.CardsToInfos(card.MustParse("33344455566677782")),
	})
	require.Equal(t, PhaseGame, m.Phase())
	assert.Contains(t, snd.played, sound.EventDeal)

	enter(m, "y")
	assert.True(t, m.noticeErr, "还没轮到自己")

	serve(m, protocol.MsgTurnStart, protocol.TurnPayload{Seat: 0, Phase: protocol.PhaseGrabLandlord, Timeout: 15})
	assert.True(t, m.timerActive)
	assert.Contains(t, snd.played, sound.EventTurn)
	assert.Contains(t, m.View(), "抢地主")

	enter(m, "y")
	assert.Equal(t, sentMsg{Type: protocol.MsgGrabLandlord, Payload: protocol.GrabLandlordPayload{Grab: true}}, conn.last())

	serve(m, protocol.MsgLandlord, protocol.LandlordPayload{Seat: 0, UnderCards: convert.CardsToInfos(card.MustParse("BRA"))})
	serve(m, protocol.MsgTurnStart, protocol.TurnPayload{Seat: 0, Phase: protocol.PhasePlayCard, Timeout: 30})
	require.Len(t, m.game.Hand, 20)

	sent := len(conn.sent)
	enter(m, "p")
	assert.Len(t, conn.sent, sent, "首出不能不出")

	enter(m, "h")
	assert.NotEmpty(t, m.input.Value(), "提示填入输入框")

	enter(m, "99")
	assert.Len(t, conn.sent, sent, "没有的牌不发送")

	enter(m, "333")
	require.Equal(t, protocol.MsgPlayCards, conn.last().Type)
	played := conn.last().Payload.(protocol.PlayCardsPayload)
	assert.Len(t, played.Cards, 3)

	serve(m, protocol.MsgCardPlayed, protocol.CardPlayedPayload{Seat: 0, Cards: played.Cards, HandType: "三张", CardsLeft: 17})
	assert.Contains(t, snd.played, sound.EventPlay)
	assert.NotEmpty(t, m.logs)

	enter(m, "c")
	assert.Contains(t, m.View(), "记牌器")

	serve(m, protocol.MsgGameOver, protocol.GameOverPayload{
		WinnerSeat:   0,
		LandlordSeat: 0,
		LandlordWon:  true,
		Multiple:     1,
		Seats: []protocol.SeatResult{
			{Seat: 0, IsLandlord: true, CoinDelta: 20},
			{Seat: 1, CoinDelta: -10, Cards: convert.CardsToInfos(card.MustParse("KK"))},
			{Seat: 2, CoinDelta: -10},
		},
	})
	require.Equal(t, PhaseGameOver, m.Phase())
	assert.Contains(t, snd.played, sound.EventWin)
	assert.Contains(t, m.View(), "你赢了")

	enter(m, "")
	assert.Equal(t, PhaseLobby, m.Phase())
	assert.Equal(t, protocol.MsgGetUserInfo, conn.last().Type)
	assert.False(t, m.game.InGame())
}

func TestModel_GameAbort(t *testing.T) {
	t.Parallel()
	m, conn, _ := loggedIn(t)

	serve(m, protocol.MsgDealCards, protocol.DealCardsPayload{
		Seat:  1,
		Cards: convert.CardsToInfos(card.MustParse("33344455566677782")),
	})
	serve(m, protocol.MsgTurnStart, protocol.TurnPayload{Seat: 0, Phase: protocol.PhaseGrabLandlord, Timeout: 15})
	require.Equal(t, PhaseGame, m.Phase())

	serve(m, protocol.MsgGameAbort, nil)
	assert.Equal(t, PhaseLobby, m.Phase())
	assert.False(t, m.game.InGame())
	assert.False(t, m.timerActive)
	assert.Contains(t, m.notice, "本局作废")
	assert.Equal(t, protocol.MsgGetUserInfo, conn.last().Type)

	enter(m, "m")
	assert.Equal(t, protocol.MsgMatchEnter, conn.last().Type)
}

func TestModel_ConnectionEvents(t *testing.T) {
	t.Parallel()
	m, conn, _ := loggedIn(t)

	m.Update(ReconnectingMsg{Attempt: 2, MaxTries: 5})
	assert.Contains(t, m.View(), "2/5")

	// 新连接的 connected 不会回到登录界面
	serve(m, protocol.MsgConnected, protocol.ConnectedPayload{ConnectionID: "c2"})
	assert.Equal(t, PhaseLobby, m.Phase())

	serve(m, protocol.MsgReconnected, protocol.ReconnectedPayload{User: alice})
	assert.Empty(t, m.reconnecting)

	serve(m, protocol.MsgError, protocol.ErrorPayload{Code: protocol.ErrCodeServerMaintenance})
	assert.True(t, m.maintenance)
	assert.Contains(t, m.notice, "服务器维护中")

	serve(m, protocol.MsgError, protocol.ErrorPayload{Code: protocol.ErrCodeInvalidToken, Message: "重连令牌无效"})
	assert.Equal(t, PhaseLogin, m.Phase())

	m.Update(ConnClosedMsg{})
	sent := len(conn.sent)
	enter(m, "login alice secret")
	assert.Len(t, conn.sent, sent, "断开后不再发送")
	assert.True(t, m.noticeErr)
}

func TestModel_SendError(t *testing.T) {
	t.Parallel()
	m, conn, _ := loggedIn(t)
	conn.err = errors.New("boom")
	enter(m, "match")
	assert.True(t, m.noticeErr)
	assert.Contains(t, m.notice, "boom")
}
