package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/doudizhu-server/internal/apperrors"
	"github.com/palemoky/doudizhu-server/internal/game/match"
	"github.com/palemoky/doudizhu-server/internal/game/play"
	"github.com/palemoky/doudizhu-server/internal/game/room"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/protocol/convert"
	"github.com/palemoky/doudizhu-server/internal/server/session"
	"github.com/palemoky/doudizhu-server/internal/server/storage"
	"github.com/palemoky/doudizhu-server/internal/testutil"
)

func newTestHandler(t *testing.T, store storage.AccountStore) *Handler {
	t.Helper()
	if store == nil {
		mr := miniredis.RunT(t)
		rs := storage.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 1000)
		t.Cleanup(func() { _ = rs.Close() })
		store = rs
	}

	sessions := session.NewManager(session.NewTokenIssuer("secret", time.Hour))
	seq := room.NewSequence()

	var h *Handler
	matchSess := match.NewSession(seq, func(ev match.AllReadyEvent) { h.StartGame(ev) })
	playSess := play.NewSession(seq, play.Options{BaseCoin: 10}, func(res play.Result) { h.RecordResult(res) })
	h = New(Deps{Store: store, Sessions: sessions, Match: matchSess, Play: playSess})

	t.Cleanup(func() {
		playSess.Shutdown()
		h.Wait()
		sessions.Close()
	})
	return h
}

func request(msgType protocol.MessageType, payload any) *protocol.Message {
	return codec.MustNewMessage(msgType, payload)
}

func lastError(t *testing.T, c *testutil.FakeConn) int {
	t.Helper()
	msg := c.Last(protocol.MsgError)
	require.NotNil(t, msg, "expected an error message")
	p, err := codec.ParsePayload[protocol.ErrorPayload](msg)
	require.NoError(t, err)
	return p.Code
}

func accountResult(t *testing.T, c *testutil.FakeConn, msgType protocol.MessageType) *protocol.AccountResultPayload {
	t.Helper()
	msg := c.Last(msgType)
	require.NotNil(t, msg)
	p, err := codec.ParsePayload[protocol.AccountResultPayload](msg)
	require.NoError(t, err)
	return p
}

// login 注册并登录，返回重连令牌
func login(t *testing.T, h *Handler, c *testutil.FakeConn, name string) string {
	t.Helper()
	account := protocol.AccountPayload{Username: name, PasswordHash: "hash-" + name}
	h.Handle(c, request(protocol.MsgRegister, account))
	require.Equal(t, protocol.AccountSuccess, accountResult(t, c, protocol.MsgRegisterResult).Code)

	h.Handle(c, request(protocol.MsgLogin, account))
	res := accountResult(t, c, protocol.MsgLoginResult)
	require.Equal(t, protocol.AccountSuccess, res.Code)
	require.True(t, c.IsLoggedIn())
	return res.ReconnectToken
}

func TestHandler_UnknownAndUnauthenticated(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, nil)

	tests := []struct {
		name    string
		msgType protocol.MessageType
		want    int
	}{
		{"unknown type", "dance", protocol.ErrCodeInvalidMsg},
		{"match before login", protocol.MsgMatchEnter, protocol.ErrCodeNotLoggedIn},
		{"user info before login", protocol.MsgGetUserInfo, protocol.ErrCodeNotLoggedIn},
		{"play before login", protocol.MsgPass, protocol.ErrCodeNotLoggedIn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := testutil.NewConn()
			h.Handle(c, request(tt.msgType, nil))
			assert.Equal(t, tt.want, lastError(t, c))
		})
	}
}

func TestHandler_Ping(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, nil)
	c := testutil.NewConn()

	h.Handle(c, request(protocol.MsgPing, protocol.PingPayload{Timestamp: 42}))
	msg := c.Last(protocol.MsgPong)
	require.NotNil(t, msg)
	pong, err := codec.ParsePayload[protocol.PongPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, int64(42), pong.ClientTimestamp)
	assert.Positive(t, pong.ServerTimestamp)
}

func TestHandler_Account(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, nil)
	c := testutil.NewConn()
	account := protocol.AccountPayload{Username: "alice", PasswordHash: "hash"}

	h.Handle(c, request(protocol.MsgRegister, protocol.AccountPayload{Username: "  ", PasswordHash: "x"}))
	assert.Equal(t, protocol.ErrCodeInvalidMsg, lastError(t, c))

	h.Handle(c, request(protocol.MsgLogin, account))
	assert.Equal(t, protocol.AccountUserNotFound, accountResult(t, c, protocol.MsgLoginResult).Code)

	h.Handle(c, request(protocol.MsgRegister, account))
	res := accountResult(t, c, protocol.MsgRegisterResult)
	assert.Equal(t, protocol.AccountSuccess, res.Code)
	require.NotNil(t, res.User)
	assert.Equal(t, int64(1000), res.User.Coin)
	assert.False(t, c.IsLoggedIn(), "注册不会自动登录")

	h.Handle(c, request(protocol.MsgRegister, account))
	assert.Equal(t, protocol.AccountUserExist, accountResult(t, c, protocol.MsgRegisterResult).Code)

	h.Handle(c, request(protocol.MsgLogin, protocol.AccountPayload{Username: "alice", PasswordHash: "bad"}))
	assert.Equal(t, protocol.AccountPasswordMismatch, accountResult(t, c, protocol.MsgLoginResult).Code)

	h.Handle(c, request(protocol.MsgLogin, account))
	res = accountResult(t, c, protocol.MsgLoginResult)
	assert.Equal(t, protocol.AccountSuccess, res.Code)
	assert.NotEmpty(t, res.ReconnectToken)
	assert.Equal(t, "alice", c.GetName())

	// 其他连接用同一账号登录
	other := testutil.NewConn()
	h.Handle(other, request(protocol.MsgLogin, account))
	assert.Equal(t, protocol.AccountUserOnline, accountResult(t, other, protocol.MsgLoginResult).Code)
	assert.False(t, other.IsLoggedIn())

	h.Handle(c, request(protocol.MsgGetUserInfo, nil))
	info, err := codec.ParsePayload[protocol.UserInfo](c.Last(protocol.MsgUserInfo))
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)

	h.Handle(c, request(protocol.MsgGetRankList, nil))
	rank, err := codec.ParsePayload[protocol.RankListPayload](c.Last(protocol.MsgRankList))
	require.NoError(t, err)
	require.Len(t, rank.Items, 1)
	assert.Equal(t, 1, rank.Items[0].Rank)

	h.Handle(c, request(protocol.MsgGetStats, nil))
	stats, err := codec.ParsePayload[protocol.StatsPayload](c.Last(protocol.MsgStats))
	require.NoError(t, err)
	assert.Zero(t, stats.Games)

	h.Handle(other, request(protocol.MsgGetOnline, nil))
	online, err := codec.ParsePayload[protocol.OnlineCountPayload](other.Last(protocol.MsgOnlineCount))
	require.NoError(t, err)
	assert.Equal(t, 1, online.Count)
}

func TestHandler_StorageFailure(t *testing.T) {
	t.Parallel()

	store := new(testutil.MockAccountStore)
	store.On("Login", mock.Anything, "bob", "hash").Return(&storage.User{ID: 9, Username: "bob"}, nil)
	store.On("GetUser", mock.Anything, int64(9)).Return(nil, errors.New("connection refused"))
	store.On("RankList", mock.Anything, storage.DefaultRankLimit).Return(nil, errors.New("connection refused"))
	store.On("Register", mock.Anything, "carol", "hash").Return(nil, errors.New("connection refused"))
	h := newTestHandler(t, store)

	c := testutil.NewConn()
	h.Handle(c, request(protocol.MsgRegister, protocol.AccountPayload{Username: "carol", PasswordHash: "hash"}))
	assert.Equal(t, protocol.AccountFailure, accountResult(t, c, protocol.MsgRegisterResult).Code)

	h.Handle(c, request(protocol.MsgLogin, protocol.AccountPayload{Username: "bob", PasswordHash: "hash"}))
	require.True(t, c.IsLoggedIn())

	h.Handle(c, request(protocol.MsgGetUserInfo, nil))
	assert.Equal(t, protocol.ErrCodeStorage, lastError(t, c))
	h.Handle(c, request(protocol.MsgGetRankList, nil))
	assert.Equal(t, protocol.ErrCodeStorage, lastError(t, c))
	store.AssertExpectations(t)
}

func TestHandler_MatchErrors(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, nil)
	c := testutil.NewConn()
	login(t, h, c, "alice")

	h.Handle(c, request(protocol.MsgMatchExit, nil))
	assert.Equal(t, protocol.ErrCodeNotMatching, lastError(t, c))
	h.Handle(c, request(protocol.MsgMatchReady, nil))
	assert.Equal(t, protocol.ErrCodeNotMatching, lastError(t, c))
	h.Handle(c, request(protocol.MsgGrabLandlord, protocol.GrabLandlordPayload{Grab: true}))
	assert.Equal(t, protocol.ErrCodeGameNotStart, lastError(t, c))

	h.Handle(c, request(protocol.MsgMatchEnter, nil))
	assert.Equal(t, 1, c.Count(protocol.MsgMatchRoom))
	assert.True(t, h.match.IsMatching(c))

	// 重复进入只重发快照
	h.Handle(c, request(protocol.MsgMatchEnter, nil))
	assert.Equal(t, 2, c.Count(protocol.MsgMatchRoom))

	// 退出广播不发给自己
	h.Handle(c, request(protocol.MsgMatchExit, nil))
	assert.False(t, h.match.IsMatching(c))
	assert.Equal(t, 0, c.Count(protocol.MsgMatchExit))
}

func TestHandler_AbortedGameAllowsRematch(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, nil)

	conns := make([]*testutil.FakeConn, 3)
	for i := range conns {
		conns[i] = testutil.NewConn()
		login(t, h, conns[i], fmt.Sprintf("user%d", i))
		h.Handle(conns[i], request(protocol.MsgMatchEnter, nil))
	}
	for _, c := range conns {
		h.Handle(c, request(protocol.MsgMatchReady, nil))
	}
	for _, c := range conns {
		require.True(t, h.play.InGame(c))
	}

	// 不重新发牌时三人都不抢，本局作废
	for _, c := range conns {
		h.Handle(c, request(protocol.MsgGrabLandlord, protocol.GrabLandlordPayload{Grab: false}))
	}
	for _, c := range conns {
		assert.Equal(t, 1, c.Count(protocol.MsgGameAbort))
		assert.False(t, h.play.InGame(c))
		assert.Nil(t, c.Last(protocol.MsgGameOver))
	}

	h.Handle(conns[0], request(protocol.MsgMatchEnter, nil))
	assert.True(t, h.match.IsMatching(conns[0]))
	assert.Equal(t, 2, conns[0].Count(protocol.MsgMatchRoom))
}

func TestHandler_Maintenance(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, nil)
	h.maintenance = func() bool { return true }
	c := testutil.NewConn()
	login(t, h, c, "alice")

	h.Handle(c, request(protocol.MsgMatchEnter, nil))
	assert.Equal(t, protocol.ErrCodeServerMaintenance, lastError(t, c))
	assert.False(t, h.match.IsMatching(c))
}

func TestHandler_FullGame(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, nil)

	conns := make([]*testutil.FakeConn, 3)
	tokens := make([]string, 3)
	for i := range conns {
		conns[i] = testutil.NewConn()
		tokens[i] = login(t, h, conns[i], fmt.Sprintf("user%d", i))
		h.Handle(conns[i], request(protocol.MsgMatchEnter, nil))
	}
	for _, c := range conns {
		h.Handle(c, request(protocol.MsgMatchReady, nil))
	}

	for _, c := range conns {
		assert.Equal(t, 1, c.Count(protocol.MsgMatchStart))
		assert.Equal(t, 1, c.Count(protocol.MsgDealCards))
		assert.False(t, h.match.IsMatching(c))
		assert.True(t, h.play.InGame(c))
	}

	// 已在对局中不能再进入匹配
	h.Handle(conns[0], request(protocol.MsgMatchEnter, nil))
	assert.Equal(t, protocol.ErrCodeAlreadyInGame, lastError(t, conns[0]))

	h.Handle(conns[1], request(protocol.MsgGrabLandlord, protocol.GrabLandlordPayload{Grab: true}))
	assert.Equal(t, protocol.ErrCodeNotYourTurn, lastError(t, conns[1]))

	h.Handle(conns[0], request(protocol.MsgGrabLandlord, protocol.GrabLandlordPayload{Grab: true}))
	h.Handle(conns[1], request(protocol.MsgGrabLandlord, protocol.GrabLandlordPayload{Grab: false}))
	h.Handle(conns[2], request(protocol.MsgGrabLandlord, protocol.GrabLandlordPayload{Grab: false}))
	r := h.play.RoomOf(conns[0])
	require.NotNil(t, r)
	require.Equal(t, 0, r.Landlord())

	// 座位 1 断线后用新连接重连
	h.Disconnect(conns[1])
	fresh := testutil.NewConn()
	h.Handle(fresh, request(protocol.MsgReconnect, protocol.ReconnectPayload{Token: tokens[1]}))
	msg := fresh.Last(protocol.MsgReconnected)
	require.NotNil(t, msg)
	rec, err := codec.ParsePayload[protocol.ReconnectedPayload](msg)
	require.NoError(t, err)
	assert.True(t, rec.InGame)
	assert.Equal(t, "user1", rec.User.Username)
	assert.Equal(t, int64(1000), rec.User.Coin)
	assert.NotEmpty(t, rec.ReconnectToken)
	assert.Equal(t, 1, fresh.Count(protocol.MsgDealCards))

	// 地主一手出完（未开启校验）
	h.Handle(conns[0], request(protocol.MsgPlayCards, protocol.PlayCardsPayload{
		Cards: convert.CardsToInfos(r.HandOf(0)),
	}))
	require.True(t, r.IsOver())
	assert.Equal(t, 1, fresh.Count(protocol.MsgGameOver))
	h.Wait()

	coins := map[string]int64{"user0": 1020, "user1": 990, "user2": 990}
	ctx := context.Background()
	for i, c := range []*testutil.FakeConn{conns[0], fresh, conns[2]} {
		u, err := h.store.GetUser(ctx, c.GetID())
		require.NoError(t, err)
		assert.Equal(t, coins[u.Username], u.Coin)
		assert.Equal(t, 1, u.Games)
		assert.Equal(t, coins[u.Username], c.UserInfo().Coin, "seat %d", i)
		assert.Equal(t, 1, c.Count(protocol.MsgUserInfo))
	}

	// 对局结束后可以重新匹配
	assert.False(t, h.play.InGame(conns[0]))
	h.Handle(conns[0], request(protocol.MsgMatchEnter, nil))
	assert.True(t, h.match.IsMatching(conns[0]))
}

func TestHandler_PlayInvalidCards(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, nil)
	c := testutil.NewConn()
	login(t, h, c, "alice")

	h.Handle(c, request(protocol.MsgPlayCards, protocol.PlayCardsPayload{
		Cards: []protocol.CardInfo{{Suit: 9, Number: 99}},
	}))
	assert.Equal(t, protocol.ErrCodeInvalidCards, lastError(t, c))
}

func TestHandler_DisconnectAndReconnect(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, nil)

	c := testutil.NewConn()
	token := login(t, h, c, "alice")
	h.Handle(c, request(protocol.MsgMatchEnter, nil))

	h.Disconnect(c)
	assert.False(t, h.match.IsMatching(c), "断线退出匹配")
	assert.False(t, h.sessions.IsOnline(c.GetID()))

	// 存储中的在线标记已清除，可以用密码重新登录
	relogin := testutil.NewConn()
	h.Handle(relogin, request(protocol.MsgLogin, protocol.AccountPayload{Username: "alice", PasswordHash: "hash-alice"}))
	assert.Equal(t, protocol.AccountSuccess, accountResult(t, relogin, protocol.MsgLoginResult).Code)

	// 已在线时令牌重连被拒绝
	fresh := testutil.NewConn()
	h.Handle(fresh, request(protocol.MsgReconnect, protocol.ReconnectPayload{Token: token}))
	assert.Equal(t, protocol.ErrCodeUserOnline, lastError(t, fresh))
	assert.False(t, fresh.IsLoggedIn())

	h.Disconnect(relogin)
	h.Handle(fresh, request(protocol.MsgReconnect, protocol.ReconnectPayload{Token: token}))
	require.NotNil(t, fresh.Last(protocol.MsgReconnected))
	assert.True(t, fresh.IsLoggedIn())
	assert.Same(t, fresh, h.sessions.Player(fresh.GetID()))

	// 旧连接的断开不影响新连接
	h.Disconnect(c)
	assert.True(t, h.sessions.IsOnline(fresh.GetID()))

	bad := testutil.NewConn()
	h.Handle(bad, request(protocol.MsgReconnect, protocol.ReconnectPayload{Token: "garbage"}))
	assert.Equal(t, protocol.ErrCodeInvalidToken, lastError(t, bad))
}

func TestAccountCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{nil, protocol.AccountSuccess},
		{apperrors.ErrUserNotFound, protocol.AccountUserNotFound},
		{apperrors.ErrUserExist, protocol.AccountUserExist},
		{apperrors.ErrPasswordMismatch, protocol.AccountPasswordMismatch},
		{apperrors.ErrUserOnline, protocol.AccountUserOnline},
		{fmt.Errorf("wrapped: %w", apperrors.ErrUserOnline), protocol.AccountUserOnline},
		{errors.New("boom"), protocol.AccountFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, accountCode(tt.err))
	}
}
