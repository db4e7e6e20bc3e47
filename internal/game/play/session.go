package play

import (
	"errors"
	"fmt"
	"sync"

	"github.com/palemoky/doudizhu-server/internal/apperrors"
	"github.com/palemoky/doudizhu-server/internal/game/card"
	"github.com/palemoky/doudizhu-server/internal/game/room"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// ErrAlreadySeated 玩家已在其他对局中，说明匹配账目有误
var ErrAlreadySeated = errors.New("play: player already seated")

// entry 会话侧的房间记录，保存座位玩家 ID，结算回调时无需再获取房间锁
type entry struct {
	room    *Room
	userIDs []int64
}

// Session 对局注册表：玩家 → 对局房间
type Session struct {
	seq        *room.Sequence
	opts       Options
	onGameOver func(Result)

	players map[int64]*Room
	rooms   map[int64]entry
	mu      sync.RWMutex
}

// NewSession 创建对局会话，onGameOver 在对局结束时于房间锁内调用，不应阻塞
func NewSession(seq *room.Sequence, opts Options, onGameOver func(Result)) *Session {
	return &Session{
		seq:        seq,
		opts:       opts,
		onGameOver: onGameOver,
		players:    make(map[int64]*Room),
		rooms:      make(map[int64]entry),
	}
}

// CreateRoom 为三名玩家创建对局并开始游戏
func (s *Session) CreateRoom(players []types.Player) *Room {
	s.mu.Lock()
	for _, p := range players {
		if _, ok := s.players[p.GetID()]; ok {
			s.mu.Unlock()
			panic(fmt.Errorf("%w: %d", ErrAlreadySeated, p.GetID()))
		}
	}

	r := NewRoom(s.seq.Next(), players, s.opts, s.finish)
	r.onAbort = s.abandon
	ids := make([]int64, len(players))
	for i, p := range players {
		ids[i] = p.GetID()
		s.players[p.GetID()] = r
	}
	s.rooms[r.ID()] = entry{room: r, userIDs: ids}
	s.mu.Unlock()

	logger.WithRoom(r.ID()).Info("🏠 对局房间已创建")
	r.GameStart()
	return r
}

// finish 对局结束：注销房间，玩家可以重新匹配
func (s *Session) finish(res Result) {
	s.removeRoom(res.RoomID)
	if s.onGameOver != nil {
		s.onGameOver(res)
	}
}

// abandon 对局作废：注销房间但不结算
func (s *Session) abandon(id int64) {
	s.removeRoom(id)
	logger.WithRoom(id).Info("🗑️ 对局已作废，玩家可以重新匹配")
}

func (s *Session) removeRoom(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.rooms[id]
	if !ok {
		return
	}
	delete(s.rooms, id)
	for _, uid := range e.userIDs {
		if s.players[uid] == e.room {
			delete(s.players, uid)
		}
	}
}

// RoomOf 玩家所在的对局，不在对局中返回 nil
func (s *Session) RoomOf(p types.Player) *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.players[p.GetID()]
}

// InGame 玩家是否在对局中
func (s *Session) InGame(p types.Player) bool {
	return s.RoomOf(p) != nil
}

// locate 返回玩家的房间和座位
func (s *Session) locate(p types.Player) (*Room, int, error) {
	r := s.RoomOf(p)
	if r == nil {
		return nil, -1, apperrors.ErrGameNotStart
	}
	seat := r.SeatOf(p.GetID())
	if seat < 0 {
		return nil, -1, apperrors.ErrGameNotStart
	}
	return r, seat, nil
}

// GrabLandlord 玩家抢/不抢地主
func (s *Session) GrabLandlord(p types.Player, isGrab bool) error {
	r, seat, err := s.locate(p)
	if err != nil {
		return err
	}
	return r.GrabLandlord(seat, isGrab)
}

// PlayCard 玩家出牌，空列表表示不出
func (s *Session) PlayCard(p types.Player, cards []card.Card) error {
	r, seat, err := s.locate(p)
	if err != nil {
		return err
	}
	return r.PlayCard(seat, cards)
}

// PassTurn 玩家不出
func (s *Session) PassTurn(p types.Player) error {
	r, seat, err := s.locate(p)
	if err != nil {
		return err
	}
	return r.PassTurn(seat)
}

// Rebind 重连时把新连接绑定到原座位
func (s *Session) Rebind(p types.Player) bool {
	r := s.RoomOf(p)
	if r == nil {
		return false
	}
	return r.Rebind(p)
}

// Count 进行中的对局数量
func (s *Session) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Shutdown 停止所有对局的计时器
func (s *Session) Shutdown() {
	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, e := range s.rooms {
		rooms = append(rooms, e.room)
	}
	s.rooms = make(map[int64]entry)
	s.players = make(map[int64]*Room)
	s.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
	}
	logger.LogInfo("🛑 已停止 %d 个对局", len(rooms))
}
