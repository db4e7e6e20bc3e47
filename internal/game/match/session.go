// Package match 实现匹配池：玩家进入匹配房间、准备，满员全部准备后交给对局。
//
// 两级加锁：Session 的四个集合各自并发安全，房间成员变更另外持有房间锁。
// Session 不会在持有集合锁时去获取房间锁。
package match

import (
	"errors"
	"fmt"

	"github.com/palemoky/doudizhu-server/internal/game/room"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// 内部账目错误，出现即说明存在 bug，以 panic 抛出
var (
	ErrDuplicateExit   = errors.New("match: tracked player is not in its room")
	ErrRoomIDCollision = errors.New("match: room id already registered")
	ErrLostPlayer      = errors.New("match: room member is not tracked")
)

// Stats 匹配池统计
type Stats struct {
	Players   int // 匹配中的玩家
	Rooms     int // 已注册的房间
	Available int // 可用队列长度
	Empty     int // 空房间队列长度
}

// Session 匹配池
type Session struct {
	seq        *room.Sequence
	onAllReady func(AllReadyEvent)

	players   *registry[int64, *Room] // 玩家 → 房间，存在即表示匹配中
	rooms     *registry[int64, *Room] // 房间号 → 房间
	available queue                   // 未满的房间
	empty     queue                   // 已清空、可复用的房间
}

// NewSession 创建匹配池，onAllReady 在房间锁释放后调用
func NewSession(seq *room.Sequence, onAllReady func(AllReadyEvent)) *Session {
	return &Session{
		seq:        seq,
		onAllReady: onAllReady,
		players:    newRegistry[int64, *Room](),
		rooms:      newRegistry[int64, *Room](),
	}
}

// EnterRoom 进入匹配，已在匹配中时重发当前房间快照并返回该房间
func (s *Session) EnterRoom(p types.Player) *Room {
	id := p.GetID()
	if !s.players.SetIfAbsent(id, nil) {
		r := s.lockRoomOf(p)
		if r == nil {
			// 首次进入尚未完成
			return nil
		}
		defer r.Unlock()
		sendSnapshot(p, r)
		return r
	}

	r := s.claim()
	defer r.Unlock()

	r.Enter(p)
	s.players.Set(id, r)
	if !r.IsFull() && !r.queued {
		r.queued = true
		s.available.Push(r)
	}

	logger.WithRoom(r.ID()).Infof("🔍 玩家 %s 进入匹配房间，当前 %d 人", p.GetName(), r.Len())

	sendSnapshot(p, r)
	r.Broadcast(codec.MustNewMessage(protocol.MsgMatchEnter, protocol.MatchUserPayload{
		RoomID: r.ID(),
		User:   p.UserInfo(),
	}), p)
	return r
}

// sendSnapshot 发送房间快照，调用方持有房间锁
func sendSnapshot(p types.Player, r *Room) {
	if err := p.SendMessage(codec.MustNewMessage(protocol.MsgMatchRoom, r.Snapshot())); err != nil {
		logger.LogWarn("📴 发送匹配房间快照给玩家 %s 失败: %v", p.GetName(), err)
	}
}

// claim 取一个未满的房间并加锁返回：优先可用队列，其次复用空房间，最后新建
func (s *Session) claim() *Room {
	for {
		r, ok := s.available.Pop()
		if !ok {
			break
		}
		r.Lock()
		r.queued = false
		if r.state == stateActive && !r.IsFull() {
			return r
		}
		// 出队前房间已被清空或填满，丢弃这条过期记录
		r.Unlock()
	}

	r, ok := s.empty.Pop()
	if !ok {
		r = newRoom()
	}
	r.Lock()
	id := s.seq.Next()
	if !s.rooms.SetIfAbsent(id, r) {
		r.Unlock()
		panic(fmt.Errorf("%w: %d", ErrRoomIDCollision, id))
	}
	r.SetID(id)
	r.state = stateActive
	return r
}

// lockRoomOf 找到玩家所在房间并加锁；加锁后再次确认玩家仍属于该房间
func (s *Session) lockRoomOf(p types.Player) *Room {
	r, ok := s.players.Get(p.GetID())
	if !ok || r == nil {
		return nil
	}
	r.Lock()
	if cur, ok := s.players.Get(p.GetID()); !ok || cur != r {
		// 房间已被转入对局，视为不在匹配中
		r.Unlock()
		return nil
	}
	return r
}

// ExitRoom 退出匹配，不在匹配中时返回 nil
func (s *Session) ExitRoom(p types.Player) *Room {
	r := s.lockRoomOf(p)
	if r == nil {
		return nil
	}
	defer r.Unlock()

	if !r.Exit(p) {
		panic(fmt.Errorf("%w: player %d room %d", ErrDuplicateExit, p.GetID(), r.ID()))
	}
	s.players.Delete(p.GetID())

	logger.WithRoom(r.ID()).Infof("🔍 玩家 %s 离开匹配房间，剩余 %d 人", p.GetName(), r.Len())

	r.Broadcast(codec.MustNewMessage(protocol.MsgMatchExit, protocol.MatchUserPayload{
		RoomID: r.ID(),
		User:   p.UserInfo(),
	}), nil)

	if r.IsEmpty() {
		s.recycle(r)
	} else if !r.queued {
		r.queued = true
		s.available.Push(r)
	}
	return r
}

// recycle 注销房间号并放入空房间队列，调用方持有房间锁
func (s *Session) recycle(r *Room) {
	s.rooms.Delete(r.ID())
	r.Clear()
	r.state = stateEmpty
	s.empty.Push(r)
}

// Ready 准备，不在匹配中时返回 false
func (s *Session) Ready(p types.Player) bool {
	r := s.lockRoomOf(p)
	if r == nil {
		return false
	}
	if r.IsReady(p) {
		// 重复准备不再广播
		r.Unlock()
		return true
	}

	ev := r.Ready(p)
	r.Broadcast(codec.MustNewMessage(protocol.MsgMatchReady, protocol.MatchUserPayload{
		RoomID: r.ID(),
		User:   p.UserInfo(),
	}), nil)
	if ev != nil {
		logger.WithRoom(r.ID()).Info("✅ 匹配房间全员准备")
		r.Broadcast(codec.MustNewMessage(protocol.MsgMatchStart, protocol.MatchStartPayload{RoomID: r.ID()}), nil)
	}
	r.Unlock()

	if ev != nil && s.onAllReady != nil {
		s.onAllReady(*ev)
	}
	return true
}

// UnReady 取消准备，不在匹配中时返回 false
func (s *Session) UnReady(p types.Player) bool {
	r := s.lockRoomOf(p)
	if r == nil {
		return false
	}
	defer r.Unlock()

	if !r.IsReady(p) {
		return true
	}
	r.UnReady(p)
	r.Broadcast(codec.MustNewMessage(protocol.MsgMatchUnready, protocol.MatchUserPayload{
		RoomID: r.ID(),
		User:   p.UserInfo(),
	}), nil)
	return true
}

// DestroyRoom 回收全员准备的房间，返回按座位排列的玩家
//
// 若房间在回调前已有人离开或取消准备，返回 false 且不做任何改动。
func (s *Session) DestroyRoom(roomID int64) ([]types.Player, bool) {
	r, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, false
	}
	r.Lock()
	defer r.Unlock()

	if r.state != stateActive || r.ID() != roomID || !r.IsAllReady() {
		return nil, false
	}

	players := r.Members()
	for _, p := range players {
		if cur, ok := s.players.Get(p.GetID()); !ok || cur != r {
			panic(fmt.Errorf("%w: player %d room %d", ErrLostPlayer, p.GetID(), roomID))
		}
		s.players.Delete(p.GetID())
	}
	s.recycle(r)

	logger.WithRoom(roomID).Info("🏠 匹配房间已回收")
	return players, true
}

// IsMatching 玩家是否在匹配中
func (s *Session) IsMatching(p types.Player) bool {
	_, ok := s.players.Get(p.GetID())
	return ok
}

// Stats 统计信息
func (s *Session) Stats() Stats {
	return Stats{
		Players:   s.players.Len(),
		Rooms:     s.rooms.Len(),
		Available: s.available.Len(),
		Empty:     s.empty.Len(),
	}
}
