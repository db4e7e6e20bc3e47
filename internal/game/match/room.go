package match

import (
	"slices"

	"github.com/palemoky/doudizhu-server/internal/game/room"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// roomState 房间在池中的生命周期
type roomState int

const (
	stateEmpty  roomState = iota // 在空房间队列中，未注册房间号
	stateActive                  // 已注册，有成员
)

// member 匹配房间成员
type member struct {
	player types.Player
	ready  bool
}

// AllReadyEvent 房间进入全员准备状态
type AllReadyEvent struct {
	RoomID  int64
	Players []types.Player // 按进入顺序，即座位顺序
}

// Room 匹配房间
//
// 除 Snapshot 外的方法都要求调用方持有房间锁，Session 负责加锁。
type Room struct {
	room.Base

	members  []*member
	allReady bool // 已触发全员准备，直到有人取消准备或离开

	state  roomState
	queued bool // 是否在可用队列中
}

func newRoom() *Room {
	return &Room{members: make([]*member, 0, room.Capacity)}
}

func (r *Room) indexOf(id int64) int {
	for i, m := range r.members {
		if m.player.GetID() == id {
			return i
		}
	}
	return -1
}

// Has 玩家是否在房间中
func (r *Room) Has(p types.Player) bool {
	return r.indexOf(p.GetID()) >= 0
}

// Enter 加入房间，已在房间或房间已满时返回 false
func (r *Room) Enter(p types.Player) bool {
	if r.Has(p) || r.IsFull() {
		return false
	}
	r.members = append(r.members, &member{player: p})
	return true
}

// Exit 离开房间，不在房间时返回 false
func (r *Room) Exit(p types.Player) bool {
	i := r.indexOf(p.GetID())
	if i < 0 {
		return false
	}
	r.members = slices.Delete(r.members, i, i+1)
	r.allReady = false
	return true
}

// Ready 设置准备，进入全员准备状态时返回事件，每次进入只返回一次
func (r *Room) Ready(p types.Player) *AllReadyEvent {
	i := r.indexOf(p.GetID())
	if i < 0 {
		return nil
	}
	r.members[i].ready = true
	if r.allReady || !r.IsAllReady() {
		return nil
	}
	r.allReady = true
	return &AllReadyEvent{RoomID: r.ID(), Players: r.Members()}
}

// UnReady 取消准备，不在房间时返回 false
func (r *Room) UnReady(p types.Player) bool {
	i := r.indexOf(p.GetID())
	if i < 0 {
		return false
	}
	r.members[i].ready = false
	r.allReady = false
	return true
}

// IsReady 玩家是否已准备
func (r *Room) IsReady(p types.Player) bool {
	i := r.indexOf(p.GetID())
	return i >= 0 && r.members[i].ready
}

// IsFull 人数是否已满
func (r *Room) IsFull() bool {
	return len(r.members) == room.Capacity
}

// IsEmpty 房间是否没有成员
func (r *Room) IsEmpty() bool {
	return len(r.members) == 0
}

// IsAllReady 满员且全部准备
func (r *Room) IsAllReady() bool {
	if !r.IsFull() {
		return false
	}
	for _, m := range r.members {
		if !m.ready {
			return false
		}
	}
	return true
}

// Len 成员数量
func (r *Room) Len() int {
	return len(r.members)
}

// Members 按进入顺序返回成员
func (r *Room) Members() []types.Player {
	players := make([]types.Player, len(r.members))
	for i, m := range r.members {
		players[i] = m.player
	}
	return players
}

// Snapshot 房间快照
func (r *Room) Snapshot() protocol.MatchRoomPayload {
	members := make([]protocol.MatchMember, len(r.members))
	for i, m := range r.members {
		members[i] = protocol.MatchMember{User: m.player.UserInfo(), Ready: m.ready}
	}
	return protocol.MatchRoomPayload{RoomID: r.ID(), Members: members}
}

// Broadcast 向房间成员广播，except 为 nil 时发给所有人
func (r *Room) Broadcast(msg *protocol.Message, except types.Player) {
	room.Broadcast(r.Members(), msg, except)
}

// Clear 清空成员与准备状态，供池化复用
func (r *Room) Clear() {
	clear(r.members)
	r.members = r.members[:0]
	r.allReady = false
}
