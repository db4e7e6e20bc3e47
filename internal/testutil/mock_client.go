//go:build !production

package testutil

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/doudizhu-server/internal/protocol"
)

// ErrDisconnected 模拟连接已断开
var ErrDisconnected = errors.New("player disconnected")

// MockPlayer 实现 types.Player 的 mock
type MockPlayer struct {
	mock.Mock
}

func (m *MockPlayer) GetID() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

func (m *MockPlayer) GetName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockPlayer) UserInfo() protocol.UserInfo {
	args := m.Called()
	return args.Get(0).(protocol.UserInfo)
}

func (m *MockPlayer) SendMessage(msg *protocol.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

// RecordingPlayer 记录收到的消息，不使用 testify（定时器回调会并发发送）
type RecordingPlayer struct {
	ID   int64
	Name string
	Coin int64

	mu       sync.Mutex
	messages []*protocol.Message
	offline  bool
}

// NewPlayer 创建记录型玩家，名称为 player<id>
func NewPlayer(id int64) *RecordingPlayer {
	return &RecordingPlayer{ID: id, Name: fmt.Sprintf("player%d", id)}
}

// NewPlayers 创建 id 为 1..n 的玩家
func NewPlayers(n int) []*RecordingPlayer {
	players := make([]*RecordingPlayer, n)
	for i := range players {
		players[i] = NewPlayer(int64(i + 1))
	}
	return players
}

func (p *RecordingPlayer) GetID() int64    { return p.ID }
func (p *RecordingPlayer) GetName() string { return p.Name }

func (p *RecordingPlayer) UserInfo() protocol.UserInfo {
	return protocol.UserInfo{UserID: p.ID, Username: p.Name, IconName: "headIcon_0", Coin: p.Coin}
}

func (p *RecordingPlayer) SendMessage(msg *protocol.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.offline {
		return ErrDisconnected
	}
	p.messages = append(p.messages, msg)
	return nil
}

// SetOffline 之后的发送都返回 ErrDisconnected
func (p *RecordingPlayer) SetOffline(offline bool) {
	p.mu.Lock()
	p.offline = offline
	p.mu.Unlock()
}

// Messages 返回已收到消息的副本
func (p *RecordingPlayer) Messages() []*protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*protocol.Message(nil), p.messages...)
}

// Types 已收到消息的类型序列
func (p *RecordingPlayer) Types() []protocol.MessageType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]protocol.MessageType, len(p.messages))
	for i, m := range p.messages {
		types[i] = m.Type
	}
	return types
}

// Count 指定类型的消息数量
func (p *RecordingPlayer) Count(t protocol.MessageType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.messages {
		if m.Type == t {
			n++
		}
	}
	return n
}

// Last 最近一条指定类型的消息，没有时返回 nil
func (p *RecordingPlayer) Last(t protocol.MessageType) *protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.messages) - 1; i >= 0; i-- {
		if p.messages[i].Type == t {
			return p.messages[i]
		}
	}
	return nil
}

// Reset 清空记录
func (p *RecordingPlayer) Reset() {
	p.mu.Lock()
	p.messages = nil
	p.mu.Unlock()
}
