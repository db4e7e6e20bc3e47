// Package room 匹配房间与对局房间共享的基础设施：座位数、房间号序列、广播。
package room

import (
	"sync"
	"sync/atomic"

	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// Capacity 每个房间的座位数
const Capacity = 3

// Sequence 进程内共享的房间号生成器，由调用方创建并注入
type Sequence struct {
	last atomic.Int64
}

// NewSequence 创建从 1 开始的房间号序列
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next 返回下一个房间号，严格递增
func (s *Sequence) Next() int64 {
	return s.last.Add(1)
}

// Base 房间公共部分：房间号与房间锁
type Base struct {
	sync.Mutex
	id int64
}

// ID 房间号
func (b *Base) ID() int64 {
	return b.id
}

// SetID 分配房间号，池化复用的房间会重新分配
func (b *Base) SetID(id int64) {
	b.id = id
}

// Broadcast 向所有玩家发送消息，except 不为 nil 时跳过该玩家
//
// 单个玩家发送失败只记录日志，不影响其余玩家。返回发送失败的数量。
func Broadcast(players []types.Player, msg *protocol.Message, except types.Player) int {
	failed := 0
	for _, p := range players {
		if p == nil {
			continue
		}
		if except != nil && p.GetID() == except.GetID() {
			continue
		}
		if err := p.SendMessage(msg); err != nil {
			failed++
			logger.LogWarn("📴 发送 %s 给玩家 %s 失败: %v", msg.Type, p.GetName(), err)
		}
	}
	return failed
}
