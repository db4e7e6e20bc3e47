package types

import (
	"github.com/palemoky/doudizhu-server/internal/protocol"
)

// Player 房间可见的玩家（用于打破 game 与 server 之间的循环依赖）
//
// 同一用户的 ID 稳定不变，可作为 map 键。SendMessage 在连接断开时返回错误，
// 调用方不应因此中断对其他玩家的广播。
type Player interface {
	GetID() int64
	GetName() string
	UserInfo() protocol.UserInfo
	SendMessage(msg *protocol.Message) error
}

// Conn 一条客户端连接，登录前 GetID 返回 0
type Conn interface {
	Player
	ConnID() string
	IsLoggedIn() bool
	Bind(info protocol.UserInfo)
	Unbind()
}
