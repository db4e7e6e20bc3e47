//go:build !production

package testutil

import (
	"sync"

	"github.com/google/uuid"

	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/types"
)

// FakeConn 未登录的记录型连接，实现 types.Conn
type FakeConn struct {
	*RecordingPlayer

	id   string
	mu   sync.RWMutex
	info protocol.UserInfo
	auth bool
}

var _ types.Conn = (*FakeConn)(nil)

// NewConn 创建未登录连接
func NewConn() *FakeConn {
	return &FakeConn{RecordingPlayer: &RecordingPlayer{}, id: uuid.NewString()}
}

func (c *FakeConn) ConnID() string { return c.id }

func (c *FakeConn) GetID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info.UserID
}

func (c *FakeConn) GetName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info.Username
}

func (c *FakeConn) UserInfo() protocol.UserInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

func (c *FakeConn) IsLoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

func (c *FakeConn) Bind(info protocol.UserInfo) {
	c.mu.Lock()
	c.info = info
	c.auth = true
	c.mu.Unlock()
}

func (c *FakeConn) Unbind() {
	c.mu.Lock()
	c.info = protocol.UserInfo{}
	c.auth = false
	c.mu.Unlock()
}
