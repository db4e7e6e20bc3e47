// Package session 登录状态：用户 id 与在线连接的映射，以及断线重连
package session

import (
	"sync"
	"time"

	"github.com/palemoky/doudizhu-server/internal/apperrors"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/types"
)

const (
	// 重连等待时间
	reconnectTimeout = 2 * time.Minute
	// 过期会话清理间隔
	cleanupInterval = time.Minute
)

// PlayerSession 玩家登录会话
type PlayerSession struct {
	UserID   int64
	Username string
	Player   types.Player

	DisconnectedAt time.Time // 断线时间
	IsOnline       bool      // 是否在线
}

// Manager 登录状态管理器
type Manager struct {
	tokens   *TokenIssuer
	sessions map[int64]*PlayerSession // userID -> session
	mu       sync.RWMutex

	now       func() time.Time
	stop      chan struct{}
	closeOnce sync.Once
}

// NewManager 创建登录状态管理器并启动过期会话清理
func NewManager(tokens *TokenIssuer) *Manager {
	return newManager(tokens, time.Now)
}

func newManager(tokens *TokenIssuer, now func() time.Time) *Manager {
	m := &Manager{
		tokens:   tokens,
		sessions: make(map[int64]*PlayerSession),
		now:      now,
		stop:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Login 绑定用户与连接，返回重连令牌；用户已在线时返回 ErrUserOnline
func (m *Manager) Login(p types.Player) (string, error) {
	token, err := m.tokens.Issue(p.GetID(), p.GetName())
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[p.GetID()]; ok && s.IsOnline {
		return "", apperrors.ErrUserOnline
	}
	m.sessions[p.GetID()] = &PlayerSession{
		UserID:   p.GetID(),
		Username: p.GetName(),
		Player:   p,
		IsOnline: true,
	}
	return token, nil
}

// Logout 解除绑定
func (m *Manager) Logout(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// SetOffline 连接断开，保留会话等待重连
//
// 只有 p 仍是该用户当前绑定的连接时才生效，避免旧连接的断开覆盖重连后的状态。
func (m *Manager) SetOffline(p types.Player) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[p.GetID()]
	if !ok || s.Player != p {
		return false
	}
	s.IsOnline = false
	s.DisconnectedAt = m.now()
	return true
}

// Reconnect 校验令牌并把 bind 返回的新连接绑定到原会话
func (m *Manager) Reconnect(token string, bind func(claims *Claims) types.Player) (types.Player, error) {
	claims, err := m.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[claims.UserID]
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}
	if s.IsOnline {
		return nil, apperrors.ErrUserOnline
	}
	if m.now().Sub(s.DisconnectedAt) > reconnectTimeout {
		delete(m.sessions, claims.UserID)
		return nil, apperrors.ErrInvalidToken
	}

	player := bind(claims)
	s.Player = player
	s.IsOnline = true
	s.DisconnectedAt = time.Time{}
	return player, nil
}

// Token 为已登录用户重新签发令牌
func (m *Manager) Token(p types.Player) (string, error) {
	return m.tokens.Issue(p.GetID(), p.GetName())
}

// Player 用户当前绑定的连接，不在线返回 nil
func (m *Manager) Player(userID int64) types.Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok || !s.IsOnline {
		return nil
	}
	return s.Player
}

// IsOnline 检查用户是否在线
func (m *Manager) IsOnline(userID int64) bool {
	return m.Player(userID) != nil
}

// OnlineCount 在线用户数
func (m *Manager) OnlineCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if s.IsOnline {
			n++
		}
	}
	return n
}

// Close 停止清理协程
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.stop) })
}

// cleanupLoop 定期清理过期会话
func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}

// cleanup 清理离线超过重连等待时间的会话
func (m *Manager) cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if !s.IsOnline && now.Sub(s.DisconnectedAt) > reconnectTimeout {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		logger.LogDebug("🧹 清理了 %d 个过期会话", removed)
	}
	return removed
}
