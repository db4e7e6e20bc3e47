// Package client 终端客户端的连接与本地牌局状态
package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// 心跳检测间隔
	heartbeatInterval = 5 * time.Second
	// 最大重连次数
	maxReconnectAttempts = 5
	// 首次重连间隔，之后指数退避
	reconnectInterval = 2 * time.Second
	maxBackoff        = 30 * time.Second

	bufferSize = 256
)

var (
	ErrClosed     = errors.New("连接已关闭")
	ErrSendFull   = errors.New("发送缓冲区已满")
	errNotStarted = errors.New("尚未连接")
)

// link 一次底层连接，重连时整体替换
type link struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Client WebSocket 客户端，重连后继续使用同一个接收通道
type Client struct {
	ServerURL string
	format    codec.Format

	mu     sync.RWMutex
	cur    *link
	closed bool
	token  string

	receive   chan *protocol.Message
	quit      chan struct{}
	closeOnce sync.Once

	latency        atomic.Int64
	reconnecting   atomic.Bool
	reconnectDelay time.Duration

	// 回调，在内部协程中调用
	OnReconnecting func(attempt, maxTries int)
	OnClose        func()
}

// NewClient 创建客户端，format 需要与服务端配置一致
func NewClient(serverURL string, format codec.Format) *Client {
	return &Client{
		ServerURL:      serverURL,
		format:         format,
		receive:        make(chan *protocol.Message, bufferSize),
		quit:           make(chan struct{}),
		reconnectDelay: reconnectInterval,
	}
}

// HashPassword 密码只以哈希形式发送
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Connect 连接服务器并启动读写协程
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, c.ServerURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

func (c *Client) attach(conn *websocket.Conn) {
	l := &link{
		conn: conn,
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	c.mu.Lock()
	c.cur = l
	c.mu.Unlock()

	go c.readPump(l)
	go c.writePump(l)
}

// Messages 服务器消息
func (c *Client) Messages() <-chan *protocol.Message {
	return c.receive
}

// Send 编码并发送一条消息
func (c *Client) Send(msgType protocol.MessageType, payload any) error {
	msg, err := codec.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	data, err := codec.Encode(c.format, msg)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	if c.cur == nil {
		return errNotStarted
	}
	select {
	case c.cur.send <- data:
		return nil
	default:
		return ErrSendFull
	}
}

// Ping 发送带时间戳的心跳，用于计算延迟
func (c *Client) Ping() error {
	return c.Send(protocol.MsgPing, protocol.PingPayload{Timestamp: time.Now().UnixMilli()})
}

// StartHeartbeat 定时发送心跳直到关闭
func (c *Client) StartHeartbeat() {
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !c.reconnecting.Load() {
					_ = c.Ping()
				}
			case <-c.quit:
				return
			}
		}
	}()
}

// Latency 最近一次心跳往返（毫秒）
func (c *Client) Latency() int64 {
	return c.latency.Load()
}

// Token 当前的重连令牌
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// IsReconnecting 是否正在重连
func (c *Client) IsReconnecting() bool {
	return c.reconnecting.Load()
}

// Close 关闭连接，不再重连
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		cur := c.cur
		c.mu.Unlock()

		close(c.quit)
		if cur != nil {
			_ = cur.conn.Close()
		}
	})
}

func (c *Client) readPump(l *link) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
		}
		close(l.done)
		_ = l.conn.Close()
		c.handleReadExit(l)
	}()

	_ = l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.LogWarn("⚠️ 读取错误: %v", err)
			}
			return
		}
		msg, err := codec.Decode(c.format, data)
		if err != nil {
			logger.LogWarn("消息解析错误: %v", err)
			continue
		}
		c.processMessage(msg)
	}
}

func (c *Client) handleReadExit(l *link) {
	c.mu.RLock()
	stale := c.closed || c.cur != l
	c.mu.RUnlock()
	// 已关闭或已被新连接替换，重连循环自己负责
	if stale || c.reconnecting.Load() {
		return
	}
	if c.Token() != "" {
		go c.tryReconnect()
		return
	}
	c.Close()
	if c.OnClose != nil {
		c.OnClose()
	}
}

// processMessage 先处理令牌和延迟，再交给界面
func (c *Client) processMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.MsgLoginResult:
		if p, err := codec.ParsePayload[protocol.AccountResultPayload](msg); err == nil && p.ReconnectToken != "" {
			c.setToken(p.ReconnectToken)
		}
	case protocol.MsgReconnected:
		if p, err := codec.ParsePayload[protocol.ReconnectedPayload](msg); err == nil && p.ReconnectToken != "" {
			c.setToken(p.ReconnectToken)
		}
	case protocol.MsgPong:
		if p, err := codec.ParsePayload[protocol.PongPayload](msg); err == nil {
			c.latency.Store(time.Now().UnixMilli() - p.ClientTimestamp)
		}
		return
	}

	select {
	case c.receive <- msg:
	case <-c.quit:
	}
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) writePump(l *link) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
		}
		ticker.Stop()
		_ = l.conn.Close()
	}()

	msgType := websocket.BinaryMessage
	if c.format == codec.FormatJSON {
		msgType = websocket.TextMessage
	}

	for {
		select {
		case data := <-l.send:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(msgType, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-l.done:
			return
		case <-c.quit:
			_ = l.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// tryReconnect 指数退避重连，成功后用令牌恢复登录
func (c *Client) tryReconnect() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}

	backoff := c.reconnectDelay
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		if c.OnReconnecting != nil {
			c.OnReconnecting(attempt, maxReconnectAttempts)
		}

		select {
		case <-time.After(backoff):
		case <-c.quit:
			return
		}
		backoff = min(backoff*2, maxBackoff)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			logger.LogDebug("🔄 第 %d 次重连失败: %v", attempt, err)
			continue
		}
		c.attach(conn)

		if err := c.Send(protocol.MsgReconnect, protocol.ReconnectPayload{Token: c.Token()}); err != nil {
			_ = conn.Close()
			continue
		}
		// 成功与否由 reconnected 或 error 消息通知界面
		c.reconnecting.Store(false)
		return
	}

	c.reconnecting.Store(false)
	c.Close()
	if c.OnClose != nil {
		c.OnClose()
	}
}
