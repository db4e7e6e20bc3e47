package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/types"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小
	maxMessageSize = 4096

	// 发送缓冲区
	sendBufferSize = 256

	// 超速次数达到后断开连接
	maxRateWarnings = 5
)

var (
	errConnClosed = errors.New("连接已关闭")
	errSendFull   = errors.New("发送缓冲区已满")
)

var _ types.Conn = (*Client)(nil)

// Client 一条 WebSocket 连接，登录后绑定到用户
type Client struct {
	id string
	IP string

	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu       sync.RWMutex
	info     protocol.UserInfo
	loggedIn bool
	closed   bool

	release func() // 归还连接数信号量
	once    sync.Once
}

// NewClient 创建连接
func NewClient(s *Server, conn *websocket.Conn, ip string) *Client {
	return &Client{
		id:     uuid.NewString(),
		IP:     ip,
		server: s,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// ConnID 连接 ID
func (c *Client) ConnID() string { return c.id }

// GetID 登录前为 0
func (c *Client) GetID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info.UserID
}

func (c *Client) GetName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info.Username
}

func (c *Client) UserInfo() protocol.UserInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

func (c *Client) IsLoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loggedIn
}

// Bind 绑定或刷新用户信息
func (c *Client) Bind(info protocol.UserInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = info
	c.loggedIn = true
}

// Unbind 解除用户绑定
func (c *Client) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = protocol.UserInfo{}
	c.loggedIn = false
}

// SendMessage 编码后放入发送队列，队列满时关闭连接
func (c *Client) SendMessage(msg *protocol.Message) error {
	data, err := codec.Encode(c.server.format, msg)
	if err != nil {
		logger.LogError("❌ 消息 %s 编码错误: %v", msg.Type, err)
		return err
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errConnClosed
	}
	select {
	case c.send <- data:
		c.mu.RUnlock()
		return nil
	default:
		c.mu.RUnlock()
	}

	logger.LogWarn("📴 连接 %s 发送缓冲区已满", c.id)
	c.Close()
	return errSendFull
}

// Close 关闭发送队列，WritePump 随后关闭底层连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump 读取并分发消息，返回时触发断线处理
func (c *Client) ReadPump() {
	defer func() {
		c.handleDisconnect()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.LogWarn("⚠️ 连接 %s 读取错误: %v", c.id, err)
			}
			return
		}

		allowed, warning := c.server.messageLimiter.AllowMessage(c.id)
		if !allowed {
			logger.LogWarn("⚠️ 连接 %s (IP: %s) 消息过于频繁", c.id, c.IP)
			_ = c.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeRateLimit, "消息发送过于频繁"))
			if c.server.messageLimiter.Warnings(c.id) > maxRateWarnings {
				logger.LogWarn("🚫 连接 %s 因多次超速被断开", c.id)
				return
			}
			continue
		}
		if warning {
			_ = c.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeRateLimit, "请求过于频繁，请放慢速度"))
		}

		msg, err := codec.Decode(c.server.format, data)
		if err != nil {
			logger.LogDebug("消息解析错误: %v", err)
			_ = c.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch 处理单条消息，panic 只影响这一条
func (c *Client) dispatch(msg *protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
			_ = c.SendMessage(codec.NewErrorMessage(protocol.ErrCodeUnknown))
		}
		codec.Release(msg)
	}()
	c.server.handler.Handle(c, msg)
}

// WritePump 写出发送队列并定时 ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	msgType := websocket.BinaryMessage
	if c.server.format == codec.FormatJSON {
		msgType = websocket.TextMessage
	}

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msgType, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleDisconnect 注销连接并交给处理器保留会话
func (c *Client) handleDisconnect() {
	c.once.Do(func() {
		c.Close()
		c.server.unregisterClient(c)
		c.server.messageLimiter.Remove(c.id)
		c.server.handler.Disconnect(c)
		if c.release != nil {
			c.release()
		}
	})
}
