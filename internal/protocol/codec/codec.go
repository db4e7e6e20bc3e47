package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/palemoky/doudizhu-server/internal/protocol"
)

// Format 线路编码格式
type Format string

const (
	// FormatProtobuf 二进制信封：字段 1 为消息类型，字段 2 为 JSON payload
	FormatProtobuf Format = "protobuf"
	// FormatJSON 纯文本 JSON，便于调试
	FormatJSON Format = "json"
)

// 信封字段编号
const (
	fieldType    protowire.Number = 1
	fieldPayload protowire.Number = 2
)

var (
	ErrUnknownFormat = errors.New("未知的编码格式")
	ErrMissingType   = errors.New("消息缺少类型")
)

// 读循环每条消息都会解码，Message 与 JSON 编码缓冲复用
var (
	messages = sync.Pool{New: func() any { return new(protocol.Message) }}
	buffers  = sync.Pool{New: func() any { return new(bytes.Buffer) }}
)

func acquire() *protocol.Message {
	return messages.Get().(*protocol.Message)
}

// Release 归还 Decode 得到的消息，之后不能再使用 msg
//
// 广播的消息会被多个连接引用，不要归还。
func Release(msg *protocol.Message) {
	if msg == nil {
		return
	}
	*msg = protocol.Message{}
	messages.Put(msg)
}

// ParseFormat 解析配置中的编码格式，空字符串视为 protobuf
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatProtobuf:
		return FormatProtobuf, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// NewMessage 创建一个新消息，payload 编码为 JSON
func NewMessage(msgType protocol.MessageType, payload any) (*protocol.Message, error) {
	msg := &protocol.Message{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = data
	}
	return msg, nil
}

// MustNewMessage 创建消息，失败时 panic
func MustNewMessage(msgType protocol.MessageType, payload any) *protocol.Message {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// Encode 按指定格式编码消息
func Encode(f Format, m *protocol.Message) ([]byte, error) {
	if m.Type == "" {
		return nil, ErrMissingType
	}
	switch f {
	case FormatProtobuf:
		b := make([]byte, 0, len(m.Type)+len(m.Payload)+8)
		b = protowire.AppendTag(b, fieldType, protowire.BytesType)
		b = protowire.AppendString(b, string(m.Type))
		if len(m.Payload) > 0 {
			b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
			b = protowire.AppendBytes(b, m.Payload)
		}
		return b, nil
	case FormatJSON:
		buf := buffers.Get().(*bytes.Buffer)
		defer func() {
			buf.Reset()
			buffers.Put(buf)
		}()
		if err := json.NewEncoder(buf).Encode(m); err != nil {
			return nil, err
		}
		return bytes.Clone(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// Decode 按指定格式解码消息，处理完后可用 Release 归还
func Decode(f Format, data []byte) (*protocol.Message, error) {
	msg := acquire()
	var err error
	switch f {
	case FormatProtobuf:
		err = decodeEnvelope(data, msg)
	case FormatJSON:
		err = json.Unmarshal(data, msg)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err == nil && msg.Type == "" {
		err = ErrMissingType
	}
	if err != nil {
		Release(msg)
		return nil, err
	}
	return msg, nil
}

func decodeEnvelope(data []byte, msg *protocol.Message) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return protowire.ParseError(m)
			}
			msg.Type = protocol.MessageType(v)
			n = m
		case num == fieldPayload && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return protowire.ParseError(m)
			}
			// 复制 payload 避免引用底层读缓冲
			msg.Payload = append([]byte(nil), v...)
			n = m
		default:
			// 未知字段直接跳过，兼容新版本客户端
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
		}
		data = data[n:]
	}
	return nil
}

// ParsePayload 解析消息的 Payload 到指定类型
func ParsePayload[T any](msg *protocol.Message) (*T, error) {
	var payload T
	if len(msg.Payload) == 0 {
		return &payload, nil
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// NewErrorMessage 创建错误消息
func NewErrorMessage(code int) *protocol.Message {
	return NewErrorMessageWithText(code, protocol.ErrorMessages[code])
}

// NewErrorMessageWithText 创建带自定义文本的错误消息
func NewErrorMessageWithText(code int, text string) *protocol.Message {
	return MustNewMessage(protocol.MsgError, protocol.ErrorPayload{
		Code:    code,
		Message: text,
	})
}
