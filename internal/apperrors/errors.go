package apperrors

import (
	"errors"

	"github.com/palemoky/doudizhu-server/internal/protocol"
)

// GameError 游戏错误（房间、会话、账号共享），Code 对应协议错误码
type GameError struct {
	Code    int
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

// New 使用协议错误码的默认文案创建错误
func New(code int) *GameError {
	return &GameError{Code: code, Message: protocol.ErrorMessages[code]}
}

// CodeOf 提取错误码，非 GameError 返回 ErrCodeUnknown
func CodeOf(err error) int {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return protocol.ErrCodeUnknown
}

// 预定义错误
var (
	ErrNotMatching   = New(protocol.ErrCodeNotMatching)
	ErrAlreadyInGame = New(protocol.ErrCodeAlreadyInGame)
	ErrGameNotStart  = New(protocol.ErrCodeGameNotStart)
	ErrNotYourTurn   = New(protocol.ErrCodeNotYourTurn)
	ErrInvalidCards  = New(protocol.ErrCodeInvalidCards)
	ErrCannotBeat    = New(protocol.ErrCodeCannotBeat)
	ErrCardsNotHeld  = New(protocol.ErrCodeCardsNotHeld)
	ErrWrongPhase    = New(protocol.ErrCodeWrongPhase)
	ErrMustPlay      = New(protocol.ErrCodeMustPlay)

	ErrNotLoggedIn      = New(protocol.ErrCodeNotLoggedIn)
	ErrUserNotFound     = New(protocol.ErrCodeUserNotFound)
	ErrUserExist        = New(protocol.ErrCodeUserExist)
	ErrPasswordMismatch = New(protocol.ErrCodePasswordMismatch)
	ErrUserOnline       = New(protocol.ErrCodeUserOnline)
	ErrInvalidToken     = New(protocol.ErrCodeInvalidToken)
)
