package protocol

// 错误码
const (
	ErrCodeUnknown    = 1000
	ErrCodeInvalidMsg = 1001
	ErrCodeRateLimit  = 1002 // 速率限制

	ErrCodeNotLoggedIn      = 1101
	ErrCodeUserNotFound     = 1102
	ErrCodeUserExist        = 1103
	ErrCodePasswordMismatch = 1104
	ErrCodeUserOnline       = 1105
	ErrCodeInvalidToken     = 1106

	ErrCodeNotMatching   = 2001 // 不在匹配房间中
	ErrCodeAlreadyInGame = 2002

	ErrCodeGameNotStart = 3001
	ErrCodeNotYourTurn  = 3002
	ErrCodeInvalidCards = 3003
	ErrCodeCannotBeat   = 3004
	ErrCodeCardsNotHeld = 3005
	ErrCodeWrongPhase   = 3006
	ErrCodeMustPlay     = 3007 // 首出不能不出

	ErrCodeStorage           = 5001
	ErrCodeServerMaintenance = 5003 // 服务器维护中
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:           "未知错误",
	ErrCodeInvalidMsg:        "无效的消息格式",
	ErrCodeRateLimit:         "请求过于频繁",
	ErrCodeNotLoggedIn:       "请先登录",
	ErrCodeUserNotFound:      "用户不存在",
	ErrCodeUserExist:         "用户名已存在",
	ErrCodePasswordMismatch:  "用户名和密码不匹配",
	ErrCodeUserOnline:        "用户已在线",
	ErrCodeInvalidToken:      "重连令牌无效",
	ErrCodeNotMatching:       "您不在匹配房间中",
	ErrCodeAlreadyInGame:     "您已在游戏中",
	ErrCodeGameNotStart:      "游戏尚未开始",
	ErrCodeNotYourTurn:       "还没轮到您",
	ErrCodeInvalidCards:      "无效的牌型",
	ErrCodeCannotBeat:        "您的牌大不过上家",
	ErrCodeCardsNotHeld:      "您没有这些牌",
	ErrCodeWrongPhase:        "当前阶段不能这样操作",
	ErrCodeMustPlay:          "您必须出牌",
	ErrCodeStorage:           "存储服务异常",
	ErrCodeServerMaintenance: "服务器维护中",
}

// 账号操作返回码
const (
	AccountSuccess          = 0
	AccountFailure          = -1
	AccountUserNotFound     = -2
	AccountUserExist        = -3
	AccountPasswordMismatch = -4
	AccountUserOnline       = -5
)
