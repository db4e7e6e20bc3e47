package protocol

// --- 通用结构 ---

// CardInfo 牌的传输格式
type CardInfo struct {
	Suit   int `json:"suit"`
	Number int `json:"number"`
}

// UserInfo 用户信息快照
type UserInfo struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IconName string `json:"icon_name"`
	Coin     int64  `json:"coin"`
}

// MatchMember 匹配房间成员
type MatchMember struct {
	User  UserInfo `json:"user"`
	Ready bool     `json:"ready"`
}

// RankItem 排行榜条目
type RankItem struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Coin     int64  `json:"coin"`
}

// --- 客户端请求 Payloads ---

// PingPayload 心跳请求
type PingPayload struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// AccountPayload 注册/登录请求，密码在客户端已哈希
type AccountPayload struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

// ReconnectPayload 断线重连请求
type ReconnectPayload struct {
	Token string `json:"token"`
}

// GrabLandlordPayload 抢地主请求
type GrabLandlordPayload struct {
	Grab bool `json:"grab"`
}

// PlayCardsPayload 出牌请求，空列表表示不出
type PlayCardsPayload struct {
	Cards []CardInfo `json:"cards"`
}

// --- 服务端响应 Payloads ---

// ConnectedPayload 连接成功
type ConnectedPayload struct {
	ConnectionID string `json:"connection_id"`
}

// PongPayload 心跳响应
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"`
	ServerTimestamp int64 `json:"server_timestamp"`
}

// AccountResultPayload 注册/登录结果
type AccountResultPayload struct {
	Code           int       `json:"code"`
	User           *UserInfo `json:"user,omitempty"`
	ReconnectToken string    `json:"reconnect_token,omitempty"`
}

// ReconnectedPayload 重连成功
type ReconnectedPayload struct {
	User           UserInfo `json:"user"`
	InGame         bool     `json:"in_game"`
	ReconnectToken string   `json:"reconnect_token"`
}

// RankListPayload 排行榜
type RankListPayload struct {
	Items []RankItem `json:"items"`
}

// StatsPayload 个人战绩
type StatsPayload struct {
	Games         int     `json:"games"`
	Wins          int     `json:"wins"`
	WinRate       float64 `json:"win_rate"` // 百分比
	LandlordGames int     `json:"landlord_games"`
	LandlordWins  int     `json:"landlord_wins"`
	CurrentStreak int     `json:"current_streak"` // 正数为连胜，负数为连败
	MaxWinStreak  int     `json:"max_win_streak"`
}

// OnlineCountPayload 在线人数
type OnlineCountPayload struct {
	Count int `json:"count"`
}

// MatchRoomPayload 匹配房间快照
type MatchRoomPayload struct {
	RoomID  int64         `json:"room_id"`
	Members []MatchMember `json:"members"`
}

// MatchUserPayload 匹配房间内的成员变动（进入/退出/准备/取消准备）
type MatchUserPayload struct {
	RoomID int64    `json:"room_id"`
	User   UserInfo `json:"user"`
}

// MatchStartPayload 全员准备
type MatchStartPayload struct {
	RoomID int64 `json:"room_id"`
}

// SeatInfo 对局中的座位
type SeatInfo struct {
	Seat int      `json:"seat"`
	User UserInfo `json:"user"`
}

// DealCardsPayload 发牌，只发给本人
type DealCardsPayload struct {
	RoomID int64      `json:"room_id"`
	Seat   int        `json:"seat"`
	Seats  []SeatInfo `json:"seats"`
	Cards  []CardInfo `json:"cards"`
	Score  int        `json:"score"` // 手牌强度，仅供参考
}

// SeatPayload 仅包含座位的广播（抢/不抢/不出）
type SeatPayload struct {
	Seat int `json:"seat"`
}

// LandlordPayload 地主确定
type LandlordPayload struct {
	Seat       int        `json:"seat"`
	UnderCards []CardInfo `json:"under_cards"`
}

// 回合阶段
const (
	PhaseGrabLandlord = "grab_landlord"
	PhasePlayCard     = "play_card"
)

// TurnPayload 回合开始/结束
type TurnPayload struct {
	Seat    int    `json:"seat"`
	Phase   string `json:"phase"`
	Timeout int    `json:"timeout,omitempty"` // 剩余秒数，仅回合开始时
}

// CardPlayedPayload 出牌广播
type CardPlayedPayload struct {
	Seat      int        `json:"seat"`
	Cards     []CardInfo `json:"cards"`
	HandType  string     `json:"hand_type"`
	CardsLeft int        `json:"cards_left"`
}

// SeatResult 结算时的座位信息
type SeatResult struct {
	Seat       int        `json:"seat"`
	UserID     int64      `json:"user_id"`
	IsLandlord bool       `json:"is_landlord"`
	CoinDelta  int64      `json:"coin_delta"`
	Cards      []CardInfo `json:"cards"` // 剩余手牌
}

// GameOverPayload 游戏结束
type GameOverPayload struct {
	WinnerSeat   int          `json:"winner_seat"`
	LandlordSeat int          `json:"landlord_seat"`
	LandlordWon  bool         `json:"landlord_won"`
	Multiple     int          `json:"multiple"`
	Seats        []SeatResult `json:"seats"`
}

// ErrorPayload 错误消息
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
