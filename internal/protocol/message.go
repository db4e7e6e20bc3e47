package protocol

import "encoding/json"

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	// 连接操作
	MsgPing      MessageType = "ping"      // 心跳 ping
	MsgReconnect MessageType = "reconnect" // 断线重连

	// 账号
	MsgRegister    MessageType = "register"      // 注册
	MsgLogin       MessageType = "login"         // 登录
	MsgGetUserInfo MessageType = "get_user_info" // 获取用户信息
	MsgGetRankList MessageType = "get_rank_list" // 获取排行榜
	MsgGetStats    MessageType = "get_stats"     // 获取个人战绩
	MsgGetOnline   MessageType = "get_online"    // 获取在线人数

	// 匹配（进入/退出/准备既是请求也是广播）
	MsgMatchEnter   MessageType = "match_enter"   // 进入匹配房间
	MsgMatchExit    MessageType = "match_exit"    // 退出匹配房间
	MsgMatchReady   MessageType = "match_ready"   // 准备
	MsgMatchUnready MessageType = "match_unready" // 取消准备

	// 游戏操作
	MsgGrabLandlord MessageType = "grab_landlord" // 抢/不抢地主
	MsgPlayCards    MessageType = "play_cards"    // 出牌（空列表为不出）
	MsgPass         MessageType = "pass"          // 不出
)

// 服务端 → 客户端 消息类型
const (
	// 连接相关
	MsgConnected   MessageType = "connected"   // 连接成功
	MsgReconnected MessageType = "reconnected" // 重连成功
	MsgPong        MessageType = "pong"        // 心跳 pong

	// 账号
	MsgRegisterResult MessageType = "register_result" // 注册结果
	MsgLoginResult    MessageType = "login_result"    // 登录结果
	MsgUserInfo       MessageType = "user_info"       // 用户信息
	MsgRankList       MessageType = "rank_list"       // 排行榜
	MsgStats          MessageType = "stats"           // 个人战绩
	MsgOnlineCount    MessageType = "online_count"    // 在线人数

	// 匹配
	MsgMatchRoom  MessageType = "match_room"  // 进入后的房间快照
	MsgMatchStart MessageType = "match_start" // 全员准备，开始游戏

	// 游戏流程
	MsgDealCards  MessageType = "deal_cards"  // 发牌（仅发给本人）
	MsgGrab       MessageType = "grab"        // 有人抢地主
	MsgNoGrab     MessageType = "no_grab"     // 有人不抢
	MsgLandlord   MessageType = "landlord"    // 地主确定，亮底牌
	MsgTurnStart  MessageType = "turn_start"  // 回合开始
	MsgTurnEnd    MessageType = "turn_end"    // 回合结束
	MsgCardPlayed MessageType = "card_played" // 有人出牌
	MsgPlayerPass MessageType = "player_pass" // 有人不出
	MsgRedeal     MessageType = "redeal"      // 无人抢地主，重新发牌
	MsgGameOver   MessageType = "game_over"   // 游戏结束
	MsgGameAbort  MessageType = "game_abort"  // 无人抢地主且不重新发牌，本局作废

	// 错误
	MsgError MessageType = "error" // 错误消息
)
