package sound

// 客户端触发音效的事件
const (
	EventDeal  = "deal"
	EventTurn  = "turn"
	EventPlay  = "play"
	EventBomb  = "bomb"
	EventWin   = "win"
	EventLose  = "lose"
	EventAlert = "alert" // 出牌倒计时将尽
)
