package ui

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/doudizhu-server/internal/game/rule"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/sound"
)

// messageHandler 消息处理函数类型
type messageHandler func(m *Model, msg *protocol.Message) tea.Cmd

// messageHandlers 非对局消息；对局消息交给 GameState
var messageHandlers = map[protocol.MessageType]messageHandler{
	protocol.MsgConnected:   handleConnected,
	protocol.MsgReconnected: handleReconnected,
	protocol.MsgError:       handleError,

	protocol.MsgRegisterResult: handleRegisterResult,
	protocol.MsgLoginResult:    handleLoginResult,
	protocol.MsgUserInfo:       handleUserInfo,
	protocol.MsgRankList:       handleRankList,
	protocol.MsgStats:          handleStats,
	protocol.MsgOnlineCount:    handleOnlineCount,

	protocol.MsgMatchRoom:    handleMatchRoom,
	protocol.MsgMatchEnter:   handleMatchUser,
	protocol.MsgMatchExit:    handleMatchUser,
	protocol.MsgMatchReady:   handleMatchUser,
	protocol.MsgMatchUnready: handleMatchUser,
	protocol.MsgMatchStart: func(m *Model, _ *protocol.Message) tea.Cmd {
		m.setNotice("✅ 全员准备，即将发牌")
		return nil
	},
}

// accountErrors 注册/登录失败原因
var accountErrors = map[int]string{
	protocol.AccountFailure:          "服务器异常，请稍后再试",
	protocol.AccountUserNotFound:     "用户不存在",
	protocol.AccountUserExist:        "用户名已存在",
	protocol.AccountPasswordMismatch: "用户名和密码不匹配",
	protocol.AccountUserOnline:       "该用户已在其他地方登录",
}

// handleServerMessage 分发服务器消息
func (m *Model) handleServerMessage(msg *protocol.Message) tea.Cmd {
	if handler, ok := messageHandlers[msg.Type]; ok {
		return handler(m, msg)
	}
	return m.handleGameMessage(msg)
}

func handleConnected(m *Model, _ *protocol.Message) tea.Cmd {
	// 重连的新连接也会收到，此时等待 reconnected
	if m.user == nil {
		m.phase = PhaseLogin
		m.setNotice("已连接，请输入 register <用户名> <密码> 或 login <用户名> <密码>")
	}
	return nil
}

func handleReconnected(m *Model, msg *protocol.Message) tea.Cmd {
	p, err := codec.ParsePayload[protocol.ReconnectedPayload](msg)
	if err != nil {
		return nil
	}
	m.user = &p.User
	m.reconnecting = ""
	m.setNotice("🔄 重连成功")
	if !p.InGame && (m.phase == PhaseGame || m.phase == PhaseMatching) {
		// 匹配房间在断线时已退出，对局已结束
		m.game.Reset()
		m.enterLobby()
	}
	return nil
}

func handleError(m *Model, msg *protocol.Message) tea.Cmd {
	p, err := codec.ParsePayload[protocol.ErrorPayload](msg)
	if err != nil {
		return nil
	}
	text := p.Message
	if text == "" {
		text = protocol.ErrorMessages[p.Code]
	}
	switch p.Code {
	case protocol.ErrCodeServerMaintenance:
		m.maintenance = true
	case protocol.ErrCodeInvalidToken:
		// 令牌失效只能重新登录
		m.user = nil
		m.reconnecting = ""
		m.game.Reset()
		m.phase = PhaseLogin
	}
	m.setError(fmt.Sprintf("❌ %s", text))
	return nil
}

func handleRegisterResult(m *Model, msg *protocol.Message) tea.Cmd {
	p, err := codec.ParsePayload[protocol.AccountResultPayload](msg)
	if err != nil {
		return nil
	}
	if p.Code != protocol.AccountSuccess {
		m.setError("注册失败: " + accountErrors[p.Code])
		return nil
	}
	m.setNotice("注册成功，请登录")
	return nil
}

func handleLoginResult(m *Model, msg *protocol.Message) tea.Cmd {
	p, err := codec.ParsePayload[protocol.AccountResultPayload](msg)
	if err != nil {
		return nil
	}
	if p.Code != protocol.AccountSuccess || p.User == nil {
		m.setError("登录失败: " + accountErrors[p.Code])
		return nil
	}
	m.user = p.User
	m.enterLobby()
	m.setNotice(fmt.Sprintf("欢迎 %s %s", p.User.IconName, p.User.Username))
	m.send(protocol.MsgGetOnline, nil)
	return nil
}

func handleUserInfo(m *Model, msg *protocol.Message) tea.Cmd {
	p, err := codec.ParsePayload[protocol.UserInfo](msg)
	if err != nil {
		return nil
	}
	m.user = p
	return nil
}

func handleRankList(m *Model, msg *protocol.Message) tea.Cmd {
	p, err := codec.ParsePayload[protocol.RankListPayload](msg)
	if err != nil {
		return nil
	}
	m.rank = p.Items
	return nil
}

func handleStats(m *Model, msg *protocol.Message) tea.Cmd {
	p, err := codec.ParsePayload[protocol.StatsPayload](msg)
	if err != nil {
		return nil
	}
	m.stats = p
	return nil
}

func handleOnlineCount(m *Model, msg *protocol.Message) tea.Cmd {
	p, err := codec.ParsePayload[protocol.OnlineCountPayload](msg)
	if err != nil {
		return nil
	}
	m.onlineCount = p.Count
	return nil
}

func handleMatchRoom(m *Model, msg *protocol.Message) tea.Cmd {
	p, err := codec.ParsePayload[protocol.MatchRoomPayload](msg)
	if err != nil {
		return nil
	}
	m.room = *p
	m.phase = PhaseMatching
	m.setNotice("🔍 已进入匹配房间，输入 r 准备")
	return nil
}

// handleMatchUser 同步匹配房间成员变化
func handleMatchUser(m *Model, msg *protocol.Message) tea.Cmd {
	p, err := codec.ParsePayload[protocol.MatchUserPayload](msg)
	if err != nil || p.RoomID != m.room.RoomID {
		return nil
	}
	idx := slices.IndexFunc(m.room.Members, func(mm protocol.MatchMember) bool {
		return mm.User.UserID == p.User.UserID
	})

	switch msg.Type {
	case protocol.MsgMatchEnter:
		if idx < 0 {
			m.room.Members = append(m.room.Members, protocol.MatchMember{User: p.User})
		}
	case protocol.MsgMatchExit:
		if idx >= 0 {
			m.room.Members = slices.Delete(m.room.Members, idx, idx+1)
		}
	case protocol.MsgMatchReady, protocol.MsgMatchUnready:
		if idx >= 0 {
			m.room.Members[idx].Ready = msg.Type == protocol.MsgMatchReady
		}
	}
	return nil
}

// handleGameMessage 对局消息：更新状态、记录事件、播放音效
func (m *Model) handleGameMessage(msg *protocol.Message) tea.Cmd {
	event, handled, err := m.game.Apply(msg)
	if !handled {
		return nil
	}
	if err != nil {
		m.setError("对局消息解析失败: " + err.Error())
		return nil
	}
	m.addLog(event)

	switch msg.Type {
	case protocol.MsgDealCards:
		m.phase = PhaseGame
		m.notice = ""
		m.play(sound.EventDeal)
	case protocol.MsgTurnStart:
		if m.game.MyTurn() {
			m.play(sound.EventTurn)
		}
		return m.startTimer(m.game.Timeout)
	case protocol.MsgTurnEnd:
		m.timerActive = false
	case protocol.MsgCardPlayed:
		if t := m.game.LastHandType; t == rule.Bomb.String() || t == rule.JokerBomb.String() {
			m.play(sound.EventBomb)
		} else {
			m.play(sound.EventPlay)
		}
	case protocol.MsgGameAbort:
		m.backToLobby()
		m.setNotice("🚫 无人抢地主，本局作废，输入 match 重新匹配")
	case protocol.MsgGameOver:
		m.phase = PhaseGameOver
		m.timerActive = false
		if m.game.Result != nil && m.won() {
			m.play(sound.EventWin)
		} else {
			m.play(sound.EventLose)
		}
		m.setNotice("按回车返回大厅")
	}
	return nil
}

// won 自己一方是否获胜
func (m *Model) won() bool {
	r := m.game.Result
	return r.LandlordWon == (m.game.Seat == r.LandlordSeat)
}
