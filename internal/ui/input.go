package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/doudizhu-server/internal/client"
	"github.com/palemoky/doudizhu-server/internal/game/card"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/convert"
)

// handleCommand 解析输入框中的一行命令
func (m *Model) handleCommand(line string) tea.Cmd {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		if m.phase == PhaseGameOver {
			m.backToLobby()
		}
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "q":
		return tea.Quit
	case "help":
		m.setNotice(helpText(m.phase))
		return nil
	case "rules":
		m.showRules = !m.showRules
		return nil
	}
	if m.closed {
		m.setError("连接已断开，输入 quit 退出")
		return nil
	}

	switch m.phase {
	case PhaseConnecting:
		m.setNotice("正在连接服务器...")
	case PhaseLogin:
		m.loginCommand(cmd, args)
	case PhaseLobby:
		m.lobbyCommand(cmd)
	case PhaseMatching:
		m.matchingCommand(cmd)
	case PhaseGame:
		m.gameCommand(cmd, line)
	case PhaseGameOver:
		m.backToLobby()
	}
	return nil
}

func (m *Model) loginCommand(cmd string, args []string) {
	var msgType protocol.MessageType
	switch cmd {
	case "register", "reg":
		msgType = protocol.MsgRegister
	case "login":
		msgType = protocol.MsgLogin
	default:
		m.setError("请输入 register <用户名> <密码> 或 login <用户名> <密码>")
		return
	}
	if len(args) != 2 {
		m.setError("用法: " + cmd + " <用户名> <密码>")
		return
	}
	m.send(msgType, protocol.AccountPayload{
		Username:     args[0],
		PasswordHash: client.HashPassword(args[1]),
	})
}

func (m *Model) lobbyCommand(cmd string) {
	switch cmd {
	case "match", "m":
		m.send(protocol.MsgMatchEnter, nil)
	case "rank":
		m.send(protocol.MsgGetRankList, nil)
	case "stats":
		m.send(protocol.MsgGetStats, nil)
	case "online":
		m.send(protocol.MsgGetOnline, nil)
	case "info":
		m.send(protocol.MsgGetUserInfo, nil)
	default:
		m.setError("未知命令: " + cmd)
	}
}

func (m *Model) matchingCommand(cmd string) {
	switch cmd {
	case "ready", "r":
		m.send(protocol.MsgMatchReady, nil)
	case "unready", "u":
		m.send(protocol.MsgMatchUnready, nil)
	case "exit", "e":
		// 服务端不会回复自己的退出
		m.send(protocol.MsgMatchExit, nil)
		m.enterLobby()
	default:
		m.setError("未知命令: " + cmd)
	}
}

func (m *Model) gameCommand(cmd, line string) {
	switch cmd {
	case "counter", "c":
		m.showCounter = !m.showCounter
		return
	}
	if !m.game.MyTurn() {
		m.setError("还没轮到你")
		return
	}

	if m.game.Phase == protocol.PhaseGrabLandlord {
		switch cmd {
		case "grab", "y":
			m.send(protocol.MsgGrabLandlord, protocol.GrabLandlordPayload{Grab: true})
		case "no", "n":
			m.send(protocol.MsgGrabLandlord, protocol.GrabLandlordPayload{Grab: false})
		default:
			m.setError("抢地主输入 y，不抢输入 n")
		}
		return
	}

	switch cmd {
	case "pass", "p":
		if m.game.MustLead() {
			m.setError("首出不能不出")
			return
		}
		m.send(protocol.MsgPass, nil)
	case "hint", "h":
		cards, ok := m.game.Hint()
		if !ok {
			m.setNotice("没有能大过上家的牌，输入 p 不出")
			return
		}
		m.input.SetValue(weightsOf(cards))
		m.input.CursorEnd()
	default:
		cards, err := m.game.PickCards(line)
		if err != nil {
			m.setError(err.Error())
			return
		}
		m.send(protocol.MsgPlayCards, protocol.PlayCardsPayload{Cards: convert.CardsToInfos(cards)})
	}
}

func (m *Model) backToLobby() {
	m.game.Reset()
	m.logs = nil
	m.viewport.SetContent("")
	m.enterLobby()
	m.send(protocol.MsgGetUserInfo, nil)
}

// weightsOf 以输入格式表示牌，例如 "33344"
func weightsOf(cards []card.Card) string {
	var sb strings.Builder
	for _, c := range cards {
		sb.WriteString(c.Weight().String())
	}
	return sb.String()
}
