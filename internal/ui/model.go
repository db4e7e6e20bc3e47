// Package ui 终端客户端界面
package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/timer"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/doudizhu-server/internal/client"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/sound"
)

// Phase 界面所处阶段
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseLogin
	PhaseLobby
	PhaseMatching
	PhaseGame
	PhaseGameOver
)

const (
	maxLogLines = 100
	// 倒计时剩余这么多时提醒
	alertBefore = 5 * time.Second
)

// Conn 界面需要的连接能力
type Conn interface {
	Send(msgType protocol.MessageType, payload any) error
	Latency() int64
}

// Sound 音效播放
type Sound interface {
	Play(name string)
}

// --- Tea Messages ---

// ServerMsg 服务器消息
type ServerMsg struct {
	Msg *protocol.Message
}

// ReconnectingMsg 正在重连
type ReconnectingMsg struct {
	Attempt  int
	MaxTries int
}

// ConnClosedMsg 连接彻底断开
type ConnClosedMsg struct{}

// Model 客户端主界面
type Model struct {
	conn     Conn
	messages <-chan *protocol.Message
	sound    Sound

	phase       Phase
	user        *protocol.UserInfo
	room        protocol.MatchRoomPayload
	game        *client.GameState
	onlineCount int
	rank        []protocol.RankItem
	stats       *protocol.StatsPayload

	notice       string
	noticeErr    bool
	reconnecting string
	maintenance  bool
	closed       bool
	showCounter  bool
	showRules    bool

	logs        []string
	turnTimer   timer.Model
	timerActive bool
	alerted     bool

	input    textinput.Model
	viewport viewport.Model
	width    int
	height   int
}

// NewModel 创建界面，messages 为服务器消息通道
func NewModel(conn Conn, messages <-chan *protocol.Message, player Sound) *Model {
	ti := textinput.New()
	ti.Placeholder = "输入命令，help 查看帮助"
	ti.CharLimit = 64
	ti.Width = 40
	ti.Focus()

	return &Model{
		conn:     conn,
		messages: messages,
		sound:    player,
		phase:    PhaseConnecting,
		game:     client.NewGameState(),
		input:    ti,
		viewport: viewport.New(60, 8),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listen())
}

// listen 等待下一条服务器消息
func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.messages
		if !ok {
			return ConnClosedMsg{}
		}
		return ServerMsg{Msg: msg}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(msg.Width-4, 20)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			return m, m.handleCommand(line)
		}

	case ServerMsg:
		cmd := m.handleServerMessage(msg.Msg)
		return m, tea.Batch(cmd, m.listen())

	case ReconnectingMsg:
		m.reconnecting = reconnectingText(msg.Attempt, msg.MaxTries)
		return m, nil

	case ConnClosedMsg:
		m.closed = true
		m.reconnecting = ""
		m.setError("与服务器的连接已断开，输入 quit 退出")
		return m, nil

	case timer.TickMsg, timer.StartStopMsg, timer.TimeoutMsg:
		var cmd tea.Cmd
		m.turnTimer, cmd = m.turnTimer.Update(msg)
		m.checkAlert()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// startTimer 每个回合重新计时
func (m *Model) startTimer(seconds int) tea.Cmd {
	if seconds <= 0 {
		m.timerActive = false
		return nil
	}
	m.turnTimer = timer.NewWithInterval(time.Duration(seconds)*time.Second, time.Second)
	m.timerActive = true
	m.alerted = false
	return m.turnTimer.Init()
}

func (m *Model) checkAlert() {
	if !m.timerActive || m.alerted || !m.game.MyTurn() {
		return
	}
	if m.turnTimer.Timeout <= alertBefore {
		m.alerted = true
		m.play(sound.EventAlert)
	}
}

func (m *Model) send(msgType protocol.MessageType, payload any) {
	if err := m.conn.Send(msgType, payload); err != nil {
		m.setError("发送失败: " + err.Error())
	}
}

func (m *Model) play(name string) {
	if m.sound != nil {
		m.sound.Play(name)
	}
}

func (m *Model) setNotice(text string) {
	m.notice, m.noticeErr = text, false
}

func (m *Model) setError(text string) {
	m.notice, m.noticeErr = text, true
}

// addLog 追加一条对局记录并滚动到底部
func (m *Model) addLog(line string) {
	if line == "" {
		return
	}
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
	m.viewport.SetContent(joinLines(m.logs))
	m.viewport.GotoBottom()
}

func (m *Model) enterLobby() {
	m.phase = PhaseLobby
	m.room = protocol.MatchRoomPayload{}
	m.timerActive = false
}

// Phase 当前阶段
func (m *Model) Phase() Phase { return m.phase }
