// Package turn 实现对局的回合状态机与抢地主计数。
//
// 两者都不做并发控制，调用方须持有所属房间的锁。
package turn

// Phase 对局阶段
type Phase int

const (
	PhaseGrabLandlord Phase = iota // 抢地主
	PhasePlayCard                  // 出牌
)

func (p Phase) String() string {
	switch p {
	case PhaseGrabLandlord:
		return "抢地主"
	case PhasePlayCard:
		return "出牌"
	}
	return "未知"
}

// Listener 回合事件回调，在构造时注册一次
type Listener struct {
	OnTurnStarted func(seat int, phase Phase)
	OnTurnEnded   func(seat int, phase Phase)
}

// Manager 回合状态机：当前座位、阶段、回合是否进行中
type Manager struct {
	capacity int
	current  int
	phase    Phase
	active   bool
	listener Listener
}

// NewManager 创建回合管理器，初始为抢地主阶段且没有进行中的回合
func NewManager(capacity int, listener Listener) *Manager {
	return &Manager{
		capacity: capacity,
		phase:    PhaseGrabLandlord,
		listener: listener,
	}
}

// Reset 回到初始状态，不触发事件
func (m *Manager) Reset() {
	m.current = 0
	m.phase = PhaseGrabLandlord
	m.active = false
}

// Current 当前座位
func (m *Manager) Current() int { return m.current }

// Phase 当前阶段
func (m *Manager) Phase() Phase { return m.phase }

// Active 是否有进行中的回合
func (m *Manager) Active() bool { return m.active }

// IsCurrentTurn 是否轮到 seat
func (m *Manager) IsCurrentTurn(seat int) bool {
	return m.active && seat == m.current
}

// Start 强制从 seat 开始回合，阶段不变
func (m *Manager) Start(seat int) {
	if !m.validSeat(seat) {
		return
	}
	m.current = seat
	m.active = true
	m.emitStarted(seat)
}

// EndTurn seat 正常结束回合并轮转到下一位，不是当前回合时返回 false
func (m *Manager) EndTurn(seat int) bool {
	if !m.IsCurrentTurn(seat) {
		return false
	}
	m.advance()
	return true
}

// ForceEnd 超时强制结束 seat 的回合，轮转规则与 EndTurn 相同
func (m *Manager) ForceEnd(seat int) bool {
	if !m.IsCurrentTurn(seat) {
		return false
	}
	m.advance()
	return true
}

// EndGrabPhase 抢地主结束：结束当前回合，进入出牌阶段并由地主先出
func (m *Manager) EndGrabPhase(landlord int) {
	if !m.validSeat(landlord) {
		return
	}
	if m.active {
		m.active = false
		m.emitEnded(m.current)
	}
	m.phase = PhasePlayCard
	m.current = landlord
	m.active = true
	m.emitStarted(landlord)
}

func (m *Manager) advance() {
	ended := m.current
	m.active = false
	m.emitEnded(ended)

	m.current = (ended + 1) % m.capacity
	m.active = true
	m.emitStarted(m.current)
}

func (m *Manager) validSeat(seat int) bool {
	return seat >= 0 && seat < m.capacity
}

func (m *Manager) emitStarted(seat int) {
	if m.listener.OnTurnStarted != nil {
		m.listener.OnTurnStarted(seat, m.phase)
	}
}

func (m *Manager) emitEnded(seat int) {
	if m.listener.OnTurnEnded != nil {
		m.listener.OnTurnEnded(seat, m.phase)
	}
}
