package turn

// NoLandlord 所有人都不抢，需要重新发牌
const NoLandlord = -1

// GrabManager 抢地主计数
//
// 判定规则按优先级：
//  1. 某个座位抢了两次，成为地主（只有首个抢的人被其余两人放弃后再抢才会出现）
//  2. 不抢次数为人数减一且有人抢过，最后一个抢的人成为地主
//  3. 所有人都不抢，返回 NoLandlord
//
// 每一局最多产生一次判定，判定后的调用被忽略。
type GrabManager struct {
	capacity    int
	counts      []int
	grabs       int
	passes      int
	lastGrabber int
	decided     bool
}

// NewGrabManager 创建抢地主计数器
func NewGrabManager(capacity int) *GrabManager {
	g := &GrabManager{capacity: capacity}
	g.Reset()
	return g
}

// Reset 新一局清零
func (g *GrabManager) Reset() {
	g.counts = make([]int, g.capacity)
	g.grabs = 0
	g.passes = 0
	g.lastGrabber = NoLandlord
	g.decided = false
}

// Decided 本局是否已产生结果
func (g *GrabManager) Decided() bool { return g.decided }

// Grabs 抢地主总次数
func (g *GrabManager) Grabs() int { return g.grabs }

// Passes 不抢总次数
func (g *GrabManager) Passes() int { return g.passes }

// Grab seat 抢地主，decided 为 true 时 landlord 为结果
func (g *GrabManager) Grab(seat int) (landlord int, decided bool) {
	if g.decided || seat < 0 || seat >= g.capacity {
		return NoLandlord, false
	}
	g.counts[seat]++
	g.grabs++
	g.lastGrabber = seat
	return g.evaluate()
}

// Pass seat 不抢
func (g *GrabManager) Pass(seat int) (landlord int, decided bool) {
	if g.decided || seat < 0 || seat >= g.capacity {
		return NoLandlord, false
	}
	g.passes++
	return g.evaluate()
}

func (g *GrabManager) evaluate() (int, bool) {
	for seat, n := range g.counts {
		if n >= 2 {
			return g.decide(seat)
		}
	}
	if g.passes == g.capacity-1 && g.grabs > 0 {
		return g.decide(g.lastGrabber)
	}
	if g.passes >= g.capacity && g.grabs == 0 {
		return g.decide(NoLandlord)
	}
	return NoLandlord, false
}

func (g *GrabManager) decide(landlord int) (int, bool) {
	g.decided = true
	return landlord, true
}
