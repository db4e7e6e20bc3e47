package rule

import (
	"slices"

	"github.com/palemoky/doudizhu-server/internal/game/card"
)

// Type 定义牌型
type Type int

const (
	Invalid   Type = iota - 1
	None           // 没有出牌
	JokerBomb      // 王炸
	Bomb           // 炸弹

	Single        // 单张
	Pair          // 对子
	Triple        // 三张不带
	TripleWithOne // 三带一
	TripleWithPair

	Straight                // 顺子（5 张或以上连续单张）
	DoubleStraight          // 连对（3 对或以上）
	TripleStraight          // 飞机不带翅膀
	TripleStraightWithOnes  // 飞机带单
	TripleStraightWithPairs // 飞机带对

	QuadWithTwo      // 四带二
	QuadWithTwoPairs // 四带两对
)

// typeNames 牌型名称映射表
var typeNames = map[Type]string{
	None:                    "不出",
	JokerBomb:               "王炸",
	Bomb:                    "炸弹",
	Single:                  "单张",
	Pair:                    "对子",
	Triple:                  "三张",
	TripleWithOne:           "三带一",
	TripleWithPair:          "三带二",
	Straight:                "顺子",
	DoubleStraight:          "连对",
	TripleStraight:          "飞机",
	TripleStraightWithOnes:  "飞机带单",
	TripleStraightWithPairs: "飞机带对",
	QuadWithTwo:             "四带二",
	QuadWithTwoPairs:        "四带两对",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "无效"
}

// Tier 压制层级：普通牌型 0，炸弹 1，王炸 2，无效或不出 -1
func (t Type) Tier() int {
	switch t {
	case JokerBomb:
		return 2
	case Bomb:
		return 1
	case Invalid, None:
		return -1
	}
	return 0
}

// IsStraightFamily 是否为长度可变的连续牌型
func (t Type) IsStraightFamily() bool {
	switch t {
	case Straight, DoubleStraight, TripleStraight, TripleStraightWithOnes, TripleStraightWithPairs:
		return true
	}
	return false
}

// MinRepeat 连续牌型的最少连续单位数
func MinRepeat(t Type) int {
	switch t {
	case Straight:
		return 5
	case DoubleStraight:
		return 3
	case TripleStraight, TripleStraightWithOnes, TripleStraightWithPairs:
		return 2
	}
	return 1
}

// shape 主体每个单位的张数与翅膀每个单位的张数
func shape(t Type) (mainCount, subCount, subUnits int) {
	switch t {
	case Single, Straight:
		return 1, 0, 0
	case Pair, DoubleStraight:
		return 2, 0, 0
	case Triple, TripleStraight:
		return 3, 0, 0
	case TripleWithOne, TripleStraightWithOnes:
		return 3, 1, 1
	case TripleWithPair, TripleStraightWithPairs:
		return 3, 2, 1
	case Bomb:
		return 4, 0, 0
	case QuadWithTwo:
		return 4, 1, 2
	case QuadWithTwoPairs:
		return 4, 2, 2
	}
	return 0, 0, 0
}

// CardSet 分类后的一手牌
type CardSet struct {
	Type        Type
	KeyNumber   card.Weight // 决定大小的关键权重（出现次数最多的单位中权重最高者）
	RepeatCount int         // 连续单位数，固定长度牌型为 1
	Cards       []card.Card
}

// Pass 表示不出牌
func Pass() CardSet {
	return CardSet{Type: None}
}

// IsPass 是否为不出
func (s CardSet) IsPass() bool {
	return s.Type == None
}

// IsValid 是否为可出的牌型
func (s CardSet) IsValid() bool {
	return s.Type != Invalid && s.Type != None
}

// Beats 判断 s 是否能压过 prev
func (s CardSet) Beats(prev CardSet) bool {
	if s.Type == prev.Type {
		return s.RepeatCount == prev.RepeatCount && s.KeyNumber > prev.KeyNumber
	}
	return s.Type.Tier() > prev.Type.Tier()
}

// group 同一权重的牌的数量
type group struct {
	weight card.Weight
	count  int
}

// analysis 对一组牌的权重统计，按 (数量, 权重) 升序排列
type analysis struct {
	groups []group
	total  int
}

func analyze(cards []card.Card) analysis {
	counts := make(map[card.Weight]int)
	for _, c := range cards {
		counts[c.Weight()]++
	}
	return analyzeCounts(counts, len(cards))
}

func analyzeCounts(counts map[card.Weight]int, total int) analysis {
	groups := make([]group, 0, len(counts))
	for w, n := range counts {
		if n > 0 {
			groups = append(groups, group{weight: w, count: n})
		}
	}
	slices.SortFunc(groups, func(a, b group) int {
		if a.count != b.count {
			return a.count - b.count
		}
		return int(a.weight) - int(b.weight)
	})
	return analysis{groups: groups, total: total}
}

func (a analysis) countsMatch(counts ...int) bool {
	if len(a.groups) != len(counts) {
		return false
	}
	for i, g := range a.groups {
		if g.count != counts[i] {
			return false
		}
	}
	return true
}

// allCount 检查 groups 中每组数量均为 n
func allCount(groups []group, n int) bool {
	for _, g := range groups {
		if g.count != n {
			return false
		}
	}
	return true
}

// inStraightBand 连续牌型只能使用 3 到 A
func inStraightBand(w card.Weight) bool {
	return w >= card.Weight3 && w <= card.WeightA
}

// consecutive 检查 groups（已按权重升序）是否在 3..A 内连续
func consecutive(groups []group) bool {
	for i, g := range groups {
		if !inStraightBand(g.weight) {
			return false
		}
		if i > 0 && g.weight != groups[i-1].weight+1 {
			return false
		}
	}
	return true
}

// typeChecker 牌型检查函数
type typeChecker struct {
	t     Type
	check func(a analysis) bool
}

// typeCheckers 各牌型的形状互斥，顺序只影响效率
var typeCheckers = []typeChecker{
	{Single, func(a analysis) bool { return a.total == 1 }},
	{Pair, func(a analysis) bool { return a.total == 2 && a.countsMatch(2) }},
	{JokerBomb, func(a analysis) bool {
		return a.total == 2 && len(a.groups) == 2 &&
			a.groups[0].weight == card.WeightBlackJoker && a.groups[1].weight == card.WeightRedJoker
	}},
	{Triple, func(a analysis) bool { return a.total == 3 && a.countsMatch(3) }},
	{Bomb, func(a analysis) bool { return a.total == 4 && a.countsMatch(4) }},
	{TripleWithOne, func(a analysis) bool { return a.countsMatch(1, 3) }},
	{TripleWithPair, func(a analysis) bool { return a.countsMatch(2, 3) }},
	{QuadWithTwo, func(a analysis) bool { return a.countsMatch(1, 1, 4) }},
	{QuadWithTwoPairs, func(a analysis) bool { return a.countsMatch(2, 2, 4) }},
	{Straight, func(a analysis) bool { return isStraightOf(a, 1) }},
	{DoubleStraight, func(a analysis) bool { return isStraightOf(a, 2) }},
	{TripleStraight, func(a analysis) bool { return isStraightOf(a, 3) }},
	{TripleStraightWithOnes, func(a analysis) bool { return isAirplaneWith(a, 1) }},
	{TripleStraightWithPairs, func(a analysis) bool { return isAirplaneWith(a, 2) }},
}

func isStraightOf(a analysis, count int) bool {
	var t Type
	switch count {
	case 1:
		t = Straight
	case 2:
		t = DoubleStraight
	default:
		t = TripleStraight
	}
	return len(a.groups) >= MinRepeat(t) && allCount(a.groups, count) && consecutive(a.groups)
}

// isAirplaneWith 下半部分为翅膀，上半部分为连续的三张
func isAirplaneWith(a analysis, subCount int) bool {
	n := len(a.groups)
	if n < 4 || n%2 != 0 {
		return false
	}
	half := n / 2
	return allCount(a.groups[:half], subCount) &&
		allCount(a.groups[half:], 3) &&
		consecutive(a.groups[half:])
}

func classify(a analysis) Type {
	if a.total == 0 {
		return None
	}
	for _, c := range typeCheckers {
		if c.check(a) {
			return c.t
		}
	}
	return Invalid
}

// Classify 将一组牌分类为 CardSet，结果与牌的顺序无关
func Classify(cards []card.Card) CardSet {
	a := analyze(cards)
	t := classify(a)
	set := CardSet{Type: t, Cards: slices.Clone(cards)}

	switch t {
	case None:
		return set
	case Invalid:
		set.KeyNumber = card.WeightMin
		return set
	}

	set.KeyNumber = a.groups[len(a.groups)-1].weight
	switch t {
	case Straight, DoubleStraight, TripleStraight:
		set.RepeatCount = len(a.groups)
	case TripleStraightWithOnes, TripleStraightWithPairs:
		set.RepeatCount = len(a.groups) / 2
	default:
		set.RepeatCount = 1
	}
	return set
}
