package rule

import (
	"github.com/palemoky/doudizhu-server/internal/game/card"
)

// openingOrder 首出时的牌型偏好，越靠前越优先
var openingOrder = []Type{
	TripleStraightWithPairs,
	TripleStraightWithOnes,
	TripleStraight,
	DoubleStraight,
	Straight,
	TripleWithPair,
	TripleWithOne,
	Triple,
	Pair,
	Single,
	Bomb,
	JokerBomb,
}

// ExactSet 从手牌中取出指定牌型、关键权重与连续长度的一手牌
func (h *Hand) ExactSet(t Type, key card.Weight, repeat int) (CardSet, bool) {
	switch t {
	case Invalid, None:
		return Pass(), false
	case JokerBomb:
		return h.jokerBomb()
	}

	mainCount, subCount, subUnits := shape(t)
	low := key
	if t.IsStraightFamily() {
		if repeat < MinRepeat(t) {
			return Pass(), false
		}
		low = key - card.Weight(repeat) + 1
		if !inStraightBand(low) || !inStraightBand(key) {
			return Pass(), false
		}
	} else {
		repeat = 1
		if !key.Valid() {
			return Pass(), false
		}
	}

	counts := h.weightCounts()
	used := make(map[card.Weight]bool, repeat)
	cards := make([]card.Card, 0, repeat*(mainCount+subCount*subUnits))
	for w := low; w <= key; w++ {
		if counts[w] < mainCount {
			return Pass(), false
		}
		cards = append(cards, h.take(w, mainCount)...)
		used[w] = true
	}

	if subUnits > 0 {
		kickers, ok := h.pickKickers(used, subCount, subUnits*repeat)
		if !ok {
			return Pass(), false
		}
		cards = append(cards, kickers...)
	}

	return CardSet{Type: t, KeyNumber: key, RepeatCount: repeat, Cards: cards}, true
}

// pickKickers 从未被主体占用的权重中挑选翅膀，优先数量少、权重小的组
func (h *Hand) pickKickers(used map[card.Weight]bool, subCount, units int) ([]card.Card, bool) {
	a := analyzeCounts(h.weightCounts(), len(h.cards))
	kickers := make([]card.Card, 0, subCount*units)
	picked := 0
	for _, g := range a.groups {
		if picked == units {
			break
		}
		if used[g.weight] || g.count < subCount {
			continue
		}
		kickers = append(kickers, h.take(g.weight, subCount)...)
		picked++
	}
	return kickers, picked == units
}

func (h *Hand) jokerBomb() (CardSet, bool) {
	if h.Count(card.WeightBlackJoker) == 0 || h.Count(card.WeightRedJoker) == 0 {
		return Pass(), false
	}
	cards := append(h.take(card.WeightBlackJoker, 1), h.take(card.WeightRedJoker, 1)...)
	return CardSet{Type: JokerBomb, KeyNumber: card.WeightRedJoker, RepeatCount: 1, Cards: cards}, true
}

// SmallestGreater 同牌型同长度下，关键权重最小的压制
func (h *Hand) SmallestGreater(prev CardSet) (CardSet, bool) {
	if !prev.IsValid() {
		return Pass(), false
	}
	for key := prev.KeyNumber + 1; key <= card.WeightRedJoker; key++ {
		if set, ok := h.ExactSet(prev.Type, key, prev.RepeatCount); ok {
			return set, true
		}
	}
	return Pass(), false
}

// GreaterThan 寻找能压过 prev 的一手牌，prev 为不出时返回任意首出牌型
func (h *Hand) GreaterThan(prev CardSet) (CardSet, bool) {
	switch prev.Type {
	case None:
		return h.AnyOpeningSet()
	case JokerBomb:
		return Pass(), false
	case Bomb:
		if set, ok := h.SmallestGreater(prev); ok {
			return set, true
		}
		return h.jokerBomb()
	}

	if prev.Type != Invalid {
		if set, ok := h.SmallestGreater(prev); ok {
			return set, true
		}
	}
	if set, ok := h.smallestOf(Bomb); ok {
		return set, true
	}
	return h.jokerBomb()
}

// AnyOpeningSet 首出：能一次出完就整手打出，否则按偏好顺序选择最小的一手
func (h *Hand) AnyOpeningSet() (CardSet, bool) {
	if h.IsEmpty() {
		return Pass(), false
	}
	if whole := h.Classify(); whole.IsValid() {
		return whole, true
	}
	for _, t := range openingOrder {
		if set, ok := h.smallestOf(t); ok {
			return set, true
		}
	}
	return Pass(), false
}

// smallestOf 某一牌型在手牌中的最小实例
//
// 连续牌型从最低起点开始，取该起点能达到的最长长度，翅膀不足时逐步缩短。
func (h *Hand) smallestOf(t Type) (CardSet, bool) {
	if t == JokerBomb {
		return h.jokerBomb()
	}
	if !t.IsStraightFamily() {
		for key := card.Weight3; key <= card.WeightRedJoker; key++ {
			if set, ok := h.ExactSet(t, key, 1); ok {
				return set, true
			}
		}
		return Pass(), false
	}

	mainCount, _, _ := shape(t)
	minRepeat := MinRepeat(t)
	counts := h.weightCounts()
	for start := card.Weight3; start <= card.WeightA; start++ {
		length := 0
		for w := start; inStraightBand(w) && counts[w] >= mainCount; w++ {
			length++
		}
		for l := length; l >= minRepeat; l-- {
			if set, ok := h.ExactSet(t, start+card.Weight(l)-1, l); ok {
				return set, true
			}
		}
	}
	return Pass(), false
}
