package client

import "github.com/palemoky/doudizhu-server/internal/game/card"

// CardCounter 记牌器：统计自己看不到的牌
type CardCounter struct {
	remaining map[card.Weight]int
}

// NewCardCounter 以整副牌初始化
func NewCardCounter() *CardCounter {
	cc := &CardCounter{remaining: make(map[card.Weight]int)}
	cc.Reset()
	return cc
}

// Reset 3 到 2 各四张，大小王各一张
func (cc *CardCounter) Reset() {
	for w := card.Weight3; w <= card.Weight2; w++ {
		cc.remaining[w] = 4
	}
	cc.remaining[card.WeightBlackJoker] = 1
	cc.remaining[card.WeightRedJoker] = 1
}

// Deduct 扣除已知的牌
func (cc *CardCounter) Deduct(cards []card.Card) {
	for _, c := range cards {
		if w := c.Weight(); cc.remaining[w] > 0 {
			cc.remaining[w]--
		}
	}
}

// Remaining 某个点数剩余的张数
func (cc *CardCounter) Remaining(w card.Weight) int {
	return cc.remaining[w]
}

// Total 剩余总张数
func (cc *CardCounter) Total() int {
	total := 0
	for _, n := range cc.remaining {
		total += n
	}
	return total
}
