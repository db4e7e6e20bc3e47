package rule

import (
	"slices"

	"github.com/palemoky/doudizhu-server/internal/game/card"
)

// Hand 一个座位的手牌，带有按权重统计的缓存
//
// Hand 不是并发安全的，由所属房间的锁保护。
type Hand struct {
	cards  []card.Card
	counts map[card.Weight]int // nil 表示缓存失效
}

// NewHand 创建手牌
func NewHand(cards ...card.Card) *Hand {
	h := &Hand{}
	h.Add(cards...)
	return h
}

// Add 加入若干张牌
func (h *Hand) Add(cards ...card.Card) {
	h.cards = append(h.cards, cards...)
	h.counts = nil
}

// Remove 按牌面移除，手中没有的牌被忽略，返回实际移除的张数
func (h *Hand) Remove(cards ...card.Card) int {
	removed := 0
	for _, c := range cards {
		if i := slices.Index(h.cards, c); i >= 0 {
			h.cards = slices.Delete(h.cards, i, i+1)
			removed++
		}
	}
	if removed > 0 {
		h.counts = nil
	}
	return removed
}

// Clear 清空手牌
func (h *Hand) Clear() {
	h.cards = nil
	h.counts = nil
}

// Sort 从大到小整理手牌
func (h *Hand) Sort() {
	card.Sort(h.cards)
	h.counts = nil
}

// Len 手牌张数
func (h *Hand) Len() int {
	return len(h.cards)
}

// IsEmpty 手牌是否已出完
func (h *Hand) IsEmpty() bool {
	return len(h.cards) == 0
}

// Cards 返回手牌副本
func (h *Hand) Cards() []card.Card {
	return slices.Clone(h.cards)
}

// Contains 检查手牌是否包含给定的全部牌
func (h *Hand) Contains(cards []card.Card) bool {
	have := make(map[card.Card]int, len(h.cards))
	for _, c := range h.cards {
		have[c]++
	}
	for _, c := range cards {
		if have[c] == 0 {
			return false
		}
		have[c]--
	}
	return true
}

// Count 某个权重的张数
func (h *Hand) Count(w card.Weight) int {
	return h.weightCounts()[w]
}

// Classify 将整手牌分类
func (h *Hand) Classify() CardSet {
	return Classify(h.cards)
}

// Score 叫地主强度：小王 3 分，大王 4 分，每张 2 记 2 分
func (h *Hand) Score() int {
	counts := h.weightCounts()
	return counts[card.WeightBlackJoker]*3 + counts[card.WeightRedJoker]*4 + counts[card.Weight2]*2
}

func (h *Hand) weightCounts() map[card.Weight]int {
	if h.counts == nil {
		h.counts = make(map[card.Weight]int)
		for _, c := range h.cards {
			h.counts[c.Weight()]++
		}
	}
	return h.counts
}

// take 取出指定权重的 n 张牌（不修改手牌）
func (h *Hand) take(w card.Weight, n int) []card.Card {
	out := make([]card.Card, 0, n)
	for _, c := range h.cards {
		if len(out) == n {
			break
		}
		if c.Weight() == w {
			out = append(out, c)
		}
	}
	return out
}
