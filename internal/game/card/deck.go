package card

import (
	"math/rand/v2"
	"slices"
	"strings"
)

// Deck 定义一副牌
type Deck []Card

// NewDeck 按编号顺序生成完整的 54 张牌
func NewDeck() Deck {
	deck := make(Deck, 0, DeckSize)
	for id := range DeckSize {
		c, _ := FromID(id)
		deck = append(deck, c)
	}
	return deck
}

// Shuffle 均匀洗牌（Fisher-Yates）
func (d Deck) Shuffle() {
	rand.Shuffle(len(d), func(i, j int) {
		d[i], d[j] = d[j], d[i]
	})
}

// Compare 按权重比较，权重相同时按花色
func Compare(a, b Card) int {
	if a.Weight() != b.Weight() {
		return int(a.Weight()) - int(b.Weight())
	}
	return int(a.Suit) - int(b.Suit)
}

// Sort 从大到小排序
func Sort(cards []Card) {
	slices.SortFunc(cards, func(a, b Card) int { return Compare(b, a) })
}

// SortAsc 从小到大排序
func SortAsc(cards []Card) {
	slices.SortFunc(cards, Compare)
}

// Format 将一组牌格式化为空格分隔的字符串
func Format(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
