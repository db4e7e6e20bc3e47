package card

import (
	"fmt"
	"strconv"
)

// Suit 花色
type Suit int

const (
	Spade Suit = iota
	Heart
	Club
	Diamond
	BlackJoker
	RedJoker
)

var suitSymbols = map[Suit]string{
	Spade:      "♠",
	Heart:      "♥",
	Club:       "♣",
	Diamond:    "♦",
	BlackJoker: "",
	RedJoker:   "",
}

func (s Suit) String() string {
	if sym, ok := suitSymbols[s]; ok {
		return sym
	}
	return "?"
}

// 牌面数字：1 为 A，11~13 为 J/Q/K，大小王使用超出范围的哨兵值
const (
	NumberAce        = 1
	NumberTwo        = 2
	NumberKing       = 13
	NumberBlackJoker = 14
	NumberRedJoker   = 15
)

// Weight 牌的大小权重，与牌面数字不同：3 最小，2 和大小王最大
type Weight int

const (
	WeightMin Weight = iota
	Weight3
	Weight4
	Weight5
	Weight6
	Weight7
	Weight8
	Weight9
	Weight10
	WeightJ
	WeightQ
	WeightK
	WeightA
	Weight2
	WeightBlackJoker
	WeightRedJoker
	WeightMax
)

var weightNames = map[Weight]string{
	Weight3:          "3",
	Weight4:          "4",
	Weight5:          "5",
	Weight6:          "6",
	Weight7:          "7",
	Weight8:          "8",
	Weight9:          "9",
	Weight10:         "10",
	WeightJ:          "J",
	WeightQ:          "Q",
	WeightK:          "K",
	WeightA:          "A",
	Weight2:          "2",
	WeightBlackJoker: "B",
	WeightRedJoker:   "R",
}

func (w Weight) String() string {
	if name, ok := weightNames[w]; ok {
		return name
	}
	return strconv.Itoa(int(w))
}

// Valid 是否为一张真实牌的权重
func (w Weight) Valid() bool {
	return w > WeightMin && w < WeightMax
}

// DeckSize 一副牌的张数
const DeckSize = 54

// Card 一张牌，值类型，不可变
type Card struct {
	Suit   Suit
	Number int
}

// New 创建一张普通花色牌
func New(suit Suit, number int) Card {
	return Card{Suit: suit, Number: number}
}

// NewBlackJoker 小王
func NewBlackJoker() Card { return Card{Suit: BlackJoker, Number: NumberBlackJoker} }

// NewRedJoker 大王
func NewRedJoker() Card { return Card{Suit: RedJoker, Number: NumberRedJoker} }

// Weight 计算牌的权重
func (c Card) Weight() Weight {
	switch c.Number {
	case NumberAce:
		return WeightA
	case NumberTwo:
		return Weight2
	case NumberBlackJoker:
		return WeightBlackJoker
	case NumberRedJoker:
		return WeightRedJoker
	}
	if c.Number >= 3 && c.Number <= NumberKing {
		return Weight(c.Number - 2)
	}
	return WeightMin
}

// ID 将牌编码为 0~53：花色*13 + 数字-1，大小王为 52 和 53
func (c Card) ID() int {
	switch c.Suit {
	case BlackJoker:
		return 52
	case RedJoker:
		return 53
	}
	return int(c.Suit)*13 + c.Number - 1
}

// FromID 由编码还原一张牌
func FromID(id int) (Card, error) {
	switch {
	case id < 0 || id >= DeckSize:
		return Card{}, fmt.Errorf("无效的牌编号: %d", id)
	case id == 52:
		return NewBlackJoker(), nil
	case id == 53:
		return NewRedJoker(), nil
	}
	return Card{Suit: Suit(id / 13), Number: id%13 + 1}, nil
}

// Valid 检查花色与数字是否匹配
func (c Card) Valid() bool {
	switch c.Suit {
	case BlackJoker:
		return c.Number == NumberBlackJoker
	case RedJoker:
		return c.Number == NumberRedJoker
	case Spade, Heart, Club, Diamond:
		return c.Number >= NumberAce && c.Number <= NumberKing
	}
	return false
}

func (c Card) String() string {
	switch c.Suit {
	case BlackJoker:
		return "BJ"
	case RedJoker:
		return "RJ"
	}
	return c.Suit.String() + c.Weight().String()
}
