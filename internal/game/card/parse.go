package card

import (
	"fmt"
	"strings"
)

// charToWeight 用于快速查找字符对应的权重
var charToWeight = map[rune]Weight{
	'3': Weight3,
	'4': Weight4,
	'5': Weight5,
	'6': Weight6,
	'7': Weight7,
	'8': Weight8,
	'9': Weight9,
	'T': Weight10,
	'J': WeightJ,
	'Q': WeightQ,
	'K': WeightK,
	'A': WeightA,
	'2': Weight2,
	'B': WeightBlackJoker,
	'R': WeightRedJoker,
}

// WeightFromChar 解析单个字符
func WeightFromChar(char rune) (Weight, error) {
	if w, ok := charToWeight[char]; ok {
		return w, nil
	}
	return WeightMin, fmt.Errorf("无法识别的点数: %c", char)
}

// NumberOf 返回权重对应的牌面数字
func NumberOf(w Weight) int {
	switch w {
	case WeightA:
		return NumberAce
	case Weight2:
		return NumberTwo
	case WeightBlackJoker:
		return NumberBlackJoker
	case WeightRedJoker:
		return NumberRedJoker
	}
	return int(w) + 2
}

// ParseWeights 将输入字符串解析为权重计数，"10" 与 "T" 等价
func ParseWeights(input string) (map[Weight]int, error) {
	counts := make(map[Weight]int)
	clean := strings.ToUpper(strings.ReplaceAll(input, "10", "T"))

	for _, char := range clean {
		if char == ' ' || char == ',' {
			continue
		}
		w, err := WeightFromChar(char)
		if err != nil {
			return nil, err
		}
		counts[w]++
	}
	return counts, nil
}

// ParseCards 将紧凑的点数字符串转换为牌，花色按出现次数轮流分配
func ParseCards(input string) ([]Card, error) {
	clean := strings.ToUpper(strings.ReplaceAll(input, "10", "T"))
	seen := make(map[Weight]int)
	cards := make([]Card, 0, len(clean))

	for _, char := range clean {
		if char == ' ' || char == ',' {
			continue
		}
		w, err := WeightFromChar(char)
		if err != nil {
			return nil, err
		}
		switch w {
		case WeightBlackJoker:
			if seen[w] > 0 {
				return nil, fmt.Errorf("小王只有一张")
			}
			cards = append(cards, NewBlackJoker())
		case WeightRedJoker:
			if seen[w] > 0 {
				return nil, fmt.Errorf("大王只有一张")
			}
			cards = append(cards, NewRedJoker())
		default:
			if seen[w] >= 4 {
				return nil, fmt.Errorf("点数 %s 超过四张", w)
			}
			cards = append(cards, New(Suit(seen[w]), NumberOf(w)))
		}
		seen[w]++
	}
	return cards, nil
}

// MustParse 解析失败时 panic，仅用于测试与常量构造
func MustParse(input string) []Card {
	cards, err := ParseCards(input)
	if err != nil {
		panic(err)
	}
	return cards
}
