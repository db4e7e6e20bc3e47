package convert

import (
	"fmt"

	"github.com/palemoky/doudizhu-server/internal/game/card"
	"github.com/palemoky/doudizhu-server/internal/protocol"
)

// CardToInfo 将 card.Card 转换为 protocol.CardInfo
func CardToInfo(c card.Card) protocol.CardInfo {
	return protocol.CardInfo{
		Suit:   int(c.Suit),
		Number: c.Number,
	}
}

// CardsToInfos 将 []card.Card 转换为 []protocol.CardInfo
func CardsToInfos(cards []card.Card) []protocol.CardInfo {
	infos := make([]protocol.CardInfo, len(cards))
	for i, c := range cards {
		infos[i] = CardToInfo(c)
	}
	return infos
}

// InfoToCard 将 protocol.CardInfo 转换为 card.Card
func InfoToCard(info protocol.CardInfo) card.Card {
	return card.Card{
		Suit:   card.Suit(info.Suit),
		Number: info.Number,
	}
}

// InfosToCards 转换并校验客户端提交的牌，拒绝不存在的牌和重复的牌
func InfosToCards(infos []protocol.CardInfo) ([]card.Card, error) {
	cards := make([]card.Card, len(infos))
	seen := make(map[card.Card]bool, len(infos))
	for i, info := range infos {
		c := InfoToCard(info)
		if !c.Valid() {
			return nil, fmt.Errorf("无效的牌: suit=%d number=%d", info.Suit, info.Number)
		}
		if seen[c] {
			return nil, fmt.Errorf("重复的牌: %s", c)
		}
		seen[c] = true
		cards[i] = c
	}
	return cards, nil
}
