package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/palemoky/doudizhu-server/internal/game/card"
)

const (
	LandlordIcon = "👑"
	FarmerIcon   = "🧑‍🌾"
)

var (
	docStyle    = lipgloss.NewStyle().Margin(1, 2)
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CD0000")).Background(lipgloss.Color("#FFFFFF")).Bold(true)
	blackStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("#FFFFFF")).Bold(true)
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("228")).Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	activeStyle = boxStyle.BorderForeground(lipgloss.Color("228"))
	promptStyle = lipgloss.NewStyle().MarginTop(1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// renderCard 红桃、方块和大王用红色
func renderCard(c card.Card) string {
	style := blackStyle
	if c.Suit == card.Heart || c.Suit == card.Diamond || c.Suit == card.RedJoker {
		style = redStyle
	}
	return style.Render(" " + c.String() + " ")
}

func renderCards(cards []card.Card) string {
	if len(cards) == 0 {
		return dimStyle.Render("(无)")
	}
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = renderCard(c)
	}
	return strings.Join(parts, " ")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
