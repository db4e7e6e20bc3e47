package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/palemoky/doudizhu-server/internal/game/card"
	"github.com/palemoky/doudizhu-server/internal/protocol"
	"github.com/palemoky/doudizhu-server/internal/protocol/convert"
)

// 记牌器显示顺序，从大到小
var counterOrder = []card.Weight{
	card.WeightRedJoker, card.WeightBlackJoker, card.Weight2, card.WeightA, card.WeightK,
	card.WeightQ, card.WeightJ, card.Weight10, card.Weight9, card.Weight8,
	card.Weight7, card.Weight6, card.Weight5, card.Weight4, card.Weight3,
}

func (m *Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.headerView())
	sb.WriteString("\n\n")

	if m.showRules {
		sb.WriteString(rulesView())
	} else {
		switch m.phase {
		case PhaseConnecting:
			sb.WriteString("正在连接服务器...")
		case PhaseLogin:
			sb.WriteString(boxStyle.Render("register <用户名> <密码>  注册\nlogin <用户名> <密码>     登录"))
		case PhaseLobby:
			sb.WriteString(m.lobbyView())
		case PhaseMatching:
			sb.WriteString(m.matchingView())
		case PhaseGame:
			sb.WriteString(m.gameView())
		case PhaseGameOver:
			sb.WriteString(m.gameOverView())
		}
	}

	sb.WriteString("\n")
	sb.WriteString(m.footerView())
	return docStyle.Render(sb.String())
}

func (m *Model) headerView() string {
	title := titleStyle.Render("🃏 斗地主")
	if m.user == nil {
		return title
	}
	info := fmt.Sprintf("%s %s  💰 %d", m.user.IconName, m.user.Username, m.user.Coin)
	if m.onlineCount > 0 {
		info += fmt.Sprintf("  在线 %d", m.onlineCount)
	}
	if latency := m.conn.Latency(); latency > 0 {
		info += fmt.Sprintf("  延迟 %dms", latency)
	}
	return title + "  " + info
}

func (m *Model) footerView() string {
	var sb strings.Builder
	if m.reconnecting != "" {
		sb.WriteString(errorStyle.Render(m.reconnecting))
		sb.WriteString("\n")
	}
	if m.maintenance {
		sb.WriteString(errorStyle.Render("🔧 服务器维护中，暂停匹配"))
		sb.WriteString("\n")
	}
	if m.notice != "" {
		style := noticeStyle
		if m.noticeErr {
			style = errorStyle
		}
		sb.WriteString(style.Render(m.notice))
		sb.WriteString("\n")
	}
	sb.WriteString(promptStyle.Render(m.input.View()))
	return sb.String()
}

func (m *Model) lobbyView() string {
	var sb strings.Builder
	sb.WriteString(boxStyle.Render("match  开始匹配\nrank   金币排行榜\nstats  个人战绩\nonline 在线人数\ninfo   刷新金币\nrules  游戏规则\nquit   退出"))

	var panels []string
	if len(m.rank) > 0 {
		var rb strings.Builder
		rb.WriteString(titleStyle.Render("🏆 排行榜"))
		for _, item := range m.rank {
			fmt.Fprintf(&rb, "\n%2d. %-12s %d", item.Rank, item.Username, item.Coin)
		}
		panels = append(panels, boxStyle.Render(rb.String()))
	}
	if s := m.stats; s != nil {
		streak := fmt.Sprintf("%d 连胜", s.CurrentStreak)
		if s.CurrentStreak < 0 {
			streak = fmt.Sprintf("%d 连败", -s.CurrentStreak)
		}
		panels = append(panels, boxStyle.Render(fmt.Sprintf(
			"%s\n总局数 %d  胜 %d  胜率 %.1f%%\n地主 %d 局  胜 %d\n当前 %s  最高 %d 连胜",
			titleStyle.Render("📊 战绩"), s.Games, s.Wins, s.WinRate,
			s.LandlordGames, s.LandlordWins, streak, s.MaxWinStreak)))
	}
	if len(panels) > 0 {
		sb.WriteString("\n")
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panels...))
	}
	return sb.String()
}

func (m *Model) matchingView() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", titleStyle.Render(fmt.Sprintf("🏠 匹配房间 %d", m.room.RoomID)))
	for _, mm := range m.room.Members {
		mark := "❌"
		if mm.Ready {
			mark = "✅"
		}
		me := ""
		if m.user != nil && mm.User.UserID == m.user.UserID {
			me = " (你)"
		}
		fmt.Fprintf(&sb, "  %s %s %s%s\n", mark, mm.User.IconName, mm.User.Username, me)
	}
	fmt.Fprintf(&sb, "\n等待玩家: %d/3\n", len(m.room.Members))
	sb.WriteString(dimStyle.Render("r 准备  u 取消准备  e 退出"))
	return boxStyle.Render(sb.String())
}

// seatView 对手座位
func (m *Model) seatView(seat int) string {
	gs := m.game
	s := gs.Seats[seat]
	icon := FarmerIcon
	if s.IsLandlord {
		icon = LandlordIcon
	}
	body := fmt.Sprintf("%s %s\n剩余 %d 张", icon, gs.SeatName(seat), s.CardsLeft)
	if gs.LastSeat == seat && len(gs.LastPlayed) > 0 {
		body += "\n" + renderCards(gs.LastPlayed)
	}
	if gs.TurnSeat == seat {
		return activeStyle.Render(body)
	}
	return boxStyle.Render(body)
}

func (m *Model) gameView() string {
	gs := m.game
	var sb strings.Builder

	// 对手按出牌顺序：下家在左，上家在右
	next, prev := (gs.Seat+1)%len(gs.Seats), (gs.Seat+2)%len(gs.Seats)
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.seatView(next), "  ", m.seatView(prev)))
	sb.WriteString("\n")

	if len(gs.UnderCards) > 0 {
		fmt.Fprintf(&sb, "底牌: %s\n", renderCards(gs.UnderCards))
	}
	if m.showCounter {
		sb.WriteString(m.counterView())
		sb.WriteString("\n")
	}

	role := FarmerIcon + " 农民"
	if gs.IsLandlord() {
		role = LandlordIcon + " 地主"
	}
	mine := fmt.Sprintf("%s  手牌 %d 张\n%s", role, len(gs.Hand), renderCards(gs.Hand))
	if gs.LastSeat == gs.Seat && len(gs.LastPlayed) > 0 {
		mine += "\n你出了: " + renderCards(gs.LastPlayed)
	}
	if gs.MyTurn() {
		sb.WriteString(activeStyle.Render(mine))
	} else {
		sb.WriteString(boxStyle.Render(mine))
	}
	sb.WriteString("\n")
	sb.WriteString(m.turnView())
	sb.WriteString("\n")
	sb.WriteString(boxStyle.Render(m.viewport.View()))
	return sb.String()
}

func (m *Model) turnView() string {
	gs := m.game
	countdown := ""
	if m.timerActive {
		countdown = " ⏰ " + m.turnTimer.View()
	}
	if !gs.MyTurn() {
		return dimStyle.Render(fmt.Sprintf("等待 %s ...%s", gs.SeatName(gs.TurnSeat), countdown))
	}
	if gs.Phase == protocol.PhaseGrabLandlord {
		return titleStyle.Render("轮到你抢地主: y 抢  n 不抢" + countdown)
	}
	if gs.MustLead() {
		return titleStyle.Render("轮到你出牌 (h 提示)" + countdown)
	}
	return titleStyle.Render(fmt.Sprintf("轮到你: 压过 [%s] 或 p 不出 (h 提示)%s", gs.LastHandType, countdown))
}

func (m *Model) counterView() string {
	var top, bottom strings.Builder
	for _, w := range counterOrder {
		fmt.Fprintf(&top, "%3s", w)
		fmt.Fprintf(&bottom, "%3d", m.game.Counter.Remaining(w))
	}
	return boxStyle.Render("记牌器\n" + top.String() + "\n" + bottom.String())
}

func (m *Model) gameOverView() string {
	gs := m.game
	r := gs.Result
	if r == nil {
		return ""
	}
	title := "😢 你输了"
	if m.won() {
		title = "🎉 你赢了"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  倍数 %d\n", titleStyle.Render(title), r.Multiple)
	for _, s := range r.Seats {
		icon := FarmerIcon
		if s.IsLandlord {
			icon = LandlordIcon
		}
		cards := make([]card.Card, len(s.Cards))
		for i, info := range s.Cards {
			cards[i] = convert.InfoToCard(info)
		}
		card.Sort(cards)
		fmt.Fprintf(&sb, "\n%s %-10s %+d  %s", icon, gs.SeatName(s.Seat), s.CoinDelta, renderCards(cards))
	}
	return boxStyle.Render(sb.String())
}

func rulesView() string {
	var sb strings.Builder
	sb.WriteString("【游戏目标】\n")
	sb.WriteString("地主先出完牌则地主胜，任意农民先出完牌则农民胜\n\n")
	sb.WriteString("【牌型】\n")
	sb.WriteString("单张 对子 三张 三带一 三带二 顺子(≥5) 连对(≥3对)\n")
	sb.WriteString("飞机 飞机带单 飞机带对 四带二 四带两对 炸弹 王炸\n\n")
	sb.WriteString("【出牌】\n")
	sb.WriteString("输入点数出牌，例如 33344 或 10JQKA，B/R 为小王/大王\n")
	sb.WriteString("p 不出  h 提示  c 记牌器\n\n")
	sb.WriteString("【结算】\n")
	sb.WriteString("每出一个炸弹或王炸倍数翻倍，地主输赢两份，农民各一份\n")
	sb.WriteString("再次输入 rules 返回")
	return boxStyle.Render(sb.String())
}

func helpText(phase Phase) string {
	switch phase {
	case PhaseLogin:
		return "register <用户名> <密码> | login <用户名> <密码>"
	case PhaseLobby:
		return "match | rank | stats | online | info | rules | quit"
	case PhaseMatching:
		return "r 准备 | u 取消准备 | e 退出匹配"
	case PhaseGame:
		return "y/n 抢地主 | 点数出牌 | p 不出 | h 提示 | c 记牌器"
	case PhaseGameOver:
		return "回车返回大厅"
	}
	return "quit 退出"
}

func reconnectingText(attempt, maxTries int) string {
	return fmt.Sprintf("🔄 连接断开，正在重连 (%d/%d)...", attempt, maxTries)
}
