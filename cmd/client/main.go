package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/doudizhu-server/internal/client"
	"github.com/palemoky/doudizhu-server/internal/logger"
	"github.com/palemoky/doudizhu-server/internal/protocol/codec"
	"github.com/palemoky/doudizhu-server/internal/sound"
	"github.com/palemoky/doudizhu-server/internal/ui"
)

func main() {
	serverAddr := flag.String("server", "localhost:1780", "服务器地址")
	codecName := flag.String("codec", "protobuf", "消息编码 (protobuf/json)，需要与服务端一致")
	soundDir := flag.String("sounds", "assets/sounds", "音效目录")
	mute := flag.Bool("mute", false, "关闭音效")
	flag.Parse()

	format, err := codec.ParseFormat(*codecName)
	if err != nil {
		log.Fatalf("编码格式错误: %v", err)
	}
	if err := logger.InitClient(); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Close()

	conn := client.NewClient(fmt.Sprintf("ws://%s/ws", *serverAddr), format)
	player := sound.NewPlayer()
	if !*mute {
		if err := player.Init(*soundDir); err != nil {
			logger.LogWarn("🔇 音效不可用: %v", err)
		}
	}
	defer player.Close()

	p := tea.NewProgram(ui.NewModel(conn, conn.Messages(), player), tea.WithAltScreen())
	conn.OnReconnecting = func(attempt, maxTries int) {
		p.Send(ui.ReconnectingMsg{Attempt: attempt, MaxTries: maxTries})
	}
	conn.OnClose = func() {
		p.Send(ui.ConnClosedMsg{})
	}

	// 回调在读协程中触发，需在连接前设置
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = conn.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatalf("连接服务器失败: %v", err)
	}
	defer conn.Close()
	conn.StartHeartbeat()

	if _, err := p.Run(); err != nil {
		log.Fatalf("启动客户端时出错: %v", err)
	}
}
