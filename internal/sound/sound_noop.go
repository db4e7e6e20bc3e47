//go:build ci

// Package sound 终端客户端的提示音
package sound

// Player CI 环境下没有音频设备
type Player struct{}

func NewPlayer() *Player { return &Player{} }

func (p *Player) Init(string) error { return nil }

func (p *Player) Play(string) {}

func (p *Player) Close() {}
