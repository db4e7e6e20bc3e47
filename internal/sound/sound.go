//go:build !ci

// Package sound 终端客户端的提示音
package sound

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

const sampleRate = beep.SampleRate(44100)

// 没有音效文件时使用的合成音：频率与时长
var fallbackTones = map[string]struct {
	freq     float64
	duration time.Duration
}{
	EventDeal:  {523.25, 120 * time.Millisecond},
	EventTurn:  {880, 150 * time.Millisecond},
	EventPlay:  {659.25, 80 * time.Millisecond},
	EventBomb:  {196, 400 * time.Millisecond},
	EventWin:   {1046.5, 300 * time.Millisecond},
	EventLose:  {261.63, 300 * time.Millisecond},
	EventAlert: {440, 200 * time.Millisecond},
}

// Player 预先解码到内存的音效
type Player struct {
	mu      sync.RWMutex
	buffers map[string]*beep.Buffer
	enabled bool
}

// NewPlayer 创建播放器，Init 之前 Play 不发声
func NewPlayer() *Player {
	return &Player{buffers: make(map[string]*beep.Buffer)}
}

// Init 初始化扬声器并加载 dir 下的 mp3/wav，缺失的事件使用合成音
func (p *Player) Init(dir string) error {
	// 较小的缓冲区延迟更低
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("初始化扬声器失败: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.loadDir(dir); err != nil {
		return err
	}
	for name, tone := range fallbackTones {
		if _, ok := p.buffers[name]; ok {
			continue
		}
		buf, err := synthesize(tone.freq, tone.duration)
		if err != nil {
			return err
		}
		p.buffers[name] = buf
	}
	p.enabled = true
	return nil
}

func (p *Player) loadDir(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取音效目录失败: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".mp3" && ext != ".wav" {
			continue
		}
		buf, err := decodeFile(filepath.Join(dir, name), ext)
		if err != nil {
			// 单个文件损坏不影响其他音效
			continue
		}
		p.buffers[strings.TrimSuffix(name, filepath.Ext(name))] = buf
	}
	return nil
}

func decodeFile(path, ext string) (*beep.Buffer, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = streamer.Close() }()

	var s beep.Streamer = streamer
	if format.SampleRate != sampleRate {
		s = beep.Resample(4, format.SampleRate, sampleRate, streamer)
	}
	buf := beep.NewBuffer(stereo())
	buf.Append(s)
	return buf, nil
}

func synthesize(freq float64, d time.Duration) (*beep.Buffer, error) {
	tone, err := generators.SineTone(sampleRate, freq)
	if err != nil {
		return nil, err
	}
	quiet := &effects.Volume{Streamer: beep.Take(sampleRate.N(d), tone), Base: 2, Volume: -2}
	buf := beep.NewBuffer(stereo())
	buf.Append(quiet)
	return buf, nil
}

func stereo() beep.Format {
	return beep.Format{SampleRate: sampleRate, NumChannels: 2, Precision: 2}
}

// Play 播放事件音效，未知事件静默忽略
func (p *Player) Play(name string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.enabled {
		return
	}
	if buf, ok := p.buffers[name]; ok {
		speaker.Play(buf.Streamer(0, buf.Len()))
	}
}

// Close 停止播放
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		speaker.Clear()
		p.enabled = false
	}
}
