package audio

import (
	"errors"
	"time"
)

var (
	ErrTapInstalled   = errors.New("tap already installed on bus")
	ErrNoTap          = errors.New("no tap installed on input node")
	ErrEngineRunning  = errors.New("audio engine already running")
	ErrNoInputDevice  = errors.New("no audio input device available")
	ErrSessionClosed  = errors.New("audio session is not active")
	ErrInvalidFormat  = errors.New("invalid audio format")
	ErrUnknownSetting = errors.New("unknown audio session setting")
)

// Format 描述一路 PCM 流：采样率与声道数，样本固定为 int16 交错排列
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

// Buffer 一次 tap 回调交付的音频块
type Buffer struct {
	Samples []int16
	Format  Format
}

// Frames 返回帧数（一帧包含所有声道的样本）
func (b Buffer) Frames() int {
	if b.Format.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.Format.SampleRate)
}

// TapHandler receives captured buffers in delivery order. when is the capture time of the
// first frame. Handlers run on the engine's capture goroutine and must not block.
type TapHandler func(buf Buffer, when time.Time)

// InputNode 输入节点，负责对外暴露原生格式并挂载 tap
type InputNode interface {
	OutputFormat(bus int) Format
	InstallTap(bus int, bufferSize int, format Format, handler TapHandler) error
	RemoveTap(bus int)
}

// Engine 采集引擎
type Engine interface {
	// InputNode returns nil when the engine has no usable input.
	InputNode() InputNode
	Prepare() error
	Start() error
	Stop()
	Running() bool
}

// Category 音频会话类别
type Category int

const (
	CategoryAmbient Category = iota
	CategoryPlayback
	CategoryRecord
	CategoryPlayAndRecord
)

func (c Category) String() string {
	switch c {
	case CategoryAmbient:
		return "Ambient"
	case CategoryPlayback:
		return "Playback"
	case CategoryRecord:
		return "Record"
	case CategoryPlayAndRecord:
		return "PlayAndRecord"
	default:
		return "Unknown"
	}
}

func (c Category) capturesInput() bool {
	return c == CategoryRecord || c == CategoryPlayAndRecord
}

// Mode 音频会话模式
type Mode int

const (
	ModeDefault Mode = iota
	ModeMeasurement
	ModeVoiceChat
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "Default"
	case ModeMeasurement:
		return "Measurement"
	case ModeVoiceChat:
		return "VoiceChat"
	default:
		return "Unknown"
	}
}

// SessionConfig is the process-wide audio session. Every call may fail independently.
type SessionConfig interface {
	SetCategory(category Category) error
	SetMode(mode Mode) error
	SetActive(active bool) error
}
