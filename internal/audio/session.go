package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/liuscraft/orion-dictate/internal/logging"
)

// Session 进程级音频会话。激活时初始化 PortAudio，停用时释放；
// 类别决定是否需要输入设备，模式决定采集延迟。
type Session struct {
	mu       sync.Mutex
	category Category
	mode     Mode
	active   bool

	initialize func() error
	terminate  func() error
	probeInput func() error
}

func NewSession() *Session {
	return &Session{
		category:   CategoryAmbient,
		mode:       ModeDefault,
		initialize: portaudio.Initialize,
		terminate:  portaudio.Terminate,
		probeInput: func() error {
			_, err := portaudio.DefaultInputDevice()
			return err
		},
	}
}

func (s *Session) SetCategory(category Category) error {
	switch category {
	case CategoryAmbient, CategoryPlayback, CategoryRecord, CategoryPlayAndRecord:
	default:
		return fmt.Errorf("set category %d: %w", int(category), ErrUnknownSetting)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.category = category
	return nil
}

func (s *Session) SetMode(mode Mode) error {
	switch mode {
	case ModeDefault, ModeMeasurement, ModeVoiceChat:
	default:
		return fmt.Errorf("set mode %d: %w", int(mode), ErrUnknownSetting)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	return nil
}

func (s *Session) SetActive(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if active == s.active {
		return nil
	}

	if !active {
		s.active = false
		if err := s.terminate(); err != nil {
			return fmt.Errorf("terminate portaudio: %w", err)
		}
		logging.Infof("AudioSession: deactivated")
		return nil
	}

	if err := s.initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	if s.category.capturesInput() {
		if err := s.probeInput(); err != nil {
			_ = s.terminate()
			return fmt.Errorf("%w: %v", ErrNoInputDevice, err)
		}
	}
	s.active = true
	logging.Infof("AudioSession: activated (category=%s, mode=%s)", s.category, s.mode)
	return nil
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) Category() Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.category
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// LowLatency 测量/通话模式下使用设备的低延迟参数
func (s *Session) LowLatency() bool {
	mode := s.Mode()
	return mode == ModeMeasurement || mode == ModeVoiceChat
}
