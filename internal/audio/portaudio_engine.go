package audio

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/liuscraft/orion-dictate/internal/logging"
)

// EngineConfig PortAudio 采集引擎配置
type EngineConfig struct {
	// DeviceName 设备名称（部分匹配），空字符串表示默认输入设备
	DeviceName string
	Channels   int
	// SampleRate 为 0 时使用设备原生采样率
	SampleRate int
}

// LatencyPolicy decides which of the device's latency presets a new stream uses.
type LatencyPolicy interface {
	LowLatency() bool
}

type audioStream interface {
	Start() error
	Read() error
	Abort() error
	Stop() error
	Close() error
}

type deviceSpec struct {
	info        *portaudio.DeviceInfo
	name        string
	sampleRate  int
	maxChannels int
	lowLatency  time.Duration
	highLatency time.Duration
}

type streamFactory func(dev deviceSpec, format Format, frames int, latency time.Duration, buf *[]int16) (audioStream, error)

// PortAudioEngine 基于 PortAudio 阻塞读的采集引擎。
// 调用方需先激活 Session（初始化 PortAudio）再访问输入节点。
type PortAudioEngine struct {
	cfg     EngineConfig
	latency LatencyPolicy
	resolve func(name string) (deviceSpec, error)
	open    streamFactory
	node    *inputNode

	mu       sync.Mutex
	stream   audioStream
	buffer   []int16
	format   Format
	prepared bool
	running  bool
	stopCh   chan struct{}
	done     chan struct{}
}

func NewPortAudioEngine(cfg EngineConfig, latency LatencyPolicy) *PortAudioEngine {
	return newEngine(cfg, latency, resolvePortAudioDevice, openPortAudioStream)
}

func newEngine(cfg EngineConfig, latency LatencyPolicy, resolve func(string) (deviceSpec, error), open streamFactory) *PortAudioEngine {
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	e := &PortAudioEngine{
		cfg:     cfg,
		latency: latency,
		resolve: resolve,
		open:    open,
	}
	e.node = &inputNode{engine: e}
	return e
}

// InputNode 返回 nil 表示当前没有可用的输入设备
func (e *PortAudioEngine) InputNode() InputNode {
	if _, err := e.resolve(e.cfg.DeviceName); err != nil {
		logging.Warnf("AudioEngine: input device unavailable: %v", err)
		return nil
	}
	return e.node
}

func (e *PortAudioEngine) Prepare() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prepareLocked()
}

func (e *PortAudioEngine) prepareLocked() error {
	if e.running || e.prepared {
		return nil
	}

	t := e.node.current()
	if t == nil {
		return ErrNoTap
	}

	dev, err := e.resolve(e.cfg.DeviceName)
	if err != nil {
		return err
	}

	format := t.format
	if !format.Valid() {
		format = e.nativeFormat(dev)
	}

	latency := dev.highLatency
	latencyMode := "high"
	if e.latency != nil && e.latency.LowLatency() {
		latency = dev.lowLatency
		latencyMode = "low"
	}

	buffer := make([]int16, t.frames*format.Channels)
	stream, err := e.open(dev, format, t.frames, latency, &buffer)
	if err != nil {
		return fmt.Errorf("open input stream on %q: %w", dev.name, err)
	}

	e.stream = stream
	e.buffer = buffer
	e.format = format
	e.prepared = true
	logging.Infof("AudioEngine: prepared device=%s, sampleRate=%d, channels=%d, frames=%d, latency=%s(%.1fms)",
		dev.name, format.SampleRate, format.Channels, t.frames, latencyMode, latency.Seconds()*1000)
	return nil
}

func (e *PortAudioEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrEngineRunning
	}
	if err := e.prepareLocked(); err != nil {
		return err
	}

	if err := e.stream.Start(); err != nil {
		_ = e.stream.Close()
		e.stream = nil
		e.prepared = false
		return fmt.Errorf("start input stream: %w", err)
	}

	e.running = true
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})
	go e.captureLoop(e.stream, e.buffer, e.format, e.stopCh, e.done)

	logging.Infof("AudioEngine: started")
	return nil
}

func (e *PortAudioEngine) Stop() {
	e.mu.Lock()
	stream, stopCh, done := e.stream, e.stopCh, e.done
	wasRunning := e.running
	e.stream = nil
	e.stopCh = nil
	e.done = nil
	e.running = false
	e.prepared = false
	e.mu.Unlock()

	if stream == nil {
		return
	}

	if stopCh != nil {
		close(stopCh)
	}
	if wasRunning {
		if err := stream.Abort(); err != nil {
			logging.Debugf("AudioEngine: abort stream: %v", err)
		}
	}
	if done != nil {
		<-done
	}
	if err := stream.Stop(); err != nil {
		logging.Debugf("AudioEngine: stop stream: %v", err)
	}
	if err := stream.Close(); err != nil {
		logging.Errorf("AudioEngine: close stream: %v", err)
	}
	logging.Infof("AudioEngine: stopped")
}

func (e *PortAudioEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *PortAudioEngine) nativeFormat(dev deviceSpec) Format {
	rate := e.cfg.SampleRate
	if rate <= 0 {
		rate = dev.sampleRate
	}
	if rate <= 0 {
		rate = 16000
	}
	channels := e.cfg.Channels
	if dev.maxChannels > 0 && channels > dev.maxChannels {
		channels = dev.maxChannels
	}
	return Format{SampleRate: rate, Channels: channels}
}

func (e *PortAudioEngine) captureLoop(stream audioStream, buffer []int16, format Format, stopCh, done chan struct{}) {
	defer close(done)

	frameTime := Buffer{Samples: buffer, Format: format}.Duration()
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		err := stream.Read()
		select {
		case <-stopCh:
			return
		default:
		}
		if err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				logging.Warnf("AudioEngine: input overflowed, continuing")
				continue
			}
			logging.Errorf("AudioEngine: read failed, capture stopped: %v", err)
			e.markStopped(stopCh)
			return
		}

		samples := make([]int16, len(buffer))
		copy(samples, buffer)
		e.node.deliver(Buffer{Samples: samples, Format: format}, time.Now().Add(-frameTime))
	}
}

func (e *PortAudioEngine) markStopped(stopCh chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopCh == stopCh {
		e.running = false
	}
}

type tap struct {
	frames  int
	format  Format
	handler TapHandler
}

// inputNode 只支持 bus 0
type inputNode struct {
	engine *PortAudioEngine

	mu  sync.RWMutex
	tap *tap
}

func (n *inputNode) OutputFormat(bus int) Format {
	dev, err := n.engine.resolve(n.engine.cfg.DeviceName)
	if err != nil {
		logging.Warnf("AudioEngine: output format of bus %d unavailable: %v", bus, err)
		return n.engine.nativeFormat(deviceSpec{})
	}
	return n.engine.nativeFormat(dev)
}

func (n *inputNode) InstallTap(bus int, bufferSize int, format Format, handler TapHandler) error {
	if bus != 0 {
		return fmt.Errorf("install tap on bus %d: only bus 0 is supported", bus)
	}
	if bufferSize <= 0 {
		return fmt.Errorf("install tap: invalid buffer size %d", bufferSize)
	}
	if handler == nil {
		return errors.New("install tap: nil handler")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tap != nil {
		return ErrTapInstalled
	}
	n.tap = &tap{frames: bufferSize, format: format, handler: handler}
	return nil
}

func (n *inputNode) RemoveTap(bus int) {
	if bus != 0 {
		return
	}
	n.mu.Lock()
	n.tap = nil
	n.mu.Unlock()
}

func (n *inputNode) current() *tap {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tap
}

func (n *inputNode) deliver(buf Buffer, when time.Time) {
	t := n.current()
	if t == nil {
		return
	}
	t.handler(buf, when)
}

// ProbeInput 临时初始化 PortAudio 并检查输入设备是否可用
func ProbeInput(deviceName string) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	_, err := resolvePortAudioDevice(deviceName)
	return err
}

func resolvePortAudioDevice(name string) (deviceSpec, error) {
	var info *portaudio.DeviceInfo
	if strings.TrimSpace(name) != "" {
		found, err := findInputDeviceByName(name)
		if err != nil {
			logging.Warnf("AudioEngine: device %q not found, falling back to default: %v", name, err)
		} else {
			info = found
		}
	}
	if info == nil {
		found, err := portaudio.DefaultInputDevice()
		if err != nil {
			return deviceSpec{}, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
		}
		info = found
	}
	if info.MaxInputChannels <= 0 {
		return deviceSpec{}, fmt.Errorf("%w: %s has no input channels", ErrNoInputDevice, info.Name)
	}

	return deviceSpec{
		info:        info,
		name:        info.Name,
		sampleRate:  int(info.DefaultSampleRate),
		maxChannels: info.MaxInputChannels,
		lowLatency:  info.DefaultLowInputLatency,
		highLatency: info.DefaultHighInputLatency,
	}, nil
}

// findInputDeviceByName 按名称查找输入设备（支持部分匹配）
func findInputDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	nameLower := strings.ToLower(name)
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.Contains(strings.ToLower(dev.Name), nameLower) {
			return dev, nil
		}
	}

	return nil, fmt.Errorf("no input device found matching %q", name)
}

func openPortAudioStream(dev deviceSpec, format Format, frames int, latency time.Duration, buf *[]int16) (audioStream, error) {
	if dev.info == nil {
		return portaudio.OpenDefaultStream(format.Channels, 0, float64(format.SampleRate), frames, buf)
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev.info,
			Channels: format.Channels,
			Latency:  latency,
		},
		SampleRate:      float64(format.SampleRate),
		FramesPerBuffer: frames,
	}
	return portaudio.OpenStream(params, buf)
}
