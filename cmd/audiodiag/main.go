package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/liuscraft/orion-dictate/internal/audio"
)

func main() {
	capture := flag.Int("capture", 0, "Capture from the input device for N seconds through the dictation engine")
	device := flag.String("device", "", "Input device name (partial match), empty for default")
	tapFrames := flag.Int("tap-frames", 1024, "Frames per tap buffer")
	flag.Parse()

	fmt.Println("=== PortAudio Input Device Diagnostics ===")
	fmt.Println()

	if err := portaudio.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize PortAudio: %v\n", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	listInputDevices()

	if *capture > 0 {
		if err := runCapture(*device, *tapFrames, time.Duration(*capture)*time.Second); err != nil {
			fmt.Fprintf(os.Stderr, "Capture failed: %v\n", err)
			os.Exit(1)
		}
	}
}

func listInputDevices() {
	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		fmt.Printf("Default Input Device: (error: %v)\n", err)
	} else {
		fmt.Printf("Default Input Device: %s\n", defaultInput.Name)
	}
	fmt.Println()

	devices, err := portaudio.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get devices: %v\n", err)
		return
	}

	inputs := 0
	for i, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}
		inputs++
		marker := ""
		if defaultInput != nil && dev.Name == defaultInput.Name {
			marker = " [DEFAULT INPUT]"
		}
		fmt.Printf("[%d] %s%s\n", i, dev.Name, marker)
		fmt.Printf("    Max Input Channels:  %d\n", dev.MaxInputChannels)
		fmt.Printf("    Default Sample Rate: %.0f Hz\n", dev.DefaultSampleRate)
		fmt.Printf("    Input Latency: Low=%.1fms, High=%.1fms\n",
			dev.DefaultLowInputLatency.Seconds()*1000,
			dev.DefaultHighInputLatency.Seconds()*1000)
		if int(dev.DefaultSampleRate) != 16000 {
			fmt.Printf("    Note: captured audio is resampled from %.0f Hz to 16000 Hz before recognition\n", dev.DefaultSampleRate)
		}
		fmt.Println()
	}
	fmt.Printf("%d input device(s)\n\n", inputs)
}

// runCapture 走与 dictate 相同的 Session/Engine/tap 路径，按秒打印电平
func runCapture(device string, tapFrames int, duration time.Duration) error {
	session := audio.NewSession()
	if err := session.SetCategory(audio.CategoryRecord); err != nil {
		return err
	}
	if err := session.SetMode(audio.ModeMeasurement); err != nil {
		return err
	}
	if err := session.SetActive(true); err != nil {
		return err
	}
	defer session.SetActive(false)

	engine := audio.NewPortAudioEngine(audio.EngineConfig{DeviceName: device, Channels: 1}, session)
	node := engine.InputNode()
	if node == nil {
		return audio.ErrNoInputDevice
	}
	format := node.OutputFormat(0)
	fmt.Printf("=== Capturing %s at %d Hz, %d channel(s) ===\n", duration, format.SampleRate, format.Channels)

	meter := &levelMeter{}
	if err := node.InstallTap(0, tapFrames, format, func(buf audio.Buffer, _ time.Time) {
		meter.add(buf)
	}); err != nil {
		return err
	}
	defer node.RemoveTap(0)

	if err := engine.Prepare(); err != nil {
		return err
	}
	if err := engine.Start(); err != nil {
		return err
	}
	defer engine.Stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	deadline := time.After(duration)
	for {
		select {
		case <-ticker.C:
			buffers, frames, level := meter.reset()
			fmt.Printf("  buffers=%-4d frames=%-6d level=%-5.3f %s\n", buffers, frames, level, bar(level))
		case <-deadline:
			return nil
		}
	}
}

type levelMeter struct {
	mu      sync.Mutex
	buffers int
	frames  int
	peak    float64
}

func (m *levelMeter) add(buf audio.Buffer) {
	level := audio.RMS(buf.Samples)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers++
	m.frames += buf.Frames()
	if level > m.peak {
		m.peak = level
	}
}

func (m *levelMeter) reset() (int, int, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buffers, frames, peak := m.buffers, m.frames, m.peak
	m.buffers, m.frames, m.peak = 0, 0, 0
	return buffers, frames, peak
}

func bar(level float64) string {
	n := int(level * 40)
	if n > 40 {
		n = 40
	}
	return strings.Repeat("#", n)
}
