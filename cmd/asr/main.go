package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/liuscraft/orion-dictate/internal/asr"
	"github.com/liuscraft/orion-dictate/internal/audio"
	"github.com/liuscraft/orion-dictate/internal/speech"
)

const (
	defaultSampleRate     = 16000
	defaultFramesPerBlock = 1600
)

// 将 16bit 小端单声道 PCM 文件推给识别服务，用于不接麦克风时检查识别链路
func main() {
	input := flag.String("input", "", "raw PCM16LE mono file to transcribe")
	model := flag.String("model", "fun-asr-realtime", "ASR model name")
	endpoint := flag.String("endpoint", "", "WebSocket endpoint (optional)")
	sampleRate := flag.Int("sample-rate", defaultSampleRate, "Sample rate of the input in Hz")
	framesPerBuffer := flag.Int("frames", defaultFramesPerBlock, "Frames per appended buffer")
	realtime := flag.Bool("realtime", true, "Pace buffers at the input's real-time rate")
	semanticPunc := flag.Bool("semantic-punctuation", false, "Enable semantic punctuation")
	languageHints := flag.String("language-hints", "", "Comma-separated language hints (e.g. zh,en)")
	flag.Parse()

	apiKey := os.Getenv("DASHSCOPE_API_KEY")
	if apiKey == "" {
		log.Fatal("DASHSCOPE_API_KEY is not set")
	}
	if strings.TrimSpace(*input) == "" {
		log.Fatal("-input is required")
	}

	cfg := asr.Config{
		APIKey:     apiKey,
		Endpoint:   strings.TrimSpace(*endpoint),
		Model:      strings.TrimSpace(*model),
		Format:     "pcm",
		SampleRate: defaultSampleRate,
		QueueSize:  1024,
	}
	if *semanticPunc {
		enabled := true
		cfg.SemanticPunctuationEnabled = &enabled
	}
	if strings.TrimSpace(*languageHints) != "" {
		cfg.LanguageHints = splitComma(*languageHints)
	}

	file, err := os.Open(*input)
	if err != nil {
		log.Fatalf("open input failed: %v", err)
	}
	defer file.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	recognizer := asr.NewService(cfg)
	req := recognizer.NewRequest()
	req.SetReportPartialResults(true)

	done := make(chan error, 1)
	task, err := recognizer.StartTask(req, func(result *speech.Result, err error) {
		if result != nil {
			label := "partial"
			if result.IsFinal {
				label = "final"
			}
			fmt.Printf("%s: %s\n", label, result.Text)
		}
		if err != nil || (result != nil && result.IsFinal) {
			done <- err
		}
	})
	if err != nil {
		log.Fatalf("start task failed: %v", err)
	}

	format := audio.Format{SampleRate: *sampleRate, Channels: 1}
	if err := stream(ctx, file, req, format, *framesPerBuffer, *realtime); err != nil {
		task.Cancel()
		log.Fatalf("stream audio failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			log.Fatalf("recognition failed: %v", err)
		}
	case <-ctx.Done():
		task.Cancel()
	}
}

func stream(ctx context.Context, r io.Reader, req speech.Request, format audio.Format, frames int, realtime bool) error {
	if frames <= 0 {
		frames = defaultFramesPerBlock
	}
	chunk := make([]byte, frames*2)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.ReadFull(r, chunk)
		if n > 0 {
			buf := audio.Buffer{Samples: audio.DecodeInt16LE(chunk[:n]), Format: format}
			if appendErr := req.Append(buf); appendErr != nil {
				return appendErr
			}
			if realtime {
				time.Sleep(buf.Duration())
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return req.EndAudio()
		}
		if err != nil {
			return err
		}
	}
}

func splitComma(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
