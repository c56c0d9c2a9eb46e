package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/liuscraft/orion-dictate/internal/asr"
	"github.com/liuscraft/orion-dictate/internal/audio"
	"github.com/liuscraft/orion-dictate/internal/config"
	"github.com/liuscraft/orion-dictate/internal/logging"
	"github.com/liuscraft/orion-dictate/internal/metrics"
	"github.com/liuscraft/orion-dictate/internal/permission"
	"github.com/liuscraft/orion-dictate/internal/session"
	"github.com/liuscraft/orion-dictate/internal/viewstate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path (.json or .yaml)")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address (overrides config)")
	flag.Parse()

	appConfig, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := appConfig.ValidateKeys(true); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	if *metricsAddr != "" {
		appConfig.Metrics.Listen = *metricsAddr
	}

	if err := logging.Init(logging.Config{
		Level:  appConfig.Logging.Level,
		Format: appConfig.Logging.Format,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	logging.SetTraceID(logging.NewTraceID())
	logging.Infof("orion-dictate starting (locale=%s, model=%s)", appConfig.Session.Locale, appConfig.ASR.Model)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var metricsServer *metrics.Server
	if appConfig.Metrics.Listen != "" {
		metricsServer = metrics.NewServer(appConfig.Metrics.Listen, m)
		metricsServer.Start()
	}

	audioSession := audio.NewSession()
	engine := audio.NewPortAudioEngine(audio.EngineConfig{
		DeviceName: appConfig.Audio.InputDevice,
		Channels:   appConfig.Audio.Channels,
		SampleRate: appConfig.Audio.SampleRate,
	}, audioSession)

	recognizer := asr.NewService(asr.Config{
		APIKey:                     appConfig.ASR.APIKey,
		Endpoint:                   appConfig.ASR.Endpoint,
		Model:                      appConfig.ASR.Model,
		SampleRate:                 appConfig.ASR.SampleRate,
		SemanticPunctuationEnabled: appConfig.ASR.SemanticPunctuation,
		LanguageHints:              languageHints(appConfig.ASR.LanguageHints, appConfig.Session.Locale),
		DialTimeout:                time.Duration(appConfig.ASR.DialTimeoutMs) * time.Millisecond,
	})

	ui := newConsole(os.Stdout)
	authorizer, err := permission.New(appConfig.Session.Authorization,
		permission.WithPrompter(ui),
		permission.WithInputProbe(func() error {
			return audio.ProbeInput(appConfig.Audio.InputDevice)
		}),
	)
	if err != nil {
		logging.Fatalf("Failed to create authorizer: %v", err)
	}

	dispatcher := viewstate.NewDispatcher(appConfig.Session.UIQueueSize)
	controller := session.New(session.Config{
		PromptText:   appConfig.Session.PromptText,
		TapFrames:    appConfig.Audio.TapFrames,
		NoticeBuffer: appConfig.Session.NoticeBuffer,
	}, authorizer, recognizer, engine, audioSession,
		session.WithMetrics(m),
		session.WithViewBinder(func(state *viewstate.State) {
			state.SubscribeAll(dispatcher.Listener())
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		dispatcher.Run(context.Background(), ui.render)
	}()
	go recognizer.Watch(ctx, 15*time.Second)

	if err := controller.OnScreenActivated(ctx); err != nil {
		logging.Fatalf("Failed to activate: %v", err)
	}
	ui.printf("Press Enter to start or stop recording, q to quit.\n")

	run(ctx, controller, ui, readLines(os.Stdin))

	if err := controller.OnScreenDeactivated(); err != nil {
		logging.Warnf("Deactivate: %v", err)
	}
	dispatcher.Close()
	<-rendered

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logging.Warnf("Metrics shutdown: %v", err)
		}
	}
	logging.Infof("orion-dictate stopped")
}

// run 处理输入行与提示，直到 ctx 结束、输入结束或用户输入 q
func run(ctx context.Context, controller *session.Controller, ui *console, lines <-chan string) {
	notices := controller.Notices()
	for {
		select {
		case <-ctx.Done():
			ui.closeInput()
			return
		case msg, ok := <-notices:
			if !ok {
				notices = nil
				continue
			}
			ui.notice(msg)
		case line, ok := <-lines:
			if !ok {
				ui.closeInput()
				return
			}
			if ui.route(line) {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(line), "q") {
				return
			}
			if !controller.State().RecordButtonEnabled() {
				ui.notice("Record button is disabled.")
				continue
			}
			err := controller.OnRecordButtonTapped(ctx)
			if err != nil && !errors.Is(err, session.ErrRecognitionUnavailable) {
				logging.Warnf("Record button: %v", err)
			}
		}
	}
}

// languageHints 未显式配置时由 locale 推导，如 en-US -> en
func languageHints(configured []string, locale string) []string {
	if len(configured) > 0 {
		return configured
	}
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return nil
	}
	lang, _, _ := strings.Cut(strings.ReplaceAll(locale, "_", "-"), "-")
	return []string{strings.ToLower(lang)}
}
