package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level  string
	Format string
}

// scope 是附加到每条日志上的上下文，整体替换
type scope struct {
	trace   string
	session string
	turn    uint64
}

var (
	base    atomic.Pointer[zap.Logger]
	current atomic.Pointer[scope]
	turns   atomic.Uint64
	scopeMu sync.Mutex
)

func init() {
	base.Store(zap.NewNop())
	current.Store(&scope{})
}

func Init(cfg Config) error {
	levelText := strings.ToLower(strings.TrimSpace(cfg.Level))
	if levelText == "" {
		levelText = "info"
	}
	level, err := zapcore.ParseLevel(levelText)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "console":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}

	// 终端界面占用 stdout，日志统一写 stderr
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level))
	Use(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
	return nil
}

// Use replaces the underlying logger. Mainly useful in tests.
func Use(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base.Store(logger)
}

func Sync() {
	_ = base.Load().Sync()
}

func SetTraceID(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	update(func(s *scope) { s.trace = id })
}

func NewTraceID() string {
	return uuid.NewString()
}

// StartSession 开始一次录音会话：分配新的 turn 并记录会话 ID
func StartSession(id string) uint64 {
	turn := turns.Add(1)
	update(func(s *scope) {
		s.session = strings.TrimSpace(id)
		s.turn = turn
	})
	return turn
}

// EndSession 清除会话 ID，turn 保持到下一次会话
func EndSession() {
	update(func(s *scope) { s.session = "" })
}

func update(fn func(s *scope)) {
	scopeMu.Lock()
	defer scopeMu.Unlock()
	next := *current.Load()
	fn(&next)
	current.Store(&next)
}

func Debugf(format string, args ...interface{}) {
	logger().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	logger().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	logger().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	logger().Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logger().Fatalf(format, args...)
}

func logger() *zap.SugaredLogger {
	s := current.Load()
	trace := s.trace
	if trace == "" {
		trace = "trace-unknown"
	}
	fields := []zap.Field{
		zap.String("trace_id", trace),
		zap.Uint64("turn_id", s.turn),
		zap.String("log_id", fmt.Sprintf("%s-%d", trace, s.turn)),
	}
	if s.session != "" {
		fields = append(fields, zap.String("session_id", s.session))
	}
	return base.Load().With(fields...).Sugar()
}
