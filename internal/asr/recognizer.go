package asr

import (
	"errors"
	"time"
)

var (
	ErrAPIKeyRequired = errors.New("DASHSCOPE_API_KEY is required")
	ErrTaskFailed     = errors.New("recognition task failed")
	ErrForeignRequest = errors.New("request was not created by this recognizer")
	ErrBacklog        = errors.New("recognition audio backlog full, buffer dropped")
)

const (
	defaultQueueSize   = 64
	defaultDialTimeout = 5 * time.Second
)

type Config struct {
	APIKey                     string
	Endpoint                   string
	Model                      string
	Format                     string
	SampleRate                 int
	VocabularyID               string
	SemanticPunctuationEnabled *bool
	MaxSentenceSilence         int
	Heartbeat                  *bool
	LanguageHints              []string
	DialTimeout                time.Duration
	// QueueSize 任务启动前及发送过程中可缓存的音频块数量
	QueueSize int
}
