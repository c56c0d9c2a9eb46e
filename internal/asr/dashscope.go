package asr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/liuscraft/orion-dictate/internal/audio"
	"github.com/liuscraft/orion-dictate/internal/logging"
	"github.com/liuscraft/orion-dictate/internal/speech"
)

const defaultDashScopeEndpoint = "wss://dashscope.aliyuncs.com/api-ws/v1/inference"

// Service 基于 DashScope 实时识别（duplex websocket）的识别服务。
// 每个识别任务独占一条连接。
type Service struct {
	cfg    Config
	dialer *websocket.Dialer

	mu             sync.Mutex
	available      bool
	onAvailability func(available bool)
}

func NewService(cfg Config) *Service {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultDashScopeEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = "fun-asr-realtime"
	}
	if cfg.Format == "" {
		cfg.Format = "pcm"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	return &Service{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		available: cfg.APIKey != "",
	}
}

func (s *Service) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

func (s *Service) SetAvailabilityHandler(handler func(available bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAvailability = handler
}

func (s *Service) setAvailable(available bool) {
	s.mu.Lock()
	if s.cfg.APIKey == "" {
		available = false
	}
	changed := s.available != available
	s.available = available
	handler := s.onAvailability
	s.mu.Unlock()

	if !changed {
		return
	}
	logging.Infof("ASR: availability changed to %v", available)
	if handler != nil {
		handler(available)
	}
}

func (s *Service) NewRequest() speech.Request {
	return &Request{
		target:    audio.Format{SampleRate: s.cfg.SampleRate, Channels: 1},
		resampler: audio.NewLinearResampler(),
		chunks:    make(chan []byte, s.cfg.QueueSize),
		endCh:     make(chan struct{}),
	}
}

func (s *Service) StartTask(req speech.Request, handler speech.ResultHandler) (speech.Task, error) {
	if s.cfg.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}
	if handler == nil {
		return nil, errors.New("nil result handler")
	}
	r, ok := req.(*Request)
	if !ok {
		return nil, ErrForeignRequest
	}
	if err := r.bind(); err != nil {
		return nil, err
	}

	t := &task{
		svc:     s,
		req:     r,
		handler: handler,
		id:      newTaskID(),
		stopCh:  make(chan struct{}),
	}
	logging.Infof("ASR: starting task %s (model=%s, sampleRate=%d)", t.id, s.cfg.Model, s.cfg.SampleRate)
	go t.run()
	return t, nil
}

// Probe 建立一次连接确认服务可达，并据此更新可用状态
func (s *Service) Probe(ctx context.Context) error {
	if s.cfg.APIKey == "" {
		return ErrAPIKeyRequired
	}
	conn, err := s.connect(ctx)
	if err != nil {
		s.setAvailable(false)
		return err
	}
	_ = conn.Close()
	s.setAvailable(true)
	return nil
}

// Watch 服务不可用期间每隔 interval 探测一次，直到 ctx 结束
func (s *Service) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.cfg.APIKey == "" || s.Available() {
				continue
			}
			if err := s.Probe(ctx); err != nil {
				logging.Debugf("ASR: probe failed: %v", err)
			}
		}
	}
}

func (s *Service) connect(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", fmt.Sprintf("Bearer %s", s.cfg.APIKey))
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.Endpoint, header)
	return conn, err
}

func (s *Service) runParameters() map[string]any {
	params := map[string]any{
		"format":      s.cfg.Format,
		"sample_rate": s.cfg.SampleRate,
	}
	if s.cfg.VocabularyID != "" {
		params["vocabulary_id"] = s.cfg.VocabularyID
	}
	if s.cfg.SemanticPunctuationEnabled != nil {
		params["semantic_punctuation_enabled"] = *s.cfg.SemanticPunctuationEnabled
	}
	if s.cfg.MaxSentenceSilence > 0 {
		params["max_sentence_silence"] = s.cfg.MaxSentenceSilence
	}
	if s.cfg.Heartbeat != nil {
		params["heartbeat"] = *s.cfg.Heartbeat
	}
	if len(s.cfg.LanguageHints) > 0 {
		params["language_hints"] = s.cfg.LanguageHints
	}
	return params
}

// Request 流式识别请求：把 tap 缓冲转换成服务端要求的 16bit 单声道 PCM 并排队发送
type Request struct {
	target    audio.Format
	resampler audio.Resampler
	chunks    chan []byte
	endCh     chan struct{}

	mu      sync.Mutex
	partial bool
	ended   bool
	bound   bool
	dropped int
}

func (r *Request) SetReportPartialResults(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partial = enabled
}

func (r *Request) ReportPartialResults() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.partial
}

// Append 不阻塞：队列满时丢弃该缓冲并返回 ErrBacklog
func (r *Request) Append(buf audio.Buffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended {
		return speech.ErrRequestEnded
	}
	converted, err := audio.Convert(buf, r.target, r.resampler)
	if err != nil {
		return fmt.Errorf("convert buffer: %w", err)
	}
	if len(converted.Samples) == 0 {
		return nil
	}

	select {
	case r.chunks <- audio.EncodeInt16LE(converted.Samples):
		return nil
	default:
		r.dropped++
		return ErrBacklog
	}
}

func (r *Request) EndAudio() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return nil
	}
	r.ended = true
	close(r.endCh)
	return nil
}

// Dropped reports how many buffers were discarded because the send queue was full.
func (r *Request) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Request) bind() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound {
		return speech.ErrTaskStarted
	}
	r.bound = true
	return nil
}

type task struct {
	svc     *Service
	req     *Request
	handler speech.ResultHandler
	id      string
	text    transcript

	cancelled  atomic.Bool
	terminated atomic.Bool
	stopOnce   sync.Once
	stopCh     chan struct{}

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Cancel 关闭连接后立即返回；取消后不再回调
func (t *task) Cancel() {
	if !t.cancelled.CompareAndSwap(false, true) {
		return
	}
	logging.Infof("ASR: task %s cancelled", t.id)
	t.stop()
}

func (t *task) stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.connMu.Lock()
		conn := t.conn
		t.connMu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
	})
}

func (t *task) stopped() bool {
	select {
	case <-t.stopCh:
		return true
	default:
		return false
	}
}

func (t *task) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-t.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	conn, err := t.svc.connect(ctx)
	if err != nil {
		if t.cancelled.Load() {
			return
		}
		t.svc.setAvailable(false)
		t.finish(nil, fmt.Errorf("connect to DashScope: %w", err))
		return
	}

	t.connMu.Lock()
	if t.stopped() {
		t.connMu.Unlock()
		_ = conn.Close()
		return
	}
	t.conn = conn
	t.connMu.Unlock()

	if err := t.send(websocket.TextMessage, t.runTaskMessage()); err != nil {
		t.finish(nil, fmt.Errorf("send run-task: %w", err))
		return
	}

	t.receiveLoop()
}

func (t *task) receiveLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.finish(nil, fmt.Errorf("read DashScope event: %w", err))
			return
		}
		var event eventMessage
		if err := json.Unmarshal(data, &event); err != nil {
			t.finish(nil, fmt.Errorf("decode DashScope event: %w", err))
			return
		}
		if t.handleEvent(event) {
			return
		}
	}
}

func (t *task) handleEvent(event eventMessage) bool {
	switch event.Header.Event {
	case "task-started":
		t.svc.setAvailable(true)
		go t.writeLoop()
	case "result-generated":
		if event.Payload.Output == nil || event.Payload.Output.Sentence == nil {
			return false
		}
		sentence := event.Payload.Output.Sentence
		if sentence.Heartbeat {
			return false
		}
		if sentence.Text == "" && !sentence.SentenceEnd {
			return false
		}
		t.text.Add(sentence.Text, sentence.SentenceEnd)
		if t.req.ReportPartialResults() {
			t.emit(&speech.Result{Text: t.text.Text()})
		}
	case "task-finished":
		t.finish(&speech.Result{Text: t.text.Text(), IsFinal: true}, nil)
		return true
	case "task-failed":
		msg := event.Header.ErrorMessage
		if msg == "" {
			msg = event.Header.ErrorCode
		}
		t.finish(nil, fmt.Errorf("%w: %s", ErrTaskFailed, msg))
		return true
	}
	return false
}

func (t *task) writeLoop() {
	for {
		select {
		case <-t.stopCh:
			return
		case chunk := <-t.req.chunks:
			if err := t.send(websocket.BinaryMessage, chunk); err != nil {
				t.finish(nil, fmt.Errorf("send audio: %w", err))
				return
			}
		case <-t.req.endCh:
			if err := t.flush(); err != nil {
				t.finish(nil, fmt.Errorf("send audio: %w", err))
				return
			}
			if err := t.send(websocket.TextMessage, t.finishTaskMessage()); err != nil {
				t.finish(nil, fmt.Errorf("send finish-task: %w", err))
			}
			return
		}
	}
}

func (t *task) flush() error {
	for {
		select {
		case chunk := <-t.req.chunks:
			if err := t.send(websocket.BinaryMessage, chunk); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (t *task) send(messageType int, payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(messageType, payload)
}

func (t *task) emit(result *speech.Result) {
	if t.cancelled.Load() || t.terminated.Load() {
		return
	}
	t.handler(result, nil)
}

// finish 投递唯一一次终止回调
func (t *task) finish(result *speech.Result, err error) {
	if t.cancelled.Load() || !t.terminated.CompareAndSwap(false, true) {
		t.stop()
		return
	}
	t.stop()
	if err != nil {
		logging.Warnf("ASR: task %s ended with error: %v", t.id, err)
	} else {
		logging.Infof("ASR: task %s finished", t.id)
	}
	t.handler(result, err)
}

func (t *task) runTaskMessage() []byte {
	payload, _ := json.Marshal(taskMessage{
		Header: taskHeader{
			Action:    "run-task",
			TaskID:    t.id,
			Streaming: "duplex",
		},
		Payload: taskPayload{
			TaskGroup:  "audio",
			Task:       "asr",
			Function:   "recognition",
			Model:      t.svc.cfg.Model,
			Parameters: t.svc.runParameters(),
			Input:      map[string]any{},
		},
	})
	return payload
}

func (t *task) finishTaskMessage() []byte {
	payload, _ := json.Marshal(taskMessage{
		Header: taskHeader{
			Action:    "finish-task",
			TaskID:    t.id,
			Streaming: "duplex",
		},
		Payload: taskPayload{
			Input: map[string]any{},
		},
	})
	return payload
}

type taskMessage struct {
	Header  taskHeader  `json:"header"`
	Payload taskPayload `json:"payload"`
}

type taskHeader struct {
	Action       string `json:"action,omitempty"`
	TaskID       string `json:"task_id,omitempty"`
	Streaming    string `json:"streaming,omitempty"`
	Event        string `json:"event,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type taskPayload struct {
	TaskGroup  string         `json:"task_group,omitempty"`
	Task       string         `json:"task,omitempty"`
	Function   string         `json:"function,omitempty"`
	Model      string         `json:"model,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Input      map[string]any `json:"input"`
	Output     *taskOutput    `json:"output,omitempty"`
	Usage      *taskUsage     `json:"usage,omitempty"`
}

type eventMessage = taskMessage

type taskOutput struct {
	Sentence *taskSentence `json:"sentence,omitempty"`
}

type taskSentence struct {
	BeginTime   int64  `json:"begin_time"`
	EndTime     *int64 `json:"end_time"`
	Text        string `json:"text"`
	Heartbeat   bool   `json:"heartbeat"`
	SentenceEnd bool   `json:"sentence_end"`
}

type taskUsage struct {
	Duration int `json:"duration"`
}

// DashScope 要求 32 位十六进制任务 ID
func newTaskID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
