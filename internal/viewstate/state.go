// Package viewstate holds the observable state rendered by the dictation screen.
package viewstate

import (
	"errors"
	"fmt"
	"sync"
)

var ErrFieldType = errors.New("value has wrong type for field")

// Field 可观察字段
type Field int

const (
	FieldRecordButtonEnabled Field = iota
	FieldRecordButtonText
	FieldSpeechText
)

func (f Field) String() string {
	switch f {
	case FieldRecordButtonEnabled:
		return "recordButtonEnabled"
	case FieldRecordButtonText:
		return "recordButtonText"
	case FieldSpeechText:
		return "speechText"
	default:
		return "unknown"
	}
}

// ButtonLabel 录音按钮文案
type ButtonLabel string

const (
	StartLabel ButtonLabel = "Start Recording"
	StopLabel  ButtonLabel = "Stop Recording"
)

// Change 一次字段变更，Old/New 的动态类型与字段一致（bool / ButtonLabel / string）
type Change struct {
	Field Field
	Old   any
	New   any
}

type Listener func(change Change)

type Snapshot struct {
	RecordButtonEnabled bool
	RecordButtonText    ButtonLabel
	SpeechText          string
}

type subscription struct {
	id       uint64
	listener Listener
}

// State stores the three screen fields. Set calls are serialized: the value is
// stored and every listener of that field runs synchronously, in registration
// order, before the next Set proceeds. Listeners must not call Set themselves;
// hand the change to a Dispatcher instead.
type State struct {
	setMu sync.Mutex

	mu      sync.RWMutex
	enabled bool
	text    ButtonLabel
	speech  string

	subMu       sync.RWMutex
	nextID      uint64
	subscribers map[Field][]subscription
	all         []subscription
}

func New() *State {
	return &State{
		enabled:     false,
		text:        StartLabel,
		speech:      "",
		subscribers: make(map[Field][]subscription),
	}
}

// Set 存储并同步通知监听者，不做状态转换校验
func (s *State) Set(field Field, value any) error {
	s.setMu.Lock()
	defer s.setMu.Unlock()

	s.mu.Lock()
	var old any
	switch field {
	case FieldRecordButtonEnabled:
		v, ok := value.(bool)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%s: %w", field, ErrFieldType)
		}
		old, s.enabled = s.enabled, v
	case FieldRecordButtonText:
		v, ok := value.(ButtonLabel)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%s: %w", field, ErrFieldType)
		}
		old, s.text = s.text, v
	case FieldSpeechText:
		v, ok := value.(string)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%s: %w", field, ErrFieldType)
		}
		old, s.speech = s.speech, v
	default:
		s.mu.Unlock()
		return fmt.Errorf("unknown field %d", int(field))
	}
	s.mu.Unlock()

	s.notify(Change{Field: field, Old: old, New: value})
	return nil
}

func (s *State) SetRecordButtonEnabled(enabled bool) {
	_ = s.Set(FieldRecordButtonEnabled, enabled)
}

func (s *State) SetRecordButtonText(label ButtonLabel) {
	_ = s.Set(FieldRecordButtonText, label)
}

func (s *State) SetSpeechText(text string) {
	_ = s.Set(FieldSpeechText, text)
}

func (s *State) RecordButtonEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *State) RecordButtonText() ButtonLabel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

func (s *State) SpeechText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speech
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		RecordButtonEnabled: s.enabled,
		RecordButtonText:    s.text,
		SpeechText:          s.speech,
	}
}

// Subscribe 订阅单个字段，返回取消订阅函数
func (s *State) Subscribe(field Field, listener Listener) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	id := s.nextID
	s.subscribers[field] = append(s.subscribers[field], subscription{id: id, listener: listener})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.subscribers[field] = without(s.subscribers[field], id)
	}
}

// SubscribeAll 订阅全部字段
func (s *State) SubscribeAll(listener Listener) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	id := s.nextID
	s.all = append(s.all, subscription{id: id, listener: listener})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.all = without(s.all, id)
	}
}

func (s *State) notify(change Change) {
	s.subMu.RLock()
	handlers := make([]Listener, 0, len(s.subscribers[change.Field])+len(s.all))
	for _, sub := range s.subscribers[change.Field] {
		handlers = append(handlers, sub.listener)
	}
	for _, sub := range s.all {
		handlers = append(handlers, sub.listener)
	}
	s.subMu.RUnlock()

	for _, handler := range handlers {
		handler(change)
	}
}

func without(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, sub := range subs {
		if sub.id != id {
			out = append(out, sub)
		}
	}
	return out
}
