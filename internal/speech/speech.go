// Package speech defines the collaborators a recording session talks to: the
// authorization gate, the streaming recognizer, its requests and tasks.
package speech

import (
	"errors"

	"github.com/liuscraft/orion-dictate/internal/audio"
)

var (
	ErrRequestEnded = errors.New("recognition request already ended")
	ErrTaskStarted  = errors.New("recognition request already bound to a task")
)

// AuthorizationStatus 语音识别授权状态
type AuthorizationStatus int

const (
	NotDetermined AuthorizationStatus = iota
	Authorized
	Denied
	Restricted
)

func (s AuthorizationStatus) String() string {
	switch s {
	case NotDetermined:
		return "NotDetermined"
	case Authorized:
		return "Authorized"
	case Denied:
		return "Denied"
	case Restricted:
		return "Restricted"
	default:
		return "Unknown"
	}
}

// Authorizer resolves the authorization status once, asynchronously. The handler
// fires exactly once and never on the caller's goroutine.
type Authorizer interface {
	RequestAuthorization(handler func(AuthorizationStatus))
}

// Result 一次识别回调的结果，Text 为截至目前的最佳完整转写
type Result struct {
	Text    string
	IsFinal bool
}

// ResultHandler is invoked zero or more times per task and terminates with exactly
// one call carrying either err != nil or a result with IsFinal set.
type ResultHandler func(result *Result, err error)

// Request 流式识别请求
type Request interface {
	SetReportPartialResults(enabled bool)
	ReportPartialResults() bool
	Append(buf audio.Buffer) error
	EndAudio() error
}

// Task 进行中的识别任务，Cancel 不等待确认
type Task interface {
	Cancel()
}

// Recognizer 语音识别服务
type Recognizer interface {
	Available() bool
	// SetAvailabilityHandler registers the delegate notified when Available changes.
	// Passing nil detaches it.
	SetAvailabilityHandler(handler func(available bool))
	NewRequest() Request
	StartTask(req Request, handler ResultHandler) (Task, error)
}
