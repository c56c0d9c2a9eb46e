package session

import (
	"errors"
	"fmt"

	"github.com/liuscraft/orion-dictate/internal/logging"
)

var (
	ErrAuthorizationDenied    = errors.New("speech recognition not authorized")
	ErrAudioSessionConfig     = errors.New("audio session configuration failed")
	ErrRecognitionUnavailable = errors.New("speech recognition is not available")
	ErrRecognition            = errors.New("speech recognition failed")
	ErrAudioEngineStart       = errors.New("audio engine couldn't start")
	ErrAlreadyActive          = errors.New("screen already active")
	ErrNotActive              = errors.New("screen not active")
)

// logError 记录非致命错误并返回包装后的错误
func logError(kind error, format string, args ...interface{}) error {
	err := fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
	logging.Warnf("%v", err)
	return err
}
