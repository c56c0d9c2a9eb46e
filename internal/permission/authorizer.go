package permission

import (
	"fmt"
	"strings"
	"sync"

	"github.com/liuscraft/orion-dictate/internal/logging"
	"github.com/liuscraft/orion-dictate/internal/speech"
)

// Policy 决定授权结果的来源
type Policy string

const (
	PolicyPrompt     Policy = "prompt"
	PolicyGranted    Policy = "granted"
	PolicyDenied     Policy = "denied"
	PolicyRestricted Policy = "restricted"
)

const promptQuestion = "Allow orion-dictate to send microphone audio for speech recognition?"

// Prompter asks the user a yes/no question.
type Prompter interface {
	Confirm(question string) (bool, error)
}

type Option func(*Authorizer)

func WithPrompter(p Prompter) Option {
	return func(a *Authorizer) { a.prompter = p }
}

// WithInputProbe 设置输入设备探测；探测失败时结果为 Restricted
func WithInputProbe(probe func() error) Option {
	return func(a *Authorizer) { a.probe = probe }
}

// Authorizer 基于策略的 speech.Authorizer。结果只解析一次，之后的请求复用该结果。
type Authorizer struct {
	policy   Policy
	prompter Prompter
	probe    func() error

	once   sync.Once
	status speech.AuthorizationStatus
}

func New(policy string, opts ...Option) (*Authorizer, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(policy)))
	if p == "" {
		p = PolicyPrompt
	}
	switch p {
	case PolicyPrompt, PolicyGranted, PolicyDenied, PolicyRestricted:
	default:
		return nil, fmt.Errorf("unknown authorization policy: %q", policy)
	}

	a := &Authorizer{policy: p}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// RequestAuthorization 在新的 goroutine 上解析并回调一次
func (a *Authorizer) RequestAuthorization(handler func(speech.AuthorizationStatus)) {
	go func() {
		status := a.resolve()
		if handler != nil {
			handler(status)
		}
	}()
}

func (a *Authorizer) resolve() speech.AuthorizationStatus {
	a.once.Do(func() {
		a.status = a.decide()
		logging.Debugf("Permission: policy=%s resolved to %s", a.policy, a.status)
	})
	return a.status
}

func (a *Authorizer) decide() speech.AuthorizationStatus {
	switch a.policy {
	case PolicyDenied:
		return speech.Denied
	case PolicyRestricted:
		return speech.Restricted
	}

	if a.probe != nil {
		if err := a.probe(); err != nil {
			logging.Warnf("Permission: input probe failed: %v", err)
			return speech.Restricted
		}
	}

	if a.policy == PolicyGranted {
		return speech.Authorized
	}

	if a.prompter == nil {
		return speech.NotDetermined
	}
	ok, err := a.prompter.Confirm(promptQuestion)
	if err != nil {
		logging.Warnf("Permission: prompt failed: %v", err)
		return speech.NotDetermined
	}
	if !ok {
		return speech.Denied
	}
	return speech.Authorized
}
