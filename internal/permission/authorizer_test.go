package permission

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/liuscraft/orion-dictate/internal/speech"
)

type stubPrompter struct {
	answer bool
	err    error
	calls  atomic.Int32
}

func (p *stubPrompter) Confirm(string) (bool, error) {
	p.calls.Add(1)
	return p.answer, p.err
}

func await(t *testing.T, a *Authorizer) speech.AuthorizationStatus {
	t.Helper()
	ch := make(chan speech.AuthorizationStatus, 1)
	a.RequestAuthorization(func(s speech.AuthorizationStatus) { ch <- s })
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("authorization handler not called")
		return speech.NotDetermined
	}
}

func TestAuthorizerPolicies(t *testing.T) {
	probeErr := errors.New("no microphone")
	tests := []struct {
		name     string
		policy   string
		prompter *stubPrompter
		probe    func() error
		want     speech.AuthorizationStatus
	}{
		{"granted", "granted", nil, nil, speech.Authorized},
		{"granted upper case", " GRANTED ", nil, nil, speech.Authorized},
		{"denied", "denied", nil, nil, speech.Denied},
		{"restricted", "restricted", nil, nil, speech.Restricted},
		{"granted without input", "granted", nil, func() error { return probeErr }, speech.Restricted},
		{"prompt accepted", "prompt", &stubPrompter{answer: true}, nil, speech.Authorized},
		{"prompt declined", "prompt", &stubPrompter{answer: false}, nil, speech.Denied},
		{"prompt failed", "prompt", &stubPrompter{err: errors.New("eof")}, nil, speech.NotDetermined},
		{"prompt without prompter", "", nil, nil, speech.NotDetermined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.prompter != nil {
				opts = append(opts, WithPrompter(tt.prompter))
			}
			if tt.probe != nil {
				opts = append(opts, WithInputProbe(tt.probe))
			}
			a, err := New(tt.policy, opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := await(t, a); got != tt.want {
				t.Fatalf("status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAuthorizerResolvesOnce(t *testing.T) {
	p := &stubPrompter{answer: true}
	a, err := New("prompt", WithPrompter(p))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if got := await(t, a); got != speech.Authorized {
			t.Fatalf("status = %s", got)
		}
	}
	if n := p.calls.Load(); n != 1 {
		t.Fatalf("prompter called %d times, want 1", n)
	}
}

func TestAuthorizerCallsBackOffCallerGoroutine(t *testing.T) {
	a, _ := New("granted")
	returned := make(chan struct{})
	got := make(chan bool, 1)
	a.RequestAuthorization(func(speech.AuthorizationStatus) {
		select {
		case <-returned:
			got <- true
		case <-time.After(time.Second):
			got <- false
		}
	})
	close(returned)
	if !<-got {
		t.Fatal("handler ran before RequestAuthorization returned")
	}
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	if _, err := New("maybe"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
