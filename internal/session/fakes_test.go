package session

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/liuscraft/orion-dictate/internal/audio"
	"github.com/liuscraft/orion-dictate/internal/speech"
)

// journal 记录跨协作者的调用顺序
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) index(entry string) int {
	for i, e := range j.list() {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeAuthorizer struct {
	mu       sync.Mutex
	handlers []func(speech.AuthorizationStatus)
}

func (a *fakeAuthorizer) RequestAuthorization(handler func(speech.AuthorizationStatus)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = append(a.handlers, handler)
}

func (a *fakeAuthorizer) resolve(status speech.AuthorizationStatus) {
	a.mu.Lock()
	handler := a.handlers[len(a.handlers)-1]
	a.mu.Unlock()
	handler(status)
}

type fakeRequest struct {
	mu       sync.Mutex
	partial  bool
	ended    bool
	appended []audio.Buffer
}

func (r *fakeRequest) SetReportPartialResults(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partial = enabled
}

func (r *fakeRequest) ReportPartialResults() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.partial
}

func (r *fakeRequest) Append(buf audio.Buffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return speech.ErrRequestEnded
	}
	r.appended = append(r.appended, buf)
	return nil
}

func (r *fakeRequest) EndAudio() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = true
	return nil
}

func (r *fakeRequest) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.appended)
}

func (r *fakeRequest) isEnded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

type fakeTask struct {
	name      string
	log       *journal
	handler   speech.ResultHandler
	mu        sync.Mutex
	cancelled bool
}

func (t *fakeTask) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
	t.log.add("cancel " + t.name)
}

func (t *fakeTask) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

type fakeRecognizer struct {
	log      *journal
	mu       sync.Mutex
	avail    bool
	startErr error
	onAvail  func(bool)
	requests []*fakeRequest
	tasks    []*fakeTask
}

func (r *fakeRecognizer) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.avail
}

func (r *fakeRecognizer) setAvailable(available bool) {
	r.mu.Lock()
	r.avail = available
	handler := r.onAvail
	r.mu.Unlock()
	if handler != nil {
		handler(available)
	}
}

func (r *fakeRecognizer) SetAvailabilityHandler(handler func(bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAvail = handler
}

func (r *fakeRecognizer) NewRequest() speech.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := &fakeRequest{}
	r.requests = append(r.requests, req)
	r.log.add("request " + strconv.Itoa(len(r.requests)))
	return req
}

func (r *fakeRecognizer) StartTask(_ speech.Request, handler speech.ResultHandler) (speech.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	t := &fakeTask{name: "task " + strconv.Itoa(len(r.tasks)+1), log: r.log, handler: handler}
	r.tasks = append(r.tasks, t)
	r.log.add("start " + t.name)
	return t, nil
}

func (r *fakeRecognizer) task(i int) *fakeTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[i]
}

func (r *fakeRecognizer) request(i int) *fakeRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[i]
}

type fakeNode struct {
	mu      sync.Mutex
	format  audio.Format
	handler audio.TapHandler
	frames  int
	removed int
}

func (n *fakeNode) OutputFormat(int) audio.Format { return n.format }

func (n *fakeNode) InstallTap(_ int, frames int, _ audio.Format, handler audio.TapHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handler != nil {
		return audio.ErrTapInstalled
	}
	n.handler = handler
	n.frames = frames
	return nil
}

func (n *fakeNode) RemoveTap(int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = nil
	n.removed++
}

func (n *fakeNode) tap() audio.TapHandler {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.handler
}

// deliver 模拟采集线程投递；没有 tap 时返回 false
func (n *fakeNode) deliver(buf audio.Buffer) bool {
	h := n.tap()
	if h == nil {
		return false
	}
	h(buf, time.Now())
	return true
}

type fakeEngine struct {
	log      *journal
	node     *fakeNode
	noNode   bool
	startErr error
	mu       sync.Mutex
	running  bool
	stops    int
	starts   int
}

func (e *fakeEngine) InputNode() audio.InputNode {
	if e.noNode {
		return nil
	}
	return e.node
}

func (e *fakeEngine) Prepare() error { return nil }

func (e *fakeEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
	if e.startErr != nil {
		return e.startErr
	}
	e.running = true
	e.log.add("engine start")
	return nil
}

func (e *fakeEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	if e.running {
		e.log.add("engine stop")
	}
	e.running = false
}

func (e *fakeEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

type fakeAudioSession struct {
	mu       sync.Mutex
	failAll  bool
	category audio.Category
	mode     audio.Mode
	active   bool
}

var errConfig = errors.New("config rejected")

func (s *fakeAudioSession) SetCategory(c audio.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errConfig
	}
	s.category = c
	return nil
}

func (s *fakeAudioSession) SetMode(m audio.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errConfig
	}
	s.mode = m
	return nil
}

func (s *fakeAudioSession) SetActive(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errConfig
	}
	s.active = active
	return nil
}
