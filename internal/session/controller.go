package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liuscraft/orion-dictate/internal/audio"
	"github.com/liuscraft/orion-dictate/internal/logging"
	"github.com/liuscraft/orion-dictate/internal/metrics"
	"github.com/liuscraft/orion-dictate/internal/speech"
	"github.com/liuscraft/orion-dictate/internal/viewstate"
)

const (
	DefaultPrompt    = "Say something, I'm listening!"
	DefaultTapFrames = 1024

	unavailableNotice = "Speech recognition is not available right now."
	inputBus          = 0
)

// Config 录音控制器配置
type Config struct {
	PromptText   string
	TapFrames    int
	NoticeBuffer int
}

type Option func(*Controller)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithViewBinder 在每次激活时、请求授权之前把新的视图状态交给 UI
func WithViewBinder(bind func(*viewstate.State)) Option {
	return func(c *Controller) { c.bind = bind }
}

// recording 一次录音会话持有的句柄。request/task/live 在控制器锁内修改，
// 转发路径只持有 fwdMu 读锁。
type recording struct {
	id      string
	started time.Time
	sm      stateMachine
	stopped bool

	fwdMu   sync.RWMutex
	live    bool
	request speech.Request
	task    speech.Task
}

func (r *recording) release() {
	r.fwdMu.Lock()
	defer r.fwdMu.Unlock()
	r.live = false
	r.request = nil
	r.task = nil
}

// Controller 单个听写屏幕的录音会话控制器，协调授权、音频采集、识别任务与视图状态
type Controller struct {
	cfg          Config
	authorizer   speech.Authorizer
	recognizer   speech.Recognizer
	engine       audio.Engine
	audioSession audio.SessionConfig
	metrics      *metrics.Metrics
	bind         func(*viewstate.State)

	mu         sync.Mutex
	active     bool
	generation uint64
	state      *viewstate.State
	notices    chan string
	current    *recording
	tapNode    audio.InputNode
}

func New(cfg Config, authorizer speech.Authorizer, recognizer speech.Recognizer, engine audio.Engine, audioSession audio.SessionConfig, opts ...Option) *Controller {
	if cfg.PromptText == "" {
		cfg.PromptText = DefaultPrompt
	}
	if cfg.TapFrames <= 0 {
		cfg.TapFrames = DefaultTapFrames
	}
	if cfg.NoticeBuffer <= 0 {
		cfg.NoticeBuffer = 8
	}
	c := &Controller{
		cfg:          cfg,
		authorizer:   authorizer,
		recognizer:   recognizer,
		engine:       engine,
		audioSession: audioSession,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnScreenActivated 构建新的视图状态并发起一次异步授权请求
func (c *Controller) OnScreenActivated(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.active = true
	c.generation++
	gen := c.generation
	c.state = viewstate.New()
	c.notices = make(chan string, c.cfg.NoticeBuffer)
	state := c.state
	c.mu.Unlock()

	if c.bind != nil {
		c.bind(state)
	}
	c.recognizer.SetAvailabilityHandler(c.HandleAvailabilityChanged)

	logging.Infof("Screen activated, requesting speech recognition authorization")
	c.authorizer.RequestAuthorization(func(status speech.AuthorizationStatus) {
		c.handleAuthorization(gen, status)
	})
	return nil
}

// HandleAuthorizationResult 只根据授权结果更新按钮可用性
func (c *Controller) HandleAuthorizationResult(status speech.AuthorizationStatus) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	c.handleAuthorization(gen, status)
}

func (c *Controller) handleAuthorization(gen uint64, status speech.AuthorizationStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || gen != c.generation {
		logging.Debugf("Ignoring authorization result %s for inactive screen", status)
		return
	}
	c.metrics.AuthorizationResolved(status)

	switch status {
	case speech.Authorized:
		c.state.SetRecordButtonEnabled(true)
		logging.Infof("User authorized access to speech recognition")
	case speech.Denied:
		c.state.SetRecordButtonEnabled(false)
		_ = logError(ErrAuthorizationDenied, "user denied access to speech recognition")
	case speech.Restricted:
		c.state.SetRecordButtonEnabled(false)
		_ = logError(ErrAuthorizationDenied, "speech recognition restricted on this device")
	default:
		c.state.SetRecordButtonEnabled(false)
		logging.Infof("Speech recognition not yet authorized")
	}
}

// HandleAvailabilityChanged 识别器可用性变化直接覆盖按钮可用性，会话进行中也一样
func (c *Controller) HandleAvailabilityChanged(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	c.metrics.AvailabilityChanged(available)
	logging.Infof("Speech recognizer available: %v", available)
	c.state.SetRecordButtonEnabled(available)
}

// OnRecordButtonTapped 引擎运行中则停止，否则开始新的录音会话。
// 只有识别器不可用时返回错误。
func (c *Controller) OnRecordButtonTapped(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return ErrNotActive
	}

	running := c.engine.Running()
	logging.Infof("Audio engine running: %v", running)

	if !c.recognizer.Available() {
		c.metrics.ToggleUnavailable()
		c.notify(unavailableNotice)
		return ErrRecognitionUnavailable
	}

	if running {
		c.engine.Stop()
		if rec := c.current; rec != nil {
			rec.stopped = true
			if rec.request != nil {
				if err := rec.request.EndAudio(); err != nil {
					logging.Warnf("End audio on recognition request: %v", err)
				}
			}
		}
		c.state.SetRecordButtonEnabled(false)
		c.state.SetRecordButtonText(viewstate.StartLabel)
		return nil
	}

	if c.startRecording() {
		c.state.SetRecordButtonText(viewstate.StopLabel)
	}
	return nil
}

// startRecording 需持有 c.mu。识别任务无法启动时按识别错误结束会话并返回 false。
func (c *Controller) startRecording() bool {
	if prev := c.current; prev != nil {
		if prev.task != nil {
			prev.task.Cancel()
		}
		prev.sm.Transition(StateCancelled)
		c.endSession(prev, metrics.ReasonSuperseded)
	}

	logging.Infof("Initialize audio session")
	if err := c.audioSession.SetCategory(audio.CategoryRecord); err != nil {
		_ = logError(ErrAudioSessionConfig, "setCategory: %v", err)
	}
	if err := c.audioSession.SetMode(audio.ModeMeasurement); err != nil {
		_ = logError(ErrAudioSessionConfig, "setMode: %v", err)
	}
	if err := c.audioSession.SetActive(true); err != nil {
		_ = logError(ErrAudioSessionConfig, "setActive: %v", err)
	}

	rec := &recording{id: uuid.NewString(), started: time.Now()}
	turn := logging.StartSession(rec.id)
	logging.Infof("Create the recognition request (turn %d)", turn)

	req := c.recognizer.NewRequest()
	req.SetReportPartialResults(true)
	rec.request = req
	rec.live = true
	c.current = rec
	c.metrics.SessionStarted()

	node := c.engine.InputNode()
	if node == nil {
		logging.Warnf("Audio engine has no input node")
	}

	logging.Infof("Start the recognition task")
	task, err := c.recognizer.StartTask(req, func(result *speech.Result, err error) {
		c.onResult(rec, result, err)
	})
	if err != nil {
		rec.sm.Transition(StateErrored)
		_ = logError(ErrRecognition, "start recognition task: %v", err)
		c.endSession(rec, metrics.ReasonError)
		c.state.SetRecordButtonEnabled(true)
		return false
	}
	rec.task = task

	if node != nil {
		format := node.OutputFormat(inputBus)
		err := node.InstallTap(inputBus, c.cfg.TapFrames, format, func(buf audio.Buffer, _ time.Time) {
			c.forward(rec, buf)
		})
		if err != nil {
			logging.Warnf("Install tap on input node: %v", err)
		} else {
			c.tapNode = node
		}
	}

	if err := c.engine.Prepare(); err != nil {
		_ = logError(ErrAudioEngineStart, "prepare: %v", err)
	}
	if err := c.engine.Start(); err != nil {
		c.metrics.EngineStartFailed()
		_ = logError(ErrAudioEngineStart, "%v", err)
	}

	c.state.SetSpeechText(c.cfg.PromptText)
	return true
}

// forward 在采集 goroutine 上调用；会话结束后到达的缓冲直接丢弃
func (c *Controller) forward(rec *recording, buf audio.Buffer) {
	rec.fwdMu.RLock()
	defer rec.fwdMu.RUnlock()

	if !rec.live || rec.request == nil {
		c.metrics.BufferDropped("ended")
		return
	}
	if err := rec.request.Append(buf); err != nil {
		c.metrics.BufferDropped("rejected")
		logging.Debugf("Append buffer to recognition request: %v", err)
		return
	}
	c.metrics.BufferForwarded()
}

func (c *Controller) onResult(rec *recording, result *speech.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != rec || rec.sm.Terminal() {
		logging.Debugf("Ignoring recognition callback for session %s", rec.id)
		return
	}

	isFinal := false
	if result != nil {
		c.state.SetSpeechText(result.Text)
		isFinal = result.IsFinal
		c.metrics.Result(isFinal)
	}

	if err == nil && !isFinal {
		rec.sm.Transition(StateStreaming)
		return
	}

	reason := metrics.ReasonFinal
	if err != nil {
		rec.sm.Transition(StateErrored)
		reason = metrics.ReasonError
		_ = logError(ErrRecognition, "%v", err)
	} else {
		rec.sm.Transition(StateFinalized)
		if rec.stopped {
			reason = metrics.ReasonStopped
		}
	}

	c.endSession(rec, reason)
	c.state.SetRecordButtonEnabled(true)
}

// endSession 需持有 c.mu：停止引擎、移除 tap、释放请求与任务句柄
func (c *Controller) endSession(rec *recording, reason string) {
	c.engine.Stop()
	if c.tapNode != nil {
		c.tapNode.RemoveTap(inputBus)
		c.tapNode = nil
	}
	rec.release()
	if c.current == rec {
		c.current = nil
	}

	c.metrics.SessionEnded(reason, time.Since(rec.started).Seconds())
	logging.Infof("Recording session %s ended (%s, state=%s)", rec.id, reason, rec.sm.Current())
	logging.EndSession()
}

// OnScreenDeactivated 取消进行中的会话并释放音频资源
func (c *Controller) OnScreenDeactivated() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return ErrNotActive
	}

	if rec := c.current; rec != nil {
		if rec.task != nil {
			rec.task.Cancel()
		}
		rec.sm.Transition(StateCancelled)
		c.endSession(rec, metrics.ReasonDeactivated)
	} else {
		c.engine.Stop()
	}

	if err := c.audioSession.SetActive(false); err != nil {
		_ = logError(ErrAudioSessionConfig, "deactivate: %v", err)
	}
	c.recognizer.SetAvailabilityHandler(nil)

	close(c.notices)
	c.active = false
	logging.Infof("Screen deactivated")
	return nil
}

// Notices 返回当前激活周期内面向用户的提示；停用后关闭
func (c *Controller) Notices() <-chan string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notices
}

func (c *Controller) State() *viewstate.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Running() bool {
	return c.engine.Running()
}

// SessionID 返回当前会话 ID，没有会话时为空
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.id
}

func (c *Controller) notify(msg string) {
	select {
	case c.notices <- msg:
	default:
		logging.Warnf("Notice dropped: %s", msg)
	}
}
