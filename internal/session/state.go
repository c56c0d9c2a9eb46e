package session

import "slices"

// RecognitionState 单次录音会话的识别状态
type RecognitionState int

const (
	StateStreaming RecognitionState = iota
	StateFinalized
	StateErrored
	// StateCancelled 会话被新会话取代或随屏幕停用而结束
	StateCancelled
)

func (s RecognitionState) String() string {
	switch s {
	case StateStreaming:
		return "Streaming"
	case StateFinalized:
		return "Finalized"
	case StateErrored:
		return "Errored"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

var validTransitions = map[RecognitionState][]RecognitionState{
	StateStreaming: {StateStreaming, StateFinalized, StateErrored, StateCancelled},
}

// stateMachine 终态之后不再接受任何转换
type stateMachine struct {
	current RecognitionState
}

func (sm *stateMachine) CanTransition(to RecognitionState) bool {
	return slices.Contains(validTransitions[sm.current], to)
}

func (sm *stateMachine) Transition(to RecognitionState) bool {
	if !sm.CanTransition(to) {
		return false
	}
	sm.current = to
	return true
}

func (sm *stateMachine) Current() RecognitionState {
	return sm.current
}

func (sm *stateMachine) Terminal() bool {
	return sm.current != StateStreaming
}
