package viewstate

import (
	"context"
	"sync"
)

// Dispatcher 将任意 goroutine 上的状态变更转交给唯一的 UI 消费者
type Dispatcher struct {
	ch        chan Change
	quit      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(size int) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	return &Dispatcher{
		ch:   make(chan Change, size),
		quit: make(chan struct{}),
	}
}

// Listener returns a Listener that enqueues changes. It blocks while the queue
// is full and drops changes once the dispatcher is closed.
func (d *Dispatcher) Listener() Listener {
	return d.Post
}

func (d *Dispatcher) Post(change Change) {
	select {
	case <-d.quit:
		return
	default:
	}
	select {
	case d.ch <- change:
	case <-d.quit:
	}
}

// Run 在调用者 goroutine 上按入队顺序渲染变更，直到 ctx 结束或 Close；
// Close 之前已入队的变更会先被渲染完
func (d *Dispatcher) Run(ctx context.Context, render func(Change)) {
	for {
		select {
		case change := <-d.ch:
			render(change)
		case <-ctx.Done():
			return
		case <-d.quit:
			d.drain(render)
			return
		}
	}
}

func (d *Dispatcher) drain(render func(Change)) {
	for {
		select {
		case change := <-d.ch:
			render(change)
		default:
			return
		}
	}
}

func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.quit) })
}
