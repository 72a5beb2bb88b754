package core

import (
	"context"
	"sync"
)

// LocalWaker is an in-process Notifier and WakeSource. Nudges coalesce: at
// most one is pending per subscriber.
type LocalWaker struct {
	mu          sync.Mutex
	subscribers map[chan struct{}]struct{}
}

func NewLocalWaker() *LocalWaker {
	return &LocalWaker{subscribers: map[chan struct{}]struct{}{}}
}

func (w *LocalWaker) Notify(context.Context, string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (w *LocalWaker) Wakeups(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	w.mu.Lock()
	w.subscribers[ch] = struct{}{}
	w.mu.Unlock()
	go func() {
		<-ctx.Done()
		w.mu.Lock()
		delete(w.subscribers, ch)
		w.mu.Unlock()
	}()
	return ch, nil
}

var (
	_ Notifier   = (*LocalWaker)(nil)
	_ WakeSource = (*LocalWaker)(nil)
)
