package capture

import (
	"context"
	"errors"
	"sync"
)

var errQueueClosed = errors.New("capture session closed")

// serialQueue runs submitted work one item at a time on a single goroutine.
// Every hardware mutation and every sample delivery of a Session goes through it.
type serialQueue struct {
	work     chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSerialQueue(size int) *serialQueue {
	q := &serialQueue{
		work: make(chan func(), size),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *serialQueue) run() {
	defer close(q.done)
	for {
		select {
		case fn := <-q.work:
			fn()
		case <-q.quit:
			return
		}
	}
}

// async enqueues fn, waiting for room in the queue.
func (q *serialQueue) async(fn func()) bool {
	select {
	case q.work <- fn:
		return true
	case <-q.quit:
		return false
	}
}

// tryAsync enqueues fn only if there is room right now.
func (q *serialQueue) tryAsync(fn func()) bool {
	select {
	case <-q.quit:
		return false
	default:
	}
	select {
	case q.work <- fn:
		return true
	default:
		return false
	}
}

// sync runs fn on the queue and waits for it. Must not be called from the queue itself.
func (q *serialQueue) sync(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case q.work <- wrapped:
	case <-q.quit:
		return errQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-q.done:
		return errQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops the worker after the item it is running, if any.
func (q *serialQueue) close() {
	q.stopOnce.Do(func() { close(q.quit) })
	<-q.done
}
