// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Handler is applied to each item of a Dispatcher.
type Handler[T any] func(item T) error

// runState describes the Dispatcher's worker.
type runState uint8

const (
	// stateFresh is a Dispatcher which was never started.
	stateFresh runState = iota

	// stateRunning consumes items.
	stateRunning

	// statePaused keeps accepting items without consuming them.
	statePaused

	// stateKilling waits for the in-flight item to be finished.
	stateKilling

	// stateKilled is the final state.
	stateKilled
)

func (s runState) String() string {
	switch s {
	case stateFresh:
		return "fresh"
	case stateRunning:
		return "running"
	case statePaused:
		return "paused"
	case stateKilling:
		return "killing"
	case stateKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// Dispatcher handles queued items in FIFO order on a dedicated goroutine.
type Dispatcher[T any] struct {
	name string

	mutex sync.Mutex
	cond  *sync.Cond

	queue   []T
	handler Handler[T]
	state   runState
	busy    bool

	err     error
	onError func(error)

	done chan struct{}
}

// NewDispatcher creates a new Dispatcher for the given Handler. The handler may
// be nil and set later by SetHandler, but must be present when calling Start.
func NewDispatcher[T any](handler Handler[T]) *Dispatcher[T] {
	d := &Dispatcher[T]{
		name:    "dispatcher",
		handler: handler,
		state:   stateFresh,
		done:    make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mutex)

	return d
}

// NewNamedDispatcher creates a new Dispatcher with a name used for logging.
func NewNamedDispatcher[T any](name string, handler Handler[T]) *Dispatcher[T] {
	d := NewDispatcher(handler)
	d.name = name
	return d
}

// OnError registers a hook which is called once, from the worker goroutine,
// if a Handler returned a fatal error.
func (d *Dispatcher[T]) OnError(hook func(error)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.onError = hook
}

// SetHandler replaces the Handler. This is only possible for a fresh or paused Dispatcher.
func (d *Dispatcher[T]) SetHandler(handler Handler[T]) error {
	if handler == nil {
		return ErrNoHandler
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	switch d.state {
	case stateFresh, statePaused:
		d.handler = handler
		return nil

	case stateRunning:
		return ErrRunning

	default:
		return ErrKilled
	}
}

// Start the worker. Repeated calls are ignored.
func (d *Dispatcher[T]) Start() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	switch d.state {
	case stateFresh:
		if d.handler == nil {
			return ErrNoHandler
		}

		d.state = stateRunning
		go d.worker()

		log.WithField("dispatcher", d.name).Debug("Dispatcher started")
		return nil

	case stateKilling, stateKilled:
		return ErrKilled

	default:
		return nil
	}
}

// Enqueue appends an item to the queue's tail. This call never blocks.
//
// An error is returned if the Dispatcher was killed. While a killed Dispatcher
// still finishes its in-flight item, new items are silently ignored.
func (d *Dispatcher[T]) Enqueue(item T) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	switch d.state {
	case stateKilling:
		log.WithField("dispatcher", d.name).Debug("Dispatcher ignores item while being killed")
		return nil

	case stateKilled:
		return ErrKilled

	default:
		d.queue = append(d.queue, item)
		d.cond.Broadcast()
		return nil
	}
}

// Pause the consumption of items. The in-flight item will be finished and new
// items can still be enqueued.
func (d *Dispatcher[T]) Pause() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	switch d.state {
	case stateFresh:
		return ErrNotStarted

	case stateKilling, stateKilled:
		return ErrKilled

	default:
		d.state = statePaused
		return nil
	}
}

// Resume the consumption of items after a Pause.
func (d *Dispatcher[T]) Resume() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	switch d.state {
	case stateFresh:
		return ErrNotStarted

	case stateKilling, stateKilled:
		return ErrKilled

	default:
		d.state = stateRunning
		d.cond.Broadcast()
		return nil
	}
}

// Kill the Dispatcher. An in-flight item will be finished, all other items
// remain queued and can be inspected by Unhandled. Kill does not wait for the
// worker; use Done for this purpose.
func (d *Dispatcher[T]) Kill() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	switch d.state {
	case stateFresh:
		d.state = stateKilled
		close(d.done)

	case stateRunning, statePaused:
		d.state = stateKilling
		d.cond.Broadcast()

	default:
	}
}

// Done is closed after the Dispatcher was killed and its worker exited.
func (d *Dispatcher[T]) Done() <-chan struct{} {
	return d.done
}

// Err returns the fatal error which terminated the worker, if any.
func (d *Dispatcher[T]) Err() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.err
}

// IsPaused checks if the Dispatcher is currently paused.
func (d *Dispatcher[T]) IsPaused() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.state == statePaused
}

// Unhandled returns a copy of all queued items, which have not been handled yet.
// This is a point-in-time snapshot and is meant to be used while the
// Dispatcher does not consume items.
func (d *Dispatcher[T]) Unhandled() []T {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	items := make([]T, len(d.queue))
	copy(items, d.queue)
	return items
}

// Len of the queue, excluding the in-flight item.
func (d *Dispatcher[T]) Len() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return len(d.queue)
}

// WaitEmpty blocks until both the queue is empty and no item is in-flight, or
// the timeout has passed. The return value reports an empty Dispatcher.
func (d *Dispatcher[T]) WaitEmpty(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	// The cond has no timeout, so the timer wakes all waiters at the deadline.
	timer := time.AfterFunc(timeout, func() {
		d.mutex.Lock()
		d.cond.Broadcast()
		d.mutex.Unlock()
	})
	defer timer.Stop()

	d.mutex.Lock()
	defer d.mutex.Unlock()

	for len(d.queue) > 0 || d.busy {
		if !time.Now().Before(deadline) {
			return false
		}
		d.cond.Wait()
	}
	return true
}

// WaitIdle blocks until no item is in-flight. This must not be called from
// within the Handler.
func (d *Dispatcher[T]) WaitIdle() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for d.busy {
		d.cond.Wait()
	}
}

func (d *Dispatcher[T]) String() string {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return fmt.Sprintf("%s(%v, %d queued)", d.name, d.state, len(d.queue))
}

// next blocks until an item can be handled. ok is false
// if the worker must exit.
func (d *Dispatcher[T]) next() (item T, handler Handler[T], ok bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for d.state == statePaused || (d.state == stateRunning && len(d.queue) == 0) {
		d.cond.Wait()
	}

	if d.state != stateRunning {
		return
	}

	item, d.queue = d.queue[0], d.queue[1:]
	d.busy = true

	return item, d.handler, true
}

// finish evaluates the Handler's result for an item. ok is
// false if the worker must exit.
func (d *Dispatcher[T]) finish(item T, err error) (hook func(error), ok bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.busy = false
	d.cond.Broadcast()

	switch {
	case err == nil:
		return nil, true

	case errors.Is(err, ErrRequeue):
		d.queue = append([]T{item}, d.queue...)
		return nil, true

	default:
		d.queue = append([]T{item}, d.queue...)
		d.err = err
		d.state = stateKilling
		return d.onError, false
	}
}

// call the Handler and convert a panic into a fatal error.
func call[T any](handler Handler[T], item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler(item)
}

// worker is the Dispatcher's goroutine.
func (d *Dispatcher[T]) worker() {
	var logger = log.WithField("dispatcher", d.name)

	defer func() {
		d.mutex.Lock()
		d.state = stateKilled
		d.mutex.Unlock()

		close(d.done)
		logger.Debug("Dispatcher's worker exited")
	}()

	for {
		item, handler, ok := d.next()
		if !ok {
			return
		}

		err := call(handler, item)

		if hook, ok := d.finish(item, err); !ok {
			logger.WithError(err).Warn("Dispatcher's handler errored fatally")

			if hook != nil {
				hook(err)
			}
			return
		}
	}
}
