// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/ttalk-go/pkg/dispatch"
	"github.com/dtn7/ttalk-go/pkg/messenger"
)

// ack is the reserved acknowledgment payload.
const ack = ""

// State of a Connection's lifecycle.
type State uint8

const (
	// Fresh Connections were never started.
	Fresh State = iota

	// Active Connections send and receive Envelopes.
	Active

	// Stopped Connections released their messenger, but keep their queues.
	Stopped

	// Killed Connections are terminated for good.
	Killed
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Active:
		return "active"
	case Stopped:
		return "stopped"
	case Killed:
		return "killed"
	default:
		return "unknown"
	}
}

// Handler is called for each received Envelope.
type Handler[M any] func(e Envelope[M])

// Connection delivers Envelopes reliably and in order over a lossy Messenger.
type Connection[M any] struct {
	address    string
	factory    messenger.Factory
	codec      Codec[M]
	ackTimeout time.Duration
	logger     *log.Entry

	// startMutex serializes Start calls, including their binding.
	startMutex sync.Mutex

	// mutex guards the lifecycle state and err. It must be acquired before transport.
	mutex sync.Mutex
	state State
	err   error

	// transport guards the current Messenger and its halt channel. Both are
	// replaced on each start and cleared on stop or kill. Transmissions happen
	// while holding the read lock.
	transport sync.RWMutex
	messenger messenger.Messenger
	halt      chan struct{}

	// acked is the single slot signal for the one Envelope in flight.
	acked chan struct{}
	done  chan struct{}

	inbound  *dispatch.Dispatcher[Envelope[M]]
	outbound *dispatch.Dispatcher[Envelope[M]]
}

// NewConnection creates a Fresh Connection for an address. The Messenger is
// bound by the Factory on each Start.
func NewConnection[M any](address string, factory messenger.Factory, codec Codec[M], opts ...Option) (*Connection[M], error) {
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidArgument)
	} else if factory == nil {
		return nil, fmt.Errorf("%w: missing messenger factory", ErrInvalidArgument)
	} else if codec == nil {
		return nil, fmt.Errorf("%w: missing codec", ErrInvalidArgument)
	}

	o := newOptions(address, opts)

	c := &Connection[M]{
		address:    address,
		factory:    factory,
		codec:      codec,
		ackTimeout: o.ackTimeout,
		logger:     o.logger,
		state:      Fresh,
		acked:      make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	c.inbound = dispatch.NewNamedDispatcher[Envelope[M]](address+"/inbound", nil)
	c.inbound.OnError(c.fail)

	c.outbound = dispatch.NewNamedDispatcher[Envelope[M]](address+"/outbound", c.transmit)
	c.outbound.OnError(c.fail)

	return c, nil
}

// Address of this Connection.
func (c *Connection[M]) Address() string {
	return c.address
}

// AckTimeout is the time to wait for an acknowledgment before retransmitting.
func (c *Connection[M]) AckTimeout() time.Duration {
	return c.ackTimeout
}

// State of this Connection.
func (c *Connection[M]) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.state
}

// Err reports the errors which caused this Connection to be killed, if any.
func (c *Connection[M]) Err() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.err
}

// Done is closed after this Connection was killed and both its workers exited.
func (c *Connection[M]) Done() <-chan struct{} {
	return c.done
}

// Start binds the Messenger and starts or resumes sending and receiving.
//
// The handler replaces the previous one. Starting an Active Connection is a
// no-op and keeps the installed handler. Binding does not block the other
// methods; a Kill while binding wins over this Start.
func (c *Connection[M]) Start(handler Handler[M]) error {
	if handler == nil {
		return fmt.Errorf("%w: missing handler", ErrInvalidArgument)
	}

	c.startMutex.Lock()
	defer c.startMutex.Unlock()

	switch c.State() {
	case Killed:
		return ErrKilled
	case Active:
		return nil
	}

	m, err := c.factory.Bind(c.address, c.receive)
	if err != nil {
		return fmt.Errorf("binding %s errored: %w", c.address, err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Only Kill can change the state while binding; Stop is a no-op for
	// Fresh and Stopped Connections.
	if c.state == Killed {
		return multierror.Append(ErrKilled, m.Close()).ErrorOrNil()
	}

	c.transport.Lock()
	c.messenger = m
	c.halt = make(chan struct{})
	c.transport.Unlock()

	if err := c.launch(handler); err != nil {
		c.transport.Lock()
		close(c.halt)
		c.messenger, c.halt = nil, nil
		c.transport.Unlock()

		return multierror.Append(err, m.Close())
	}

	c.logger.WithField("from", c.state).Info("Connection started")
	c.state = Active
	return nil
}

// launch installs the handler and starts or resumes both Dispatchers.
func (c *Connection[M]) launch(handler Handler[M]) error {
	if err := c.inbound.SetHandler(c.inboundHandler(handler)); err != nil {
		return err
	}

	if c.state == Fresh {
		if err := c.inbound.Start(); err != nil {
			return err
		}
		return c.outbound.Start()
	}

	if err := c.inbound.Resume(); err != nil {
		return err
	}
	return c.outbound.Resume()
}

// Stop sending and receiving and release the Messenger. Queued Envelopes are
// kept for a later Start. Stopping a Fresh or Stopped Connection is a no-op.
func (c *Connection[M]) Stop() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	switch c.state {
	case Killed:
		return ErrKilled
	case Fresh, Stopped:
		return nil
	}

	var errs *multierror.Error
	for _, d := range []*dispatch.Dispatcher[Envelope[M]]{c.inbound, c.outbound} {
		if err := d.Pause(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := c.release(); err != nil {
		errs = multierror.Append(errs, err)
	}

	// An interrupted transmission puts its Envelope back to the queue.
	c.outbound.WaitIdle()

	c.state = Stopped
	c.logger.Info("Connection stopped")
	return errs.ErrorOrNil()
}

// Kill this Connection for good. The in-flight Envelopes are finished or put
// back to their queue and the Messenger is released. Kill does not wait for
// the workers to exit; use Done for this purpose.
func (c *Connection[M]) Kill() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state == Killed {
		return nil
	}

	c.inbound.Kill()
	c.outbound.Kill()

	err := c.release()
	c.outbound.WaitIdle()

	go func() {
		<-c.inbound.Done()
		<-c.outbound.Done()
		close(c.done)
	}()

	c.logger.WithField("from", c.state).Info("Connection killed")
	c.state = Killed
	return err
}

// release the current Messenger, if any, and interrupt a waiting transmission.
// This must be called while holding the mutex.
func (c *Connection[M]) release() error {
	c.transport.Lock()
	m := c.messenger
	if c.halt != nil {
		close(c.halt)
	}
	c.messenger, c.halt = nil, nil
	c.transport.Unlock()

	if m == nil {
		return nil
	}
	return m.Close()
}

// fail kills this Connection due to an unrecoverable error.
func (c *Connection[M]) fail(err error) {
	c.mutex.Lock()
	c.err = multierror.Append(c.err, err)
	c.mutex.Unlock()

	c.logger.WithError(err).Error("Connection failed fatally, killing it")

	if killErr := c.Kill(); killErr != nil {
		c.logger.WithError(killErr).Warn("Killing failed Connection errored")
	}
}

// Send a payload to another address. The Envelope will be transmitted after all
// previously sent Envelopes were acknowledged.
//
// Sending the empty acknowledgment payload results in an immediate, single
// transmission without waiting for an acknowledgment. Envelopes which cannot be
// encoded or exceed the Messenger's size limit are refused, e.g., with an error
// wrapping messenger.ErrPayloadTooLarge.
func (c *Connection[M]) Send(to string, payload M) error {
	if to == "" {
		return fmt.Errorf("%w: empty recipient", ErrInvalidArgument)
	} else if isNil(payload) {
		return fmt.Errorf("%w: nil payload", ErrInvalidArgument)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	switch c.state {
	case Killed:
		return ErrKilled
	case Fresh, Stopped:
		return ErrNotActive
	}

	if isAck(payload) {
		return c.sendAck(to)
	}

	e := Envelope[M]{From: c.address, To: to, Payload: payload}
	if err := c.checkTransmittable(e); err != nil {
		return err
	}

	if err := c.outbound.Enqueue(e); err != nil {
		return fmt.Errorf("enqueuing envelope errored: %w", err)
	}
	return nil
}

// checkTransmittable encodes an Envelope and checks its size against the
// Messenger's limit, if any. This must be called while holding the mutex.
func (c *Connection[M]) checkTransmittable(e Envelope[M]) error {
	data, err := encode(c.codec, e)
	if err != nil {
		return fmt.Errorf("encoding %v errored: %w", e, err)
	}

	c.transport.RLock()
	limiter, ok := c.messenger.(messenger.Limiter)
	c.transport.RUnlock()

	if !ok {
		return nil
	}
	return limiter.CheckSize(e.To, data)
}

// WaitSent blocks until all sent Envelopes were acknowledged or the timeout
// has passed. The return value reports an empty outbound queue.
func (c *Connection[M]) WaitSent(timeout time.Duration) bool {
	return c.outbound.WaitEmpty(timeout)
}

// Unhandled returns the received Envelopes not yet passed to the handler. This
// is only possible while the Connection is not Active.
func (c *Connection[M]) Unhandled() ([]Envelope[M], error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state == Active {
		return nil, ErrActive
	}
	return c.inbound.Unhandled(), nil
}

// Unsent returns the sent Envelopes not yet acknowledged. This is only possible
// while the Connection is not Active.
func (c *Connection[M]) Unsent() ([]Envelope[M], error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state == Active {
		return nil, ErrActive
	}
	return c.outbound.Unhandled(), nil
}

func (c *Connection[M]) String() string {
	return fmt.Sprintf("Connection(%s, %v)", c.address, c.State())
}

// isAck checks if a payload is the acknowledgment.
func isAck[M any](payload M) bool {
	s, ok := any(payload).(string)
	return ok && s == ack
}

// errHalted reports a transmission interrupted by Stop or Kill.
var errHalted = fmt.Errorf("connection halted: %w", dispatch.ErrRequeue)

// transmitRaw sends a raw payload through the current Messenger. The returned
// halt channel is closed as soon as the Messenger gets released.
func (c *Connection[M]) transmitRaw(to, payload string) (halt <-chan struct{}, err error) {
	c.transport.RLock()
	defer c.transport.RUnlock()

	if c.messenger == nil {
		return nil, errHalted
	}

	if err := c.messenger.Send(to, payload); err != nil {
		return nil, fmt.Errorf("messenger failed to send to %s: %w", to, err)
	}
	return c.halt, nil
}

// sendAck acknowledges the last received Envelope of a peer.
func (c *Connection[M]) sendAck(to string) error {
	_, err := c.transmitRaw(to, ack)
	return err
}

// transmit is the outbound Dispatcher's Handler. It retransmits an Envelope
// until it gets acknowledged or the Connection halts.
func (c *Connection[M]) transmit(e Envelope[M]) error {
	data, err := encode(c.codec, e)
	if err != nil {
		return fmt.Errorf("encoding %v errored: %w", e, err)
	}

	var logger = c.logger.WithField("to", e.To)

	// Discard an acknowledgment that arrived while idle. A late one arriving
	// after this transmission still confirms this Envelope.
	select {
	case <-c.acked:
	default:
	}

	timer := time.NewTimer(c.ackTimeout)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		halt, err := c.transmitRaw(e.To, data)
		if errors.Is(err, messenger.ErrPayloadTooLarge) {
			logger.WithError(err).Error("Discarding Envelope, which can never be transmitted")
			return nil
		} else if err != nil {
			return err
		}

		select {
		case <-c.acked:
			logger.WithField("attempts", attempt).Debug("Envelope was acknowledged")
			return nil

		case <-halt:
			logger.WithField("attempts", attempt).Debug("Transmission was interrupted")
			return errHalted

		case <-timer.C:
			logger.WithField("attempts", attempt).Debug("Acknowledgment timed out, retransmitting")
			timer.Reset(c.ackTimeout)
		}
	}
}

// inboundHandler creates the inbound Dispatcher's Handler around the
// application's handler. Each Envelope is acknowledged before being handled.
func (c *Connection[M]) inboundHandler(handler Handler[M]) dispatch.Handler[Envelope[M]] {
	return func(e Envelope[M]) error {
		if err := c.sendAck(e.From); err != nil {
			return err
		}

		c.deliver(handler, e)
		return nil
	}
}

// deliver an Envelope to the handler. A panic is isolated to this Envelope.
func (c *Connection[M]) deliver(handler Handler[M], e Envelope[M]) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(log.Fields{
				"from":  e.From,
				"panic": r,
			}).Warn("Handler panicked while handling an envelope")
		}
	}()

	handler(e)
}

// receive is the Messenger's callback. Acknowledgments are signaled right
// away, everything else is decoded and queued for the inbound Dispatcher.
func (c *Connection[M]) receive(payload string) {
	if payload == ack {
		select {
		case c.acked <- struct{}{}:
		default:
		}
		return
	}

	e, err := c.codec.Decode(payload)
	if err != nil {
		// Killing releases the Messenger, which waits for this callback to return.
		go c.fail(fmt.Errorf("decoding received payload errored: %w", err))
		return
	}

	if err := c.inbound.Enqueue(e); err != nil && !errors.Is(err, dispatch.ErrKilled) {
		c.logger.WithError(err).Warn("Failed to enqueue received envelope")
	}
}
