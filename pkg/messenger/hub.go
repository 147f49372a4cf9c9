// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package messenger

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DropFunc decides if a payload from one address to another should be lost.
type DropFunc func(from, to, payload string) bool

// RandomLoss creates a DropFunc which drops payloads with the given
// probability. If spareEmpty is set, empty payloads are always delivered.
func RandomLoss(probability float64, spareEmpty bool) DropFunc {
	var (
		mutex sync.Mutex
		rnd   = rand.New(rand.NewSource(time.Now().UnixNano()))
	)

	return func(_, _, payload string) bool {
		if spareEmpty && payload == "" {
			return false
		}

		mutex.Lock()
		defer mutex.Unlock()

		return rnd.Float64() < probability
	}
}

// Hub is an in-process Factory. Each bound Messenger owns an inbox which is
// drained by its own goroutine. Payloads to unknown addresses, payloads hitting
// a full inbox and payloads selected by the DropFunc are silently lost.
type Hub struct {
	mutex     sync.RWMutex
	endpoints map[string]*hubMessenger
	drop      DropFunc
	inboxSize int
}

// NewHub creates a new, empty Hub.
func NewHub() *Hub {
	return &Hub{
		endpoints: make(map[string]*hubMessenger),
		inboxSize: 1024,
	}
}

// SetDropFunc installs a DropFunc for all future transmissions. A nil DropFunc
// disables the loss injection.
func (hub *Hub) SetDropFunc(drop DropFunc) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	hub.drop = drop
}

// Bind a new Messenger to an address of this Hub.
func (hub *Hub) Bind(address string, onReceive ReceiveFunc) (Messenger, error) {
	if address == "" {
		return nil, ErrInvalidAddress
	} else if onReceive == nil {
		return nil, fmt.Errorf("missing receive callback")
	}

	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	if _, exists := hub.endpoints[address]; exists {
		return nil, fmt.Errorf("hub cannot bind %s: %w", address, ErrAddressInUse)
	}

	m := &hubMessenger{
		hub:       hub,
		address:   address,
		onReceive: onReceive,
		inbox:     make(chan string, hub.inboxSize),
		stopSyn:   make(chan struct{}),
		stopAck:   make(chan struct{}),
	}
	hub.endpoints[address] = m

	go m.handler()

	log.WithField("address", address).Debug("Hub bound address")
	return m, nil
}

// Addresses currently bound to this Hub, sorted.
func (hub *Hub) Addresses() (addrs []string) {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()

	for addr := range hub.endpoints {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return
}

// deliver a payload into the recipient's inbox, if possible.
func (hub *Hub) deliver(from, to, payload string) {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()

	var logger = log.WithFields(log.Fields{
		"from": from,
		"to":   to,
	})

	if hub.drop != nil && hub.drop(from, to, payload) {
		logger.Debug("Hub dropped payload")
		return
	}

	recipient, ok := hub.endpoints[to]
	if !ok {
		logger.Debug("Hub dropped payload for an unbound address")
		return
	}

	select {
	case recipient.inbox <- payload:
	default:
		logger.Warn("Hub dropped payload, recipient's inbox is full")
	}
}

// release an address after its Messenger was closed.
func (hub *Hub) release(m *hubMessenger) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	if hub.endpoints[m.address] == m {
		delete(hub.endpoints, m.address)
	}
}

// hubMessenger is a Messenger bound to a Hub.
type hubMessenger struct {
	hub       *Hub
	address   string
	onReceive ReceiveFunc
	inbox     chan string

	closeMutex sync.Mutex
	closed     bool

	stopSyn chan struct{}
	stopAck chan struct{}
}

func (m *hubMessenger) handler() {
	for {
		select {
		case <-m.stopSyn:
			close(m.stopAck)
			return

		case payload := <-m.inbox:
			m.onReceive(payload)
		}
	}
}

func (m *hubMessenger) Address() string {
	return m.address
}

func (m *hubMessenger) Send(to, payload string) error {
	if to == "" {
		return ErrInvalidAddress
	}

	m.closeMutex.Lock()
	closed := m.closed
	m.closeMutex.Unlock()

	if closed {
		return ErrClosed
	}

	m.hub.deliver(m.address, to, payload)
	return nil
}

func (m *hubMessenger) Close() error {
	m.closeMutex.Lock()
	if m.closed {
		m.closeMutex.Unlock()
		return nil
	}
	m.closed = true
	m.closeMutex.Unlock()

	m.hub.release(m)

	close(m.stopSyn)
	<-m.stopAck

	log.WithField("address", m.address).Debug("Hub released address")
	return nil
}

func (m *hubMessenger) String() string {
	return fmt.Sprintf("hub://%s", m.address)
}
