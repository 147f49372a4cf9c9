// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package messenger

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"
)

// RelayFactory binds Messengers at a remote Relay, e.g., ws://localhost:8080/ws.
type RelayFactory struct {
	url    string
	dialer *websocket.Dialer
}

// NewRelayFactory creates a RelayFactory for the Relay's WebSocket URL.
func NewRelayFactory(url string) *RelayFactory {
	return &RelayFactory{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
	}
}

// Bind dials the Relay and requests the address.
func (f *RelayFactory) Bind(address string, onReceive ReceiveFunc) (Messenger, error) {
	if address == "" {
		return nil, ErrInvalidAddress
	} else if onReceive == nil {
		return nil, fmt.Errorf("missing receive callback")
	}

	conn, _, err := f.dialer.Dial(f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing relay %s failed: %w", f.url, err)
	}

	if err := f.bind(conn, address); err != nil {
		_ = conn.Close()
		return nil, err
	}

	m := &relayMessenger{
		url:       f.url,
		address:   address,
		conn:      conn,
		onReceive: onReceive,
		stopAck:   make(chan struct{}),
	}

	go m.handler()

	log.WithFields(log.Fields{
		"address": address,
		"relay":   f.url,
	}).Info("Relay messenger bound address")

	return m, nil
}

func (f *RelayFactory) bind(conn *websocket.Conn, address string) error {
	if err := writeRelayFrame(conn, &relayBind{address: address}); err != nil {
		return err
	}

	if frame, err := readRelayFrame(conn); err != nil {
		return err
	} else if status, ok := frame.(*relayStatus); !ok {
		return fmt.Errorf("expected relay status, got %T", frame)
	} else {
		return status.err()
	}
}

// relayMessenger is a Messenger bound at a Relay.
type relayMessenger struct {
	url       string
	address   string
	conn      *websocket.Conn
	onReceive ReceiveFunc

	writeMutex sync.Mutex

	closeMutex sync.Mutex
	closed     bool

	stopAck chan struct{}
}

func (m *relayMessenger) isClosed() bool {
	m.closeMutex.Lock()
	defer m.closeMutex.Unlock()

	return m.closed
}

func (m *relayMessenger) handler() {
	defer close(m.stopAck)

	var logger = log.WithFields(log.Fields{
		"address": m.address,
		"relay":   m.url,
	})

	for {
		frame, err := readRelayFrame(m.conn)
		if err != nil {
			if !m.isClosed() {
				logger.WithError(err).Warn("Relay messenger's connection broke")
			}
			return
		}

		switch frame := frame.(type) {
		case *relayPacket:
			m.onReceive(frame.payload)

		default:
			logger.WithField("frame", frame).Info("Relay messenger received an unexpected frame")
		}
	}
}

func (m *relayMessenger) Address() string {
	return m.address
}

func (m *relayMessenger) Send(to, payload string) error {
	if to == "" {
		return ErrInvalidAddress
	} else if m.isClosed() {
		return ErrClosed
	}

	m.writeMutex.Lock()
	defer m.writeMutex.Unlock()

	_ = m.conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
	return writeRelayFrame(m.conn, &relayPacket{peer: to, payload: payload})
}

func (m *relayMessenger) Close() error {
	m.closeMutex.Lock()
	if m.closed {
		m.closeMutex.Unlock()
		return nil
	}
	m.closed = true
	m.closeMutex.Unlock()

	m.writeMutex.Lock()
	_ = m.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	m.writeMutex.Unlock()

	err := m.conn.Close()
	<-m.stopAck

	log.WithFields(log.Fields{
		"address": m.address,
		"relay":   m.url,
	}).Info("Relay messenger released address")
	return err
}

func (m *relayMessenger) String() string {
	return fmt.Sprintf("relay://%s@%s", m.address, m.url)
}
