// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"fmt"

	"github.com/dtn7/ttalk-go/pkg/messenger"
)

// ClientConnection talks to exactly one server. Its handler only receives the
// payloads, because each Envelope originates from the server.
type ClientConnection[M any] struct {
	server string
	conn   *Connection[M]
}

// NewClientConnection creates a ClientConnection from address to server.
func NewClientConnection[M any](server, address string, factory messenger.Factory, codec Codec[M], opts ...Option) (*ClientConnection[M], error) {
	conn, err := NewConnection(address, factory, codec, opts...)
	if err != nil {
		return nil, err
	}

	return NewClientConnectionFromConnection(server, conn)
}

// NewClientConnectionFromConnection wraps an existing Connection.
func NewClientConnectionFromConnection[M any](server string, conn *Connection[M]) (*ClientConnection[M], error) {
	if server == "" {
		return nil, fmt.Errorf("%w: empty server address", ErrInvalidArgument)
	} else if conn == nil {
		return nil, fmt.Errorf("%w: missing connection", ErrInvalidArgument)
	}

	return &ClientConnection[M]{server: server, conn: conn}, nil
}

// Start the ClientConnection. The handler is called for each received payload.
func (cc *ClientConnection[M]) Start(handler func(payload M)) error {
	if handler == nil {
		return fmt.Errorf("%w: missing handler", ErrInvalidArgument)
	}

	return cc.conn.Start(func(e Envelope[M]) {
		handler(e.Payload)
	})
}

// Send a payload to the server. The acknowledgment payload is refused.
func (cc *ClientConnection[M]) Send(payload M) error {
	if isAck(payload) {
		return fmt.Errorf("%w: empty payload is reserved", ErrInvalidArgument)
	}

	return cc.conn.Send(cc.server, payload)
}

func (cc *ClientConnection[M]) Stop() error {
	return cc.conn.Stop()
}

func (cc *ClientConnection[M]) Kill() error {
	return cc.conn.Kill()
}

// Server address of this ClientConnection.
func (cc *ClientConnection[M]) Server() string {
	return cc.server
}

// Address of this ClientConnection.
func (cc *ClientConnection[M]) Address() string {
	return cc.conn.Address()
}

func (cc *ClientConnection[M]) Unsent() ([]Envelope[M], error) {
	return cc.conn.Unsent()
}

func (cc *ClientConnection[M]) Unhandled() ([]Envelope[M], error) {
	return cc.conn.Unhandled()
}

// Connection returns the underlying Connection.
func (cc *ClientConnection[M]) Connection() *Connection[M] {
	return cc.conn
}
