// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"fmt"

	"github.com/dtn7/ttalk-go/pkg/messenger"
)

// ServerConnection talks to many clients, addressed per Send call.
type ServerConnection[M any] struct {
	conn *Connection[M]
}

// NewServerConnection creates a ServerConnection for the address.
func NewServerConnection[M any](address string, factory messenger.Factory, codec Codec[M], opts ...Option) (*ServerConnection[M], error) {
	conn, err := NewConnection(address, factory, codec, opts...)
	if err != nil {
		return nil, err
	}

	return NewServerConnectionFromConnection(conn)
}

// NewServerConnectionFromConnection wraps an existing Connection.
func NewServerConnectionFromConnection[M any](conn *Connection[M]) (*ServerConnection[M], error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: missing connection", ErrInvalidArgument)
	}

	return &ServerConnection[M]{conn: conn}, nil
}

// Start the ServerConnection. The handler is called for each received payload
// together with its sender's address.
func (sc *ServerConnection[M]) Start(handler func(from string, payload M)) error {
	if handler == nil {
		return fmt.Errorf("%w: missing handler", ErrInvalidArgument)
	}

	return sc.conn.Start(func(e Envelope[M]) {
		handler(e.From, e.Payload)
	})
}

// Send a payload to a client.
func (sc *ServerConnection[M]) Send(to string, payload M) error {
	return sc.conn.Send(to, payload)
}

func (sc *ServerConnection[M]) Stop() error {
	return sc.conn.Stop()
}

func (sc *ServerConnection[M]) Kill() error {
	return sc.conn.Kill()
}

// Address of this ServerConnection.
func (sc *ServerConnection[M]) Address() string {
	return sc.conn.Address()
}

func (sc *ServerConnection[M]) Unsent() ([]Envelope[M], error) {
	return sc.conn.Unsent()
}

func (sc *ServerConnection[M]) Unhandled() ([]Envelope[M], error) {
	return sc.conn.Unhandled()
}

// Connection returns the underlying Connection.
func (sc *ServerConnection[M]) Connection() *Connection[M] {
	return sc.conn
}
