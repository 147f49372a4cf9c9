// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package messenger

import "errors"

var (
	// ErrAddressInUse is returned if an address is already bound by another Messenger.
	ErrAddressInUse = errors.New("address is already in use")

	// ErrInvalidAddress is returned for empty or unknown addresses.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrClosed is returned by a closed Messenger.
	ErrClosed = errors.New("messenger is closed")

	// ErrPayloadTooLarge is returned for payloads a Messenger can never transmit.
	ErrPayloadTooLarge = errors.New("payload is too large")
)

// ReceiveFunc is called for each payload delivered to a Messenger. Calls happen
// sequentially from the Messenger's own goroutine.
type ReceiveFunc func(payload string)

// Messenger is a bound, unreliable transport endpoint.
type Messenger interface {
	// Address this Messenger is bound to.
	Address() string

	// Send a payload to another address. A nil error does not imply a delivery.
	Send(to, payload string) error

	// Close releases the address. After returning, no ReceiveFunc call will happen.
	Close() error
}

// Limiter is implemented by Messengers which cannot send payloads of arbitrary size.
type Limiter interface {
	// CheckSize returns an error wrapping ErrPayloadTooLarge if the payload to
	// this address exceeds the Messenger's limit.
	CheckSize(to, payload string) error
}

// Factory binds Messengers to addresses.
type Factory interface {
	// Bind a new Messenger to the given address.
	Bind(address string, onReceive ReceiveFunc) (Messenger, error)
}

// FactoryFunc allows plain functions to be used as a Factory.
type FactoryFunc func(address string, onReceive ReceiveFunc) (Messenger, error)

// Bind calls the FactoryFunc.
func (f FactoryFunc) Bind(address string, onReceive ReceiveFunc) (Messenger, error) {
	return f(address, onReceive)
}
