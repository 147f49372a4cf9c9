// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package messenger provides raw, unreliable transports for string payloads.
//
// A Factory binds a Messenger to an address and registers a callback, which is
// invoked for every payload delivered to this address. A Messenger might
// silently drop an outgoing payload, but it never corrupts, duplicates or
// misdelivers one. Binding an address twice results in ErrAddressInUse.
//
// Three implementations are available:
//
//   - Hub, an in-process exchange with optional loss injection,
//   - UDPFactory, sending CBOR framed and checksummed UDP datagrams, and
//   - RelayFactory, tunneling payloads over a WebSocket to a Relay server.
package messenger
