// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package msg implements reliable, ordered point-to-point messaging on top of
// an unreliable messenger.Messenger.
//
// A Connection binds an address and owns two dispatch.Dispatchers: one for
// outbound and one for inbound Envelopes. An outbound Envelope is transmitted
// again and again until the recipient acknowledges it or the Connection is
// stopped or killed. Only one Envelope is in flight at a time, so the order of
// Send calls is preserved at the recipient.
//
// The acknowledgment is the empty payload. A Codec must therefore never
// encode an Envelope as the empty string. Receiving a non-empty payload results
// in an immediate acknowledgment back to its sender, followed by a call of the
// installed handler.
//
// If an acknowledgment gets lost, the sender will retransmit an already
// delivered Envelope and the recipient's handler will be called again for it.
//
// Delivery is at-least-once only while acknowledgments arrive within the
// acknowledgment timeout. As the empty payload cannot name the Envelope it
// confirms, each acknowledgment confirms whichever Envelope is in flight. A
// late acknowledgment of a retransmission may thus confirm the following
// Envelope. If that Envelope's transmission was dropped, it is lost without
// notice. Choose an acknowledgment timeout well above the round-trip time of
// the Messenger to keep this window small.
//
// ClientConnection and ServerConnection are thin wrappers around a Connection,
// suitable for a client talking to exactly one server, and a server talking to
// many clients.
package msg
