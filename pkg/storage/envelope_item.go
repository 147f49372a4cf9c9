// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"fmt"
	"time"
)

// Direction of a rescued envelope, relative to its owning connection.
type Direction string

const (
	// Outbound envelopes were queued for sending but never acknowledged.
	Outbound Direction = "unsent"

	// Inbound envelopes were received but never handed to the application.
	Inbound Direction = "unhandled"
)

// EnvelopeItem is a single encoded envelope together with its meta data.
type EnvelopeItem struct {
	Id string `badgerhold:"key"`

	Owner     string `badgerholdIndex:"Owner"`
	Direction string
	Sequence  int

	Encoded string
	Stored  time.Time
}

// envelopeItemId creates a key which keeps items of the same owner and direction in order.
func envelopeItemId(owner string, direction Direction, sequence int) string {
	return fmt.Sprintf("%s/%s/%08d", owner, direction, sequence)
}

func newEnvelopeItem(owner string, direction Direction, sequence int, encoded string) EnvelopeItem {
	return EnvelopeItem{
		Id: envelopeItemId(owner, direction, sequence),

		Owner:     owner,
		Direction: string(direction),
		Sequence:  sequence,

		Encoded: encoded,
		Stored:  time.Now(),
	}
}
