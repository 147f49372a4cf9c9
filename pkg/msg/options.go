// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultAckTimeout is the time to wait for an acknowledgment before an
// Envelope is transmitted again.
const DefaultAckTimeout = 50 * time.Millisecond

// options for a Connection, altered by Options.
type options struct {
	ackTimeout time.Duration
	logger     *log.Entry
}

// Option configures a Connection on its creation.
type Option func(*options)

// WithAckTimeout overrides the DefaultAckTimeout. Non-positive values are ignored.
func WithAckTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.ackTimeout = timeout
		}
	}
}

// WithLogger sets the base logger for a Connection, e.g., with additional fields.
func WithLogger(logger *log.Entry) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(address string, opts []Option) options {
	o := options{
		ackTimeout: DefaultAckTimeout,
		logger:     log.NewEntry(log.StandardLogger()),
	}

	for _, opt := range opts {
		opt(&o)
	}

	o.logger = o.logger.WithField("connection", address)
	return o
}
