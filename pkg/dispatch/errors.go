// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import "errors"

var (
	// ErrKilled is returned for operations on a terminated Dispatcher.
	ErrKilled = errors.New("dispatcher was killed")

	// ErrNotStarted is returned by Pause or Resume for a never started Dispatcher.
	ErrNotStarted = errors.New("dispatcher was not started")

	// ErrNoHandler is returned if a Dispatcher should be started without a handler.
	ErrNoHandler = errors.New("dispatcher has no handler")

	// ErrRunning is returned if the handler should be replaced while the Dispatcher consumes items.
	ErrRunning = errors.New("dispatcher must be paused to change its handler")

	// ErrRequeue might be returned by a Handler to put its item back at the queue's head.
	ErrRequeue = errors.New("requeue item")
)
