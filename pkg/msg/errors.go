// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import "errors"

var (
	// ErrInvalidArgument is returned for empty addresses, nil payloads or missing handlers.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotActive is returned if a Connection must be started for an operation.
	ErrNotActive = errors.New("connection is not active")

	// ErrActive is returned for inspections of a currently active Connection.
	ErrActive = errors.New("connection is active")

	// ErrKilled is returned for any operation on a killed Connection.
	ErrKilled = errors.New("connection was killed")

	// ErrEmptyEncoding is returned if a Codec produced the reserved acknowledgment.
	ErrEmptyEncoding = errors.New("codec produced the empty acknowledgment payload")
)
