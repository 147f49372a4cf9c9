// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dispatch provides the Dispatcher, a generic single-consumer worker.
//
// A Dispatcher drains a FIFO queue on its own goroutine and applies a handler to
// each item, strictly one after another. Producers may Enqueue from any number
// of goroutines without blocking. The worker can be paused and resumed, which
// stops the consumption of new items while preserving the queue, or killed,
// which lets the in-flight item finish and rejects all further items.
//
// A handler may return ErrRequeue to hand its item back. The item is put at the
// head of the queue again and will be the next one to be handled. Every other
// error is fatal for the Dispatcher.
package dispatch
