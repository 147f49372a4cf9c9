// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"fmt"
	"reflect"
)

// Envelope pairs a payload with its sender's and recipient's address. An
// Envelope is passed by value and should be treated as immutable.
type Envelope[M any] struct {
	From    string
	To      string
	Payload M
}

// NewEnvelope creates a new Envelope. Both addresses must not be empty and the
// payload must not be nil.
func NewEnvelope[M any](from, to string, payload M) (e Envelope[M], err error) {
	if from == "" || to == "" {
		err = fmt.Errorf("%w: envelope addresses must not be empty", ErrInvalidArgument)
		return
	} else if isNil(payload) {
		err = fmt.Errorf("%w: envelope payload must not be nil", ErrInvalidArgument)
		return
	}

	e = Envelope[M]{From: from, To: to, Payload: payload}
	return
}

// Equal checks if both Envelopes have the same addresses and deeply equal payloads.
func (e Envelope[M]) Equal(o Envelope[M]) bool {
	return e.From == o.From && e.To == o.To && reflect.DeepEqual(e.Payload, o.Payload)
}

func (e Envelope[M]) String() string {
	return fmt.Sprintf("Envelope(%s -> %s: %v)", e.From, e.To, e.Payload)
}

// isNil checks if a value is nil, including typed nils in interfaces.
func isNil(v any) bool {
	if v == nil {
		return true
	}

	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}
