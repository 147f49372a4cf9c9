// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"errors"
	"testing"
)

func TestNewEnvelope(t *testing.T) {
	tests := []struct {
		from  string
		to    string
		valid bool
	}{
		{"a", "b", true},
		{"a", "a", true},
		{"", "b", false},
		{"a", "", false},
		{"", "", false},
	}

	for _, test := range tests {
		e, err := NewEnvelope(test.from, test.to, "payload")
		if test.valid && err != nil {
			t.Fatalf("%s -> %s errored: %v", test.from, test.to, err)
		} else if !test.valid && !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("%s -> %s: expected ErrInvalidArgument, got %v", test.from, test.to, err)
		} else if test.valid && (e.From != test.from || e.To != test.to || e.Payload != "payload") {
			t.Fatalf("unexpected envelope %v", e)
		}
	}
}

func TestNewEnvelopeNilPayload(t *testing.T) {
	if _, err := NewEnvelope[*int]("a", "b", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil pointer, got %v", err)
	}
	if _, err := NewEnvelope[any]("a", "b", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil interface, got %v", err)
	}
	if _, err := NewEnvelope[[]byte]("a", "b", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil slice, got %v", err)
	}

	// The empty string is a value, not nil.
	if _, err := NewEnvelope("a", "b", ""); err != nil {
		t.Fatal(err)
	}
}

func TestEnvelopeEqual(t *testing.T) {
	type payload struct {
		Text string
		Tags []string
	}

	e1, _ := NewEnvelope("a", "b", &payload{"hello", []string{"x"}})
	e2, _ := NewEnvelope("a", "b", &payload{"hello", []string{"x"}})
	e3, _ := NewEnvelope("a", "c", &payload{"hello", []string{"x"}})
	e4, _ := NewEnvelope("a", "b", &payload{"hello", []string{"y"}})

	if !e1.Equal(e2) {
		t.Fatalf("%v and %v should be equal", e1, e2)
	}
	if e1.Equal(e3) {
		t.Fatalf("%v and %v differ in their recipient", e1, e3)
	}
	if e1.Equal(e4) {
		t.Fatalf("%v and %v differ in their payload", e1, e4)
	}
}
