// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package messenger

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

// receiver creates a ReceiveFunc feeding a channel.
func receiver() (ReceiveFunc, chan string) {
	ch := make(chan string, 1024)
	return func(payload string) { ch <- payload }, ch
}

func expectPayload(t *testing.T, ch chan string, expected string) {
	t.Helper()

	select {
	case payload := <-ch:
		if payload != expected {
			t.Fatalf("expected payload %q, got %q", expected, payload)
		}

	case <-time.After(2 * time.Second):
		t.Fatalf("timed out while waiting for payload %q", expected)
	}
}

func expectSilence(t *testing.T, ch chan string, wait time.Duration) {
	t.Helper()

	select {
	case payload := <-ch:
		t.Fatalf("expected no payload, got %q", payload)

	case <-time.After(wait):
	}
}

func TestHubBind(t *testing.T) {
	hub := NewHub()
	onReceive, _ := receiver()

	m, err := hub.Bind("alice", onReceive)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := hub.Bind("alice", onReceive); !errors.Is(err, ErrAddressInUse) {
		t.Fatalf("expected ErrAddressInUse, got %v", err)
	}
	if _, err := hub.Bind("", onReceive); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := hub.Bind("bob", nil); err == nil {
		t.Fatal("binding without a callback should fail")
	}

	if addrs := hub.Addresses(); !reflect.DeepEqual(addrs, []string{"alice"}) {
		t.Fatalf("unexpected addresses: %v", addrs)
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close errored: %v", err)
	}
	if err := m.Send("alice", "hello"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	// The address can be reused after closing.
	if m2, err := hub.Bind("alice", onReceive); err != nil {
		t.Fatal(err)
	} else {
		_ = m2.Close()
	}
}

func TestHubDelivery(t *testing.T) {
	hub := NewHub()

	onReceiveA, chA := receiver()
	onReceiveB, chB := receiver()

	a, err := hub.Bind("a", onReceiveA)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	b, err := hub.Bind("b", onReceiveB)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	for i := 0; i < 100; i++ {
		if err := a.Send("b", fmt.Sprintf("%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 100; i++ {
		expectPayload(t, chB, fmt.Sprintf("%d", i))
	}

	// Empty payloads and self delivery
	if err := a.Send("a", ""); err != nil {
		t.Fatal(err)
	}
	expectPayload(t, chA, "")

	// Unknown recipients are no error
	if err := a.Send("nobody", "lost"); err != nil {
		t.Fatal(err)
	}
	expectSilence(t, chA, 20*time.Millisecond)
	expectSilence(t, chB, 0)
}

func TestHubDropFunc(t *testing.T) {
	hub := NewHub()
	hub.SetDropFunc(func(_, _, payload string) bool { return payload == "drop" })

	onReceive, ch := receiver()

	m, err := hub.Bind("m", onReceive)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	for _, payload := range []string{"keep", "drop", "keep too"} {
		if err := m.Send("m", payload); err != nil {
			t.Fatal(err)
		}
	}

	expectPayload(t, ch, "keep")
	expectPayload(t, ch, "keep too")
	expectSilence(t, ch, 20*time.Millisecond)

	hub.SetDropFunc(nil)
	if err := m.Send("m", "drop"); err != nil {
		t.Fatal(err)
	}
	expectPayload(t, ch, "drop")
}

func TestRandomLoss(t *testing.T) {
	never := RandomLoss(0, false)
	always := RandomLoss(1, false)
	spare := RandomLoss(1, true)

	for i := 0; i < 100; i++ {
		if never("a", "b", "x") {
			t.Fatal("zero probability dropped a payload")
		}
		if !always("a", "b", "x") {
			t.Fatal("full probability delivered a payload")
		}
		if spare("a", "b", "") {
			t.Fatal("empty payload was not spared")
		}
		if !spare("a", "b", "x") {
			t.Fatal("non-empty payload was spared")
		}
	}
}
