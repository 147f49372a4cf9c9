// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package messenger

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
)

// randomUDPPort returns a random open UDP port.
func randomUDPPort(t *testing.T) (port int) {
	if addr, err := net.ResolveUDPAddr("udp", "localhost:0"); err != nil {
		t.Fatal(err)
	} else if l, err := net.ListenUDP("udp", addr); err != nil {
		t.Fatal(err)
	} else {
		port = l.LocalAddr().(*net.UDPAddr).Port
		_ = l.Close()
	}
	return
}

func TestDatagram(t *testing.T) {
	tests := []datagram{
		{To: "alice", Payload: "hello"},
		{To: "bob", Payload: ""},
		{To: "carol", Payload: strings.Repeat("x", 4096)},
	}

	for _, d := range tests {
		data, err := d.marshal()
		if err != nil {
			t.Fatal(err)
		}

		if d2, err := unmarshalDatagram(data); err != nil {
			t.Fatal(err)
		} else if d2 != d {
			t.Fatalf("datagram differs: %v, %v", d, d2)
		}

		// Flipping a bit within the payload must be detected by the CRC.
		corrupt := append([]byte(nil), data...)
		corrupt[len(corrupt)-5] ^= 0x01
		if _, err := unmarshalDatagram(corrupt); err == nil {
			t.Fatalf("corrupted datagram for %s was accepted", d.To)
		}
	}

	if _, err := (datagram{To: "x", Payload: strings.Repeat("x", maxDatagramSize)}).marshal(); err == nil {
		t.Fatal("oversized datagram was accepted")
	}
}

func TestDatagramSize(t *testing.T) {
	for _, l := range []int{0, 23, 24, 255, 256, 4096, 65497, 65498} {
		d := datagram{To: "x", Payload: strings.Repeat("x", l)}

		data, err := d.marshal()
		if err != nil {
			t.Fatalf("payload of %d bytes: %v", l, err)
		}
		if d.size() != len(data) {
			t.Fatalf("payload of %d bytes: calculated %d bytes, marshalled %d", l, d.size(), len(data))
		}
	}

	// One byte more than fits into a single datagram.
	oversized := datagram{To: "x", Payload: strings.Repeat("x", 65499)}
	if _, err := oversized.marshal(); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}

	var limiter Limiter = &udpMessenger{}
	if err := limiter.CheckSize(oversized.To, oversized.Payload); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if err := limiter.CheckSize("x", "fits"); err != nil {
		t.Fatal(err)
	}
}

func TestAddressBook(t *testing.T) {
	book := NewAddressBook()

	if err := book.SetString("", "localhost:1234"); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if err := book.SetString("a", "not a host port"); err == nil {
		t.Fatal("invalid endpoint was accepted")
	}

	if err := book.SetString("b", "127.0.0.1:1234"); err != nil {
		t.Fatal(err)
	}
	if err := book.SetString("a", "127.0.0.1:1235"); err != nil {
		t.Fatal(err)
	}

	if addrs := book.Addresses(); len(addrs) != 2 || addrs[0] != "a" || addrs[1] != "b" {
		t.Fatalf("unexpected addresses: %v", addrs)
	}

	if udpAddr, ok := book.Lookup("a"); !ok || udpAddr.Port != 1235 {
		t.Fatalf("unexpected lookup result: %v, %t", udpAddr, ok)
	}

	book.Remove("a")
	if _, ok := book.Lookup("a"); ok {
		t.Fatal("removed address is still present")
	}
}

func TestUDPMessenger(t *testing.T) {
	book := NewAddressBook()
	for _, addr := range []string{"a", "b"} {
		if err := book.SetString(addr, fmt.Sprintf("127.0.0.1:%d", randomUDPPort(t))); err != nil {
			t.Fatal(err)
		}
	}

	factory := NewUDPFactory(book)
	if factory.Book() != book {
		t.Fatal("factory returned another address book")
	}

	onReceiveA, chA := receiver()
	onReceiveB, chB := receiver()

	a, err := factory.Bind("a", onReceiveA)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	b, err := factory.Bind("b", onReceiveB)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if _, err := factory.Bind("a", onReceiveA); !errors.Is(err, ErrAddressInUse) {
		t.Fatalf("expected ErrAddressInUse, got %v", err)
	}
	if _, err := factory.Bind("unknown", onReceiveA); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}

	if err := a.Send("b", "hello b"); err != nil {
		t.Fatal(err)
	}
	expectPayload(t, chB, "hello b")

	if err := b.Send("a", ""); err != nil {
		t.Fatal(err)
	}
	expectPayload(t, chA, "")

	// Unknown peers are silently dropped.
	if err := a.Send("unknown", "lost"); err != nil {
		t.Fatal(err)
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := a.Send("b", "closed"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
