// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"reflect"
	"testing"

	"github.com/schollz/peerdiscovery"

	"github.com/dtn7/ttalk-go/pkg/messenger"
)

func TestAnnouncementCbor(t *testing.T) {
	var tests = [][]Announcement{
		{},
		{{Address: "alice", Port: 8000}},
		{{Address: "alice", Port: 8000}, {Address: "server", Port: 65535}},
	}

	for _, in := range tests {
		data, err := MarshalAnnouncements(in)
		if err != nil {
			t.Fatalf("Encoding failed: %v", err)
		}

		out, err := UnmarshalAnnouncements(data)
		if err != nil {
			t.Fatalf("Decoding failed: %v", err)
		}

		if !reflect.DeepEqual(in, out) {
			t.Fatalf("Decoded Announcements differ: %v became %v", in, out)
		}
	}
}

func TestAnnouncementInvalid(t *testing.T) {
	var tests = []Announcement{
		{Address: "", Port: 8000},
		{Address: "alice", Port: 0},
		{Address: "alice", Port: 70000},
	}

	for _, a := range tests {
		data, err := MarshalAnnouncements([]Announcement{a})
		if err != nil {
			t.Fatalf("Encoding %v failed: %v", a, err)
		}

		if _, err := UnmarshalAnnouncements(data); err == nil {
			t.Fatalf("Decoding %v did not fail", a)
		}
	}

	if _, err := UnmarshalAnnouncements([]byte{0x81, 0x83}); err == nil {
		t.Fatal("Decoding a malformed array did not fail")
	}
}

func TestManagerHandleDiscovery(t *testing.T) {
	book := messenger.NewAddressBook()
	manager := newManager(book, []Announcement{{Address: "me", Port: 9000}})

	payload, err := MarshalAnnouncements([]Announcement{
		{Address: "me", Port: 9000},
		{Address: "alice", Port: 9001},
		{Address: "bob", Port: 9002},
	})
	if err != nil {
		t.Fatal(err)
	}

	manager.notify(peerdiscovery.Discovered{Address: "127.0.0.1", Payload: payload})

	if addrs := book.Addresses(); !reflect.DeepEqual(addrs, []string{"alice", "bob"}) {
		t.Fatalf("unexpected addresses: %v", addrs)
	}
	if udpAddr, ok := book.Lookup("bob"); !ok || udpAddr.Port != 9002 {
		t.Fatalf("unexpected endpoint for bob: %v", udpAddr)
	}

	// IPv6 hosts are bracketed by JoinHostPort.
	payload6, _ := MarshalAnnouncements([]Announcement{{Address: "carol", Port: 9003}})
	manager.notify(peerdiscovery.Discovered{Address: "::1", Payload: payload6})

	if udpAddr, ok := book.Lookup("carol"); !ok || udpAddr.Port != 9003 || udpAddr.IP.To4() != nil {
		t.Fatalf("unexpected endpoint for carol: %v", udpAddr)
	}

	// Garbage is ignored.
	manager.notify(peerdiscovery.Discovered{Address: "127.0.0.1", Payload: []byte("garbage")})
	if l := len(book.Addresses()); l != 3 {
		t.Fatalf("expected three addresses, got %d", l)
	}
}
