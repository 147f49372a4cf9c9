// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/dtn7/ttalk-go/pkg/messenger"
)

func TestClientServerEcho(t *testing.T) {
	hub := messenger.NewHub()

	server, err := NewServerConnection[string]("server", hub, NewTextCodec())
	if err != nil {
		t.Fatal(err)
	}
	defer server.Kill()

	if err := server.Start(func(from string, payload string) {
		if err := server.Send(from, fmt.Sprintf("%s said %s", from, payload)); err != nil {
			t.Error(err)
		}
	}); err != nil {
		t.Fatal(err)
	}

	clients := make([]*ClientConnection[string], 3)
	inboxes := make([]chan string, 3)
	for i := range clients {
		client, err := NewClientConnection[string]("server", fmt.Sprintf("client-%d", i), hub, NewTextCodec())
		if err != nil {
			t.Fatal(err)
		}
		defer client.Kill()

		ch := make(chan string, 16)
		if err := client.Start(func(payload string) { ch <- payload }); err != nil {
			t.Fatal(err)
		}

		clients[i], inboxes[i] = client, ch
	}

	for i, client := range clients {
		if client.Server() != "server" || client.Address() != fmt.Sprintf("client-%d", i) {
			t.Fatalf("unexpected addressing: %s -> %s", client.Address(), client.Server())
		}

		for j := 0; j < 3; j++ {
			if err := client.Send(fmt.Sprintf("hello %d", j)); err != nil {
				t.Fatal(err)
			}
		}
	}

	for i, ch := range inboxes {
		for j := 0; j < 3; j++ {
			expected := fmt.Sprintf("client-%d said hello %d", i, j)

			select {
			case payload := <-ch:
				if payload != expected {
					t.Fatalf("expected %q, got %q", expected, payload)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("timed out while waiting for %q", expected)
			}
		}
	}
}

func TestClientConnectionRefusesAck(t *testing.T) {
	hub := messenger.NewHub()

	client, err := NewClientConnection[string]("server", "client", hub, NewTextCodec())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Kill()

	if err := client.Start(func(string) {}); err != nil {
		t.Fatal(err)
	}

	if err := client.Send(""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := client.Start(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestClientConnectionInvalid(t *testing.T) {
	hub := messenger.NewHub()

	if _, err := NewClientConnection[string]("", "client", hub, NewTextCodec()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := NewClientConnectionFromConnection[string]("server", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := NewServerConnectionFromConnection[string](nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestClientServerUnsent(t *testing.T) {
	hub := messenger.NewHub()

	conn, err := NewConnection[string]("client", hub, NewTextCodec())
	if err != nil {
		t.Fatal(err)
	}

	client, err := NewClientConnectionFromConnection("server", conn)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Kill()

	if client.Connection() != conn {
		t.Fatal("client wraps another connection")
	}

	if err := client.Start(func(string) {}); err != nil {
		t.Fatal(err)
	}
	if err := client.Send("nobody listens"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * conn.AckTimeout())

	if _, err := client.Unsent(); !errors.Is(err, ErrActive) {
		t.Fatalf("expected ErrActive, got %v", err)
	}
	if err := client.Stop(); err != nil {
		t.Fatal(err)
	}

	if unsent, err := client.Unsent(); err != nil {
		t.Fatal(err)
	} else if len(unsent) != 1 || !unsent[0].Equal(envelope("client", "server", "nobody listens")) {
		t.Fatalf("unexpected unsent envelopes: %v", unsent)
	}
	if unhandled, err := client.Unhandled(); err != nil || len(unhandled) != 0 {
		t.Fatalf("unexpected unhandled envelopes: %v, %v", unhandled, err)
	}

	// The server comes up; the client resumes and delivers.
	server, err := NewServerConnection[string]("server", hub, NewTextCodec())
	if err != nil {
		t.Fatal(err)
	}
	defer server.Kill()

	received := make(chan string, 16)
	if err := server.Start(func(from, payload string) { received <- from + ": " + payload }); err != nil {
		t.Fatal(err)
	}
	if err := client.Start(func(string) {}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-received:
		if msg != "client: nobody listens" {
			t.Fatalf("unexpected message %q", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive the rescued message")
	}
}

func TestServerConnectionVariants(t *testing.T) {
	hub := messenger.NewHub()

	codec, err := NewVariantCodec(&friendRequest{}, &instantMessage{})
	if err != nil {
		t.Fatal(err)
	}

	server, err := NewServerConnection[Variant]("server", hub, codec)
	if err != nil {
		t.Fatal(err)
	}
	defer server.Kill()

	type request struct {
		from    string
		payload Variant
	}
	requests := make(chan request, 16)

	if err := server.Start(func(from string, payload Variant) {
		requests <- request{from, payload}
	}); err != nil {
		t.Fatal(err)
	}

	client, err := NewClientConnection[Variant]("server", "alice", hub, codec)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Kill()

	if err := client.Start(func(Variant) {}); err != nil {
		t.Fatal(err)
	}

	if err := client.Send(&friendRequest{Who: "bob"}); err != nil {
		t.Fatal(err)
	}
	if err := client.Send(&instantMessage{Text: "hi", Count: 1}); err != nil {
		t.Fatal(err)
	}

	for _, expected := range []Variant{&friendRequest{Who: "bob"}, &instantMessage{Text: "hi", Count: 1}} {
		select {
		case req := <-requests:
			if req.from != "alice" {
				t.Fatalf("unexpected sender %s", req.from)
			}
			if !reflect.DeepEqual(req.payload, expected) {
				t.Fatalf("expected %v, got %v", expected, req.payload)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out while waiting for %v", expected)
		}
	}
}
