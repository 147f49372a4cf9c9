// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/dtn7/cboring"
)

// friendRequest and instantMessage are two Variants of a small chat protocol.
type friendRequest struct {
	Who string
}

func (_ *friendRequest) VariantCode() uint64 { return 1 }

func (fr *friendRequest) MarshalCbor(w io.Writer) error {
	return cboring.WriteTextString(fr.Who, w)
}

func (fr *friendRequest) UnmarshalCbor(r io.Reader) (err error) {
	fr.Who, err = cboring.ReadTextString(r)
	return
}

type instantMessage struct {
	Text  string
	Count uint64
}

func (_ *instantMessage) VariantCode() uint64 { return 2 }

func (im *instantMessage) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(im.Text, w); err != nil {
		return err
	}
	return cboring.WriteUInt(im.Count, w)
}

func (im *instantMessage) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 2 {
		return fmt.Errorf("wrong array length: %d instead of 2", l)
	}

	var err error
	if im.Text, err = cboring.ReadTextString(r); err != nil {
		return err
	}
	im.Count, err = cboring.ReadUInt(r)
	return err
}

// roundTrip encodes and decodes each Envelope and compares the result.
func roundTrip[M any](t *testing.T, codec Codec[M], envelopes []Envelope[M]) {
	t.Helper()

	for _, e := range envelopes {
		data, err := codec.Encode(e)
		if err != nil {
			t.Fatalf("encoding %v errored: %v", e, err)
		} else if data == ack {
			t.Fatalf("encoding %v resulted in the acknowledgment", e)
		}

		if e2, err := codec.Decode(data); err != nil {
			t.Fatalf("decoding %v errored: %v", e, err)
		} else if !e.Equal(e2) {
			t.Fatalf("envelopes differ: %v, %v", e, e2)
		}
	}
}

func TestTextCodec(t *testing.T) {
	roundTrip[string](t, NewTextCodec(), []Envelope[string]{
		{From: "a", To: "b", Payload: "hello"},
		{From: "a", To: "b", Payload: ""},
		{From: "client-1", To: "server", Payload: "ünïcödé ✓"},
		{From: "a", To: "b", Payload: strings.Repeat("long ", 1000)},
	})
}

func TestTextCodecInvalid(t *testing.T) {
	codec := NewTextCodec()

	valid, err := codec.Encode(Envelope[string]{From: "a", To: "b", Payload: "c"})
	if err != nil {
		t.Fatal(err)
	}

	for _, data := range []string{"", "garbage", valid[:len(valid)-1], valid + "x"} {
		if e, err := codec.Decode(data); err == nil {
			t.Fatalf("decoding %q resulted in %v", data, e)
		}
	}
}

func TestVariantCodec(t *testing.T) {
	codec, err := NewVariantCodec(&friendRequest{}, &instantMessage{})
	if err != nil {
		t.Fatal(err)
	}

	roundTrip[Variant](t, codec, []Envelope[Variant]{
		{From: "alice", To: "server", Payload: &friendRequest{Who: "bob"}},
		{From: "server", To: "bob", Payload: &instantMessage{Text: "hi bob", Count: 23}},
		{From: "server", To: "bob", Payload: &instantMessage{}},
	})

	e, err := codec.Decode(mustEncode[Variant](t, codec, Envelope[Variant]{From: "a", To: "b", Payload: &friendRequest{Who: "c"}}))
	if err != nil {
		t.Fatal(err)
	} else if fr, ok := e.Payload.(*friendRequest); !ok || fr.Who != "c" {
		t.Fatalf("expected *friendRequest, got %T", e.Payload)
	}
}

func TestVariantCodecRegistry(t *testing.T) {
	codec, err := NewVariantCodec(&friendRequest{})
	if err != nil {
		t.Fatal(err)
	}

	if err := codec.Register(&friendRequest{}); err == nil {
		t.Fatal("registering a variant code twice succeeded")
	}

	// Unregistered variants can neither be encoded nor decoded.
	if _, err := codec.Encode(Envelope[Variant]{From: "a", To: "b", Payload: &instantMessage{}}); err == nil {
		t.Fatal("encoding an unregistered variant succeeded")
	}

	other, _ := NewVariantCodec(&instantMessage{})
	data := mustEncode[Variant](t, other, Envelope[Variant]{From: "a", To: "b", Payload: &instantMessage{Text: "x"}})
	if _, err := codec.Decode(data); err == nil {
		t.Fatal("decoding an unregistered variant succeeded")
	}

	if _, err := codec.Encode(Envelope[Variant]{From: "a", To: "b", Payload: nil}); err == nil {
		t.Fatal("encoding a nil variant succeeded")
	}
}

type jsonMessage struct {
	Kind string   `json:"kind"`
	Body string   `json:"body"`
	To   []string `json:"to"`
}

func TestJSONCodec(t *testing.T) {
	roundTrip[jsonMessage](t, NewJSONCodec[jsonMessage](), []Envelope[jsonMessage]{
		{From: "a", To: "b", Payload: jsonMessage{Kind: "im", Body: "hello", To: []string{"b"}}},
		{From: "b", To: "a", Payload: jsonMessage{Kind: "ack"}},
	})

	if _, err := NewJSONCodec[jsonMessage]().Decode(`{"payload": {}}`); err == nil {
		t.Fatal("decoding an envelope without addresses succeeded")
	}
}

func TestXzCodec(t *testing.T) {
	roundTrip[string](t, NewXzCodec[string](NewTextCodec()), []Envelope[string]{
		{From: "a", To: "b", Payload: "hello"},
		{From: "a", To: "b", Payload: ""},
		{From: "a", To: "b", Payload: strings.Repeat("redundant ", 4096)},
	})

	roundTrip[jsonMessage](t, NewXzCodec[jsonMessage](NewJSONCodec[jsonMessage]()), []Envelope[jsonMessage]{
		{From: "a", To: "b", Payload: jsonMessage{Kind: "im", Body: strings.Repeat("x", 8192)}},
	})

	large := Envelope[string]{From: "a", To: "b", Payload: strings.Repeat("redundant ", 4096)}
	plain := mustEncode[string](t, NewTextCodec(), large)
	compressed := mustEncode[string](t, NewXzCodec[string](NewTextCodec()), large)
	if len(compressed) >= len(plain) {
		t.Fatalf("compression did not pay off: %d >= %d", len(compressed), len(plain))
	}

	if _, err := NewXzCodec[string](NewTextCodec()).Decode("not xz"); err == nil {
		t.Fatal("decoding invalid xz data succeeded")
	}
}

func mustEncode[M any](t *testing.T, codec Codec[M], e Envelope[M]) string {
	t.Helper()

	data, err := codec.Encode(e)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
