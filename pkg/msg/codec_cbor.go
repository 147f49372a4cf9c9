// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dtn7/cboring"
)

// CborCodec serializes an Envelope as a CBOR array of three elements: the
// sender, the recipient and the payload, written by the payload functions.
type CborCodec[M any] struct {
	marshal   func(payload M, w io.Writer) error
	unmarshal func(r io.Reader) (M, error)
}

// NewCborCodec creates a CborCodec based on two functions to write and read a payload.
func NewCborCodec[M any](
	marshal func(payload M, w io.Writer) error,
	unmarshal func(r io.Reader) (M, error),
) *CborCodec[M] {
	return &CborCodec[M]{
		marshal:   marshal,
		unmarshal: unmarshal,
	}
}

// NewTextCodec creates a CborCodec for plain string payloads.
func NewTextCodec() *CborCodec[string] {
	return NewCborCodec(cboring.WriteTextString, cboring.ReadTextString)
}

// Encode an Envelope into its CBOR representation.
func (c *CborCodec[M]) Encode(e Envelope[M]) (string, error) {
	var buff strings.Builder

	if err := cboring.WriteArrayLength(3, &buff); err != nil {
		return "", err
	}

	for _, addr := range []string{e.From, e.To} {
		if err := cboring.WriteTextString(addr, &buff); err != nil {
			return "", err
		}
	}

	if err := c.marshal(e.Payload, &buff); err != nil {
		return "", fmt.Errorf("marshalling payload errored: %w", err)
	}

	return buff.String(), nil
}

// Decode an Envelope from its CBOR representation. Trailing data is rejected.
func (c *CborCodec[M]) Decode(data string) (e Envelope[M], err error) {
	r := bytes.NewReader([]byte(data))

	if l, lErr := cboring.ReadArrayLength(r); lErr != nil {
		err = lErr
		return
	} else if l != 3 {
		err = fmt.Errorf("wrong array length: %d instead of 3", l)
		return
	}

	if e.From, err = cboring.ReadTextString(r); err != nil {
		return
	}
	if e.To, err = cboring.ReadTextString(r); err != nil {
		return
	}

	if e.Payload, err = c.unmarshal(r); err != nil {
		err = fmt.Errorf("unmarshalling payload errored: %w", err)
		return
	}

	if r.Len() > 0 {
		err = fmt.Errorf("%d bytes of trailing data after envelope", r.Len())
	}
	return
}
