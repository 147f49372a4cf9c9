// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package messenger

import (
	"fmt"
	"io"
	"reflect"

	"github.com/dtn7/cboring"
	"github.com/gorilla/websocket"
)

// relayFrame describes a message exchanged between a Relay and a relayMessenger.
type relayFrame interface {
	// typeCode is an unique identifier for each frame type, see relayMapping.
	typeCode() uint64

	cboring.CborMarshaler
}

const (
	relayStatusCode uint64 = 0
	relayBindCode   uint64 = 1
	relayPacketCode uint64 = 2
)

var relayMapping = map[uint64]reflect.Type{
	relayStatusCode: reflect.TypeOf(relayStatus{}),
	relayBindCode:   reflect.TypeOf(relayBind{}),
	relayPacketCode: reflect.TypeOf(relayPacket{}),
}

// marshalRelayFrame writes a relayFrame wrapped with its type code as CBOR.
func marshalRelayFrame(frame relayFrame, w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(frame.typeCode(), w); err != nil {
		return err
	}
	return cboring.Marshal(frame, w)
}

// unmarshalRelayFrame reads a relayFrame based on its type code from CBOR.
func unmarshalRelayFrame(r io.Reader) (frame relayFrame, err error) {
	if n, arrErr := cboring.ReadArrayLength(r); arrErr != nil {
		err = arrErr
		return
	} else if n != 2 {
		err = fmt.Errorf("expected array of two elements, got %d", n)
		return
	}

	if n, typeErr := cboring.ReadUInt(r); typeErr != nil {
		err = typeErr
		return
	} else if t, ok := relayMapping[n]; !ok {
		err = fmt.Errorf("no known relay frame type code %d", n)
		return
	} else {
		frame = reflect.New(t).Interface().(relayFrame)
	}

	err = cboring.Unmarshal(frame, r)
	return
}

// writeRelayFrame sends a relayFrame as one binary WebSocket message.
func writeRelayFrame(conn *websocket.Conn, frame relayFrame) error {
	wc, wcErr := conn.NextWriter(websocket.BinaryMessage)
	if wcErr != nil {
		return wcErr
	}

	if cborErr := marshalRelayFrame(frame, wc); cborErr != nil {
		return cborErr
	}

	return wc.Close()
}

// readRelayFrame receives the next relayFrame from a binary WebSocket message.
func readRelayFrame(conn *websocket.Conn) (relayFrame, error) {
	if mt, r, err := conn.NextReader(); err != nil {
		return nil, err
	} else if mt != websocket.BinaryMessage {
		return nil, fmt.Errorf("expected binary message, got %d", mt)
	} else {
		return unmarshalRelayFrame(r)
	}
}

// relayStatusType is the outcome of a binding.
type relayStatusType uint64

const (
	relayStatusOk relayStatusType = iota
	relayStatusInUse
	relayStatusInvalid
)

// relayStatus answers a relayBind.
type relayStatus struct {
	status  relayStatusType
	message string
}

func (_ *relayStatus) typeCode() uint64 {
	return relayStatusCode
}

// err converts a relayStatus back into an error, nil for relayStatusOk.
func (rs *relayStatus) err() error {
	switch rs.status {
	case relayStatusOk:
		return nil
	case relayStatusInUse:
		return fmt.Errorf("relay refused binding: %s: %w", rs.message, ErrAddressInUse)
	case relayStatusInvalid:
		return fmt.Errorf("relay refused binding: %s: %w", rs.message, ErrInvalidAddress)
	default:
		return fmt.Errorf("relay refused binding: %s", rs.message)
	}
}

func (rs *relayStatus) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(rs.status), w); err != nil {
		return err
	}
	return cboring.WriteTextString(rs.message, w)
}

func (rs *relayStatus) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 2 {
		return fmt.Errorf("wrong array length: %d instead of 2", l)
	}

	if n, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		rs.status = relayStatusType(n)
	}

	var err error
	rs.message, err = cboring.ReadTextString(r)
	return err
}

// relayBind requests an address; the first frame of each messenger.
type relayBind struct {
	address string
}

func (_ *relayBind) typeCode() uint64 {
	return relayBindCode
}

func (rb *relayBind) MarshalCbor(w io.Writer) error {
	return cboring.WriteTextString(rb.address, w)
}

func (rb *relayBind) UnmarshalCbor(r io.Reader) (err error) {
	rb.address, err = cboring.ReadTextString(r)
	return
}

// relayPacket carries a payload. Towards the relay, peer names the recipient;
// from the relay, peer names the sender.
type relayPacket struct {
	peer    string
	payload string
}

func (_ *relayPacket) typeCode() uint64 {
	return relayPacketCode
}

func (rp *relayPacket) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(rp.peer, w); err != nil {
		return err
	}
	return cboring.WriteByteString([]byte(rp.payload), w)
}

func (rp *relayPacket) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 2 {
		return fmt.Errorf("wrong array length: %d instead of 2", l)
	}

	if peer, err := cboring.ReadTextString(r); err != nil {
		return err
	} else {
		rp.peer = peer
	}

	if payload, err := cboring.ReadByteString(r); err != nil {
		return err
	} else {
		rp.payload = string(payload)
	}

	return nil
}
