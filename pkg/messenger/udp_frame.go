// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package messenger

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dtn7/cboring"
	"github.com/howeyc/crc16"
)

// maxDatagramSize limits a UDP datagram, including its framing.
const maxDatagramSize = 65507

var crc16table = crc16.MakeTable(crc16.CCITT)

// datagram is the UDP messenger's frame, a CBOR array of the recipient's
// address, the payload and a CRC-16 over both of them.
type datagram struct {
	To      string
	Payload string
}

// cborHeadSize is the length of a CBOR data item's head for this argument.
func cborHeadSize(n int) int {
	switch v := uint64(n); {
	case v < 24:
		return 1
	case v <= 0xff:
		return 2
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// size of the marshalled datagram in bytes.
func (d datagram) size() int {
	return cborHeadSize(3) +
		cborHeadSize(len(d.To)) + len(d.To) +
		cborHeadSize(len(d.Payload)) + len(d.Payload) +
		cborHeadSize(2) + 2
}

// checkSize of a datagram against the UDP limit.
func (d datagram) checkSize() error {
	if size := d.size(); size > maxDatagramSize {
		return fmt.Errorf("%w: datagram of %d bytes exceeds maximum of %d bytes",
			ErrPayloadTooLarge, size, maxDatagramSize)
	}
	return nil
}

// marshal a datagram into its CBOR representation, terminated by the checksum.
func (d datagram) marshal() ([]byte, error) {
	if err := d.checkSize(); err != nil {
		return nil, err
	}

	buff := new(bytes.Buffer)

	if err := cboring.WriteArrayLength(3, buff); err != nil {
		return nil, err
	}
	if err := cboring.WriteTextString(d.To, buff); err != nil {
		return nil, err
	}
	if err := cboring.WriteByteString([]byte(d.Payload), buff); err != nil {
		return nil, err
	}

	crc := make([]byte, 2)
	binary.BigEndian.PutUint16(crc, crc16.Checksum(buff.Bytes(), crc16table))

	if err := cboring.WriteByteString(crc, buff); err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// unmarshalDatagram parses and verifies a received datagram.
func unmarshalDatagram(data []byte) (d datagram, err error) {
	r := bytes.NewReader(data)

	if l, lErr := cboring.ReadArrayLength(r); lErr != nil {
		err = lErr
		return
	} else if l != 3 {
		err = fmt.Errorf("wrong array length: %d instead of 3", l)
		return
	}

	if d.To, err = cboring.ReadTextString(r); err != nil {
		return
	}

	if payload, plErr := cboring.ReadByteString(r); plErr != nil {
		err = plErr
		return
	} else {
		d.Payload = string(payload)
	}

	checked := data[:len(data)-r.Len()]

	if crcVal, crcErr := cboring.ReadByteString(r); crcErr != nil {
		err = crcErr
	} else if len(crcVal) != 2 {
		err = fmt.Errorf("invalid CRC length: %d", len(crcVal))
	} else if crcCalc := crc16.Checksum(checked, crc16table); binary.BigEndian.Uint16(crcVal) != crcCalc {
		err = fmt.Errorf("invalid CRC value: %x instead of expected %04x", crcVal, crcCalc)
	}

	return
}
