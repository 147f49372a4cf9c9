// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dtn7/cboring"

	"github.com/dtn7/ttalk-go/pkg/msg"
)

// fileMessage carries a file's name and content.
type fileMessage struct {
	Name string
	Data []byte
}

func (_ *fileMessage) VariantCode() uint64 { return 1 }

func (fm *fileMessage) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(fm.Name, w); err != nil {
		return err
	}
	return cboring.WriteByteString(fm.Data, w)
}

func (fm *fileMessage) UnmarshalCbor(r io.Reader) (err error) {
	if l, lErr := cboring.ReadArrayLength(r); lErr != nil {
		return lErr
	} else if l != 2 {
		return fmt.Errorf("wrong array length: %d instead of 2", l)
	}

	if fm.Name, err = cboring.ReadTextString(r); err != nil {
		return
	}
	fm.Data, err = cboring.ReadByteString(r)
	return
}

// cleanName strips every directory component, preventing writes outside the exchange directory.
func (fm *fileMessage) cleanName() (string, error) {
	name := filepath.Base(filepath.Clean("/" + fm.Name))
	if name == "/" || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name %q", fm.Name)
	}
	return name, nil
}

// newExchangeCodec creates the xz compressed Codec for fileMessages.
func newExchangeCodec() (msg.Codec[msg.Variant], error) {
	vc, err := msg.NewVariantCodec(&fileMessage{})
	if err != nil {
		return nil, err
	}
	return msg.NewXzCodec[msg.Variant](vc), nil
}
