// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"bytes"
	"io"
	"strings"

	"github.com/ulikunitz/xz"
)

// XzCodec compresses the encodings of another Codec with xz. This pays off for
// large, redundant payloads, e.g., files or long texts.
type XzCodec[M any] struct {
	inner Codec[M]
}

// NewXzCodec wraps a Codec with xz compression.
func NewXzCodec[M any](inner Codec[M]) *XzCodec[M] {
	return &XzCodec[M]{inner: inner}
}

// Encode an Envelope with the inner Codec and compress the result.
func (c *XzCodec[M]) Encode(e Envelope[M]) (string, error) {
	data, err := c.inner.Encode(e)
	if err != nil {
		return "", err
	}

	var buff bytes.Buffer
	if xzW, xzErr := xz.NewWriter(&buff); xzErr != nil {
		return "", xzErr
	} else if _, err := io.WriteString(xzW, data); err != nil {
		return "", err
	} else if err := xzW.Close(); err != nil {
		return "", err
	}

	return buff.String(), nil
}

// Decode decompresses data and decodes it with the inner Codec.
func (c *XzCodec[M]) Decode(data string) (e Envelope[M], err error) {
	xzR, xzErr := xz.NewReader(strings.NewReader(data))
	if xzErr != nil {
		err = xzErr
		return
	}

	var buff strings.Builder
	if _, err = io.Copy(&buff, xzR); err != nil {
		return
	}

	return c.inner.Decode(buff.String())
}
