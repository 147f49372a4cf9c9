// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

// Codec converts Envelopes into a messenger's string payloads and back.
//
// Decode(Encode(e)) must be equal to e for every Envelope sent. The empty
// string is reserved for acknowledgments and must never be produced by Encode.
type Codec[M any] interface {
	Encode(e Envelope[M]) (string, error)
	Decode(data string) (Envelope[M], error)
}

// encode an Envelope and reject the reserved empty encoding.
func encode[M any](codec Codec[M], e Envelope[M]) (string, error) {
	data, err := codec.Encode(e)
	if err != nil {
		return "", err
	} else if data == "" {
		return "", ErrEmptyEncoding
	}
	return data, nil
}
