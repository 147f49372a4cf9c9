// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"encoding/json"
	"fmt"
)

// jsonEnvelope is the JSON object representation of an Envelope.
type jsonEnvelope[M any] struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Payload M      `json:"payload"`
}

// JSONCodec serializes Envelopes of JSON compatible payloads, e.g., structs
// with exported fields, as JSON objects.
type JSONCodec[M any] struct{}

// NewJSONCodec creates a new JSONCodec.
func NewJSONCodec[M any]() *JSONCodec[M] {
	return &JSONCodec[M]{}
}

// Encode an Envelope into a JSON object.
func (_ *JSONCodec[M]) Encode(e Envelope[M]) (string, error) {
	data, err := json.Marshal(jsonEnvelope[M]{From: e.From, To: e.To, Payload: e.Payload})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode an Envelope from a JSON object.
func (_ *JSONCodec[M]) Decode(data string) (e Envelope[M], err error) {
	var je jsonEnvelope[M]
	if err = json.Unmarshal([]byte(data), &je); err != nil {
		return
	} else if je.From == "" || je.To == "" {
		err = fmt.Errorf("JSON envelope misses an address")
		return
	}

	e = Envelope[M]{From: je.From, To: je.To, Payload: je.Payload}
	return
}
