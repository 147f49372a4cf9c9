// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/dtn7/cboring"
)

// Variant is one shape of a polymorphic message, e.g., a request or a response
// of an application protocol. Variants must be implemented on pointer receivers.
type Variant interface {
	cboring.CborMarshaler

	// VariantCode must return a constant integer, unique for each Variant type.
	VariantCode() uint64
}

// VariantCodec encodes Envelopes of registered Variants. Each payload is
// prefixed by its VariantCode, which selects the type to be created on decoding.
type VariantCodec struct {
	mutex sync.RWMutex
	types map[uint64]reflect.Type
	inner *CborCodec[Variant]
}

// NewVariantCodec creates a VariantCodec with the given exemplary Variants registered.
func NewVariantCodec(variants ...Variant) (*VariantCodec, error) {
	vc := &VariantCodec{types: make(map[uint64]reflect.Type)}
	vc.inner = NewCborCodec(vc.marshalVariant, vc.unmarshalVariant)

	for _, v := range variants {
		if err := vc.Register(v); err != nil {
			return nil, err
		}
	}

	return vc, nil
}

// Register a new Variant type through an exemplary instance.
func (vc *VariantCodec) Register(v Variant) error {
	vt := reflect.TypeOf(v)
	if vt == nil || vt.Kind() != reflect.Pointer {
		return fmt.Errorf("%w: variant %T must be a pointer", ErrInvalidArgument, v)
	}

	vc.mutex.Lock()
	defer vc.mutex.Unlock()

	code := v.VariantCode()
	if otherType, exists := vc.types[code]; exists {
		return fmt.Errorf("variant code %d is already registered for %s", code, otherType.Name())
	}

	vc.types[code] = vt.Elem()
	return nil
}

// Encode an Envelope of a registered Variant.
func (vc *VariantCodec) Encode(e Envelope[Variant]) (string, error) {
	return vc.inner.Encode(e)
}

// Decode an Envelope into a new instance of a registered Variant.
func (vc *VariantCodec) Decode(data string) (Envelope[Variant], error) {
	return vc.inner.Decode(data)
}

func (vc *VariantCodec) marshalVariant(v Variant, w io.Writer) error {
	if isNil(v) {
		return fmt.Errorf("%w: nil variant", ErrInvalidArgument)
	}

	vc.mutex.RLock()
	_, known := vc.types[v.VariantCode()]
	vc.mutex.RUnlock()

	if !known {
		return fmt.Errorf("variant code %d of %T is not registered", v.VariantCode(), v)
	}

	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(v.VariantCode(), w); err != nil {
		return err
	}
	return cboring.Marshal(v, w)
}

func (vc *VariantCodec) unmarshalVariant(r io.Reader) (v Variant, err error) {
	if l, lErr := cboring.ReadArrayLength(r); lErr != nil {
		err = lErr
		return
	} else if l != 2 {
		err = fmt.Errorf("wrong array length: %d instead of 2", l)
		return
	}

	code, codeErr := cboring.ReadUInt(r)
	if codeErr != nil {
		err = codeErr
		return
	}

	vc.mutex.RLock()
	vt, known := vc.types[code]
	vc.mutex.RUnlock()

	if !known {
		err = fmt.Errorf("no variant for code %d", code)
		return
	}

	v = reflect.New(vt).Interface().(Variant)
	err = cboring.Unmarshal(v, r)
	return
}
