package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Codec turns values into a portable byte representation and back.
// Providers persisting values outside the process use one; decoding an encoded value must yield
// a value equal to the normalized input.
type Codec interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// NewJSONCodec returns a Codec using JSON. Decoded values are nil, bool, float64, string,
// []any or map[string]any.
func NewJSONCodec() Codec {
	return jsonCodecImpl{}
}

type jsonCodecImpl struct{}

func (jsonCodecImpl) Encode(value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return b, nil
}

func (jsonCodecImpl) Decode(data []byte) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return v, nil
}

// Normalize round-trips value through codec so it can be compared with decoded values.
func Normalize(codec Codec, value any) (any, error) {
	b, err := codec.Encode(value)
	if err != nil {
		return nil, err
	}
	return codec.Decode(b)
}
