package util

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type EncoderDecoder[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (*T, error)
}

// JsonEncDec stores values as JSON. Numbers inside map[string]any fields
// come back as float64.
type JsonEncDec[T any] struct {
	name string
}

var _ EncoderDecoder[any] = new(JsonEncDec[any])

func NewJsonEncoderDecoder[T any]() *JsonEncDec[T] {
	var zero T
	return &JsonEncDec[T]{name: fmt.Sprintf("%T", zero)}
}

func (encdec *JsonEncDec[T]) Encode(value T) ([]byte, error) {
	res, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", encdec.name, err)
	}
	return res, nil
}

func (encdec *JsonEncDec[T]) Decode(data []byte) (*T, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("decode %s: empty payload", encdec.name)
	}
	var res T
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode %s: %w", encdec.name, err)
	}
	return &res, nil
}
