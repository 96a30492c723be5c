package fetchstate

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyPayload is returned by JSON transforms given no payload.
var ErrEmptyPayload = errors.New("empty payload")

// Descriptor says what to fetch and how to turn the response into T.
//
// Transform receives the raw body of a successful response. When nil, the
// body is decoded as JSON into T. ErrorMessage extracts the server-provided
// message from a failed response; an empty result falls back to
// DefaultErrorMessage.
type Descriptor[T any] struct {
	Request      Request
	Transform    func(payload []byte) (T, error)
	ErrorMessage func(payload []byte) string
}

//nolint:gocritic // Descriptor is copied on purpose
func (d Descriptor[T]) clone() Descriptor[T] {
	d.Request = d.Request.clone()
	return d
}

func (d *Descriptor[T]) transform(payload []byte) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TransformError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if d.Transform == nil {
		data, err = Decode[T]()(payload)
	} else {
		data, err = d.Transform(payload)
	}
	if err != nil {
		var transformErr *TransformError
		if !errors.As(err, &transformErr) {
			err = &TransformError{Err: err}
		}
	}

	return data, err
}

func (d *Descriptor[T]) errorMessage(payload []byte) (msg string) {
	defer func() {
		if recover() != nil {
			msg = ""
		}
	}()

	if d.ErrorMessage == nil {
		return ""
	}

	return d.ErrorMessage(payload)
}

// Decode returns a transform that unmarshals a JSON payload into T.
func Decode[T any]() func(payload []byte) (T, error) {
	return func(payload []byte) (T, error) {
		var result T
		if len(payload) == 0 {
			return result, ErrEmptyPayload
		}
		if err := json.Unmarshal(payload, &result); err != nil {
			return result, fmt.Errorf("unmarshaling JSON response: %w", err)
		}

		return result, nil
	}
}

// JSON returns a transform that unmarshals the payload into P and maps it
// to T with fn.
func JSON[P, T any](fn func(P) (T, error)) func(payload []byte) (T, error) {
	decode := Decode[P]()

	return func(payload []byte) (T, error) {
		raw, err := decode(payload)
		if err != nil {
			var zero T
			return zero, err
		}

		return fn(raw)
	}
}

// MessageAt returns an ErrorMessage extractor reading a string from nested
// JSON object keys, e.g. MessageAt("error", "message") for
// {"error":{"message":"EMAIL_EXISTS"}}.
func MessageAt(keys ...string) func(payload []byte) string {
	return func(payload []byte) string {
		var node interface{}
		if err := json.Unmarshal(payload, &node); err != nil {
			return ""
		}

		for _, key := range keys {
			obj, ok := node.(map[string]interface{})
			if !ok {
				return ""
			}
			node = obj[key]
		}

		msg, _ := node.(string)

		return msg
	}
}
