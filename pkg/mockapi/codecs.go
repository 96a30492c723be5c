package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/pavelpascari/fetchstate/pkg/forms"
)

// Decoder reads a request into T: the JSON body, then string fields tagged
// path from the route wildcards, then the validate tags of T.
type Decoder[T any] struct {
	validator  *forms.Validator
	pathFields []pathField
	isStruct   bool
}

type pathField struct {
	index int
	name  string
}

// NewDecoder creates a decoder for T. A nil validator skips validation.
func NewDecoder[T any](v *forms.Validator) *Decoder[T] {
	d := &Decoder[T]{validator: v}

	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return d
	}
	d.isStruct = true

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("path")
		if name == "" || !field.IsExported() || field.Type.Kind() != reflect.String {
			continue
		}
		d.pathFields = append(d.pathFields, pathField{index: i, name: name})
	}

	return d
}

// Decode decodes r into a T.
func (d *Decoder[T]) Decode(r *http.Request) (T, error) {
	var result T

	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&result); err != nil && !errors.Is(err, io.EOF) {
			return result, &RequestError{Message: fmt.Sprintf("invalid JSON: %v", err)}
		}
	}

	if len(d.pathFields) > 0 {
		value := reflect.ValueOf(&result).Elem()
		for _, f := range d.pathFields {
			value.Field(f.index).SetString(pathValue(r, f.name))
		}
	}

	if d.validator == nil || !d.isStruct {
		return result, nil
	}

	check, err := d.validator.Check(result)
	if err != nil {
		return result, fmt.Errorf("validating request: %w", err)
	}

	return result, check.Error()
}

// pathValue returns the named wildcard without the .json suffix that
// database paths carry.
func pathValue(r *http.Request, name string) string {
	return strings.TrimSuffix(r.PathValue(name), ".json")
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err = w.Write(body)

	return err
}
