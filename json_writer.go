package pnl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// orderedObject builds a JSON object whose fields come out in the order they
// were added, so that calendars and closes files are byte-for-byte
// reproducible. Its zero value is an empty object.
//
// The first failing field sticks: later calls are no-ops and MarshalJSON
// returns the error.
type orderedObject struct {
	buf bytes.Buffer
	err error
}

// Field appends key with the JSON encoding of value.
func (o *orderedObject) Field(key string, value any) *orderedObject {
	if o.err != nil {
		return o
	}
	data, err := json.Marshal(value)
	if err != nil {
		o.err = fmt.Errorf("encoding %q: %w", key, err)
		return o
	}
	o.sep()
	o.buf.WriteString(fmt.Sprintf("%q:", key))
	o.buf.Write(data)
	return o
}

// FieldIf appends key only when value is not the zero value of its type.
// A nil or empty slice is left out.
func (o *orderedObject) FieldIf(key string, value any) *orderedObject {
	v := reflect.ValueOf(value)
	if !v.IsValid() || v.IsZero() || (v.Kind() == reflect.Slice && v.Len() == 0) {
		return o
	}
	return o.Field(key, value)
}

// Inline appends the fields of v, which must encode as a JSON object, as if
// they were fields of o.
func (o *orderedObject) Inline(v any) *orderedObject {
	if o.err != nil {
		return o
	}
	data, err := json.Marshal(v)
	if err != nil {
		o.err = fmt.Errorf("encoding inlined %T: %w", v, err)
		return o
	}
	data = bytes.TrimSpace(data)
	if len(data) < 2 || data[0] != '{' || data[len(data)-1] != '}' {
		o.err = fmt.Errorf("inlined %T is not an object", v)
		return o
	}
	if inner := bytes.TrimSpace(data[1 : len(data)-1]); len(inner) > 0 {
		o.sep()
		o.buf.Write(inner)
	}
	return o
}

func (o *orderedObject) sep() {
	if o.buf.Len() > 0 {
		o.buf.WriteByte(',')
	}
}

// MarshalJSON returns the object, or the first error met while building it.
func (o *orderedObject) MarshalJSON() ([]byte, error) {
	if o.err != nil {
		return nil, o.err
	}
	out := make([]byte, 0, o.buf.Len()+2)
	out = append(out, '{')
	out = append(out, o.buf.Bytes()...)
	return append(out, '}'), nil
}
