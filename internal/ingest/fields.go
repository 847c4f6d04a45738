package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fieldReader gives uniform access to one record regardless of its encoding.
// ok=false with a nil error means the field is absent or null.
type fieldReader interface {
	str(name string) (string, bool, error)
	float(name string) (float64, bool, error)
	boolean(name string) (bool, bool, error)
	time(name string) (time.Time, bool, error)
}

// jsonFields reads a JSON object one member at a time.
type jsonFields map[string]json.RawMessage

func newJSONFields(raw json.RawMessage) (jsonFields, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("record is null")
	}
	return jsonFields(m), nil
}

func (f jsonFields) raw(name string) (json.RawMessage, bool) {
	v, ok := f[name]
	if !ok {
		return nil, false
	}
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

func (f jsonFields) str(name string) (string, bool, error) {
	v, ok := f.raw(name)
	if !ok {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, true, nil
	}
	// numeric ids are accepted verbatim
	var num json.Number
	if err := json.Unmarshal(v, &num); err == nil {
		return num.String(), true, nil
	}
	return "", false, fmt.Errorf("%s: not a string: %s", name, truncate(string(v)))
}

func (f jsonFields) float(name string) (float64, bool, error) {
	v, ok := f.raw(name)
	if !ok {
		return 0, false, nil
	}
	var x float64
	if err := json.Unmarshal(v, &x); err == nil {
		return x, true, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if x, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return x, true, nil
		}
	}
	return 0, false, fmt.Errorf("%s: not a number: %s", name, truncate(string(v)))
}

func (f jsonFields) boolean(name string) (bool, bool, error) {
	v, ok := f.raw(name)
	if !ok {
		return false, false, nil
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		return false, false, fmt.Errorf("%s: not a boolean: %s", name, truncate(string(v)))
	}
	return b, true, nil
}

func (f jsonFields) time(name string) (time.Time, bool, error) {
	s, ok, err := f.str(name)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %w", name, err)
	}
	return t, true, nil
}

// xmlFields holds the text of each child element of a flat legacy record.
type xmlFields struct {
	values map[string]string
	parse  func(string) (time.Time, error)
}

func (f xmlFields) str(name string) (string, bool, error) {
	v, ok := f.values[name]
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (f xmlFields) float(name string) (float64, bool, error) {
	v, ok, _ := f.str(name)
	if !ok {
		return 0, false, nil
	}
	x, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: not a number: %s", name, truncate(v))
	}
	return x, true, nil
}

func (f xmlFields) boolean(name string) (bool, bool, error) {
	v, ok, _ := f.str(name)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, fmt.Errorf("%s: not a boolean: %s", name, truncate(v))
	}
	return b, true, nil
}

func (f xmlFields) time(name string) (time.Time, bool, error) {
	v, ok, _ := f.str(name)
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := f.parse(v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %w", name, err)
	}
	return t, true, nil
}

func truncate(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
