package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type wireSegment struct {
	Type string                     `json:"type"`
	Data map[string]json.RawMessage `json:"data"`
}

// MarshalJSON writes the array form {"type":..,"data":{..}}; data is never null.
func (s Segment) MarshalJSON() ([]byte, error) {
	data := s.Data
	if data == nil {
		data = map[string]string{}
	}
	return json.Marshal(struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}{s.Type, data})
}

// UnmarshalJSON accepts gateways that send numbers or booleans as field values.
func (s *Segment) UnmarshalJSON(b []byte) error {
	var w wireSegment
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	s.Type = w.Type
	s.Data = make(map[string]string, len(w.Data))
	for k, raw := range w.Data {
		v, err := scalarString(raw)
		if err != nil {
			return fmt.Errorf("segment %s field %s: %w", w.Type, k, err)
		}
		if v != "" {
			s.Data[k] = v
		}
	}
	return nil
}

// UnmarshalJSON accepts both the markup string form and the segment array form.
func (m *Message) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = Parse(s)
		return nil
	}
	var segs []Segment
	if err := json.Unmarshal(b, &segs); err != nil {
		return err
	}
	*m = segs
	return nil
}

func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return "", err
		}
		return boolString(v), nil
	case '{', '[':
		return string(raw), nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return n.String(), nil
	}
}

func (m Message) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Segment(m))
}
