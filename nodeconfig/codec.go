package nodeconfig

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/apiflow/registry"
)

// RawConfig is the free-form fallback. Value is any JSON value.
type RawConfig struct {
	Value json.RawMessage
}

func (*RawConfig) Variant() registry.Variant { return registry.VariantRaw }

func (c *RawConfig) normalize() error {
	if len(c.Value) > 0 && !json.Valid(c.Value) {
		return fmt.Errorf("%w: raw value is not JSON", ErrInvalidConfig)
	}
	return nil
}

// SetText stores s as JSON when it parses, else as a JSON string.
func (c *RawConfig) SetText(s string) {
	trimmed := bytes.TrimSpace([]byte(s))
	if len(trimmed) == 0 {
		c.Value = nil
		return
	}
	if json.Valid(trimmed) {
		c.Value = json.RawMessage(trimmed)
		return
	}
	c.Value, _ = json.Marshal(s)
}

// Text returns the value as editable text: JSON strings are unquoted.
func (c *RawConfig) Text() string {
	var s string
	if json.Unmarshal(c.Value, &s) == nil {
		return s
	}
	return string(c.Value)
}

// Encode serializes a config to its canonical JSON form. An empty fallback
// config encodes to nil.
func Encode(c Config) (json.RawMessage, error) {
	switch v := c.(type) {
	case *RawConfig:
		if len(v.Value) == 0 {
			return nil, nil
		}
		if !json.Valid(v.Value) {
			return nil, fmt.Errorf("%w: raw value is not JSON", ErrInvalidConfig)
		}
		return bytes.Clone(v.Value), nil
	case *OutputConfig:
		return json.Marshal(v.Text)
	case *EntityConfig:
		return v.MarshalJSON()
	default:
		return json.Marshal(c)
	}
}

// Decode builds the config for a variant from stored JSON. The result always
// holds the variant's defaults for anything raw does not set. On error the
// defaults are returned together with the error.
func Decode(v registry.Variant, nodeType string, raw json.RawMessage) (Config, error) {
	draft := newDraft(v, nodeType)
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return draft, nil
	}

	switch d := draft.(type) {
	case *RawConfig:
		if !json.Valid(raw) {
			return draft, fmt.Errorf("%w: raw value is not JSON", ErrInvalidConfig)
		}
		d.Value = bytes.Clone(raw)
		return d, nil
	case *OutputConfig:
		var s string
		if json.Unmarshal(raw, &s) == nil {
			d.Text = s
		} else {
			d.Text = string(raw)
		}
		return d, nil
	}

	// Some stored configs are a JSON document encoded inside a JSON string.
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return newDraft(v, nodeType), fmt.Errorf("nodeconfig: decode %s: %w", v, err)
		}
		raw = bytes.TrimSpace([]byte(inner))
		if len(raw) == 0 {
			return draft, nil
		}
	}

	if err := json.Unmarshal(raw, draft); err != nil {
		return newDraft(v, nodeType), fmt.Errorf("nodeconfig: decode %s: %w", v, err)
	}
	return draft, nil
}

// DeriveLabel returns the display label a config implies: its "name" field,
// else its "formName" field, else fallback. Malformed configs yield fallback.
func DeriveLabel(raw json.RawMessage, fallback string) string {
	fields, ok := objectFields(raw)
	if !ok {
		return fallback
	}
	for _, key := range []string{"name", "formName"} {
		if s, ok := fields[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// objectFields parses raw as a JSON object, unwrapping one level of string encoding.
func objectFields(raw json.RawMessage) (map[string]any, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false
	}
	if raw[0] == '"' {
		var inner string
		if json.Unmarshal(raw, &inner) != nil {
			return nil, false
		}
		raw = []byte(inner)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}
