package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Description is the server description: either legacy text that may embed
// § formatting codes, or a chat component tree. At most one side is set;
// both nil means the description was absent or null.
type Description struct {
	Legacy    *string
	Component *Component
}

// Component is one node of a JSON chat component tree.
type Component struct {
	Text      *string `json:"text,omitempty"`
	Translate *string `json:"translate,omitempty"`

	With  []Description `json:"with,omitempty"`
	Extra []Description `json:"extra,omitempty"`

	Color         *string `json:"color,omitempty"`
	Bold          *bool   `json:"bold,omitempty"`
	Italic        *bool   `json:"italic,omitempty"`
	Underlined    *bool   `json:"underlined,omitempty"`
	Strikethrough *bool   `json:"strikethrough,omitempty"`
	Obfuscated    *bool   `json:"obfuscated,omitempty"`
}

// LegacyText returns a description holding legacy text.
func LegacyText(s string) *Description {
	return &Description{Legacy: &s}
}

// ComponentDescription returns a description holding a component tree.
func ComponentDescription(c Component) *Description {
	return &Description{Component: &c}
}

// IsEmpty reports whether the description carries nothing to render.
func (d *Description) IsEmpty() bool {
	return d == nil || (d.Legacy == nil && d.Component == nil)
}

// UnmarshalJSON accepts a string, a component object, or an array of
// components (treated as a component whose children are the elements).
// Bare numbers and booleans are kept as their literal text.
func (d *Description) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*d = Description{}

	if len(data) == 0 {
		return fmt.Errorf("empty description")
	}

	switch data[0] {
	case 'n':
		if !bytes.Equal(data, []byte("null")) {
			return fmt.Errorf("invalid description %q", data)
		}
		return nil

	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		d.Legacy = &s
		return nil

	case '{':
		var c Component
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		d.Component = &c
		return nil

	case '[':
		var parts []Description
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		d.Component = &Component{Extra: parts}
		return nil

	default:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		s := string(data)
		d.Legacy = &s
		return nil
	}
}

// MarshalJSON writes legacy text as a JSON string and components as objects.
func (d Description) MarshalJSON() ([]byte, error) {
	switch {
	case d.Legacy != nil:
		return json.Marshal(*d.Legacy)
	case d.Component != nil:
		return json.Marshal(d.Component)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a component field by field. A value of the wrong
// JSON type is dropped instead of failing the whole status: numbers and
// booleans in text or translate keep their literal text, anything else
// mistyped is ignored.
func (c *Component) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*c = Component{
		Text:          literalString(fields["text"]),
		Translate:     literalString(fields["translate"]),
		With:          descriptionList(fields["with"]),
		Extra:         descriptionList(fields["extra"]),
		Color:         plainString(fields["color"]),
		Bold:          plainBool(fields["bold"]),
		Italic:        plainBool(fields["italic"]),
		Underlined:    plainBool(fields["underlined"]),
		Strikethrough: plainBool(fields["strikethrough"]),
		Obfuscated:    plainBool(fields["obfuscated"]),
	}

	return nil
}

func absent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func plainString(raw json.RawMessage) *string {
	var s string
	if absent(raw) || json.Unmarshal(raw, &s) != nil {
		return nil
	}
	return &s
}

// literalString is plainString that also accepts numbers and booleans.
func literalString(raw json.RawMessage) *string {
	if s := plainString(raw); s != nil {
		return s
	}

	var v any
	if absent(raw) || json.Unmarshal(raw, &v) != nil {
		return nil
	}
	switch v.(type) {
	case float64, bool:
		s := string(bytes.TrimSpace(raw))
		return &s
	default:
		return nil
	}
}

func plainBool(raw json.RawMessage) *bool {
	var b bool
	if absent(raw) || json.Unmarshal(raw, &b) != nil {
		return nil
	}
	return &b
}

// descriptionList decodes an array of descriptions; a non-array is ignored.
func descriptionList(raw json.RawMessage) []Description {
	var parts []Description
	if absent(raw) || json.Unmarshal(raw, &parts) != nil {
		return nil
	}
	return parts
}
