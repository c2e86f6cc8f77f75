package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Meter is a utility meter attached to an account.
type Meter struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Detail string    `json:"detail"`
	Info   MeterInfo `json:"info"`

	LastIndication     *int64  `json:"lastIndication"`
	LastIndicationDate *string `json:"lastIndicationDate"`

	// PushAllowed is whether the portal currently accepts readings.
	PushAllowed bool `json:"pushAllowed"`

	// Account is the account the meter belongs to. It's only used to route
	// readings and is never serialized.
	Account *Account `json:"-"`
}

// Code identifies the meter across refreshes.
func (m *Meter) Code() string {
	return m.ID
}

// MeterInfo is the free-text info the portal attaches to a meter. Depending on
// the response it is either a single string or a list of strings.
type MeterInfo struct {
	lines []string
	multi bool
}

// SingleInfo returns info holding one string.
func SingleInfo(s string) MeterInfo {
	return MeterInfo{lines: []string{s}}
}

// MultiInfo returns info holding an ordered list of strings.
func MultiInfo(lines ...string) MeterInfo {
	return MeterInfo{lines: lines, multi: true}
}

// IsMulti is true when the info was a list.
func (i MeterInfo) IsMulti() bool {
	return i.multi
}

// Lines returns the info strings in order. A single info returns one line.
func (i MeterInfo) Lines() []string {
	return i.lines
}

// String joins all lines with a newline.
func (i MeterInfo) String() string {
	return strings.Join(i.lines, "\n")
}

// MarshalJSON implements json.Marshaler and keeps the original shape.
func (i MeterInfo) MarshalJSON() ([]byte, error) {
	if i.multi {
		if i.lines == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(i.lines)
	}
	if len(i.lines) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(i.lines[0])
}

// UnmarshalJSON implements json.Unmarshaler accepting a string, a list of
// strings or null.
func (i *MeterInfo) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*i = MeterInfo{}
	case len(b) > 0 && b[0] == '[':
		var lines []string
		if err := json.Unmarshal(b, &lines); err != nil {
			return fmt.Errorf("invalid meter info list: %w", err)
		}
		*i = MultiInfo(lines...)
	default:
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("invalid meter info: %w", err)
		}
		*i = SingleInfo(s)
	}
	return nil
}
