// CLAUDE:SUMMARY Observer → registry wire protocol: FOUND_COUNT message, tab envelope, lenient count decoding.
// Package message defines the one-way protocol between page observers and
// the tab state registry.
//
// Observers only ever send counts. The originating tab is attached by the
// transport (an in-process sender bound to a tab, or the tab segment of the
// registry's HTTP route), never by the observer itself.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// TypeFoundCount is the only message kind.
const TypeFoundCount = "FOUND_COUNT"

var (
	// ErrUnknownType is returned for messages whose type is not FOUND_COUNT.
	ErrUnknownType = errors.New("message: unknown type")
	// ErrNoTab is returned for envelopes with no resolvable originating tab.
	ErrNoTab = errors.New("message: no originating tab")
)

// FoundCount reports the number of unique saved items visible in a tab.
type FoundCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// NewFoundCount builds a FOUND_COUNT message. Negative counts become 0.
func NewFoundCount(n int) FoundCount {
	if n < 0 {
		n = 0
	}
	return FoundCount{Type: TypeFoundCount, Count: n}
}

// Envelope is a message plus the tab it came from.
type Envelope struct {
	TabID   string     `json:"tab_id"`
	Message FoundCount `json:"message"`
}

// Validate checks that the envelope can be applied to a tab record.
func (e Envelope) Validate() error {
	if e.TabID == "" {
		return ErrNoTab
	}
	if e.Message.Type != TypeFoundCount {
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Message.Type)
	}
	return nil
}

// Decode parses a wire message. The count is coerced rather than rejected:
// missing, null, non-numeric, non-finite and negative values all become 0,
// and fractional values are truncated.
func Decode(data []byte) (FoundCount, error) {
	var raw struct {
		Type  string `json:"type"`
		Count any    `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return FoundCount{}, fmt.Errorf("message: decode: %w", err)
	}
	if raw.Type != TypeFoundCount {
		return FoundCount{}, fmt.Errorf("%w: %q", ErrUnknownType, raw.Type)
	}
	return NewFoundCount(coerceCount(raw.Count)), nil
}

// Encode marshals a message for the wire.
func Encode(m FoundCount) ([]byte, error) {
	return json.Marshal(m)
}

func coerceCount(v any) int {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
