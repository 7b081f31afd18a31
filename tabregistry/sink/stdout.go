// CLAUDE:SUMMARY Writes indicator events as JSON lines to an io.Writer (defaults to stdout).
package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/savedtabs/tabregistry/indicator"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu     sync.Mutex
	enc    *json.Encoder
	images bool
}

// NewStdout creates a Stdout applier. If w is nil, os.Stdout is used.
// images adds base64 PNGs to every line.
func NewStdout(w io.Writer, images bool) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w), images: images}
}

func (s *Stdout) Apply(_ context.Context, tabID string, ind indicator.Indicator) error {
	ev, err := NewEvent(tabID, ind, s.images)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "indicator", Data: ev})
}

func (s *Stdout) Close() error { return nil }

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
