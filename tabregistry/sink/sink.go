// Package sink defines where rendered tab indicators are applied.
package sink

import (
	"context"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/hazyhaar/savedtabs/idgen"
	"github.com/hazyhaar/savedtabs/tabregistry/indicator"
)

// Applier is the output interface. Implementations apply an indicator to a
// tab in different backends (browser favicon, stdout, webhook, in-process
// callback).
type Applier interface {
	Apply(ctx context.Context, tabID string, ind indicator.Indicator) error
	Close() error
}

var newEventID = idgen.Prefixed("ind_", idgen.UUIDv7())

// Event is the serialised form of one application.
type Event struct {
	ID     string            `json:"id"`
	TabID  string            `json:"tab_id"`
	State  indicator.State   `json:"state"`
	Label  string            `json:"label"`
	Sizes  []int             `json:"sizes"`
	Images map[string]string `json:"images,omitempty"` // size → base64 PNG
	At     time.Time         `json:"at"`
}

// NewEvent builds an event for ind. PNG payloads are included only when
// withImages is set.
func NewEvent(tabID string, ind indicator.Indicator, withImages bool) (Event, error) {
	ev := Event{
		ID:    newEventID(),
		TabID: tabID,
		State: ind.State,
		Label: ind.Label,
		Sizes: ind.Sizes(),
		At:    time.Now().UTC(),
	}
	if !withImages {
		return ev, nil
	}
	ev.Images = make(map[string]string, len(ev.Sizes))
	for _, size := range ev.Sizes {
		data, err := ind.PNG(size)
		if err != nil {
			return Event{}, err
		}
		ev.Images[strconv.Itoa(size)] = base64.StdEncoding.EncodeToString(data)
	}
	return ev, nil
}
