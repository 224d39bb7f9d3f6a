package fetcher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zuulview/zuulview/pkg/domain"
)

// Event is one resource lifecycle transition, consumed by the surrounding
// store/UI collaborator. Success events carry the receipt timestamp; failure
// events carry the originating URL.
type Event struct {
	ID         string               `json:"id"`
	Resource   domain.Resource      `json:"resource"`
	State      domain.ResourceState `json:"state"`
	Key        string               `json:"key"`
	URL        string               `json:"url,omitempty"`
	Err        string               `json:"error,omitempty"`
	ReceivedAt time.Time            `json:"receivedAt,omitempty"`
}

// Events receives resource transitions. Publish must not block for long;
// it runs on the fetch path.
type Events interface {
	Publish(ctx context.Context, ev Event)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) Publish(context.Context, Event) {}

func newEvent(res domain.Resource, st domain.ResourceState, key string) Event {
	return Event{
		ID:       uuid.NewString(),
		Resource: res,
		State:    st,
		Key:      key,
	}
}
