// internal/events/events.go
package events

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
)

// Event types published by the verification service.
const (
	TypeTemplateRegistered = "template.registered"
	TypeTemplateUpdated    = "template.updated"
	TypeTemplateDeleted    = "template.deleted"
	TypeDocumentMatched    = "document.matched"
)

// Event is the envelope every sink receives.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	TemplateID string      `json:"templateId,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload,omitempty"`
}

func New(eventType, templateID string, payload interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		TemplateID: templateID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Fanout publishes to every sink and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
