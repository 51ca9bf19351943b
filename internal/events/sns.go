// internal/events/sns.go
package events

import (
	"context"
	"encoding/json"

	"template-verifier/internal/common/errors"
)

type snsPublisher interface {
	PublishJSON(ctx context.Context, topicARN, subject string, attributes map[string]string, body []byte) (string, error)
}

// SNSPublisher sends events to one SNS topic, tagging each message with its
// event type so subscribers can filter.
type SNSPublisher struct {
	client   snsPublisher
	topicARN string
}

func NewSNSPublisher(client snsPublisher, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (p *SNSPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.NewEventPublishFailedError(evt.Type, err)
	}
	attrs := map[string]string{"eventType": evt.Type}
	if evt.TemplateID != "" {
		attrs["templateId"] = evt.TemplateID
	}
	if _, err := p.client.PublishJSON(ctx, p.topicARN, evt.Type, attrs, body); err != nil {
		return errors.NewEventPublishFailedError(evt.Type, err)
	}
	return nil
}
