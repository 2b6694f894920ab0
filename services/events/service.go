package events

import (
	"context"

	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/logger"
)

// NewEventsService connects to RabbitMQ. Without a URL events are only
// logged, so local runs need no broker.
func NewEventsService(rabbitmqURL string, log logger.Logger, publisherConfig *PublisherConfig) (interfaces.EventPublisher, error) {
	if rabbitmqURL == "" {
		log.Warn("RABBITMQ_URL not set, pipeline events will not be published")
		return &nopPublisher{log: log}, nil
	}
	return NewRabbitMQPublisher(rabbitmqURL, log, publisherConfig)
}

type nopPublisher struct {
	log logger.Logger
}

func (p *nopPublisher) PublishEmailsLabeled(_ context.Context, event dto.EmailsLabeled) error {
	p.log.Debugf("Skipping EmailsLabeled event for %s: %s", event.Owner, event.Summary.Message)
	return nil
}

func (p *nopPublisher) Close() error {
	return nil
}
