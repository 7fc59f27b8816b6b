// Package event_publisher decorates broker publishers with cross-cutting
// message metadata.
package event_publisher

import (
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/message"
)

// CorrelationPublisherDecorator stamps every outgoing message with the
// correlation id of the booking flow that produced it, so all hops of one
// saga run can be tied together in the logs.
type CorrelationPublisherDecorator struct {
	message.Publisher
}

func (c CorrelationPublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if id := log.CorrelationIDFromContext(msg.Context()); id != "" {
			msg.Metadata.Set("correlation_id", id)
		}
	}
	return c.Publisher.Publish(topic, messages...)
}
