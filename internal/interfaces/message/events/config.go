package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"bookings/internal/entities"
)

// eventMarshaler tags unmarshal failures with ErrJsonUnmarshal so the
// SkipMarshallingErrors middleware drops malformed payloads instead of
// retrying them until they poison the queue.
type eventMarshaler struct {
	cqrs.JSONMarshaler
}

func (m eventMarshaler) Unmarshal(msg *message.Message, v any) error {
	if err := m.JSONMarshaler.Unmarshal(msg, v); err != nil {
		return fmt.Errorf("%w: %s", ErrJsonUnmarshal, err)
	}
	return nil
}

var marshaler = eventMarshaler{
	JSONMarshaler: cqrs.JSONMarshaler{
		GenerateName: cqrs.StructName,
	},
}

// Marshaler is shared with the events splitter, which needs the event name
// encoded in the message metadata to route by topic.
func Marshaler() cqrs.CommandEventMarshaler {
	return marshaler
}

func NewEventProcessorConfig(
	redisClient *redis.Client,
	watermillLogger watermill.LoggerAdapter,
) cqrs.EventProcessorConfig {
	return cqrs.EventProcessorConfig{
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			handlerEvent := params.EventHandler.NewEvent()
			event, ok := handlerEvent.(entities.Event)
			if !ok {
				return "", fmt.Errorf("invalid event type: %T doesn't implement entities.Event", handlerEvent)
			}

			var prefix string
			if event.IsInternal() {
				prefix = "internal-events.svc-bookings."
			} else {
				prefix = "events."
			}

			return prefix + params.EventName, nil
		},
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        redisClient,
				ConsumerGroup: "svc-bookings." + params.HandlerName,
			}, watermillLogger)
		},
		Marshaler: marshaler,
		Logger:    watermillLogger,
	}
}
