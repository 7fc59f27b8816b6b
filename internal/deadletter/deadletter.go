package deadletter

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/redis/go-redis/v9"
)

// Topic receives messages that exhausted their retry budget. The poison
// queue middleware stamps the failure reason and the original topic into
// metadata, which is what makes re-drive possible.
const Topic = "PoisonQueue"

type Entry struct {
	ID            string `json:"id"`
	Reason        string `json:"reason"`
	OriginalTopic string `json:"original_topic"`
	Handler       string `json:"handler"`
}

type Queue struct {
	rdb    *redis.Client
	logger watermill.LoggerAdapter
}

func NewQueue(rdb *redis.Client, logger watermill.LoggerAdapter) *Queue {
	return &Queue{
		rdb:    rdb,
		logger: logger,
	}
}

func (q *Queue) subscriber() (message.Subscriber, error) {
	return redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        q.rdb,
		ConsumerGroup: "svc-bookings.dead-letter",
	}, q.logger)
}

func (q *Queue) publisher() (message.Publisher, error) {
	return redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: q.rdb,
	}, q.logger)
}

// Preview lists dead-lettered entries without consuming them: every message
// is republished to the tail of the queue, and iteration stops when the
// first message comes around again.
func (q *Queue) Preview(ctx context.Context) ([]Entry, error) {
	res := make([]Entry, 0)
	firstMessageID := ""

	err := q.walk(ctx, func(msg *message.Message) (string, bool) {
		if firstMessageID == "" {
			firstMessageID = msg.UUID
		} else if msg.UUID == firstMessageID {
			return Topic, true
		}

		res = append(res, Entry{
			ID:            msg.UUID,
			Reason:        msg.Metadata.Get(middleware.ReasonForPoisonedKey),
			OriginalTopic: msg.Metadata.Get(middleware.PoisonedTopicKey),
			Handler:       msg.Metadata.Get(middleware.PoisonedHandlerKey),
		})

		return Topic, false
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Requeue publishes the entry back to the topic it was poisoned on and keeps
// everything else in the queue.
func (q *Queue) Requeue(ctx context.Context, id string) error {
	found := false

	err := q.walk(ctx, func(msg *message.Message) (string, bool) {
		if msg.UUID == id {
			found = true

			originalTopic := msg.Metadata.Get(middleware.PoisonedTopicKey)
			if originalTopic == "" {
				// nothing to re-drive to, keep it in the queue
				return Topic, true
			}
			return originalTopic, true
		}

		return Topic, false
	})
	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("message %s not found in dead-letter queue", id)
	}
	return nil
}

// Remove drops the entry permanently.
func (q *Queue) Remove(ctx context.Context, id string) error {
	found := false

	err := q.walk(ctx, func(msg *message.Message) (string, bool) {
		if msg.UUID == id {
			found = true
			return "", true
		}

		return Topic, false
	})
	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("message %s not found in dead-letter queue", id)
	}
	return nil
}

// walk consumes the queue, invoking fn per message. fn returns the topic to
// republish the message on ("" drops it) and whether to stop after it.
func (q *Queue) walk(ctx context.Context, fn func(msg *message.Message) (string, bool)) error {
	sub, err := q.subscriber()
	if err != nil {
		return err
	}
	pub, err := q.publisher()
	if err != nil {
		return err
	}

	router, err := message.NewRouter(message.RouterConfig{}, q.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	router.AddNoPublisherHandler(
		"dead_letter_walk",
		Topic,
		sub,
		func(msg *message.Message) error {
			topic, stop := fn(msg)

			var err error
			if topic != "" {
				err = pub.Publish(topic, msg)
			}

			if stop && err == nil {
				cancel()
			}
			return err
		},
	)

	err = router.Run(ctx)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
