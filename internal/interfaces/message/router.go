package message

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"bookings/internal/deadletter"
	"bookings/internal/interfaces/message/commands"
	"bookings/internal/interfaces/message/events"
)

func NewRouter(
	watermillLogger watermill.LoggerAdapter,
	redisSubscriber message.Subscriber,
	redisPublisher message.Publisher,

	commandsHandler *commands.Handler,
	saga *events.BookingSagaProcessManager,
	notificationsHandler *events.NotificationsHandler,

	marshaller cqrs.CommandEventMarshaler,
	eventProcessorConfig cqrs.EventProcessorConfig,
	commandProcessorConfig cqrs.CommandProcessorConfig,

	maxRetries int,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, err
	}

	err = initMiddlewares(router, redisPublisher, watermillLogger, maxRetries)
	if err != nil {
		return nil, err
	}

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, eventProcessorConfig)
	if err != nil {
		return nil, err
	}

	err = eventProcessor.AddHandlers(
		// saga handlers, one per inbound trigger
		cqrs.NewEventHandler(
			"booking_saga.on_booking_requested",
			saga.OnBookingRequested,
		),
		cqrs.NewEventHandler(
			"booking_saga.on_inventory_hold_succeeded",
			saga.OnInventoryHoldSucceeded,
		),
		cqrs.NewEventHandler(
			"booking_saga.on_inventory_hold_failed",
			saga.OnInventoryHoldFailed,
		),
		cqrs.NewEventHandler(
			"booking_saga.on_inventory_confirmed",
			saga.OnInventoryConfirmed,
		),
		cqrs.NewEventHandler(
			"booking_saga.on_inventory_released",
			saga.OnInventoryReleased,
		),
		cqrs.NewEventHandler(
			"booking_saga.on_payment_completed",
			saga.OnPaymentCompleted,
		),
		cqrs.NewEventHandler(
			"booking_saga.on_payment_failed",
			saga.OnPaymentFailed,
		),

		// notification handlers
		cqrs.NewEventHandler(
			"notifications.on_booking_confirmed",
			notificationsHandler.OnBookingConfirmed,
		),
		cqrs.NewEventHandler(
			"notifications.on_booking_cancelled",
			notificationsHandler.OnBookingCancelled,
		),
	)
	if err != nil {
		return nil, err
	}

	commandsProcessor, err := cqrs.NewCommandProcessorWithConfig(router, commandProcessorConfig)
	if err != nil {
		return nil, err
	}

	err = commandsProcessor.AddHandlers(
		commandsHandler.HoldInventoryHandler(),
		commandsHandler.ReleaseInventoryHandler(),
		commandsHandler.ConfirmInventoryHandler(),
		commandsHandler.InitiatePaymentHandler(),
		commandsHandler.RefundPaymentHandler(),
	)
	if err != nil {
		return nil, err
	}

	router.AddNoPublisherHandler(
		"events_splitter",
		"events",
		redisSubscriber,
		func(msg *message.Message) error {
			eventName := marshaller.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("cannot get event name from message")
			}

			return redisPublisher.Publish("events."+eventName, msg)
		},
	)

	return router, nil
}

func initMiddlewares(
	router *message.Router,
	redisPublisher message.Publisher,
	watermillLogger watermill.LoggerAdapter,
	maxRetries int,
) error {
	router.AddMiddleware(middleware.Recoverer)
	router.AddMiddleware(events.CorrelationIDMiddleware)
	router.AddMiddleware(events.LoggingMiddleware)

	// messages that exhaust the retry budget below end up on the dead-letter
	// topic instead of blocking the consumer group
	poisonQueue, err := middleware.PoisonQueue(redisPublisher, deadletter.Topic)
	if err != nil {
		return err
	}
	router.AddMiddleware(poisonQueue)

	router.AddMiddleware(middleware.Retry{
		MaxRetries:          maxRetries,
		InitialInterval:     time.Millisecond * 100,
		MaxInterval:         time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.25,
		Logger:              watermillLogger,
	}.Middleware)

	// skip marshalling errors before retrying
	router.AddMiddleware(events.SkipMarshallingErrorsMiddleware)
	router.AddMiddleware(events.MetricsMiddleware)

	return nil
}
