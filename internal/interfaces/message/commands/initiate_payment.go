package commands

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"bookings/internal/entities"
	"bookings/internal/infrastructure/clients"
	"bookings/internal/repository"
)

func (h *Handler) InitiatePaymentHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"initiate_payment",
		func(ctx context.Context, command *entities.InitiatePayment) error {
			log.FromContext(ctx).Info("Initiating payment")

			quote, err := h.quotesRepo.Get(ctx, command.QuoteID)
			if err != nil {
				if errors.Is(err, repository.ErrQuoteNotFound) {
					return h.publishPaymentFailed(ctx, command, "quote expired before payment")
				}
				return err
			}
			if quote.Expired(time.Now().UTC()) {
				return h.publishPaymentFailed(ctx, command, "quote expired before payment")
			}

			err = h.paymentsClient.InitiatePayment(ctx, &clients.InitiatePaymentRequest{
				BookingID:   command.BookingID,
				PaymentRef:  command.PaymentRef,
				PriceAmount: quote.PriceAmount,
				Currency:    quote.Currency,
				RequestID:   command.RequestID,
			})
			if err != nil {
				if errors.Is(err, clients.ErrPaymentDeclined) {
					return h.publishPaymentFailed(ctx, command, err.Error())
				}

				log.FromContext(ctx).
					WithField("error", err).
					Warn("Payment initiation call failed, will retry")
				return err
			}

			// the payment outcome arrives asynchronously as
			// PaymentCompleted_v1 / PaymentFailed_v1
			return nil
		},
	)
}

func (h *Handler) publishPaymentFailed(ctx context.Context, command *entities.InitiatePayment, reason string) error {
	return h.eb.Publish(ctx, &entities.PaymentFailed_v1{
		Header:        entities.NewEventHeader(),
		BookingID:     command.BookingID,
		PaymentRef:    command.PaymentRef,
		FailureReason: reason,
	})
}
