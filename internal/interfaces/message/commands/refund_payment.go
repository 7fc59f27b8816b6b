package commands

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"bookings/internal/entities"
)

func (h *Handler) RefundPaymentHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"refund_payment",
		func(ctx context.Context, command *entities.RefundPayment) error {
			log.FromContext(ctx).Info("Refunding payment")

			err := h.paymentsClient.Refund(ctx, command.PaymentRef, command.RequestID)
			if err != nil {
				log.FromContext(ctx).
					WithField("error", err).
					Warn("Refund call failed, will retry")
				return err
			}

			log.FromContext(ctx).
				WithField("payment_ref", command.PaymentRef).
				Info("Payment refunded")
			return nil
		},
	)
}
