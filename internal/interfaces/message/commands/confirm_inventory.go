package commands

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"bookings/internal/entities"
)

func (h *Handler) ConfirmInventoryHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"confirm_inventory",
		func(ctx context.Context, command *entities.ConfirmInventory) error {
			log.FromContext(ctx).Info("Confirming inventory hold")

			err := h.inventoryClient.ConfirmHold(ctx, command.BookingID, command.RequestID)
			if err != nil {
				log.FromContext(ctx).
					WithField("error", err).
					Warn("Inventory confirm call failed, will retry")
				return err
			}

			return h.eb.Publish(ctx, &entities.InventoryConfirmed_v1{
				Header:    entities.NewEventHeader(),
				BookingID: command.BookingID,
			})
		},
	)
}
