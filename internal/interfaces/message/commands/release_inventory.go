package commands

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"bookings/internal/entities"
)

func (h *Handler) ReleaseInventoryHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"release_inventory",
		func(ctx context.Context, command *entities.ReleaseInventory) error {
			log.FromContext(ctx).Info("Releasing inventory hold")

			err := h.inventoryClient.ReleaseHold(ctx, command.BookingID, command.RequestID)
			if err != nil {
				log.FromContext(ctx).
					WithField("error", err).
					Warn("Inventory release call failed, will retry")
				return err
			}

			return h.eb.Publish(ctx, &entities.InventoryReleased_v1{
				Header:    entities.NewEventHeader(),
				BookingID: command.BookingID,
			})
		},
	)
}
