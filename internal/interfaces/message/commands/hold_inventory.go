package commands

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"bookings/internal/entities"
	"bookings/internal/infrastructure/clients"
)

func (h *Handler) HoldInventoryHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"hold_inventory",
		func(ctx context.Context, command *entities.HoldInventory) error {
			log.FromContext(ctx).Info("Requesting inventory hold")

			resp, err := h.inventoryClient.HoldRooms(ctx, &clients.HoldRoomsRequest{
				BookingID:      command.BookingID,
				HotelID:        command.HotelID,
				RoomSelections: command.RoomSelections,
				RequestID:      command.RequestID,
			})
			if err != nil {
				if errors.Is(err, clients.ErrNoAvailability) {
					// a definitive no from inventory, not worth retrying
					return h.eb.Publish(ctx, &entities.InventoryHoldFailed_v1{
						Header:        entities.NewEventHeader(),
						BookingID:     command.BookingID,
						FailureReason: err.Error(),
					})
				}

				log.FromContext(ctx).
					WithField("error", err).
					Warn("Inventory hold call failed, will retry")
				return err
			}

			return h.eb.Publish(ctx, &entities.InventoryHoldSucceeded_v1{
				Header:    entities.NewEventHeader(),
				BookingID: command.BookingID,
				HoldRef:   resp.HoldRef,
			})
		},
	)
}
