package commands

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/google/uuid"

	"bookings/internal/entities"
	"bookings/internal/infrastructure/clients"
)

type InventoryService interface {
	HoldRooms(ctx context.Context, request *clients.HoldRoomsRequest) (*clients.HoldRoomsResponse, error)
	ReleaseHold(ctx context.Context, bookingID uuid.UUID, requestID string) error
	ConfirmHold(ctx context.Context, bookingID uuid.UUID, requestID string) error
}

type PaymentsService interface {
	InitiatePayment(ctx context.Context, request *clients.InitiatePaymentRequest) error
	Refund(ctx context.Context, paymentRef, idempotencyKey string) error
}

type QuotesRepository interface {
	Get(ctx context.Context, quoteID string) (entities.Quote, error)
}

type Handler struct {
	eb              *cqrs.EventBus
	inventoryClient InventoryService
	paymentsClient  PaymentsService
	quotesRepo      QuotesRepository
}

func NewHandler(
	eb *cqrs.EventBus,
	inventoryClient InventoryService,
	paymentsClient PaymentsService,
	quotesRepo QuotesRepository,
) *Handler {
	return &Handler{
		eb:              eb,
		inventoryClient: inventoryClient,
		paymentsClient:  paymentsClient,
		quotesRepo:      quotesRepo,
	}
}
