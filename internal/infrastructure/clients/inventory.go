package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"bookings/internal/entities"
)

var ErrNoAvailability = fmt.Errorf("no availability for requested rooms")

type InventoryClient struct {
	httpClient
}

func NewInventoryClient(baseURL string, timeout time.Duration) InventoryClient {
	return InventoryClient{newHTTPClient(baseURL, timeout)}
}

type HoldRoomsRequest struct {
	BookingID      uuid.UUID                `json:"booking_id"`
	HotelID        uuid.UUID                `json:"hotel_id"`
	RoomSelections []entities.RoomSelection `json:"room_selections"`
	RequestID      string                   `json:"request_id"`
}

type HoldRoomsResponse struct {
	HoldRef string `json:"hold_ref"`
}

func (c InventoryClient) HoldRooms(ctx context.Context, request *HoldRoomsRequest) (*HoldRoomsResponse, error) {
	var response HoldRoomsResponse

	status, err := c.post(ctx, "/holds", request.RequestID, request, &response)
	if err != nil {
		return nil, err
	}

	if status == http.StatusConflict {
		return nil, ErrNoAvailability
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status holding rooms: %d", status)
	}

	return &response, nil
}

func (c InventoryClient) ReleaseHold(ctx context.Context, bookingID uuid.UUID, requestID string) error {
	body := map[string]string{
		"booking_id": bookingID.String(),
		"request_id": requestID,
	}

	status, err := c.post(ctx, "/holds/release", requestID, body, nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("unexpected status releasing hold: %d", status)
	}
	return nil
}

func (c InventoryClient) ConfirmHold(ctx context.Context, bookingID uuid.UUID, requestID string) error {
	body := map[string]string{
		"booking_id": bookingID.String(),
		"request_id": requestID,
	}

	status, err := c.post(ctx, "/holds/confirm", requestID, body, nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("unexpected status confirming hold: %d", status)
	}
	return nil
}
