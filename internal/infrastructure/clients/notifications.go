package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type NotificationsClient struct {
	httpClient
}

func NewNotificationsClient(baseURL string, timeout time.Duration) NotificationsClient {
	return NotificationsClient{newHTTPClient(baseURL, timeout)}
}

type BookingNotificationRequest struct {
	BookingID uuid.UUID `json:"booking_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
}

func (c NotificationsClient) NotifyBookingStatus(ctx context.Context, request *BookingNotificationRequest) error {
	idempotencyKey := request.BookingID.String() + ":notify:" + request.Status

	status, err := c.post(ctx, "/notifications/booking-status", idempotencyKey, request, nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK && status != http.StatusAccepted {
		return fmt.Errorf("unexpected status sending notification: %d", status)
	}
	return nil
}
