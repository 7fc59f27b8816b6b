package events

import (
	"context"
	"fmt"

	"bookings/internal/entities"
	"bookings/internal/infrastructure/clients"
)

type NotificationsService interface {
	NotifyBookingStatus(ctx context.Context, request *clients.BookingNotificationRequest) error
}

// NotificationsHandler tells the notification sender about terminal booking
// states. The client derives an idempotency key from booking id and status,
// so redelivered events don't spam the guest.
type NotificationsHandler struct {
	notifications NotificationsService
}

func NewNotificationsHandler(notifications NotificationsService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

func (h *NotificationsHandler) OnBookingConfirmed(ctx context.Context, event *entities.BookingConfirmed_v1) error {
	err := h.notifications.NotifyBookingStatus(ctx, &clients.BookingNotificationRequest{
		BookingID: event.BookingID,
		Status:    event.Status,
	})
	if err != nil {
		return fmt.Errorf("notify booking confirmed: %w", err)
	}
	return nil
}

func (h *NotificationsHandler) OnBookingCancelled(ctx context.Context, event *entities.BookingCancelled_v1) error {
	err := h.notifications.NotifyBookingStatus(ctx, &clients.BookingNotificationRequest{
		BookingID: event.BookingID,
		Status:    event.Status,
		Reason:    event.Reason,
	})
	if err != nil {
		return fmt.Errorf("notify booking cancelled: %w", err)
	}
	return nil
}
