package entities

import (
	"time"

	"github.com/google/uuid"
)

type Event interface {
	IsInternal() bool
}

// Outbound events. Published through the outbox so they leave the service
// only after the booking mutation that produced them is durable.

type BookingRequested_v1 struct {
	Header EventHeader `json:"header"`

	BookingID uuid.UUID `json:"booking_id"`
	HotelID   uuid.UUID `json:"hotel_id"`
	QuoteID   string    `json:"quote_id"`
	Status    string    `json:"status"`
	Version   int       `json:"version"`
}

func (e BookingRequested_v1) IsInternal() bool {
	return false
}

type BookingHoldRequested_v1 struct {
	Header EventHeader `json:"header"`

	BookingID uuid.UUID `json:"booking_id"`
	Status    string    `json:"status"`
	Version   int       `json:"version"`
}

func (e BookingHoldRequested_v1) IsInternal() bool {
	return false
}

type BookingConfirmed_v1 struct {
	Header EventHeader `json:"header"`

	BookingID   uuid.UUID `json:"booking_id"`
	Status      string    `json:"status"`
	Version     int       `json:"version"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

func (e BookingConfirmed_v1) IsInternal() bool {
	return false
}

type BookingCancelled_v1 struct {
	Header EventHeader `json:"header"`

	BookingID   uuid.UUID `json:"booking_id"`
	Status      string    `json:"status"`
	Version     int       `json:"version"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (e BookingCancelled_v1) IsInternal() bool {
	return false
}

// Inbound events from the inventory and payment collaborators. Each carries
// the event id used for dedup in its header.

type InventoryHoldSucceeded_v1 struct {
	Header EventHeader `json:"header"`

	BookingID uuid.UUID `json:"booking_id"`
	HoldRef   string    `json:"hold_ref"`
}

func (e InventoryHoldSucceeded_v1) IsInternal() bool {
	return false
}

type InventoryHoldFailed_v1 struct {
	Header EventHeader `json:"header"`

	BookingID     uuid.UUID `json:"booking_id"`
	FailureReason string    `json:"failure_reason"`
}

func (e InventoryHoldFailed_v1) IsInternal() bool {
	return false
}

type InventoryConfirmed_v1 struct {
	Header EventHeader `json:"header"`

	BookingID uuid.UUID `json:"booking_id"`
}

func (e InventoryConfirmed_v1) IsInternal() bool {
	return false
}

type InventoryReleased_v1 struct {
	Header EventHeader `json:"header"`

	BookingID uuid.UUID `json:"booking_id"`
}

func (e InventoryReleased_v1) IsInternal() bool {
	return false
}

type PaymentCompleted_v1 struct {
	Header EventHeader `json:"header"`

	BookingID  uuid.UUID `json:"booking_id"`
	PaymentRef string    `json:"payment_ref"`
}

func (e PaymentCompleted_v1) IsInternal() bool {
	return false
}

type PaymentFailed_v1 struct {
	Header EventHeader `json:"header"`

	BookingID     uuid.UUID `json:"booking_id"`
	PaymentRef    string    `json:"payment_ref"`
	FailureReason string    `json:"failure_reason"`
}

func (e PaymentFailed_v1) IsInternal() bool {
	return false
}
