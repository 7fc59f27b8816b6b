package entities

import "github.com/google/uuid"

// Commands sent to the collaborator-facing handlers. RequestID doubles as the
// idempotency key of the collaborator call, so a redelivered command cannot
// hold or charge twice.

type HoldInventory struct {
	BookingID      uuid.UUID       `json:"booking_id"`
	HotelID        uuid.UUID       `json:"hotel_id"`
	RoomSelections []RoomSelection `json:"room_selections"`
	RequestID      string          `json:"request_id"`
}

type ReleaseInventory struct {
	BookingID uuid.UUID `json:"booking_id"`
	RequestID string    `json:"request_id"`
}

type ConfirmInventory struct {
	BookingID uuid.UUID `json:"booking_id"`
	RequestID string    `json:"request_id"`
}

type InitiatePayment struct {
	BookingID  uuid.UUID `json:"booking_id"`
	PaymentRef string    `json:"payment_ref"`
	QuoteID    string    `json:"quote_id"`
	RequestID  string    `json:"request_id"`
}

type RefundPayment struct {
	BookingID  uuid.UUID `json:"booking_id"`
	PaymentRef string    `json:"payment_ref"`
	RequestID  string    `json:"request_id"`
}

type RoomSelection struct {
	RoomTypeID uuid.UUID `json:"room_type_id"`
	Quantity   int       `json:"quantity"`
	DateFrom   string    `json:"date_from"`
	DateTo     string    `json:"date_to"`
}
