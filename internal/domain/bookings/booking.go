package bookings

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookings/internal/entities"
)

type Status string

const (
	StatusDraft            Status = "draft"
	StatusHoldRequested    Status = "hold_requested"
	StatusHoldConfirmed    Status = "hold_confirmed"
	StatusPaymentRequested Status = "payment_requested"
	StatusPaymentConfirmed Status = "payment_confirmed"
	StatusConfirmed        Status = "confirmed"
	StatusHoldFailed       Status = "hold_failed"
	StatusPaymentFailed    Status = "payment_failed"
	StatusCompensating     Status = "compensating"
	StatusCancelled        Status = "cancelled"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusHoldFailed, StatusCancelled:
		return true
	}
	return false
}

// Compensation step names. Also used to derive the idempotency key of the
// compensating collaborator call.
const (
	StepReleaseInventory = "releaseInventory"
	StepRefundPayment    = "refundPayment"
)

type CompensationEntry struct {
	Step           string    `json:"step"`
	IdempotencyKey string    `json:"idempotency_key"`
	RequestedAt    time.Time `json:"requested_at"`
}

// Booking is the saga state. Only this service mutates it, always through the
// version-checked read-modify-write path in the repository.
type Booking struct {
	ID              uuid.UUID                `json:"id"`
	HotelID         uuid.UUID                `json:"hotel_id"`
	RoomSelections  []entities.RoomSelection `json:"room_selections"`
	QuoteID         string                   `json:"quote_id"`
	PaymentRef      *string                  `json:"payment_ref"`
	IdempotencyKey  string                   `json:"idempotency_key"`
	Status          Status                   `json:"status"`
	Version         int                      `json:"version"`
	CompensationLog []CompensationEntry      `json:"compensation_log"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

func NewBooking(
	id uuid.UUID,
	hotelID uuid.UUID,
	roomSelections []entities.RoomSelection,
	quoteID string,
	idempotencyKey string,
) (*Booking, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: booking id must be set", ErrValidation)
	}
	if hotelID == uuid.Nil {
		return nil, fmt.Errorf("%w: hotel id must be set", ErrValidation)
	}
	if len(roomSelections) == 0 {
		return nil, fmt.Errorf("%w: at least one room selection required", ErrValidation)
	}
	for _, rs := range roomSelections {
		if rs.RoomTypeID == uuid.Nil || rs.Quantity <= 0 {
			return nil, fmt.Errorf("%w: malformed room selection", ErrValidation)
		}
	}
	if quoteID == "" {
		return nil, fmt.Errorf("%w: quote id must be set", ErrValidation)
	}
	if idempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key must be set", ErrValidation)
	}

	now := time.Now().UTC()
	return &Booking{
		ID:             id,
		HotelID:        hotelID,
		RoomSelections: roomSelections,
		QuoteID:        quoteID,
		IdempotencyKey: idempotencyKey,
		Status:         StatusDraft,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (b *Booking) transition(from, to Status) error {
	if b.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, b.Status)
	}
	if b.Status != from {
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrInvalidTransition, from, to, b.Status)
	}
	b.Status = to
	return nil
}

func (b *Booking) RequestHold() error {
	return b.transition(StatusDraft, StatusHoldRequested)
}

func (b *Booking) ApplyHoldSucceeded() error {
	return b.transition(StatusHoldRequested, StatusHoldConfirmed)
}

func (b *Booking) ApplyHoldFailed() error {
	return b.transition(StatusHoldRequested, StatusHoldFailed)
}

// RequestPayment issues the payment reference for this booking. Payment
// outcome events must carry it back.
func (b *Booking) RequestPayment(paymentRef string) error {
	if err := b.transition(StatusHoldConfirmed, StatusPaymentRequested); err != nil {
		return err
	}
	b.PaymentRef = &paymentRef
	return nil
}

func (b *Booking) ApplyPaymentCompleted(paymentRef string) error {
	if err := b.matchPaymentRef(paymentRef); err != nil {
		return err
	}
	return b.transition(StatusPaymentRequested, StatusPaymentConfirmed)
}

func (b *Booking) ApplyPaymentFailed(paymentRef string) error {
	if err := b.matchPaymentRef(paymentRef); err != nil {
		return err
	}
	return b.transition(StatusPaymentRequested, StatusPaymentFailed)
}

func (b *Booking) BeginCompensation() error {
	return b.transition(StatusPaymentFailed, StatusCompensating)
}

func (b *Booking) ApplyInventoryConfirmed() error {
	return b.transition(StatusPaymentConfirmed, StatusConfirmed)
}

func (b *Booking) ApplyInventoryReleased() error {
	return b.transition(StatusCompensating, StatusCancelled)
}

func (b *Booking) matchPaymentRef(paymentRef string) error {
	if b.PaymentRef == nil || *b.PaymentRef != paymentRef {
		return fmt.Errorf("%w: got %q", ErrPaymentRefMismatch, paymentRef)
	}
	return nil
}

// PaymentOutcomeRecorded reports whether a success or failure branch was
// already taken for the issued payment. Once true, the outcome must not flip.
func (b *Booking) PaymentOutcomeRecorded() bool {
	if b.PaymentRef == nil {
		return false
	}
	switch b.Status {
	case StatusPaymentConfirmed, StatusConfirmed,
		StatusPaymentFailed, StatusCompensating, StatusCancelled:
		return true
	}
	return false
}

// RecordCompensation appends a compensation entry for the step, at most once.
// The returned key is derived from the booking id and the step name, so a
// re-issued compensating call hits the collaborator with the same
// idempotency key.
func (b *Booking) RecordCompensation(step string, now time.Time) (CompensationEntry, bool) {
	for _, e := range b.CompensationLog {
		if e.Step == step {
			return e, false
		}
	}

	entry := CompensationEntry{
		Step:           step,
		IdempotencyKey: CompensationKey(b.ID, step),
		RequestedAt:    now,
	}
	b.CompensationLog = append(b.CompensationLog, entry)
	return entry, true
}

func CompensationKey(bookingID uuid.UUID, step string) string {
	return bookingID.String() + ":" + step
}

// RequestKey derives the idempotency key of a forward collaborator call.
func RequestKey(bookingID uuid.UUID, step string) string {
	return bookingID.String() + ":" + step
}

// PaymentRefFor derives the payment reference issued for a booking. Stable
// across saga retries so duplicated InitiatePayment commands stay idempotent
// on the payment side.
func PaymentRefFor(bookingID uuid.UUID) string {
	return "pay-" + bookingID.String()
}
