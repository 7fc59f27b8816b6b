package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"

	domain "bookings/internal/domain/bookings"
	"bookings/internal/entities"
)

type EventBus interface {
	Publish(ctx context.Context, event any) error
}

type BookingsRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	UpdateByID(
		ctx context.Context,
		id uuid.UUID,
		updateFn func(booking *domain.Booking) error,
	) (*domain.Booking, error)
}

type Deduplicator interface {
	MarkProcessed(ctx context.Context, handlerName, eventID string) (bool, error)
}

type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxEventBus publishes events through the transactional outbox bound to the
// transaction carried in ctx.
type TxEventBus interface {
	PublishInTx(ctx context.Context, events ...any) error
}

// TxCommandBus writes collaborator commands into the transactional outbox
// bound to the transaction carried in ctx.
type TxCommandBus interface {
	SendInTx(ctx context.Context, commands ...any) error
}

// errDiscardTrigger marks duplicate or conflicting deliveries that must be
// dropped without failing the handler.
var errDiscardTrigger = errors.New("trigger discarded")

// BookingSagaProcessManager owns the booking state machine. Every inbound
// trigger is deduplicated, applied under optimistic concurrency, and both the
// outbound events and the collaborator commands are written to the outbox in
// the same transaction as the booking mutation. A failure anywhere rolls the
// whole step back, so the dedup mark never outlives a command that was not
// durably recorded.
type BookingSagaProcessManager struct {
	eventBus     EventBus
	repo         BookingsRepository
	dedup        Deduplicator
	trManager    TransactionManager
	txEventBus   TxEventBus
	txCommandBus TxCommandBus
}

func NewBookingSagaProcessManager(
	eventBus EventBus,
	repo BookingsRepository,
	dedup Deduplicator,
	trManager TransactionManager,
	txEventBus TxEventBus,
	txCommandBus TxCommandBus,
) *BookingSagaProcessManager {
	return &BookingSagaProcessManager{
		eventBus:     eventBus,
		repo:         repo,
		dedup:        dedup,
		trManager:    trManager,
		txEventBus:   txEventBus,
		txCommandBus: txCommandBus,
	}
}

type stepResult struct {
	commands []any
	eventsFn func(b *domain.Booking) []any
}

func (pm *BookingSagaProcessManager) OnBookingRequested(ctx context.Context, event *entities.BookingRequested_v1) error {
	return pm.handle(ctx, "booking_saga.on_booking_requested", event.Header.Id, event.BookingID,
		func(b *domain.Booking) (*stepResult, error) {
			if err := b.RequestHold(); err != nil {
				return nil, err
			}

			return &stepResult{
				commands: []any{
					entities.HoldInventory{
						BookingID:      b.ID,
						HotelID:        b.HotelID,
						RoomSelections: b.RoomSelections,
						RequestID:      domain.RequestKey(b.ID, "holdInventory"),
					},
				},
				eventsFn: func(b *domain.Booking) []any {
					return []any{
						entities.BookingHoldRequested_v1{
							Header:    entities.NewEventHeader(),
							BookingID: b.ID,
							Status:    string(b.Status),
							Version:   b.Version,
						},
					}
				},
			}, nil
		})
}

func (pm *BookingSagaProcessManager) OnInventoryHoldSucceeded(ctx context.Context, event *entities.InventoryHoldSucceeded_v1) error {
	return pm.handle(ctx, "booking_saga.on_inventory_hold_succeeded", event.Header.Id, event.BookingID,
		func(b *domain.Booking) (*stepResult, error) {
			if err := b.ApplyHoldSucceeded(); err != nil {
				return nil, err
			}

			paymentRef := domain.PaymentRefFor(b.ID)
			if err := b.RequestPayment(paymentRef); err != nil {
				return nil, err
			}

			return &stepResult{
				commands: []any{
					entities.InitiatePayment{
						BookingID:  b.ID,
						PaymentRef: paymentRef,
						QuoteID:    b.QuoteID,
						RequestID:  domain.RequestKey(b.ID, "initiatePayment"),
					},
				},
			}, nil
		})
}

func (pm *BookingSagaProcessManager) OnInventoryHoldFailed(ctx context.Context, event *entities.InventoryHoldFailed_v1) error {
	return pm.handle(ctx, "booking_saga.on_inventory_hold_failed", event.Header.Id, event.BookingID,
		func(b *domain.Booking) (*stepResult, error) {
			// nothing was reserved, terminal without compensation
			if err := b.ApplyHoldFailed(); err != nil {
				return nil, err
			}

			reason := event.FailureReason
			return &stepResult{
				eventsFn: func(b *domain.Booking) []any {
					return []any{
						entities.BookingCancelled_v1{
							Header:      entities.NewEventHeader(),
							BookingID:   b.ID,
							Status:      string(b.Status),
							Version:     b.Version,
							Reason:      reason,
							CancelledAt: b.UpdatedAt,
						},
					}
				},
			}, nil
		})
}

func (pm *BookingSagaProcessManager) OnPaymentCompleted(ctx context.Context, event *entities.PaymentCompleted_v1) error {
	return pm.handle(ctx, "booking_saga.on_payment_completed", event.Header.Id, event.BookingID,
		func(b *domain.Booking) (*stepResult, error) {
			if b.Status.Terminal() {
				return nil, fmt.Errorf("%w: %s", domain.ErrTerminalState, b.Status)
			}
			if b.PaymentRef == nil || *b.PaymentRef != event.PaymentRef {
				return nil, fmt.Errorf("%w: got %q", domain.ErrPaymentRefMismatch, event.PaymentRef)
			}

			switch b.Status {
			case domain.StatusPaymentRequested:
				if err := b.ApplyPaymentCompleted(event.PaymentRef); err != nil {
					return nil, err
				}
				return &stepResult{
					commands: []any{
						entities.ConfirmInventory{
							BookingID: b.ID,
							RequestID: domain.RequestKey(b.ID, "confirmInventory"),
						},
					},
				}, nil

			case domain.StatusPaymentFailed, domain.StatusCompensating:
				// The failure branch already won for this payment ref; the
				// outcome must not flip, but the captured money has to go back.
				entry, added := b.RecordCompensation(domain.StepRefundPayment, time.Now().UTC())
				if !added {
					return nil, errDiscardTrigger
				}
				return &stepResult{
					commands: []any{
						entities.RefundPayment{
							BookingID:  b.ID,
							PaymentRef: event.PaymentRef,
							RequestID:  entry.IdempotencyKey,
						},
					},
				}, nil

			default:
				// success already applied
				return nil, errDiscardTrigger
			}
		})
}

func (pm *BookingSagaProcessManager) OnPaymentFailed(ctx context.Context, event *entities.PaymentFailed_v1) error {
	return pm.handle(ctx, "booking_saga.on_payment_failed", event.Header.Id, event.BookingID,
		func(b *domain.Booking) (*stepResult, error) {
			if b.Status.Terminal() {
				return nil, fmt.Errorf("%w: %s", domain.ErrTerminalState, b.Status)
			}
			if b.PaymentRef == nil || *b.PaymentRef != event.PaymentRef {
				return nil, fmt.Errorf("%w: got %q", domain.ErrPaymentRefMismatch, event.PaymentRef)
			}

			switch b.Status {
			case domain.StatusPaymentRequested:
				if err := b.ApplyPaymentFailed(event.PaymentRef); err != nil {
					return nil, err
				}
				if err := b.BeginCompensation(); err != nil {
					return nil, err
				}

			case domain.StatusPaymentFailed, domain.StatusCompensating:
				// redelivered failure, compensation may still need issuing

			case domain.StatusPaymentConfirmed:
				// the success branch already won for this payment ref
				return nil, errDiscardTrigger

			default:
				return nil, fmt.Errorf("%w: payment failed in %s", domain.ErrInvalidTransition, b.Status)
			}

			entry, added := b.RecordCompensation(domain.StepReleaseInventory, time.Now().UTC())
			if !added {
				return nil, errDiscardTrigger
			}

			return &stepResult{
				commands: []any{
					entities.ReleaseInventory{
						BookingID: b.ID,
						RequestID: entry.IdempotencyKey,
					},
				},
			}, nil
		})
}

func (pm *BookingSagaProcessManager) OnInventoryConfirmed(ctx context.Context, event *entities.InventoryConfirmed_v1) error {
	return pm.handle(ctx, "booking_saga.on_inventory_confirmed", event.Header.Id, event.BookingID,
		func(b *domain.Booking) (*stepResult, error) {
			if err := b.ApplyInventoryConfirmed(); err != nil {
				return nil, err
			}

			return &stepResult{
				eventsFn: func(b *domain.Booking) []any {
					return []any{
						entities.BookingConfirmed_v1{
							Header:      entities.NewEventHeader(),
							BookingID:   b.ID,
							Status:      string(b.Status),
							Version:     b.Version,
							ConfirmedAt: b.UpdatedAt,
						},
					}
				},
			}, nil
		})
}

func (pm *BookingSagaProcessManager) OnInventoryReleased(ctx context.Context, event *entities.InventoryReleased_v1) error {
	return pm.handle(ctx, "booking_saga.on_inventory_released", event.Header.Id, event.BookingID,
		func(b *domain.Booking) (*stepResult, error) {
			if err := b.ApplyInventoryReleased(); err != nil {
				return nil, err
			}

			return &stepResult{
				eventsFn: func(b *domain.Booking) []any {
					return []any{
						entities.BookingCancelled_v1{
							Header:      entities.NewEventHeader(),
							BookingID:   b.ID,
							Status:      string(b.Status),
							Version:     b.Version,
							Reason:      "payment failed, hold released",
							CancelledAt: b.UpdatedAt,
						},
					}
				},
			}, nil
		})
}

func (pm *BookingSagaProcessManager) handle(
	ctx context.Context,
	handlerName string,
	eventID string,
	bookingID uuid.UUID,
	step func(b *domain.Booking) (*stepResult, error),
) error {
	err := pm.trManager.Do(ctx, func(ctx context.Context) error {
		fresh, err := pm.dedup.MarkProcessed(ctx, handlerName, eventID)
		if err != nil {
			return err
		}
		if !fresh {
			log.FromContext(ctx).
				WithField("handler", handlerName).
				WithField("event_id", eventID).
				Info("Duplicate delivery, skipping")
			return nil
		}

		var res *stepResult
		booking, err := pm.repo.UpdateByID(ctx, bookingID, func(b *domain.Booking) error {
			r, err := step(b)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
		if err != nil {
			return err
		}

		if res == nil {
			return nil
		}

		if res.eventsFn != nil {
			if err := pm.txEventBus.PublishInTx(ctx, res.eventsFn(booking)...); err != nil {
				return err
			}
		}

		if len(res.commands) > 0 {
			if err := pm.txCommandBus.SendInTx(ctx, res.commands...); err != nil {
				return fmt.Errorf("%s: sending commands: %w", handlerName, err)
			}
		}

		return nil
	})

	if err != nil {
		return pm.mapStepError(ctx, handlerName, bookingID, err)
	}

	return nil
}

// mapStepError sorts trigger failures into drop-and-log versus retry. Only
// infrastructure errors propagate to the router.
func (pm *BookingSagaProcessManager) mapStepError(ctx context.Context, handlerName string, bookingID uuid.UUID, err error) error {
	switch {
	case errors.Is(err, errDiscardTrigger):
		log.FromContext(ctx).
			WithField("handler", handlerName).
			WithField("booking_id", bookingID.String()).
			Info("Conflicting or duplicate trigger discarded")
		return nil

	case errors.Is(err, domain.ErrTerminalState):
		log.FromContext(ctx).
			WithField("handler", handlerName).
			WithField("booking_id", bookingID.String()).
			Info("Trigger for terminal booking, re-emitting terminal event")
		return pm.reEmitTerminal(ctx, bookingID)

	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrPaymentRefMismatch):
		log.FromContext(ctx).
			WithField("handler", handlerName).
			WithField("booking_id", bookingID.String()).
			WithField("error", err).
			Warn("Out-of-order or conflicting trigger discarded")
		return nil
	}

	return err
}

// reEmitTerminal republishes the terminal event so at-least-once consumers
// downstream can catch up. No booking mutation happens here, so the event
// goes straight to the bus instead of the outbox.
func (pm *BookingSagaProcessManager) reEmitTerminal(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := pm.repo.Get(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("re-emit terminal: get booking: %w", err)
	}

	switch booking.Status {
	case domain.StatusConfirmed:
		return pm.eventBus.Publish(ctx, entities.BookingConfirmed_v1{
			Header:      entities.NewEventHeader(),
			BookingID:   booking.ID,
			Status:      string(booking.Status),
			Version:     booking.Version,
			ConfirmedAt: booking.UpdatedAt,
		})

	case domain.StatusHoldFailed, domain.StatusCancelled:
		return pm.eventBus.Publish(ctx, entities.BookingCancelled_v1{
			Header:      entities.NewEventHeader(),
			BookingID:   booking.ID,
			Status:      string(booking.Status),
			Version:     booking.Version,
			Reason:      "terminal state re-emitted",
			CancelledAt: booking.UpdatedAt,
		})
	}

	return nil
}
