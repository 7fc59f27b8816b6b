package timeouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domain "bookings/internal/domain/bookings"
	"bookings/internal/entities"
)

type BookingsRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	FindStale(
		ctx context.Context,
		status domain.Status,
		olderThan time.Time,
		limit int,
	) ([]uuid.UUID, error)
}

type EventBus interface {
	Publish(ctx context.Context, event any) error
}

const sweepBatchSize = 100

// Watchdog resolves bookings stuck in a *Requested state past the configured
// deadline by publishing the corresponding failure event. The saga then runs
// its normal failure branch, so a timed-out step compensates exactly like an
// explicitly failed one.
type Watchdog struct {
	repo            BookingsRepo
	eventBus        EventBus
	holdDeadline    time.Duration
	paymentDeadline time.Duration
	pollInterval    time.Duration
	logger          zerolog.Logger
}

func NewWatchdog(
	repo BookingsRepo,
	eventBus EventBus,
	holdDeadline time.Duration,
	paymentDeadline time.Duration,
	pollInterval time.Duration,
	logger zerolog.Logger,
) *Watchdog {
	return &Watchdog{
		repo:            repo,
		eventBus:        eventBus,
		holdDeadline:    holdDeadline,
		paymentDeadline: paymentDeadline,
		pollInterval:    pollInterval,
		logger:          logger,
	}
}

func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Err(err).Msg("watchdog sweep failed")
			}
		}
	}
}

func (w *Watchdog) Sweep(ctx context.Context) error {
	now := time.Now().UTC()

	if err := w.sweepHolds(ctx, now); err != nil {
		return err
	}
	return w.sweepPayments(ctx, now)
}

func (w *Watchdog) sweepHolds(ctx context.Context, now time.Time) error {
	ids, err := w.repo.FindStale(ctx, domain.StatusHoldRequested, now.Add(-w.holdDeadline), sweepBatchSize)
	if err != nil {
		return err
	}

	for _, id := range ids {
		w.logger.Info().
			Str("booking_id", id.String()).
			Msg("inventory hold timed out")

		err := w.eventBus.Publish(ctx, entities.InventoryHoldFailed_v1{
			Header:        entities.NewEventHeader(),
			BookingID:     id,
			FailureReason: "inventory hold timed out",
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (w *Watchdog) sweepPayments(ctx context.Context, now time.Time) error {
	ids, err := w.repo.FindStale(ctx, domain.StatusPaymentRequested, now.Add(-w.paymentDeadline), sweepBatchSize)
	if err != nil {
		return err
	}

	for _, id := range ids {
		booking, err := w.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if booking.PaymentRef == nil {
			// cannot happen for PaymentRequested, but don't synthesize a ref
			continue
		}

		w.logger.Info().
			Str("booking_id", id.String()).
			Msg("payment timed out")

		err = w.eventBus.Publish(ctx, entities.PaymentFailed_v1{
			Header:        entities.NewEventHeader(),
			BookingID:     id,
			PaymentRef:    *booking.PaymentRef,
			FailureReason: "payment timed out",
		})
		if err != nil {
			return err
		}
	}

	return nil
}
