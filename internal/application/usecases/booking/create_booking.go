package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trm "github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/settings"
	"github.com/google/uuid"
	"github.com/lib/pq"

	domain "bookings/internal/domain/bookings"
	"bookings/internal/entities"
	"bookings/internal/repository"
)

// ErrRequestInFlight is returned for a duplicate whose first request has not
// finished yet; the caller should retry shortly.
var ErrRequestInFlight = errors.New("request with this idempotency key is in flight")

type BookingsRepo interface {
	Add(ctx context.Context, booking *domain.Booking) error
}

type QuotesRepo interface {
	Get(ctx context.Context, quoteID string) (entities.Quote, error)
}

type IdempotencyStore interface {
	CheckOrReserve(ctx context.Context, scope, key string) (repository.CheckResult, error)
	Complete(ctx context.Context, scope, key string, result any) error
}

type TransactionManager interface {
	DoWithSettings(ctx context.Context, s trm.Settings, fn func(ctx context.Context) error) error
}

// TxEventBus publishes events through the transactional outbox bound to the
// transaction carried in ctx.
type TxEventBus interface {
	PublishInTx(ctx context.Context, events ...any) error
}

type CreateBookingUsecase struct {
	bookingsRepo BookingsRepo
	quotesRepo   QuotesRepo
	idempotency  IdempotencyStore
	trManager    TransactionManager
	txEventBus   TxEventBus
}

func NewCreateBookingUsecase(
	bookingsRepo BookingsRepo,
	quotesRepo QuotesRepo,
	idempotency IdempotencyStore,
	trManager TransactionManager,
	txEventBus TxEventBus,
) *CreateBookingUsecase {
	return &CreateBookingUsecase{
		bookingsRepo: bookingsRepo,
		quotesRepo:   quotesRepo,
		idempotency:  idempotency,
		trManager:    trManager,
		txEventBus:   txEventBus,
	}
}

type CreateBookingReq struct {
	HotelID        uuid.UUID
	RoomSelections []entities.RoomSelection
	QuoteID        string
	IdempotencyKey string
}

type CreateBookingRes struct {
	BookingID uuid.UUID `json:"booking_id"`
	Status    string    `json:"status"`
}

func WithRetry(attempts int, f func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var lastErr error
		for i := 0; i < attempts; i++ {
			err := f(ctx)
			if err == nil {
				return nil
			}

			pgErr := &pq.Error{}
			if errors.As(err, &pgErr); pgErr.Code == "40001" {
				log.FromContext(ctx).Info("serialization failure, retrying, attempt ", i+1)
				lastErr = err
				continue
			}

			return err
		}
		return lastErr
	}
}

// CreateBooking validates the quote, persists the Draft booking and its
// booking.requested event atomically, and completes the idempotency record.
// A repeated call with the same idempotency key returns the stored result
// without touching anything.
func (u *CreateBookingUsecase) CreateBooking(ctx context.Context, req CreateBookingReq) (*CreateBookingRes, error) {
	quote, err := u.quotesRepo.Get(ctx, req.QuoteID)
	if err != nil {
		if errors.Is(err, repository.ErrQuoteNotFound) {
			return nil, fmt.Errorf("%w: quote %s", domain.ErrQuoteExpired, req.QuoteID)
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	if quote.Expired(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: quote %s", domain.ErrQuoteExpired, req.QuoteID)
	}

	booking, err := domain.NewBooking(
		uuid.New(),
		req.HotelID,
		req.RoomSelections,
		req.QuoteID,
		req.IdempotencyKey,
	)
	if err != nil {
		return nil, err
	}

	var res *CreateBookingRes

	err = u.trManager.DoWithSettings(
		ctx,
		trmsql.MustSettings(
			settings.Must(settings.WithCancelable(true)),
			trmsql.WithTxOptions(&sql.TxOptions{Isolation: sql.LevelSerializable}),
		),
		WithRetry(3, func(ctx context.Context) error {
			check, err := u.idempotency.CheckOrReserve(ctx, repository.ScopeCreateBooking, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("failed to check idempotency key: %w", err)
			}
			if !check.Fresh {
				if check.StoredResult == nil {
					return ErrRequestInFlight
				}

				var stored CreateBookingRes
				if err := json.Unmarshal(check.StoredResult, &stored); err != nil {
					return fmt.Errorf("failed to unmarshal stored result: %w", err)
				}

				log.FromContext(ctx).
					WithField("booking_id", stored.BookingID.String()).
					Info("Duplicate createBooking, returning stored result")
				res = &stored
				return nil
			}

			if err := u.bookingsRepo.Add(ctx, booking); err != nil {
				return fmt.Errorf("failed to create booking: %w", err)
			}

			err = u.txEventBus.PublishInTx(ctx, entities.BookingRequested_v1{
				Header:    entities.NewEventHeader(),
				BookingID: booking.ID,
				HotelID:   booking.HotelID,
				QuoteID:   booking.QuoteID,
				Status:    string(booking.Status),
				Version:   booking.Version,
			})
			if err != nil {
				return fmt.Errorf("failed to publish booking requested: %w", err)
			}

			res = &CreateBookingRes{
				BookingID: booking.ID,
				Status:    string(booking.Status),
			}
			return u.idempotency.Complete(ctx, repository.ScopeCreateBooking, req.IdempotencyKey, res)
		}),
	)
	if err != nil {
		return nil, err
	}

	return res, nil
}
