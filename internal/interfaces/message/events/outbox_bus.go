package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"

	"bookings/internal/outbox"
)

// OutboxEventBus publishes events into the transactional outbox, using the
// sqlx transaction that the transaction manager put into ctx. Events become
// visible on the broker only after the transaction commits and the forwarder
// relays them.
type OutboxEventBus struct {
	trGetter        *trmsqlx.CtxGetter
	watermillLogger watermill.LoggerAdapter
}

func NewOutboxEventBus(
	trGetter *trmsqlx.CtxGetter,
	watermillLogger watermill.LoggerAdapter,
) *OutboxEventBus {
	return &OutboxEventBus{
		trGetter:        trGetter,
		watermillLogger: watermillLogger,
	}
}

func (p *OutboxEventBus) PublishInTx(ctx context.Context, events ...any) error {
	tr := p.trGetter.DefaultTrOrDB(ctx, nil)
	if tr == nil {
		return fmt.Errorf("failed to get transaction from context")
	}

	publisher, err := outbox.NewPublisher(tr, p.watermillLogger)
	if err != nil {
		return fmt.Errorf("failed to create outbox publisher: %w", err)
	}

	eb, err := NewEventBus(publisher, p.watermillLogger)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}

	for _, e := range events {
		if err := eb.Publish(ctx, e); err != nil {
			return fmt.Errorf("failed to publish %T: %w", e, err)
		}
	}

	return nil
}
