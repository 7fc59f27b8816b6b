package commands

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"

	"bookings/internal/outbox"
)

// OutboxCommandBus writes commands into the transactional outbox, using the
// sqlx transaction that the transaction manager put into ctx. The forwarder
// envelope keeps the per-command destination topic, so commands reach
// "commands.<Name>" only after the transaction commits. A booking step and
// the commands it triggers are therefore durable together.
type OutboxCommandBus struct {
	trGetter        *trmsqlx.CtxGetter
	watermillLogger watermill.LoggerAdapter
}

func NewOutboxCommandBus(
	trGetter *trmsqlx.CtxGetter,
	watermillLogger watermill.LoggerAdapter,
) *OutboxCommandBus {
	return &OutboxCommandBus{
		trGetter:        trGetter,
		watermillLogger: watermillLogger,
	}
}

func (b *OutboxCommandBus) SendInTx(ctx context.Context, commands ...any) error {
	tr := b.trGetter.DefaultTrOrDB(ctx, nil)
	if tr == nil {
		return fmt.Errorf("failed to get transaction from context")
	}

	publisher, err := outbox.NewPublisher(tr, b.watermillLogger)
	if err != nil {
		return fmt.Errorf("failed to create outbox publisher: %w", err)
	}

	cb, err := NewCommandBus(publisher, b.watermillLogger)
	if err != nil {
		return fmt.Errorf("failed to create command bus: %w", err)
	}

	for _, c := range commands {
		if err := cb.Send(ctx, c); err != nil {
			return fmt.Errorf("failed to send %T: %w", c, err)
		}
	}

	return nil
}
