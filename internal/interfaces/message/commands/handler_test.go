package commands_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookings/internal/entities"
	"bookings/internal/infrastructure/clients"
	"bookings/internal/interfaces/message/commands"
	"bookings/internal/interfaces/message/events"
	"bookings/internal/repository"
)

type capturedMessage struct {
	topic string
	name  string
	msg   *message.Message
}

type capturingPublisher struct {
	published []capturedMessage
}

func (p *capturingPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		p.published = append(p.published, capturedMessage{
			topic: topic,
			name:  events.Marshaler().NameFromMessage(msg),
			msg:   msg,
		})
	}
	return nil
}

func (p *capturingPublisher) Close() error {
	return nil
}

type fakeInventory struct {
	holdResp *clients.HoldRoomsResponse
	holdErr  error

	released  []string
	confirmed []string
}

func (c *fakeInventory) HoldRooms(_ context.Context, _ *clients.HoldRoomsRequest) (*clients.HoldRoomsResponse, error) {
	return c.holdResp, c.holdErr
}

func (c *fakeInventory) ReleaseHold(_ context.Context, _ uuid.UUID, requestID string) error {
	c.released = append(c.released, requestID)
	return nil
}

func (c *fakeInventory) ConfirmHold(_ context.Context, _ uuid.UUID, requestID string) error {
	c.confirmed = append(c.confirmed, requestID)
	return nil
}

type fakePayments struct {
	initiateErr error

	initiated []*clients.InitiatePaymentRequest
	refunded  []string
}

func (c *fakePayments) InitiatePayment(_ context.Context, request *clients.InitiatePaymentRequest) error {
	if c.initiateErr != nil {
		return c.initiateErr
	}
	c.initiated = append(c.initiated, request)
	return nil
}

func (c *fakePayments) Refund(_ context.Context, paymentRef, _ string) error {
	c.refunded = append(c.refunded, paymentRef)
	return nil
}

type fakeQuotes struct {
	quote entities.Quote
	err   error
}

func (r *fakeQuotes) Get(_ context.Context, _ string) (entities.Quote, error) {
	return r.quote, r.err
}

type handlerFixture struct {
	handler   *commands.Handler
	publisher *capturingPublisher
	inventory *fakeInventory
	payments  *fakePayments
	quotes    *fakeQuotes
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := &handlerFixture{
		publisher: &capturingPublisher{},
		inventory: &fakeInventory{},
		payments:  &fakePayments{},
		quotes: &fakeQuotes{
			quote: entities.Quote{
				QuoteID:     "quote-1",
				PriceAmount: "120.00",
				Currency:    "EUR",
				ExpiresAt:   time.Now().UTC().Add(time.Hour),
			},
		},
	}

	eb, err := events.NewEventBus(f.publisher, watermill.NopLogger{})
	require.NoError(t, err)

	f.handler = commands.NewHandler(eb, f.inventory, f.payments, f.quotes)
	return f
}

func (f *handlerFixture) requireSingleEvent(t *testing.T, name string) *message.Message {
	t.Helper()

	require.Len(t, f.publisher.published, 1)
	captured := f.publisher.published[0]
	assert.Equal(t, "events", captured.topic)
	require.Equal(t, name, captured.name)
	return captured.msg
}

func TestHoldInventorySuccess(t *testing.T) {
	f := newHandlerFixture(t)
	f.inventory.holdResp = &clients.HoldRoomsResponse{HoldRef: "hold-42"}

	bookingID := uuid.New()
	err := f.handler.HoldInventoryHandler().Handle(context.Background(), &entities.HoldInventory{
		BookingID: bookingID,
		HotelID:   uuid.New(),
		RoomSelections: []entities.RoomSelection{
			{RoomTypeID: uuid.New(), Quantity: 1},
		},
		RequestID: bookingID.String() + ":holdInventory",
	})
	require.NoError(t, err)

	msg := f.requireSingleEvent(t, "InventoryHoldSucceeded_v1")

	var event entities.InventoryHoldSucceeded_v1
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, bookingID, event.BookingID)
	assert.Equal(t, "hold-42", event.HoldRef)
}

func TestHoldInventoryNoAvailability(t *testing.T) {
	f := newHandlerFixture(t)
	f.inventory.holdErr = clients.ErrNoAvailability

	bookingID := uuid.New()
	err := f.handler.HoldInventoryHandler().Handle(context.Background(), &entities.HoldInventory{
		BookingID: bookingID,
		HotelID:   uuid.New(),
		RoomSelections: []entities.RoomSelection{
			{RoomTypeID: uuid.New(), Quantity: 1},
		},
	})
	// definitive failure becomes an event, not a handler error
	require.NoError(t, err)

	msg := f.requireSingleEvent(t, "InventoryHoldFailed_v1")

	var event entities.InventoryHoldFailed_v1
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, bookingID, event.BookingID)
	assert.NotEmpty(t, event.FailureReason)
}

func TestHoldInventoryTransientErrorPropagates(t *testing.T) {
	f := newHandlerFixture(t)
	f.inventory.holdErr = assert.AnError

	err := f.handler.HoldInventoryHandler().Handle(context.Background(), &entities.HoldInventory{
		BookingID: uuid.New(),
		HotelID:   uuid.New(),
		RoomSelections: []entities.RoomSelection{
			{RoomTypeID: uuid.New(), Quantity: 1},
		},
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, f.publisher.published)
}

func TestInitiatePaymentUsesQuotePrice(t *testing.T) {
	f := newHandlerFixture(t)

	bookingID := uuid.New()
	err := f.handler.InitiatePaymentHandler().Handle(context.Background(), &entities.InitiatePayment{
		BookingID:  bookingID,
		PaymentRef: "pay-" + bookingID.String(),
		QuoteID:    "quote-1",
		RequestID:  bookingID.String() + ":initiatePayment",
	})
	require.NoError(t, err)

	// outcome arrives asynchronously, nothing published here
	assert.Empty(t, f.publisher.published)

	require.Len(t, f.payments.initiated, 1)
	assert.Equal(t, "120.00", f.payments.initiated[0].PriceAmount)
	assert.Equal(t, "EUR", f.payments.initiated[0].Currency)
	assert.Equal(t, "pay-"+bookingID.String(), f.payments.initiated[0].PaymentRef)
}

func TestInitiatePaymentQuoteGone(t *testing.T) {
	f := newHandlerFixture(t)
	f.quotes.err = repository.ErrQuoteNotFound

	bookingID := uuid.New()
	err := f.handler.InitiatePaymentHandler().Handle(context.Background(), &entities.InitiatePayment{
		BookingID:  bookingID,
		PaymentRef: "pay-" + bookingID.String(),
		QuoteID:    "quote-1",
	})
	require.NoError(t, err)

	msg := f.requireSingleEvent(t, "PaymentFailed_v1")

	var event entities.PaymentFailed_v1
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, bookingID, event.BookingID)
	assert.Equal(t, "pay-"+bookingID.String(), event.PaymentRef)
	assert.Equal(t, "quote expired before payment", event.FailureReason)
}

func TestInitiatePaymentQuoteExpired(t *testing.T) {
	f := newHandlerFixture(t)
	f.quotes.quote.ExpiresAt = time.Now().UTC().Add(-time.Minute)

	err := f.handler.InitiatePaymentHandler().Handle(context.Background(), &entities.InitiatePayment{
		BookingID:  uuid.New(),
		PaymentRef: "pay-x",
		QuoteID:    "quote-1",
	})
	require.NoError(t, err)

	f.requireSingleEvent(t, "PaymentFailed_v1")
	assert.Empty(t, f.payments.initiated)
}

func TestInitiatePaymentDeclined(t *testing.T) {
	f := newHandlerFixture(t)
	f.payments.initiateErr = clients.ErrPaymentDeclined

	err := f.handler.InitiatePaymentHandler().Handle(context.Background(), &entities.InitiatePayment{
		BookingID:  uuid.New(),
		PaymentRef: "pay-x",
		QuoteID:    "quote-1",
	})
	require.NoError(t, err)

	f.requireSingleEvent(t, "PaymentFailed_v1")
}

func TestReleaseInventoryPublishesReleased(t *testing.T) {
	f := newHandlerFixture(t)

	bookingID := uuid.New()
	requestID := bookingID.String() + ":releaseInventory"
	err := f.handler.ReleaseInventoryHandler().Handle(context.Background(), &entities.ReleaseInventory{
		BookingID: bookingID,
		RequestID: requestID,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{requestID}, f.inventory.released)

	msg := f.requireSingleEvent(t, "InventoryReleased_v1")

	var event entities.InventoryReleased_v1
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, bookingID, event.BookingID)
}

func TestConfirmInventoryPublishesConfirmed(t *testing.T) {
	f := newHandlerFixture(t)

	bookingID := uuid.New()
	err := f.handler.ConfirmInventoryHandler().Handle(context.Background(), &entities.ConfirmInventory{
		BookingID: bookingID,
		RequestID: bookingID.String() + ":confirmInventory",
	})
	require.NoError(t, err)

	require.Len(t, f.inventory.confirmed, 1)
	f.requireSingleEvent(t, "InventoryConfirmed_v1")
}

func TestRefundPayment(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.handler.RefundPaymentHandler().Handle(context.Background(), &entities.RefundPayment{
		BookingID:  uuid.New(),
		PaymentRef: "pay-x",
		RequestID:  "key",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"pay-x"}, f.payments.refunded)
	assert.Empty(t, f.publisher.published)
}
