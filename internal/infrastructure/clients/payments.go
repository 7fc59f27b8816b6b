package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

var ErrPaymentDeclined = fmt.Errorf("payment declined")

type PaymentsClient struct {
	httpClient
}

func NewPaymentsClient(baseURL string, timeout time.Duration) PaymentsClient {
	return PaymentsClient{newHTTPClient(baseURL, timeout)}
}

type InitiatePaymentRequest struct {
	BookingID   uuid.UUID `json:"booking_id"`
	PaymentRef  string    `json:"payment_ref"`
	PriceAmount string    `json:"price_amount"`
	Currency    string    `json:"currency"`
	RequestID   string    `json:"request_id"`
}

func (c PaymentsClient) InitiatePayment(ctx context.Context, request *InitiatePaymentRequest) error {
	status, err := c.post(ctx, "/payments", request.RequestID, request, nil)
	if err != nil {
		return err
	}

	if status == http.StatusPaymentRequired {
		return ErrPaymentDeclined
	}
	if status != http.StatusAccepted && status != http.StatusOK {
		return fmt.Errorf("unexpected status initiating payment: %d", status)
	}
	return nil
}

func (c PaymentsClient) Refund(ctx context.Context, paymentRef, idempotencyKey string) error {
	body := map[string]string{
		"payment_ref": paymentRef,
		"reason":      "booking compensation",
	}

	status, err := c.post(ctx, "/refunds", idempotencyKey, body, nil)
	if err != nil {
		return fmt.Errorf("error refunding payment: %w", err)
	}

	if status != http.StatusOK {
		return fmt.Errorf("error refunding payment: status %d", status)
	}
	return nil
}
