// Package paymentprovider открывает сессии оплаты в Stripe Checkout и разбирает вебхуки Stripe.
package paymentprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// ErrInvalidSignature подпись вебхука не прошла проверку.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// EventKind вид события оплаты, который нас интересует.
type EventKind string

const (
	EventPaymentSucceeded EventKind = "payment_succeeded"
	EventPaymentFailed    EventKind = "payment_failed"
	EventIgnored          EventKind = "ignored"
)

// CheckoutRequest данные для открытия сессии оплаты.
type CheckoutRequest struct {
	PaymentID   string
	Description string
	AmountPence int64
	Currency    string
	Email       string
}

// CheckoutSession открытая сессия оплаты.
type CheckoutSession struct {
	ID  string
	URL string
}

// Event разобранное событие вебхука.
type Event struct {
	ID        string
	Type      string
	Kind      EventKind
	PaymentID string
	SessionID string
}

// Provider платёжный провайдер.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// StripeClient реализация Provider поверх stripe-go.
type StripeClient struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewStripeClient создаёт клиент Stripe. backends можно передать nil, тогда используется боевой API.
func NewStripeClient(secretKey, webhookSecret, successURL, cancelURL string, backends *stripe.Backends) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeClient{
		api:           api,
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

// CreateCheckoutSession открывает разовую оплату. Идентификатор платежа передаётся
// в client_reference_id и возвращается в вебхуке.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"
	if req.AmountPence <= 0 {
		return nil, fmt.Errorf("%s: amount must be positive, got %d", op, req.AmountPence)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.successURL),
		CancelURL:         stripe.String(c.cancelURL),
		ClientReferenceID: stripe.String(req.PaymentID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountPence),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.AddMetadata("payment_id", req.PaymentID)
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + req.PaymentID)

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook проверяет подпись и извлекает из события идентификатор платежа.
func (c *StripeClient) ParseWebhook(payload []byte, signature string) (*Event, error) {
	const op = "paymentprovider.ParseWebhook"
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
	}

	res := &Event{ID: event.ID, Type: string(event.Type), Kind: EventIgnored}
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		res.Kind = EventPaymentSucceeded
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		res.Kind = EventPaymentFailed
	default:
		return res, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%s: decode checkout session: %w", op, err)
	}
	res.SessionID = sess.ID
	res.PaymentID = sess.ClientReferenceID
	if res.PaymentID == "" {
		res.PaymentID = sess.Metadata["payment_id"]
	}
	// completed без списания средств приходит для отложенных методов оплаты
	if res.Kind == EventPaymentSucceeded && event.Type == "checkout.session.completed" &&
		sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		res.Kind = EventIgnored
	}
	return res, nil
}
