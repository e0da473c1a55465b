package paymentprovider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func newTestClient(t *testing.T, handler http.HandlerFunc) *StripeClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:           stripe.String(srv.URL),
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	backends := &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	return NewStripeClient("sk_test_123", testWebhookSecret, "https://example.com/ok", "https://example.com/cancel", backends)
}

func signed(t *testing.T, payload string) ([]byte, string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return sp.Payload, sp.Header
}

func TestStripeClient_CreateCheckoutSession(t *testing.T) {
	var form map[string]string
	var idempotencyKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"client_reference_id": r.PostForm.Get("client_reference_id"),
			"mode":                r.PostForm.Get("mode"),
			"unit_amount":         r.PostForm.Get("line_items[0][price_data][unit_amount]"),
			"currency":            r.PostForm.Get("line_items[0][price_data][currency]"),
		}
		idempotencyKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`)
	})

	sess, err := c.CreateCheckoutSession(context.Background(), CheckoutRequest{
		PaymentID:   "pay-1",
		Description: "Annual plan",
		AmountPence: 2399,
		Currency:    "gbp",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", sess.URL)
	assert.Equal(t, "pay-1", form["client_reference_id"])
	assert.Equal(t, "payment", form["mode"])
	assert.Equal(t, "2399", form["unit_amount"])
	assert.Equal(t, "gbp", form["currency"])
	assert.Equal(t, "checkout-pay-1", idempotencyKey)
}

func TestStripeClient_CreateCheckoutSession_RejectsZeroAmount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})
	_, err := c.CreateCheckoutSession(context.Background(), CheckoutRequest{PaymentID: "pay-1", Currency: "gbp"})
	assert.Error(t, err)
}

func TestStripeClient_ParseWebhook(t *testing.T) {
	c := NewStripeClient("sk_test_123", testWebhookSecret, "", "", nil)

	tests := []struct {
		name          string
		payload       string
		wantKind      EventKind
		wantPaymentID string
	}{
		{
			name:          "completed and paid",
			payload:       `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","client_reference_id":"pay-1","payment_status":"paid"}}}`,
			wantKind:      EventPaymentSucceeded,
			wantPaymentID: "pay-1",
		},
		{
			name:          "completed but unpaid",
			payload:       `{"id":"evt_2","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_2","object":"checkout.session","client_reference_id":"pay-2","payment_status":"unpaid"}}}`,
			wantKind:      EventIgnored,
			wantPaymentID: "pay-2",
		},
		{
			name:          "expired",
			payload:       `{"id":"evt_3","object":"event","type":"checkout.session.expired","data":{"object":{"id":"cs_3","object":"checkout.session","client_reference_id":"pay-3"}}}`,
			wantKind:      EventPaymentFailed,
			wantPaymentID: "pay-3",
		},
		{
			name:          "payment id from metadata",
			payload:       `{"id":"evt_4","object":"event","type":"checkout.session.async_payment_succeeded","data":{"object":{"id":"cs_4","object":"checkout.session","metadata":{"payment_id":"pay-4"}}}}`,
			wantKind:      EventPaymentSucceeded,
			wantPaymentID: "pay-4",
		},
		{
			name:     "unrelated event",
			payload:  `{"id":"evt_5","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`,
			wantKind: EventIgnored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, header := signed(t, tt.payload)
			ev, err := c.ParseWebhook(payload, header)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, ev.Kind)
			assert.Equal(t, tt.wantPaymentID, ev.PaymentID)
		})
	}
}

func TestStripeClient_ParseWebhook_BadSignature(t *testing.T) {
	c := NewStripeClient("sk_test_123", testWebhookSecret, "", "", nil)
	payload, _ := signed(t, `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{}}}`)

	_, err := c.ParseWebhook(payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = c.ParseWebhook(payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
