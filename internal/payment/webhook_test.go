package payment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fjod/templateshop/internal/domain"
	"github.com/fjod/templateshop/internal/payment/paymenttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

const testSecret = "whsec_test_secret"

func completedSession() map[string]any {
	return map[string]any{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"payment_intent": "pi_123",
		"amount_total":   2500,
		"currency":       "usd",
		"customer_details": map[string]any{
			"email": "buyer@example.com",
		},
		"metadata": map[string]any{
			"userId":     "u1",
			"productIds": "p1,p2",
		},
	}
}

func TestVerify_ValidSignature(t *testing.T) {
	payload := paymenttest.EventJSON("evt_1", EventCheckoutCompleted, completedSession())
	header := paymenttest.Sign(payload, testSecret, time.Now())

	evt, err := NewStripeVerifier(testSecret).Verify(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, EventCheckoutCompleted, evt.Type)
	assert.Equal(t, "pi_123", evt.PaymentID())
	assert.Equal(t, "cs_test_1", evt.SessionID())
	amount, ok := evt.AmountMinor()
	assert.True(t, ok)
	assert.Equal(t, int64(2500), amount)
	assert.Equal(t, "buyer@example.com", evt.Email())
	assert.Equal(t, "u1", evt.UserID())
	assert.Equal(t, []string{"p1", "p2"}, evt.ProductIDs())
}

func TestVerify_Rejections(t *testing.T) {
	payload := paymenttest.EventJSON("evt_1", EventCheckoutCompleted, completedSession())
	verifier := NewStripeVerifier(testSecret)

	tests := []struct {
		name   string
		body   []byte
		header string
	}{
		{"missing header", payload, ""},
		{"wrong secret", payload, paymenttest.Sign(payload, "whsec_other", time.Now())},
		{"tampered body", append([]byte(" "), payload...), paymenttest.Sign(payload, testSecret, time.Now())},
		{"too old", payload, paymenttest.Sign(payload, testSecret, time.Now().Add(-time.Hour))},
		{"garbage header", payload, "not-a-signature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.body, tt.header)
			assert.ErrorIs(t, err, ErrInvalidSignature)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		})
	}
}

func TestVerify_EmptySecretRejectsEverything(t *testing.T) {
	payload := paymenttest.EventJSON("evt_1", EventCheckoutCompleted, completedSession())

	_, err := NewStripeVerifier("").Verify(payload, paymenttest.Sign(payload, "", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_MalformedBody(t *testing.T) {
	payload := []byte(`{"id": "evt_1", "type": `)

	_, err := NewStripeVerifier(testSecret).Verify(payload, paymenttest.Sign(payload, testSecret, time.Now()))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestEvent_PaymentIDFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		evtType  string
		object   string
		expected string
	}{
		{"session with intent", EventCheckoutCompleted, `{"id":"cs_1","payment_intent":"pi_1"}`, "pi_1"},
		{"session without intent", EventCheckoutCompleted, `{"id":"cs_1","payment_intent":null}`, "cs_1"},
		{"expanded intent", EventCheckoutCompleted, `{"id":"cs_1","payment_intent":{"id":"pi_9","object":"payment_intent"}}`, "pi_9"},
		{"payment intent event", EventPaymentIntentFailed, `{"id":"pi_2","object":"payment_intent"}`, "pi_2"},
		{"charge event", EventChargeRefunded, `{"id":"ch_1","payment_intent":"pi_3"}`, "pi_3"},
		{"charge without intent", EventChargeRefunded, `{"id":"ch_1"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := &Event{Type: tt.evtType}
			require.NoError(t, json.Unmarshal([]byte(tt.object), &evt.Object))
			assert.Equal(t, tt.expected, evt.PaymentID())
		})
	}
}

func TestEvent_Accessors(t *testing.T) {
	evt := &Event{Type: EventPaymentIntentSucceeded, Object: EventObject{
		ID:                "pi_1",
		Amount:            stripe.Int64(990),
		ReceiptEmail:      "r@example.com",
		ClientReferenceID: " u7 ",
	}}
	amount, ok := evt.AmountMinor()
	assert.True(t, ok)
	assert.Equal(t, int64(990), amount)
	assert.Equal(t, "r@example.com", evt.Email())
	assert.Equal(t, "u7", evt.UserID())
	assert.Empty(t, evt.SessionID())
	assert.Nil(t, evt.ProductIDs())
}

func TestEvent_AmountMinor(t *testing.T) {
	tests := []struct {
		name     string
		object   string
		expected int64
		present  bool
	}{
		{"amount total", `{"amount_total": 2500, "amount": 900}`, 2500, true},
		{"zero amount total", `{"amount_total": 0}`, 0, true},
		{"amount only", `{"amount": 900}`, 900, true},
		{"null amount total", `{"amount_total": null, "amount": 900}`, 900, true},
		{"absent", `{}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := &Event{Type: EventCheckoutCompleted}
			require.NoError(t, json.Unmarshal([]byte(tt.object), &evt.Object))
			amount, ok := evt.AmountMinor()
			assert.Equal(t, tt.present, ok)
			assert.Equal(t, tt.expected, amount)
		})
	}
}

func TestEvent_Quantities(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]string
		expected []int
		ok       bool
	}{
		{"aligned", map[string]string{"productIds": "p1,p2", "quantities": "1,3"}, []int{1, 3}, true},
		{"absent", map[string]string{"productIds": "p1"}, nil, false},
		{"misaligned", map[string]string{"productIds": "p1,p2", "quantities": "2"}, nil, false},
		{"not a number", map[string]string{"productIds": "p1", "quantities": "two"}, nil, false},
		{"zero", map[string]string{"productIds": "p1", "quantities": "0"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := &Event{Object: EventObject{Metadata: tt.metadata}}
			quantities, ok := evt.Quantities()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, quantities)
		})
	}
	assert.Equal(t, "1,3", JoinQuantities([]int{1, 3}))
}

func TestSplitJoinProductIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitProductIDs(" a, b,,c "))
	assert.Equal(t, "a,b", JoinProductIDs([]string{"a", "b"}))
	assert.Nil(t, SplitProductIDs(""))
}
