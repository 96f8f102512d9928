// Package paymenttest builds signed processor events for tests.
package paymenttest

import (
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

// Sign returns a Stripe-Signature header for payload.
func Sign(payload []byte, secret string, ts time.Time) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: ts,
	})
	return signed.Header
}

// EventJSON wraps object in a processor event envelope.
func EventJSON(id, eventType string, object map[string]any) []byte {
	body, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": "2023-10-16",
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		panic(err)
	}
	return body
}
