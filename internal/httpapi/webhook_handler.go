package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fjod/templateshop/internal/reconcile"
)

// SignatureHeader carries the processor's payload signature.
const SignatureHeader = "Stripe-Signature"

type WebhookReconciler interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (reconcile.Outcome, error)
}

type WebhookHandler struct {
	reconciler WebhookReconciler
	log        *slog.Logger
}

func NewWebhookHandler(reconciler WebhookReconciler, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, log: log}
}

// Payments acknowledges every verified event. Reconciliation failures are
// logged by the reconciler and never turned into processor retries here.
func (h *WebhookHandler) Payments(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "could not read body")
		return
	}

	outcome, err := h.reconciler.HandleWebhook(r.Context(), payload, r.Header.Get(SignatureHeader))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_signature", "webhook verification failed")
		return
	}

	h.log.DebugContext(r.Context(), "payment webhook handled", "outcome", string(outcome))
	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
