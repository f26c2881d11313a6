package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"bancora/internal/domain/webhook"
	"bancora/internal/infrastructure/bankapi"
	"bancora/internal/interfaces/scheduler"
)

const (
	signatureHeader     = "X-Webhook-Verification"
	maxWebhookBodyBytes = 1 << 20 // 1 MiB
)

// JobSubmitter hands work to the background worker pool.
type JobSubmitter interface {
	Submit(job scheduler.Job) error
}

// WebhookHandler accepts provider notifications. The contract with the
// provider is a fast ACK: verify, persist, respond. Effects run on the
// worker pool after the response is written.
type WebhookHandler struct {
	processor *webhook.Processor
	verifier  *bankapi.Verifier
	pool      JobSubmitter
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(processor *webhook.Processor, verifier *bankapi.Verifier, pool JobSubmitter) *WebhookHandler {
	return &WebhookHandler{processor: processor, verifier: verifier, pool: pool}
}

// HandleBankWebhook ingests one provider delivery
func (h *WebhookHandler) HandleBankWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(r.Context(), r.Header.Get(signatureHeader), body); err != nil {
			if errors.Is(err, bankapi.ErrInvalidSignature) {
				log.Printf("Rejected webhook with invalid signature: %v", err)
				http.Error(w, "Invalid signature", http.StatusUnauthorized)
				return
			}
			log.Printf("Webhook signature verification unavailable: %v", err)
			http.Error(w, "Verification unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	event, fresh, err := h.processor.Ingest(r.Context(), body)
	if err != nil {
		if errors.Is(err, webhook.ErrMalformedPayload) {
			log.Printf("Rejected malformed webhook: %v", err)
			http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
			return
		}
		// Persistence failed: do not ACK, the provider must redeliver.
		log.Printf("Failed to persist webhook: %v", err)
		http.Error(w, "Failed to store webhook", http.StatusServiceUnavailable)
		return
	}

	if fresh {
		if err := h.pool.Submit(&scheduler.WebhookProcessJob{Processor: h.processor, Event: event}); err != nil {
			// Queue full or shutting down. The event is already persisted
			// unprocessed, so the recovery sweep will pick it up.
			log.Printf("Webhook processing deferred to sweep for event %s: %v", event.ID, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}
