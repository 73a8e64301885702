package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/fieldsift/kobo-ingest/pkg/logging"
	"github.com/fieldsift/kobo-ingest/pkg/models"
	"github.com/fieldsift/kobo-ingest/pkg/services"
)

// successMessage matches what the forms platform expects back from a hook.
const successMessage = "Webhook data received and saved"

// WebhookHandler is the push adapter: one JSON submission per request, fed
// straight into the ingestion pipeline. The host transport may invoke it
// concurrently; each invocation runs its own transaction.
type WebhookHandler struct {
	ingester services.IngestService
	logger   *zap.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(ingester services.IngestService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingester: ingester,
		logger:   logger.Named("webhook"),
	}
}

// RegisterRoutes registers the webhook endpoint on the given mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", h.Receive)
}

// Receive handles POST /webhook. Committed and duplicate-skipped records both
// answer success (re-delivery of the same submission is a no-op by design).
// Validation failures answer 422 with a sanitized reason; anything else
// answers a generic 500 with no internal detail.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		_ = WriteStatus(w, http.StatusMethodNotAllowed, "error", "method not allowed")
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		_ = WriteStatus(w, http.StatusBadRequest, "error", "request body is not a JSON object")
		return
	}

	outcome := h.ingester.Ingest(r.Context(), raw)
	switch outcome.State {
	case models.StateCommitted, models.StateSkipped:
		_ = WriteStatus(w, http.StatusOK, "success", successMessage)
	case models.StateRejected:
		_ = WriteStatus(w, http.StatusUnprocessableEntity, "error", logging.SanitizeError(outcome.Err))
	default:
		h.logger.Error("Webhook ingestion failed",
			zap.Int64("external_id", outcome.ExternalID),
			zap.Error(outcome.Err))
		_ = WriteStatus(w, http.StatusInternalServerError, "error", "Internal Server Error")
	}
}
