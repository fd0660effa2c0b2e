package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/okian/arena/internal/domain/crm"
	"github.com/okian/arena/internal/domain/ingest"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

const (
	webhookPrefix = "/api/webhooks/"
	// SecretHeader carries the per-source shared secret.
	SecretHeader = "X-Webhook-Secret"
)

// WebhookDependencies defines the interface for webhook ingestion.
type WebhookDependencies interface {
	Ingest(ctx context.Context, src model.SourceSystem, payload []byte, tenant string) (ingest.Result, error)
}

// WebhookHandler handles CRM webhook deliveries.
type WebhookHandler struct {
	deps         WebhookDependencies
	secrets      map[model.SourceSystem]string
	tenants      map[model.SourceSystem]string
	maxBodyBytes int64
	logger       logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(deps WebhookDependencies, opts ...Option) *WebhookHandler {
	cfg := newConfig(opts)
	return &WebhookHandler{
		deps:         deps,
		secrets:      cfg.webhookSecrets,
		tenants:      cfg.webhookTenants,
		maxBodyBytes: cfg.maxBodyBytes,
		logger:       cfg.logger,
	}
}

// HandlePostWebhook handles POST /api/webhooks/{source} requests.
func (h *WebhookHandler) HandlePostWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_webhook"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	name := strings.TrimPrefix(r.URL.Path, webhookPrefix)
	src, err := model.ParseSourceSystem(name)
	if err != nil || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, "unknown_source", WrapKind(op, ErrNotFound, err))
		return
	}
	if !h.authorized(src, r.Header.Get(SecretHeader)) {
		h.logger.Warn(ctx, "webhook rejected", logger.String("source", string(src)))
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", WrapKind(op, ErrTooLarge, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Ingest(ctx, src, body, h.tenants[src])
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, crm.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, model.ErrUnknownSource):
		writeError(w, http.StatusNotFound, "unknown_source", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, ingest.ErrStorage):
		h.logger.Error(ctx, "webhook ingestion failed", logger.String("source", string(src)), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "storage_error", Wrap(op, err))
	default:
		h.logger.Error(ctx, "webhook ingestion failed", logger.String("source", string(src)), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// authorized compares the presented secret in constant time. A source with
// no configured secret accepts nothing.
func (h *WebhookHandler) authorized(src model.SourceSystem, presented string) bool {
	want := h.secrets[src]
	if want == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(want)) == 1
}
