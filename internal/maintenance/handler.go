package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/JC-Coder/w-wire-api-test/internal/observability"
	"github.com/JC-Coder/w-wire-api-test/internal/transaction"
)

// CleanupHandler prunes old conversion history on a cron trigger. The
// endpoint is disabled entirely unless a cron secret is configured.
type CleanupHandler struct {
	repo       *transaction.Repository
	logger     *observability.Logger
	cronSecret string
	retention  time.Duration
	batchSize  int
}

func NewCleanupHandler(
	repo *transaction.Repository,
	logger *observability.Logger,
	cronSecret string,
	retention time.Duration,
	batchSize int,
) *CleanupHandler {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	return &CleanupHandler{
		repo:       repo,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	cutoff := time.Now().UTC().Add(-h.retention)
	deleted, err := h.repo.DeleteOlderThan(r.Context(), cutoff, h.batchSize)
	if err != nil {
		h.logger.Error("transaction_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("transaction_cleanup_completed", map[string]any{
		"deleted_transactions": deleted,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"deleted_transactions": deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
