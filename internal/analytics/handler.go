package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// SnapshotLister is implemented by the persistence store; the handler
// keeps it as an interface so it can serve without a database.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotLister
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator, snapshots SnapshotLister) *Handler {
	return &Handler{
		aggregator: aggregator,
		snapshots:  snapshots,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeJSON(w, http.StatusOK, []AggregatedStats{})
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		if parsed > 100 {
			parsed = 100
		}
		limit = parsed
	}

	snapshots, err := h.snapshots.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing snapshots failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list snapshots",
		})
		return
	}
	if snapshots == nil {
		snapshots = []AggregatedStats{}
	}
	h.writeJSON(w, http.StatusOK, snapshots)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
