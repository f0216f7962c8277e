package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/resilience"
)

// Config holds the URLs of backend services that the gateway proxies to.
type Config struct {
	IngestionURL  string
	RecognizerURL string
	AnalyticsURL  string
}

// upstream is a proxied backend service guarded by a circuit breaker.
type upstream struct {
	name    string
	proxy   *httputil.ReverseProxy
	breaker *resilience.CircuitBreaker
}

// Handler implements the API gateway's HTTP endpoints.
// It proxies requests to backend services through per-upstream circuit
// breakers and provides direct document retrieval and API key management
// via PostgreSQL.
type Handler struct {
	ingestion    *upstream
	recognizer   *upstream
	analytics    *upstream
	db           *postgres.Client
	keyValidator *apikey.Validator
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New creates a gateway Handler that proxies to the given backend URLs.
func New(cfg Config, db *postgres.Client, keyValidator *apikey.Validator, m *metrics.Metrics) *Handler {
	return &Handler{
		ingestion:    newUpstream("ingestion", cfg.IngestionURL),
		recognizer:   newUpstream("recognizer", cfg.RecognizerURL),
		analytics:    newUpstream("analytics", cfg.AnalyticsURL),
		db:           db,
		keyValidator: keyValidator,
		metrics:      m,
		logger:       slog.Default().With("component", "gateway-handler"),
	}
}

func newUpstream(name, target string) *upstream {
	u, _ := url.Parse(target)
	return &upstream{
		name:    name,
		proxy:   httputil.NewSingleHostReverseProxy(u),
		breaker: resilience.NewCircuitBreaker(name, resilience.CircuitBreakerConfig{}),
	}
}

// forward proxies the request through the upstream's circuit breaker.
// Responses of 502 and above count as breaker failures; when the circuit
// is open the request is rejected with 503 without reaching the upstream.
func (h *Handler) forward(up *upstream, w http.ResponseWriter, r *http.Request) {
	err := up.breaker.Execute(func() error {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		up.proxy.ServeHTTP(rec, r)
		if rec.status >= http.StatusBadGateway {
			return fmt.Errorf("%s upstream returned %d", up.name, rec.status)
		}
		return nil
	})
	if h.metrics != nil {
		h.metrics.CircuitBreakerState.WithLabelValues(up.name).Set(float64(up.breaker.GetState()))
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		h.logger.Warn("rejecting request, circuit open", "upstream", up.name, "path", r.URL.Path)
		h.writeError(w, http.StatusServiceUnavailable, up.name+" service unavailable")
	}
}

// statusRecorder captures the status code written by a reverse proxy so the
// circuit breaker can treat gateway-level failures as upstream errors.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ---------- Proxy handlers ----------

// ProxyIngest forwards document submissions to the ingestion service.
func (h *Handler) ProxyIngest(w http.ResponseWriter, r *http.Request) {
	h.forward(h.ingestion, w, r)
}

// ProxyAnnotate forwards synchronous annotation requests to the recognizer.
func (h *Handler) ProxyAnnotate(w http.ResponseWriter, r *http.Request) {
	h.forward(h.recognizer, w, r)
}

// ProxyAnnotations forwards stored-annotation reads to the recognizer.
func (h *Handler) ProxyAnnotations(w http.ResponseWriter, r *http.Request) {
	h.forward(h.recognizer, w, r)
}

// ProxyTerminologies forwards terminology management requests to the recognizer.
func (h *Handler) ProxyTerminologies(w http.ResponseWriter, r *http.Request) {
	h.forward(h.recognizer, w, r)
}

// ProxyAnnotatorStats forwards annotator statistics requests to the recognizer.
func (h *Handler) ProxyAnnotatorStats(w http.ResponseWriter, r *http.Request) {
	h.forward(h.recognizer, w, r)
}

// ProxyAnalytics forwards analytics requests to the analytics service.
func (h *Handler) ProxyAnalytics(w http.ResponseWriter, r *http.Request) {
	h.forward(h.analytics, w, r)
}

// ProxyCacheStats forwards cache stats requests to the recognizer.
func (h *Handler) ProxyCacheStats(w http.ResponseWriter, r *http.Request) {
	h.forward(h.recognizer, w, r)
}

// ProxyCacheInvalidate forwards cache invalidation requests to the recognizer.
func (h *Handler) ProxyCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	h.forward(h.recognizer, w, r)
}

// ---------- Direct data handlers ----------

// GetDocument retrieves a single document from PostgreSQL by ID.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	var doc struct {
		ID          string     `json:"id"`
		ExternalID  string     `json:"external_id,omitempty"`
		Title       string     `json:"title"`
		Abstract    string     `json:"abstract,omitempty"`
		Body        string     `json:"body,omitempty"`
		Source      string     `json:"source,omitempty"`
		ContentHash string     `json:"content_hash"`
		Status      string     `json:"status"`
		CreatedAt   time.Time  `json:"created_at"`
		AnnotatedAt *time.Time `json:"annotated_at,omitempty"`
	}
	var externalID, source sql.NullString
	var annotatedAt sql.NullTime

	err := h.db.DB.QueryRowContext(r.Context(),
		`SELECT id, external_id, title, abstract, body, source, content_hash, status, created_at, annotated_at
		 FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &externalID, &doc.Title, &doc.Abstract, &doc.Body,
		&source, &doc.ContentHash, &doc.Status, &doc.CreatedAt, &annotatedAt)

	if err == sql.ErrNoRows {
		h.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch document", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to fetch document")
		return
	}

	doc.ExternalID = externalID.String
	doc.Source = source.String
	if annotatedAt.Valid {
		doc.AnnotatedAt = &annotatedAt.Time
	}

	h.writeJSON(w, http.StatusOK, doc)
}

// ListDocuments returns a paginated list of document metadata, optionally
// filtered by status (PENDING, ANNOTATED, FAILED).
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	status := r.URL.Query().Get("status")

	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = h.db.DB.QueryContext(r.Context(),
			`SELECT id, external_id, title, source, status, created_at
			 FROM documents WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset,
		)
	} else {
		rows, err = h.db.DB.QueryContext(r.Context(),
			`SELECT id, external_id, title, source, status, created_at
			 FROM documents ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset,
		)
	}
	if err != nil {
		h.logger.Error("failed to list documents", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	defer rows.Close()

	type docSummary struct {
		ID         string    `json:"id"`
		ExternalID string    `json:"external_id,omitempty"`
		Title      string    `json:"title"`
		Source     string    `json:"source,omitempty"`
		Status     string    `json:"status"`
		CreatedAt  time.Time `json:"created_at"`
	}

	docs := make([]docSummary, 0)
	for rows.Next() {
		var d docSummary
		var externalID, source sql.NullString
		if err := rows.Scan(&d.ID, &externalID, &d.Title, &source, &d.Status, &d.CreatedAt); err != nil {
			h.logger.Error("failed to scan document row", "error", err)
			continue
		}
		d.ExternalID = externalID.String
		d.Source = source.String
		docs = append(docs, d)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
		"limit":     limit,
		"offset":    offset,
	})
}

// ---------- Admin handlers ----------

// CreateAPIKey creates a new API key and returns the raw key (shown once).
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string   `json:"name"`
		Scopes    []string `json:"scopes"`
		RateLimit int      `json:"rate_limit"`
		ExpiresIn string   `json:"expires_in,omitempty"` // Go duration, e.g. "720h"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.RateLimit <= 0 {
		req.RateLimit = 100
	}

	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid expires_in duration")
			return
		}
		t := time.Now().Add(d)
		expiresAt = &t
	}

	key, err := h.keyValidator.CreateKey(r.Context(), req.Name, req.Scopes, req.RateLimit, expiresAt)
	if err != nil {
		if errors.Is(err, apikey.ErrUnknownScope) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to create api key", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create api key")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"api_key": key,
		"name":    req.Name,
		"scopes":  req.Scopes,
		"message": "store this key securely — it cannot be retrieved again",
	})
}

// ListAPIKeys returns all active API keys (without hashes).
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keyValidator.ListKeys(r.Context())
	if err != nil {
		h.logger.Error("failed to list api keys", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list api keys")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"count": len(keys),
	})
}

// ---------- Health ----------

// Health returns the gateway's health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "gateway"})
}

// ---------- Helpers ----------

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
