// Package handler serves the recognizer's HTTP API: synchronous
// annotation with format negotiation, stored-annotation retrieval and
// terminology management.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/annotator"
	annstore "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/annotator/store"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document/export"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/postfilter"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/cache"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/terminology"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/rpc"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/tracing"
)

// Executor abstracts the annotation engine so tests can stub it.
type Executor interface {
	Annotate(ctx context.Context, article *document.Article, names []string, filters []postfilter.Filter) error
}

// AnnotationStore abstracts stored-annotation reads.
type AnnotationStore interface {
	ByDocument(ctx context.Context, docID string) ([]annstore.Annotation, error)
}

// AnnotateRequest is the POST /api/v1/annotate body.
type AnnotateRequest struct {
	Text          string   `json:"text"`
	Terminologies []string `json:"terminologies,omitempty"`
	Postfilters   []string `json:"postfilters,omitempty"`
	Format        string   `json:"format,omitempty"`
}

// AnnotateResponse is the JSON-format annotate body. TSV and CoNLL
// formats stream their own plain-text bodies instead.
type AnnotateResponse struct {
	Entities      []rpc.Entity `json:"entities"`
	Count         int          `json:"count"`
	Terminologies []string     `json:"terminologies"`
}

// TerminologyRequest is the POST /api/v1/terminologies body.
type TerminologyRequest struct {
	Name            string   `json:"name"`
	Path            string   `json:"path"`
	Format          string   `json:"format,omitempty"`
	SkipHeader      bool     `json:"skip_header,omitempty"`
	ExtraFields     []string `json:"extra_fields,omitempty"`
	Normalize       string   `json:"normalize,omitempty"`
	Stopwords       []string `json:"stopwords,omitempty"`
	StopwordsFile   string   `json:"stopwords_file,omitempty"`
	TokenPattern    string   `json:"token_pattern,omitempty"`
	AbbrevDetection bool     `json:"abbrev_detection,omitempty"`
	AbbrevPattern   string   `json:"abbrev_pattern,omitempty"`
	CacheDir        string   `json:"cache_dir,omitempty"`
	PoolSize        int      `json:"pool_size,omitempty"`
}

// TerminologyView is the JSON shape of one terminology's state.
type TerminologyView struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Terms    int    `json:"terms"`
	Keys     int    `json:"keys"`
	PoolSize int    `json:"pool_size"`
	LoadedAt string `json:"loaded_at,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Deps bundles the handler's collaborators. Cache, Store, Annotator,
// Invalidations and Collector may each be nil; the endpoints degrade
// accordingly.
type Deps struct {
	Executor      Executor
	Manager       *terminology.Manager
	Cache         *cache.AnnotationCache
	Store         AnnotationStore
	Annotator     *rpc.Pool
	Invalidations *kafka.Producer
	Collector     *analytics.Collector
	Metrics       *metrics.Metrics
}

type Handler struct {
	deps   Deps
	cfg    config.RecognizerConfig
	logger *slog.Logger
}

func New(deps Deps, cfg config.RecognizerConfig) *Handler {
	return &Handler{
		deps:   deps,
		cfg:    cfg,
		logger: slog.Default().With("component", "recognizer-handler"),
	}
}

// Annotate serves POST /api/v1/annotate.
func (h *Handler) Annotate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.cfg.MaxTextBytes > 0 {
		// Leave headroom for the JSON envelope around the text.
		r.Body = http.MaxBytesReader(w, r.Body, int64(h.cfg.MaxTextBytes)+64*1024)
	}

	var req AnnotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		h.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if h.cfg.MaxTextBytes > 0 && len(req.Text) > h.cfg.MaxTextBytes {
		h.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds %d bytes", h.cfg.MaxTextBytes))
		return
	}
	format := req.Format
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "tsv" && format != "conll" {
		h.writeError(w, http.StatusBadRequest, "format must be json, tsv or conll")
		return
	}

	names, err := h.deps.Manager.Resolve(req.Terminologies)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	filters, err := postfilter.Resolve(req.Postfilters)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := tracing.StartSpan(ctx, "annotate", middleware.GetRequestID(ctx))
	span.SetAttr("text_bytes", len(req.Text))
	span.SetAttr("format", format)
	defer func() {
		span.End()
		span.Log()
	}()

	var concepts []analytics.Concept
	compute := func() (*cache.Response, error) {
		article := document.NewArticle("")
		article.AddSection("text", req.Text)
		recCtx, recSpan := tracing.StartChildSpan(ctx, "recognize")
		err := h.deps.Executor.Annotate(recCtx, article, names, filters)
		recSpan.End()
		if err != nil {
			return nil, err
		}
		concepts = analytics.ConceptsFromEntities(flatten(article))
		_, renderSpan := tracing.StartChildSpan(ctx, "render")
		resp, err := h.render(article, names, format)
		renderSpan.End()
		return resp, err
	}

	var resp *cache.Response
	cacheHit := false
	if h.deps.Cache != nil {
		key := cache.Key(req.Text, names, req.Postfilters, format)
		resp, cacheHit, err = h.deps.Cache.GetOrCompute(ctx, key, compute)
	} else {
		resp, err = compute()
	}
	if err != nil {
		log.Error("annotation failed", "error", err)
		if h.deps.Metrics != nil {
			h.deps.Metrics.AnnotateRequestsTotal.WithLabelValues("error").Inc()
		}
		h.writeErr(w, err)
		return
	}

	latency := time.Since(start)
	span.SetAttr("cache_hit", cacheHit)
	span.SetAttr("entities", resp.Entities)
	h.recordAnnotate(cacheHit, resp.Entities, latency)

	log.Info("annotation completed",
		"text_bytes", len(req.Text),
		"terminologies", names,
		"entities", resp.Entities,
		"format", format,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	if h.deps.Collector != nil {
		eventType := analytics.EventAnnotate
		if h.deps.Cache != nil {
			eventType = analytics.EventCacheMiss
			if cacheHit {
				eventType = analytics.EventCacheHit
			}
		}
		h.deps.Collector.Track(analytics.AnnotateEvent{
			Type:          eventType,
			TextBytes:     len(req.Text),
			Format:        format,
			Terminologies: names,
			Entities:      resp.Entities,
			Concepts:      concepts,
			LatencyMs:     latency.Milliseconds(),
			CacheHit:      cacheHit,
			Timestamp:     time.Now().UTC(),
			RequestID:     middleware.GetRequestID(ctx),
		})
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// DocumentAnnotations serves GET /api/v1/documents/{id}/annotations.
func (h *Handler) DocumentAnnotations(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		h.writeError(w, http.StatusServiceUnavailable, "annotation storage is not configured")
		return
	}
	docID := r.PathValue("id")
	if docID == "" {
		h.writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	annotations, err := h.deps.Store.ByDocument(r.Context(), docID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if annotations == nil {
		annotations = []annstore.Annotation{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"document_id": docID,
		"count":       len(annotations),
		"annotations": annotations,
	})
}

// ListTerminologies serves GET /api/v1/terminologies.
func (h *Handler) ListTerminologies(w http.ResponseWriter, r *http.Request) {
	infos := h.deps.Manager.List()
	views := make([]TerminologyView, 0, len(infos))
	for _, info := range infos {
		views = append(views, viewOf(info))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":         len(views),
		"terminologies": views,
	})
}

// GetTerminology serves GET /api/v1/terminologies/{name}.
func (h *Handler) GetTerminology(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.Manager.Get(r.PathValue("name"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, viewOf(info))
}

// AddTerminology serves POST /api/v1/terminologies. Loading happens in
// the background; the response reports the accepted, still-loading
// terminology.
func (h *Handler) AddTerminology(w http.ResponseWriter, r *http.Request) {
	var req TerminologyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Path == "" {
		h.writeError(w, http.StatusBadRequest, "name and path are required")
		return
	}

	err := h.deps.Manager.Add(config.TerminologyConfig{
		Name:            req.Name,
		Path:            req.Path,
		Format:          req.Format,
		SkipHeader:      req.SkipHeader,
		ExtraFields:     req.ExtraFields,
		Normalize:       req.Normalize,
		Stopwords:       req.Stopwords,
		StopwordsFile:   req.StopwordsFile,
		TokenPattern:    req.TokenPattern,
		AbbrevDetection: req.AbbrevDetection,
		AbbrevPattern:   req.AbbrevPattern,
		CacheDir:        req.CacheDir,
		PoolSize:        req.PoolSize,
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}

	logger.FromContext(r.Context()).Info("terminology accepted", "terminology", req.Name)
	h.writeJSON(w, http.StatusAccepted, TerminologyView{
		Name:   req.Name,
		Status: string(terminology.StatusLoading),
	})
}

// RemoveTerminology serves DELETE /api/v1/terminologies/{name}.
func (h *Handler) RemoveTerminology(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.deps.Manager.Remove(name); err != nil {
		h.writeErr(w, err)
		return
	}
	h.invalidate(r.Context(), name, "terminology removed")
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":      "removed",
		"terminology": name,
	})
}

// ReloadTerminology serves POST /api/v1/terminologies/{name}/reload.
// The reload is synchronous; `?force=true` bypasses the on-disk cache.
func (h *Handler) ReloadTerminology(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	force := r.URL.Query().Get("force") == "true"

	start := time.Now()
	if err := h.deps.Manager.Reload(r.Context(), name, force); err != nil {
		h.writeErr(w, err)
		return
	}
	h.invalidate(r.Context(), name, "terminology reloaded")

	logger.FromContext(r.Context()).Info("terminology reloaded",
		"terminology", name,
		"force", force,
		"elapsed", time.Since(start),
	)
	info, err := h.deps.Manager.Get(name)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, viewOf(info))
}

// AnnotatorStats serves GET /api/v1/annotator/stats by proxying the
// Dictionary.Stats RPC to the annotator worker.
func (h *Handler) AnnotatorStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Annotator == nil {
		h.writeError(w, http.StatusServiceUnavailable, "annotator is not configured")
		return
	}

	name := r.URL.Query().Get("terminology")
	var resp rpc.StatsResponse
	if err := h.deps.Annotator.Call(r.Context(), "Dictionary.Stats", rpc.StatsRequest{Terminology: name}, &resp); err != nil {
		var serverErr rpc.ServerError
		if errors.As(err, &serverErr) {
			h.writeError(w, http.StatusBadGateway, serverErr.Error())
			return
		}
		h.logger.Error("annotator stats call failed", "error", err)
		h.writeError(w, http.StatusBadGateway, "annotator unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CacheStats serves GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.deps.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate serves POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.deps.Cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// invalidate drops the local cache and tells other replicas to do the
// same. Both halves are best-effort.
func (h *Handler) invalidate(ctx context.Context, name, reason string) {
	if h.deps.Cache != nil {
		if err := h.deps.Cache.Invalidate(ctx); err != nil {
			h.logger.Error("cache invalidation failed", "error", err)
		}
	}
	if h.deps.Invalidations != nil {
		err := h.deps.Invalidations.Publish(ctx, kafka.Event{
			Key: name,
			Value: cache.InvalidationEvent{
				Terminology: name,
				Reason:      reason,
				Timestamp:   time.Now().UTC(),
			},
		})
		if err != nil {
			h.logger.Error("failed to publish invalidation event", "error", err)
		}
	}
}

func (h *Handler) render(article *document.Article, names []string, format string) (*cache.Response, error) {
	entities := annotator.RPCEntities(article)

	switch format {
	case "tsv":
		var buf bytes.Buffer
		tw := export.NewTSVWriter(&buf, export.TSVOptions{Header: true})
		if err := tw.WriteArticle(article); err != nil {
			return nil, fmt.Errorf("rendering tsv: %w", err)
		}
		return &cache.Response{
			ContentType: "text/tab-separated-values; charset=utf-8",
			Body:        buf.Bytes(),
			Entities:    len(entities),
		}, nil
	case "conll":
		var buf bytes.Buffer
		cw, err := export.NewCoNLLWriter(&buf, export.CoNLLOptions{DocID: false})
		if err != nil {
			return nil, fmt.Errorf("building conll writer: %w", err)
		}
		if err := cw.WriteArticle(article); err != nil {
			return nil, fmt.Errorf("rendering conll: %w", err)
		}
		return &cache.Response{
			ContentType: "text/plain; charset=utf-8",
			Body:        buf.Bytes(),
			Entities:    len(entities),
		}, nil
	default:
		body, err := json.Marshal(AnnotateResponse{
			Entities:      entities,
			Count:         len(entities),
			Terminologies: names,
		})
		if err != nil {
			return nil, fmt.Errorf("rendering json: %w", err)
		}
		return &cache.Response{
			ContentType: "application/json",
			Body:        body,
			Entities:    len(entities),
		}, nil
	}
}

func (h *Handler) recordAnnotate(cacheHit bool, entities int, latency time.Duration) {
	m := h.deps.Metrics
	if m == nil {
		return
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
	result := cacheStatus
	if entities == 0 {
		result = "zero_match"
	}
	m.AnnotateRequestsTotal.WithLabelValues(result).Inc()
	m.AnnotationLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	m.EntitiesPerRequest.Observe(float64(entities))
}

func viewOf(info terminology.Info) TerminologyView {
	view := TerminologyView{
		Name:     info.Name,
		Status:   string(info.Status),
		Terms:    info.Terms,
		Keys:     info.Keys,
		PoolSize: info.PoolSize,
	}
	if !info.LoadedAt.IsZero() {
		view.LoadedAt = info.LoadedAt.UTC().Format(time.RFC3339)
	}
	if info.Err != nil {
		view.Error = info.Err.Error()
	}
	return view
}

func flatten(article *document.Article) []document.Entity {
	var entities []document.Entity
	for _, sec := range article.Sections {
		for _, sent := range sec.Sentences {
			entities = append(entities, sent.Entities...)
		}
	}
	return entities
}

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

// writeErr maps domain errors onto HTTP status codes.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		message = "internal error"
	}
	h.writeError(w, status, message)
}
