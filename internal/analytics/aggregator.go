package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/kafka"
)

type AggregatedStats struct {
	TotalRequests         int64            `json:"total_requests"`
	TotalDocsAnnotated    int64            `json:"total_docs_annotated"`
	TotalEntities         int64            `json:"total_entities"`
	CacheHits             int64            `json:"cache_hits"`
	CacheMisses           int64            `json:"cache_misses"`
	CacheHitRate          float64          `json:"cache_hit_rate"`
	ZeroMatchCount        int64            `json:"zero_match_count"`
	AvgLatencyMs          float64          `json:"avg_latency_ms"`
	P50LatencyMs          int64            `json:"p50_latency_ms"`
	P95LatencyMs          int64            `json:"p95_latency_ms"`
	P99LatencyMs          int64            `json:"p99_latency_ms"`
	EntitiesByType        map[string]int64 `json:"entities_by_type"`
	EntitiesByTerminology map[string]int64 `json:"entities_by_terminology"`
	TopConcepts           []ConceptCount   `json:"top_concepts"`
	RequestsPerMinute     float64          `json:"requests_per_minute"`
}

type ConceptCount struct {
	Terminology   string `json:"terminology,omitempty"`
	Type          string `json:"type"`
	PreferredForm string `json:"preferred_form"`
	NativeID      string `json:"native_id"`
	Count         int64  `json:"count"`
}

type Aggregator struct {
	mu                 sync.RWMutex
	totalRequests      atomic.Int64
	totalDocsAnnotated atomic.Int64
	totalEntities      atomic.Int64
	cacheHits          atomic.Int64
	cacheMisses        atomic.Int64
	zeroMatches        atomic.Int64
	latencies          []int64
	byType             map[string]int64
	byTerminology      map[string]int64
	conceptCounts      map[conceptKey]int64
	topK               int
	startTime          time.Time

	consumers []*kafka.Consumer
	logger    *slog.Logger
}

type conceptKey struct {
	terminology   string
	typ           string
	preferredForm string
	nativeID      string
}

// NewAggregator builds an aggregator fed by one consumer per source
// topic. The recognizer reports per-request events on the analytics
// topic; the annotator reports per-document events on the annotations
// topic. Both funnel through the same handler.
func NewAggregator(topK int, consumers ...*kafka.Consumer) *Aggregator {
	if topK <= 0 {
		topK = 20
	}
	return &Aggregator{
		latencies:     make([]int64, 0, 10000),
		byType:        make(map[string]int64),
		byTerminology: make(map[string]int64),
		conceptCounts: make(map[conceptKey]int64),
		topK:          topK,
		startTime:     time.Now(),
		consumers:     consumers,
		logger:        slog.Default().With("component", "analytics-aggregator"),
	}
}

// AddConsumers attaches source consumers after construction. The event
// handler needs the aggregator to exist before its consumers can be
// built, so wiring happens in two steps. Must be called before Start.
func (a *Aggregator) AddConsumers(consumers ...*kafka.Consumer) {
	a.consumers = append(a.consumers, consumers...)
}

// Start runs all consumers until ctx is cancelled. It blocks; the
// first consumer error tears the group down.
func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting", "consumers", len(a.consumers))
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range a.consumers {
		g.Go(func() error {
			return c.Start(ctx)
		})
	}
	return g.Wait()
}

// HandleEvent returns a Kafka MessageHandler that dispatches analytics
// events by their type field. Undecodable payloads are logged and
// committed so they are not redelivered forever.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var head struct {
			Type EventType `json:"type"`
		}
		if err := json.Unmarshal(value, &head); err != nil {
			agg.logger.Error("failed to decode analytics event",
				"error", err,
			)
			return nil
		}

		switch head.Type {
		case EventDocumentAnnotated:
			event, err := kafka.DecodeJSON[DocumentAnnotatedEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode document event", "error", err)
				return nil
			}
			agg.recordDocumentEvent(event)
		case EventAnnotate, EventCacheHit, EventCacheMiss:
			event, err := kafka.DecodeJSON[AnnotateEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode annotate event", "error", err)
				return nil
			}
			agg.recordAnnotateEvent(event)
		default:
			agg.logger.Warn("unknown analytics event type", "type", head.Type)
		}
		return nil
	}
}

func (a *Aggregator) recordAnnotateEvent(event AnnotateEvent) {
	a.totalRequests.Add(1)
	a.totalEntities.Add(int64(event.Entities))

	switch event.Type {
	case EventCacheHit:
		a.cacheHits.Add(1)
	case EventCacheMiss:
		a.cacheMisses.Add(1)
	}

	if event.Entities == 0 {
		a.zeroMatches.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.recordConceptsLocked(event.Concepts)
	a.mu.Unlock()
}

func (a *Aggregator) recordDocumentEvent(event DocumentAnnotatedEvent) {
	a.totalDocsAnnotated.Add(1)
	a.totalEntities.Add(int64(event.Entities))

	a.mu.Lock()
	a.recordConceptsLocked(event.Concepts)
	a.mu.Unlock()
}

func (a *Aggregator) recordConceptsLocked(concepts []Concept) {
	for _, c := range concepts {
		a.byType[c.Type] += c.Count
		a.byTerminology[c.Terminology] += c.Count
		a.conceptCounts[conceptKey{c.Terminology, c.Type, c.PreferredForm, c.NativeID}] += c.Count
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRequests:      a.totalRequests.Load(),
		TotalDocsAnnotated: a.totalDocsAnnotated.Load(),
		TotalEntities:      a.totalEntities.Load(),
		CacheHits:          a.cacheHits.Load(),
		CacheMisses:        a.cacheMisses.Load(),
		ZeroMatchCount:     a.zeroMatches.Load(),
	}
	if total := stats.CacheHits + stats.CacheMisses; total > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(total)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.EntitiesByType = copyCounts(a.byType)
	stats.EntitiesByTerminology = copyCounts(a.byTerminology)
	stats.TopConcepts = a.topConceptsLocked()
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.RequestsPerMinute = float64(stats.TotalRequests) / elapsed
	}

	return stats
}

// Restore re-seeds counters and rankings from a persisted snapshot.
// Latency percentiles start fresh; only totals and concept counts
// survive a restart.
func (a *Aggregator) Restore(stats AggregatedStats) {
	a.totalRequests.Store(stats.TotalRequests)
	a.totalDocsAnnotated.Store(stats.TotalDocsAnnotated)
	a.totalEntities.Store(stats.TotalEntities)
	a.cacheHits.Store(stats.CacheHits)
	a.cacheMisses.Store(stats.CacheMisses)
	a.zeroMatches.Store(stats.ZeroMatchCount)

	a.mu.Lock()
	defer a.mu.Unlock()
	for typ, count := range stats.EntitiesByType {
		a.byType[typ] = count
	}
	for name, count := range stats.EntitiesByTerminology {
		a.byTerminology[name] = count
	}
	for _, c := range stats.TopConcepts {
		a.conceptCounts[conceptKey{c.Terminology, c.Type, c.PreferredForm, c.NativeID}] = c.Count
	}
	a.logger.Info("aggregator state restored",
		"total_requests", stats.TotalRequests,
		"total_docs_annotated", stats.TotalDocsAnnotated,
		"concepts", len(stats.TopConcepts),
	)
}

func (a *Aggregator) topConceptsLocked() []ConceptCount {
	result := make([]ConceptCount, 0, len(a.conceptCounts))
	for key, count := range a.conceptCounts {
		result = append(result, ConceptCount{
			Terminology:   key.terminology,
			Type:          key.typ,
			PreferredForm: key.preferredForm,
			NativeID:      key.nativeID,
			Count:         count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].PreferredForm < result[j].PreferredForm
	})
	if len(result) > a.topK {
		result = result[:a.topK]
	}
	return result
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func copyCounts(counts map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}
