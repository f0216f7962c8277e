// Package consumer reads ingested documents from Kafka and drives the
// annotation pipeline. A group of identical consumers shares one Kafka
// consumer group, so partitions balance across workers and across
// annotator instances.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/annotator"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/metrics"
)

const lagReportInterval = 15 * time.Second

// Group runs a fixed number of annotation workers against one topic.
type Group struct {
	consumers []*kafka.Consumer
	metrics   *metrics.Metrics
	topic     string
	logger    *slog.Logger
}

// NewGroup builds `workers` consumers sharing the configured consumer
// group. Workers must only be started after the service's terminologies
// are ready.
func NewGroup(cfg config.KafkaConfig, topic string, workers int, svc *annotator.Service, m *metrics.Metrics) *Group {
	if workers <= 0 {
		workers = 1
	}
	g := &Group{
		metrics: m,
		topic:   topic,
		logger:  slog.Default().With("component", "annotate-consumer"),
	}
	handler := HandleMessage(svc, m, topic)
	for i := 0; i < workers; i++ {
		g.consumers = append(g.consumers, kafka.NewConsumer(cfg, topic, handler))
	}
	return g
}

// Start runs all workers until ctx is cancelled. It blocks; the first
// worker error tears the group down.
func (g *Group) Start(ctx context.Context) error {
	g.logger.Info("annotation workers starting",
		"workers", len(g.consumers),
		"topic", g.topic,
	)
	eg, ctx := errgroup.WithContext(ctx)
	for _, c := range g.consumers {
		eg.Go(func() error {
			return c.Start(ctx)
		})
	}
	eg.Go(func() error {
		g.reportLag(ctx)
		return nil
	})
	return eg.Wait()
}

// HandleMessage returns the Kafka handler for one ingested document.
// Undecodable payloads are committed and skipped; pipeline errors are
// returned uncommitted so the message is redelivered.
func HandleMessage(svc *annotator.Service, m *metrics.Metrics, topic string) kafka.MessageHandler {
	logger := slog.Default().With("component", "annotate-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
		if err != nil {
			logger.Error("failed to decode document event",
				"error", err,
				"key", string(key),
			)
			if m != nil {
				m.KafkaMessagesTotal.WithLabelValues(topic, "skipped").Inc()
			}
			return nil
		}

		logger.Debug("processing document event", "doc_id", event.DocumentID)

		if err := svc.AnnotateDocument(ctx, event); err != nil {
			if m != nil {
				m.KafkaMessagesTotal.WithLabelValues(topic, "error").Inc()
			}
			return fmt.Errorf("annotating document %s: %w", event.DocumentID, err)
		}
		if m != nil {
			m.KafkaMessagesTotal.WithLabelValues(topic, "ok").Inc()
		}
		return nil
	}
}

func (g *Group) reportLag(ctx context.Context) {
	if g.metrics == nil {
		return
	}
	ticker := time.NewTicker(lagReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var lag int64
			for _, c := range g.consumers {
				lag += c.Lag()
			}
			g.metrics.KafkaConsumerLag.WithLabelValues(g.topic).Set(float64(lag))
		}
	}
}
