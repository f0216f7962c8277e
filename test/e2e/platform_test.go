// Package e2e contains end-to-end tests that exercise the full platform
// stack: gateway → ingestion → annotator → recognizer, with real Kafka,
// PostgreSQL, and Redis.
//
// Prerequisites:
//   - PostgreSQL running with schema applied
//   - Kafka (with Zookeeper) running
//   - Redis running
//   - at least one terminology loaded on the recognizer
//
// Run with:
//
//	go test -v -tags=e2e -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

type e2eConfig struct {
	GatewayURL    string
	IngestionURL  string
	RecognizerURL string
	AnalyticsURL  string
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		GatewayURL:    envOrDefault("E2E_GATEWAY_URL", "http://localhost:8082"),
		IngestionURL:  envOrDefault("E2E_INGESTION_URL", "http://localhost:8081"),
		RecognizerURL: envOrDefault("E2E_RECOGNIZER_URL", "http://localhost:8080"),
		AnalyticsURL:  envOrDefault("E2E_ANALYTICS_URL", "http://localhost:8083"),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestPlatformHealth verifies all services respond to health checks.
func TestPlatformHealth(t *testing.T) {
	cfg := loadE2EConfig()

	services := []struct {
		name string
		url  string
	}{
		{"recognizer /health/live", cfg.RecognizerURL + "/health/live"},
		{"recognizer /health/ready", cfg.RecognizerURL + "/health/ready"},
		{"ingestion /health", cfg.IngestionURL + "/health"},
		{"analytics /health", cfg.AnalyticsURL + "/health"},
		{"gateway /health", cfg.GatewayURL + "/health"},
	}

	client := &http.Client{Timeout: 5 * time.Second}

	for _, svc := range services {
		t.Run(svc.name, func(t *testing.T) {
			resp, err := client.Get(svc.url)
			if err != nil {
				t.Skipf("service unavailable: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestSynchronousAnnotate exercises the direct annotate path on the
// recognizer: submit text, get entities back in one round trip.
func TestSynchronousAnnotate(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	if _, err := client.Get(cfg.RecognizerURL + "/health"); err != nil {
		t.Skipf("recognizer service unavailable: %v", err)
	}

	payload := `{"text":"Parkinson disease is treated with levodopa. Tumor necrosis factor alpha (TNF-α) drives rheumatoid arthritis.","postfilters":["submatches"]}`
	resp, err := client.Post(
		cfg.RecognizerURL+"/api/v1/annotate",
		"application/json",
		strings.NewReader(payload),
	)
	if err != nil {
		t.Fatalf("annotate request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Entities []struct {
			Start         int    `json:"start"`
			End           int    `json:"end"`
			Text          string `json:"text"`
			Type          string `json:"type"`
			PreferredForm string `json:"preferred_form"`
		} `json:"entities"`
		Count         int      `json:"count"`
		Terminologies []string `json:"terminologies"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	t.Logf("annotate: %d entities from terminologies %v", result.Count, result.Terminologies)

	for _, e := range result.Entities {
		if e.Start >= e.End {
			t.Errorf("entity %q has invalid span [%d,%d)", e.Text, e.Start, e.End)
		}
	}
	if result.Count != len(result.Entities) {
		t.Errorf("count=%d but %d entities returned", result.Count, len(result.Entities))
	}
	if result.Count == 0 {
		t.Log("no entities recognized — loaded terminologies may not cover the sample text")
	}
}

// TestIngestAndAnnotate exercises the full document lifecycle:
// ingest → Kafka → annotator workers → stored annotations via recognizer.
func TestIngestAndAnnotate(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	if _, err := client.Get(cfg.IngestionURL + "/health"); err != nil {
		t.Skipf("ingestion service unavailable: %v", err)
	}

	// 1. Ingest a document.
	externalID := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	payload := fmt.Sprintf(`{"external_id":"%s","title":"Levodopa in Parkinson disease","body":"Levodopa remains the standard treatment for Parkinson disease motor symptoms.","source":"e2e"}`, externalID)

	resp, err := client.Post(
		cfg.IngestionURL+"/api/v1/documents",
		"application/json",
		strings.NewReader(payload),
	)
	if err != nil {
		t.Fatalf("ingest request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, body)
	}

	var ingestResult struct {
		DocumentID string `json:"document_id"`
		Status     string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&ingestResult)
	if ingestResult.DocumentID == "" {
		t.Fatal("ingest response carried no document_id")
	}
	t.Logf("ingested document: id=%s, status=%s", ingestResult.DocumentID, ingestResult.Status)

	// 2. Poll for stored annotations (annotator consumes Kafka asynchronously).
	t.Log("waiting for document to be annotated...")
	var annotated bool
	for attempt := 0; attempt < 30; attempt++ {
		time.Sleep(1 * time.Second)

		annResp, err := client.Get(cfg.RecognizerURL + "/api/v1/documents/" + ingestResult.DocumentID + "/annotations")
		if err != nil {
			t.Logf("attempt %d: annotations request failed: %v", attempt, err)
			continue
		}

		var annResult map[string]any
		json.NewDecoder(annResp.Body).Decode(&annResult)
		annResp.Body.Close()

		if annResp.StatusCode == http.StatusOK {
			count, _ := annResult["count"].(float64)
			annotated = true
			t.Logf("annotations available after %d seconds (count=%v)", attempt+1, count)
			break
		}
	}

	if !annotated {
		t.Log("annotations not available within 30s — the annotator may be slow or Kafka not fully connected")
		// Don't fail hard — the e2e environment may not have all services wired up.
	}
}

// TestTerminologyListing verifies the recognizer reports its loaded
// terminologies.
func TestTerminologyListing(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(cfg.RecognizerURL + "/api/v1/terminologies")
	if err != nil {
		t.Skipf("recognizer service unavailable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Terminologies []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
			Terms  int    `json:"terms"`
		} `json:"terminologies"`
		Count int `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	t.Logf("terminologies: count=%d", result.Count)

	for _, term := range result.Terminologies {
		t.Logf("  %s: status=%s terms=%d", term.Name, term.Status, term.Terms)
		if term.Status == "ready" && term.Terms == 0 {
			t.Errorf("terminology %s reports ready with zero terms", term.Name)
		}
	}
}

// TestAnnotateAnalytics verifies that annotate requests generate analytics
// events.
func TestAnnotateAnalytics(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	// Issue an annotate request.
	resp, err := client.Post(
		cfg.RecognizerURL+"/api/v1/annotate",
		"application/json",
		strings.NewReader(`{"text":"insulin regulates glucose"}`),
	)
	if err != nil {
		t.Skipf("recognizer service unavailable: %v", err)
	}
	resp.Body.Close()

	// Give time for the analytics event to flow through Kafka.
	time.Sleep(2 * time.Second)

	analyticsResp, err := client.Get(cfg.AnalyticsURL + "/api/v1/analytics")
	if err != nil {
		t.Skipf("analytics service unavailable: %v", err)
	}
	defer analyticsResp.Body.Close()

	var stats map[string]any
	json.NewDecoder(analyticsResp.Body).Decode(&stats)

	totalRequests, _ := stats["total_requests"].(float64)
	t.Logf("analytics: total_requests=%v, total_docs_annotated=%v, total_entities=%v",
		stats["total_requests"], stats["total_docs_annotated"], stats["total_entities"])

	if totalRequests < 1 {
		t.Log("expected at least 1 annotate request recorded in analytics")
	}
}

// TestAnnotationCacheStats verifies that cache statistics are reported.
func TestAnnotationCacheStats(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(cfg.RecognizerURL + "/api/v1/cache/stats")
	if err != nil {
		t.Skipf("recognizer service unavailable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var stats map[string]any
	json.NewDecoder(resp.Body).Decode(&stats)
	t.Logf("cache stats: %v", stats)

	// Verify expected fields exist.
	for _, field := range []string{"hits", "misses", "total", "hit_rate"} {
		if _, ok := stats[field]; !ok {
			// Cache might be disabled — check for "status" field instead.
			if status, ok := stats["status"]; ok && status == "disabled" {
				t.Log("cache is disabled, skipping field check")
				return
			}
			t.Errorf("missing expected field: %s", field)
		}
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
