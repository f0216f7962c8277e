// Package integration contains tests that verify the interaction between
// multiple platform components. These tests use httptest servers with real
// handler wiring but stub out the proxied backend services; they need a
// reachable PostgreSQL for the api_keys table and skip otherwise.
//
// Run with:
//
//	go test -v -tags=integration ./test/integration/...
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/auth/ratelimit"
	gwhandler "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/gateway/handler"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/postgres"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	cfg := testPostgresConfig()
	db, err := postgres.New(cfg)
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "bioannotate_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "bioannotate"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// newGatewayServer creates a test gateway backed by a real PostgreSQL
// database, with stub ingestion/recognizer/analytics backends behind the
// reverse proxies.
func newGatewayServer(t *testing.T, db *postgres.Client) *httptest.Server {
	t.Helper()

	ingestionBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{
			"document_id": "9f8a0d2c41be5a77",
			"status":      "PENDING",
		})
	}))
	t.Cleanup(ingestionBackend.Close)

	recognizerBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"entities":      []any{},
			"count":         0,
			"terminologies": []string{"diseases"},
		})
	}))
	t.Cleanup(recognizerBackend.Close)

	analyticsBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"total_annotate_requests": 0,
			"documents_annotated":     0,
		})
	}))
	t.Cleanup(analyticsBackend.Close)

	validator := apikey.NewValidator(db)
	limiter := ratelimit.New(time.Minute)

	h := gwhandler.New(gwhandler.Config{
		IngestionURL:  ingestionBackend.URL,
		RecognizerURL: recognizerBackend.URL,
		AnalyticsURL:  analyticsBackend.URL,
	}, db, validator, nil)

	chain := router.New(h, validator, limiter, nil)
	return httptest.NewServer(chain)
}

// testKey creates an API key with the given scopes and registers cleanup.
func testKey(t *testing.T, db *postgres.Client, name string, scopes []string, rateLimit int) string {
	t.Helper()
	validator := apikey.NewValidator(db)
	rawKey, err := validator.CreateKey(t.Context(), name, scopes, rateLimit, nil)
	if err != nil {
		t.Fatalf("creating key: %v", err)
	}
	t.Cleanup(func() {
		_ = validator.RevokeKey(t.Context(), rawKey)
	})
	return rawKey
}

func doRequest(t *testing.T, method, url, key string, body []byte) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: request failed: %v", method, url, err)
	}
	return resp
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestHealthEndpoint verifies the gateway health check is accessible without auth.
func TestHealthEndpoint(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newGatewayServer(t, db)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("expected status=ok, got %q", body["status"])
	}
}

// TestUnauthenticatedRequestRejected verifies that API endpoints reject
// requests without an API key.
func TestUnauthenticatedRequestRejected(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newGatewayServer(t, db)
	defer srv.Close()

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/annotate"},
		{"GET", "/api/v1/documents"},
		{"GET", "/api/v1/terminologies"},
		{"GET", "/api/v1/analytics"},
	}

	for _, ep := range endpoints {
		resp := doRequest(t, ep.method, srv.URL+ep.path, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", ep.method, ep.path, resp.StatusCode)
		}
	}
}

// TestAPIKeyLifecycle tests creating, using, and revoking an API key.
func TestAPIKeyLifecycle(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newGatewayServer(t, db)
	defer srv.Close()

	// Create directly through the validator; the admin endpoints also
	// require a key (chicken-and-egg).
	validator := apikey.NewValidator(db)
	rawKey, err := validator.CreateKey(t.Context(), "integration-test", []string{apikey.ScopeAnnotate}, 100, nil)
	if err != nil {
		t.Fatalf("creating key: %v", err)
	}

	body := []byte(`{"text":"Diabetes mellitus impairs insulin response."}`)
	resp := doRequest(t, "POST", srv.URL+"/api/v1/annotate", rawKey, body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, respBody)
	}

	if err := validator.RevokeKey(t.Context(), rawKey); err != nil {
		t.Fatalf("revoking key: %v", err)
	}

	resp2 := doRequest(t, "POST", srv.URL+"/api/v1/annotate", rawKey, body)
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after revoke, got %d", resp2.StatusCode)
	}
}

// TestScopeEnforcement verifies that routes reject keys lacking the
// required scope and accept admin keys everywhere.
func TestScopeEnforcement(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newGatewayServer(t, db)
	defer srv.Close()

	annotateKey := testKey(t, db, "scope-annotate", []string{apikey.ScopeAnnotate}, 100)
	adminKey := testKey(t, db, "scope-admin", []string{apikey.ScopeAdmin}, 100)

	ingestBody := []byte(`{"title":"t","body":"b"}`)

	// An annotate-only key may not ingest or manage terminologies.
	resp := doRequest(t, "POST", srv.URL+"/api/v1/documents", annotateKey, ingestBody)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("ingest with annotate key: expected 403, got %d", resp.StatusCode)
	}
	resp = doRequest(t, "DELETE", srv.URL+"/api/v1/terminologies/diseases", annotateKey, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("terminology delete with annotate key: expected 403, got %d", resp.StatusCode)
	}

	// An admin key passes every scope check.
	resp = doRequest(t, "POST", srv.URL+"/api/v1/documents", adminKey, ingestBody)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("ingest with admin key: expected 202, got %d", resp.StatusCode)
	}
}

// TestDocumentIngestProxy verifies that document submissions are proxied
// through the gateway to the ingestion backend.
func TestDocumentIngestProxy(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newGatewayServer(t, db)
	defer srv.Close()

	ingestKey := testKey(t, db, "ingest-test", []string{apikey.ScopeIngest}, 100)

	payload := map[string]string{
		"title": "Sample article",
		"body":  "Diabetes mellitus (DM) is a metabolic disorder.",
	}
	body, _ := json.Marshal(payload)

	resp := doRequest(t, "POST", srv.URL+"/api/v1/documents", ingestKey, body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, respBody)
	}
	var result map[string]any
	json.NewDecoder(resp.Body).Decode(&result)
	if result["document_id"] == "" {
		t.Error("expected a document_id in the ingest response")
	}
}

// TestAdminKeyManagement creates and lists API keys through the gateway's
// admin endpoints.
func TestAdminKeyManagement(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newGatewayServer(t, db)
	defer srv.Close()

	adminKey := testKey(t, db, "admin-mgmt", []string{apikey.ScopeAdmin}, 100)

	body := []byte(`{"name":"created-via-gateway","scopes":["annotate"],"rate_limit":10}`)
	resp := doRequest(t, "POST", srv.URL+"/api/v1/admin/keys", adminKey, body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, respBody)
	}

	var created struct {
		APIKey string `json:"api_key"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	if created.APIKey == "" {
		t.Fatal("expected the raw key in the create response")
	}
	t.Cleanup(func() {
		_ = apikey.NewValidator(db).RevokeKey(t.Context(), created.APIKey)
	})

	resp2 := doRequest(t, "GET", srv.URL+"/api/v1/admin/keys", adminKey, nil)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("list keys: expected 200, got %d", resp2.StatusCode)
	}
	var listed struct {
		Count int `json:"count"`
	}
	json.NewDecoder(resp2.Body).Decode(&listed)
	if listed.Count < 1 {
		t.Errorf("expected at least one active key, got %d", listed.Count)
	}
}

// TestRateLimiting verifies that the gateway enforces per-key rate limits.
func TestRateLimiting(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newGatewayServer(t, db)
	defer srv.Close()

	rawKey := testKey(t, db, "ratelimit-test", []string{apikey.ScopeAnnotate}, 2)
	body := []byte(`{"text":"insulin"}`)

	// First 2 requests should succeed.
	for i := 0; i < 2; i++ {
		resp := doRequest(t, "POST", srv.URL+"/api/v1/annotate", rawKey, body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i, resp.StatusCode)
		}
	}

	// 3rd request should be rate limited.
	resp := doRequest(t, "POST", srv.URL+"/api/v1/annotate", rawKey, body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", resp.StatusCode)
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

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
