// Package router wires up all API gateway routes and applies the middleware
// chain (RequestID → CORS → Auth → RateLimit).
package router

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/auth/ratelimit"
	gwhandler "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/gateway/middleware"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/middleware"
)

// New builds the full gateway HTTP handler with all routes and middleware.
//
// Route table (scope in brackets):
//
//	POST   /api/v1/documents                    → ingestion service (proxy)   [ingest]
//	GET    /api/v1/documents                    → list documents   (direct DB) [annotate]
//	GET    /api/v1/documents/{id}               → get document     (direct DB) [annotate]
//	GET    /api/v1/documents/{id}/annotations   → recognizer       (proxy)     [annotate]
//	POST   /api/v1/annotate                     → recognizer       (proxy)     [annotate]
//	GET    /api/v1/terminologies                → recognizer       (proxy)     [annotate]
//	GET    /api/v1/terminologies/{name}         → recognizer       (proxy)     [annotate]
//	POST   /api/v1/terminologies                → recognizer       (proxy)     [admin]
//	DELETE /api/v1/terminologies/{name}         → recognizer       (proxy)     [admin]
//	POST   /api/v1/terminologies/{name}/reload  → recognizer       (proxy)     [admin]
//	GET    /api/v1/annotator/stats              → recognizer       (proxy)     [annotate]
//	GET    /api/v1/analytics                    → analytics        (proxy)     [annotate]
//	GET    /api/v1/analytics/snapshots          → analytics        (proxy)     [annotate]
//	GET    /api/v1/cache/stats                  → recognizer       (proxy)     [annotate]
//	POST   /api/v1/cache/invalidate             → recognizer       (proxy)     [admin]
//	POST   /api/v1/admin/keys                   → create API key   (direct DB) [admin]
//	GET    /api/v1/admin/keys                   → list API keys    (direct DB) [admin]
//	GET    /health                              → gateway health
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Auth → RateLimit → scope check → handler
func New(h *gwhandler.Handler, validator *apikey.Validator, limiter *ratelimit.Limiter, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	// Health (unauthenticated)
	mux.HandleFunc("GET /health", h.Health)

	// Document API
	mux.Handle("POST /api/v1/documents", scoped(apikey.ScopeIngest, h.ProxyIngest))
	mux.Handle("GET /api/v1/documents", scoped(apikey.ScopeAnnotate, h.ListDocuments))
	mux.Handle("GET /api/v1/documents/{id}", scoped(apikey.ScopeAnnotate, h.GetDocument))
	mux.Handle("GET /api/v1/documents/{id}/annotations", scoped(apikey.ScopeAnnotate, h.ProxyAnnotations))

	// Annotation API
	mux.Handle("POST /api/v1/annotate", scoped(apikey.ScopeAnnotate, h.ProxyAnnotate))

	// Terminology API (reads for annotators, mutations for admins)
	mux.Handle("GET /api/v1/terminologies", scoped(apikey.ScopeAnnotate, h.ProxyTerminologies))
	mux.Handle("GET /api/v1/terminologies/{name}", scoped(apikey.ScopeAnnotate, h.ProxyTerminologies))
	mux.Handle("POST /api/v1/terminologies", scoped(apikey.ScopeAdmin, h.ProxyTerminologies))
	mux.Handle("DELETE /api/v1/terminologies/{name}", scoped(apikey.ScopeAdmin, h.ProxyTerminologies))
	mux.Handle("POST /api/v1/terminologies/{name}/reload", scoped(apikey.ScopeAdmin, h.ProxyTerminologies))

	// Annotator / analytics API
	mux.Handle("GET /api/v1/annotator/stats", scoped(apikey.ScopeAnnotate, h.ProxyAnnotatorStats))
	mux.Handle("GET /api/v1/analytics", scoped(apikey.ScopeAnnotate, h.ProxyAnalytics))
	mux.Handle("GET /api/v1/analytics/snapshots", scoped(apikey.ScopeAnnotate, h.ProxyAnalytics))

	// Cache API
	mux.Handle("GET /api/v1/cache/stats", scoped(apikey.ScopeAnnotate, h.ProxyCacheStats))
	mux.Handle("POST /api/v1/cache/invalidate", scoped(apikey.ScopeAdmin, h.ProxyCacheInvalidate))

	// Admin API
	mux.Handle("POST /api/v1/admin/keys", scoped(apikey.ScopeAdmin, h.CreateAPIKey))
	mux.Handle("GET /api/v1/admin/keys", scoped(apikey.ScopeAdmin, h.ListAPIKeys))

	corsCfg := gwmw.DefaultCORSConfig()
	if len(allowedOrigins) > 0 {
		corsCfg.AllowOrigins = allowedOrigins
	}

	// Middleware chain — applied inside-out:
	// request → RequestID → CORS → Auth → RateLimit → mux
	var chain http.Handler = mux
	chain = gwmw.RateLimit(limiter)(chain)
	chain = gwmw.Auth(validator)(chain)
	chain = gwmw.CORS(corsCfg)(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}

// scoped wraps a handler with a per-route scope requirement.
func scoped(scope string, fn http.HandlerFunc) http.Handler {
	return gwmw.RequireScope(scope)(fn)
}
