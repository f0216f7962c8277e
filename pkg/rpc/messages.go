package rpc

// ---------- Common ----------

// Document represents a document across all services.
type Document struct {
	ID          string `json:"id"`
	ExternalID  string `json:"external_id,omitempty"`
	Title       string `json:"title"`
	Abstract    string `json:"abstract,omitempty"`
	Body        string `json:"body"`
	Source      string `json:"source,omitempty"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
	AnnotatedAt int64  `json:"annotated_at,omitempty"`
}

// Pagination controls limit/offset for list endpoints.
type Pagination struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

// HealthCheckResponse mirrors the gRPC health check spec.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING, UNKNOWN
}

// ---------- Annotator ----------

// AnnotateRequest is the input to the Annotator.Annotate RPC.
type AnnotateRequest struct {
	DocumentID    string   `json:"document_id,omitempty"`
	Text          string   `json:"text"`
	Terminologies []string `json:"terminologies,omitempty"`
	Postfilters   []string `json:"postfilters,omitempty"`
}

// AnnotateResponse is the output of the Annotator.Annotate RPC.
type AnnotateResponse struct {
	Entities  []Entity `json:"entities"`
	LatencyMs int64    `json:"latency_ms"`
}

// Entity is a recognized mention with its resolved concept.
type Entity struct {
	ID            int      `json:"id"`
	Text          string   `json:"text"`
	Start         int      `json:"start"`
	End           int      `json:"end"`
	Type          string   `json:"type"`
	PreferredForm string   `json:"preferred_form"`
	Resource      string   `json:"resource"`
	NativeID      string   `json:"native_id"`
	CUI           string   `json:"cui,omitempty"`
	Extra         []string `json:"extra,omitempty"`
	Terminology   string   `json:"terminology,omitempty"`
	SentenceID    string   `json:"sentence_id,omitempty"`
	Zone          string   `json:"zone,omitempty"`
}

// ---------- Dictionary ----------

// StatsRequest optionally names one terminology ("" = all).
type StatsRequest struct {
	Terminology string `json:"terminology"`
}

// StatsResponse contains terminology-level statistics.
type StatsResponse struct {
	Terminologies []TerminologyStats `json:"terminologies"`
	TotalTerms    int64              `json:"total_terms"`
}

// TerminologyStats holds per-terminology statistics.
type TerminologyStats struct {
	Name     string `json:"name"`
	Status   string `json:"status"` // loading, ready, failed
	Terms    int64  `json:"terms"`
	Keys     int64  `json:"keys"`
	LoadedAt int64  `json:"loaded_at,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ReloadRequest triggers a rebuild of one terminology's index.
type ReloadRequest struct {
	Terminology string `json:"terminology"`
	Force       bool   `json:"force"`
}

// ReloadResponse confirms the reload.
type ReloadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
