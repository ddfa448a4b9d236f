package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"lokkagw/internal/domain"
	"lokkagw/internal/infra/telemetry"
)

// Bridge forwards raw JSON-RPC requests to the child.
type Bridge interface {
	domain.Caller
	Ready() bool
}

// Catalog serves the cached tool list.
type Catalog interface {
	Get(ctx context.Context, forceRefresh bool) (domain.ToolCatalogSnapshot, error)
	Snapshot() domain.ToolCatalogSnapshot
}

type Handler struct {
	bridge       Bridge
	catalog      Catalog
	logger       *zap.Logger
	metrics      domain.Metrics
	now          func() time.Time
	maxBodyBytes int64
	root         http.Handler
}

type Options struct {
	Bridge  Bridge
	Catalog Catalog
	Logger  *zap.Logger
	Metrics domain.Metrics
	// MaxBodyBytes caps POST /mcp bodies; a request larger than one child
	// line could never be answered.
	MaxBodyBytes int64
	Now          func() time.Time
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = domain.DefaultMaxLineBytes
	}
	h := &Handler{
		bridge:       opts.Bridge,
		catalog:      opts.Catalog,
		logger:       logger.Named("http"),
		metrics:      metrics,
		now:          now,
		maxBodyBytes: maxBody,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleStatus)
	mux.HandleFunc("POST /mcp", h.handleMCP)
	mux.HandleFunc("GET /tools", h.handleListTools)
	mux.HandleFunc("POST /tools/refresh", h.handleRefreshTools)
	mux.HandleFunc("GET /tools/names", h.handleToolNames)
	mux.HandleFunc("GET /tools/cache/status", h.handleCacheStatus)
	mux.HandleFunc("GET /tools/{toolName}", h.handleGetTool)

	h.root = h.withRequestID(h.recoverPanics(h.instrument(mux)))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var endpoints = []endpoint{
	{http.MethodGet, "/", "Service status"},
	{http.MethodPost, "/mcp", "Forward a JSON-RPC request to Lokka"},
	{http.MethodGet, "/tools", "List tools (cached, refreshed when stale)"},
	{http.MethodPost, "/tools/refresh", "Force a tool catalog refresh"},
	{http.MethodGet, "/tools/names", "List tool names"},
	{http.MethodGet, "/tools/cache/status", "Tool cache status"},
	{http.MethodGet, "/tools/{toolName}", "Get one tool by name"},
}

type statusResponse struct {
	Status      string     `json:"status"`
	LokkaReady  bool       `json:"lokkaReady"`
	CachedTools int        `json:"cachedTools"`
	LastFetch   *string    `json:"lastFetch"`
	Endpoints   []endpoint `json:"endpoints"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.catalog.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		Status:      "running",
		LokkaReady:  h.bridge.Ready(),
		CachedTools: snap.Count(),
		LastFetch:   timestamp(snap),
		Endpoints:   endpoints,
	})
}
