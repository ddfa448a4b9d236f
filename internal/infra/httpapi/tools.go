package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"lokkagw/internal/domain"
	"lokkagw/internal/infra/telemetry"
)

const toolSuggestion = "Use GET /tools/names to list available tools"

type toolsResponse struct {
	Success        bool                    `json:"success"`
	Message        string                  `json:"message"`
	Tools          []domain.ToolDescriptor `json:"tools"`
	Count          int                     `json:"count"`
	CacheTimestamp *string                 `json:"cacheTimestamp"`
	CacheAge       *int64                  `json:"cacheAge,omitempty"`
}

type toolsErrorResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	Details     string `json:"details"`
	CachedTools int    `json:"cachedTools"`
}

type toolNamesResponse struct {
	Success        bool     `json:"success"`
	Names          []string `json:"names"`
	Count          int      `json:"count"`
	CacheTimestamp *string  `json:"cacheTimestamp"`
}

type toolResponse struct {
	Success        bool                  `json:"success"`
	Tool           domain.ToolDescriptor `json:"tool"`
	CacheTimestamp *string               `json:"cacheTimestamp"`
}

type toolNotFoundResponse struct {
	Error          string   `json:"error"`
	AvailableTools []string `json:"availableTools"`
	Suggestion     string   `json:"suggestion"`
}

type cacheStatusResponse struct {
	ToolsCount  int     `json:"toolsCount"`
	LastUpdated *string `json:"lastUpdated"`
	AgeMs       *int64  `json:"ageMs"`
	AgeMinutes  *int64  `json:"ageMinutes"`
	LokkaReady  bool    `json:"lokkaReady"`
}

func (h *Handler) handleListTools(w http.ResponseWriter, r *http.Request) {
	before := h.catalog.Snapshot()
	snap, err := h.catalog.Get(r.Context(), false)
	if err != nil {
		h.writeRefreshError(w, r, snap, err)
		return
	}
	message := "Tools retrieved from cache"
	if !snap.FetchedAt.Equal(before.FetchedAt) {
		message = "Tools fetched from Lokka"
	}
	age := snap.Age(h.now()).Milliseconds()
	setETag(w, snap)
	writeJSON(w, http.StatusOK, toolsResponse{
		Success:        true,
		Message:        message,
		Tools:          nonNilTools(snap.Tools),
		Count:          snap.Count(),
		CacheTimestamp: timestamp(snap),
		CacheAge:       &age,
	})
}

func (h *Handler) handleRefreshTools(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Get(r.Context(), true)
	if err != nil {
		h.writeRefreshError(w, r, snap, err)
		return
	}
	setETag(w, snap)
	writeJSON(w, http.StatusOK, toolsResponse{
		Success:        true,
		Message:        "Tools cache refreshed",
		Tools:          nonNilTools(snap.Tools),
		Count:          snap.Count(),
		CacheTimestamp: timestamp(snap),
	})
}

func (h *Handler) handleToolNames(w http.ResponseWriter, r *http.Request) {
	snap := h.currentCatalog(r.Context())
	names := snap.Names()
	writeJSON(w, http.StatusOK, toolNamesResponse{
		Success:        true,
		Names:          names,
		Count:          len(names),
		CacheTimestamp: timestamp(snap),
	})
}

func (h *Handler) handleGetTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("toolName")
	snap := h.currentCatalog(r.Context())
	tool, err := snap.Lookup(name)
	if err != nil {
		var notFound *domain.ToolNotFoundError
		if !errors.As(err, &notFound) {
			writeJSON(w, statusFromError(err), errorResponse{Error: "Failed to look up tool", Details: err.Error()})
			return
		}
		available := notFound.Available
		if available == nil {
			available = []string{}
		}
		writeJSON(w, http.StatusNotFound, toolNotFoundResponse{
			Error:          fmt.Sprintf("Tool '%s' not found", name),
			AvailableTools: available,
			Suggestion:     toolSuggestion,
		})
		return
	}
	writeJSON(w, http.StatusOK, toolResponse{
		Success:        true,
		Tool:           tool,
		CacheTimestamp: timestamp(snap),
	})
}

func (h *Handler) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.catalog.Snapshot()
	resp := cacheStatusResponse{
		ToolsCount:  snap.Count(),
		LastUpdated: timestamp(snap),
		LokkaReady:  h.bridge.Ready(),
	}
	if snap.Fetched() {
		age := snap.Age(h.now())
		ms := age.Milliseconds()
		minutes := int64(age.Minutes())
		resp.AgeMs = &ms
		resp.AgeMinutes = &minutes
	}
	writeJSON(w, http.StatusOK, resp)
}

// currentCatalog applies the normal freshness policy but falls back to the
// last snapshot when the refresh fails, so lookups keep working while the
// child is unhealthy.
func (h *Handler) currentCatalog(ctx context.Context) domain.ToolCatalogSnapshot {
	snap, err := h.catalog.Get(ctx, false)
	if err != nil {
		telemetry.LoggerWithRequest(ctx, h.logger).Warn("serving stale tool catalog", zap.Error(err))
	}
	return snap
}

func (h *Handler) writeRefreshError(w http.ResponseWriter, r *http.Request, snap domain.ToolCatalogSnapshot, err error) {
	telemetry.LoggerWithRequest(r.Context(), h.logger).Warn("tool catalog request failed",
		zap.Int("cachedTools", snap.Count()),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, toolsErrorResponse{
		Success:     false,
		Error:       "Failed to fetch tools from Lokka",
		Details:     err.Error(),
		CachedTools: snap.Count(),
	})
}

func nonNilTools(tools []domain.ToolDescriptor) []domain.ToolDescriptor {
	if tools == nil {
		return []domain.ToolDescriptor{}
	}
	return tools
}

func setETag(w http.ResponseWriter, snap domain.ToolCatalogSnapshot) {
	if snap.ETag != "" {
		w.Header().Set("ETag", `"`+snap.ETag+`"`)
	}
}
