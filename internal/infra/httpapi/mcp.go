package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"lokkagw/internal/domain"
	"lokkagw/internal/infra/mcpcodec"
	"lokkagw/internal/infra/telemetry"
)

type mcpResponse struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (h *Handler) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, h.maxBodyBytes)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body", Details: "request body must be a JSON-RPC object"})
		return
	}

	raw, err := h.bridge.Call(r.Context(), body)
	if err != nil {
		h.writeCallError(w, r, err)
		return
	}
	if raw == nil {
		writeJSON(w, http.StatusAccepted, mcpResponse{Message: "Notification forwarded", Data: json.RawMessage("null")})
		return
	}
	result := mcpcodec.Normalize(raw)
	writeJSON(w, http.StatusOK, mcpResponse{
		Message: mcpcodec.Message(result.Tag),
		Data:    result.Payload,
	})
}

type malformedResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Raw     string `json:"raw"`
}

func (h *Handler) writeCallError(w http.ResponseWriter, r *http.Request, err error) {
	telemetry.LoggerWithRequest(r.Context(), h.logger).Warn("mcp request failed", zap.Error(err))

	var malformed *domain.MalformedError
	if errors.As(err, &malformed) {
		writeJSON(w, http.StatusInternalServerError, malformedResponse{
			Error:   "Failed to parse Lokka response",
			Details: err.Error(),
			Raw:     malformed.Raw,
		})
		return
	}
	writeJSON(w, statusFromError(err), errorResponse{
		Error:   "Failed to process MCP request",
		Details: err.Error(),
	})
}
