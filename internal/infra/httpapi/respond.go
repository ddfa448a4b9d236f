package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"lokkagw/internal/domain"
)

// timestampLayout matches JavaScript's Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFromError maps coded errors onto HTTP status codes. Everything that
// is not the caller's fault is a 500.
func statusFromError(err error) int {
	code, _ := domain.CodeFrom(err)
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// timestamp formats the fetch time, or nil when the catalog was never fetched.
func timestamp(snap domain.ToolCatalogSnapshot) *string {
	if !snap.Fetched() {
		return nil
	}
	s := formatTime(snap.FetchedAt)
	return &s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrInvalidRequest, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return body, nil
}
