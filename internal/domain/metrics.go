package domain

import (
	"errors"
	"time"
)

// CallStatus labels the outcome of a child round trip.
type CallStatus string

const (
	CallStatusSuccess   CallStatus = "success"
	CallStatusTimeout   CallStatus = "timeout"
	CallStatusMalformed CallStatus = "malformed"
	CallStatusNotReady  CallStatus = "not_ready"
	CallStatusClosed    CallStatus = "closed"
	CallStatusError     CallStatus = "error"
)

// CallStatusFromError classifies a round-trip error for metric labels.
func CallStatusFromError(err error) CallStatus {
	if err == nil {
		return CallStatusSuccess
	}
	code, _ := CodeFrom(err)
	switch code {
	case CodeDeadlineExceeded:
		return CallStatusTimeout
	case CodeInternal:
		return CallStatusMalformed
	case CodeUnavailable:
		if errors.Is(err, ErrNotReady) {
			return CallStatusNotReady
		}
		return CallStatusClosed
	default:
		return CallStatusError
	}
}

// Metrics records operational metrics for the gateway.
type Metrics interface {
	ObserveChildCall(method string, status CallStatus, duration time.Duration)
	ObserveCatalogRefresh(err error, duration time.Duration)
	SetCatalogTools(count int)
	ObserveHTTPRequest(route string, status int, duration time.Duration)
}
