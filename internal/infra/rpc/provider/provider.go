// Package provider implements the HTTP transports used to reach external sources.
//
// This package contains:
//   - HTTPProvider: JSON-RPC 1.0 calls and REST GETs over one HTTP endpoint
//   - BaseProvider: health and latency tracking shared by providers
//   - StatusError / RPCError: typed failures callers can classify
package provider

import (
	"fmt"
	"time"
)

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool
	Latency       time.Duration
	ErrorRate     float64
	LastSuccessAt time.Time
	LastFailureAt time.Time
}

// StatusError is returned when an endpoint answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
