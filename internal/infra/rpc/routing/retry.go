package routing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/addrindex/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxRetries   uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:   3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFatal
)

// bitcoind error codes that no retry will fix.
var fatalRPCCodes = map[int]bool{
	-32700: true, // parse error
	-32600: true, // invalid request
	-32601: true, // method not found
	-32602: true, // invalid params
	-8:     true, // invalid parameter, e.g. block height out of range
	-5:     true, // invalid address or key, e.g. no such transaction
	-1:     true, // misc error (bad argument types)
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry // Should not happen
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ActionFatal
	}

	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		if fatalRPCCodes[rpcErr.Code] {
			return ActionFatal
		}
		return ActionRetry
	}

	var statusErr *provider.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusTooManyRequests:
			return ActionRetry
		case statusErr.Code >= 500:
			return ActionRetry
		default:
			return ActionFatal
		}
	}

	s := err.Error()
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") {
		return ActionFatal
	}

	// Default to Retry (Network, decode of a truncated body, etc)
	return ActionRetry
}

// Do runs fn with exponential backoff until it succeeds, fails with a fatal
// error or the retry budget is spent. The last error is returned unchanged.
func Do(ctx context.Context, config RetryConfig, fn func(ctx context.Context) error) error {
	backoff := retry.NewExponential(config.InitialDelay)
	if config.MaxDelay > 0 {
		backoff = retry.WithCappedDuration(config.MaxDelay, backoff)
	}
	backoff = retry.WithMaxRetries(config.MaxRetries, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ClassifyError(err) == ActionFatal {
			return err
		}
		return retry.RetryableError(err)
	})
}
