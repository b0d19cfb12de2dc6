package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/vietddude/addrindex/internal/core/domain"
	"github.com/vietddude/addrindex/internal/indexing/metrics"
)

// maxErrorBody bounds how much of a failed response body ends up in an error.
const maxErrorBody = 512

// HTTPOptions configures an HTTPProvider.
type HTTPOptions struct {
	Name     string
	Endpoint string
	Timeout  time.Duration

	// Basic auth credentials, sent when User is set.
	User     string
	Password string

	// RequestsPerSecond limits outgoing requests; 0 disables limiting.
	RequestsPerSecond float64
}

// HTTPProvider performs JSON-RPC 1.0 calls and REST GETs against one endpoint.
type HTTPProvider struct {
	*BaseProvider

	endpoint   string
	user       string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPProvider creates a new HTTP-based provider.
func NewHTTPProvider(opts HTTPOptions) *HTTPProvider {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &HTTPProvider{
		BaseProvider: NewBaseProvider(opts.Name),
		endpoint:     strings.TrimRight(opts.Endpoint, "/"),
		user:         opts.User,
		password:     opts.Password,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: limiter,
	}
}

// Call makes a single JSON-RPC 1.0 call and returns the raw result.
func (p *HTTPProvider) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	reqBody := map[string]any{
		"id":     "addrindex",
		"method": method,
		"params": params,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	body, err := p.do(ctx, method, http.MethodPost, p.endpoint, jsonData)
	if err != nil {
		// bitcoind answers RPC errors with HTTP 500 and a JSON body
		var se *StatusError
		if !errors.As(err, &se) {
			return nil, err
		}
		if rpcErr := parseRPCError([]byte(se.Body)); rpcErr != nil {
			return nil, fmt.Errorf("%s: %w: %w", method, domain.ErrFetch, rpcErr)
		}
		return nil, err
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		p.RecordFailure()
		return nil, fmt.Errorf("%s: parse response: %w: %w", method, domain.ErrDecode, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%s: %w: %w", method, domain.ErrFetch, rpcResp.Error)
	}

	return rpcResp.Result, nil
}

// Get performs a REST GET on path (relative to the endpoint) and decodes the JSON body into out.
func (p *HTTPProvider) Get(ctx context.Context, method, path string, out any) error {
	body, err := p.do(ctx, method, http.MethodGet, p.endpoint+path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		p.RecordFailure()
		return fmt.Errorf("%s: parse response: %w: %w", method, domain.ErrDecode, err)
	}
	return nil
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *HTTPProvider) do(ctx context.Context, method, httpMethod, url string, payload []byte) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w: %w", method, domain.ErrFetch, err)
	}

	start := time.Now()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", method, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if p.user != "" {
		req.SetBasicAuth(p.user, p.password)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.RecordFailure()
		p.observe(method, "error", start)
		return nil, fmt.Errorf("%s: request: %w: %w", method, domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.RecordFailure()
		p.observe(method, "error", start)
		return nil, fmt.Errorf("%s: read response: %w: %w", method, domain.ErrFetch, err)
	}

	if resp.StatusCode != http.StatusOK {
		p.RecordFailure()
		p.observe(method, strconv.Itoa(resp.StatusCode), start)
		return nil, fmt.Errorf("%s: %w: %w", method, domain.ErrFetch, &StatusError{
			Code: resp.StatusCode,
			Body: truncate(string(body), maxErrorBody),
		})
	}

	latency := time.Since(start)
	p.RecordSuccess(latency)
	p.observe(method, "200", start)
	return body, nil
}

func (p *HTTPProvider) observe(method, status string, start time.Time) {
	metrics.SourceRequestsTotal.WithLabelValues(p.Name, method, status).Inc()
	metrics.SourceLatency.WithLabelValues(p.Name, method).Observe(time.Since(start).Seconds())
}

func parseRPCError(body []byte) *RPCError {
	var resp struct {
		Error *RPCError `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	return resp.Error
}

// truncate cuts s to at most n bytes on a rune boundary and replaces
// invalid UTF-8 sequences.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
