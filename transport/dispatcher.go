// Package transport routes console API calls to their backend and classifies
// failures. It never retries a 401 itself; that escalation belongs to the
// auth client.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-console-client/credentials"
	"github.com/jrsteele09/go-console-client/internal/config"
)

// Backend selects which of the two console APIs a request targets.
type Backend int

const (
	// BackendConfig is the management/config API; paths are prefixed /api/v1.
	BackendConfig Backend = iota

	// BackendRuntime is the runtime API; paths are used as-is.
	BackendRuntime
)

func (b Backend) String() string {
	if b == BackendRuntime {
		return "runtime"
	}
	return "config"
}

const configAPIPrefix = "/api/v1"

// Request is one logical console API call.
type Request struct {
	Backend Backend
	Method  string
	Path    string // must begin with "/"
	Body    any    // JSON-encoded when non-nil
}

// Response carries the successful response body for the caller to decode.
type Response struct {
	Status    int
	Body      []byte
	RequestID string
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "[Response Decode] unmarshal body")
	}
	return nil
}

// Dispatcher sends requests to the config or runtime backend, attaching the
// current bearer token from the credential store.
type Dispatcher struct {
	configURL  string
	runtimeURL string
	store      credentials.Store
	client     *retry.Client
	timeout    time.Duration
	log        zerolog.Logger
}

// DispatcherOption modifies a Dispatcher during construction.
type DispatcherOption func(*Dispatcher)

// WithHTTPClient replaces the retrying HTTP client (primarily for testing).
func WithHTTPClient(client *retry.Client) DispatcherOption {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(log zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// NewDispatcher creates a Dispatcher for the configured backend base URLs.
func NewDispatcher(
	cfg config.Config,
	store credentials.Store,
	options ...DispatcherOption,
) (*Dispatcher, error) {
	if cfg == nil {
		return nil, errors.New("[NewDispatcher] config is required")
	}
	if store == nil {
		return nil, errors.New("[NewDispatcher] credential store is required")
	}

	d := &Dispatcher{
		configURL:  cfg.GetConfigAPIURL(),
		runtimeURL: cfg.GetRuntimeAPIURL(),
		store:      store,
		timeout:    cfg.GetHTTPTimeout(),
		log:        zerolog.Nop(),
	}

	for _, opt := range options {
		opt(d)
	}

	if d.client == nil {
		baseClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
		retryClient, err := retry.NewBackgroundClient(
			retry.WithHTTPClient(baseClient),
		)
		if err != nil {
			return nil, errors.Wrap(err, "[NewDispatcher] create retry client")
		}
		d.client = retryClient
	}

	return d, nil
}

// rewindOnClose seeks back to the start when the HTTP transport closes the
// body at the end of an attempt, so a retried request re-reads the full body.
type rewindOnClose struct {
	*bytes.Reader
}

func (b rewindOnClose) Close() error {
	_, err := b.Seek(0, io.SeekStart)
	return err
}

// baseURL resolves a request path against its backend.
func (d *Dispatcher) baseURL(backend Backend) string {
	if backend == BackendRuntime {
		return d.runtimeURL
	}
	return d.configURL + configAPIPrefix
}

// Do sends the request and returns the response, or an *APIError describing
// the failure. A 401 comes back as KindUnauthorized without any retry; the
// auth client owns the refresh-and-replay decision.
func (d *Dispatcher) Do(ctx context.Context, request Request) (*Response, error) {
	requestID := uuid.NewString()

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var bodyReader io.Reader
	var encoded []byte
	if request.Body != nil {
		var err error
		encoded, err = json.Marshal(request.Body)
		if err != nil {
			return nil, errors.Wrap(err, "[Dispatcher Do] marshal request body")
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(
		reqCtx,
		request.Method,
		d.baseURL(request.Backend)+request.Path,
		bodyReader,
	)
	if err != nil {
		return nil, errors.Wrap(err, "[Dispatcher Do] create request")
	}

	if request.Body != nil {
		// The retry layer re-sends the same *http.Request; rewinding when
		// the transport closes the body after an attempt keeps every retry
		// from going out with an empty body.
		httpReq.Body = rewindOnClose{bytes.NewReader(encoded)}
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if request.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if credential, ok := d.store.Get(); ok && credential.AccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+credential.AccessToken)
	}

	logger := d.log.With().
		Str("request_id", requestID).
		Str("backend", request.Backend.String()).
		Str("method", request.Method).
		Str("path", request.Path).
		Logger()

	resp, err := d.client.DoWithContext(reqCtx, httpReq)
	if err != nil {
		logger.Warn().Err(err).Msg("request transport failure")
		return nil, networkError(err, requestID)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("read response body")
		return nil, networkError(err, requestID)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := classifyResponse(resp.StatusCode, body, requestID)
		logger.Debug().Int("status", resp.StatusCode).Str("kind", apiErr.Kind.String()).
			Msg("request failed")
		return nil, apiErr
	}

	logger.Debug().Int("status", resp.StatusCode).Msg("request ok")

	return &Response{
		Status:    resp.StatusCode,
		Body:      body,
		RequestID: requestID,
	}, nil
}
