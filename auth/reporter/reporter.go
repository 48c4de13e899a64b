// Package reporter surfaces non-auth request failures to the UI layer.
package reporter

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-console-client/transport"
)

// Callback receives the human-readable message and the underlying error for
// one failure. Registered by the UI layer (a toast, a status bar).
type Callback func(message string, err error)

// Reporter classifies failed requests and invokes the registered callback
// exactly once per failure. 401s are never reported; they are handled
// internally by the refresh coordinator and must not reach the UI as errors.
type Reporter struct {
	log zerolog.Logger

	lock     sync.RWMutex
	callback Callback
}

func New(log zerolog.Logger) *Reporter {
	return &Reporter{log: log}
}

// Register sets the UI callback, replacing any previous one.
func (r *Reporter) Register(callback Callback) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.callback = callback
}

// Report surfaces a failure to the UI. Nil errors and 401s are ignored.
func (r *Reporter) Report(err error) {
	if err == nil || transport.IsUnauthorized(err) {
		return
	}

	message := err.Error()
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		message = apiErr.Message
		r.log.Warn().
			Str("kind", apiErr.Kind.String()).
			Int("status", apiErr.Status).
			Str("request_id", apiErr.RequestID).
			Msg(message)
	} else {
		r.log.Warn().Err(err).Msg("request failed")
	}

	r.lock.RLock()
	callback := r.callback
	r.lock.RUnlock()

	if callback != nil {
		callback(message, err)
	}
}
