package reporter_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-console-client/auth/reporter"
	internalerrors "github.com/jrsteele09/go-console-client/internal/errors"
	"github.com/jrsteele09/go-console-client/transport"
)

type reportedFailure struct {
	message string
	err     error
}

func newTestReporter() (*reporter.Reporter, *[]reportedFailure) {
	r := reporter.New(zerolog.Nop())
	var failures []reportedFailure
	r.Register(func(message string, err error) {
		failures = append(failures, reportedFailure{message: message, err: err})
	})
	return r, &failures
}

func TestReportInvokesCallbackOncePerFailure(t *testing.T) {
	r, failures := newTestReporter()

	apiErr := &transport.APIError{
		Kind:    transport.KindValidation,
		Status:  http.StatusBadRequest,
		Message: "name is required",
	}
	r.Report(apiErr)

	require.Len(t, *failures, 1)
	require.Equal(t, "name is required", (*failures)[0].message)
	require.ErrorIs(t, (*failures)[0].err, apiErr)
}

func TestReportSkipsUnauthorized(t *testing.T) {
	r, failures := newTestReporter()

	r.Report(&transport.APIError{
		Kind:   transport.KindUnauthorized,
		Status: http.StatusUnauthorized,
	})

	require.Empty(t, *failures, "401s are handled internally, never surfaced")
}

func TestReportSkipsNil(t *testing.T) {
	r, failures := newTestReporter()
	r.Report(nil)
	require.Empty(t, *failures)
}

func TestReportUnwrapsAPIError(t *testing.T) {
	r, failures := newTestReporter()

	apiErr := &transport.APIError{
		Kind:    transport.KindServer,
		Status:  http.StatusInternalServerError,
		Message: "upstream exploded",
	}
	r.Report(internalerrors.Wrapf(apiErr, "creating webhook"))

	require.Len(t, *failures, 1)
	require.Equal(t, "upstream exploded", (*failures)[0].message)
}

func TestReportPlainError(t *testing.T) {
	r, failures := newTestReporter()

	plain := errors.New("connection reset")
	r.Report(plain)

	require.Len(t, *failures, 1)
	require.Equal(t, "connection reset", (*failures)[0].message)
}

func TestReportWithoutCallbackDoesNotPanic(t *testing.T) {
	r := reporter.New(zerolog.Nop())
	r.Report(errors.New("nobody is listening"))
}
