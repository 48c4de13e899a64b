// Package auth provides the authenticated console API client. A Client owns
// the credential store, the request dispatcher, the single-flight refresh
// coordinator and the proactive renewal scheduler, and is constructed
// explicitly and injected into page code rather than living as a package
// global.
package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-console-client/auth/refresh"
	"github.com/jrsteele09/go-console-client/auth/reporter"
	"github.com/jrsteele09/go-console-client/credentials"
	"github.com/jrsteele09/go-console-client/internal/config"
	internalerrors "github.com/jrsteele09/go-console-client/internal/errors"
	"github.com/jrsteele09/go-console-client/transport"
)

// SessionExpiredHook is invoked once when the session is terminally dead
// (refresh failed or no refresh token). The UI layer uses it to redirect to
// the login entry point.
type SessionExpiredHook func()

// Client is the console API client.
type Client struct {
	store       credentials.Store
	dispatcher  *transport.Dispatcher
	coordinator *refresh.Coordinator
	scheduler   *refresh.Scheduler
	reporter    *reporter.Reporter
	log         zerolog.Logger

	onSessionExpired SessionExpiredHook
	nowTime          func() time.Time

	// sessionLock orders refresh writes against Logout: Logout bumps the
	// epoch and clears the store as one step, so a refresh that was in
	// flight when the user logged out discards its result instead of
	// re-persisting a live credential.
	sessionLock  sync.Mutex
	sessionEpoch uint64
}

// Option modifies a Client during construction.
type Option func(*Client)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// WithSessionExpiredHook registers the redirect-to-login hook.
func WithSessionExpiredHook(hook SessionExpiredHook) Option {
	return func(c *Client) {
		c.onSessionExpired = hook
	}
}

// WithLogger sets the client logger, shared with its collaborators.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithDispatcher replaces the request dispatcher (primarily for testing).
func WithDispatcher(dispatcher *transport.Dispatcher) Option {
	return func(c *Client) {
		c.dispatcher = dispatcher
	}
}

// New creates a Client and restores any persisted session: when the store
// already holds a complete credential the proactive renewal scheduler starts
// immediately.
func New(cfg config.Config, store credentials.Store, options ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("[auth.New] config is required")
	}
	if store == nil {
		return nil, errors.New("[auth.New] credential store is required")
	}

	c := &Client{
		store:   store,
		log:     zerolog.Nop(),
		nowTime: time.Now,
	}

	for _, opt := range options {
		opt(c)
	}

	if c.dispatcher == nil {
		dispatcher, err := transport.NewDispatcher(cfg, store, transport.WithLogger(c.log))
		if err != nil {
			return nil, errors.Wrap(err, "[auth.New] create dispatcher")
		}
		c.dispatcher = dispatcher
	}

	c.reporter = reporter.New(c.log)

	coordinator, err := refresh.NewCoordinator(
		c.refresh,
		refresh.WithResultHook(c.handleRefreshResult),
		refresh.WithTimeout(cfg.GetRefreshRequestTimeout()),
		refresh.WithLogger(c.log),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[auth.New] create refresh coordinator")
	}
	c.coordinator = coordinator

	scheduler, err := refresh.NewScheduler(
		cfg.GetRefreshInterval(),
		c.proactiveRefresh,
		c.log,
	)
	if err != nil {
		return nil, errors.Wrap(err, "[auth.New] create refresh scheduler")
	}
	c.scheduler = scheduler

	c.restore()

	return c, nil
}

// OnError registers the UI callback for non-auth failures.
func (c *Client) OnError(callback reporter.Callback) {
	c.reporter.Register(callback)
}

// Authenticated reports whether the client holds a complete credential.
func (c *Client) Authenticated() bool {
	credential, ok := c.store.Get()
	return ok && credential.Authenticated()
}

// User returns the cached profile of the logged-in user, if any.
func (c *Client) User() (*credentials.UserProfile, bool) {
	credential, ok := c.store.Get()
	if !ok || credential.User == nil {
		return nil, false
	}
	return credential.User, true
}

// restore adopts a persisted credential on construction so a reloaded page
// keeps its session without logging in again.
func (c *Client) restore() {
	credential, ok := c.store.Get()
	if !ok || !credential.Authenticated() {
		return
	}
	c.log.Info().Msg("session restored from persisted credentials")
	c.scheduler.Start()
}

// Login submits the email address, beginning the two-step login. The
// returned session is consumed by VerifyOTP and is never persisted.
func (c *Client) Login(ctx context.Context, email string) (*Session, error) {
	resp, err := c.dispatcher.Do(ctx, transport.Request{
		Backend: transport.BackendConfig,
		Method:  http.MethodPost,
		Path:    "/auth/login",
		Body:    loginRequest{Email: email},
	})
	if err != nil {
		c.reporter.Report(err)
		return nil, internalerrors.Wrapf(err, "[Client Login] login request")
	}

	var session Session
	if err := resp.Decode(&session); err != nil {
		return nil, internalerrors.Wrapf(err, "[Client Login] decode session")
	}
	return &session, nil
}

// VerifyOTP completes login with the one-time passcode. On success the
// credential is persisted as one unit and proactive renewal starts.
func (c *Client) VerifyOTP(
	ctx context.Context,
	session *Session,
	otpCode string,
) (*credentials.Credential, error) {
	if session == nil || session.SessionID == "" {
		return nil, errors.New("[Client VerifyOTP] login session is required")
	}

	resp, err := c.dispatcher.Do(ctx, transport.Request{
		Backend: transport.BackendConfig,
		Method:  http.MethodPost,
		Path:    "/auth/verify-otp",
		Body:    verifyOTPRequest{SessionID: session.SessionID, OTPCode: otpCode},
	})
	if err != nil {
		c.reporter.Report(err)
		return nil, internalerrors.Wrapf(err, "[Client VerifyOTP] verify request")
	}

	var verified verifyOTPResponse
	if err := resp.Decode(&verified); err != nil {
		return nil, internalerrors.Wrapf(err, "[Client VerifyOTP] decode response")
	}

	credential := &credentials.Credential{
		AccessToken:  verified.AccessToken,
		RefreshToken: verified.RefreshToken,
		User:         &verified.User,
	}
	if exp, err := credentials.AccessTokenExpiry(verified.AccessToken); err == nil {
		credential.ExpiresAt = exp
	}

	if err := c.store.Set(credential); err != nil {
		return nil, internalerrors.Wrapf(err, "[Client VerifyOTP] persist credential")
	}

	c.log.Info().Str("user", verified.User.Email).Msg("logged in")
	c.scheduler.Start()

	return credential, nil
}

// Me fetches the current user's profile from the server and updates the
// cached copy, detecting revocation. Called at least once per session by the
// console shell.
func (c *Client) Me(ctx context.Context) (*credentials.UserProfile, error) {
	resp, err := c.Do(ctx, transport.Request{
		Backend: transport.BackendConfig,
		Method:  http.MethodGet,
		Path:    "/auth/me",
	})
	if err != nil {
		return nil, internalerrors.Wrapf(err, "[Client Me] profile request")
	}

	var profile credentials.UserProfile
	if err := resp.Decode(&profile); err != nil {
		return nil, internalerrors.Wrapf(err, "[Client Me] decode profile")
	}

	if err := c.store.UpdateUser(&profile); err != nil {
		c.log.Warn().Err(err).Msg("persist refreshed profile")
	}

	return &profile, nil
}

// Logout tears down the session: best-effort server-side revocation, then
// local cleanup. Idempotent; calling it when already logged out is a no-op.
func (c *Client) Logout(ctx context.Context) error {
	credential, ok := c.store.Get()
	if ok && credential.RefreshToken != "" {
		_, err := c.dispatcher.Do(ctx, transport.Request{
			Backend: transport.BackendConfig,
			Method:  http.MethodPost,
			Path:    "/auth/logout",
			Body:    logoutRequest{RefreshToken: credential.RefreshToken},
		})
		if err != nil {
			// Local logout proceeds regardless; the refresh token simply ages
			// out server-side.
			c.log.Warn().Err(err).Msg("server-side logout failed")
		}
	}

	c.scheduler.Stop()
	c.coordinator.Reset(internalerrors.ErrSessionExpired)

	c.sessionLock.Lock()
	c.sessionEpoch++
	clearErr := c.store.Clear()
	c.sessionLock.Unlock()
	if clearErr != nil {
		return internalerrors.Wrapf(clearErr, "[Client Logout] clear credentials")
	}

	c.log.Info().Msg("logged out")
	return nil
}

// Do sends a resource request with the current access token. On a 401 it
// joins the single-flight refresh and replays the request exactly once
// against the new token; a second 401 means the session is gone. Page code
// never sees a raw 401: auth failures come back as ErrSessionExpired after
// the redirect hook has fired.
func (c *Client) Do(ctx context.Context, request transport.Request) (*transport.Response, error) {
	resp, err := c.dispatcher.Do(ctx, request)
	if err == nil {
		return resp, nil
	}

	if !transport.IsUnauthorized(err) {
		c.reporter.Report(err)
		return nil, err
	}

	if refreshErr := c.coordinator.Await(ctx); refreshErr != nil {
		if !isAuthFailure(refreshErr) {
			// Transient refresh failure (network, 5xx): the session is
			// intact, so surface it like any other non-auth error.
			c.reporter.Report(refreshErr)
			return nil, internalerrors.Wrapf(refreshErr, "[Client Do] refresh after 401")
		}
		return nil, internalerrors.Wrapf(
			internalerrors.ErrSessionExpired,
			"[Client Do] refresh after 401: %v", refreshErr,
		)
	}

	// Single replay with the refreshed token. A request rejected again is not
	// allowed to trigger another refresh.
	resp, err = c.dispatcher.Do(ctx, request)
	if err == nil {
		return resp, nil
	}
	if transport.IsUnauthorized(err) {
		return nil, internalerrors.Wrapf(
			internalerrors.ErrSessionExpired,
			"[Client Do] request rejected after refresh",
		)
	}

	c.reporter.Report(err)
	return nil, err
}

// refresh exchanges the stored refresh token for a new access token and
// persists the result. Runs only inside the coordinator's single flight.
func (c *Client) refresh(ctx context.Context) error {
	c.sessionLock.Lock()
	epoch := c.sessionEpoch
	c.sessionLock.Unlock()

	credential, ok := c.store.Get()
	if !ok || credential.RefreshToken == "" {
		// Nothing to exchange; fail without a network call.
		return internalerrors.ErrNoRefreshToken
	}

	resp, err := c.dispatcher.Do(ctx, transport.Request{
		Backend: transport.BackendConfig,
		Method:  http.MethodPost,
		Path:    "/auth/refresh",
		Body:    refreshRequest{RefreshToken: credential.RefreshToken},
	})
	if err != nil {
		return internalerrors.Wrapf(err, "[Client refresh] refresh request")
	}

	var refreshed refreshResponse
	if err := resp.Decode(&refreshed); err != nil {
		return internalerrors.Wrapf(err, "[Client refresh] decode response")
	}
	if refreshed.AccessToken == "" {
		return internalerrors.Wrapf(internalerrors.ErrRefreshFailed, "[Client refresh] empty access token")
	}

	credential.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		credential.RefreshToken = refreshed.RefreshToken
	}
	if refreshed.ExpiresIn > 0 {
		credential.ExpiresAt = c.nowTime().Add(time.Duration(refreshed.ExpiresIn) * time.Second)
	} else if exp, err := credentials.AccessTokenExpiry(refreshed.AccessToken); err == nil {
		credential.ExpiresAt = exp
	}

	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()
	if c.sessionEpoch != epoch {
		// Logout won the race; dropping the result keeps storage empty.
		return internalerrors.ErrSessionExpired
	}
	if err := c.store.Set(credential); err != nil {
		return internalerrors.Wrapf(err, "[Client refresh] persist credential")
	}

	return nil
}

// proactiveRefresh is the scheduler's tick. It routes through the coordinator
// so a tick can never race a request-triggered refresh.
func (c *Client) proactiveRefresh(ctx context.Context) error {
	credential, ok := c.store.Get()
	if !ok || credential.RefreshToken == "" {
		return internalerrors.ErrNoRefreshToken
	}
	if !credential.ExpiresAt.IsZero() {
		c.log.Debug().
			Dur("until_expiry", credential.ExpiresAt.Sub(c.nowTime())).
			Msg("proactive renewal tick")
	}
	return c.coordinator.Await(ctx)
}

// isAuthFailure reports whether a refresh outcome means the session is dead,
// as opposed to the attempt having transiently failed.
func isAuthFailure(err error) bool {
	return transport.IsUnauthorized(err) ||
		internalerrors.Is(err, internalerrors.ErrNoRefreshToken) ||
		internalerrors.Is(err, internalerrors.ErrSessionExpired)
}

// handleRefreshResult escalates terminal refresh failures to a full logout:
// credentials are cleared, the scheduler stops, and the redirect hook fires.
// Transient failures (network, 5xx) are left alone so a later attempt can
// succeed, and a refresh discarded because Logout won the race needs no
// cleanup of its own.
func (c *Client) handleRefreshResult(err error) {
	if err == nil {
		return
	}
	if !transport.IsUnauthorized(err) && !internalerrors.Is(err, internalerrors.ErrNoRefreshToken) {
		return
	}

	c.log.Info().Err(err).Msg("session expired, clearing credentials")

	if clearErr := c.store.Clear(); clearErr != nil {
		c.log.Warn().Err(clearErr).Msg("clear credentials after refresh failure")
	}
	c.scheduler.Stop()

	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}
