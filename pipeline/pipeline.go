package pipeline

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/bookstore-session/internal/metrics"
	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/token/jwt"
)

// HeaderRequestID correlates the first attempt of a request with its retry.
const HeaderRequestID = "X-Request-ID"

// Refresher obtains a new pair for a request that was sent with stale.
// *refresh.Coordinator implements it.
type Refresher interface {
	RefreshFrom(ctx context.Context, stale token.Pair) (token.Pair, error)
}

type action int

const (
	passThrough action = iota
	refreshAndRetry
)

func (a action) String() string {
	if a == refreshAndRetry {
		return "refresh-and-retry"
	}
	return "pass-through"
}

// decide is the complete retry policy. Only a 401 on a request that carried
// a token and has not yet used its one refresh is retried.
func decide(status int, attempted, authenticated bool) action {
	switch {
	case status != http.StatusUnauthorized:
		return passThrough
	case !authenticated:
		return passThrough
	case attempted:
		return passThrough
	}
	return refreshAndRetry
}

type Option func(*Transport)

// WithSkew refreshes before sending when the access token expires within d.
// Zero disables proactive refresh.
func WithSkew(d time.Duration) Option {
	return func(t *Transport) { t.skew = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

// Transport is an http.RoundTripper that authorizes requests with the stored
// access token and recovers from an expired token by refreshing and resending
// the request once.
type Transport struct {
	base      http.RoundTripper
	store     token.Store
	refresher Refresher
	skew      time.Duration
	metrics   *metrics.Metrics
}

var _ http.RoundTripper = (*Transport)(nil)

func New(base http.RoundTripper, store token.Store, refresher Refresher, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{
		base:      base,
		store:     store,
		refresher: refresher,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Client returns an http.Client that sends through t.
func (t *Transport) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: t, Timeout: timeout}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	pair, err := t.store.Get(ctx)
	authenticated := err == nil
	if err != nil && !errors.Is(err, token.ErrNoTokens) {
		closeBody(req)
		return nil, errors.Wrap(err, "[Transport.RoundTrip] read token store")
	}

	requestID := req.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	attempted := false
	if authenticated && t.skew > 0 && jwt.ExpiresWithin(pair.AccessToken, t.skew) {
		attempted = true
		fresh, err := t.refresher.RefreshFrom(ctx, pair)
		switch {
		case err == nil:
			pair = fresh
		case ctx.Err() != nil:
			closeBody(req)
			return nil, ctx.Err()
		default:
			log.Debug().Err(err).Str("request_id", requestID).Msg("proactive refresh failed, sending with current token")
		}
	}

	resp, err := t.send(req, req.Body, pair, authenticated, requestID)
	if err != nil {
		return nil, err
	}
	if decide(resp.StatusCode, attempted, authenticated) == passThrough {
		return resp, nil
	}

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		log.Debug().Str("request_id", requestID).Msg("request body cannot be replayed, not retrying")
		return resp, nil
	}

	fresh, err := t.refresher.RefreshFrom(ctx, pair)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			resp.Body.Close()
			return nil, ctxErr
		}
		log.Debug().Err(err).Str("request_id", requestID).Msg("refresh failed, returning original response")
		return resp, nil
	}

	body := io.ReadCloser(http.NoBody)
	if req.GetBody != nil {
		if body, err = req.GetBody(); err != nil {
			log.Warn().Err(err).Str("request_id", requestID).Msg("failed to replay request body")
			return resp, nil
		}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	t.metrics.ObserveRetry()
	log.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("access", token.Fingerprint(fresh.AccessToken)).
		Msg("retrying request with refreshed token")
	return t.send(req, body, fresh, true, requestID)
}

// send clones req so the caller's request is never modified.
func (t *Transport) send(req *http.Request, body io.ReadCloser, pair token.Pair, authenticated bool, requestID string) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Body = body
	out.Header.Set(HeaderRequestID, requestID)
	if authenticated {
		out.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}
	return t.base.RoundTrip(out)
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}
