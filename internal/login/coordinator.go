// Package login coordinates the login page: the form inputs, the single
// outbound login request and the authUser invalidation that follows success.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shindakun/btweet/internal/apiclient"
	"github.com/shindakun/btweet/internal/metrics"
	"github.com/shindakun/btweet/internal/models"
	"github.com/shindakun/btweet/internal/querycache"
)

var (
	// ErrSuperseded is returned to a submission replaced by a newer one
	ErrSuperseded = errors.New("login submission superseded")

	// ErrClosed is returned once the page has been torn down
	ErrClosed = errors.New("login page closed")
)

// Authenticator performs the login call against the auth API
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (json.RawMessage, error)
}

// Coordinator runs login submissions for one page and owns its RequestState.
// A new submission cancels and replaces the one in flight, so only the latest
// submission can change the state or invalidate the cache.
type Coordinator struct {
	auth        Authenticator
	invalidator querycache.Invalidator
	key         querycache.Key
	metrics     *metrics.Metrics
	logger      *zap.Logger

	mu     sync.Mutex
	state  models.RequestState
	seq    uint64
	cancel context.CancelFunc
	closed bool
}

// NewCoordinator creates a coordinator that invalidates key after a successful login
func NewCoordinator(auth Authenticator, invalidator querycache.Invalidator, key querycache.Key, m *metrics.Metrics, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		auth:        auth,
		invalidator: invalidator,
		key:         key,
		metrics:     m,
		logger:      logger,
		state:       models.Idle(),
	}
}

// State returns the current request state. It waits while a successful
// submission commits.
func (c *Coordinator) State() models.RequestState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CommitFunc persists a successful login, e.g. by writing the session. It runs
// before authUser is invalidated, so refetches observe the new identity.
type CommitFunc func(ctx context.Context, payload json.RawMessage) error

// Submit sends creds to the auth API and waits for the outcome. The returned
// state is Succeeded or Failed; request errors never escape as errors.
// The error is ErrSuperseded when a later Submit replaced this one, or
// ErrClosed when the page was torn down.
func (c *Coordinator) Submit(ctx context.Context, creds models.Credentials) (models.RequestState, error) {
	return c.SubmitAndCommit(ctx, creds, nil)
}

// SubmitAndCommit is Submit with commit run on success while the submission
// still owns the state. A commit error turns the outcome into Failed with the
// generic message and skips the invalidation.
func (c *Coordinator) SubmitAndCommit(ctx context.Context, creds models.Credentials, commit CommitFunc) (models.RequestState, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.RequestState{}, ErrClosed
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	seq := c.seq
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = models.Pending()
	c.mu.Unlock()
	defer cancel()

	start := time.Now()
	payload, err := c.auth.Login(reqCtx, creds)
	elapsed := time.Since(start)

	next := models.Succeeded(payload)
	if err != nil {
		next = models.Failed(failureMessage(err))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.RequestState{}, ErrClosed
	}
	if seq != c.seq {
		c.mu.Unlock()
		c.metrics.ObserveLogin(metrics.OutcomeSuperseded, elapsed)
		c.logger.Debug("login superseded", zap.Duration("elapsed", elapsed))
		return models.RequestState{}, ErrSuperseded
	}
	// Held across commit so no newer submission can interleave with it
	if next.IsSucceeded() && commit != nil {
		if cerr := commit(reqCtx, next.Payload()); cerr != nil {
			c.logger.Warn("failed to commit login", zap.Error(cerr))
			next = models.Failed(apiclient.FallbackMessage)
		}
	}
	c.state = next
	c.cancel = nil
	c.mu.Unlock()

	if next.IsFailed() {
		c.metrics.ObserveLogin(metrics.OutcomeFailed, elapsed)
		c.logger.Debug("login failed", zap.Int("status", statusOf(err)), zap.Duration("elapsed", elapsed))
		return next, nil
	}

	c.metrics.ObserveLogin(metrics.OutcomeSucceeded, elapsed)
	c.logger.Debug("login succeeded", zap.Duration("elapsed", elapsed))
	c.invalidator.Invalidate(c.key)
	return next, nil
}

// Close tears the page down: any in-flight request is cancelled and its
// result discarded, and further submissions fail with ErrClosed
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func failureMessage(err error) string {
	var reqErr *apiclient.RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	return apiclient.FallbackMessage
}

func statusOf(err error) int {
	var reqErr *apiclient.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status
	}
	return 0
}
