package ghauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"
)

// ErrTokenRejected reports that the platform refused the installation token
// mid-call. The cached entry has been invalidated; the caller must acquire a
// fresh token and rebuild whatever client held the old one, then retry.
var ErrTokenRejected = errors.New("installation token rejected")

// TokenSource is the cache surface the executor needs. *TokenCache
// satisfies it.
type TokenSource interface {
	Token(ctx context.Context, installationID int64) (string, error)
	Invalidate(installationID int64)
}

// Executor supplies a valid token to each call and recovers the cache when
// the platform rejects one. The in-flight call is not retried here.
type Executor struct {
	tokens TokenSource
}

func NewExecutor(tokens TokenSource) *Executor {
	return &Executor{tokens: tokens}
}

// Execute runs the call with a token for the installation. Auth-class
// failures invalidate that installation's cache entry and come back wrapped
// in ErrTokenRejected; every other failure propagates unchanged.
func (e *Executor) Execute(ctx context.Context, installationID int64, call func(ctx context.Context, token string) error) error {
	token, err := e.tokens.Token(ctx, installationID)
	if err != nil {
		return err
	}
	if err := call(ctx, token); err != nil {
		if isAuthFailure(err) {
			e.tokens.Invalidate(installationID)
			return fmt.Errorf("installation %d: %w: %w", installationID, ErrTokenRejected, err)
		}
		return err
	}
	return nil
}

// isAuthFailure recognizes unauthorized/forbidden API responses. Rate-limit
// 403s arrive as *github.RateLimitError, a different type, so they are not
// mistaken for credential failures.
func isAuthFailure(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		code := ghErr.Response.StatusCode
		return code == http.StatusUnauthorized || code == http.StatusForbidden
	}
	return false
}
