package gukk

import (
	"context"
	"log/slog"

	"github.com/raterudder/gukk/pkg/log"
)

// Authenticator is anything that can obtain a fresh session.
type Authenticator interface {
	Login(ctx context.Context) error
}

// needsLogin reports whether a failure of this kind might be a stale session.
// Invalid values are the caller's fault and logging in again won't fix them.
func needsLogin(kind error) bool {
	switch kind {
	case ErrAccessDenied, ErrLoginError, ErrResponse, ErrResponseTimeout:
		return true
	default:
		return false
	}
}

// WithAutoAuth calls fn and retries it at most once. An empty response is
// retried as is. Any other portal failure except ErrInvalidValue is treated
// as a stale session: auth logs in again and fn is retried. Errors from that
// login and from the retry are returned unchanged.
func WithAutoAuth[T any](ctx context.Context, auth Authenticator, fn func(context.Context) (T, error)) (T, error) {
	res, err := fn(ctx)
	if err == nil {
		return res, nil
	}

	kind := kindOf(err)
	switch {
	case kind == ErrEmptyResponse:
		log.Ctx(ctx).DebugContext(ctx, "retrying after empty portal response")
		return fn(ctx)
	case needsLogin(kind):
		log.Ctx(ctx).DebugContext(ctx, "logging in again after portal error", slog.Any("error", err))
		if err := auth.Login(ctx); err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx)
	default:
		return res, err
	}
}

// DoWithAutoAuth is WithAutoAuth for calls that only return an error.
func DoWithAutoAuth(ctx context.Context, auth Authenticator, fn func(context.Context) error) error {
	_, err := WithAutoAuth(ctx, auth, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
