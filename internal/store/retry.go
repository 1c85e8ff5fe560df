package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/reviewgallery/internal/config"
	"github.com/JonMunkholm/reviewgallery/internal/logging"
)

// RetryPolicy bounds how storage calls are retried on connectivity errors.
// Delay before attempt n+1 is BaseDelay * 2^n.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultRetryPolicy waits 500ms, 1s, 2s, 4s between five attempts.
var DefaultRetryPolicy = RetryPolicy{Attempts: 5, BaseDelay: 500 * time.Millisecond}

// MaxRetryDelay caps the wait between two attempts.
const MaxRetryDelay = 30 * time.Second

// PolicyFromConfig builds a policy from cfg, taking DefaultRetryPolicy's
// value for any field left at zero.
func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	p := RetryPolicy{Attempts: cfg.Attempts, BaseDelay: cfg.BaseDelay}
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryPolicy.Attempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	return p
}

// delay returns the wait after failed attempt n (0-based): BaseDelay * 2^n,
// capped at MaxRetryDelay.
func (p RetryPolicy) delay(n int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		return 0
	}
	for i := 0; i < n && d < MaxRetryDelay; i++ {
		d *= 2
	}
	return min(d, MaxRetryDelay)
}

// transientSignatures are matched case-insensitively against error text.
// 08006 is the Postgres connection_failure SQLSTATE.
var transientSignatures = []string{
	"08006",
	"can't reach database server",
	"connection terminated",
	"timeout",
}

// IsTransient reports whether err looks like a dropped or unreachable
// database connection rather than a query or constraint failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "08") {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// Retry calls fn until it succeeds, fails with a non-transient error, or the
// policy runs out of attempts. The last error is returned unchanged.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func() (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsTransient(err) || i == attempts-1 {
			return zero, err
		}

		wait := p.delay(i)
		logging.FromContext(ctx).Warn("storage call failed, retrying",
			"attempt", i+1,
			"max_attempts", attempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// RetryExec is Retry for calls that only return an error.
func RetryExec(ctx context.Context, p RetryPolicy, fn func() error) error {
	_, err := Retry(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
