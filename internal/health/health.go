// Package health reports the readiness of the lead store and the CRM.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NonStopMan/vamo-heatos/pkg/salesforce"
)

const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusDisabled = "disabled"
)

// DefaultTimeout bounds each individual check.
const DefaultTimeout = 5 * time.Second

// Check is the result of one dependency probe.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Checks groups the dependency probes.
type Checks struct {
	Database   Check `json:"database"`
	Salesforce Check `json:"salesforce"`
}

// Report is the aggregated health response.
type Report struct {
	Status    string    `json:"status"`
	Checks    Checks    `json:"checks"`
	Timestamp time.Time `json:"timestamp"`
}

// OK reports whether no check failed.
func (r *Report) OK() bool { return r.Status == StatusOK }

// Pinger is satisfied by the lead stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker probes the database and, when configured, Salesforce auth.
type Checker struct {
	db      Pinger
	tokens  salesforce.TokenSource
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewChecker creates a Checker. A nil token source reports Salesforce as
// disabled.
func NewChecker(db Pinger, tokens salesforce.TokenSource) *Checker {
	return &Checker{
		db:      db,
		tokens:  tokens,
		timeout: DefaultTimeout,
		now:     time.Now,
		log:     zap.L().With(zap.String("component", "health")),
	}
}

// Check runs all probes concurrently.
func (c *Checker) Check(ctx context.Context) *Report {
	var checks Checks

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		checks.Database = c.probe(gctx, "database", c.db.Ping)
		return nil
	})
	g.Go(func() error {
		if c.tokens == nil {
			checks.Salesforce = Check{Status: StatusDisabled}
			return nil
		}
		checks.Salesforce = c.probe(gctx, "salesforce", func(ctx context.Context) error {
			_, err := c.tokens.Token(ctx)
			return err
		})
		return nil
	})
	_ = g.Wait()

	status := StatusOK
	if checks.Database.Status == StatusError || checks.Salesforce.Status == StatusError {
		status = StatusError
	}

	return &Report{
		Status:    status,
		Checks:    checks,
		Timestamp: c.now().UTC(),
	}
}

func (c *Checker) probe(ctx context.Context, name string, fn func(context.Context) error) Check {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		c.log.Warn("health check failed", zap.String("check", name), zap.Error(err))
		return Check{Status: StatusError, Message: err.Error()}
	}
	return Check{Status: StatusOK}
}
