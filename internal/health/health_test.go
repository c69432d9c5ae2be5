package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NonStopMan/vamo-heatos/pkg/salesforce"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type tokenFunc func(ctx context.Context) (*salesforce.Token, error)

func (f tokenFunc) Token(ctx context.Context) (*salesforce.Token, error) { return f(ctx) }

var okPing = pingFunc(func(context.Context) error { return nil })

func TestCheck_OKWithSalesforceDisabled(t *testing.T) {
	c := NewChecker(okPing, nil)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	r := c.Check(context.Background())
	assert.True(t, r.OK())
	assert.Equal(t, StatusOK, r.Checks.Database.Status)
	assert.Equal(t, StatusDisabled, r.Checks.Salesforce.Status)
	assert.Equal(t, fixed, r.Timestamp)
}

func TestCheck_DatabaseDown(t *testing.T) {
	c := NewChecker(pingFunc(func(context.Context) error { return errors.New("connection refused") }), nil)

	r := c.Check(context.Background())
	assert.False(t, r.OK())
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, Check{Status: StatusError, Message: "connection refused"}, r.Checks.Database)
}

func TestCheck_SalesforceAuth(t *testing.T) {
	ok := NewChecker(okPing, tokenFunc(func(context.Context) (*salesforce.Token, error) {
		return &salesforce.Token{AccessToken: "t"}, nil
	}))
	assert.Equal(t, StatusOK, ok.Check(context.Background()).Checks.Salesforce.Status)

	failing := NewChecker(okPing, tokenFunc(func(context.Context) (*salesforce.Token, error) {
		return nil, errors.New("salesforce auth failed: 400 invalid_grant")
	}))
	r := failing.Check(context.Background())
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, "salesforce auth failed: 400 invalid_grant", r.Checks.Salesforce.Message)
	assert.Equal(t, StatusOK, r.Checks.Database.Status)
}

func TestCheck_TimesOutSlowProbe(t *testing.T) {
	c := NewChecker(pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), nil)
	c.timeout = 20 * time.Millisecond

	r := c.Check(context.Background())
	require.Equal(t, StatusError, r.Checks.Database.Status)
	assert.Contains(t, r.Checks.Database.Message, "deadline exceeded")
}
