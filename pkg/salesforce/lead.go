package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/NonStopMan/vamo-heatos/internal/resilience"
)

// DefaultAPIVersion is the REST API version used when none is configured.
const DefaultAPIVersion = "v61.0"

// TokenSource supplies access tokens. *Authenticator implements it.
type TokenSource interface {
	Token(ctx context.Context) (*Token, error)
}

// APIError is a non-2xx response from the REST API. Body is the raw response
// text, usually a JSON array of {message, errorCode} objects.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("salesforce lead create failed: %d %s", e.StatusCode, e.Body)
}

// LeadClient creates Lead records through the sObject REST endpoint.
type LeadClient struct {
	tokens          TokenSource
	httpClient      *http.Client
	apiVersion      string
	allowDuplicates bool
	limiter         *rate.Limiter
}

// LeadOption configures a LeadClient.
type LeadOption func(*LeadClient)

// WithAPIVersion overrides DefaultAPIVersion.
func WithAPIVersion(v string) LeadOption {
	return func(c *LeadClient) {
		if v != "" {
			c.apiVersion = v
		}
	}
}

// WithAllowDuplicates asks Salesforce to save records that match a duplicate
// rule instead of rejecting them.
func WithAllowDuplicates(allow bool) LeadOption {
	return func(c *LeadClient) { c.allowDuplicates = allow }
}

// WithLeadRateLimit caps outgoing create calls per second.
func WithLeadRateLimit(rps float64) LeadOption {
	return func(c *LeadClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// NewLeadClient creates a LeadClient. A nil httpClient uses http.DefaultClient.
func NewLeadClient(tokens TokenSource, httpClient *http.Client, opts ...LeadOption) *LeadClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &LeadClient{tokens: tokens, httpClient: httpClient, apiVersion: DefaultAPIVersion}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

// CreateLead posts fields as a new Lead and returns its record id. Non-2xx
// responses return *APIError; those with a retryable status are additionally
// wrapped in resilience.TransientError.
func (c *LeadClient) CreateLead(ctx context.Context, fields map[string]any) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "salesforce: rate limit")
		}
	}

	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return "", eris.Wrap(err, "salesforce: marshal lead")
	}

	endpoint := tok.InstanceURL + "/services/data/" + c.apiVersion + "/sobjects/Lead/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "salesforce: build lead request")
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	if c.allowDuplicates {
		req.Header.Set("Sforce-Duplicate-Rule-Header", "allowSave=true")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "salesforce: lead request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return "", apiErr
	}

	var cr createResponse
	if err := decodeBody(resp.Body, &cr); err != nil {
		// The record exists; an unreadable body does not make the create fail.
		return "", nil
	}
	return cr.ID, nil
}
