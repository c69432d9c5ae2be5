// Package crm forwards leads to the external CRM.
package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/NonStopMan/vamo-heatos/internal/model"
	"github.com/NonStopMan/vamo-heatos/pkg/salesforce"
)

// Adapter forwards one lead to the CRM. A nil error means the CRM accepted it.
type Adapter interface {
	ForwardLead(ctx context.Context, payload *model.LeadPayload) error
}

// Config selects and configures the adapter.
type Config struct {
	Enabled         string  `yaml:"enabled" mapstructure:"enabled"`
	ClientID        string  `yaml:"client_id" mapstructure:"client_id"`
	Username        string  `yaml:"username" mapstructure:"username"`
	LoginURL        string  `yaml:"login_url" mapstructure:"login_url"`
	PrivateKey      string  `yaml:"private_key" mapstructure:"private_key"`
	KeyPath         string  `yaml:"key_path" mapstructure:"key_path"`
	APIVersion      string  `yaml:"api_version" mapstructure:"api_version"`
	AllowDuplicates bool    `yaml:"allow_duplicates" mapstructure:"allow_duplicates"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit       float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// IsEnabled reports whether Enabled is "true", ignoring case.
func (c Config) IsEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(c.Enabled), "true")
}

// AuthConfig returns the JWT bearer settings.
func (c Config) AuthConfig() salesforce.AuthConfig {
	return salesforce.AuthConfig{
		ClientID:   c.ClientID,
		Username:   c.Username,
		LoginURL:   c.LoginURL,
		PrivateKey: c.PrivateKey,
		KeyPath:    c.KeyPath,
	}
}

// Authenticator returns a token cache for the configured integration user.
func (c Config) Authenticator() *salesforce.Authenticator {
	return salesforce.NewAuthenticator(c.AuthConfig(), c.HTTPClient())
}

// HTTPClient returns a client bounded by TimeoutSecs (default 30s).
func (c Config) HTTPClient() *http.Client {
	timeout := 30 * time.Second
	if c.TimeoutSecs > 0 {
		timeout = time.Duration(c.TimeoutSecs) * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// New returns the Salesforce adapter when enabled, otherwise the no-op adapter.
func New(cfg Config) Adapter {
	return NewWithTokens(cfg, nil)
}

// NewWithTokens is New with a shared token source. A nil tokens builds a
// dedicated Authenticator from cfg.
func NewWithTokens(cfg Config, tokens salesforce.TokenSource) Adapter {
	log := zap.L().With(zap.String("component", "crm"))
	if !cfg.IsEnabled() {
		log.Info("crm adapter selected", zap.String("adapter", "noop"))
		return NewNoopAdapter()
	}

	httpClient := cfg.HTTPClient()
	if tokens == nil {
		tokens = cfg.Authenticator()
	}
	leads := salesforce.NewLeadClient(tokens, httpClient,
		salesforce.WithAPIVersion(cfg.APIVersion),
		salesforce.WithAllowDuplicates(cfg.AllowDuplicates),
		salesforce.WithLeadRateLimit(cfg.RateLimit),
	)
	log.Info("crm adapter selected",
		zap.String("adapter", "salesforce"),
		zap.String("login_url", cfg.LoginURL),
		zap.Bool("allow_duplicates", cfg.AllowDuplicates),
	)
	return NewSalesforceAdapter(leads)
}

// NoopAdapter accepts every lead without any I/O.
type NoopAdapter struct {
	log *zap.Logger
}

// NewNoopAdapter creates a NoopAdapter.
func NewNoopAdapter() *NoopAdapter {
	return &NoopAdapter{log: zap.L().With(zap.String("component", "crm"))}
}

func (a *NoopAdapter) ForwardLead(_ context.Context, payload *model.LeadPayload) error {
	a.log.Info("crm forwarding stub", zap.Stringp("external_id", payload.ExternalID()))
	return nil
}

// LeadCreator creates a Lead record. *salesforce.LeadClient implements it.
type LeadCreator interface {
	CreateLead(ctx context.Context, fields map[string]any) (string, error)
}

// SalesforceAdapter creates a Salesforce Lead per forwarded lead.
type SalesforceAdapter struct {
	leads LeadCreator
	log   *zap.Logger
}

// NewSalesforceAdapter creates a SalesforceAdapter.
func NewSalesforceAdapter(leads LeadCreator) *SalesforceAdapter {
	return &SalesforceAdapter{leads: leads, log: zap.L().With(zap.String("component", "crm"))}
}

func (a *SalesforceAdapter) ForwardLead(ctx context.Context, payload *model.LeadPayload) error {
	fields, err := MapLead(payload)
	if err != nil {
		return err
	}
	id, err := a.leads.CreateLead(ctx, fields)
	if err != nil {
		return err
	}
	a.log.Debug("salesforce lead created",
		zap.String("salesforce_id", id),
		zap.Stringp("external_id", payload.ExternalID()),
	)
	return nil
}

// LeadFields are the Salesforce Lead fields MapLead may set.
var LeadFields = []string{
	"FirstName", "LastName", "Email", "Phone", "MobilePhone", "LeadSource", "Website",
	"Company", "Street", "City", "PostalCode", "Country", "Description",
}

// MapLead converts a submission into Salesforce Lead fields. Address fields
// are omitted when absent; Description carries the full submission as JSON.
func MapLead(p *model.LeadPayload) (map[string]any, error) {
	desc, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "crm: marshal description")
	}

	var info model.ContactInformation
	var addr *model.Address
	if p.Contact != nil {
		if p.Contact.ContactInformation != nil {
			info = *p.Contact.ContactInformation
		}
		addr = p.Contact.Address
	}

	fields := map[string]any{
		"FirstName":   info.FirstName,
		"LastName":    info.LastName,
		"Email":       info.Email,
		"Phone":       info.Phone,
		"MobilePhone": deref(info.Mobile),
		"LeadSource":  "Web",
		"Website":     "HeatOS Website",
		"Company":     "Private Lead",
		"Description": string(desc),
	}
	if addr != nil {
		setIfPresent(fields, "Street", addr.Street)
		setIfPresent(fields, "City", addr.City)
		setIfPresent(fields, "PostalCode", addr.PostalCode)
		setIfPresent(fields, "Country", addr.CountryCode)
	}
	return fields, nil
}

func setIfPresent(fields map[string]any, key string, v *string) {
	if v != nil {
		fields[key] = *v
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
