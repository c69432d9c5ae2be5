package salesforce

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

const (
	// DefaultLoginURL is the production Salesforce login host.
	DefaultLoginURL = "https://login.salesforce.com"

	jwtBearerGrant   = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL     = 180 * time.Second
	defaultExpiresIn = 3600
	expirySkew       = 30 * time.Second
)

// ErrMissingPrivateKey is returned when neither an inline key nor a key file
// is configured.
var ErrMissingPrivateKey = eris.New("salesforce JWT private key is missing")

// AuthConfig holds the JWT bearer flow settings.
type AuthConfig struct {
	ClientID   string
	Username   string
	LoginURL   string
	PrivateKey string // PEM; literal "\n" sequences are expanded
	KeyPath    string // used when PrivateKey is empty
}

// Token is an access token together with the instance it is valid for.
type Token struct {
	AccessToken string
	InstanceURL string
	ExpiresAt   time.Time
}

// Valid reports whether the token can still be used at now.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && now.Before(t.ExpiresAt)
}

// Authenticator obtains access tokens with the OAuth 2.0 JWT bearer flow and
// caches them until shortly before expiry. The cache is read and written under
// a mutex; concurrent refreshes may both hit the token endpoint and the last
// one wins.
type Authenticator struct {
	cfg        AuthConfig
	httpClient *http.Client
	now        func() time.Time

	mu    sync.Mutex
	token *Token
}

// NewAuthenticator creates an Authenticator. A nil httpClient uses
// http.DefaultClient.
func NewAuthenticator(cfg AuthConfig, httpClient *http.Client) *Authenticator {
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}
	cfg.LoginURL = strings.TrimRight(cfg.LoginURL, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Authenticator{cfg: cfg, httpClient: httpClient, now: time.Now}
}

// Token returns a cached token while it is valid, otherwise requests a new one.
func (a *Authenticator) Token(ctx context.Context) (*Token, error) {
	a.mu.Lock()
	cached := a.token
	a.mu.Unlock()
	if cached.Valid(a.now()) {
		return cached, nil
	}

	tok, err := a.fetch(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.token = tok
	a.mu.Unlock()
	return tok, nil
}

// Invalidate drops the cached token.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	a.token = nil
	a.mu.Unlock()
}

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	InstanceURL string          `json:"instance_url"`
	ExpiresIn   json.RawMessage `json:"expires_in"`
}

func (a *Authenticator) fetch(ctx context.Context) (*Token, error) {
	key, err := a.privateKey()
	if err != nil {
		return nil, err
	}

	now := a.now()
	assertion, err := a.assertion(key, now)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.LoginURL+"/services/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "salesforce: build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "salesforce: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, eris.Errorf("salesforce auth failed: %d %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := decodeBody(resp.Body, &tr); err != nil {
		return nil, eris.Wrap(err, "salesforce: decode token response")
	}
	if tr.AccessToken == "" || tr.InstanceURL == "" {
		return nil, eris.New("salesforce: token response missing access_token or instance_url")
	}

	return &Token{
		AccessToken: tr.AccessToken,
		InstanceURL: strings.TrimRight(tr.InstanceURL, "/"),
		ExpiresAt:   now.Add(time.Duration(expiresIn(tr.ExpiresIn))*time.Second - expirySkew),
	}, nil
}

// expiresIn accepts the lifetime as a JSON number or numeric string.
func expiresIn(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return defaultExpiresIn
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n <= 0 {
		return defaultExpiresIn
	}
	return int(n)
}

func (a *Authenticator) assertion(key *rsa.PrivateKey, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    a.cfg.ClientID,
		Subject:   a.cfg.Username,
		Audience:  jwt.ClaimStrings{a.cfg.LoginURL},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", eris.Wrap(err, "salesforce: sign assertion")
	}
	return signed, nil
}

func (a *Authenticator) privateKey() (*rsa.PrivateKey, error) {
	pemData := strings.ReplaceAll(a.cfg.PrivateKey, `\n`, "\n")
	if strings.TrimSpace(pemData) == "" && a.cfg.KeyPath != "" {
		data, err := os.ReadFile(a.cfg.KeyPath)
		if err != nil {
			return nil, eris.Wrapf(err, "salesforce: read key file %s", a.cfg.KeyPath)
		}
		pemData = string(data)
	}
	if strings.TrimSpace(pemData) == "" {
		return nil, ErrMissingPrivateKey
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemData))
	if err != nil {
		return nil, eris.Wrap(err, "salesforce: parse private key")
	}
	return key, nil
}
