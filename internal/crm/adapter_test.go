package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NonStopMan/vamo-heatos/internal/model"
	"github.com/NonStopMan/vamo-heatos/pkg/salesforce"
)

const leadJSON = `{
  "version": "1.2.0",
  "id": "ext-7",
  "contact": {
    "contactInformation": {"firstName": "Max", "lastName": "Muster", "phone": "0301234", "email": "max@example.com", "mobile": "0170123"},
    "address": {"street": "Hauptstr.", "city": "Berlin", "postalCode": "10115", "countryCode": "DE"}
  }
}`

func payload(t *testing.T, raw string) *model.LeadPayload {
	t.Helper()
	var p model.LeadPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &p
}

type fakeCreator struct {
	fields map[string]any
	err    error
	calls  int
}

func (f *fakeCreator) CreateLead(_ context.Context, fields map[string]any) (string, error) {
	f.calls++
	f.fields = fields
	if f.err != nil {
		return "", f.err
	}
	return "00Qxx", nil
}

func TestMapLead(t *testing.T) {
	p := payload(t, leadJSON)
	fields, err := MapLead(p)
	require.NoError(t, err)

	assert.Equal(t, "Max", fields["FirstName"])
	assert.Equal(t, "Muster", fields["LastName"])
	assert.Equal(t, "max@example.com", fields["Email"])
	assert.Equal(t, "0301234", fields["Phone"])
	assert.Equal(t, "0170123", fields["MobilePhone"])
	assert.Equal(t, "Web", fields["LeadSource"])
	assert.Equal(t, "HeatOS Website", fields["Website"])
	assert.Equal(t, "Private Lead", fields["Company"])
	assert.Equal(t, "Hauptstr.", fields["Street"])
	assert.Equal(t, "Berlin", fields["City"])
	assert.Equal(t, "10115", fields["PostalCode"])
	assert.Equal(t, "DE", fields["Country"])

	var desc model.LeadPayload
	require.NoError(t, json.Unmarshal([]byte(fields["Description"].(string)), &desc))
	assert.Equal(t, "ext-7", *desc.ID)

	for key := range fields {
		assert.Contains(t, LeadFields, key)
	}
}

func TestMapLead_OmitsAbsentAddress(t *testing.T) {
	p := payload(t, `{"version":"1.2.0","contact":{"contactInformation":{"firstName":"A","lastName":"B","phone":"1","email":"a@b.de"},"address":{"city":"Köln"}}}`)
	fields, err := MapLead(p)
	require.NoError(t, err)

	assert.Equal(t, "Köln", fields["City"])
	assert.NotContains(t, fields, "Street")
	assert.NotContains(t, fields, "PostalCode")
	assert.NotContains(t, fields, "Country")
	assert.Equal(t, "", fields["MobilePhone"])
}

func TestMapLead_NoContact(t *testing.T) {
	fields, err := MapLead(&model.LeadPayload{Version: "1.2.0"})
	require.NoError(t, err)
	assert.Equal(t, "", fields["LastName"])
	assert.Equal(t, "Private Lead", fields["Company"])
}

func TestSalesforceAdapter_ForwardLead(t *testing.T) {
	fc := &fakeCreator{}
	a := NewSalesforceAdapter(fc)

	require.NoError(t, a.ForwardLead(context.Background(), payload(t, leadJSON)))
	assert.Equal(t, 1, fc.calls)
	assert.Equal(t, "Muster", fc.fields["LastName"])
}

func TestSalesforceAdapter_ForwardLeadError(t *testing.T) {
	apiErr := &salesforce.APIError{StatusCode: 400, Body: `[{"errorCode":"DUPLICATES_DETECTED","message":"Use one of these records?"}]`}
	a := NewSalesforceAdapter(&fakeCreator{err: apiErr})

	err := a.ForwardLead(context.Background(), payload(t, leadJSON))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apiErr))
	assert.Equal(t, "DUPLICATES_DETECTED: Use one of these records?", NormalizeError(err.Error()))
}

func TestNoopAdapter(t *testing.T) {
	a := NewNoopAdapter()
	assert.NoError(t, a.ForwardLead(context.Background(), payload(t, leadJSON)))
	assert.NoError(t, a.ForwardLead(context.Background(), &model.LeadPayload{}))
}

func TestNew_SelectsAdapter(t *testing.T) {
	tests := []struct {
		enabled string
		noop    bool
	}{
		{"", true},
		{"false", true},
		{"yes", true},
		{"true", false},
		{"TRUE", false},
		{" True ", false},
	}
	for _, tt := range tests {
		t.Run(tt.enabled, func(t *testing.T) {
			a := New(Config{Enabled: tt.enabled})
			_, isNoop := a.(*NoopAdapter)
			assert.Equal(t, tt.noop, isNoop)
			if !tt.noop {
				assert.IsType(t, &SalesforceAdapter{}, a)
			}
		})
	}
}

func TestConfig_HTTPClientTimeout(t *testing.T) {
	assert.Equal(t, "30s", Config{}.HTTPClient().Timeout.String())
	assert.Equal(t, "5s", Config{TimeoutSecs: 5}.HTTPClient().Timeout.String())
}

// End to end through the real Salesforce client: token exchange then Lead POST.
func TestNew_SalesforceEndToEnd(t *testing.T) {
	var posted map[string]any
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/services/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "instance_url": srv.URL})
	})
	mux.HandleFunc("/services/data/v61.0/sobjects/Lead/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "allowSave=true", r.Header.Get("Sforce-Duplicate-Rule-Header"))
		_ = json.NewDecoder(r.Body).Decode(&posted)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"00Q1","success":true}`))
	})

	a := New(Config{
		Enabled:         "true",
		LoginURL:        srv.URL,
		PrivateKey:      testPEM(t),
		AllowDuplicates: true,
	})
	require.NoError(t, a.ForwardLead(context.Background(), payload(t, leadJSON)))
	assert.Equal(t, "Muster", posted["LastName"])
}

func TestNew_SalesforceMissingKeyFailsAttempt(t *testing.T) {
	a := New(Config{Enabled: "true", LoginURL: "http://127.0.0.1:1"})
	err := a.ForwardLead(context.Background(), payload(t, leadJSON))
	require.Error(t, err)
	assert.Equal(t, "salesforce JWT private key is missing", NormalizeError(err.Error()))
}

type countingTokens struct{ calls int }

func (c *countingTokens) Token(context.Context) (*salesforce.Token, error) {
	c.calls++
	return nil, errors.New("salesforce auth failed: 400 invalid_grant")
}

func TestNewWithTokens_UsesSharedSource(t *testing.T) {
	tokens := &countingTokens{}
	a := NewWithTokens(Config{Enabled: "true"}, tokens)

	err := a.ForwardLead(context.Background(), payload(t, leadJSON))
	require.Error(t, err)
	assert.Equal(t, 1, tokens.calls)

	_, isNoop := NewWithTokens(Config{}, tokens).(*NoopAdapter)
	assert.True(t, isNoop)
}
