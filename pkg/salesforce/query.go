package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Lead is the subset of a Salesforce Lead record read back for diagnostics.
type Lead struct {
	ID          string `json:"Id" salesforce:"Id"`
	FirstName   string `json:"FirstName" salesforce:"FirstName"`
	LastName    string `json:"LastName" salesforce:"LastName"`
	Email       string `json:"Email" salesforce:"Email"`
	Phone       string `json:"Phone" salesforce:"Phone"`
	LeadSource  string `json:"LeadSource" salesforce:"LeadSource"`
	Status      string `json:"Status" salesforce:"Status"`
	CreatedDate string `json:"CreatedDate" salesforce:"CreatedDate"`
}

// leadFields are the SOQL fields selected for Lead queries.
var leadFields = []string{
	"Id", "FirstName", "LastName", "Email", "Phone", "LeadSource", "Status", "CreatedDate",
}

// FindLeadsByEmail returns up to limit Leads with the given email, newest first.
func FindLeadsByEmail(ctx context.Context, c Client, email string, limit int) ([]Lead, error) {
	if email == "" {
		return nil, eris.New("sf: email is required")
	}
	if limit <= 0 {
		limit = 10
	}
	soql := fmt.Sprintf(
		"SELECT %s FROM Lead WHERE Email = '%s' ORDER BY CreatedDate DESC LIMIT %d",
		strings.Join(leadFields, ", "),
		escapeSoql(email),
		limit,
	)

	var leads []Lead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find leads by email %s", email))
	}
	return leads, nil
}

// MissingFields reports which of the wanted fields the description lacks or
// does not allow to be set on create.
func MissingFields(desc *SObjectDescription, wanted []string) (missing, notCreateable []string) {
	for _, name := range wanted {
		f := desc.Field(name)
		switch {
		case f == nil:
			missing = append(missing, name)
		case !f.Createable:
			notCreateable = append(notCreateable, name)
		}
	}
	return missing, notCreateable
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
