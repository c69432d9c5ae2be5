package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/NonStopMan/vamo-heatos/internal/model"
)

// ErrDuplicateExternalID is returned by CreateLead when another lead already
// carries the same external id.
var ErrDuplicateExternalID = eris.New("store: duplicate external id")

// ErrLeadNotFound is returned by GetLead and Requeue for unknown ids.
var ErrLeadNotFound = eris.New("store: lead not found")

// ErrLeadNotPending is returned by MarkSynced and MarkFailed when the lead does
// not exist, is no longer pending, or the retry counter would not increase.
var ErrLeadNotPending = eris.New("store: lead not pending")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status model.CRMStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for leads and their CRM sync state.
type Store interface {
	// Intake
	FindByExternalID(ctx context.Context, externalID string) (*model.Lead, error)
	CreateLead(ctx context.Context, externalID *string, payload []byte, reqCtx *model.RequestContext) (*model.Lead, error)

	// CRM sync
	FindNextPending(ctx context.Context, maxRetries int) (*model.Lead, error)
	MarkSynced(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, nextRetries int, errMsg string, status model.CRMStatus) error

	// Operations
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	CountByStatus(ctx context.Context) (map[model.CRMStatus]int, error)
	Requeue(ctx context.Context, id string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// leadColumns is the column list shared by every lead SELECT.
const leadColumns = `id, external_id, payload, crm_status, crm_retries, crm_last_error, ` +
	`crm_last_attempt_at, crm_synced_at, request_id, source_ip, user_agent, created_at, updated_at`

func validateMarkFailed(nextRetries int, status model.CRMStatus) error {
	if nextRetries < 1 {
		return eris.Errorf("store: next retries must be positive, got %d", nextRetries)
	}
	if status != model.CRMStatusPending && status != model.CRMStatusFailed {
		return eris.Errorf("store: invalid failure status %q", status)
	}
	return nil
}

func listLimit(filter LeadFilter) int {
	if filter.Limit <= 0 {
		return 100
	}
	return filter.Limit
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func newLead(externalID *string, payload []byte, reqCtx *model.RequestContext, now time.Time) *model.Lead {
	lead := &model.Lead{
		ID:         uuid.New().String(),
		ExternalID: emptyToNil(externalID),
		Payload:    append([]byte(nil), payload...),
		CRMStatus:  model.CRMStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if reqCtx != nil {
		lead.RequestID = reqCtx.RequestID
		lead.SourceIP = reqCtx.SourceIP
		lead.UserAgent = reqCtx.UserAgent
	}
	return lead
}

type scannable interface {
	Scan(dest ...any) error
}

// scanLead reads one row selected with leadColumns.
func scanLead(row scannable) (*model.Lead, error) {
	var (
		l       model.Lead
		status  string
		payload []byte
	)
	err := row.Scan(
		&l.ID, &l.ExternalID, &payload, &status, &l.CRMRetries, &l.CRMLastError,
		&l.CRMLastAttemptAt, &l.CRMSyncedAt, &l.RequestID, &l.SourceIP, &l.UserAgent,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Payload = payload
	l.CRMStatus = model.CRMStatus(status)
	return &l, nil
}
