package model

import (
	"encoding/json"
	"time"
)

// CRMStatus represents the CRM synchronization state of a lead.
type CRMStatus string

const (
	CRMStatusPending CRMStatus = "pending"
	CRMStatusSynced  CRMStatus = "synced"
	CRMStatusFailed  CRMStatus = "failed"
)

// Terminal reports whether no automatic transition can leave this status.
func (s CRMStatus) Terminal() bool {
	return s == CRMStatusSynced || s == CRMStatusFailed
}

// Valid reports whether s is a known status.
func (s CRMStatus) Valid() bool {
	switch s {
	case CRMStatusPending, CRMStatusSynced, CRMStatusFailed:
		return true
	default:
		return false
	}
}

// Stage is the funnel stage of a lead. Stages are ordered:
// qualification < discovery < selling.
type Stage string

const (
	StageQualification Stage = "qualification"
	StageDiscovery     Stage = "discovery"
	StageSelling       Stage = "selling"
)

// Lead is a persisted lead submission together with its CRM sync state.
type Lead struct {
	ID               string          `json:"id"`
	ExternalID       *string         `json:"external_id,omitempty"`
	Payload          json.RawMessage `json:"payload"`
	CRMStatus        CRMStatus       `json:"crm_status"`
	CRMRetries       int             `json:"crm_retries"`
	CRMLastError     *string         `json:"crm_last_error,omitempty"`
	CRMLastAttemptAt *time.Time      `json:"crm_last_attempt_at,omitempty"`
	CRMSyncedAt      *time.Time      `json:"crm_synced_at,omitempty"`
	RequestID        string          `json:"request_id,omitempty"`
	SourceIP         string          `json:"source_ip,omitempty"`
	UserAgent        string          `json:"user_agent,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// DecodePayload unmarshals the stored payload into the typed submission.
func (l *Lead) DecodePayload() (*LeadPayload, error) {
	var p LeadPayload
	if err := json.Unmarshal(l.Payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RequestContext carries request metadata recorded alongside a new lead.
type RequestContext struct {
	RequestID string `json:"request_id,omitempty"`
	SourceIP  string `json:"source_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// CreationResult is returned to the submitter after a lead is accepted.
type CreationResult struct {
	LeadStage              Stage   `json:"leadStage"`
	DataAcquisitionLink    *string `json:"dataAcquisitionLink"`
	AppointmentBookingLink *string `json:"appointmentBookingLink"`
}
