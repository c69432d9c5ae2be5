package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/NonStopMan/vamo-heatos/internal/db"
	"github.com/NonStopMan/vamo-heatos/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	nowFunc func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	external_id         TEXT,
	payload             JSONB NOT NULL,
	crm_status          TEXT NOT NULL DEFAULT 'pending' CHECK (crm_status IN ('pending', 'synced', 'failed')),
	crm_retries         INTEGER NOT NULL DEFAULT 0,
	crm_last_error      TEXT,
	crm_last_attempt_at TIMESTAMPTZ,
	crm_synced_at       TIMESTAMPTZ,
	request_id          TEXT NOT NULL DEFAULT '',
	source_ip           TEXT NOT NULL DEFAULT '',
	user_agent          TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_external_id ON leads(external_id) WHERE external_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_leads_sync ON leads(crm_status, crm_retries, created_at);
`

func (s *PostgresStore) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now().UTC()
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Migrate creates the leads table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// FindByExternalID returns the lead with the given external id, or nil when
// none exists. Matching is exact and case-sensitive.
func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE external_id = $1 LIMIT 1`,
		externalID,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find lead by external id %s", externalID)
	}
	return lead, nil
}

// CreateLead inserts a new pending lead with zero retries.
func (s *PostgresStore) CreateLead(ctx context.Context, externalID *string, payload []byte, reqCtx *model.RequestContext) (*model.Lead, error) {
	lead := newLead(externalID, payload, reqCtx, s.now())

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, external_id, payload, crm_status, crm_retries, request_id, source_ip, user_agent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		lead.ID, lead.ExternalID, payload, string(lead.CRMStatus), 0,
		lead.RequestID, lead.SourceIP, lead.UserAgent, lead.CreatedAt, lead.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return nil, ErrDuplicateExternalID
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return lead, nil
}

// FindNextPending returns the oldest pending lead whose retry count is below
// maxRetries, or nil when the queue is empty.
func (s *PostgresStore) FindNextPending(ctx context.Context, maxRetries int) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads
		WHERE crm_status = $1 AND crm_retries < $2
		ORDER BY created_at ASC, id ASC LIMIT 1`,
		string(model.CRMStatusPending), maxRetries,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find next pending lead")
	}
	return lead, nil
}

// MarkSynced moves a pending lead to synced and clears its last error.
func (s *PostgresStore) MarkSynced(ctx context.Context, id string) error {
	now := s.now()
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET crm_status = $1, crm_last_error = NULL, crm_last_attempt_at = $2,
		crm_synced_at = $2, updated_at = $2
		WHERE id = $3 AND crm_status = $4`,
		string(model.CRMStatusSynced), now, id, string(model.CRMStatusPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark lead synced %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrLeadNotPending, "postgres: mark lead synced %s", id)
	}
	return nil
}

// MarkFailed records a failed attempt. status must be pending or failed and
// nextRetries must exceed the stored retry count.
func (s *PostgresStore) MarkFailed(ctx context.Context, id string, nextRetries int, errMsg string, status model.CRMStatus) error {
	if err := validateMarkFailed(nextRetries, status); err != nil {
		return err
	}
	now := s.now()
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET crm_status = $1, crm_retries = $2, crm_last_error = $3,
		crm_last_attempt_at = $4, updated_at = $4
		WHERE id = $5 AND crm_status = $6 AND crm_retries < $2`,
		string(status), nextRetries, errMsg, now, id, string(model.CRMStatusPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark lead failed %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrLeadNotPending, "postgres: mark lead failed %s", id)
	}
	return nil
}

// GetLead returns a lead by id.
func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`,
		id,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrLeadNotFound, "postgres: get lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

// ListLeads returns leads newest first, optionally filtered by status.
func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` WHERE crm_status = $1`
	}
	args = append(args, listLimit(filter), filter.Offset)
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads rows")
}

// CountByStatus returns the number of leads per CRM status.
func (s *PostgresStore) CountByStatus(ctx context.Context) (map[model.CRMStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT crm_status, COUNT(*) FROM leads GROUP BY crm_status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count leads by status")
	}
	defer rows.Close()

	counts := make(map[model.CRMStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[model.CRMStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count leads rows")
}

// Requeue resets a failed lead to pending with zero retries.
func (s *PostgresStore) Requeue(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET crm_status = $1, crm_retries = 0, updated_at = $2
		WHERE id = $3 AND crm_status = $4`,
		string(model.CRMStatusPending), s.now(), id, string(model.CRMStatusFailed),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: requeue lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrLeadNotFound, "postgres: requeue lead %s (missing or not failed)", id)
	}
	return nil
}
