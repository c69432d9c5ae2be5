package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/NonStopMan/vamo-heatos/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                  TEXT PRIMARY KEY,
	external_id         TEXT,
	payload             TEXT NOT NULL,
	crm_status          TEXT NOT NULL DEFAULT 'pending' CHECK (crm_status IN ('pending', 'synced', 'failed')),
	crm_retries         INTEGER NOT NULL DEFAULT 0,
	crm_last_error      TEXT,
	crm_last_attempt_at DATETIME,
	crm_synced_at       DATETIME,
	request_id          TEXT NOT NULL DEFAULT '',
	source_ip           TEXT NOT NULL DEFAULT '',
	user_agent          TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_external_id ON leads(external_id) WHERE external_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_leads_sync ON leads(crm_status, crm_retries, created_at);
`

func (s *SQLiteStore) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now().UTC()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindByExternalID(ctx context.Context, externalID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE external_id = ? LIMIT 1`,
		externalID,
	)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find lead by external id %s", externalID)
	}
	return lead, nil
}

func (s *SQLiteStore) CreateLead(ctx context.Context, externalID *string, payload []byte, reqCtx *model.RequestContext) (*model.Lead, error) {
	lead := newLead(externalID, payload, reqCtx, s.now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, external_id, payload, crm_status, crm_retries, request_id, source_ip, user_agent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.ExternalID, string(payload), string(lead.CRMStatus), 0,
		lead.RequestID, lead.SourceIP, lead.UserAgent, lead.CreatedAt, lead.UpdatedAt,
	)
	if isSQLiteUnique(err) {
		return nil, ErrDuplicateExternalID
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return lead, nil
}

func (s *SQLiteStore) FindNextPending(ctx context.Context, maxRetries int) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads
		WHERE crm_status = ? AND crm_retries < ?
		ORDER BY created_at ASC, rowid ASC LIMIT 1`,
		string(model.CRMStatusPending), maxRetries,
	)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find next pending lead")
	}
	return lead, nil
}

func (s *SQLiteStore) MarkSynced(ctx context.Context, id string) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET crm_status = ?, crm_last_error = NULL, crm_last_attempt_at = ?,
		crm_synced_at = ?, updated_at = ?
		WHERE id = ? AND crm_status = ?`,
		string(model.CRMStatusSynced), now, now, now, id, string(model.CRMStatusPending),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark lead synced %s", id)
	}
	return checkRowsAffected(res, ErrLeadNotPending, "sqlite: mark lead synced "+id)
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, id string, nextRetries int, errMsg string, status model.CRMStatus) error {
	if err := validateMarkFailed(nextRetries, status); err != nil {
		return err
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET crm_status = ?, crm_retries = ?, crm_last_error = ?,
		crm_last_attempt_at = ?, updated_at = ?
		WHERE id = ? AND crm_status = ? AND crm_retries < ?`,
		string(status), nextRetries, errMsg, now, now, id, string(model.CRMStatusPending), nextRetries,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark lead failed %s", id)
	}
	return checkRowsAffected(res, ErrLeadNotPending, "sqlite: mark lead failed "+id)
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`,
		id,
	)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrLeadNotFound, "sqlite: get lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	var args []any
	if filter.Status != "" {
		query += ` WHERE crm_status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, listLimit(filter), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads rows")
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[model.CRMStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT crm_status, COUNT(*) FROM leads GROUP BY crm_status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count leads by status")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[model.CRMStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts[model.CRMStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count leads rows")
}

func (s *SQLiteStore) Requeue(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET crm_status = ?, crm_retries = 0, updated_at = ?
		WHERE id = ? AND crm_status = ?`,
		string(model.CRMStatusPending), s.now(), id, string(model.CRMStatusFailed),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: requeue lead %s", id)
	}
	return checkRowsAffected(res, ErrLeadNotFound, "sqlite: requeue lead "+id+" (missing or not failed)")
}

func checkRowsAffected(res sql.Result, sentinel error, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrap(sentinel, msg)
	}
	return nil
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
