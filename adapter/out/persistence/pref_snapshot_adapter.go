// Package persistence keeps the Postgres preference history.
package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"preference_server/core/domain"
	"preference_server/core/port/out"
	"preference_server/pkg/apperr"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS preference_snapshots (
	id             UUID PRIMARY KEY,
	user_id        TEXT NOT NULL,
	data_type      TEXT NOT NULL,
	entry_count    INTEGER NOT NULL DEFAULT 0,
	top_categories TEXT[] NOT NULL DEFAULT '{}',
	preferences    JSONB NOT NULL DEFAULT '[]',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_preference_snapshots_user_created
	ON preference_snapshots (user_id, created_at DESC);
`

// SnapshotAdapter implements out.SnapshotRepository using PostgreSQL.
type SnapshotAdapter struct {
	db *sqlx.DB
}

var _ out.SnapshotRepository = (*SnapshotAdapter)(nil)

func NewSnapshotAdapter(db *sqlx.DB) *SnapshotAdapter {
	return &SnapshotAdapter{db: db}
}

// EnsureSchema creates the snapshot table when missing.
func (a *SnapshotAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, snapshotSchema); err != nil {
		return apperr.DatabaseError("ensure snapshot schema", err)
	}
	return nil
}

type snapshotRow struct {
	ID            uuid.UUID      `db:"id"`
	UserID        string         `db:"user_id"`
	DataType      string         `db:"data_type"`
	EntryCount    int            `db:"entry_count"`
	TopCategories pq.StringArray `db:"top_categories"`
	Preferences   []byte         `db:"preferences"`
	CreatedAt     sql.NullTime   `db:"created_at"`
}

func (r *snapshotRow) toEntity() *domain.PreferenceSnapshot {
	s := &domain.PreferenceSnapshot{
		ID:            r.ID.String(),
		UserID:        r.UserID,
		DataType:      domain.DataType(r.DataType),
		EntryCount:    r.EntryCount,
		TopCategories: []string(r.TopCategories),
	}
	if r.CreatedAt.Valid {
		s.CreatedAt = r.CreatedAt.Time
	}
	if len(r.Preferences) > 0 {
		var prefs []domain.CategoryPreference
		if err := json.Unmarshal(r.Preferences, &prefs); err == nil {
			s.Preferences = prefs
		}
	}
	return s
}

func newSnapshotRow(s *domain.PreferenceSnapshot) (*snapshotRow, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		if s.ID != "" {
			return nil, apperr.BadRequest("invalid snapshot id").WithError(err)
		}
		id = uuid.New()
	}

	prefs := s.Preferences
	if prefs == nil {
		prefs = []domain.CategoryPreference{}
	}
	payload, err := json.Marshal(prefs)
	if err != nil {
		return nil, apperr.InternalWithError(err)
	}

	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	top := s.TopCategories
	if top == nil {
		top = []string{}
	}

	return &snapshotRow{
		ID:            id,
		UserID:        s.UserID,
		DataType:      string(s.DataType),
		EntryCount:    s.EntryCount,
		TopCategories: pq.StringArray(top),
		Preferences:   payload,
		CreatedAt:     sql.NullTime{Time: created, Valid: true},
	}, nil
}

// SaveSnapshot inserts a snapshot. A missing id or timestamp is filled in on
// the passed snapshot.
func (a *SnapshotAdapter) SaveSnapshot(ctx context.Context, snapshot *domain.PreferenceSnapshot) error {
	row, err := newSnapshotRow(snapshot)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO preference_snapshots (
			id, user_id, data_type, entry_count, top_categories, preferences, created_at
		) VALUES (
			:id, :user_id, :data_type, :entry_count, :top_categories, :preferences, :created_at
		)
	`
	if _, err := a.db.NamedExecContext(ctx, query, row); err != nil {
		return apperr.DatabaseError("save snapshot", err)
	}

	snapshot.ID = row.ID.String()
	snapshot.CreatedAt = row.CreatedAt.Time
	return nil
}

// ListSnapshots returns the newest snapshots of a user first.
func (a *SnapshotAdapter) ListSnapshots(ctx context.Context, userID string, limit int) ([]*domain.PreferenceSnapshot, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, user_id, data_type, entry_count, top_categories, preferences, created_at
		FROM preference_snapshots
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var rows []snapshotRow
	if err := a.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, apperr.DatabaseError("list snapshots", err)
	}

	result := make([]*domain.PreferenceSnapshot, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toEntity())
	}
	return result, nil
}
