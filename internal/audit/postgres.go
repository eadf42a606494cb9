package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists audit entries in the audit_log table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a configured PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Append inserts one entry. The table has no UPDATE or DELETE paths apart
// from Purge.
func (s *PGStore) Append(ctx context.Context, e *Entry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log
		   (id, performed_by, action, category, severity, target_model,
		    target_id, description, before_state, after_state, ip,
		    user_agent, signature, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		e.ID, e.PerformedBy, e.Action, e.Category, string(e.Severity),
		e.TargetModel, e.TargetID, e.Description,
		nilIfEmpty(e.Before), nilIfEmpty(e.After),
		e.IP, e.UserAgent, e.Signature, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit append: %w", err)
	}
	return nil
}

// Purge deletes entries past the retention window. High and critical
// severity entries are exempt.
func (s *PGStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM audit_log
		 WHERE created_at < $1
		   AND severity NOT IN ('high', 'critical')`,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("audit purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nilIfEmpty(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
