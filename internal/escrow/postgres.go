package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore runs the sweep selection queries against PostgreSQL. Each
// query joins the held-escrow payment so the sweeper can release it
// without a second round trip.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a configured PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) DueForAutoRelease(ctx context.Context, cutoff time.Time, limit int) ([]Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, p.id, c.requester_id, c.worker_id, c.work_completed_at, c.end_date
		 FROM contracts c
		 JOIN payments p ON p.contract_id = c.id AND p.status = 'held_escrow'
		 WHERE c.current_status = 'waiting_approval'
		   AND c.is_deleted = false
		   AND c.work_completed_at IS NOT NULL
		   AND c.work_completed_at <= $1
		 ORDER BY c.work_completed_at
		 LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("select due for release: %w", err)
	}
	return scanCandidates(rows)
}

func (s *PGStore) DueForReminder(ctx context.Context, from, to time.Time, limit int) ([]Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, p.id, c.requester_id, c.worker_id, c.work_completed_at, c.end_date
		 FROM contracts c
		 JOIN payments p ON p.contract_id = c.id AND p.status = 'held_escrow'
		 WHERE c.current_status = 'waiting_approval'
		   AND c.is_deleted = false
		   AND c.reminder_sent_at IS NULL
		   AND c.work_completed_at > $1
		   AND c.work_completed_at <= $2
		 ORDER BY c.work_completed_at
		 LIMIT $3`,
		from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("select due for reminder: %w", err)
	}
	return scanCandidates(rows)
}

func (s *PGStore) MarkReminderSent(ctx context.Context, contractID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contracts SET reminder_sent_at = $2, updated_at = $2
		 WHERE id = $1 AND reminder_sent_at IS NULL`,
		contractID, at)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) DueOverdue(ctx context.Context, now time.Time, limit int) ([]Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, COALESCE(p.id, ''), c.requester_id, c.worker_id, c.work_completed_at, c.end_date
		 FROM contracts c
		 LEFT JOIN payments p ON p.contract_id = c.id AND p.status = 'held_escrow'
		 WHERE c.current_status = 'in_progress'
		   AND c.is_deleted = false
		   AND c.overdue_flagged_at IS NULL
		   AND c.end_date < $1
		 ORDER BY c.end_date
		 LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("select overdue: %w", err)
	}
	return scanCandidates(rows)
}

func (s *PGStore) MarkOverdueFlagged(ctx context.Context, contractID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contracts SET overdue_flagged_at = $2, updated_at = $2
		 WHERE id = $1 AND overdue_flagged_at IS NULL`,
		contractID, at)
	if err != nil {
		return false, fmt.Errorf("mark overdue flagged: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanCandidates(rows pgx.Rows) ([]Candidate, error) {
	defer rows.Close()
	candidates := make([]Candidate, 0)
	for rows.Next() {
		var (
			c         Candidate
			completed *time.Time
		)
		if err := rows.Scan(&c.ContractID, &c.PaymentID, &c.RequesterID, &c.WorkerID, &completed, &c.EndDate); err != nil {
			return nil, err
		}
		if completed != nil {
			c.WorkCompletedAt = *completed
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
