package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/money"
)

const contractColumns = `
	id, job_id, requester_id, worker_id,
	base_price, commission, total_price, currency,
	current_status, previous_status,
	start_date, end_date,
	escrow_enabled, escrow_amount, escrow_status,
	pairing_code, pairing_expiry, requester_confirmed, worker_confirmed,
	work_completed_at,
	pending_extension_days, pending_new_price, extension_requested_by,
	extension_count, extensions,
	allocated_amount, percent_of_budget_bps,
	reminder_sent_at, overdue_flagged_at,
	is_deleted, created_at, updated_at`

// PGStore persists contracts in PostgreSQL via pgx.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a configured PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, c *Contract) error {
	extensions, err := json.Marshal(c.Extensions)
	if err != nil {
		return fmt.Errorf("marshal extensions: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO contracts (`+contractColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,
		         $17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32)`,
		c.ID, c.JobID, c.RequesterID, c.WorkerID,
		c.BasePrice.Amount, c.Commission.Amount, c.TotalPrice.Amount, c.BasePrice.Currency,
		string(c.Status), string(c.PreviousStatus),
		c.StartDate, c.EndDate,
		c.Escrow.Enabled, c.Escrow.Amount.Amount, string(c.Escrow.Status),
		c.PairingCode, nullableTime(c.PairingExpiry), c.RequesterConfirmed, c.WorkerConfirmed,
		c.WorkCompletedAt,
		c.PendingExtensionDays, nullableAmount(c.PendingNewPrice), c.ExtensionRequestedBy,
		c.ExtensionCount, extensions,
		nullableAmount(c.AllocatedAmount), nullableRate(c.PercentOfBudget),
		c.ReminderSentAt, c.OverdueFlaggedAt,
		c.Deleted, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*Contract, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
	c, err := scanContract(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "contract %s not found", id)
	}
	return c, err
}

func (s *PGStore) ListByJob(ctx context.Context, jobID string) ([]*Contract, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list contracts by job: %w", err)
	}
	defer rows.Close()

	contracts := make([]*Contract, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// CompareAndSwap writes the whole mutable state of c in a single UPDATE
// guarded by the status the caller read. RowsAffected == 0 means the
// guard failed and nothing was written.
func (s *PGStore) CompareAndSwap(ctx context.Context, c *Contract, expect Status) (bool, error) {
	extensions, err := json.Marshal(c.Extensions)
	if err != nil {
		return false, fmt.Errorf("marshal extensions: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE contracts SET
		   base_price = $3, commission = $4, total_price = $5,
		   current_status = $6, previous_status = $7,
		   start_date = $8, end_date = $9,
		   escrow_amount = $10, escrow_status = $11,
		   pairing_code = $12, pairing_expiry = $13,
		   requester_confirmed = $14, worker_confirmed = $15,
		   work_completed_at = $16,
		   pending_extension_days = $17, pending_new_price = $18,
		   extension_requested_by = $19,
		   extension_count = $20, extensions = $21,
		   reminder_sent_at = $22, overdue_flagged_at = $23,
		   is_deleted = $24, updated_at = $25
		 WHERE id = $1 AND current_status = $2`,
		c.ID, string(expect),
		c.BasePrice.Amount, c.Commission.Amount, c.TotalPrice.Amount,
		string(c.Status), string(c.PreviousStatus),
		c.StartDate, c.EndDate,
		c.Escrow.Amount.Amount, string(c.Escrow.Status),
		c.PairingCode, nullableTime(c.PairingExpiry),
		c.RequesterConfirmed, c.WorkerConfirmed,
		c.WorkCompletedAt,
		c.PendingExtensionDays, nullableAmount(c.PendingNewPrice),
		c.ExtensionRequestedBy,
		c.ExtensionCount, extensions,
		c.ReminderSentAt, c.OverdueFlaggedAt,
		c.Deleted, c.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update contract: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// scanContract reads one row in contractColumns order.
func scanContract(row pgx.Row) (*Contract, error) {
	var (
		c                                Contract
		base, comm, total, escrowAmt     int64
		currency, status, prevStatus     string
		escrowStatus                     string
		pairingExpiry                    *time.Time
		pendingNewPrice, allocatedAmount *int64
		percentBps                       *int64
		extensions                       []byte
	)
	err := row.Scan(
		&c.ID, &c.JobID, &c.RequesterID, &c.WorkerID,
		&base, &comm, &total, &currency,
		&status, &prevStatus,
		&c.StartDate, &c.EndDate,
		&c.Escrow.Enabled, &escrowAmt, &escrowStatus,
		&c.PairingCode, &pairingExpiry, &c.RequesterConfirmed, &c.WorkerConfirmed,
		&c.WorkCompletedAt,
		&c.PendingExtensionDays, &pendingNewPrice, &c.ExtensionRequestedBy,
		&c.ExtensionCount, &extensions,
		&allocatedAmount, &percentBps,
		&c.ReminderSentAt, &c.OverdueFlaggedAt,
		&c.Deleted, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.BasePrice = money.Money{Amount: base, Currency: currency}
	c.Commission = money.Money{Amount: comm, Currency: currency}
	c.TotalPrice = money.Money{Amount: total, Currency: currency}
	c.Status = Status(status)
	c.PreviousStatus = Status(prevStatus)
	c.Escrow.Amount = money.Money{Amount: escrowAmt, Currency: currency}
	c.Escrow.Status = EscrowStatus(escrowStatus)
	if pairingExpiry != nil {
		c.PairingExpiry = *pairingExpiry
	}
	if pendingNewPrice != nil {
		c.PendingNewPrice = &money.Money{Amount: *pendingNewPrice, Currency: currency}
	}
	if allocatedAmount != nil {
		c.AllocatedAmount = &money.Money{Amount: *allocatedAmount, Currency: currency}
	}
	if percentBps != nil {
		r := money.Rate(*percentBps)
		c.PercentOfBudget = &r
	}
	if len(extensions) > 0 {
		if err := json.Unmarshal(extensions, &c.Extensions); err != nil {
			return nil, fmt.Errorf("unmarshal extensions: %w", err)
		}
	}
	return &c, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableAmount(m *money.Money) *int64 {
	if m == nil {
		return nil
	}
	return &m.Amount
}

func nullableRate(r *money.Rate) *int64 {
	if r == nil {
		return nil
	}
	v := int64(*r)
	return &v
}
