package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperr "taskpay/escrow-service/internal/errors"
	"taskpay/escrow-service/internal/money"
)

const paymentColumns = `
	id, contract_id, payer_id, recipient_id,
	amount, currency, status,
	gateway_order_id, gateway_capture_id,
	is_escrow, platform_fee,
	escrow_released_at, escrow_released_by,
	refund_id, refund_reason, refunded_at,
	created_at, updated_at`

// PGStore persists payments in PostgreSQL via pgx. A unique index on
// gateway_order_id backs the one-capture-per-order invariant.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a configured PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, p *Payment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		p.ID, p.ContractID, p.PayerID, p.RecipientID,
		p.Amount.Amount, p.Amount.Currency, string(p.Status),
		p.GatewayOrderID, p.GatewayCaptureID,
		p.IsEscrow, p.PlatformFee.Amount,
		p.EscrowReleasedAt, p.EscrowReleasedBy,
		p.RefundID, p.RefundReason, p.RefundedAt,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*Payment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "payment %s not found", id)
	}
	return p, err
}

func (s *PGStore) GetByOrderID(ctx context.Context, gatewayOrderID string) (*Payment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = $1`, gatewayOrderID)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "no payment for order %s", gatewayOrderID)
	}
	return p, err
}

func (s *PGStore) ListByContract(ctx context.Context, contractID string) ([]*Payment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE contract_id = $1 ORDER BY created_at`, contractID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// CompareAndSwap writes the mutable state of p guarded on the status the
// caller read. The amount column is deliberately absent from the SET
// list: amounts are immutable after creation.
func (s *PGStore) CompareAndSwap(ctx context.Context, p *Payment, expect Status) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE payments SET
		   status = $3,
		   gateway_capture_id = $4,
		   platform_fee = $5,
		   escrow_released_at = $6, escrow_released_by = $7,
		   refund_id = $8, refund_reason = $9, refunded_at = $10,
		   updated_at = $11
		 WHERE id = $1 AND status = $2`,
		p.ID, string(expect),
		string(p.Status),
		p.GatewayCaptureID,
		p.PlatformFee.Amount,
		p.EscrowReleasedAt, p.EscrowReleasedBy,
		p.RefundID, p.RefundReason, p.RefundedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p               Payment
		amount, fee     int64
		currency, state string
	)
	err := row.Scan(
		&p.ID, &p.ContractID, &p.PayerID, &p.RecipientID,
		&amount, &currency, &state,
		&p.GatewayOrderID, &p.GatewayCaptureID,
		&p.IsEscrow, &fee,
		&p.EscrowReleasedAt, &p.EscrowReleasedBy,
		&p.RefundID, &p.RefundReason, &p.RefundedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Amount = money.Money{Amount: amount, Currency: currency}
	p.PlatformFee = money.Money{Amount: fee, Currency: currency}
	p.Status = Status(state)
	return &p, nil
}
