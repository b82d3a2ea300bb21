package repositories

import (
	"context"
	"errors"

	"github.com/crowdfund-escrow/backend/internal/db"
	"github.com/crowdfund-escrow/backend/internal/models"
	"github.com/jackc/pgx/v5"
)

type CustodyRepo struct {
	q db.DBTX
}

func NewCustodyRepo(q db.DBTX) *CustodyRepo {
	return &CustodyRepo{q: q}
}

// Balance returns zero for accounts that never held anything.
func (r *CustodyRepo) Balance(ctx context.Context, account string) (uint64, error) {
	var s string
	err := r.q.QueryRow(ctx, `SELECT balance::text FROM custody_accounts WHERE account = $1`, account).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseAmount(s)
}

func (r *CustodyRepo) Credit(ctx context.Context, account string, amount uint64) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO custody_accounts (account, balance)
		VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET
			balance = custody_accounts.balance + EXCLUDED.balance,
			updated_at = now()
	`, account, formatAmount(amount))
	return err
}

// Debit fails with ErrInsufficientBalance, changing nothing, when the account
// holds less than amount.
func (r *CustodyRepo) Debit(ctx context.Context, account string, amount uint64) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE custody_accounts SET balance = balance - $2::numeric, updated_at = now()
		WHERE account = $1 AND balance >= $2::numeric
	`, account, formatAmount(amount))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (r *CustodyRepo) RecordTransfer(ctx context.Context, t *models.CustodyTransfer) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO custody_transfers (from_account, to_account, amount, kind, reference)
		VALUES ($1, $2, $3::numeric, $4, $5)
		RETURNING id, created_at
	`, t.FromAccount, t.ToAccount, formatAmount(t.Amount), t.Kind, t.Reference).Scan(&t.ID, &t.CreatedAt)
}

// InsertDeposit records a chain deposit once per reference. It returns false
// when the reference was already recorded.
func (r *CustodyRepo) InsertDeposit(ctx context.Context, t *models.CustodyTransfer) (bool, error) {
	err := r.q.QueryRow(ctx, `
		INSERT INTO custody_transfers (to_account, amount, kind, reference)
		VALUES ($1, $2::numeric, $3, $4)
		ON CONFLICT (reference) WHERE kind = 'deposit' DO NOTHING
		RETURNING id, created_at
	`, t.ToAccount, formatAmount(t.Amount), models.TransferKindDeposit, t.Reference).Scan(&t.ID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *CustodyRepo) ListTransfers(ctx context.Context, account string, limit, offset int) ([]models.CustodyTransfer, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, from_account, to_account, amount::text, kind, reference, created_at
		FROM custody_transfers
		WHERE from_account = $1 OR to_account = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, account, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CustodyTransfer
	for rows.Next() {
		var (
			t      models.CustodyTransfer
			amount string
		)
		if err := rows.Scan(&t.ID, &t.FromAccount, &t.ToAccount, &amount, &t.Kind, &t.Reference, &t.CreatedAt); err != nil {
			return nil, err
		}
		if t.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
