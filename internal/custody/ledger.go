package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/crowdfund-escrow/backend/internal/db"
	"github.com/crowdfund-escrow/backend/internal/models"
	"github.com/crowdfund-escrow/backend/internal/repositories"
	"github.com/google/uuid"
)

// Ledger is the Postgres-backed custodian. Bound to a transaction, its
// balance moves commit or roll back with everything else in it.
type Ledger struct {
	deriver *Deriver
	repo    *repositories.CustodyRepo
}

func NewLedger(deriver *Deriver, q db.DBTX) *Ledger {
	return &Ledger{deriver: deriver, repo: repositories.NewCustodyRepo(q)}
}

func (l *Ledger) VaultFor(campaignID uuid.UUID) string {
	return l.deriver.VaultFor(campaignID)
}

func (l *Ledger) DeriveVaultAuthority(campaignID uuid.UUID) VaultAuthority {
	return l.deriver.Authority(campaignID)
}

func (l *Ledger) TransferIn(ctx context.Context, from, vault string, amount uint64) error {
	return l.move(ctx, from, vault, amount, models.TransferKindIn)
}

// TransferOut spends from vault. auth must be the authority derived for it.
func (l *Ledger) TransferOut(ctx context.Context, vault, to string, amount uint64, auth VaultAuthority) error {
	if err := l.deriver.Check(auth, vault); err != nil {
		return err
	}
	return l.move(ctx, vault, to, amount, models.TransferKindOut)
}

func (l *Ledger) BalanceOf(ctx context.Context, account string) (uint64, error) {
	b, err := l.repo.Balance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w", account, err)
	}
	return b, nil
}

// Deposit credits value that arrived on chain. reference identifies the chain
// transaction; a reference already credited is skipped and reported as false.
func (l *Ledger) Deposit(ctx context.Context, account string, amount uint64, reference string) (bool, error) {
	if amount == 0 {
		return false, ErrInvalidAmount
	}
	t := &models.CustodyTransfer{
		ToAccount: account,
		Amount:    amount,
		Kind:      models.TransferKindDeposit,
		Reference: &reference,
	}
	inserted, err := l.repo.InsertDeposit(ctx, t)
	if err != nil {
		return false, fmt.Errorf("record deposit %s: %w", reference, err)
	}
	if !inserted {
		return false, nil
	}
	if err := l.repo.Credit(ctx, account, amount); err != nil {
		return false, fmt.Errorf("credit %s: %w", account, err)
	}
	return true, nil
}

func (l *Ledger) History(ctx context.Context, account string, limit, offset int) ([]models.CustodyTransfer, error) {
	return l.repo.ListTransfers(ctx, account, limit, offset)
}

func (l *Ledger) move(ctx context.Context, from, to string, amount uint64, kind string) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if err := l.repo.Debit(ctx, from, amount); err != nil {
		if errors.Is(err, repositories.ErrInsufficientBalance) {
			return fmt.Errorf("%w: %s", ErrInsufficientFunds, from)
		}
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if err := l.repo.Credit(ctx, to, amount); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	if err := l.repo.RecordTransfer(ctx, &models.CustodyTransfer{
		FromAccount: &from,
		ToAccount:   to,
		Amount:      amount,
		Kind:        kind,
	}); err != nil {
		return fmt.Errorf("record transfer: %w", err)
	}
	return nil
}
