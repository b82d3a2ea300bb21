package repositories

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/crowdfund-escrow/backend/internal/db"
	"github.com/crowdfund-escrow/backend/internal/models"
)

type ProofPayloadRepo struct {
	q db.DBTX
}

func NewProofPayloadRepo(q db.DBTX) *ProofPayloadRepo {
	return &ProofPayloadRepo{q: q}
}

func (r *ProofPayloadRepo) Create(ctx context.Context, ttl time.Duration) (*models.TonProofPayload, error) {
	p := &models.TonProofPayload{Payload: generateNonce(32)}

	err := r.q.QueryRow(ctx, `
		INSERT INTO ton_proof_payloads (payload, expires_at)
		VALUES ($1, now() + make_interval(secs => $2))
		RETURNING id, created_at, expires_at
	`, p.Payload, int64(ttl/time.Second)).Scan(&p.ID, &p.CreatedAt, &p.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Consume marks the payload used. Spent or unknown payloads yield pgx.ErrNoRows.
func (r *ProofPayloadRepo) Consume(ctx context.Context, payload string) (*models.TonProofPayload, error) {
	var p models.TonProofPayload
	err := r.q.QueryRow(ctx, `
		UPDATE ton_proof_payloads
		SET used = true
		WHERE payload = $1 AND used = false AND expires_at > now()
		RETURNING id, payload, created_at, expires_at, used
	`, payload).Scan(&p.ID, &p.Payload, &p.CreatedAt, &p.ExpiresAt, &p.Used)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteExpired drops used payloads and those past their expiry, returning
// how many went.
func (r *ProofPayloadRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM ton_proof_payloads WHERE used OR expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func generateNonce(bytes int) string {
	b := make([]byte, bytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
