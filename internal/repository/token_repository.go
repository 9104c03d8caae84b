package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/candidate-identity-service/internal/domain"
)

// TokenRepository manages ephemeral token persistence. Expired rows are left
// in place; callers decide validity from ExpiresAt.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.EphemeralToken) error
	GetByCodeForEmail(ctx context.Context, code, email string, purpose domain.TokenPurpose) (*domain.EphemeralToken, error)
	GetByCode(ctx context.Context, code string, purpose domain.TokenPurpose) (*domain.EphemeralToken, error)
	GetAnyByCode(ctx context.Context, code string) (*domain.EphemeralToken, error)
	Delete(ctx context.Context, id int64) error
	ExpireNow(ctx context.Context, id int64) error
}

type tokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository constructs repository.
func NewTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepository{pool: pool}
}

func (r *tokenRepository) Create(ctx context.Context, token *domain.EphemeralToken) error {
	const query = `
        INSERT INTO ephemeral_tokens (code, purpose, candidate_id, expires_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return dbFrom(ctx, r.pool).QueryRow(ctx, query,
		token.Code,
		token.Purpose,
		token.CandidateID,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *tokenRepository) GetByCodeForEmail(ctx context.Context, code, email string, purpose domain.TokenPurpose) (*domain.EphemeralToken, error) {
	const query = `
        SELECT t.id, t.code, t.purpose, t.candidate_id, t.created_at, t.expires_at
        FROM ephemeral_tokens t
        JOIN candidates c ON c.id = t.candidate_id
        WHERE t.code=$1 AND c.email=$2 AND t.purpose=$3
        ORDER BY t.created_at DESC
        LIMIT 1`
	return r.scanOne(ctx, query, code, email, purpose)
}

func (r *tokenRepository) GetByCode(ctx context.Context, code string, purpose domain.TokenPurpose) (*domain.EphemeralToken, error) {
	const query = `
        SELECT id, code, purpose, candidate_id, created_at, expires_at
        FROM ephemeral_tokens
        WHERE code=$1 AND purpose=$2
        ORDER BY created_at DESC
        LIMIT 1`
	return r.scanOne(ctx, query, code, purpose)
}

func (r *tokenRepository) GetAnyByCode(ctx context.Context, code string) (*domain.EphemeralToken, error) {
	const query = `
        SELECT id, code, purpose, candidate_id, created_at, expires_at
        FROM ephemeral_tokens
        WHERE code=$1
        ORDER BY created_at DESC
        LIMIT 1`
	return r.scanOne(ctx, query, code)
}

func (r *tokenRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM ephemeral_tokens WHERE id=$1`
	cmd, err := dbFrom(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *tokenRepository) ExpireNow(ctx context.Context, id int64) error {
	const query = `UPDATE ephemeral_tokens SET expires_at=NOW() WHERE id=$1`
	_, err := dbFrom(ctx, r.pool).Exec(ctx, query, id)
	return err
}

func (r *tokenRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.EphemeralToken, error) {
	var token domain.EphemeralToken
	if err := dbFrom(ctx, r.pool).QueryRow(ctx, query, args...).Scan(
		&token.ID,
		&token.Code,
		&token.Purpose,
		&token.CandidateID,
		&token.CreatedAt,
		&token.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}
