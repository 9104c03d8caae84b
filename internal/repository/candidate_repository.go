package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/candidate-identity-service/internal/domain"
	apperrors "github.com/spec-kit/candidate-identity-service/pkg/util"
)

// CandidateRepository defines persistence access for candidate accounts.
type CandidateRepository interface {
	Create(ctx context.Context, candidate *domain.Candidate) error
	Update(ctx context.Context, candidate *domain.Candidate) error
	GetByID(ctx context.Context, id int64) (*domain.Candidate, error)
	GetByEmail(ctx context.Context, email string) (*domain.Candidate, error)
	GetByMatricule(ctx context.Context, matricule string) (*domain.Candidate, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]*domain.Candidate, error)
}

type candidateRepository struct {
	pool *pgxpool.Pool
}

// NewCandidateRepository returns a Postgres-backed implementation.
func NewCandidateRepository(pool *pgxpool.Pool) CandidateRepository {
	return &candidateRepository{pool: pool}
}

const candidateColumns = `
        id, firstname, lastname, email, phone, matricule, date_of_birth,
        password_hash, is_temporary_password, account_locked, enabled,
        created_at, updated_at`

func (r *candidateRepository) Create(ctx context.Context, candidate *domain.Candidate) error {
	const query = `
        INSERT INTO candidates
            (firstname, lastname, email, phone, matricule, date_of_birth,
             password_hash, is_temporary_password, account_locked, enabled)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`

	err := dbFrom(ctx, r.pool).QueryRow(ctx, query,
		candidate.Firstname,
		candidate.Lastname,
		candidate.Email,
		candidate.Phone,
		candidate.Matricule,
		candidate.DateOfBirth,
		candidate.PasswordHash,
		candidate.TemporaryPassword,
		candidate.AccountLocked,
		candidate.Enabled,
	).Scan(&candidate.ID, &candidate.CreatedAt, &candidate.UpdatedAt)
	return mapUniqueViolation(err)
}

func (r *candidateRepository) Update(ctx context.Context, candidate *domain.Candidate) error {
	const query = `
        UPDATE candidates SET
            firstname=$1, lastname=$2, email=$3, phone=$4, matricule=$5,
            date_of_birth=$6, password_hash=$7, is_temporary_password=$8,
            account_locked=$9, enabled=$10, updated_at=NOW()
        WHERE id=$11`

	cmd, err := dbFrom(ctx, r.pool).Exec(ctx, query,
		candidate.Firstname,
		candidate.Lastname,
		candidate.Email,
		candidate.Phone,
		candidate.Matricule,
		candidate.DateOfBirth,
		candidate.PasswordHash,
		candidate.TemporaryPassword,
		candidate.AccountLocked,
		candidate.Enabled,
		candidate.ID,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *candidateRepository) GetByID(ctx context.Context, id int64) (*domain.Candidate, error) {
	const query = `SELECT` + candidateColumns + ` FROM candidates WHERE id=$1`
	return r.scanOne(ctx, query, id)
}

func (r *candidateRepository) GetByEmail(ctx context.Context, email string) (*domain.Candidate, error) {
	const query = `SELECT` + candidateColumns + ` FROM candidates WHERE email=$1`
	return r.scanOne(ctx, query, email)
}

func (r *candidateRepository) GetByMatricule(ctx context.Context, matricule string) (*domain.Candidate, error) {
	const query = `SELECT` + candidateColumns + ` FROM candidates WHERE matricule=$1`
	return r.scanOne(ctx, query, matricule)
}

func (r *candidateRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM candidates WHERE email=$1)`
	var exists bool
	if err := dbFrom(ctx, r.pool).QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *candidateRepository) List(ctx context.Context) ([]*domain.Candidate, error) {
	const query = `SELECT` + candidateColumns + ` FROM candidates ORDER BY id`

	rows, err := dbFrom(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*domain.Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

func (r *candidateRepository) scanOne(ctx context.Context, query string, arg any) (*domain.Candidate, error) {
	return scanCandidate(dbFrom(ctx, r.pool).QueryRow(ctx, query, arg))
}

func scanCandidate(row pgx.Row) (*domain.Candidate, error) {
	var candidate domain.Candidate
	if err := row.Scan(
		&candidate.ID,
		&candidate.Firstname,
		&candidate.Lastname,
		&candidate.Email,
		&candidate.Phone,
		&candidate.Matricule,
		&candidate.DateOfBirth,
		&candidate.PasswordHash,
		&candidate.TemporaryPassword,
		&candidate.AccountLocked,
		&candidate.Enabled,
		&candidate.CreatedAt,
		&candidate.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &candidate, nil
}

// mapUniqueViolation surfaces constraint violations as duplicate-identity errors.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return apperrors.NewDuplicateIdentity(
			"email, phone, matricule or name already registered",
			map[string]any{"constraint": pgErr.ConstraintName},
			err,
		)
	}
	return err
}
