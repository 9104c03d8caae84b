package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/candidate-identity-service/internal/domain"
	"github.com/spec-kit/candidate-identity-service/internal/service"
	apperrors "github.com/spec-kit/candidate-identity-service/pkg/util"
)

// fakeCandidateRepo is an in-memory account store enforcing the same
// uniqueness constraints as the Postgres schema.
type fakeCandidateRepo struct {
	mu         sync.Mutex
	seq        int64
	records    map[int64]*domain.Candidate
	createErrs []error
}

func newFakeCandidateRepo() *fakeCandidateRepo {
	return &fakeCandidateRepo{records: make(map[int64]*domain.Candidate)}
}

func duplicateOn(constraint string) error {
	return apperrors.NewDuplicateIdentity(
		"email, phone, matricule or name already registered",
		map[string]any{"constraint": constraint},
		nil,
	)
}

func (r *fakeCandidateRepo) conflictLocked(candidate *domain.Candidate, excludeID int64) error {
	for _, existing := range r.records {
		if existing.ID == excludeID {
			continue
		}
		switch {
		case existing.Email == candidate.Email:
			return duplicateOn("candidates_email_key")
		case existing.Phone == candidate.Phone:
			return duplicateOn("candidates_phone_key")
		case existing.Matricule == candidate.Matricule:
			return duplicateOn("candidates_matricule_key")
		case existing.Firstname == candidate.Firstname && existing.Lastname == candidate.Lastname:
			return duplicateOn("candidates_name_key")
		}
	}
	return nil
}

func (r *fakeCandidateRepo) Create(_ context.Context, candidate *domain.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if err := r.conflictLocked(candidate, 0); err != nil {
		return err
	}
	r.seq++
	candidate.ID = r.seq
	candidate.CreatedAt = time.Now()
	candidate.UpdatedAt = candidate.CreatedAt
	clone := *candidate
	r.records[candidate.ID] = &clone
	return nil
}

func (r *fakeCandidateRepo) Update(_ context.Context, candidate *domain.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[candidate.ID]; !ok {
		return pgx.ErrNoRows
	}
	if err := r.conflictLocked(candidate, candidate.ID); err != nil {
		return err
	}
	candidate.UpdatedAt = time.Now()
	clone := *candidate
	r.records[candidate.ID] = &clone
	return nil
}

func (r *fakeCandidateRepo) GetByID(_ context.Context, id int64) (*domain.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	candidate, ok := r.records[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *candidate
	return &clone, nil
}

func (r *fakeCandidateRepo) GetByEmail(_ context.Context, email string) (*domain.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, candidate := range r.records {
		if candidate.Email == email {
			clone := *candidate
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeCandidateRepo) GetByMatricule(_ context.Context, matricule string) (*domain.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, candidate := range r.records {
		if candidate.Matricule == matricule {
			clone := *candidate
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeCandidateRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, candidate := range r.records {
		if candidate.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCandidateRepo) List(_ context.Context) ([]*domain.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Candidate, 0, len(r.records))
	for _, candidate := range r.records {
		clone := *candidate
		out = append(out, &clone)
	}
	return out, nil
}

// fakeTokenRepo is an in-memory ephemeral token store.
type fakeTokenRepo struct {
	mu         sync.Mutex
	seq        int64
	records    map[int64]*domain.EphemeralToken
	candidates *fakeCandidateRepo
}

func newFakeTokenRepo(candidates *fakeCandidateRepo) *fakeTokenRepo {
	return &fakeTokenRepo{records: make(map[int64]*domain.EphemeralToken), candidates: candidates}
}

func (r *fakeTokenRepo) Create(_ context.Context, token *domain.EphemeralToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	token.ID = r.seq
	token.CreatedAt = time.Now()
	clone := *token
	r.records[token.ID] = &clone
	return nil
}

func (r *fakeTokenRepo) GetByCodeForEmail(ctx context.Context, code, email string, purpose domain.TokenPurpose) (*domain.EphemeralToken, error) {
	candidate, err := r.candidates.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return r.find(func(t *domain.EphemeralToken) bool {
		return t.Code == code && t.Purpose == purpose && t.CandidateID == candidate.ID
	})
}

func (r *fakeTokenRepo) GetByCode(_ context.Context, code string, purpose domain.TokenPurpose) (*domain.EphemeralToken, error) {
	return r.find(func(t *domain.EphemeralToken) bool {
		return t.Code == code && t.Purpose == purpose
	})
}

func (r *fakeTokenRepo) GetAnyByCode(_ context.Context, code string) (*domain.EphemeralToken, error) {
	return r.find(func(t *domain.EphemeralToken) bool {
		return t.Code == code
	})
}

func (r *fakeTokenRepo) find(match func(*domain.EphemeralToken) bool) (*domain.EphemeralToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *domain.EphemeralToken
	for _, token := range r.records {
		if !match(token) {
			continue
		}
		if newest == nil || token.CreatedAt.After(newest.CreatedAt) {
			newest = token
		}
	}
	if newest == nil {
		return nil, pgx.ErrNoRows
	}
	clone := *newest
	return &clone, nil
}

func (r *fakeTokenRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.records, id)
	return nil
}

func (r *fakeTokenRepo) ExpireNow(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.records[id]; ok {
		token.ExpiresAt = time.Now()
	}
	return nil
}

func (r *fakeTokenRepo) all() []*domain.EphemeralToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.EphemeralToken, 0, len(r.records))
	for _, token := range r.records {
		clone := *token
		out = append(out, &clone)
	}
	return out
}

func (r *fakeTokenRepo) setExpiry(id int64, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.records[id]; ok {
		token.ExpiresAt = expiresAt
	}
}

// fakeTransactor runs the function directly; the in-memory stores commit
// every write immediately.
type fakeTransactor struct{}

func (fakeTransactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeMailer records sends and can simulate delivery failure.
type fakeMailer struct {
	mu    sync.Mutex
	sent  []service.Mail
	fail  bool
	errOn service.MailTemplate
}

func (m *fakeMailer) Send(_ context.Context, mail service.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail || (m.errOn != "" && mail.Template == m.errOn) {
		return context.DeadlineExceeded
	}
	m.sent = append(m.sent, mail)
	return nil
}

func (m *fakeMailer) lastSent() (service.Mail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return service.Mail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// fixedCodes is a deterministic CodeGenerator.
type fixedCodes struct {
	digits string
	n      int
}

func (f fixedCodes) Digits(int) (string, error) {
	return f.digits, nil
}

func (f fixedCodes) IntInRange(lo, hi int) (int, error) {
	if f.n < lo || f.n > hi {
		return lo, nil
	}
	return f.n, nil
}
