package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/candidate-identity-service/internal/auth"
	"github.com/spec-kit/candidate-identity-service/internal/config"
	"github.com/spec-kit/candidate-identity-service/internal/domain"
	"github.com/spec-kit/candidate-identity-service/internal/events"
	"github.com/spec-kit/candidate-identity-service/internal/repository"
	apperrors "github.com/spec-kit/candidate-identity-service/pkg/util"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,13}$`)
	emailPattern = regexp.MustCompile(`^.+@.+\..+$`)
)

const matriculeAttempts = 5

// Activation outcome messages returned to callers of ActivateAccount.
const (
	ActivationSucceeded = "account successfully activated"
	ActivationExpired   = "activation token has expired"
	ActivationInvalid   = "invalid activation token"
)

// IdentityService orchestrates the candidate account lifecycle: registration,
// verification, authentication, password establishment and reset, logout and
// activation. Expired tokens are recognized at lookup time and never purged
// here; an expired verification code leaves both the account and the token
// untouched.
type IdentityService struct {
	candidates repository.CandidateRepository
	tokens     repository.TokenRepository
	tx         repository.Transactor
	hasher     auth.PasswordHasher
	tokenMgr   *auth.TokenManager
	codes      auth.CodeGenerator
	mailer     Mailer
	dispatcher events.Dispatcher
	logger     *zap.Logger

	verificationTTL        time.Duration
	resetTTL               time.Duration
	requireCurrentPassword bool
	activationURL          string
}

// IdentityDependencies encapsulates collaborator requirements for the engine.
type IdentityDependencies struct {
	Candidates repository.CandidateRepository
	Tokens     repository.TokenRepository
	Tx         repository.Transactor
	Hasher     auth.PasswordHasher
	TokenMgr   *auth.TokenManager
	Codes      auth.CodeGenerator
	Mailer     Mailer
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewIdentityService builds the service.
func NewIdentityService(authCfg config.AuthConfig, mailCfg config.MailConfig, deps IdentityDependencies) *IdentityService {
	return &IdentityService{
		candidates:             deps.Candidates,
		tokens:                 deps.Tokens,
		tx:                     deps.Tx,
		hasher:                 deps.Hasher,
		tokenMgr:               deps.TokenMgr,
		codes:                  deps.Codes,
		mailer:                 deps.Mailer,
		dispatcher:             deps.Dispatcher,
		logger:                 deps.Logger,
		verificationTTL:        authCfg.VerificationTTL(),
		resetTTL:               authCfg.PasswordResetTTL(),
		requireCurrentPassword: authCfg.RequireCurrentPassword,
		activationURL:          mailCfg.ActivationURL,
	}
}

// RegisterInput carries registration fields.
type RegisterInput struct {
	Firstname   string
	Lastname    string
	Email       string
	Phone       string
	DateOfBirth time.Time
}

// Register creates a disabled account with a unique matricule, issues a
// 15-minute verification code and mails it. The account and token are
// committed even when the mail cannot be delivered; that case returns a
// NOTIFICATION_FAILURE so the caller can offer a resend.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*domain.Candidate, error) {
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	candidate := &domain.Candidate{
		Firstname:   strings.TrimSpace(in.Firstname),
		Lastname:    strings.TrimSpace(in.Lastname),
		Email:       in.Email,
		Phone:       in.Phone,
		DateOfBirth: in.DateOfBirth,
		Enabled:     false,
	}

	code, err := s.codes.Digits(4)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	initials := initialsOf(candidate.Firstname, candidate.Lastname)
	suffix := auth.FormatSuffix(time.Now().UnixMilli())

	for attempt := 0; ; attempt++ {
		candidate.Matricule = initials + suffix
		err = s.tx.InTransaction(ctx, func(txCtx context.Context) error {
			if err := s.candidates.Create(txCtx, candidate); err != nil {
				return err
			}
			token := &domain.EphemeralToken{
				Code:        code,
				Purpose:     domain.TokenPurposeVerification,
				CandidateID: candidate.ID,
				ExpiresAt:   time.Now().Add(s.verificationTTL),
			}
			return s.tokens.Create(txCtx, token)
		})
		if err == nil {
			break
		}
		if attempt+1 < matriculeAttempts && isMatriculeConflict(err) {
			n, genErr := s.codes.IntInRange(0, 9999)
			if genErr != nil {
				return nil, apperrors.NewInternalError(genErr)
			}
			suffix = auth.FormatSuffix(int64(n))
			continue
		}
		return nil, err
	}

	s.publish(ctx, events.EventCandidateRegistered, candidate.ID, events.CandidateRegisteredPayload{
		Email:     candidate.Email,
		Matricule: candidate.Matricule,
	})

	if err := s.mailer.Send(ctx, Mail{
		To:            candidate.Email,
		DisplayName:   candidate.FullName(),
		Template:      TemplateVerifyAccount,
		ActivationURL: s.activationURL,
		Code:          code,
		Subject:       "Please verify your email address",
	}); err != nil {
		s.logger.Warn("verification mail not delivered", zap.String("email", candidate.Email), zap.Error(err))
		return candidate, apperrors.NewNotificationFailure(err)
	}
	return candidate, nil
}

// VerifyEmail consumes a verification code: the account is enabled and the
// token deleted inside one transaction so neither is observable without the
// other. An expired code fails without touching either row.
func (s *IdentityService) VerifyEmail(ctx context.Context, email, code string) error {
	candidate, err := s.getByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := s.tokens.GetByCodeForEmail(ctx, code, email, domain.TokenPurposeVerification)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewInvalidCode("invalid verification code")
		}
		return err
	}
	if token.Expired(time.Now()) {
		return apperrors.NewTokenExpired("verification code expired, please request a new one")
	}

	err = s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		candidate.Enabled = true
		if err := s.candidates.Update(txCtx, candidate); err != nil {
			return err
		}
		return s.tokens.Delete(txCtx, token.ID)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.EventCandidateVerified, candidate.ID, events.CandidateVerifiedPayload{Email: candidate.Email})

	if err := s.mailer.Send(ctx, Mail{
		To:          candidate.Email,
		DisplayName: candidate.FullName(),
		Template:    TemplateVerifyAccount,
		Subject:     "Email Verification Successful",
	}); err != nil {
		s.logger.Warn("verification confirmation mail not delivered", zap.String("email", candidate.Email), zap.Error(err))
	}
	return nil
}

// SetPassword establishes the first credential. Only permitted once the
// account has been verified.
func (s *IdentityService) SetPassword(ctx context.Context, email, password string) error {
	candidate, err := s.getByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !candidate.Enabled {
		return apperrors.NewValidationError("please verify your email first", nil)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	candidate.PasswordHash = hash
	return s.candidates.Update(ctx, candidate)
}

// Authenticate checks credentials and issues a session token. Unknown email,
// disabled or locked accounts and wrong passwords all surface the same
// AUTHENTICATION_FAILED so callers cannot enumerate accounts.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (string, time.Time, *domain.Candidate, error) {
	candidate, err := s.candidates.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, nil, apperrors.NewAuthenticationFailed()
		}
		return "", time.Time{}, nil, err
	}
	if candidate.AccountLocked || !candidate.Enabled || !candidate.HasPassword() {
		return "", time.Time{}, nil, apperrors.NewAuthenticationFailed()
	}
	if !s.hasher.Matches(password, candidate.PasswordHash) {
		return "", time.Time{}, nil, apperrors.NewAuthenticationFailed()
	}

	token, expiresAt, err := s.tokenMgr.GenerateToken(candidate)
	if err != nil {
		return "", time.Time{}, nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.EventCandidateAuthenticated, candidate.ID, events.CandidateAuthenticatedPayload{Email: candidate.Email})
	return token, expiresAt, candidate, nil
}

// RequestPasswordReset issues a 30-minute reset code and mails it.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) error {
	candidate, err := s.getByEmail(ctx, email)
	if err != nil {
		return err
	}

	n, err := s.codes.IntInRange(1000, 9999)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	code := strconv.Itoa(n)

	token := &domain.EphemeralToken{
		Code:        code,
		Purpose:     domain.TokenPurposeReset,
		CandidateID: candidate.ID,
		ExpiresAt:   time.Now().Add(s.resetTTL),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, Mail{
		To:          candidate.Email,
		DisplayName: candidate.FullName(),
		Template:    TemplateResetPassword,
		Code:        code,
		Subject:     "Password Reset Request",
	}); err != nil {
		s.logger.Warn("reset mail not delivered", zap.String("email", candidate.Email), zap.Error(err))
		return apperrors.NewNotificationFailure(err)
	}
	return nil
}

// ResetPassword consumes a reset code: the new hash is stored and the token
// deleted inside one transaction.
func (s *IdentityService) ResetPassword(ctx context.Context, code, newPassword string) error {
	token, err := s.tokens.GetByCode(ctx, code, domain.TokenPurposeReset)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewInvalidCode("invalid token, please request a new password reset")
		}
		return err
	}
	if token.Expired(time.Now()) {
		return apperrors.NewTokenExpired("token has expired, please request a new password reset")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	var candidate *domain.Candidate
	err = s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		candidate, err = s.candidates.GetByID(txCtx, token.CandidateID)
		if err != nil {
			return err
		}
		candidate.PasswordHash = hash
		candidate.TemporaryPassword = false
		if err := s.candidates.Update(txCtx, candidate); err != nil {
			return err
		}
		return s.tokens.Delete(txCtx, token.ID)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.EventPasswordReset, candidate.ID, events.PasswordResetPayload{Email: candidate.Email})

	if err := s.mailer.Send(ctx, Mail{
		To:          candidate.Email,
		DisplayName: candidate.FullName(),
		Template:    TemplatePasswordResetConfirmation,
		Subject:     "Your Password Has Been Reset",
		Body:        "Your password has been successfully reset. If you did not request this change, please contact support.",
	}); err != nil {
		s.logger.Warn("reset confirmation mail not delivered", zap.String("email", candidate.Email), zap.Error(err))
	}
	return nil
}

// ChangePassword rehashes the credential for an authenticated candidate.
// The current-password check only runs when configured.
func (s *IdentityService) ChangePassword(ctx context.Context, email, currentPassword, newPassword string) error {
	candidate, err := s.getByEmail(ctx, email)
	if err != nil {
		return err
	}

	if s.requireCurrentPassword {
		if currentPassword == "" || !s.hasher.Matches(currentPassword, candidate.PasswordHash) {
			return apperrors.NewAuthenticationFailed()
		}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	candidate.PasswordHash = hash
	candidate.TemporaryPassword = false
	return s.candidates.Update(ctx, candidate)
}

// Logout invalidates the presented code by expiring it in place. Unknown
// codes are a successful no-op.
func (s *IdentityService) Logout(ctx context.Context, code string) error {
	token, err := s.tokens.GetAnyByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	return s.tokens.ExpireNow(ctx, token.ID)
}

// ActivateAccount is the clickable-link path to verification. It reports its
// outcome as a human-readable message; only store failures surface as errors.
func (s *IdentityService) ActivateAccount(ctx context.Context, code string) (string, error) {
	token, err := s.tokens.GetByCode(ctx, code, domain.TokenPurposeVerification)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ActivationInvalid, nil
		}
		return "", err
	}
	if token.Expired(time.Now()) {
		return ActivationExpired, nil
	}

	err = s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		candidate, err := s.candidates.GetByID(txCtx, token.CandidateID)
		if err != nil {
			return err
		}
		candidate.Enabled = true
		if err := s.candidates.Update(txCtx, candidate); err != nil {
			return err
		}
		return s.tokens.Delete(txCtx, token.ID)
	})
	if err != nil {
		return "", err
	}

	s.publish(ctx, events.EventCandidateVerified, token.CandidateID, events.CandidateVerifiedPayload{})
	return ActivationSucceeded, nil
}

// EditProfileInput carries profile updates; Password is optional.
type EditProfileInput struct {
	CandidateID int64
	Firstname   string
	Lastname    string
	Email       string
	Password    string
}

// EditProfile updates names, email and optionally the password.
func (s *IdentityService) EditProfile(ctx context.Context, in EditProfileInput) (*domain.Candidate, error) {
	candidate, err := s.candidates.GetByID(ctx, in.CandidateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewAccountNotFound("no account found with the provided id")
		}
		return nil, err
	}

	if strings.TrimSpace(in.Firstname) == "" {
		return nil, apperrors.NewValidationError("firstname cannot be empty", nil)
	}
	if strings.TrimSpace(in.Lastname) == "" {
		return nil, apperrors.NewValidationError("lastname cannot be empty", nil)
	}
	if !emailPattern.MatchString(in.Email) {
		return nil, apperrors.NewValidationError("invalid email format", nil)
	}

	if candidate.Email != in.Email {
		exists, err := s.candidates.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperrors.NewDuplicateIdentity("email is already in use by another account", nil, nil)
		}
	}

	candidate.Firstname = in.Firstname
	candidate.Lastname = in.Lastname
	candidate.Email = in.Email

	if strings.TrimSpace(in.Password) != "" {
		if len(in.Password) < 8 {
			return nil, apperrors.NewValidationError("password must be at least 8 characters long", nil)
		}
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		candidate.PasswordHash = hash
	}

	if err := s.candidates.Update(ctx, candidate); err != nil {
		if apperrors.IsCode(err, "DUPLICATE_IDENTITY") {
			return nil, apperrors.NewConflict("the update failed due to duplicate or invalid data", nil)
		}
		return nil, err
	}
	return candidate, nil
}

// UpdateMatricule reassigns a matricule. Uniqueness is guarded only by the
// store constraint, matching the account store contract.
func (s *IdentityService) UpdateMatricule(ctx context.Context, oldMatricule, newMatricule string) (*domain.Candidate, error) {
	candidate, err := s.candidates.GetByMatricule(ctx, oldMatricule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewAccountNotFound("no account found with the provided matricule")
		}
		return nil, err
	}

	candidate.Matricule = newMatricule
	if err := s.candidates.Update(ctx, candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}

// CandidateFromSessionToken resolves the account behind a session token.
func (s *IdentityService) CandidateFromSessionToken(ctx context.Context, sessionToken string) (*domain.Candidate, error) {
	claims, err := s.tokenMgr.ParseToken(sessionToken)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	return s.getByEmail(ctx, claims.Email)
}

// ListCandidates returns every account.
func (s *IdentityService) ListCandidates(ctx context.Context) ([]*domain.Candidate, error) {
	return s.candidates.List(ctx)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *IdentityService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *IdentityService) getByEmail(ctx context.Context, email string) (*domain.Candidate, error) {
	candidate, err := s.candidates.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewAccountNotFound("no account registered with the provided email")
		}
		return nil, err
	}
	return candidate, nil
}

func (s *IdentityService) publish(ctx context.Context, eventType events.EventType, candidateID int64, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		CandidateID: candidateID,
		Timestamp:   time.Now(),
		Payload:     payload,
	})
}

func validateRegistration(in RegisterInput) error {
	details := map[string]any{}
	if strings.TrimSpace(in.Firstname) == "" {
		details["firstname"] = "firstname is mandatory"
	}
	if strings.TrimSpace(in.Lastname) == "" {
		details["lastname"] = "lastname is mandatory"
	}
	if strings.TrimSpace(in.Email) == "" {
		details["email"] = "email is mandatory"
	} else if !emailPattern.MatchString(in.Email) {
		details["email"] = "email is not well formatted"
	}
	if !phonePattern.MatchString(in.Phone) {
		details["phone"] = "phone number must be 10 to 13 digits with an optional leading +"
	}
	if in.DateOfBirth.IsZero() {
		details["date_of_birth"] = "date of birth is mandatory"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("registration payload is invalid", details)
	}
	return nil
}

// initialsOf builds the matricule prefix from the first letter of each name.
func initialsOf(firstname, lastname string) string {
	first := []rune(firstname)
	last := []rune(lastname)
	return strings.ToUpper(string(first[0]) + string(last[0]))
}

// isMatriculeConflict reports whether a duplicate-identity error points at the
// matricule constraint, which is the only conflict worth retrying.
func isMatriculeConflict(err error) bool {
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "DUPLICATE_IDENTITY" {
		return false
	}
	constraint, _ := domainErr.Details["constraint"].(string)
	return strings.Contains(constraint, "matricule")
}
