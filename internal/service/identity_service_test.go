package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/candidate-identity-service/internal/auth"
	"github.com/spec-kit/candidate-identity-service/internal/config"
	"github.com/spec-kit/candidate-identity-service/internal/domain"
	"github.com/spec-kit/candidate-identity-service/internal/events"
	"github.com/spec-kit/candidate-identity-service/internal/service"
	apperrors "github.com/spec-kit/candidate-identity-service/pkg/util"
)

type fixture struct {
	svc        *service.IdentityService
	candidates *fakeCandidateRepo
	tokens     *fakeTokenRepo
	mailer     *fakeMailer
	dispatcher events.Dispatcher
}

type fixtureConfig struct {
	authCfg config.AuthConfig
	codes   auth.CodeGenerator
	mailer  *fakeMailer
}

func withRequireCurrentPassword() func(*fixtureConfig) {
	return func(c *fixtureConfig) { c.authCfg.RequireCurrentPassword = true }
}

func withFailingMailer() func(*fixtureConfig) {
	return func(c *fixtureConfig) { c.mailer = &fakeMailer{fail: true} }
}

func newFixture(t *testing.T, opts ...func(*fixtureConfig)) *fixture {
	t.Helper()

	cfg := fixtureConfig{
		authCfg: config.AuthConfig{
			JWTSecret:               "test-secret",
			AccessTokenTTLMinutes:   60,
			VerificationTTLMinutes:  15,
			PasswordResetTTLMinutes: 30,
			BcryptCost:              bcrypt.MinCost,
		},
		codes:  fixedCodes{digits: "1234", n: 4321},
		mailer: &fakeMailer{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	candidates := newFakeCandidateRepo()
	tokens := newFakeTokenRepo(candidates)
	dispatcher := events.NewInMemoryDispatcher()

	svc := service.NewIdentityService(cfg.authCfg, config.MailConfig{ActivationURL: "http://localhost/candidate/activate"}, service.IdentityDependencies{
		Candidates: candidates,
		Tokens:     tokens,
		Tx:         fakeTransactor{},
		Hasher:     auth.NewBcryptHasher(cfg.authCfg.BcryptCost),
		TokenMgr:   auth.NewTokenManager(cfg.authCfg.JWTSecret, cfg.authCfg.AccessTokenTTLMinutes),
		Codes:      cfg.codes,
		Mailer:     cfg.mailer,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})

	return &fixture{svc: svc, candidates: candidates, tokens: tokens, mailer: cfg.mailer, dispatcher: dispatcher}
}

func janeDoe() service.RegisterInput {
	return service.RegisterInput{
		Firstname:   "Jane",
		Lastname:    "Doe",
		Email:       "jane.doe@example.com",
		Phone:       "+12025550123",
		DateOfBirth: time.Date(1994, 6, 15, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) mustRegister(t *testing.T, in service.RegisterInput) *domain.Candidate {
	t.Helper()
	candidate, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	return candidate
}

func (f *fixture) mustVerify(t *testing.T, email, code string) {
	t.Helper()
	require.NoError(t, f.svc.VerifyEmail(context.Background(), email, code))
}

func (f *fixture) registeredAndVerified(t *testing.T, password string) *domain.Candidate {
	t.Helper()
	candidate := f.mustRegister(t, janeDoe())
	f.mustVerify(t, candidate.Email, "1234")
	require.NoError(t, f.svc.SetPassword(context.Background(), candidate.Email, password))
	return candidate
}

func TestRegisterCreatesDisabledAccountWithVerificationToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate, err := fx.svc.Register(ctx, janeDoe())
	require.NoError(t, err)

	assert.Greater(t, candidate.ID, int64(0))
	assert.False(t, candidate.Enabled)
	assert.True(t, strings.HasPrefix(candidate.Matricule, "JD"))
	assert.Len(t, candidate.Matricule, 6)

	tokens := fx.tokens.all()
	require.Len(t, tokens, 1)
	assert.Equal(t, "1234", tokens[0].Code)
	assert.Equal(t, domain.TokenPurposeVerification, tokens[0].Purpose)
	assert.Equal(t, candidate.ID, tokens[0].CandidateID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tokens[0].ExpiresAt, 5*time.Second)

	mail, ok := fx.mailer.lastSent()
	require.True(t, ok)
	assert.Equal(t, candidate.Email, mail.To)
	assert.Equal(t, service.TemplateVerifyAccount, mail.Template)
	assert.Equal(t, "1234", mail.Code)
}

func TestRegisterValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*service.RegisterInput)
		field  string
	}{
		{"missing firstname", func(in *service.RegisterInput) { in.Firstname = "  " }, "firstname"},
		{"missing lastname", func(in *service.RegisterInput) { in.Lastname = "" }, "lastname"},
		{"missing email", func(in *service.RegisterInput) { in.Email = "" }, "email"},
		{"malformed email", func(in *service.RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"phone too short", func(in *service.RegisterInput) { in.Phone = "12345" }, "phone"},
		{"phone with letters", func(in *service.RegisterInput) { in.Phone = "+1202555012a" }, "phone"},
		{"missing date of birth", func(in *service.RegisterInput) { in.DateOfBirth = time.Time{} }, "date_of_birth"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := janeDoe()
			tc.mutate(&in)

			_, err := fx.svc.Register(ctx, in)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

			var domainErr *apperrors.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Contains(t, domainErr.Details, tc.field)
		})
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.mustRegister(t, janeDoe())

	in := janeDoe()
	in.Firstname = "Janet"
	in.Phone = "+12025550199"
	_, err := fx.svc.Register(ctx, in)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "DUPLICATE_IDENTITY"))

	all, err := fx.candidates.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRegisterRetriesMatriculeCollision(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// First attempt hits the matricule constraint; the retry draws a fresh
	// random suffix from the deterministic generator.
	fx.candidates.createErrs = []error{duplicateOn("candidates_matricule_key")}

	candidate, err := fx.svc.Register(ctx, janeDoe())
	require.NoError(t, err)
	assert.Equal(t, "JD4321", candidate.Matricule)
}

func TestRegisterGivesUpAfterRepeatedMatriculeCollisions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		fx.candidates.createErrs = append(fx.candidates.createErrs, duplicateOn("candidates_matricule_key"))
	}

	_, err := fx.svc.Register(ctx, janeDoe())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "DUPLICATE_IDENTITY"))

	all, err := fx.candidates.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRegisterDoesNotRetryNonMatriculeConflicts(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.candidates.createErrs = []error{duplicateOn("candidates_email_key")}

	_, err := fx.svc.Register(ctx, janeDoe())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "DUPLICATE_IDENTITY"))
}

func TestRegisterPersistsAccountWhenMailDeliveryFails(t *testing.T) {
	fx := newFixture(t, withFailingMailer())
	ctx := context.Background()

	candidate, err := fx.svc.Register(ctx, janeDoe())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOTIFICATION_FAILURE"))
	require.NotNil(t, candidate)

	stored, err := fx.candidates.GetByEmail(ctx, candidate.Email)
	require.NoError(t, err)
	assert.Equal(t, candidate.ID, stored.ID)
	assert.Len(t, fx.tokens.all(), 1)
}

func TestVerifyEmailEnablesAccountAndConsumesToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate := fx.mustRegister(t, janeDoe())

	require.NoError(t, fx.svc.VerifyEmail(ctx, candidate.Email, "1234"))

	stored, err := fx.candidates.GetByEmail(ctx, candidate.Email)
	require.NoError(t, err)
	assert.True(t, stored.Enabled)
	assert.Empty(t, fx.tokens.all())

	// The code is single-use: a second attempt must not succeed.
	err = fx.svc.VerifyEmail(ctx, candidate.Email, "1234")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_CODE"))
}

func TestVerifyEmailRejectsWrongCode(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate := fx.mustRegister(t, janeDoe())

	err := fx.svc.VerifyEmail(ctx, candidate.Email, "9999")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_CODE"))

	stored, err := fx.candidates.GetByEmail(ctx, candidate.Email)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
}

func TestVerifyEmailExpiredCodeLeavesEverythingUntouched(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate := fx.mustRegister(t, janeDoe())
	tokens := fx.tokens.all()
	require.Len(t, tokens, 1)
	fx.tokens.setExpiry(tokens[0].ID, time.Now().Add(-time.Minute))

	err := fx.svc.VerifyEmail(ctx, candidate.Email, "1234")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "TOKEN_EXPIRED"))

	stored, err := fx.candidates.GetByEmail(ctx, candidate.Email)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
	assert.Len(t, fx.tokens.all(), 1)
}

func TestVerifyEmailUnknownAccount(t *testing.T) {
	fx := newFixture(t)

	err := fx.svc.VerifyEmail(context.Background(), "nobody@example.com", "1234")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "ACCOUNT_NOT_FOUND"))
}

func TestVerifyEmailIgnoresCodesOfOtherAccounts(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	jane := fx.mustRegister(t, janeDoe())

	other := janeDoe()
	other.Firstname = "Mark"
	other.Lastname = "Roe"
	other.Email = "mark.roe@example.com"
	other.Phone = "+12025550199"
	fx.mustRegister(t, other)

	// Both accounts share the deterministic code, so the lookup must scope
	// by the presenting account's email.
	require.NoError(t, fx.svc.VerifyEmail(ctx, jane.Email, "1234"))

	stored, err := fx.candidates.GetByEmail(ctx, other.Email)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
}

func TestSetPasswordRequiresVerifiedAccount(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate := fx.mustRegister(t, janeDoe())

	err := fx.svc.SetPassword(ctx, candidate.Email, "s3curePass!")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	fx.mustVerify(t, candidate.Email, "1234")
	require.NoError(t, fx.svc.SetPassword(ctx, candidate.Email, "s3curePass!"))

	stored, err := fx.candidates.GetByEmail(ctx, candidate.Email)
	require.NoError(t, err)
	assert.True(t, stored.HasPassword())
}

func TestAuthenticateIssuesSessionToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate := fx.registeredAndVerified(t, "s3curePass!")

	token, expiresAt, authed, err := fx.svc.Authenticate(ctx, candidate.Email, "s3curePass!")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.Equal(t, candidate.ID, authed.ID)

	claims, err := fx.svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, candidate.Email, claims.Email)
	id, err := claims.CandidateID()
	require.NoError(t, err)
	assert.Equal(t, candidate.ID, id)
}

func TestAuthenticateFailsUniformly(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	verified := fx.registeredAndVerified(t, "s3curePass!")

	unverified := janeDoe()
	unverified.Firstname = "Mark"
	unverified.Lastname = "Roe"
	unverified.Email = "mark.roe@example.com"
	unverified.Phone = "+12025550199"
	fx.mustRegister(t, unverified)

	locked, err := fx.candidates.GetByEmail(ctx, verified.Email)
	require.NoError(t, err)
	lockedCopy := *locked

	cases := []struct {
		name     string
		email    string
		password string
		prepare  func(t *testing.T)
	}{
		{"unknown email", "nobody@example.com", "whatever", nil},
		{"wrong password", verified.Email, "not-the-password", nil},
		{"unverified account", unverified.Email, "s3curePass!", nil},
		{"locked account", verified.Email, "s3curePass!", func(t *testing.T) {
			lockedCopy.AccountLocked = true
			require.NoError(t, fx.candidates.Update(ctx, &lockedCopy))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.prepare != nil {
				tc.prepare(t)
			}
			_, _, _, err := fx.svc.Authenticate(ctx, tc.email, tc.password)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, "AUTHENTICATION_FAILED"))
		})
	}
}

func TestRequestPasswordResetIssuesResetToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate := fx.registeredAndVerified(t, "s3curePass!")

	require.NoError(t, fx.svc.RequestPasswordReset(ctx, candidate.Email))

	var reset *domain.EphemeralToken
	for _, token := range fx.tokens.all() {
		if token.Purpose == domain.TokenPurposeReset {
			reset = token
		}
	}
	require.NotNil(t, reset)
	assert.Equal(t, "4321", reset.Code)
	assert.Equal(t, candidate.ID, reset.CandidateID)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), reset.ExpiresAt, 5*time.Second)

	mail, ok := fx.mailer.lastSent()
	require.True(t, ok)
	assert.Equal(t, service.TemplateResetPassword, mail.Template)
	assert.Equal(t, "4321", mail.Code)
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	fx := newFixture(t)

	err := fx.svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "ACCOUNT_NOT_FOUND"))
	assert.Empty(t, fx.tokens.all())
}

func TestResetPasswordReplacesCredentialAndConsumesToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate := fx.registeredAndVerified(t, "oldPassword1")
	require.NoError(t, fx.svc.RequestPasswordReset(ctx, candidate.Email))

	require.NoError(t, fx.svc.ResetPassword(ctx, "4321", "newPassword1"))

	_, _, _, err := fx.svc.Authenticate(ctx, candidate.Email, "oldPassword1")
	require.Error(t, err)
	_, _, _, err = fx.svc.Authenticate(ctx, candidate.Email, "newPassword1")
	require.NoError(t, err)

	for _, token := range fx.tokens.all() {
		assert.NotEqual(t, domain.TokenPurposeReset, token.Purpose)
	}
}

func TestResetPasswordExpiredTokenNeverSucceeds(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate := fx.registeredAndVerified(t, "oldPassword1")
	require.NoError(t, fx.svc.RequestPasswordReset(ctx, candidate.Email))

	for _, token := range fx.tokens.all() {
		if token.Purpose == domain.TokenPurposeReset {
			fx.tokens.setExpiry(token.ID, time.Now().Add(-time.Second))
		}
	}

	err := fx.svc.ResetPassword(ctx, "4321", "newPassword1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "TOKEN_EXPIRED"))

	// The credential is untouched and the expired row stays in place.
	_, _, _, err = fx.svc.Authenticate(ctx, candidate.Email, "oldPassword1")
	require.NoError(t, err)
}

func TestResetPasswordInvalidCode(t *testing.T) {
	fx := newFixture(t)

	err := fx.svc.ResetPassword(context.Background(), "0000", "newPassword1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_CODE"))
}

func TestResetPasswordIgnoresVerificationCodes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.mustRegister(t, janeDoe())

	// "1234" exists, but only as a verification token.
	err := fx.svc.ResetPassword(ctx, "1234", "newPassword1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_CODE"))
}

func TestChangePasswordWithoutCurrentPasswordCheck(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate := fx.registeredAndVerified(t, "oldPassword1")

	require.NoError(t, fx.svc.ChangePassword(ctx, candidate.Email, "", "newPassword1"))

	_, _, _, err := fx.svc.Authenticate(ctx, candidate.Email, "newPassword1")
	require.NoError(t, err)
}

func TestChangePasswordWithCurrentPasswordCheck(t *testing.T) {
	fx := newFixture(t, withRequireCurrentPassword())
	ctx := context.Background()

	candidate := fx.registeredAndVerified(t, "oldPassword1")

	err := fx.svc.ChangePassword(ctx, candidate.Email, "wrong", "newPassword1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "AUTHENTICATION_FAILED"))

	err = fx.svc.ChangePassword(ctx, candidate.Email, "", "newPassword1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "AUTHENTICATION_FAILED"))

	require.NoError(t, fx.svc.ChangePassword(ctx, candidate.Email, "oldPassword1", "newPassword1"))
	_, _, _, err = fx.svc.Authenticate(ctx, candidate.Email, "newPassword1")
	require.NoError(t, err)
}

func TestLogoutUnknownCodeIsNoOpSuccess(t *testing.T) {
	fx := newFixture(t)

	require.NoError(t, fx.svc.Logout(context.Background(), "9999"))
}

func TestLogoutExpiresPresentedToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate := fx.mustRegister(t, janeDoe())

	require.NoError(t, fx.svc.Logout(ctx, "1234"))

	tokens := fx.tokens.all()
	require.Len(t, tokens, 1)
	assert.False(t, tokens[0].ExpiresAt.After(time.Now()))

	// The invalidated code is no longer usable.
	err := fx.svc.VerifyEmail(ctx, candidate.Email, "1234")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "TOKEN_EXPIRED"))
}

func TestActivateAccountOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token activates the account", func(t *testing.T) {
		fx := newFixture(t)
		candidate := fx.mustRegister(t, janeDoe())

		message, err := fx.svc.ActivateAccount(ctx, "1234")
		require.NoError(t, err)
		assert.Equal(t, service.ActivationSucceeded, message)

		stored, err := fx.candidates.GetByEmail(ctx, candidate.Email)
		require.NoError(t, err)
		assert.True(t, stored.Enabled)
		assert.Empty(t, fx.tokens.all())
	})

	t.Run("unknown token", func(t *testing.T) {
		fx := newFixture(t)

		message, err := fx.svc.ActivateAccount(ctx, "0000")
		require.NoError(t, err)
		assert.Equal(t, service.ActivationInvalid, message)
	})

	t.Run("expired token", func(t *testing.T) {
		fx := newFixture(t)
		candidate := fx.mustRegister(t, janeDoe())

		tokens := fx.tokens.all()
		require.Len(t, tokens, 1)
		fx.tokens.setExpiry(tokens[0].ID, time.Now().Add(-time.Minute))

		message, err := fx.svc.ActivateAccount(ctx, "1234")
		require.NoError(t, err)
		assert.Equal(t, service.ActivationExpired, message)

		stored, err := fx.candidates.GetByEmail(ctx, candidate.Email)
		require.NoError(t, err)
		assert.False(t, stored.Enabled)
	})
}

func TestEditProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("updates names and email", func(t *testing.T) {
		fx := newFixture(t)
		candidate := fx.registeredAndVerified(t, "s3curePass!")

		updated, err := fx.svc.EditProfile(ctx, service.EditProfileInput{
			CandidateID: candidate.ID,
			Firstname:   "Janet",
			Lastname:    "Doe",
			Email:       "janet.doe@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, "Janet", updated.Firstname)
		assert.Equal(t, "janet.doe@example.com", updated.Email)

		// The password was not supplied, so the credential is unchanged.
		_, _, _, err = fx.svc.Authenticate(ctx, "janet.doe@example.com", "s3curePass!")
		require.NoError(t, err)
	})

	t.Run("rejects email already in use", func(t *testing.T) {
		fx := newFixture(t)
		candidate := fx.mustRegister(t, janeDoe())

		other := janeDoe()
		other.Firstname = "Mark"
		other.Lastname = "Roe"
		other.Email = "mark.roe@example.com"
		other.Phone = "+12025550199"
		fx.mustRegister(t, other)

		_, err := fx.svc.EditProfile(ctx, service.EditProfileInput{
			CandidateID: candidate.ID,
			Firstname:   "Jane",
			Lastname:    "Doe",
			Email:       other.Email,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, "DUPLICATE_IDENTITY"))
	})

	t.Run("rejects short password", func(t *testing.T) {
		fx := newFixture(t)
		candidate := fx.mustRegister(t, janeDoe())

		_, err := fx.svc.EditProfile(ctx, service.EditProfileInput{
			CandidateID: candidate.ID,
			Firstname:   "Jane",
			Lastname:    "Doe",
			Email:       candidate.Email,
			Password:    "short",
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("unknown candidate", func(t *testing.T) {
		fx := newFixture(t)

		_, err := fx.svc.EditProfile(ctx, service.EditProfileInput{
			CandidateID: 42,
			Firstname:   "Jane",
			Lastname:    "Doe",
			Email:       "jane.doe@example.com",
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, "ACCOUNT_NOT_FOUND"))
	})
}

func TestUpdateMatricule(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate := fx.mustRegister(t, janeDoe())

	updated, err := fx.svc.UpdateMatricule(ctx, candidate.Matricule, "JD0007")
	require.NoError(t, err)
	assert.Equal(t, "JD0007", updated.Matricule)

	_, err = fx.svc.UpdateMatricule(ctx, "ZZ9999", "JD0008")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "ACCOUNT_NOT_FOUND"))
}

func TestCandidateFromSessionToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	candidate := fx.registeredAndVerified(t, "s3curePass!")
	token, _, _, err := fx.svc.Authenticate(ctx, candidate.Email, "s3curePass!")
	require.NoError(t, err)

	resolved, err := fx.svc.CandidateFromSessionToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, candidate.ID, resolved.ID)

	_, err = fx.svc.CandidateFromSessionToken(ctx, "not-a-jwt")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

func TestFullAccountLifecycle(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// Register, verify, set the first password.
	candidate := fx.mustRegister(t, janeDoe())
	assert.False(t, candidate.Enabled)
	fx.mustVerify(t, candidate.Email, "1234")
	require.NoError(t, fx.svc.SetPassword(ctx, candidate.Email, "initialPass1"))

	// Log in.
	session, _, _, err := fx.svc.Authenticate(ctx, candidate.Email, "initialPass1")
	require.NoError(t, err)
	assert.NotEmpty(t, session)

	// Forget and reset the password.
	require.NoError(t, fx.svc.RequestPasswordReset(ctx, candidate.Email))
	require.NoError(t, fx.svc.ResetPassword(ctx, "4321", "replacedPass1"))

	_, _, _, err = fx.svc.Authenticate(ctx, candidate.Email, "initialPass1")
	require.Error(t, err)
	_, _, _, err = fx.svc.Authenticate(ctx, candidate.Email, "replacedPass1")
	require.NoError(t, err)

	// Logout of a code that no longer exists stays a quiet success.
	require.NoError(t, fx.svc.Logout(ctx, "4321"))
}

func TestConcurrentRegistrationSameEmail(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	second := janeDoe()
	second.Firstname = "Mark"
	second.Lastname = "Roe"
	second.Phone = "+12025550199"

	inputs := []service.RegisterInput{janeDoe(), second}
	results := make([]error, len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in service.RegisterInput) {
			defer wg.Done()
			_, results[i] = fx.svc.Register(ctx, in)
		}(i, in)
	}
	wg.Wait()

	var successes, duplicates int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case apperrors.IsCode(err, "DUPLICATE_IDENTITY"):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, duplicates)

	all, err := fx.candidates.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
