package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/candidate-identity-service/internal/api/dto"
	"github.com/spec-kit/candidate-identity-service/internal/auth"
	"github.com/spec-kit/candidate-identity-service/internal/domain"
	"github.com/spec-kit/candidate-identity-service/internal/service"
	apperrors "github.com/spec-kit/candidate-identity-service/pkg/util"
)

// CandidatesHandler exposes the identity lifecycle endpoints.
type CandidatesHandler struct {
	identity *service.IdentityService
}

// NewCandidatesHandler constructs handler.
func NewCandidatesHandler(identity *service.IdentityService) *CandidatesHandler {
	return &CandidatesHandler{identity: identity}
}

// Register handles POST /candidate/register.
func (h *CandidatesHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	dob, err := req.ParsedDateOfBirth()
	if err != nil {
		return apperrors.NewValidationError("date_of_birth must be formatted as YYYY-MM-DD", nil)
	}

	candidate, err := h.identity.Register(c.UserContext(), service.RegisterInput{
		Firstname:   req.Firstname,
		Lastname:    req.Lastname,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: dob,
	})
	if err != nil && !apperrors.IsCode(err, "NOTIFICATION_FAILURE") {
		return err
	}

	message := "registered successfully, please check your email for the verification code"
	if err != nil {
		message = "registered successfully, but the verification email could not be delivered; please request a resend"
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"candidate": candidateDetails(candidate),
			"message":   message,
		},
	})
}

// VerifyEmail handles POST /candidate/verify-email.
func (h *CandidatesHandler) VerifyEmail(c *fiber.Ctx) error {
	var req dto.VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	if err := h.identity.VerifyEmail(c.UserContext(), req.Email, req.Code); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"message": "email verified successfully, you can now set your password"},
	})
}

// SetPassword handles POST /candidate/set-password.
func (h *CandidatesHandler) SetPassword(c *fiber.Ctx) error {
	var req dto.SetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	if err := h.identity.SetPassword(c.UserContext(), req.Email, req.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"message": "password set successfully, you can now log in"},
	})
}

// Authenticate handles POST /candidate/authenticate.
func (h *CandidatesHandler) Authenticate(c *fiber.Ctx) error {
	var req dto.AuthenticateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	token, expiresAt, _, err := h.identity.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{Token: token, ExpiresAt: expiresAt, Message: "authentication successful"},
	})
}

// Activate handles GET /candidate/activate/:token.
func (h *CandidatesHandler) Activate(c *fiber.Ctx) error {
	code := c.Params("token")
	if code == "" {
		return apperrors.NewValidationError("activation token required", nil)
	}

	message, err := h.identity.ActivateAccount(c.UserContext(), code)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if message != service.ActivationSucceeded {
		status = http.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{
		"data": fiber.Map{"message": message},
	})
}

// ForgotPassword handles POST /candidate/forgot-password.
func (h *CandidatesHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	if err := h.identity.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"message": "password reset token sent, please check your email"},
	})
}

// ResetPassword handles POST /candidate/reset-password.
func (h *CandidatesHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	if err := h.identity.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"message": "password reset successfully"},
	})
}

// EditProfile handles PUT /candidate/edit-profile.
func (h *CandidatesHandler) EditProfile(c *fiber.Ctx) error {
	var req dto.EditProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	candidate, err := h.identity.EditProfile(c.UserContext(), service.EditProfileInput{
		CandidateID: req.CandidateID,
		Firstname:   req.Firstname,
		Lastname:    req.Lastname,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"candidate": candidateDetails(candidate),
			"message":   "profile updated successfully",
		},
	})
}

// ChangePassword handles PUT /candidate/change-password (bearer-protected).
func (h *CandidatesHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	err := h.identity.ChangePassword(c.UserContext(), principal.Candidate.Email, req.CurrentPassword, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"message": "password changed successfully"},
	})
}

// Logout handles POST /candidate/logout. Always reports success.
func (h *CandidatesHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	if err := h.identity.Logout(c.UserContext(), req.Token); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"message": "logout successful"},
	})
}

// GetUserDetails handles GET /candidate/get-user-details. The session token
// is taken from the query string or the bearer header.
func (h *CandidatesHandler) GetUserDetails(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		header := c.Get("Authorization")
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = parts[1]
		}
	}
	if token == "" {
		return apperrors.NewUnauthorized("session token required")
	}

	candidate, err := h.identity.CandidateFromSessionToken(c.UserContext(), token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": candidateDetails(candidate)})
}

// ListCandidates handles GET /candidate/get-all-candidates.
func (h *CandidatesHandler) ListCandidates(c *fiber.Ctx) error {
	candidates, err := h.identity.ListCandidates(c.UserContext())
	if err != nil {
		return err
	}

	details := make([]dto.CandidateDetailsResponse, 0, len(candidates))
	for _, candidate := range candidates {
		details = append(details, candidateDetails(candidate))
	}
	return c.JSON(fiber.Map{"data": details})
}

// UpdateMatricule handles PUT /candidate/update-matricule (bearer-protected).
func (h *CandidatesHandler) UpdateMatricule(c *fiber.Ctx) error {
	var req dto.UpdateMatriculeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	candidate, err := h.identity.UpdateMatricule(c.UserContext(), req.OldMatricule, req.NewMatricule)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"candidate": candidateDetails(candidate),
			"message":   "matricule updated successfully",
		},
	})
}

func candidateDetails(candidate *domain.Candidate) dto.CandidateDetailsResponse {
	if candidate == nil {
		return dto.CandidateDetailsResponse{}
	}
	details := dto.CandidateDetailsResponse{
		ID:        candidate.ID,
		Firstname: candidate.Firstname,
		Lastname:  candidate.Lastname,
		Email:     candidate.Email,
		Phone:     candidate.Phone,
		Matricule: candidate.Matricule,
		Enabled:   candidate.Enabled,
	}
	if !candidate.DateOfBirth.IsZero() {
		details.DateOfBirth = candidate.DateOfBirth.Format("2006-01-02")
	}
	return details
}
