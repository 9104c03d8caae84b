package dto

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var phoneRule = validation.Match(regexp.MustCompile(`^\+?[0-9]{10,13}$`)).
	Error("phone number must be 10 to 13 digits with an optional leading +")

const dateLayout = "2006-01-02"

// RegisterRequest payload for new candidate registration.
type RegisterRequest struct {
	Firstname   string `json:"firstname"`
	Lastname    string `json:"lastname"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth"`
}

// Validate runs validation rules.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Firstname, validation.Required),
		validation.Field(&r.Lastname, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Phone, validation.Required, phoneRule),
		validation.Field(&r.DateOfBirth, validation.Required, validation.Date(dateLayout)),
	)
}

// ParsedDateOfBirth returns the date of birth as a time value.
func (r RegisterRequest) ParsedDateOfBirth() (time.Time, error) {
	return time.Parse(dateLayout, r.DateOfBirth)
}

// VerifyEmailRequest payload for code-based email verification.
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Validate runs validation rules.
func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required, validation.Length(4, 4), is.Digit),
	)
}

// SetPasswordRequest payload for establishing the first password.
type SetPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate runs validation rules.
func (r SetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

// AuthenticateRequest payload for login.
type AuthenticateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate runs validation rules.
func (r AuthenticateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// ForgotPasswordRequest payload for requesting a reset code.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Validate runs validation rules.
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordRequest payload for consuming a reset code.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Validate runs validation rules.
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
	)
}

// EditProfileRequest payload for profile updates. Password is optional.
type EditProfileRequest struct {
	CandidateID int64  `json:"candidate_id"`
	Firstname   string `json:"firstname"`
	Lastname    string `json:"lastname"`
	Email       string `json:"email"`
	Password    string `json:"password,omitempty"`
}

// Validate runs validation rules.
func (r EditProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CandidateID, validation.Required),
		validation.Field(&r.Firstname, validation.Required),
		validation.Field(&r.Lastname, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Length(8, 100)),
	)
}

// ChangePasswordRequest payload for authenticated password change. The
// current password is only enforced when the service is configured to
// require it.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password"`
}

// Validate runs validation rules.
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
	)
}

// LogoutRequest payload carrying the code to invalidate.
type LogoutRequest struct {
	Token string `json:"token"`
}

// Validate runs validation rules.
func (r LogoutRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

// UpdateMatriculeRequest payload for matricule reassignment.
type UpdateMatriculeRequest struct {
	OldMatricule string `json:"old_matricule"`
	NewMatricule string `json:"new_matricule"`
}

// Validate runs validation rules.
func (r UpdateMatriculeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldMatricule, validation.Required),
		validation.Field(&r.NewMatricule, validation.Required),
	)
}

// AuthResponse standard response for the authenticate endpoint.
type AuthResponse struct {
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Message   string    `json:"message"`
}

// CandidateDetailsResponse is the public view of an account.
type CandidateDetailsResponse struct {
	ID          int64  `json:"id"`
	Firstname   string `json:"firstname"`
	Lastname    string `json:"lastname"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Matricule   string `json:"matricule"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Enabled     bool   `json:"enabled"`
}
