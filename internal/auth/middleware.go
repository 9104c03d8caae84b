package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/candidate-identity-service/internal/domain"
	"github.com/spec-kit/candidate-identity-service/internal/repository"
	apperrors "github.com/spec-kit/candidate-identity-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Candidate *domain.Candidate
}

// AuthMiddleware validates bearer tokens and loads the candidate principal.
type AuthMiddleware struct {
	tokens     *TokenManager
	candidates repository.CandidateRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, candidates repository.CandidateRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, candidates: candidates}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	id, err := claims.CandidateID()
	if err != nil {
		return apperrors.NewUnauthorized("invalid token subject")
	}

	candidate, err := m.candidates.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("account not found")
		}
		return apperrors.MapError(err)
	}
	if candidate.AccountLocked {
		return apperrors.NewUnauthorized("account locked")
	}

	c.Locals(principalKey, &Principal{Candidate: candidate})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated candidate.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
