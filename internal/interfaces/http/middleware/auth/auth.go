package auth

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// AuthMiddleware guards the operator API with HS256 bearer tokens
type AuthMiddleware struct {
	tokenAuth *jwtauth.JWTAuth
	logger    *zap.Logger
}

func NewAuthMiddleware(secret string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokenAuth: jwtauth.New("HS256", []byte(secret), nil),
		logger:    logger,
	}
}

// TokenAuth exposes the signer, mostly for issuing test tokens
func (m *AuthMiddleware) TokenAuth() *jwtauth.JWTAuth {
	return m.tokenAuth
}

// Verifier parses the bearer token from the Authorization header
func (m *AuthMiddleware) Verifier(next http.Handler) http.Handler {
	return jwtauth.Verify(m.tokenAuth, jwtauth.TokenFromHeader)(next)
}

// Authenticator rejects requests without a valid token and stores the
// subject and roles in the context.
func (m *AuthMiddleware) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			m.logger.Debug("rejected operator token", zap.Error(err))
			errors.RespondWithError(w, domain.ErrUnauthorized)
			return
		}

		ctx := r.Context()
		if sub, ok := claims["sub"].(string); ok {
			ctx = domain.WithSubject(ctx, sub)
		}
		ctx = domain.WithRoles(ctx, rolesFromClaims(claims))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles, ok := domain.GetRoles(r.Context())
			if !ok {
				errors.RespondWithError(w, domain.ErrForbidden)
				return
			}

			for _, userRole := range roles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			errors.RespondWithError(w, domain.ErrForbidden)
		})
	}
}

func rolesFromClaims(claims map[string]interface{}) []string {
	switch v := claims["roles"].(type) {
	case []string:
		return v
	case []interface{}:
		roles := make([]string, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	case string:
		return []string{v}
	}
	return nil
}
