package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"trip_planner/planner/schema"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "trip_planner"

var ErrInvalidToken = errors.New("invalid access token")

// Signs and verifies the HS256 access tokens handed out on login. The user id is stored
// as the token subject.
type JwtManager struct {
	auth *jwtauth.JWTAuth
	ttl  time.Duration
	now  func() time.Time
}

func NewJwtManager(secret []byte, ttl time.Duration) *JwtManager {
	return &JwtManager{auth: jwtauth.New("HS256", secret, nil), ttl: ttl, now: time.Now}
}

func (m *JwtManager) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(m.auth)
}

func (m *JwtManager) Authenticator() func(http.Handler) http.Handler {
	return jwtauth.Authenticator(m.auth)
}

func (m *JwtManager) CreateUserJwt(userId uuid.UUID) (string, error) {
	issuedAt := m.now()
	_, token, err := m.auth.Encode(map[string]interface{}{
		"sub": userId.String(),
		"iss": tokenIssuer,
		"iat": issuedAt,
		"exp": issuedAt.Add(m.ttl),
	})
	if err != nil {
		slog.Error("error signing access token", "user_id", userId, "error", err)
		return "", fmt.Errorf("error generating access token: %w", err)
	}
	return token, nil
}

// Returns the user id of the token verified by the Verifier middleware.
func UserIdFromToken(r *http.Request) (uuid.UUID, error) {
	token, _, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if token == nil {
		return uuid.Nil, fmt.Errorf("%w: no token in request", ErrInvalidToken)
	}
	if token.Issuer() != tokenIssuer {
		return uuid.Nil, fmt.Errorf("%w: unexpected issuer '%v'", ErrInvalidToken, token.Issuer())
	}

	userId, err := uuid.Parse(token.Subject())
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid user id '%v'", ErrInvalidToken, token.Subject())
	}
	return userId, nil
}

func UserFromContext(r *http.Request) (schema.User, error) {
	user, ok := r.Context().Value(userRequestContextKey).(schema.User)
	if !ok {
		return schema.User{}, fmt.Errorf("user field not found in request context")
	}
	return user, nil
}
