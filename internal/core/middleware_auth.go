package core

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cropsight/internal/config"
	"cropsight/internal/types"
)

// TokenVerifier signs and verifies the HS256 bearer tokens issued to
// dashboard users and pollers.
type TokenVerifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenVerifier creates a verifier from the auth configuration.
func NewTokenVerifier(cfg config.AuthConfig) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(cfg.JWTSecret.Unmask()),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
	}
}

// Issue creates a signed token for the given actor. Used by the ops tooling
// and by tests; the API itself does not mint tokens.
func (v *TokenVerifier) Issue(actor types.Actor) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": actor.ID,
		"typ": string(actor.Type),
		"iss": v.issuer,
		"iat": now.Unix(),
		"exp": now.Add(v.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses and validates a token, returning the actor it identifies.
func (v *TokenVerifier) Verify(tokenStr string) (*types.Actor, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "token has expired", err)
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token is invalid", err)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token carries no claims", nil)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token carries no subject", nil)
	}

	actorType := types.ActorTypeUser
	if typ, _ := claims["typ"].(string); typ == string(types.ActorTypeSystem) {
		actorType = types.ActorTypeSystem
	}
	return &types.Actor{ID: sub, Type: actorType, Source: "jwt"}, nil
}

// AuthMiddleware resolves the bearer token on /v1 requests into an Actor and
// injects it into the request context. Requests without a valid token never
// reach the handlers.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authorization bearer token is required", nil))
			return
		}

		actor, err := s.Verifier.Verify(token)
		if err != nil {
			Error(w, r, err)
			return
		}

		ctx := types.WithActor(r.Context(), *actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken pulls the token out of an "Authorization: Bearer x"
// header. Returns "" when the header is absent or malformed.
func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
