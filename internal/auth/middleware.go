package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/solterra/solterra/internal/platform/httpx"
	"github.com/solterra/solterra/internal/shared"
)

// Claims is the token payload issued by the identity provider. Role decides
// which surface the caller may use; client_id binds a client user to its
// back-office record.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	ClientID string `json:"client_id,omitempty"`
	FullName string `json:"name,omitempty"`
}

// ClientResolverPort maps an authenticated user to its client record when the
// token carries no client_id.
type ClientResolverPort interface {
	ClientIDForUser(ctx context.Context, userID string) (string, error)
}

// Middleware authenticates bearer tokens and stamps the principal on the
// request context.
type Middleware struct {
	logger   *slog.Logger
	secret   []byte
	resolver ClientResolverPort
}

// NewMiddleware builds the middleware. resolver may be nil.
func NewMiddleware(logger *slog.Logger, secret string, resolver ClientResolverPort) *Middleware {
	return &Middleware{logger: logger, secret: []byte(secret), resolver: resolver}
}

// ParseToken validates a signed token and returns its claims.
func (m *Middleware) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token", shared.ErrUnauthorized)
	}
	return claims, nil
}

// Authenticate rejects requests without a valid bearer token and attaches the
// principal for downstream handlers.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}

		claims, err := m.ParseToken(tokenString)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}

		principal := shared.Principal{
			UserID:   claims.Subject,
			Role:     shared.Role(claims.Role),
			ClientID: claims.ClientID,
			FullName: claims.FullName,
		}
		if principal.Role == shared.RoleClient && principal.ClientID == "" && m.resolver != nil {
			clientID, err := m.resolver.ClientIDForUser(r.Context(), principal.UserID)
			if err != nil {
				m.logger.Warn("client resolution failed", "user_id", principal.UserID, "error", err)
			} else {
				principal.ClientID = clientID
			}
		}

		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireAdmin allows only back-office users.
func RequireAdmin(next http.Handler) http.Handler {
	return requireRole(shared.RoleAdmin, next)
}

// RequireClient allows only portal users bound to a client record.
func RequireClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := shared.PrincipalFromContext(r.Context())
		if !ok || principal.Role != shared.RoleClient || principal.ClientID == "" {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireRole(role shared.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := shared.PrincipalFromContext(r.Context())
		if !ok || principal.Role != role {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
