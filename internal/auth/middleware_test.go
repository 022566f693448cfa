package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/solterra/solterra/internal/shared"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func baseClaims(sub, role string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
}

type fakeResolver struct {
	clientID string
}

func (f fakeResolver) ClientIDForUser(context.Context, string) (string, error) {
	return f.clientID, nil
}

func newAuthedServer(t *testing.T, resolver ClientResolverPort) (*httptest.Server, *shared.Principal) {
	t.Helper()
	var captured shared.Principal
	mw := NewMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)), testSecret, resolver)
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, &captured
}

func get(t *testing.T, srv *httptest.Server, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAuthenticateStampsPrincipal(t *testing.T) {
	srv, principal := newAuthedServer(t, nil)

	claims := baseClaims("user_1", "admin")
	claims.FullName = "Ana Admin"
	resp := get(t, srv, signToken(t, claims))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "user_1", principal.UserID)
	require.True(t, principal.IsAdmin())
	require.Equal(t, "Ana Admin", principal.FullName)
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	srv, _ := newAuthedServer(t, nil)
	resp := get(t, srv, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	srv, _ := newAuthedServer(t, nil)

	claims := baseClaims("user_1", "admin")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	resp := get(t, srv, signToken(t, claims))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticateRejectsWrongSignature(t *testing.T) {
	srv, _ := newAuthedServer(t, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, baseClaims("user_1", "admin"))
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	resp := get(t, srv, signed)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticateResolvesClientID(t *testing.T) {
	srv, principal := newAuthedServer(t, fakeResolver{clientID: "client_7"})

	resp := get(t, srv, signToken(t, baseClaims("user_2", "client")))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	clientID, ok := principal.IsClient()
	require.True(t, ok)
	require.Equal(t, "client_7", clientID)
}

func TestRequireAdminBlocksClients(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{
		UserID: "user_2", Role: shared.RoleClient, ClientID: "client_7",
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireClientNeedsClientBinding(t *testing.T) {
	handler := RequireClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{
		UserID: "user_2", Role: shared.RoleClient,
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
