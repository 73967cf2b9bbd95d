package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func userToken(t *testing.T, sub, email, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	if role != "" {
		claims["role"] = role
	}
	return signToken(t, testSecret, claims)
}

func echoIdentity(t *testing.T, captured *Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		require.True(t, ok)
		*captured = id
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(handler http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateValidToken(t *testing.T) {
	var got Identity
	h := Authenticate(testSecret)(echoIdentity(t, &got))

	rec := doRequest(h, userToken(t, "user-1", "u1@example.com", "admin"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, Identity{UserID: "user-1", Email: "u1@example.com", Role: "admin"}, got)
	require.True(t, got.IsAdmin())
}

func TestAuthenticateDefaultsRoleToUser(t *testing.T) {
	var got Identity
	h := Authenticate(testSecret)(echoIdentity(t, &got))

	rec := doRequest(h, userToken(t, "user-2", "", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user", got.Role)
	require.False(t, got.IsAdmin())
}

func TestAuthenticateRejects(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	h := Authenticate(testSecret)(next)

	cases := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not.a.jwt"},
		{"wrong secret", signToken(t, "other-secret", jwt.MapClaims{
			"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix(),
		})},
		{"expired", signToken(t, testSecret, jwt.MapClaims{
			"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"no subject", signToken(t, testSecret, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(h, tc.token)
			require.Equal(t, http.StatusUnauthorized, rec.Code)

			// rejection body stays the envelope shape the rest of the API speaks
			var out struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			require.False(t, out.Success)
			require.NotEmpty(t, out.Message)
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	chain := Authenticate(testSecret)(RequireRole("admin")(next))

	rec := doRequest(chain, userToken(t, "user-1", "", "user"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(chain, userToken(t, "admin-1", "", "admin"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleWithoutAuthenticate(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	h := RequireRole("admin")(next)

	rec := doRequest(h, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
