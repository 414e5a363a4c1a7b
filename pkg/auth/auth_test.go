package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nicktill/thermonest/pkg/errdefs"
	"github.com/nicktill/thermonest/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-signing-secret")

const (
	testIssuer   = "https://thermonest.test/"
	testAudience = "https://api.thermonest.test"
)

func newTestVerifier() *JWTVerifier {
	return NewJWTVerifier(func(*jwt.Token) (interface{}, error) {
		return testSecret, nil
	}, testIssuer, testAudience, jwt.SigningMethodHS256.Alg())
}

func sign(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func validClaims() Claims {
	return Claims{
		Name:    "Ada",
		Email:   "ada@example.com",
		Picture: "https://example.com/ada.png",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "auth0|ada",
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerify_Valid(t *testing.T) {
	id, err := newTestVerifier().Verify(context.Background(), sign(t, validClaims()))
	require.NoError(t, err)
	require.Equal(t, "auth0|ada", id.Subject)
	require.Equal(t, "Ada", id.Name)
	require.Equal(t, "ada@example.com", id.Email)
}

func TestVerify_Rejects(t *testing.T) {
	v := newTestVerifier()

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"someone-else"}

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "https://evil.test/"

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	noSubject := validClaims()
	noSubject.Subject = ""

	for name, claims := range map[string]Claims{
		"expired":        expired,
		"wrong audience": wrongAudience,
		"wrong issuer":   wrongIssuer,
		"no expiry":      noExpiry,
		"no subject":     noSubject,
	} {
		_, err := v.Verify(context.Background(), sign(t, claims))
		require.ErrorIs(t, err, errdefs.ErrAuth, name)
	}

	_, err := v.Verify(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, errdefs.ErrAuth)
}

func TestMiddleware(t *testing.T) {
	var seen Identity
	h := Middleware(newTestVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/active-users", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	var resp httpx.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Contains(t, resp.Message, "missing bearer token")

	req = httptest.NewRequest(http.MethodGet, "/api/active-users", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/active-users", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, validClaims()))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "auth0|ada", seen.Subject)
}
