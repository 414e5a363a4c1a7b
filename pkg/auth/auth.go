// Package auth verifies identity-provider bearer tokens and carries the
// verified identity through request contexts.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nicktill/thermonest/pkg/errdefs"
	"github.com/nicktill/thermonest/pkg/httpx"
)

// Identity is the verified caller.
type Identity struct {
	Subject string `json:"sub"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Claims are the token claims the dashboard reads.
type Claims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks signature, issuer, audience and expiry.
type JWTVerifier struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
}

// NewJWTVerifier creates a verifier with an explicit key function. methods
// restricts the accepted signing algorithms.
func NewJWTVerifier(keyfunc jwt.Keyfunc, issuer, audience string, methods ...string) *JWTVerifier {
	if len(methods) == 0 {
		methods = []string{jwt.SigningMethodRS256.Alg()}
	}
	return &JWTVerifier{
		keyfunc: keyfunc,
		parser: jwt.NewParser(
			jwt.WithValidMethods(methods),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// NewJWKSVerifier creates an RS256 verifier whose keys come from the
// provider's JWKS endpoint. Keys are refreshed in the background until ctx
// is cancelled.
func NewJWKSVerifier(ctx context.Context, domain, audience string) (*JWTVerifier, error) {
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)

	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", jwksURL, err)
	}

	return NewJWTVerifier(k.Keyfunc, fmt.Sprintf("https://%s/", domain), audience), nil
}

// Verify parses token and returns the caller's identity
func (v *JWTVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	var claims Claims
	if _, err := v.parser.ParseWithClaims(token, &claims, v.keyfunc); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", errdefs.ErrAuth, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", errdefs.ErrAuth)
	}

	return Identity{
		Subject: claims.Subject,
		Name:    claims.Name,
		Email:   claims.Email,
		Picture: claims.Picture,
	}, nil
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Middleware rejects requests without a valid bearer token with 401.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httpx.RespondErr(w, fmt.Errorf("%w: missing bearer token", errdefs.ErrAuth))
				return
			}

			id, err := v.Verify(r.Context(), token)
			if err != nil {
				httpx.RespondErr(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
