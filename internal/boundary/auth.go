package boundary

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims this boundary accepts. Narrowed from
// pkg/auth/middleware.go's HelmClaims down to what an evaluation caller
// needs to identify itself — this system has no tenant or role concept.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTValidator validates bearer tokens against a single shared HMAC
// signing key, grounded on pkg/auth/middleware.go's JWTValidator but
// simplified from a KeySet (RSA, key rotation, kid lookup) to one HS256
// secret, the way a single-tenant evaluation service needs.
type JWTValidator struct {
	signingKey []byte
}

// NewJWTValidator constructs a validator. A nil *JWTValidator is valid and
// means "auth not configured" — AuthMiddleware below fails closed against
// a nil validator rather than skipping the check.
func NewJWTValidator(signingKey string) *JWTValidator {
	if signingKey == "" {
		return nil
	}
	return &JWTValidator{signingKey: []byte(signingKey)}
}

// Validate parses and validates a bearer token string.
func (v *JWTValidator) Validate(tokenStr string) (*Claims, error) {
	if v == nil {
		return nil, fmt.Errorf("validator uninitialized")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// publicPaths never require a bearer token.
var publicPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

// AuthMiddleware enforces bearer-token authentication on every path except
// publicPaths. If validator is nil, all non-public requests are rejected
// (fail closed), mirroring pkg/auth/middleware.go's NewMiddleware.
func AuthMiddleware(validator *JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteUnauthorized(w, "missing Authorization header")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				WriteUnauthorized(w, `invalid Authorization header format, expected "Bearer <token>"`)
				return
			}

			if validator == nil {
				WriteUnauthorized(w, "authentication not configured")
				return
			}
			if _, err := validator.Validate(parts[1]); err != nil {
				WriteUnauthorized(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
