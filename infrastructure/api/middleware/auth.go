package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/internal/log"
)

// Header names read by the authenticator.
const (
	HeaderAPIKey   = "X-API-KEY"
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

// Messages returned for rejected requests.
const (
	MessageMissingToken = "Unauthorized: missing token"
	MessageInvalidToken = "Unauthorized: invalid token"
)

// ErrAuthNotConfigured is returned when neither a JWT secret nor API keys are set.
var ErrAuthNotConfigured = errors.New("authentication is not configured: set JWT_SECRET or API_KEYS")

// PrincipalResolver finds the tenant of a user whose token carries none.
type PrincipalResolver interface {
	Principal(ctx context.Context, userID string) (tenant.Principal, error)
}

// Claims are the JWT claims issued and accepted by the API.
type Claims struct {
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	apiKeys map[string]struct{}
}

// NewAuthConfig creates an AuthConfig. Empty keys are ignored.
func NewAuthConfig(secret, issuer string, ttl time.Duration, apiKeys []string) AuthConfig {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return AuthConfig{
		secret:  []byte(secret),
		issuer:  issuer,
		ttl:     ttl,
		apiKeys: keys,
	}
}

// Enabled returns true if any credential type is configured.
func (c AuthConfig) Enabled() bool { return len(c.secret) > 0 || len(c.apiKeys) > 0 }

// Authenticator turns bearer tokens and API keys into principals.
type Authenticator struct {
	config   AuthConfig
	resolver PrincipalResolver
	now      func() time.Time
}

// NewAuthenticator creates an Authenticator. resolver may be nil, in which
// case tokens must carry a tenant_id claim.
func NewAuthenticator(config AuthConfig, resolver PrincipalResolver) (*Authenticator, error) {
	if !config.Enabled() {
		return nil, ErrAuthNotConfigured
	}
	return &Authenticator{config: config, resolver: resolver, now: time.Now}, nil
}

// Issue signs a token for the user in the tenant.
func (a *Authenticator) Issue(userID, tenantID string) (string, error) {
	if len(a.config.secret) == 0 {
		return "", fmt.Errorf("issue token: %w", ErrAuthNotConfigured)
	}
	now := a.now()
	claims := Claims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.config.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.config.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate returns the principal for the request.
func (a *Authenticator) Authenticate(r *http.Request) (tenant.Principal, error) {
	if key := r.Header.Get(HeaderAPIKey); key != "" && len(a.config.apiKeys) > 0 {
		return a.apiKeyPrincipal(r, key)
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return tenant.Principal{}, NewAuthenticationError("missing token")
	}
	return a.tokenPrincipal(r.Context(), strings.TrimSpace(token))
}

func (a *Authenticator) apiKeyPrincipal(r *http.Request, key string) (tenant.Principal, error) {
	if !a.knownKey(key) {
		return tenant.Principal{}, NewAuthenticationError("invalid API key")
	}
	tenantID := r.Header.Get(HeaderTenantID)
	if tenantID == "" {
		return tenant.Principal{}, NewAuthenticationError(HeaderTenantID + " header is required")
	}
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		userID = "api-key"
	}
	return tenant.NewPrincipal(userID, tenantID), nil
}

func (a *Authenticator) knownKey(key string) bool {
	for k := range a.config.apiKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func (a *Authenticator) tokenPrincipal(ctx context.Context, token string) (tenant.Principal, error) {
	if len(a.config.secret) == 0 {
		return tenant.Principal{}, NewAuthenticationError("invalid token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.config.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.config.secret, nil
	}, opts...)
	if err != nil {
		return tenant.Principal{}, NewAuthenticationError("invalid token")
	}
	if claims.Subject == "" {
		return tenant.Principal{}, NewAuthenticationError("invalid token")
	}

	if claims.TenantID != "" {
		return tenant.NewPrincipal(claims.Subject, claims.TenantID), nil
	}
	if a.resolver == nil {
		return tenant.Principal{}, tenant.ErrNoTenant
	}
	return a.resolver.Principal(ctx, claims.Subject)
}

// Middleware rejects unauthenticated requests and stores the principal on
// the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Authenticate(r)
		if err != nil {
			WriteMessage(w, r, err, nil, nil)
			return
		}
		ctx := tenant.WithPrincipal(r.Context(), p)
		ctx = log.WithPrincipal(ctx, p.TenantID(), p.UserID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
