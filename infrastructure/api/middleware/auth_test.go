package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/helixml/damkit/domain/tenant"
)

type profileResolver map[string]string

func (r profileResolver) Principal(_ context.Context, userID string) (tenant.Principal, error) {
	tenantID, ok := r[userID]
	if !ok {
		return tenant.Principal{}, tenant.ErrNoTenant
	}
	return tenant.NewPrincipal(userID, tenantID), nil
}

func newAuthenticator(t *testing.T, keys ...string) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(NewAuthConfig("secret", "damkit", time.Hour, keys), profileResolver{"bob": "t2"})
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	return a
}

// principalEcho writes the principal seen by the handler.
func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := tenant.FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"user": p.UserID(), "tenant": p.TenantID()})
	})
}

func serve(a *Authenticator, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.Middleware(principalEcho()).ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestNewAuthenticator_RequiresCredentials(t *testing.T) {
	_, err := NewAuthenticator(NewAuthConfig("", "", 0, []string{""}), nil)
	if err != ErrAuthNotConfigured {
		t.Errorf("err = %v, want ErrAuthNotConfigured", err)
	}
}

func TestMiddleware_MissingToken(t *testing.T) {
	a := newAuthenticator(t)

	w := serve(a, httptest.NewRequest(http.MethodPost, "/verify", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != MessageMissingToken {
		t.Errorf("error = %v, want %q", got, MessageMissingToken)
	}
}

func TestMiddleware_IssuedTokenRoundTrip(t *testing.T) {
	a := newAuthenticator(t)
	token, err := a.Issue("alice", "t1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(a, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["user"] != "alice" || body["tenant"] != "t1" {
		t.Errorf("principal = %v", body)
	}
}

func TestMiddleware_TenantFromProfile(t *testing.T) {
	a := newAuthenticator(t)
	token, err := a.Issue("bob", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(a, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := decodeBody(t, w)["tenant"]; got != "t2" {
		t.Errorf("tenant = %v, want t2", got)
	}
}

func TestMiddleware_UserWithoutTenant(t *testing.T) {
	a := newAuthenticator(t)
	token, err := a.Issue("carol", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(a, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestMiddleware_RejectsBadTokens(t *testing.T) {
	a := newAuthenticator(t)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TenantID: "t1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "damkit",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredToken, _ := expired.SignedString([]byte("secret"))

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TenantID: "t1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "damkit",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	foreignToken, _ := foreign.SignedString([]byte("other-secret"))

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TenantID: "t1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	wrongIssuerToken, _ := wrongIssuer.SignedString([]byte("secret"))

	for name, token := range map[string]string{
		"expired":      expiredToken,
		"wrong key":    foreignToken,
		"wrong issuer": wrongIssuerToken,
		"garbage":      "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := serve(a, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			if got := decodeBody(t, w)["error"]; got != MessageInvalidToken {
				t.Errorf("error = %v, want %q", got, MessageInvalidToken)
			}
		})
	}
}

func TestMiddleware_APIKey(t *testing.T) {
	a := newAuthenticator(t, "key-1")

	t.Run("valid key with tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderAPIKey, "key-1")
		req.Header.Set(HeaderTenantID, "t9")
		w := serve(a, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		body := decodeBody(t, w)
		if body["tenant"] != "t9" || body["user"] != "api-key" {
			t.Errorf("principal = %v", body)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderAPIKey, "nope")
		req.Header.Set(HeaderTenantID, "t9")
		if w := serve(a, req); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("key without tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderAPIKey, "key-1")
		if w := serve(a, req); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}
