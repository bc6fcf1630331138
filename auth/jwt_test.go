package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestJWTAuthenticator_Supports(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{Secret: testSecret})

	tests := []struct {
		name   string
		header http.Header
		want   bool
	}{
		{name: "no header", header: http.Header{}, want: false},
		{name: "bearer", header: bearer("abc"), want: true},
		{name: "basic", header: http.Header{"Authorization": {"Basic abc"}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Supports(tt.header); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_Authenticate(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{Secret: testSecret, Issuer: "researchflow"})
	future := time.Now().Add(time.Hour).Unix()
	past := time.Now().Add(-time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:  "valid",
			token: signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "analyst-1", "iss": "researchflow", "exp": future}),
		},
		{
			name:    "expired",
			token:   signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "analyst-1", "iss": "researchflow", "exp": past}),
			wantErr: ErrTokenExpired,
		},
		{
			name:    "wrong issuer",
			token:   signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "analyst-1", "iss": "other", "exp": future}),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "wrong secret",
			token:   signToken(t, jwt.SigningMethodHS256, []byte("other-secret"), jwt.MapClaims{"sub": "analyst-1", "iss": "researchflow", "exp": future}),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "wrong algorithm",
			token:   signToken(t, jwt.SigningMethodHS512, testSecret, jwt.MapClaims{"sub": "analyst-1", "iss": "researchflow", "exp": future}),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "no subject",
			token:   signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"iss": "researchflow", "exp": future}),
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "malformed",
			token:   "not-a-token",
			wantErr: ErrTokenMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Authenticate(context.Background(), bearer(tt.token))
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if tt.wantErr == nil {
				if !res.OK() {
					t.Fatalf("expected success, got %v", res.Err)
				}
				if res.Identity.Principal != "analyst-1" || res.Identity.Method != MethodJWT {
					t.Errorf("Identity = %+v", res.Identity)
				}
				if res.Identity.ExpiresAt.IsZero() {
					t.Error("ExpiresAt not set")
				}
				return
			}
			if res.OK() {
				t.Fatal("expected failure")
			}
			if !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", res.Err, tt.wantErr)
			}
		})
	}
}

func TestJWTAuthenticator_EmptyBearer(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{Secret: testSecret})
	res, err := a.Authenticate(context.Background(), http.Header{"Authorization": {"Bearer "}})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !errors.Is(res.Err, ErrMissingCredentials) {
		t.Errorf("Err = %v, want ErrMissingCredentials", res.Err)
	}
}
