package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenProvider_AccessRoundTrip(t *testing.T) {
	p := NewHMACTokenProvider([]byte("test-secret"), "iss", "aud", 5*time.Minute, 24*time.Hour)

	token, expiresAt, err := p.IssueAccess("u1", "user", "email", "a@b.com")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" {
		t.Fatal("IssueAccess returned empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Error("access token should expire in the future")
	}

	claims, err := p.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("sub = %q, want %q", claims.Subject, "u1")
	}
	if claims.Role != "user" {
		t.Errorf("role = %q, want %q", claims.Role, "user")
	}
	if claims.IdentifierType != "email" || claims.Identifier != "a@b.com" {
		t.Errorf("identifier claims = %q %q", claims.IdentifierType, claims.Identifier)
	}
}

func TestTokenProvider_RefreshCarriesSessionID(t *testing.T) {
	p := NewHMACTokenProvider([]byte("test-secret"), "iss", "aud", 5*time.Minute, 24*time.Hour)

	token, _, err := p.IssueRefresh("sess-1", "u1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	claims, err := p.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if claims.ID != "sess-1" {
		t.Errorf("jti = %q, want %q", claims.ID, "sess-1")
	}
	if claims.Subject != "u1" {
		t.Errorf("sub = %q, want %q", claims.Subject, "u1")
	}
}

func TestTokenProvider_ExpiredVsInvalid(t *testing.T) {
	p := NewHMACTokenProvider([]byte("test-secret"), "iss", "aud", -time.Minute, -time.Minute)

	expired, _, err := p.IssueAccess("u1", "user", "email", "a@b.com")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.VerifyAccess(expired); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expired token: want ErrTokenExpired, got %v", err)
	}

	valid := NewHMACTokenProvider([]byte("test-secret"), "iss", "aud", 5*time.Minute, time.Hour)
	token, _, _ := valid.IssueAccess("u1", "user", "email", "a@b.com")
	tampered := token[:len(token)-2] + "xx"
	if _, err := valid.VerifyAccess(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("tampered token: want ErrTokenInvalid, got %v", err)
	}
}

func TestTokenProvider_WrongKeyRejected(t *testing.T) {
	a := NewHMACTokenProvider([]byte("secret-a"), "iss", "aud", 5*time.Minute, time.Hour)
	b := NewHMACTokenProvider([]byte("secret-b"), "iss", "aud", 5*time.Minute, time.Hour)

	token, _, _ := a.IssueRefresh("sess-1", "u1")
	if _, err := b.VerifyRefresh(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("wrong key: want ErrTokenInvalid, got %v", err)
	}
}

func TestTokenProvider_IssuerAudienceChecked(t *testing.T) {
	a := NewHMACTokenProvider([]byte("secret"), "iss-a", "aud", 5*time.Minute, time.Hour)
	b := NewHMACTokenProvider([]byte("secret"), "iss-b", "aud", 5*time.Minute, time.Hour)

	token, _, _ := a.IssueAccess("u1", "user", "email", "a@b.com")
	if _, err := b.VerifyAccess(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("wrong issuer: want ErrTokenInvalid, got %v", err)
	}
}

func TestTokenProvider_KeypairRoundTrip(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := p.IssueAccess("u1", "admin", "phone", "15551234")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := p.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "admin" {
		t.Errorf("claims = %q %q", claims.Subject, claims.Role)
	}
}

func TestTokenProvider_HMACTokenRejectedByKeypair(t *testing.T) {
	kp, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	hmac := NewHMACTokenProvider([]byte("secret"), "test-issuer", "test-audience", 5*time.Minute, time.Hour)
	token, _, _ := hmac.IssueAccess("u1", "user", "email", "a@b.com")
	if _, err := kp.VerifyAccess(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("HS256 token against keypair provider: want ErrTokenInvalid, got %v", err)
	}
}

func TestParseTokenTTL(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"5m", 5 * time.Minute},
		{"300s", 300 * time.Second},
		{"1m", time.Minute},
		{" 10m ", 10 * time.Minute},
		{"", 5 * time.Minute},
		{"abc", 5 * time.Minute},
		{"5h", 5 * time.Minute},
		{"m", 5 * time.Minute},
		{"-3m", 5 * time.Minute},
		{"0s", 5 * time.Minute},
	}
	for _, tc := range cases {
		if got := ParseTokenTTL(tc.in); got != tc.want {
			t.Errorf("ParseTokenTTL(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestVerifyRefresh_EmptyJTIRejected(t *testing.T) {
	p := NewHMACTokenProvider([]byte("secret"), "iss", "aud", 5*time.Minute, time.Hour)
	token, _, err := p.IssueRefresh("", "u1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := p.VerifyRefresh(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("empty jti: want ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyAccess_Garbage(t *testing.T) {
	p := NewHMACTokenProvider([]byte("secret"), "iss", "aud", 5*time.Minute, time.Hour)
	for _, in := range []string{"", "not-a-jwt", strings.Repeat("a.", 10)} {
		if _, err := p.VerifyAccess(in); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("VerifyAccess(%q): want ErrTokenInvalid, got %v", in, err)
		}
	}
}
