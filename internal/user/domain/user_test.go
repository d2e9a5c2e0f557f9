package domain

import "testing"

func TestClassifyIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want IdentifierKind
	}{
		{"a@b.com", IdentifierEmail},
		{"user@localhost", IdentifierEmail},
		{"@", IdentifierEmail},
		{"15551234567", IdentifierPhone},
		{"+1 555 123 4567", IdentifierPhone},
		{"", IdentifierPhone},
		{"not-an-email", IdentifierPhone},
	}
	for _, tc := range cases {
		if got := ClassifyIdentifier(tc.in); got != tc.want {
			t.Errorf("ClassifyIdentifier(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUserValidate(t *testing.T) {
	u := &User{}
	if err := u.Validate(); err == nil {
		t.Error("user without email or phone should fail validation")
	}

	u = &User{Email: "a@b.com"}
	if err := u.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if u.Role != RoleUser {
		t.Errorf("default role = %q, want %q", u.Role, RoleUser)
	}
	if u.Status != UserStatusActive {
		t.Errorf("default status = %q, want %q", u.Status, UserStatusActive)
	}
}

func TestUserSanitized(t *testing.T) {
	u := &User{ID: "u1", Email: "a@b.com", PasswordHash: "$2a$12$hash"}
	s := u.Sanitized()
	if s.PasswordHash != "" {
		t.Error("Sanitized should strip the password hash")
	}
	if u.PasswordHash == "" {
		t.Error("Sanitized must not mutate the original")
	}
	if s.ID != "u1" || s.Email != "a@b.com" {
		t.Error("Sanitized should preserve other fields")
	}
}

func TestIdentifierHelpers(t *testing.T) {
	u := &User{Email: "a@b.com", Phone: "1555", EmailVerified: true}

	if got := u.IdentifierFor(IdentifierEmail); got != "a@b.com" {
		t.Errorf("IdentifierFor(email) = %q", got)
	}
	if got := u.IdentifierFor(IdentifierPhone); got != "1555" {
		t.Errorf("IdentifierFor(phone) = %q", got)
	}
	if !u.VerifiedFor(IdentifierEmail) {
		t.Error("email channel should be verified")
	}
	if u.VerifiedFor(IdentifierPhone) {
		t.Error("phone channel should not be verified")
	}

	id, kind := u.PrimaryIdentifier()
	if id != "a@b.com" || kind != IdentifierEmail {
		t.Errorf("PrimaryIdentifier = %q %q, want email preferred", id, kind)
	}

	phoneOnly := &User{Phone: "1555"}
	id, kind = phoneOnly.PrimaryIdentifier()
	if id != "1555" || kind != IdentifierPhone {
		t.Errorf("PrimaryIdentifier = %q %q, want phone fallback", id, kind)
	}
}
