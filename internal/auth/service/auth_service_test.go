package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"auth-control-plane/internal/lockout"
	"auth-control-plane/internal/security"
	sessiondomain "auth-control-plane/internal/session/domain"
	sessionrepo "auth-control-plane/internal/session/repository"
	sessionservice "auth-control-plane/internal/session/service"
	userdomain "auth-control-plane/internal/user/domain"
)

// memSessionRepo is a mutex-guarded in-memory sessionrepo.Repository.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*sessiondomain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*sessiondomain.Session)}
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.sessions[s.ID] = &c
	return nil
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.UserID != userID || s.RevokedAt != nil {
		return false, nil
	}
	t := at
	s.RevokedAt = &t
	return true, nil
}

func (r *memSessionRepo) RevokeAllByUser(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			t := at
			s.RevokedAt = &t
		}
	}
	return nil
}

func (r *memSessionRepo) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.Active(now) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (r *memSessionRepo) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		t := at
		s.LastUsedAt = &t
	}
	return nil
}

func (r *memSessionRepo) Aggregate(ctx context.Context, userID string, now time.Time) (*sessionrepo.Analytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &sessionrepo.Analytics{}
	for _, s := range r.sessions {
		if userID != "" && s.UserID != userID {
			continue
		}
		if s.RevokedAt != nil {
			a.RevokedSessions++
		} else if s.Active(now) {
			a.ActiveSessions++
		}
	}
	return a, nil
}

type authFixture struct {
	svc   *AuthService
	dir   *memUserDirectory
	guard *lockout.Guard
}

func newAuthFixture(t *testing.T, users ...*userdomain.User) *authFixture {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	dir := &memUserDirectory{users: users}
	guard := lockout.NewGuard(lockout.NewMemoryStore(), lockout.Config{MaxAttempts: 3}, zerolog.Nop())
	sessions := sessionservice.NewManager(newMemSessionRepo(), tokens, zerolog.Nop())
	validator := NewValidator(dir, security.NewHasher(bcrypt.MinCost))
	svc := NewAuthService(dir, validator, guard, sessions, tokens, nil, nil, zerolog.Nop())
	return &authFixture{svc: svc, dir: dir, guard: guard}
}

func TestAuthService_LoginSuccess(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, verifiedUser(t))

	pair, err := f.svc.Login(ctx, "a@b.com", "correct-horse", "10.0.0.1", "cli")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("login should return both tokens")
	}
	if !pair.AccessTokenExpiresAt.After(time.Now()) {
		t.Error("access token expiry should be in the future")
	}

	sessions, err := f.svc.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("active sessions after login = %d, want 1", len(sessions))
	}
	if sessions[0].IP != "10.0.0.1" || sessions[0].Device != "cli" {
		t.Errorf("session context = %+v", sessions[0])
	}
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, verifiedUser(t))

	if _, err := f.svc.Login(ctx, "a@b.com", "wrong", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
	n, err := f.guard.FailureCount(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("FailureCount: %v", err)
	}
	if n != 1 {
		t.Errorf("failure count after one bad login = %d, want 1", n)
	}
}

func TestAuthService_LockoutAfterThreshold(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, verifiedUser(t))

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Login(ctx, "a@b.com", "wrong", "", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	callsBefore := f.dir.callCount()
	_, err := f.svc.Login(ctx, "a@b.com", "correct-horse", "", "")
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("locked login: want AccountLockedError, got %v", err)
	}
	if locked.EndsAt.IsZero() {
		t.Error("AccountLockedError should carry the lockout deadline")
	}
	if got := f.dir.callCount(); got != callsBefore {
		t.Errorf("locked login touched the directory %d times; the gate must run first", got-callsBefore)
	}
	if Code(err) != "account_locked" {
		t.Errorf("Code = %q, want account_locked", Code(err))
	}
}

func TestAuthService_SuccessClearsFailures(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, verifiedUser(t))

	f.svc.Login(ctx, "a@b.com", "wrong", "", "")
	f.svc.Login(ctx, "a@b.com", "wrong", "", "")

	if _, err := f.svc.Login(ctx, "a@b.com", "correct-horse", "", ""); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if n, _ := f.guard.FailureCount(ctx, "a@b.com"); n != 0 {
		t.Errorf("failure count after successful login = %d, want 0", n)
	}

	// The window restarts: two more failures still do not lock.
	f.svc.Login(ctx, "a@b.com", "wrong", "", "")
	f.svc.Login(ctx, "a@b.com", "wrong", "", "")
	if locked, _ := f.guard.IsLocked(ctx, "a@b.com"); locked {
		t.Error("counter should have been reset by the successful login")
	}
}

func TestAuthService_UnverifiedDoesNotCountAsFailure(t *testing.T) {
	ctx := context.Background()
	u := verifiedUser(t)
	u.EmailVerified = false
	f := newAuthFixture(t, u)

	if _, err := f.svc.Login(ctx, "a@b.com", "correct-horse", "", ""); !errors.Is(err, ErrAccountNotVerified) {
		t.Fatalf("unverified login: want ErrAccountNotVerified, got %v", err)
	}
	if n, _ := f.guard.FailureCount(ctx, "a@b.com"); n != 0 {
		t.Errorf("unverified login recorded %d failures, want 0", n)
	}
}

func TestAuthService_RefreshRotation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, verifiedUser(t))

	pair, err := f.svc.Login(ctx, "a@b.com", "correct-horse", "10.0.0.1", "cli")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	rotated, err := f.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("refresh should mint a new refresh token")
	}
	if rotated.AccessToken == "" {
		t.Error("refresh should mint a new access token")
	}

	// The presented token was consumed by rotation.
	if _, err := f.svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("second redemption: want ErrInvalidRefreshToken, got %v", err)
	}
	// The rotated token still works.
	if _, err := f.svc.Refresh(ctx, rotated.RefreshToken); err != nil {
		t.Errorf("rotated token should redeem: %v", err)
	}
}

func TestAuthService_RefreshRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, verifiedUser(t))

	for _, token := range []string{"", "not-a-jwt"} {
		if _, err := f.svc.Refresh(ctx, token); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Errorf("Refresh(%q): want ErrInvalidRefreshToken, got %v", token, err)
		}
	}
}

func TestAuthService_RefreshRejectsForeignToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, verifiedUser(t))

	// Well-formed token for a session id this deployment never issued.
	other := security.NewHMACTokenProvider([]byte("other"), "test-issuer", "test-audience", time.Minute, time.Hour)
	token, _, err := other.IssueRefresh("some-session", "u1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("foreign token: want ErrInvalidRefreshToken, got %v", err)
	}
}

func TestAuthService_RefreshAfterLogout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, verifiedUser(t))

	pair, err := f.svc.Login(ctx, "a@b.com", "correct-horse", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.svc.Logout(ctx, "u1", ""); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("refresh of revoked session: want ErrInvalidRefreshToken, got %v", err)
	}
}

func TestAuthService_LogoutAll(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, verifiedUser(t))

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Login(ctx, "a@b.com", "correct-horse", "", ""); err != nil {
			t.Fatalf("Login: %v", err)
		}
	}
	if err := f.svc.Logout(ctx, "u1", ""); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	sessions, err := f.svc.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("active sessions after logout-all = %d, want 0", len(sessions))
	}
}

func TestAuthService_LogoutSingleSession(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, verifiedUser(t))

	f.svc.Login(ctx, "a@b.com", "correct-horse", "", "")
	f.svc.Login(ctx, "a@b.com", "correct-horse", "", "")
	sessions, err := f.svc.ListSessions(ctx, "u1")
	if err != nil || len(sessions) != 2 {
		t.Fatalf("ListSessions = %d %v, want 2", len(sessions), err)
	}

	if err := f.svc.Logout(ctx, "u1", sessions[0].ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	remaining, _ := f.svc.ListSessions(ctx, "u1")
	if len(remaining) != 1 || remaining[0].ID != sessions[1].ID {
		t.Errorf("remaining sessions = %+v, want only %s", remaining, sessions[1].ID)
	}

	if err := f.svc.Logout(ctx, "u1", sessions[0].ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("logout of revoked session: want ErrSessionNotFound, got %v", err)
	}
	if err := f.svc.Logout(ctx, "u2", remaining[0].ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("logout of another user's session: want ErrSessionNotFound, got %v", err)
	}
}

func TestAuthService_RevokeSessionRequiresID(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, verifiedUser(t))

	if err := f.svc.RevokeSession(ctx, "u1", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("RevokeSession with empty id: want ErrSessionNotFound, got %v", err)
	}
}

func TestAuthService_SessionAnalytics(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, verifiedUser(t))

	f.svc.Login(ctx, "a@b.com", "correct-horse", "", "")
	pair, _ := f.svc.Login(ctx, "a@b.com", "correct-horse", "", "")
	if _, err := f.svc.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	a, err := f.svc.SessionAnalytics(ctx, "u1")
	if err != nil {
		t.Fatalf("SessionAnalytics: %v", err)
	}
	if a.ActiveSessions != 2 || a.RevokedSessions != 1 {
		t.Errorf("analytics = %+v, want 2 active / 1 revoked after one rotation", a)
	}
}

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidCredentials, "invalid_credentials"},
		{ErrAccountNotVerified, "account_not_verified"},
		{&AccountLockedError{}, "account_locked"},
		{ErrInvalidRefreshToken, "invalid_refresh_token"},
		{ErrSessionNotFound, "session_not_found"},
		{security.ErrTokenExpired, "token_expired"},
		{security.ErrTokenInvalid, "token_invalid"},
		{lockout.ErrStoreUnavailable, "temporarily_unavailable"},
		{errors.New("pg down"), "temporarily_unavailable"},
	}
	for _, tc := range cases {
		if got := Code(tc.err); got != tc.want {
			t.Errorf("Code(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
