package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/oneshot/internal/ephemeral"
	"github.com/hitoshi/oneshot/internal/model"
)

func assertAuthKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	var authErr *Error
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want *auth.Error(%s)", err, want)
	}
	if authErr.Kind != want {
		t.Errorf("Kind = %s, want %s", authErr.Kind, want)
	}
}

func TestNewTokenIssuer_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  TokenConfig
	}{
		{"短すぎる鍵", TokenConfig{Secret: []byte("short"), Algorithm: "HS256", ExpireAfter: time.Minute}},
		{"未対応アルゴリズム", TokenConfig{Secret: []byte(testSecret), Algorithm: "RS256", ExpireAfter: time.Minute}},
		{"有効期間ゼロ", TokenConfig{Secret: []byte(testSecret), Algorithm: "HS256"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTokenIssuer(tt.cfg, nil); err == nil {
				t.Error("expected error, got nil")
			}
			if _, err := NewTokenValidator(tt.cfg, nil, nil, nil); err == nil {
				t.Error("expected validator error, got nil")
			}
		})
	}
}

func TestIssue_SetsExpiryFromConfig(t *testing.T) {
	f := newAuthFixture(t)

	tok, err := f.issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	want := f.clock.Now().Add(30 * time.Minute)
	if !tok.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, want)
	}
	if tok.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", tok.Subject, "alice")
	}
	if strings.Count(tok.Raw, ".") != 2 {
		t.Errorf("Raw = %q, want three dot-separated segments", tok.Raw)
	}
}

func TestValidate_RoundTrip_ResolvesSubject(t *testing.T) {
	alice := &model.User{ID: "user-1", Username: "alice"}
	f := newAuthFixture(t, alice)

	tok, err := f.issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	user, err := f.validator.Validate(context.Background(), tok.Raw)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user.ID = %q, want %q", user.ID, "user-1")
	}
}

func TestValidate_Expiry_Boundary(t *testing.T) {
	f := newAuthFixture(t, &model.User{ID: "user-1", Username: "alice"})
	tok, _ := f.issuer.Issue("alice")

	f.clock.Advance(30*time.Minute - time.Second)
	if _, err := f.validator.Validate(context.Background(), tok.Raw); err != nil {
		t.Fatalf("Validate just before expiry returned error: %v", err)
	}

	f.clock.Advance(time.Second)
	_, err := f.validator.Validate(context.Background(), tok.Raw)
	assertAuthKind(t, err, KindExpired)
}

func TestValidate_TamperedPayload_IsInvalid(t *testing.T) {
	f := newAuthFixture(t, &model.User{ID: "user-1", Username: "alice"}, &model.User{ID: "user-2", Username: "mallory"})
	tok, _ := f.issuer.Issue("alice")

	// 別のsubで署名し直したペイロードを元の署名と組み合わせる
	other, _ := f.issuer.Issue("mallory")
	parts := strings.Split(tok.Raw, ".")
	otherParts := strings.Split(other.Raw, ".")
	forged := parts[0] + "." + otherParts[1] + "." + parts[2]

	_, err := f.validator.Validate(context.Background(), forged)
	assertAuthKind(t, err, KindInvalid)
}

func TestValidate_WrongSecret_IsInvalid(t *testing.T) {
	f := newAuthFixture(t, &model.User{ID: "user-1", Username: "alice"})

	cfg := testTokenConfig()
	cfg.Secret = []byte("another-secret-key-32bytes-long!")
	other, err := NewTokenIssuer(cfg, f.clock.Now)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	tok, _ := other.Issue("alice")

	_, err = f.validator.Validate(context.Background(), tok.Raw)
	assertAuthKind(t, err, KindInvalid)
}

func TestValidate_OtherAlgorithm_IsInvalid(t *testing.T) {
	f := newAuthFixture(t, &model.User{ID: "user-1", Username: "alice"})

	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(f.clock.Now().Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	_, err = f.validator.Validate(context.Background(), raw)
	assertAuthKind(t, err, KindInvalid)
}

func TestValidate_MissingExpiry_IsInvalid(t *testing.T) {
	f := newAuthFixture(t, &model.User{ID: "user-1", Username: "alice"})

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).
		SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	_, err = f.validator.Validate(context.Background(), raw)
	assertAuthKind(t, err, KindInvalid)
}

func TestValidate_Garbage_IsInvalid(t *testing.T) {
	f := newAuthFixture(t)

	for _, raw := range []string{"", "abc", "a.b.c", "not a token at all"} {
		_, err := f.validator.Validate(context.Background(), raw)
		assertAuthKind(t, err, KindInvalid)
	}
}

func TestValidate_UnknownSubject(t *testing.T) {
	f := newAuthFixture(t)
	tok, _ := f.issuer.Issue("ghost")

	_, err := f.validator.Validate(context.Background(), tok.Raw)
	assertAuthKind(t, err, KindUnknownSubject)
}

func TestValidate_RevokedCheckedFirst(t *testing.T) {
	f := newAuthFixture(t, &model.User{ID: "user-1", Username: "alice"})
	tok, _ := f.issuer.Issue("alice")

	if _, err := f.revocations.Revoke(context.Background(), tok.Raw, tok.ExpiresAt); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	_, err := f.validator.Validate(context.Background(), tok.Raw)
	assertAuthKind(t, err, KindRevoked)
}

func TestValidate_StoreFailure_IsNotAuthError(t *testing.T) {
	f := newAuthFixture(t, &model.User{ID: "user-1", Username: "alice"})
	tok, _ := f.issuer.Issue("alice")

	f.mr.Close()

	_, err := f.validator.Validate(context.Background(), tok.Raw)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var authErr *Error
	if errors.As(err, &authErr) {
		t.Errorf("store failure reported as auth error %s", authErr.Kind)
	}
	if !errors.Is(err, ephemeral.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestValidate_UserLookupFailure_IsNotAuthError(t *testing.T) {
	f := newAuthFixture(t)
	f.users.findErr = errors.New("db down")
	tok, _ := f.issuer.Issue("alice")

	_, err := f.validator.Validate(context.Background(), tok.Raw)
	var authErr *Error
	if err == nil || errors.As(err, &authErr) {
		t.Errorf("err = %v, want non-auth error", err)
	}
}

func TestExpiryOf_IgnoresExpiration(t *testing.T) {
	f := newAuthFixture(t)
	tok, _ := f.issuer.Issue("alice")

	f.clock.Advance(time.Hour)

	exp, err := f.validator.ExpiryOf(tok.Raw)
	if err != nil {
		t.Fatalf("ExpiryOf returned error: %v", err)
	}
	if !exp.Equal(tok.ExpiresAt) {
		t.Errorf("ExpiryOf = %v, want %v", exp, tok.ExpiresAt)
	}
}

func TestErrorKind_String(t *testing.T) {
	tests := map[ErrorKind]string{
		KindRevoked:        "revoked",
		KindInvalid:        "invalid",
		KindExpired:        "expired",
		KindUnknownSubject: "unknown_subject",
		ErrorKind(0):       "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
