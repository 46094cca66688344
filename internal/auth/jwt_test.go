package auth

import (
	"testing"
	"time"
)

func TestTokenPairRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)

	claims := UserClaims{UserID: "u-1", Email: "a@b.co", Role: "user"}
	pair, err := m.GenerateTokenPair(claims)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	got, err := m.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if got.UserID != "u-1" || got.Email != "a@b.co" {
		t.Fatalf("claims = %+v", got)
	}

	if _, err := m.ValidateRefreshToken(pair.RefreshToken); err != nil {
		t.Fatalf("ValidateRefreshToken: %v", err)
	}
}

func TestTokenTypeEnforced(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)
	pair, err := m.GenerateTokenPair(UserClaims{UserID: "u-1"})
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	if _, err := m.ValidateAccessToken(pair.RefreshToken); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
	if _, err := m.ValidateRefreshToken(pair.AccessToken); err == nil {
		t.Fatal("access token accepted as refresh token")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute, 24*time.Hour)
	pair, err := m.GenerateTokenPair(UserClaims{UserID: "u-1"})
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	if _, err := m.ValidateAccessToken(pair.AccessToken); err != ErrTokenExpired {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}
}

func TestPasswordHashAndStrength(t *testing.T) {
	p := NewPasswordManager(4, 8) // low cost to keep the test fast

	hash, err := p.HashPassword("sup3rsecret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !p.VerifyPassword("sup3rsecret", hash) {
		t.Fatal("correct password rejected")
	}
	if p.VerifyPassword("wrong", hash) {
		t.Fatal("wrong password accepted")
	}

	if err := p.ValidatePasswordStrength("short1"); err == nil {
		t.Fatal("short password accepted")
	}
	if err := p.ValidatePasswordStrength("lettersonly"); err == nil {
		t.Fatal("password without digits accepted")
	}
	if err := p.ValidatePasswordStrength("g00dpassword"); err != nil {
		t.Fatalf("valid password rejected: %v", err)
	}
}
