package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testService(t *testing.T) *Service {
	t.Helper()

	service, err := NewService(Config{
		Secret:               "test-secret-key-must-be-32-chars!",
		Issuer:               "test-issuer",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return service
}

func TestNewService_ShortSecret(t *testing.T) {
	_, err := NewService(Config{Secret: "short"})
	if !errors.Is(err, ErrInvalidSecretLength) {
		t.Fatalf("Expected ErrInvalidSecretLength, got: %v", err)
	}
}

func TestGenerateTokenPair(t *testing.T) {
	service := testService(t)

	tokenPair, err := service.GenerateTokenPair()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if tokenPair.AccessToken == "" {
		t.Error("Expected non-empty access token")
	}
	if tokenPair.RefreshToken == "" {
		t.Error("Expected non-empty refresh token")
	}
	if tokenPair.TokenType != "Bearer" {
		t.Errorf("Expected TokenType 'Bearer', got '%s'", tokenPair.TokenType)
	}
	if tokenPair.ExpiresIn != int64(15*time.Minute/time.Second) {
		t.Errorf("Expected ExpiresIn %d, got %d", int64(15*time.Minute/time.Second), tokenPair.ExpiresIn)
	}
}

func TestValidateAccessToken(t *testing.T) {
	service := testService(t)

	tokenPair, err := service.GenerateTokenPair()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	claims, err := service.ValidateAccessToken(tokenPair.AccessToken)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if claims.Subject != "operator" {
		t.Errorf("Expected subject 'operator', got '%s'", claims.Subject)
	}
	if !claims.IsAccessToken() {
		t.Error("Expected an access token")
	}
}

func TestValidateAccessToken_RejectsRefreshToken(t *testing.T) {
	service := testService(t)

	tokenPair, err := service.GenerateTokenPair()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	_, err = service.ValidateAccessToken(tokenPair.RefreshToken)
	if !errors.Is(err, ErrInvalidTokenType) {
		t.Fatalf("Expected ErrInvalidTokenType, got: %v", err)
	}
}

func TestValidateRefreshToken(t *testing.T) {
	service := testService(t)

	tokenPair, err := service.GenerateTokenPair()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	claims, err := service.ValidateRefreshToken(tokenPair.RefreshToken)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !claims.IsRefreshToken() {
		t.Error("Expected a refresh token")
	}

	if _, err := service.ValidateRefreshToken(tokenPair.AccessToken); !errors.Is(err, ErrInvalidTokenType) {
		t.Fatalf("Expected ErrInvalidTokenType, got: %v", err)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	service := testService(t)

	tokenPair, err := service.GenerateTokenPair()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	other, err := NewService(Config{Secret: "a-completely-different-32-char-key!!"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if _, err := other.ValidateToken(tokenPair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Expected ErrInvalidToken, got: %v", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	service, err := NewService(Config{
		Secret:              "test-secret-key-must-be-32-chars!",
		AccessTokenDuration: -time.Minute,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	tokenPair, err := service.GenerateTokenPair()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if _, err := service.ValidateToken(tokenPair.AccessToken); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("Expected ErrExpiredToken, got: %v", err)
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("Expected a bcrypt hash, got '%s'", hash)
	}

	if err := VerifyPassword(hash, "correct horse battery staple"); err != nil {
		t.Errorf("Expected matching password to verify, got: %v", err)
	}
	if err := VerifyPassword(hash, "wrong password"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Expected ErrInvalidPassword, got: %v", err)
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("Expected ErrPasswordTooShort, got: %v", err)
	}
	if err := ValidatePassword(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("Expected ErrPasswordTooLong, got: %v", err)
	}
	if err := ValidatePassword("long enough"); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}
