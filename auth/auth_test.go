package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("CheckPassword rejected the right password")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Error("CheckPassword accepted a wrong password")
	}
	if _, err := HashPassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("short password: got %v", err)
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "visamate", time.Hour)
	userID := uuid.New()

	token, expiresAt, err := issuer.Issue(userID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expiresAt) <= 59*time.Minute {
		t.Errorf("expiresAt = %v, want about an hour from now", expiresAt)
	}

	got, err := issuer.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != userID {
		t.Errorf("subject = %s, want %s", got, userID)
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "visamate", time.Hour)
	userID := uuid.New()
	good, _, err := issuer.Issue(userID)
	if err != nil {
		t.Fatal(err)
	}

	expired := NewTokenIssuer(testSecret, "visamate", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.Issue(userID)

	otherIssuer := NewTokenIssuer(testSecret, "someone-else", time.Hour)
	foreign, _, _ := otherIssuer.Issue(userID)

	otherSecret := NewTokenIssuer(strings.Repeat("x", 32), "visamate", time.Hour)
	forged, _, _ := otherSecret.Issue(userID)

	tests := map[string]string{
		"expired":      old,
		"wrong issuer": foreign,
		"wrong secret": forged,
		"garbage":      "not.a.token",
		"tampered":     good + "x",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := issuer.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("got %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestRefreshToken(t *testing.T) {
	raw, hash, err := NewRefreshToken()
	if err != nil {
		t.Fatal(err)
	}
	if raw == "" || hash == raw {
		t.Fatalf("raw=%q hash=%q", raw, hash)
	}
	if HashRefreshToken(raw) != hash {
		t.Error("hash is not deterministic")
	}
	raw2, _, _ := NewRefreshToken()
	if raw2 == raw {
		t.Error("two refresh tokens are equal")
	}
}

const testKeyID = "test-key"

func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": kid,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
	data, _ := json.Marshal(jwks)
	return data
}

func signRS256(t *testing.T, key *rsa.PrivateKey, sub, iss string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": sub,
		"iss": iss,
		"exp": jwt.NewNumericDate(exp),
		"iat": jwt.NewNumericDate(time.Now()),
	})
	token.Header["kid"] = testKeyID
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestJWKSVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("keyfunc: %v", err)
	}
	v := NewJWKSVerifierWithKeyfunc(kf, "https://idp.test", testLogger())
	ctx := context.Background()
	userID := uuid.New()

	got, err := v.Verify(ctx, signRS256(t, key, userID.String(), "https://idp.test", time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != userID {
		t.Errorf("subject = %s", got)
	}

	bad := []string{
		signRS256(t, key, userID.String(), "https://idp.test", time.Now().Add(-time.Hour)),
		signRS256(t, key, userID.String(), "https://evil.test", time.Now().Add(time.Hour)),
		signRS256(t, key, "not-a-uuid", "https://idp.test", time.Now().Add(time.Hour)),
	}
	for i, token := range bad {
		if _, err := v.Verify(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("case %d: got %v, want ErrInvalidToken", i, err)
		}
	}
}

func TestChainVerifier(t *testing.T) {
	a := NewTokenIssuer(testSecret, "a", time.Hour)
	b := NewTokenIssuer(testSecret, "b", time.Hour)
	chain := ChainVerifier{a, b}
	userID := uuid.New()

	token, _, _ := b.Issue(userID)
	got, err := chain.Verify(context.Background(), token)
	if err != nil || got != userID {
		t.Fatalf("Verify = %v, %v", got, err)
	}

	c := NewTokenIssuer(testSecret, "c", time.Hour)
	token, _, _ = c.Issue(userID)
	if _, err := chain.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("got %v", err)
	}
}
