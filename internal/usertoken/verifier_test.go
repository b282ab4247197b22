package usertoken

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func claimsFor(sub string, iat time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "https://auth.example.com",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(iat),
		},
		Email:        sub + "@example.com",
		UserMetadata: map[string]any{"full_name": "Test " + sub},
	}
}

func TestNewVerifierConfigValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewVerifier(ctx, Config{}); err == nil {
		t.Fatalf("expected missing key material to fail")
	}
	if _, err := NewVerifier(ctx, Config{JWKSURL: "http://x", Secret: "s"}); err == nil {
		t.Fatalf("expected both jwks and secret to fail")
	}
}

func TestSecretIdentify(t *testing.T) {
	v, err := NewVerifier(context.Background(), Config{Secret: "super-secret", Issuer: "https://auth.example.com"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsFor("user-a", time.Now())).SignedString([]byte("super-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := v.Identify(context.Background(), signed)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if id.UserID != "user-a" || id.Email != "user-a@example.com" || id.MetadataString("full_name") != "Test user-a" {
		t.Fatalf("unexpected identity %+v", id)
	}

	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsFor("user-a", time.Now())).SignedString([]byte("wrong"))
	if _, err := v.Identify(context.Background(), forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("forged token: got %v", err)
	}
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsFor("", time.Now())).SignedString([]byte("super-secret"))
	if _, err := v.Identify(context.Background(), noSub); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("missing subject: got %v", err)
	}
	if _, err := v.Identify(context.Background(), " "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("blank token: got %v", err)
	}
}

func TestSecretRejectsWrongAudience(t *testing.T) {
	v, err := NewVerifier(context.Background(), Config{Secret: "s3"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	c := claimsFor("user-a", time.Now())
	c.Audience = jwt.ClaimStrings{"anon"}
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("s3"))
	if _, err := v.Identify(context.Background(), signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong audience: got %v", err)
	}
}

func TestJWKSIdentifyAndRefreshOnUnknownKid(t *testing.T) {
	key1, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key1: %v", err)
	}
	key2, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key2: %v", err)
	}

	var active atomic.Value
	active.Store("kid-1")
	var fetches atomic.Int32
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		kid := active.Load().(string)
		pub := key1.PublicKey
		if kid == "kid-2" {
			pub = key2.PublicKey
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{toJWK(kid, pub)}})
	}))
	defer jwksServer.Close()

	ctx := context.Background()
	v, err := NewVerifier(ctx, Config{JWKSURL: jwksServer.URL, Issuer: "https://auth.example.com"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	sign := func(kid string, key *rsa.PrivateKey, sub string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claimsFor(sub, time.Now()))
		tok.Header["kid"] = kid
		signed, err := tok.SignedString(key)
		if err != nil {
			t.Fatalf("sign %s: %v", kid, err)
		}
		return signed
	}

	if id, err := v.Identify(ctx, sign("kid-1", key1, "user-a")); err != nil || id.UserID != "user-a" {
		t.Fatalf("identify kid-1: %+v, %v", id, err)
	}

	active.Store("kid-2")
	if id, err := v.Identify(ctx, sign("kid-2", key2, "user-b")); err != nil || id.UserID != "user-b" {
		t.Fatalf("identify after rotation: %+v, %v", id, err)
	}
	if got := fetches.Load(); got != 2 {
		t.Fatalf("expected exactly one refresh, got %d fetches", got)
	}
}

func TestJWKSRejectsFutureIssuedAt(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{toJWK("kid-1", key.PublicKey)}})
	}))
	defer jwksServer.Close()

	v, err := NewVerifier(context.Background(), Config{JWKSURL: jwksServer.URL, Leeway: 5 * time.Second})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claimsFor("user-1", time.Now().Add(2*time.Minute)))
	tok.Header["kid"] = "kid-1"
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := v.Identify(context.Background(), signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected future iat token to fail, got %v", err)
	}
}

func TestParseCacheMaxAge(t *testing.T) {
	cases := map[string]time.Duration{
		"public, max-age=60": time.Minute,
		"MAX-AGE=5":          5 * time.Second,
		"no-store":           0,
		"max-age=abc":        0,
		"":                   0,
	}
	for in, want := range cases {
		if got := parseCacheMaxAge(in); got != want {
			t.Errorf("parseCacheMaxAge(%q) = %v, want %v", in, got, want)
		}
	}
}

func toJWK(kid string, key rsa.PublicKey) map[string]string {
	return map[string]string{
		"kty": "RSA",
		"kid": kid,
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}
