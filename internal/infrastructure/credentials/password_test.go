package credentials

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func fastHasher() *PasswordHasher {
	return NewPasswordHasher(Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
}

func TestHashAndVerifyRoundTrip(t *testing.T) {
	h := fastHasher()
	encoded, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=64,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}

	ok, err := h.Verify("correct horse", encoded)
	if err != nil || !ok {
		t.Fatalf("Verify(correct) = %v, %v", ok, err)
	}
	ok, err = h.Verify("wrong horse", encoded)
	if err != nil || ok {
		t.Fatalf("Verify(wrong) = %v, %v", ok, err)
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := fastHasher()
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatalf("expected different encodings for the same password")
	}
}

func TestVerifyUsesParamsFromEncoding(t *testing.T) {
	encoded, err := fastHasher().Hash("pw")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	ok, err := NewPasswordHasher(DefaultArgon2Params()).Verify("pw", encoded)
	if err != nil || !ok {
		t.Fatalf("expected verification with encoded params, got %v %v", ok, err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := fastHasher()
	cases := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=64,t=1,p=1$onlysalt",
		"$argon2id$v=18$m=64,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5",
		"$argon2id$v=19$m=64,t=1,p=1$!!!$a2V5",
	}
	for _, encoded := range cases {
		ok, err := h.Verify("pw", encoded)
		if ok {
			t.Fatalf("Verify(%q) unexpectedly succeeded", encoded)
		}
		if !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("Verify(%q) expected ErrMalformedHash, got %v", encoded, err)
		}
	}
}

func TestVerifyAcceptsBcrypt(t *testing.T) {
	raw, err := bcrypt.GenerateFromPassword([]byte("legacy"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	h := fastHasher()
	if ok, err := h.Verify("legacy", string(raw)); err != nil || !ok {
		t.Fatalf("Verify(bcrypt) = %v, %v", ok, err)
	}
	if ok, err := h.Verify("other", string(raw)); err != nil || ok {
		t.Fatalf("Verify(bcrypt mismatch) = %v, %v", ok, err)
	}
}
