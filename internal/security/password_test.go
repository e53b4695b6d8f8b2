package security

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestNewPasswordHasher_ClampsCost(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, bcrypt.MinCost},
		{-3, bcrypt.MinCost},
		{10, 10},
		{99, bcrypt.MaxCost},
	}
	for _, tt := range tests {
		if got := NewPasswordHasher(tt.in).Cost(); got != tt.want {
			t.Errorf("NewPasswordHasher(%d).Cost() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPasswordHasher_HashAndCompare(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal the plaintext")
	}

	ok, err := h.Compare(hash, "correct horse")
	if err != nil || !ok {
		t.Errorf("Compare(correct) = %v, %v; want true, nil", ok, err)
	}

	ok, err = h.Compare(hash, "wrong horse")
	if err != nil || ok {
		t.Errorf("Compare(wrong) = %v, %v; want false, nil", ok, err)
	}
}

func TestPasswordHasher_UsesConfiguredCost(t *testing.T) {
	h := NewPasswordHasher(5)
	hash, err := h.Hash("password123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("bcrypt.Cost: %v", err)
	}
	if cost != 5 {
		t.Errorf("cost = %d, want 5", cost)
	}
}

func TestPasswordHasher_CompareMalformedHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	ok, err := h.Compare("not-a-bcrypt-hash", "password123")
	if ok {
		t.Error("malformed hash must not match")
	}
	if err == nil {
		t.Error("expected an error for a malformed hash")
	}
}

func TestDigestToken(t *testing.T) {
	long := strings.Repeat("x", 500)

	d := DigestToken(long)
	if len(d) != 64 {
		t.Errorf("digest length = %d, want 64", len(d))
	}
	if d != DigestToken(long) {
		t.Error("digest must be deterministic")
	}
	if d == DigestToken(long+"y") {
		t.Error("different tokens must not share a digest")
	}
	if !MatchTokenDigest(d, long) {
		t.Error("MatchTokenDigest should accept the original token")
	}
	if MatchTokenDigest(d, long[:499]) {
		t.Error("MatchTokenDigest should reject a different token")
	}
}
