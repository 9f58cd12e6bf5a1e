package security

import (
	"testing"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !IsHash(hash) {
		t.Fatalf("Hash returned %q, want bcrypt hash", hash)
	}
	if !h.Verify(hash, "secret123") {
		t.Fatal("Verify should accept the original password")
	}
	if h.Verify(hash, "wrong") {
		t.Fatal("Verify should reject a wrong password")
	}
}

func TestHasher_VerifyRejectsPlaintext(t *testing.T) {
	h := NewHasher(4)
	if h.Verify("secret123", "secret123") {
		t.Fatal("Verify must not accept a plaintext stored value")
	}
	if h.Verify("", "") {
		t.Fatal("Verify must not accept an empty stored value")
	}
}

func TestHasher_Cost(t *testing.T) {
	h := NewHasher(12)
	if h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	if h0 := NewHasher(0); h0.Cost < 4 {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h0.Cost)
	}
	if h1 := NewHasher(99); h1.Cost != 31 {
		t.Errorf("cost above max should clamp to 31, got %d", h1.Cost)
	}
}

func TestIsHash(t *testing.T) {
	testCases := []struct {
		in   string
		want bool
	}{
		{"$2a$10$abc", true},
		{"$2b$12$abc", true},
		{"$2y$10$abc", true},
		{"plain", false},
		{"", false},
	}
	for _, tc := range testCases {
		if got := IsHash(tc.in); got != tc.want {
			t.Errorf("IsHash(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestHasher_Burn(t *testing.T) {
	NewHasher(4).Burn("anything")
}
