package internal

import (
	"encoding/hex"
	"testing"
)

func TestRandomTokenLength(t *testing.T) {
	for _, n := range []int{0, 1, 16, 20, 32, 40} {
		tok, err := RandomToken(n)
		if err != nil {
			t.Fatalf("RandomToken(%d): %v", n, err)
		}
		if len(tok) != 2*n {
			t.Fatalf("RandomToken(%d) length = %d, want %d", n, len(tok), 2*n)
		}
		if _, err := hex.DecodeString(tok); err != nil {
			t.Fatalf("RandomToken(%d) not hex: %v", n, err)
		}
	}
}

func TestRandomTokenNegative(t *testing.T) {
	if _, err := RandomToken(-1); err == nil {
		t.Fatal("expected error for negative length")
	}
}

func TestRandomTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		tok, err := RandomToken(20)
		if err != nil {
			t.Fatal(err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestDigestDeterministic(t *testing.T) {
	a := Digest("hello")
	b := Digest("hello")
	if a != b {
		t.Fatalf("digest not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("digest length = %d, want 64", len(a))
	}
	if Digest("hello") == Digest("hellp") {
		t.Fatal("different inputs produced the same digest")
	}
}

func TestDigestEqual(t *testing.T) {
	d := Digest("secret")
	if !DigestEqual(d, Digest("secret")) {
		t.Fatal("equal digests compared unequal")
	}
	if DigestEqual(d, Digest("other")) {
		t.Fatal("unequal digests compared equal")
	}
	if DigestEqual(d, d[:32]) {
		t.Fatal("length mismatch compared equal")
	}
}

func TestRandomCode(t *testing.T) {
	code, err := RandomCode(24)
	if err != nil {
		t.Fatal(err)
	}
	if code == "" {
		t.Fatal("empty code")
	}
	other, err := RandomCode(24)
	if err != nil {
		t.Fatal(err)
	}
	if code == other {
		t.Fatal("codes should not repeat")
	}
	if _, err := RandomCode(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}
