package common

import (
	"encoding/base64"
	"testing"
)

func TestMakeURLSafeToken_LengthAndAlphabet(t *testing.T) {
	const n = 32
	s, err := MakeURLSafeToken(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		t.Fatalf("token is not url-safe base64: %v", err)
	}
	if len(b) != n {
		t.Fatalf("expected %d decoded bytes, got %d", n, len(b))
	}
}

func TestMakeURLSafeToken_ZeroSize(t *testing.T) {
	s, err := MakeURLSafeToken(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

func TestMakeURLSafeToken_EntropyHint(t *testing.T) {
	a, _ := MakeURLSafeToken(32)
	b, _ := MakeURLSafeToken(32)
	if a == b {
		t.Logf("warning: two MakeURLSafeToken(32) results are identical; extremely unlikely")
	}
}
