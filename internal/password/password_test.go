package password_test

import (
	"errors"
	"testing"

	"github.com/ErlanBelekov/account-service/internal/password"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashThenCompare(t *testing.T) {
	h := password.NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal the raw password")
	}
	if err := h.Compare(hash, "correct horse"); err != nil {
		t.Errorf("compare with right password: %v", err)
	}
	if err := h.Compare(hash, "battery staple"); !errors.Is(err, password.ErrMismatch) {
		t.Errorf("want ErrMismatch, got %v", err)
	}
}

func TestBcryptHasher_CompareMalformedHash(t *testing.T) {
	h := password.NewBcryptHasher(bcrypt.MinCost)

	err := h.Compare("not-a-bcrypt-hash", "whatever")
	if err == nil || errors.Is(err, password.ErrMismatch) {
		t.Errorf("want a non-mismatch error, got %v", err)
	}
}
