package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpen(t *testing.T) {
	plaintext := []byte("SQLite format 3\x00 purchases")

	sealed, err := Seal(plaintext, "hunter2")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("sealed data contains the plaintext")
	}
	if len(sealed) != saltSize+nonceSize+len(plaintext)+16 {
		t.Errorf("sealed length = %d, want header + plaintext + tag", len(sealed))
	}

	got, err := Open(sealed, "hunter2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Open = %q, want %q", got, plaintext)
	}
}

func TestSealUsesFreshSalt(t *testing.T) {
	a, err := Seal([]byte("same"), "pass")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Seal([]byte("same"), "pass")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a[:saltSize], b[:saltSize]) {
		t.Error("two seals share a salt")
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, err := Seal([]byte("secret"), "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Open(sealed, "wrong"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Open with wrong passphrase error = %v, want ErrDecrypt", err)
	}
}

func TestOpenTampered(t *testing.T) {
	sealed, err := Seal([]byte("secret data"), "pass")
	if err != nil {
		t.Fatal(err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := Open(sealed, "pass"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Open tampered error = %v, want ErrDecrypt", err)
	}
}

func TestSealEmpty(t *testing.T) {
	sealed, err := Seal(nil, "pass")
	if err != nil {
		t.Fatal(err)
	}
	got, err := Open(sealed, "pass")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Open = %q, want empty", got)
	}
}

func TestOpenTooShort(t *testing.T) {
	if _, err := Open(make([]byte, saltSize+nonceSize-1), "pass"); !errors.Is(err, ErrTooShort) {
		t.Errorf("Open short error = %v, want ErrTooShort", err)
	}
}
