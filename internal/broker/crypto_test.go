package broker

import (
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := LoadOrCreateCipherKey(filepath.Join(t.TempDir(), "cipher.key"))
	if err != nil {
		t.Fatalf("LoadOrCreateCipherKey: %v", err)
	}
	if len(key) != cipherKeySize {
		t.Fatalf("key length = %d, want %d", len(key), cipherKeySize)
	}

	plaintext := "sk-super-secret-key"
	encoded, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if encoded == plaintext {
		t.Fatal("Encrypt returned the plaintext unchanged")
	}

	got, err := Decrypt(key, encoded)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != plaintext {
		t.Fatalf("Decrypt = %q, want %q", got, plaintext)
	}
}

func TestLoadOrCreateCipherKey_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cipher.key")
	first, err := LoadOrCreateCipherKey(path)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := LoadOrCreateCipherKey(path)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("expected LoadOrCreateCipherKey to reuse the persisted key")
	}
}

func TestDecrypt_RejectsMalformedInput(t *testing.T) {
	key, _ := LoadOrCreateCipherKey(filepath.Join(t.TempDir(), "cipher.key"))
	if _, err := Decrypt(key, "not-valid-base64!!"); err == nil {
		t.Error("expected Decrypt to reject malformed base64")
	}
	if _, err := Decrypt(key, "AAAA"); err == nil {
		t.Error("expected Decrypt to reject a too-short ciphertext")
	}
}
