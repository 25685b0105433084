package testutil

import (
	"testing"

	"github.com/promail/webmail/internal/crypto"
)

// GetTestEncryptor returns an encryptor with a fixed key.
func GetTestEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()

	key := make([]byte, crypto.KeySize)
	for i := range key {
		key[i] = byte(i)
	}

	encryptor, err := crypto.NewEncryptorFromKey(key)
	if err != nil {
		t.Fatalf("Failed to create encryptor: %v", err)
	}
	return encryptor
}
