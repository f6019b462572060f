package credentials

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// Decryptor is the opaque credential capability the adapters consume.
// Any error means "credential unusable"; callers never inspect
// encryption internals.
type Decryptor interface {
	Decrypt(ciphertext, ownerID string) ([]byte, error)
}

// EnvDecryptor resolves "env:NAME" references to environment variables
// and "b64:..." payloads inline; the real encryption service lives
// behind the same interface in production.
type EnvDecryptor struct{}

func (EnvDecryptor) Decrypt(ciphertext, ownerID string) ([]byte, error) {
	switch {
	case ciphertext == "":
		return nil, fmt.Errorf("no credential configured for %s", ownerID)
	case strings.HasPrefix(ciphertext, "env:"):
		name := strings.TrimPrefix(ciphertext, "env:")
		val, ok := os.LookupEnv(name)
		if !ok || val == "" {
			return nil, fmt.Errorf("credential env %s for %s is not set", name, ownerID)
		}
		return []byte(val), nil
	case strings.HasPrefix(ciphertext, "b64:"):
		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, "b64:"))
		if err != nil {
			return nil, fmt.Errorf("decode credential for %s: %w", ownerID, err)
		}
		return data, nil
	}
	return []byte(ciphertext), nil
}

// Static returns a fixed payload; used in tests.
type Static []byte

func (s Static) Decrypt(ciphertext, ownerID string) ([]byte, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("credential unusable for %s", ownerID)
	}
	return []byte(s), nil
}
