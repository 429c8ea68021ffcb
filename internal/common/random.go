package common

import (
	"crypto/rand"
	"encoding/base64"
)

// MakeURLSafeToken returns size random bytes encoded as unpadded URL-safe
// base64. The result is suitable for links sent by email.
func MakeURLSafeToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
