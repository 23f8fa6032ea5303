package domain

import (
	"crypto/rand"
	"encoding/base64"
)

// DownloadToken authorizes access to exactly one downloaded artifact.
// Tokens are URL-safe, at least 32 characters, and compared by value.
type DownloadToken string

const tokenEntropyBytes = 24 // 24 bytes -> 32 chars of unpadded base64url

func NewDownloadToken() (DownloadToken, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return DownloadToken(base64.RawURLEncoding.EncodeToString(buf)), nil
}

// ParseDownloadToken validates an externally supplied token string.
// The alphabet is alphanumerics plus '-' and '_', nothing else.
func ParseDownloadToken(raw string) (DownloadToken, error) {
	if len(raw) < 32 {
		return "", ErrInvalidToken
	}
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return "", ErrInvalidToken
		}
	}
	return DownloadToken(raw), nil
}

func (t DownloadToken) String() string { return string(t) }
