package solana

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeyLen is the byte length of an ed25519 public key.
const PubkeyLen = 32

// ParsePubkey validates a base58 Solana public key string and returns it
// in canonical base58 form.
func ParsePubkey(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty pubkey")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("pubkey %q: %w", s, err)
	}
	if len(raw) != PubkeyLen {
		return "", fmt.Errorf("pubkey %q: decoded to %d bytes, want %d", s, len(raw), PubkeyLen)
	}
	return base58.Encode(raw), nil
}

// IsPubkey reports whether s is a well-formed base58 pubkey.
func IsPubkey(s string) bool {
	_, err := ParsePubkey(s)
	return err == nil
}
