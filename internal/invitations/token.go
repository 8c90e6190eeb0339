package invitations

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const tokenBytes = 32

// GenerateToken produces the 64-character hex bearer credential for an invitation.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating invitation token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
