package store

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeLength   = 6
)

// NewInviteCode returns a random uppercase alphanumeric code. It does not check uniqueness.
func NewInviteCode() (string, error) {
	var (
		sb   strings.Builder
		size = big.NewInt(int64(len(inviteCodeAlphabet)))
	)

	sb.Grow(inviteCodeLength)
	for range inviteCodeLength {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("random invite code: %w", err)
		}
		sb.WriteByte(inviteCodeAlphabet[n.Int64()])
	}

	return sb.String(), nil
}
