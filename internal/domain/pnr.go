package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// PNR record locator format. The alphabet deliberately excludes lowercase
// and punctuation so codes survive phone and airport display round-trips.
const (
	PnrLength   = 6
	PnrAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// PnrCode is a six character record locator drawn from PnrAlphabet.
type PnrCode string

// ParsePnrCode validates and normalizes a record locator.
func ParsePnrCode(raw string) (PnrCode, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != PnrLength {
		return "", fmt.Errorf("length %d: %w", len(code), ErrInvalidPnrCode)
	}
	for _, r := range code {
		if !strings.ContainsRune(PnrAlphabet, r) {
			return "", fmt.Errorf("character %q: %w", r, ErrInvalidPnrCode)
		}
	}
	return PnrCode(code), nil
}

// GeneratePnrCode draws a random record locator from a cryptographic
// source. Each position is sampled independently to avoid modulo bias.
func GeneratePnrCode() (PnrCode, error) {
	alphabetSize := big.NewInt(int64(len(PnrAlphabet)))
	buf := make([]byte, PnrLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to draw pnr character: %w", err)
		}
		buf[i] = PnrAlphabet[n.Int64()]
	}
	return PnrCode(buf), nil
}

// IsValid checks if the code matches the record locator format.
func (p PnrCode) IsValid() bool {
	_, err := ParsePnrCode(string(p))
	return err == nil
}

// String returns the string representation of PnrCode
func (p PnrCode) String() string {
	return string(p)
}
