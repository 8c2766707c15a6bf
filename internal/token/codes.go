package token

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// NumericCode returns a zero-padded random code of n decimal digits. Codes
// are short human-verifiable credentials (pickup handshakes, release keys);
// global uniqueness is not required.
func NumericCode(n int) (string, error) {
	if n <= 0 {
		n = 6
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	digits := v.String()
	if pad := n - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	return digits, nil
}
