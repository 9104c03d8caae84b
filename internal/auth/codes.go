package auth

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

// CodeGenerator produces the numeric codes carried by ephemeral tokens. It is
// injected into the lifecycle engine so tests can substitute a deterministic
// source; the production implementation draws from crypto/rand.
type CodeGenerator interface {
	// Digits returns a string of n random decimal digits, leading zeros allowed.
	Digits(n int) (string, error)
	// IntInRange returns a random integer in the inclusive range [lo, hi].
	IntInRange(lo, hi int) (int, error)
}

type secureCodeGenerator struct{}

// NewSecureCodeGenerator returns a crypto/rand backed generator.
func NewSecureCodeGenerator() CodeGenerator {
	return secureCodeGenerator{}
}

func (secureCodeGenerator) Digits(n int) (string, error) {
	buf := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		buf = append(buf, byte('0'+d.Int64()))
	}
	return string(buf), nil
}

func (secureCodeGenerator) IntInRange(lo, hi int) (int, error) {
	span := big.NewInt(int64(hi - lo + 1))
	d, err := rand.Int(rand.Reader, span)
	if err != nil {
		return 0, err
	}
	return lo + int(d.Int64()), nil
}

// FormatSuffix renders a number as a zero-padded 4-digit matricule suffix.
func FormatSuffix(n int64) string {
	s := strconv.FormatInt(n%10000, 10)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}
