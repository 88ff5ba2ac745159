package cache

import (
	"crypto/sha256"
	"fmt"
	"strconv"

	"github.com/san-kum/upperatm/internal/kernel"
)

// DefaultDigits keeps float noise below the tenth significant figure from
// splitting otherwise equal requests.
const DefaultDigits = 10

type Key [sha256.Size]byte

func (k Key) String() string { return fmt.Sprintf("%x", k[:8]) }

// Keyer derives cache keys from a descriptor identity and quantized inputs.
type Keyer struct {
	Digits int
}

func (k Keyer) Key(d kernel.Descriptor, r kernel.Request) (Key, error) {
	if len(r.Inputs) != d.InputWidth() {
		return Key{}, fmt.Errorf("cache key for %s: %d inputs, want %d", d.Identity(), len(r.Inputs), d.InputWidth())
	}

	digits := k.Digits
	if digits <= 0 {
		digits = DefaultDigits
	}

	buf := make([]byte, 0, 32+len(r.Inputs)*(digits+8))
	buf = append(buf, d.Identity()...)
	for _, v := range r.Inputs {
		if v == 0 {
			v = 0 // folds -0
		}
		buf = append(buf, '|')
		buf = strconv.AppendFloat(buf, v, 'g', digits, 64)
	}
	return sha256.Sum256(buf), nil
}
