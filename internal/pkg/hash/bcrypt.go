package hash

import "golang.org/x/crypto/bcrypt"

// Bcrypt is the fallback algorithm for deployments that standardized on
// bcrypt. bcrypt reads at most 72 bytes, so code plus pepper must fit.
type Bcrypt struct {
	cost   int
	pepper []byte
}

// NewBcrypt uses bcrypt.DefaultCost when cost is unset and clamps anything
// else into bcrypt's accepted range.
func NewBcrypt(cost int, pepper string) *Bcrypt {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: min(max(cost, bcrypt.MinCost), bcrypt.MaxCost), pepper: []byte(pepper)}
}

func (b *Bcrypt) peppered(s string) []byte {
	return append([]byte(s), b.pepper...)
}

func (b *Bcrypt) Hash(code string) ([]byte, error) {
	return bcrypt.GenerateFromPassword(b.peppered(code), b.cost)
}

func (b *Bcrypt) Verify(hashed, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), b.peppered(code)) == nil
}
