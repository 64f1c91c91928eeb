package sale

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NumberGenerator produces human-readable sale numbers of the form
// SALE-<YYYYMMDD UTC>-<5 digit random>. Uniqueness is left to the store.
type NumberGenerator struct {
	Now  func() time.Time
	Rand func(n int) int
}

// Next returns a fresh sale number.
func (g NumberGenerator) Next() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	intn := rand.IntN
	if g.Rand != nil {
		intn = g.Rand
	}
	return fmt.Sprintf("SALE-%s-%05d", now().UTC().Format("20060102"), intn(99999))
}
