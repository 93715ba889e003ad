package token

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var tokenPattern = regexp.MustCompile(`^PAY_[a-z0-9]{6}$`)

func TestNextFormat(t *testing.T) {
	gen := NewGenerator(NewSource(1))

	for i := 0; i < 50; i++ {
		assert.Regexp(t, tokenPattern, gen.Next())
	}
}

func TestSameSeedSameTokens(t *testing.T) {
	a := NewGenerator(NewSource(7))
	b := NewGenerator(NewSource(7))

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestTokensRarelyCollide(t *testing.T) {
	gen := NewGenerator(NewSource(99))
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		seen[gen.Next()] = true
	}

	// 36^6 possibilities; a handful of collisions in 1000 draws would be suspicious
	assert.Greater(t, len(seen), 995)
}

type fixedSource struct{ n int }

func (f fixedSource) Intn(int) int                       { return f.n }
func (f fixedSource) Shuffle(n int, swap func(i, j int)) {}

func TestInjectedSource(t *testing.T) {
	gen := NewGenerator(fixedSource{n: 0})

	assert.Equal(t, "PAY_aaaaaa", gen.Next())
}
