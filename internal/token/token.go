// Package token mints the short random markers that tag each probe so a
// reflection can be traced back to the request that caused it.
package token

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultPrefix starts every token. It keeps tokens greppable in responses and logs.
	DefaultPrefix = "PAY"
	// DefaultLength is the number of random characters after the prefix.
	DefaultLength = 6

	alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Source is the randomness used for tokens and payload shuffling.
// *math/rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// NewSource returns a Source seeded with seed, or with the clock when seed is 0.
// The returned Source is safe for concurrent use.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

func (s *lockedSource) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd.Shuffle(n, swap)
}

// Generator produces tokens of the form PREFIX_xxxxxx
type Generator struct {
	prefix string
	length int
	src    Source
}

// NewGenerator creates a token generator drawing from src
func NewGenerator(src Source) *Generator {
	return &Generator{
		prefix: DefaultPrefix,
		length: DefaultLength,
		src:    src,
	}
}

// Next returns a fresh token
func (g *Generator) Next() string {
	var b strings.Builder
	b.Grow(len(g.prefix) + 1 + g.length)
	b.WriteString(g.prefix)
	b.WriteByte('_')
	for i := 0; i < g.length; i++ {
		b.WriteByte(alphabet[g.src.Intn(len(alphabet))])
	}
	return b.String()
}
