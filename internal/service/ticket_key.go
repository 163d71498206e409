package service

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// TicketKeyAlphabet omits characters that are easy to misread (0, O, 1, I).
const TicketKeyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	ticketKeyPrefix    = "TCK-"
	ticketKeyLength    = 8
	ticketKeyGroupSize = 4
)

// RandomSource picks an int in [0, n).
type RandomSource interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// KeyGenerator produces TCK-XXXX-XXXX keys. Keys are not checked for
// collisions against stored tickets.
type KeyGenerator struct {
	mu  sync.Mutex
	src RandomSource
}

// NewKeyGenerator uses src, or the process-wide source when src is nil.
// A *rand.Rand built from a fixed seed gives repeatable keys.
func NewKeyGenerator(src RandomSource) *KeyGenerator {
	if src == nil {
		src = globalSource{}
	}
	return &KeyGenerator{src: src}
}

// NewKey draws a fresh key.
func (g *KeyGenerator) NewKey() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.Grow(len(ticketKeyPrefix) + ticketKeyLength + 1)
	b.WriteString(ticketKeyPrefix)
	for i := 0; i < ticketKeyLength; i++ {
		b.WriteByte(TicketKeyAlphabet[g.src.IntN(len(TicketKeyAlphabet))])
		if i == ticketKeyGroupSize-1 {
			b.WriteByte('-')
		}
	}
	return b.String()
}
