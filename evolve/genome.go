// Package evolve implements the bit-string genetic algorithm used to search
// for body shapes.
package evolve

import (
	"fmt"
	"math/rand"
	"strings"
)

// Genome is a fixed-length bit string.
type Genome []bool

// RandomGenome returns n uniformly random bits.
func RandomGenome(n int, rng *rand.Rand) Genome {
	g := make(Genome, n)
	for i := range g {
		g[i] = rng.Intn(2) == 1
	}
	return g
}

// ParseGenome reads a string of '0' and '1' characters.
func ParseGenome(s string) (Genome, error) {
	g := make(Genome, len(s))
	for i, c := range s {
		switch c {
		case '0':
		case '1':
			g[i] = true
		default:
			return nil, fmt.Errorf("invalid genome character %q at %d", c, i)
		}
	}
	return g, nil
}

// String renders the genome as '0' and '1' characters. It is also the
// fitness cache key.
func (g Genome) String() string {
	var sb strings.Builder
	sb.Grow(len(g))
	for _, b := range g {
		if b {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Ones returns the number of set bits.
func (g Genome) Ones() int {
	n := 0
	for _, b := range g {
		if b {
			n++
		}
	}
	return n
}

// Operator builds one child from Arity parents.
type Operator interface {
	Arity() int
	Apply(parents []Genome, rng *rand.Rand) Genome
}

// BitFlip flips every bit independently with probability P.
type BitFlip struct {
	P float64
}

func (BitFlip) Arity() int { return 1 }

func (m BitFlip) Apply(parents []Genome, rng *rand.Rand) Genome {
	child := append(Genome(nil), parents[0]...)
	for i := range child {
		if rng.Float64() < m.P {
			child[i] = !child[i]
		}
	}
	return child
}

// UniformCrossover takes every bit from either parent with equal probability.
type UniformCrossover struct{}

func (UniformCrossover) Arity() int { return 2 }

func (UniformCrossover) Apply(parents []Genome, rng *rand.Rand) Genome {
	a, b := parents[0], parents[1]
	child := make(Genome, len(a))
	for i := range child {
		if rng.Intn(2) == 0 || i >= len(b) {
			child[i] = a[i]
		} else {
			child[i] = b[i]
		}
	}
	return child
}

// Weighted pairs an operator with its relative selection weight.
type Weighted struct {
	Op     Operator
	Weight float64
}

// pick chooses an operator with probability proportional to its weight.
func pick(ops []Weighted, rng *rand.Rand) Operator {
	var total float64
	for _, w := range ops {
		total += w.Weight
	}
	r := rng.Float64() * total
	for _, w := range ops {
		if r < w.Weight {
			return w.Op
		}
		r -= w.Weight
	}
	return ops[len(ops)-1].Op
}
