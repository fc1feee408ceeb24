package terrain

import (
	"math"
	"math/rand"
)

// Perlin generates coherent gradient noise in one and two dimensions.
type Perlin struct {
	perm [512]int
}

// NewPerlin creates a noise generator with a shuffled permutation table.
func NewPerlin(seed int64) *Perlin {
	p := &Perlin{}
	rng := rand.New(rand.NewSource(seed))
	base := rng.Perm(256)
	for i, v := range base {
		p.perm[i] = v
		p.perm[i+256] = v
	}
	return p
}

// Noise1D returns a value in roughly [-1, 1].
func (p *Perlin) Noise1D(x float64) float64 {
	return p.Noise2D(x, 0.5)
}

// Noise2D returns a value in roughly [-1, 1].
func (p *Perlin) Noise2D(x, y float64) float64 {
	xf, yf := math.Floor(x), math.Floor(y)
	xi, yi := int(xf)&255, int(yf)&255
	x -= xf
	y -= yf
	u, v := smoothstep(x), smoothstep(y)

	aa := p.perm[p.perm[xi]+yi]
	ab := p.perm[p.perm[xi]+yi+1]
	ba := p.perm[p.perm[xi+1]+yi]
	bb := p.perm[p.perm[xi+1]+yi+1]

	bottom := mix(u, grad2(aa, x, y), grad2(ba, x-1, y))
	top := mix(u, grad2(ab, x, y-1), grad2(bb, x-1, y-1))
	return mix(v, bottom, top)
}

func smoothstep(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func mix(t, a, b float64) float64 {
	return a + t*(b-a)
}

// grad2 picks one of eight gradient directions.
func grad2(hash int, x, y float64) float64 {
	switch hash & 7 {
	case 0:
		return x + y
	case 1:
		return -x + y
	case 2:
		return x - y
	case 3:
		return -x - y
	case 4:
		return x
	case 5:
		return -x
	case 6:
		return y
	default:
		return -y
	}
}
