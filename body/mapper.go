package body

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/voxsoc/grid"
)

// BitMask maps a bit-string genome to a body: bit H*x + y switches cell
// (x, y) on. Only the largest 4-connected group of voxels is kept.
type BitMask struct {
	W, H     int
	Template Material
}

// GenomeLen returns the number of bits the mapper reads.
func (m BitMask) GenomeLen() int { return m.W * m.H }

// Map decodes bits. Returns nil when no bit is set.
func (m BitMask) Map(bits []bool) *Body {
	mask := grid.Create(m.W, m.H, func(x, y int) (bool, bool) {
		i := m.H*x + y
		return true, i < len(bits) && bits[i]
	})
	if mask.Count() == 0 {
		return nil
	}
	return FromMask(mask, m.Template).LargestConnected()
}

// GaussianField maps a real-valued genome to a body by summing Kernels
// gaussian bumps over the grid. Each kernel reads four genes in [0,1]:
// center x, center y, spread and signed weight. Cells whose normalized field
// value reaches Threshold are occupied; the largest connected group is kept.
type GaussianField struct {
	W, H      int
	Kernels   int
	Threshold float64
	Template  Material
}

// GenomeLen returns the number of genes the mapper reads.
func (m GaussianField) GenomeLen() int { return 4 * m.Kernels }

// Map decodes genes. Returns nil when the field leaves every cell empty.
func (m GaussianField) Map(genes []float64) *Body {
	field := make([]float64, m.W*m.H)
	span := float64(max(m.W, m.H))
	for k := 0; k+3 < len(genes) && k/4 < m.Kernels; k += 4 {
		cx := clamp01(genes[k]) * float64(m.W-1)
		cy := clamp01(genes[k+1]) * float64(m.H-1)
		sigma := 0.5 + clamp01(genes[k+2])*span/2
		weight := clamp01(genes[k+3])*2 - 1
		for x := 0; x < m.W; x++ {
			for y := 0; y < m.H; y++ {
				dx, dy := float64(x)-cx, float64(y)-cy
				field[x*m.H+y] += weight * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
			}
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range field {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mask := grid.Create(m.W, m.H, func(x, y int) (bool, bool) {
		if hi-lo == 0 {
			return true, false
		}
		return true, (field[x*m.H+y]-lo)/(hi-lo) >= m.Threshold
	})
	if mask.Count() == 0 {
		return nil
	}
	return FromMask(mask, m.Template).LargestConnected()
}

// Random grows a connected n-voxel body inside a w x h grid.
func Random(w, h, n int, tmpl Material, rng *rand.Rand) *Body {
	return FromMask(grid.Grow(w, h, n, rng), tmpl)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
