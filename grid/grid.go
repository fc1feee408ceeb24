// Package grid provides the rectangular cell grid that voxel bodies are built on.
package grid

import (
	"fmt"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Grid is a W x H array whose cells either hold a T or are empty.
// Cells are flattened row-major by height: index = x*H + y.
type Grid[T any] struct {
	w, h    int
	cells   []T
	present []bool
}

// MaxCells bounds the number of cells of a single grid.
const MaxCells = 1 << 20

// ValidSize reports whether a w x h grid can be allocated.
func ValidSize(w, h int) bool {
	return w >= 1 && h >= 1 && w <= MaxCells && h <= MaxCells/w
}

// New creates an empty grid. Panics unless ValidSize(w, h) holds.
func New[T any](w, h int) *Grid[T] {
	if !ValidSize(w, h) {
		panic(fmt.Sprintf("grid: invalid size %dx%d", w, h))
	}
	return &Grid[T]{
		w:       w,
		h:       h,
		cells:   make([]T, w*h),
		present: make([]bool, w*h),
	}
}

// Create builds a grid by calling fill for every cell. Cells for which fill
// returns false stay empty.
func Create[T any](w, h int, fill func(x, y int) (T, bool)) *Grid[T] {
	g := New[T](w, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			if v, ok := fill(x, y); ok {
				g.Set(x, y, v)
			}
		}
	}
	return g
}

// W returns the grid width.
func (g *Grid[T]) W() int { return g.w }

// H returns the grid height.
func (g *Grid[T]) H() int { return g.h }

// Len returns W*H.
func (g *Grid[T]) Len() int { return g.w * g.h }

// Valid reports whether (x, y) lies inside the grid.
func (g *Grid[T]) Valid(x, y int) bool {
	return x >= 0 && x < g.w && y >= 0 && y < g.h
}

// Index returns the flat index of (x, y).
func (g *Grid[T]) Index(x, y int) int { return x*g.h + y }

// Coords is the inverse of Index.
func (g *Grid[T]) Coords(i int) (x, y int) { return i / g.h, i % g.h }

// Get returns the value at (x, y) and whether the cell is occupied.
// Out-of-range coordinates are reported as empty.
func (g *Grid[T]) Get(x, y int) (T, bool) {
	if !g.Valid(x, y) {
		var zero T
		return zero, false
	}
	i := g.Index(x, y)
	return g.cells[i], g.present[i]
}

// Has reports whether (x, y) is occupied.
func (g *Grid[T]) Has(x, y int) bool {
	return g.Valid(x, y) && g.present[g.Index(x, y)]
}

// Set stores v at (x, y). Panics when out of range.
func (g *Grid[T]) Set(x, y int, v T) {
	if !g.Valid(x, y) {
		panic(fmt.Sprintf("grid: (%d,%d) outside %dx%d", x, y, g.w, g.h))
	}
	i := g.Index(x, y)
	g.cells[i] = v
	g.present[i] = true
}

// Clear empties (x, y).
func (g *Grid[T]) Clear(x, y int) {
	if !g.Valid(x, y) {
		return
	}
	i := g.Index(x, y)
	var zero T
	g.cells[i] = zero
	g.present[i] = false
}

// Count returns the number of occupied cells.
func (g *Grid[T]) Count() int {
	n := 0
	for _, p := range g.present {
		if p {
			n++
		}
	}
	return n
}

// Each calls fn for every occupied cell in flat index order.
func (g *Grid[T]) Each(fn func(x, y int, v T)) {
	for i, p := range g.present {
		if p {
			x, y := g.Coords(i)
			fn(x, y, g.cells[i])
		}
	}
}

// Occupied returns the flat indices of occupied cells in ascending order.
func (g *Grid[T]) Occupied() []int {
	out := make([]int, 0, len(g.present))
	for i, p := range g.present {
		if p {
			out = append(out, i)
		}
	}
	return out
}

// Bounds returns the inclusive bounding box of occupied cells.
// ok is false for an empty grid.
func (g *Grid[T]) Bounds() (minX, minY, maxX, maxY int, ok bool) {
	minX, minY = g.w, g.h
	maxX, maxY = -1, -1
	g.Each(func(x, y int, _ T) {
		minX = min(minX, x)
		minY = min(minY, y)
		maxX = max(maxX, x)
		maxY = max(maxY, y)
	})
	return minX, minY, maxX, maxY, maxX >= 0
}

// Crop returns a new grid shrunk to the bounding box of occupied cells,
// or nil when g is empty.
func Crop[T any](g *Grid[T]) *Grid[T] {
	minX, minY, maxX, maxY, ok := g.Bounds()
	if !ok {
		return nil
	}
	return Create(maxX-minX+1, maxY-minY+1, func(x, y int) (T, bool) {
		return g.Get(x+minX, y+minY)
	})
}

// LargestConnected returns a same-sized grid keeping only the largest
// 4-connected component of occupied cells. Ties go to the component holding
// the lowest flat index. An empty grid yields an empty grid.
func LargestConnected[T any](g *Grid[T]) *Grid[T] {
	out := New[T](g.w, g.h)

	ug := simple.NewUndirectedGraph()
	for _, i := range g.Occupied() {
		ug.AddNode(simple.Node(i))
	}
	g.Each(func(x, y int, _ T) {
		from := simple.Node(g.Index(x, y))
		if g.Has(x+1, y) {
			ug.SetEdge(ug.NewEdge(from, simple.Node(g.Index(x+1, y))))
		}
		if g.Has(x, y+1) {
			ug.SetEdge(ug.NewEdge(from, simple.Node(g.Index(x, y+1))))
		}
	})

	var best []graph.Node
	bestMin := int64(-1)
	for _, comp := range topo.ConnectedComponents(ug) {
		compMin := minID(comp)
		if len(comp) > len(best) || (len(comp) == len(best) && compMin < bestMin) {
			best, bestMin = comp, compMin
		}
	}

	for _, n := range best {
		x, y := g.Coords(int(n.ID()))
		v, _ := g.Get(x, y)
		out.Set(x, y, v)
	}
	return out
}

func minID(nodes []graph.Node) int64 {
	m := nodes[0].ID()
	for _, n := range nodes[1:] {
		m = min(m, n.ID())
	}
	return m
}

// Grow marks n cells of a w x h grid, growing a single 4-connected blob from
// a random seed cell. The frontier of empty neighbors is kept as an explicit
// worklist, and each step moves one random frontier cell into the body.
// n is capped at w*h.
func Grow(w, h, n int, rng *rand.Rand) *Grid[bool] {
	g := New[bool](w, h)
	n = min(n, w*h)
	if n <= 0 {
		return g
	}

	frontier := make([]int, 0, w*h)
	queued := make([]bool, w*h)
	add := func(x, y int) {
		g.Set(x, y, true)
		for _, d := range neighbors4 {
			nx, ny := x+d[0], y+d[1]
			if !g.Valid(nx, ny) || g.Has(nx, ny) {
				continue
			}
			i := g.Index(nx, ny)
			if !queued[i] {
				queued[i] = true
				frontier = append(frontier, i)
			}
		}
	}

	add(rng.Intn(w), rng.Intn(h))
	for g.Count() < n && len(frontier) > 0 {
		k := rng.Intn(len(frontier))
		i := frontier[k]
		frontier = slices.Delete(frontier, k, k+1)
		x, y := g.Coords(i)
		add(x, y)
	}
	return g
}

var neighbors4 = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
