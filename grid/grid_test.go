package grid

import (
	"math"
	"math/rand"
	"testing"
)

func fromRows(rows ...string) *Grid[bool] {
	// rows[y][x], so rows[0] is y = 0
	h := len(rows)
	w := len(rows[0])
	return Create(w, h, func(x, y int) (bool, bool) {
		return true, rows[y][x] == '#'
	})
}

func TestIndexRoundTrip(t *testing.T) {
	g := New[int](4, 3)
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			i := g.Index(x, y)
			if i != x*3+y {
				t.Fatalf("Index(%d,%d) = %d, want %d", x, y, i, x*3+y)
			}
			gx, gy := g.Coords(i)
			if gx != x || gy != y {
				t.Errorf("Coords(%d) = (%d,%d), want (%d,%d)", i, gx, gy, x, y)
			}
		}
	}
}

func TestGetOutOfRangeIsEmpty(t *testing.T) {
	g := New[int](2, 2)
	g.Set(1, 1, 7)
	if _, ok := g.Get(-1, 0); ok {
		t.Error("negative x should be empty")
	}
	if _, ok := g.Get(2, 0); ok {
		t.Error("x == W should be empty")
	}
	if v, ok := g.Get(1, 1); !ok || v != 7 {
		t.Errorf("Get(1,1) = %v,%v, want 7,true", v, ok)
	}
	g.Clear(1, 1)
	if g.Has(1, 1) {
		t.Error("cleared cell should be empty")
	}
}

func TestNewPanicsOnZeroSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for 0x3 grid")
		}
	}()
	New[int](0, 3)
}

func TestValidSize(t *testing.T) {
	tests := []struct {
		w, h int
		want bool
	}{
		{1, 1, true},
		{10, 10, true},
		{MaxCells, 1, true},
		{MaxCells, 2, false},
		{0, 5, false},
		{math.MaxInt, math.MaxInt, false},
	}
	for _, tt := range tests {
		if got := ValidSize(tt.w, tt.h); got != tt.want {
			t.Errorf("ValidSize(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestCrop(t *testing.T) {
	g := fromRows(
		".....",
		"..##.",
		"...#.",
		".....",
	)
	c := Crop(g)
	if c.W() != 2 || c.H() != 2 {
		t.Fatalf("cropped size = %dx%d, want 2x2", c.W(), c.H())
	}
	if c.Count() != 3 {
		t.Errorf("cropped count = %d, want 3", c.Count())
	}
	if !c.Has(0, 0) || !c.Has(1, 0) || !c.Has(1, 1) || c.Has(0, 1) {
		t.Error("cropped pattern does not match source")
	}

	if Crop(New[bool](3, 3)) != nil {
		t.Error("cropping an empty grid should return nil")
	}
}

func TestLargestConnected(t *testing.T) {
	tests := []struct {
		name string
		rows []string
		want int
	}{
		{"single blob", []string{"##", "##"}, 4},
		{"two blobs", []string{"#.##", "#.##", "...."}, 4},
		{"diagonal is not connected", []string{"#.", ".#"}, 1},
		{"empty", []string{"..", ".."}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := fromRows(tt.rows...)
			lc := LargestConnected(g)
			if lc.Count() != tt.want {
				t.Errorf("largest component size = %d, want %d", lc.Count(), tt.want)
			}
			if lc.W() != g.W() || lc.H() != g.H() {
				t.Errorf("size changed to %dx%d", lc.W(), lc.H())
			}
		})
	}
}

func TestLargestConnectedTieBreaksOnLowestIndex(t *testing.T) {
	g := fromRows("#.#")
	for i := 0; i < 10; i++ {
		lc := LargestConnected(g)
		if !lc.Has(0, 0) || lc.Has(2, 0) {
			t.Fatal("tie should keep the component with the lowest flat index")
		}
	}
}

func TestGrowIsConnectedAndSized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		g := Grow(10, 10, 20, rng)
		if g.Count() != 20 {
			t.Fatalf("grown body has %d cells, want 20", g.Count())
		}
		if LargestConnected(g).Count() != 20 {
			t.Fatal("grown body is not 4-connected")
		}
	}
}

func TestGrowCapsAtGridSize(t *testing.T) {
	g := Grow(3, 2, 50, rand.New(rand.NewSource(2)))
	if g.Count() != 6 {
		t.Errorf("count = %d, want 6", g.Count())
	}
}
