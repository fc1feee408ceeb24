// Package neural provides feedforward networks for closed-loop controllers.
package neural

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// FFNN is a fully connected feedforward network with tanh activations on
// every layer. All weights and biases live in one flat parameter vector so
// optimizers can treat the network as a point in R^n.
type FFNN struct {
	sizes   []int // input, hidden..., output
	params  []float64
	weights []*mat.Dense    // views into params, out x in
	biases  []*mat.VecDense // views into params
}

// NumParams returns the parameter count of a network with the given layer
// sizes.
func NumParams(sizes []int) int {
	n := 0
	for l := 1; l < len(sizes); l++ {
		n += sizes[l]*sizes[l-1] + sizes[l]
	}
	return n
}

// New creates a zero-initialized network. sizes lists the input size, any
// hidden sizes and the output size.
func New(sizes []int) (*FFNN, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("network needs at least input and output sizes, got %v", sizes)
	}
	for _, s := range sizes {
		if s < 1 {
			return nil, fmt.Errorf("layer sizes must be positive, got %v", sizes)
		}
	}
	nn := &FFNN{
		sizes:  append([]int(nil), sizes...),
		params: make([]float64, NumParams(sizes)),
	}
	off := 0
	for l := 1; l < len(sizes); l++ {
		in, out := sizes[l-1], sizes[l]
		nn.weights = append(nn.weights, mat.NewDense(out, in, nn.params[off:off+out*in]))
		off += out * in
		nn.biases = append(nn.biases, mat.NewVecDense(out, nn.params[off:off+out]))
		off += out
	}
	return nn, nil
}

// NewRandom creates a network with Xavier-scaled gaussian weights and zero
// biases.
func NewRandom(sizes []int, rng *rand.Rand) (*FFNN, error) {
	nn, err := New(sizes)
	if err != nil {
		return nil, err
	}
	for l, w := range nn.weights {
		scale := math.Sqrt(2.0 / float64(nn.sizes[l]))
		r, c := w.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				w.Set(i, j, rng.NormFloat64()*scale)
			}
		}
	}
	return nn, nil
}

// Sizes returns the layer sizes.
func (nn *FFNN) Sizes() []int { return append([]int(nil), nn.sizes...) }

// Params returns a copy of the flat parameter vector.
func (nn *FFNN) Params() []float64 { return append([]float64(nil), nn.params...) }

// SetParams overwrites all weights and biases.
func (nn *FFNN) SetParams(p []float64) error {
	if len(p) != len(nn.params) {
		return fmt.Errorf("got %d parameters, network has %d", len(p), len(nn.params))
	}
	copy(nn.params, p)
	return nil
}

// Forward computes the network output. It panics if len(in) does not match
// the input size.
func (nn *FFNN) Forward(in []float64) []float64 {
	x := mat.NewVecDense(len(in), append([]float64(nil), in...))
	for l := range nn.weights {
		var y mat.VecDense
		y.MulVec(nn.weights[l], x)
		y.AddVec(&y, nn.biases[l])
		for i := 0; i < y.Len(); i++ {
			y.SetVec(i, math.Tanh(y.AtVec(i)))
		}
		x = &y
	}
	out := make([]float64, x.Len())
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out
}

// snapshot is the serialized form of a network.
type snapshot struct {
	Sizes  []int     `json:"sizes"`
	Params []float64 `json:"params"`
}

// MarshalJSON implements json.Marshaler.
func (nn *FFNN) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{Sizes: nn.sizes, Params: nn.params})
}

// UnmarshalJSON implements json.Unmarshaler.
func (nn *FFNN) UnmarshalJSON(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	fresh, err := New(s.Sizes)
	if err != nil {
		return err
	}
	if err := fresh.SetParams(s.Params); err != nil {
		return err
	}
	*nn = *fresh
	return nil
}
