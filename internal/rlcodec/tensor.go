// Package rlcodec turns an assembled world model into the flat numeric
// tensors a reinforcement-learning agent consumes, and turns the agent's
// action tensors back into a vehicle command. No third-party tensor library
// in the retrieval pack covers this narrow, domain-specific encode/decode
// contract (the closest candidates, gonum and the viam stack's point-cloud
// math, live in repos unrelated to this bridge and pull in far more linear
// algebra machinery than a handful of fixed-shape flat arrays need), so
// Tensor is a plain Go struct.
package rlcodec

// Tensor is a flat, row-major numeric array with an explicit shape.
type Tensor struct {
	Shape []int
	Data  []float64
}

// NewTensor allocates a zeroed tensor of the given shape.
func NewTensor(shape []int) Tensor {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: make([]float64, size)}
}

// Scalar returns a [1,1] tensor carrying a single value.
func Scalar(v float64) Tensor {
	return Tensor{Shape: []int{1, 1}, Data: []float64{v}}
}

// SignalSpec describes the shape an encoder produces or a decoder expects
// for one named signal.
type SignalSpec struct {
	Shape []int
}
