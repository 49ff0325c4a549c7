package episode

import (
	"errors"
	"fmt"

	"gorgonia.org/tensor"
)

// ErrUnsupportedDtype reports that a value handed to Convert has an
// element type that has no fixed-precision representation. This always
// signals an environment or configuration bug and is not recoverable
// at the call site.
var ErrUnsupportedDtype = errors.New("unsupported element type")

// IsUnsupportedDtype returns whether or not an error reports that a
// value could not be normalized by Convert.
func IsUnsupportedDtype(err error) bool {
	return errors.Is(err, ErrUnsupportedDtype)
}

// Convert normalizes a value recorded from an environment or agent to a
// dense tensor with a fixed-precision element type: floating point
// values become float32, signed integers become int32, uint8 and bool
// values keep their type. Scalars are represented as shape-[1] tensors
// so that every field of an episode stacks uniformly along a new
// leading time axis.
//
// Convert accepts Go scalars, slices of scalars, and *tensor.Dense
// values. Tensors already holding a normalized type are cloned so the
// caller keeps ownership of its argument.
func Convert(v interface{}) (*tensor.Dense, error) {
	switch val := v.(type) {
	case *tensor.Dense:
		return convertDense(val)

	case float32:
		return tensor.New(tensor.WithBacking([]float32{val})), nil
	case float64:
		return tensor.New(tensor.WithBacking([]float32{float32(val)})), nil
	case int:
		return tensor.New(tensor.WithBacking([]int32{int32(val)})), nil
	case int32:
		return tensor.New(tensor.WithBacking([]int32{val})), nil
	case int64:
		return tensor.New(tensor.WithBacking([]int32{int32(val)})), nil
	case uint8:
		return tensor.New(tensor.WithBacking([]uint8{val})), nil
	case bool:
		return tensor.New(tensor.WithBacking([]bool{val})), nil

	case []float32:
		backing := make([]float32, len(val))
		copy(backing, val)
		return tensor.New(tensor.WithBacking(backing)), nil
	case []float64:
		backing := make([]float32, len(val))
		for i, f := range val {
			backing[i] = float32(f)
		}
		return tensor.New(tensor.WithBacking(backing)), nil
	case []int:
		backing := make([]int32, len(val))
		for i, n := range val {
			backing[i] = int32(n)
		}
		return tensor.New(tensor.WithBacking(backing)), nil
	case []int32:
		backing := make([]int32, len(val))
		copy(backing, val)
		return tensor.New(tensor.WithBacking(backing)), nil
	case []int64:
		backing := make([]int32, len(val))
		for i, n := range val {
			backing[i] = int32(n)
		}
		return tensor.New(tensor.WithBacking(backing)), nil
	case []uint8:
		backing := make([]uint8, len(val))
		copy(backing, val)
		return tensor.New(tensor.WithBacking(backing)), nil
	case []bool:
		backing := make([]bool, len(val))
		copy(backing, val)
		return tensor.New(tensor.WithBacking(backing)), nil
	}

	return nil, fmt.Errorf("convert: %w: %T", ErrUnsupportedDtype, v)
}

// convertDense normalizes the element type of an existing tensor,
// preserving its shape.
func convertDense(t *tensor.Dense) (*tensor.Dense, error) {
	shape := append([]int{}, t.Shape()...)

	switch t.Dtype() {
	case tensor.Float32, tensor.Int32, tensor.Uint8, tensor.Bool:
		return t.Clone().(*tensor.Dense), nil

	case tensor.Float64:
		data := t.Float64s()
		backing := make([]float32, len(data))
		for i, f := range data {
			backing[i] = float32(f)
		}
		return tensor.New(tensor.WithShape(shape...),
			tensor.WithBacking(backing)), nil

	case tensor.Int:
		data := t.Ints()
		backing := make([]int32, len(data))
		for i, n := range data {
			backing[i] = int32(n)
		}
		return tensor.New(tensor.WithShape(shape...),
			tensor.WithBacking(backing)), nil

	case tensor.Int64:
		data := t.Int64s()
		backing := make([]int32, len(data))
		for i, n := range data {
			backing[i] = int32(n)
		}
		return tensor.New(tensor.WithShape(shape...),
			tensor.WithBacking(backing)), nil
	}

	return nil, fmt.Errorf("convert: %w: %v", ErrUnsupportedDtype, t.Dtype())
}

// ZeroLike returns a zero-valued tensor with the same shape and element
// type as t. It is used to backfill a field that first appears after an
// episode has already recorded transitions.
func ZeroLike(t *tensor.Dense) *tensor.Dense {
	shape := append([]int{}, t.Shape()...)
	return tensor.New(tensor.Of(t.Dtype()), tensor.WithShape(shape...))
}
