// Package obs implements the multi-modal observation pipeline: mode
// dispatch over a closed enumeration, multi-sensor fusion, segmentation
// post-processing, and the ordered observation record container.
package obs

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Value is one node of an observation record tree. The set of
// implementations is closed.
type Value interface {
	isValue()
}

// Floats is a flat numeric vector leaf.
type Floats []float64

// Scalar is a single numeric leaf.
type Scalar float64

// Uints is a flat unsigned-integer leaf (per-point segmentation ids).
type Uints []uint32

// FloatImage is a Width×Height×Channels float32 image, row-major.
type FloatImage struct {
	Width    int
	Height   int
	Channels int
	Data     []float32
}

// UintImage is a Width×Height uint32 image, row-major. Used for
// segmentation channels; pixel values are engine body ids, zero is
// background.
type UintImage struct {
	Width  int
	Height int
	Data   []uint32
}

// Matrix wraps a camera parameter matrix (intrinsic/extrinsic/model).
type Matrix struct {
	M *mat.Dense
}

// Points is an N×4 set of homogeneous world-frame points.
type Points struct {
	XYZW *mat.Dense
}

func (Floats) isValue()      {}
func (Scalar) isValue()      {}
func (Uints) isValue()       {}
func (*FloatImage) isValue() {}
func (*UintImage) isValue()  {}
func (*Matrix) isValue()     {}
func (*Points) isValue()     {}
func (*Record) isValue()     {}

// Record is an insertion-ordered string-keyed mapping of Values. Iteration
// and flattening visit keys in first-insertion order; replacing a key's
// value keeps its position. This order stability is load-bearing: the
// "state" observation mode flattens a record into one vector, and the
// resulting layout must never vary across calls for a fixed configuration.
type Record struct {
	keys   []string
	values map[string]Value
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]Value)}
}

// Set inserts or replaces a key. A replaced key keeps its original
// position in the iteration order.
func (r *Record) Set(key string, v Value) *Record {
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	return r
}

// Get returns the value for key.
func (r *Record) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Delete removes a key, closing the gap in iteration order.
func (r *Record) Delete(key string) {
	if _, exists := r.values[key]; !exists {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys.
func (r *Record) Len() int {
	return len(r.keys)
}

// Flatten visits the record depth-first in insertion order and
// concatenates all numeric leaves into one vector. Non-numeric leaves
// (images, matrices, point sets) cannot be flattened; hitting one is a
// configuration error, since only proprioceptive/extra state belongs in a
// flattened observation.
func Flatten(r *Record) (Floats, error) {
	var out Floats
	var walk func(path string, rec *Record) error
	walk = func(path string, rec *Record) error {
		for _, key := range rec.keys {
			p := key
			if path != "" {
				p = path + "/" + key
			}
			switch v := rec.values[key].(type) {
			case *Record:
				if err := walk(p, v); err != nil {
					return err
				}
			case Floats:
				out = append(out, v...)
			case Scalar:
				out = append(out, float64(v))
			default:
				return fmt.Errorf("cannot flatten %T at %q into a state vector", v, p)
			}
		}
		return nil
	}
	if err := walk("", r); err != nil {
		return nil, err
	}
	return out, nil
}

// matrixFromRowMajor builds an r×c dense matrix from row-major data.
func matrixFromRowMajor(rows, cols int, data []float64) *mat.Dense {
	d := make([]float64, len(data))
	copy(d, data)
	return mat.NewDense(rows, cols, d)
}
