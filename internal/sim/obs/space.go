package obs

import "fmt"

// Space describes the static shape and dtype of an observation or action
// slot. Spaces are derived once from the first observation after
// construction, so batching layers can size buffers without stepping.
type Space interface {
	isSpace()
}

// BoxSpace is a dense numeric array of fixed shape.
type BoxSpace struct {
	Shape []int
	Dtype Dtype
}

// Dtype is the element type of a BoxSpace.
type Dtype int

const (
	DtypeFloat64 Dtype = iota
	DtypeFloat32
	DtypeUint32
)

func (d Dtype) String() string {
	switch d {
	case DtypeFloat64:
		return "float64"
	case DtypeFloat32:
		return "float32"
	case DtypeUint32:
		return "uint32"
	default:
		return "unknown"
	}
}

// DictSpace is an insertion-ordered mapping of named subspaces, mirroring
// Record.
type DictSpace struct {
	keys   []string
	spaces map[string]Space
}

func (*BoxSpace) isSpace()  {}
func (*DictSpace) isSpace() {}

// NewDictSpace returns an empty dict space.
func NewDictSpace() *DictSpace {
	return &DictSpace{spaces: make(map[string]Space)}
}

// Set inserts or replaces a named subspace, preserving insertion order.
func (d *DictSpace) Set(key string, s Space) *DictSpace {
	if _, exists := d.spaces[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.spaces[key] = s
	return d
}

// Get returns the subspace for key.
func (d *DictSpace) Get(key string) (Space, bool) {
	s, ok := d.spaces[key]
	return s, ok
}

// Keys returns the keys in insertion order.
func (d *DictSpace) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// SpaceOf derives the space of an observation value. Image shapes follow
// the (height, width, channels) convention.
func SpaceOf(v Value) (Space, error) {
	switch x := v.(type) {
	case Floats:
		return &BoxSpace{Shape: []int{len(x)}, Dtype: DtypeFloat64}, nil
	case Scalar:
		return &BoxSpace{Shape: []int{}, Dtype: DtypeFloat64}, nil
	case Uints:
		return &BoxSpace{Shape: []int{len(x)}, Dtype: DtypeUint32}, nil
	case *FloatImage:
		return &BoxSpace{Shape: []int{x.Height, x.Width, x.Channels}, Dtype: DtypeFloat32}, nil
	case *UintImage:
		return &BoxSpace{Shape: []int{x.Height, x.Width}, Dtype: DtypeUint32}, nil
	case *Matrix:
		r, c := x.M.Dims()
		return &BoxSpace{Shape: []int{r, c}, Dtype: DtypeFloat64}, nil
	case *Points:
		r, c := x.XYZW.Dims()
		return &BoxSpace{Shape: []int{r, c}, Dtype: DtypeFloat64}, nil
	case *Record:
		d := NewDictSpace()
		for _, key := range x.Keys() {
			child, _ := x.Get(key)
			cs, err := SpaceOf(child)
			if err != nil {
				return nil, err
			}
			d.Set(key, cs)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("no space for observation value of type %T", v)
	}
}
