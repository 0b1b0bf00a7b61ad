package core

import "fmt"

// Shape is the height/width extent of an image-like array, used for
// consistency checks and for filtering boxes and keypoints against bounds.
type Shape struct {
	Height int
	Width  int
}

// Array is the dense value type that crosses the Transform boundary: a
// row-major float32 buffer with an explicit dimension list. The engine
// only needs shape access and channel addressing on H×W×C arrays; all
// heavier math belongs to the transforms themselves.
type Array struct {
	dims []int
	data []float32
}

// NewArray allocates a zeroed array with the given dimensions.
func NewArray(dims ...int) *Array {
	n := 1
	for _, d := range dims {
		if d <= 0 {
			panic(fmt.Sprintf("core: non-positive dimension %d", d))
		}
		n *= d
	}
	return &Array{dims: append([]int(nil), dims...), data: make([]float32, n)}
}

// NewArrayFrom wraps data in an array with the given dimensions.
// It panics if len(data) does not match the dimension product.
func NewArrayFrom(data []float32, dims ...int) *Array {
	a := NewArray(dims...)
	if len(data) != len(a.data) {
		panic(fmt.Sprintf("core: data length %d does not match dims %v", len(data), dims))
	}
	copy(a.data, data)
	return a
}

// Dims returns a copy of the dimension list.
func (a *Array) Dims() []int { return append([]int(nil), a.dims...) }

// NDim returns the number of axes.
func (a *Array) NDim() int { return len(a.dims) }

// Data exposes the raw row-major buffer.
func (a *Array) Data() []float32 { return a.data }

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	out := &Array{dims: append([]int(nil), a.dims...), data: make([]float32, len(a.data))}
	copy(out.data, a.data)
	return out
}

// HW returns the extent of the first two axes.
func (a *Array) HW() Shape {
	if len(a.dims) < 2 {
		panic("core: array has fewer than two axes")
	}
	return Shape{Height: a.dims[0], Width: a.dims[1]}
}

func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.dims) {
		panic(fmt.Sprintf("core: %d indices for %d axes", len(idx), len(a.dims)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= a.dims[i] {
			panic(fmt.Sprintf("core: index %d out of range on axis %d", x, i))
		}
		off = off*a.dims[i] + x
	}
	return off
}

// At returns the element at the given indices.
func (a *Array) At(idx ...int) float32 { return a.data[a.offset(idx)] }

// Set stores v at the given indices.
func (a *Array) Set(v float32, idx ...int) { a.data[a.offset(idx)] = v }

// Equal reports whether b has the same dimensions and identical contents.
func (a *Array) Equal(b *Array) bool {
	if b == nil || len(a.dims) != len(b.dims) {
		return false
	}
	for i := range a.dims {
		if a.dims[i] != b.dims[i] {
			return false
		}
	}
	for i := range a.data {
		if a.data[i] != b.data[i] {
			return false
		}
	}
	return true
}

// PickChannels extracts the given channel indices of an H×W×C array into
// a contiguous H×W×len(channels) array. Indices may repeat and need not
// be contiguous.
func (a *Array) PickChannels(channels []int) *Array {
	if len(a.dims) != 3 {
		panic("core: PickChannels requires an H×W×C array")
	}
	h, w := a.dims[0], a.dims[1]
	out := NewArray(h, w, len(channels))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for i, c := range channels {
				out.Set(a.At(y, x, c), y, x, i)
			}
		}
	}
	return out
}

// Channel returns channel c of an H×W×C array as an H×W plane.
func (a *Array) Channel(c int) *Array {
	if len(a.dims) != 3 {
		panic("core: Channel requires an H×W×C array")
	}
	h, w := a.dims[0], a.dims[1]
	out := NewArray(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(a.At(y, x, c), y, x)
		}
	}
	return out
}

// SetChannel writes an H×W plane into channel c of an H×W×C array.
func (a *Array) SetChannel(c int, plane *Array) {
	if len(a.dims) != 3 {
		panic("core: SetChannel requires an H×W×C array")
	}
	h, w := a.dims[0], a.dims[1]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a.Set(plane.At(y, x), y, x, c)
		}
	}
}
