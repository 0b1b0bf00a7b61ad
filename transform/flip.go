package transform

import (
	"fmt"
	"math"

	"augpipe/bbox"
	"augpipe/core"
	"augpipe/keypoint"
)

// flipWidth mirrors an array along its width axis. The width axis is the
// second for plain and channelled images, the third for batched masks.
func flipWidth(a *core.Array) *core.Array {
	out := a.Clone()
	dims := a.Dims()
	switch a.NDim() {
	case 2:
		h, w := dims[0], dims[1]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(a.At(y, w-1-x), y, x)
			}
		}
	case 3:
		h, w, c := dims[0], dims[1], dims[2]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for ch := 0; ch < c; ch++ {
					out.Set(a.At(y, w-1-x, ch), y, x, ch)
				}
			}
		}
	case 4:
		n, h, w, c := dims[0], dims[1], dims[2], dims[3]
		for b := 0; b < n; b++ {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					for ch := 0; ch < c; ch++ {
						out.Set(a.At(b, y, w-1-x, ch), b, y, x, ch)
					}
				}
			}
		}
	default:
		panic(fmt.Sprintf("transform: cannot flip a %d-axis array", a.NDim()))
	}
	return out
}

// flipHeight mirrors an array along its height axis.
func flipHeight(a *core.Array) *core.Array {
	out := a.Clone()
	dims := a.Dims()
	switch a.NDim() {
	case 2:
		h, w := dims[0], dims[1]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(a.At(h-1-y, x), y, x)
			}
		}
	case 3:
		h, w, c := dims[0], dims[1], dims[2]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for ch := 0; ch < c; ch++ {
					out.Set(a.At(h-1-y, x, ch), y, x, ch)
				}
			}
		}
	case 4:
		n, h, w, c := dims[0], dims[1], dims[2], dims[3]
		for b := 0; b < n; b++ {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					for ch := 0; ch < c; ch++ {
						out.Set(a.At(b, h-1-y, x, ch), b, y, x, ch)
					}
				}
			}
		}
	default:
		panic(fmt.Sprintf("transform: cannot flip a %d-axis array", a.NDim()))
	}
	return out
}

// arrayFunc lifts an array operation into a Func for single-array fields.
func arrayFunc(f func(*core.Array) *core.Array) Func {
	return func(v any, _ core.Params) (any, error) {
		a, ok := v.(*core.Array)
		if !ok {
			return nil, fmt.Errorf("want an array, got %T", v)
		}
		return f(a), nil
	}
}

// arraySeqFunc lifts an array operation into a Func for array sequences.
func arraySeqFunc(f func(*core.Array) *core.Array) Func {
	return func(v any, _ core.Params) (any, error) {
		seq, ok := v.([]*core.Array)
		if !ok {
			return nil, fmt.Errorf("want a sequence of arrays, got %T", v)
		}
		out := make([]*core.Array, len(seq))
		for i, a := range seq {
			out[i] = f(a)
		}
		return out, nil
	}
}

// maskFunc lifts an array operation into a Func accepting either a
// single stacked mask array or a sequence of masks.
func maskFunc(f func(*core.Array) *core.Array) Func {
	single := arrayFunc(f)
	seq := arraySeqFunc(f)
	return func(v any, params core.Params) (any, error) {
		if _, ok := v.([]*core.Array); ok {
			return seq(v, params)
		}
		return single(v, params)
	}
}

func hFlipBoxes(v any, params core.Params) (any, error) {
	boxes, ok := v.([]bbox.Box)
	if !ok {
		return nil, fmt.Errorf("want preprocessed boxes, got %T", v)
	}
	cols, ok := paramInt(params, "cols")
	if !ok {
		return nil, fmt.Errorf("missing image extent")
	}
	w := float64(cols)
	out := make([]bbox.Box, len(boxes))
	for i, b := range boxes {
		out[i] = b
		out[i].XMin = w - b.XMax
		out[i].XMax = w - b.XMin
	}
	return out, nil
}

func vFlipBoxes(v any, params core.Params) (any, error) {
	boxes, ok := v.([]bbox.Box)
	if !ok {
		return nil, fmt.Errorf("want preprocessed boxes, got %T", v)
	}
	rows, ok := paramInt(params, "rows")
	if !ok {
		return nil, fmt.Errorf("missing image extent")
	}
	h := float64(rows)
	out := make([]bbox.Box, len(boxes))
	for i, b := range boxes {
		out[i] = b
		out[i].YMin = h - b.YMax
		out[i].YMax = h - b.YMin
	}
	return out, nil
}

func hFlipKeypoints(v any, params core.Params) (any, error) {
	points, ok := v.([]keypoint.Keypoint)
	if !ok {
		return nil, fmt.Errorf("want preprocessed keypoints, got %T", v)
	}
	cols, ok := paramInt(params, "cols")
	if !ok {
		return nil, fmt.Errorf("missing image extent")
	}
	w := float64(cols)
	out := make([]keypoint.Keypoint, len(points))
	for i, k := range points {
		out[i] = k
		out[i].X = (w - 1) - k.X
		out[i].Angle = math.Pi - k.Angle
	}
	return out, nil
}

func vFlipKeypoints(v any, params core.Params) (any, error) {
	points, ok := v.([]keypoint.Keypoint)
	if !ok {
		return nil, fmt.Errorf("want preprocessed keypoints, got %T", v)
	}
	rows, ok := paramInt(params, "rows")
	if !ok {
		return nil, fmt.Errorf("missing image extent")
	}
	h := float64(rows)
	out := make([]keypoint.Keypoint, len(points))
	for i, k := range points {
		out[i] = k
		out[i].Y = (h - 1) - k.Y
		out[i].Angle = -k.Angle
	}
	return out, nil
}

// HorizontalFlip mirrors every spatial target around the vertical axis.
func HorizontalFlip(p float64) *Op {
	return New(Config{
		Name: "HorizontalFlip",
		P:    p,
		Funcs: map[string]Func{
			core.KeyImage:     arrayFunc(flipWidth),
			core.KeyImages:    arraySeqFunc(flipWidth),
			core.KeyMask:      arrayFunc(flipWidth),
			core.KeyMasks:     maskFunc(flipWidth),
			core.KeyBBoxes:    hFlipBoxes,
			core.KeyKeypoints: hFlipKeypoints,
		},
	})
}

// VerticalFlip mirrors every spatial target around the horizontal axis.
func VerticalFlip(p float64) *Op {
	return New(Config{
		Name: "VerticalFlip",
		P:    p,
		Funcs: map[string]Func{
			core.KeyImage:     arrayFunc(flipHeight),
			core.KeyImages:    arraySeqFunc(flipHeight),
			core.KeyMask:      arrayFunc(flipHeight),
			core.KeyMasks:     maskFunc(flipHeight),
			core.KeyBBoxes:    vFlipBoxes,
			core.KeyKeypoints: vFlipKeypoints,
		},
	})
}

func init() {
	core.Register("HorizontalFlip", func(args core.Args, _ []core.Transform) (core.Transform, error) {
		return HorizontalFlip(args.Float("p", 0.5)), nil
	})
	core.Register("VerticalFlip", func(args core.Args, _ []core.Transform) (core.Transform, error) {
		return VerticalFlip(args.Float("p", 0.5)), nil
	})
}
