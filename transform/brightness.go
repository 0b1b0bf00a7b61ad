package transform

import (
	"fmt"

	"augpipe/core"
)

func scaleArray(a *core.Array, factor float64) *core.Array {
	out := a.Clone()
	data := out.Data()
	f := float32(factor)
	for i := range data {
		data[i] *= f
	}
	return out
}

func scaleImage(v any, params core.Params) (any, error) {
	a, ok := v.(*core.Array)
	if !ok {
		return nil, fmt.Errorf("want an array, got %T", v)
	}
	factor, ok := paramFloat(params, "factor")
	if !ok {
		return nil, fmt.Errorf("missing brightness factor")
	}
	return scaleArray(a, factor), nil
}

func scaleImages(v any, params core.Params) (any, error) {
	seq, ok := v.([]*core.Array)
	if !ok {
		return nil, fmt.Errorf("want a sequence of arrays, got %T", v)
	}
	factor, ok := paramFloat(params, "factor")
	if !ok {
		return nil, fmt.Errorf("missing brightness factor")
	}
	out := make([]*core.Array, len(seq))
	for i, a := range seq {
		out[i] = scaleArray(a, factor)
	}
	return out, nil
}

// RandomBrightness scales image values by a factor drawn uniformly from
// [1-limit, 1+limit]. Only image fields are touched.
func RandomBrightness(limit, p float64) *Op {
	return New(Config{
		Name: "RandomBrightness",
		P:    p,
		Funcs: map[string]Func{
			core.KeyImage:  scaleImage,
			core.KeyImages: scaleImages,
		},
		Sample: func(core.Bundle) (core.Params, error) {
			return core.Params{"factor": 1 + (2*core.RandFloat()-1)*limit}, nil
		},
		Args: func() core.Args { return core.Args{"limit": limit} },
	})
}

func init() {
	core.Register("RandomBrightness", func(args core.Args, _ []core.Transform) (core.Transform, error) {
		return RandomBrightness(args.Float("limit", 0.2), args.Float("p", 0.5)), nil
	})
}
