package transform

import (
	"fmt"

	"augpipe/core"
)

func sampleChannelOrder(data core.Bundle) (core.Params, error) {
	img, ok := data[core.KeyImage].(*core.Array)
	if !ok {
		return nil, fmt.Errorf("channel shuffle needs an image array")
	}
	if img.NDim() != 3 {
		return nil, fmt.Errorf("channel shuffle needs a channelled image, got %d axes", img.NDim())
	}
	c := img.Dims()[2]
	perm := make([]int, c)
	for i := range perm {
		perm[i] = i
	}
	for i := c - 1; i > 0; i-- {
		j := core.RandIntN(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return core.Params{"channels": perm}, nil
}

func shuffleChannels(v any, params core.Params) (any, error) {
	a, ok := v.(*core.Array)
	if !ok {
		return nil, fmt.Errorf("want an array, got %T", v)
	}
	perm := paramInts(params, "channels")
	if len(perm) == 0 {
		return nil, fmt.Errorf("missing channel order")
	}
	if a.NDim() != 3 || a.Dims()[2] != len(perm) {
		return nil, fmt.Errorf("channel order has %d entries for array %v", len(perm), a.Dims())
	}
	return a.PickChannels(perm), nil
}

// ChannelShuffle reorders the image's channels by a random permutation.
// Masks, boxes and keypoints are untouched.
func ChannelShuffle(p float64) *Op {
	return New(Config{
		Name:   "ChannelShuffle",
		P:      p,
		Funcs:  map[string]Func{core.KeyImage: shuffleChannels},
		Sample: sampleChannelOrder,
	})
}

func init() {
	core.Register("ChannelShuffle", func(args core.Args, _ []core.Transform) (core.Transform, error) {
		return ChannelShuffle(args.Float("p", 0.5)), nil
	})
}
