package core_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"augpipe/bbox"
	"augpipe/core"
	"augpipe/transform"
)

// Boxes pushed out of frame by one child must already be gone when the
// next child runs, not only at postprocess time.
func TestCheckEachTransformFiltersMidPipeline(t *testing.T) {
	shift := transform.Lambda("shift", 1, map[string]transform.Func{
		core.KeyBBoxes: func(v any, _ core.Params) (any, error) {
			boxes := v.([]bbox.Box)
			out := make([]bbox.Box, len(boxes))
			for i, b := range boxes {
				out[i] = b
				out[i].XMin += 150
				out[i].XMax += 150
			}
			return out, nil
		},
	})
	var seenByNext int
	spy := transform.Lambda("spy", 1, map[string]transform.Func{
		core.KeyBBoxes: func(v any, _ core.Params) (any, error) {
			seenByNext = len(v.([]bbox.Box))
			return v, nil
		},
	})

	c, err := core.NewCompose([]core.Transform{shift, spy},
		core.WithProcessorParams(bbox.NewParams(bbox.FormatPascalVOC)))
	require.NoError(t, err)

	data := core.Bundle{
		core.KeyImage: core.NewArray(100, 200, 3),
		core.KeyBBoxes: [][]any{
			{10.0, 20.0, 50.0, 80.0},   // shifts to 160..200, survives
			{100.0, 20.0, 190.0, 80.0}, // shifts fully out of frame
		},
	}
	out, err := c.Apply(data, true)
	require.NoError(t, err)

	require.Equal(t, 1, seenByNext, "second child must see the filtered list")
	require.Len(t, out[core.KeyBBoxes].([][]any), 1)
}
