package core_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"augpipe/core"
	"augpipe/transform"
)

func testImage() *core.Array {
	img := core.NewArray(4, 4, 3)
	data := img.Data()
	for i := range data {
		data[i] = float32(i)
	}
	return img
}

func TestReplayReproducesDeterministicRun(t *testing.T) {
	rc, err := core.NewReplayCompose([]core.Transform{transform.HorizontalFlip(1)})
	require.NoError(t, err)

	img := testImage()
	out, err := rc.Apply(core.Bundle{core.KeyImage: img.Clone()}, false)
	require.NoError(t, err)

	tree, ok := out[core.ReplaySaveKey].(*core.Node)
	require.True(t, ok, "save key must hold the filled tree")
	require.NotNil(t, tree.Applied)
	require.True(t, *tree.Applied)

	replayed, err := core.Replay(tree, core.Bundle{core.KeyImage: img.Clone()})
	require.NoError(t, err)
	require.True(t, out[core.KeyImage].(*core.Array).Equal(replayed[core.KeyImage].(*core.Array)))
}

func TestReplayPinsStochasticBranch(t *testing.T) {
	core.SetRandSource(rand.NewPCG(42, 43))
	rc, err := core.NewReplayCompose([]core.Transform{
		core.NewOneOf([]core.Transform{
			transform.HorizontalFlip(1),
			transform.VerticalFlip(1),
		}, 1),
	})
	require.NoError(t, err)

	img := testImage()
	out, err := rc.Apply(core.Bundle{core.KeyImage: img.Clone()}, false)
	require.NoError(t, err)
	tree := out[core.ReplaySaveKey].(*core.Node)

	// A different random state must not change the replayed result.
	core.SetRandSource(rand.NewPCG(999, 1000))
	replayed, err := core.Replay(tree, core.Bundle{core.KeyImage: img.Clone()})
	require.NoError(t, err)
	require.True(t, out[core.KeyImage].(*core.Array).Equal(replayed[core.KeyImage].(*core.Array)))

	core.SetRandSource(rand.NewPCG(7, 8))
	replayed2, err := core.Replay(tree, core.Bundle{core.KeyImage: img.Clone()})
	require.NoError(t, err)
	require.True(t, replayed[core.KeyImage].(*core.Array).Equal(replayed2[core.KeyImage].(*core.Array)))
}

func TestReplaySkippedPipelineIsNoOp(t *testing.T) {
	core.SetRandSource(rand.NewPCG(1, 2))
	rc, err := core.NewReplayCompose([]core.Transform{transform.HorizontalFlip(0)})
	require.NoError(t, err)

	img := testImage()
	out, err := rc.Apply(core.Bundle{core.KeyImage: img.Clone()}, false)
	require.NoError(t, err)
	tree := out[core.ReplaySaveKey].(*core.Node)
	require.NotNil(t, tree.Applied)
	require.False(t, *tree.Applied)

	replayed, err := core.Replay(tree, core.Bundle{core.KeyImage: img.Clone()})
	require.NoError(t, err)
	require.True(t, img.Equal(replayed[core.KeyImage].(*core.Array)))
}

func TestReplayWithLambda(t *testing.T) {
	double := func() *transform.Op {
		return transform.Lambda("double", 1, map[string]transform.Func{
			core.KeyImage: func(v any, _ core.Params) (any, error) {
				a := v.(*core.Array).Clone()
				data := a.Data()
				for i := range data {
					data[i] *= 2
				}
				return a, nil
			},
		})
	}

	rc, err := core.NewReplayCompose([]core.Transform{double()})
	require.NoError(t, err)

	img := testImage()
	out, err := rc.Apply(core.Bundle{core.KeyImage: img.Clone()}, false)
	require.NoError(t, err)
	tree := out[core.ReplaySaveKey].(*core.Node)

	_, err = core.Replay(tree, core.Bundle{core.KeyImage: img.Clone()})
	require.ErrorContains(t, err, "lambda")

	replayed, err := core.ReplayWith(tree, core.Bundle{core.KeyImage: img.Clone()},
		map[string]core.Transform{"double": double()})
	require.NoError(t, err)
	require.True(t, out[core.KeyImage].(*core.Array).Equal(replayed[core.KeyImage].(*core.Array)))
}

func TestReplayLeavesPassThroughFieldsUntouched(t *testing.T) {
	rc, err := core.NewReplayCompose([]core.Transform{transform.HorizontalFlip(1)},
		core.WithStrict(false))
	require.NoError(t, err)

	img := testImage()
	labels := []any{"cat", "dog"}
	out, err := rc.Apply(core.Bundle{core.KeyImage: img.Clone(), core.KeyLabels: labels}, false)
	require.NoError(t, err)
	require.Equal(t, labels, out[core.KeyLabels])

	tree := out[core.ReplaySaveKey].(*core.Node)
	replayed, err := core.Replay(tree, core.Bundle{core.KeyImage: img.Clone(), core.KeyLabels: labels})
	require.NoError(t, err)
	require.Equal(t, labels, replayed[core.KeyLabels])
	require.True(t, out[core.KeyImage].(*core.Array).Equal(replayed[core.KeyImage].(*core.Array)))
}

func TestRecordKeepsFirstUseOrder(t *testing.T) {
	rec := core.NewRecord()
	rec.Put(3, core.Params{"a": 1})
	rec.Put(1, core.Params{"b": 2})
	rec.Put(3, core.Params{"a": 9})
	require.Equal(t, []int{3, 1}, rec.Order())
	require.Equal(t, 2, rec.Len())
	p, ok := rec.Get(3)
	require.True(t, ok)
	require.Equal(t, 9, p["a"])
}
