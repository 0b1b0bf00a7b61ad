package keypoint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"augpipe/core"
)

func bundleWith(points any, extra core.Bundle) core.Bundle {
	data := core.Bundle{core.KeyImage: core.NewArray(100, 200, 3), core.KeyKeypoints: points}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func mustProcessor(t *testing.T, p *Params) *Processor {
	t.Helper()
	proc, err := p.Build()
	require.NoError(t, err)
	return proc.(*Processor)
}

func TestParamsValidation(t *testing.T) {
	_, err := NewParams("xyz").Build()
	require.Error(t, err, "unknown format must be rejected")

	_, err = NewParams(FormatXYAS).Build()
	require.NoError(t, err)
}

func TestPreprocessFormats(t *testing.T) {
	cases := []struct {
		format string
		row    []any
		want   Keypoint
	}{
		{FormatXY, []any{30.0, 40.0}, Keypoint{X: 30, Y: 40}},
		{FormatYX, []any{40.0, 30.0}, Keypoint{X: 30, Y: 40}},
		{FormatXYA, []any{30.0, 40.0, 0.7}, Keypoint{X: 30, Y: 40, Angle: 0.7}},
		{FormatXYS, []any{30.0, 40.0, 2.0}, Keypoint{X: 30, Y: 40, Scale: 2}},
		{FormatXYAS, []any{30.0, 40.0, 0.7, 2.0}, Keypoint{X: 30, Y: 40, Angle: 0.7, Scale: 2}},
		{FormatXYSA, []any{30.0, 40.0, 2.0, 0.7}, Keypoint{X: 30, Y: 40, Angle: 0.7, Scale: 2}},
	}
	for _, tc := range cases {
		proc := mustProcessor(t, NewParams(tc.format))
		data := bundleWith([][]any{tc.row}, nil)
		require.NoError(t, proc.Preprocess(data), tc.format)
		points := data[core.KeyKeypoints].([]Keypoint)
		require.Len(t, points, 1, tc.format)
		require.Equal(t, tc.want, points[0], tc.format)
	}
}

func TestRoundTripKeepsRows(t *testing.T) {
	proc := mustProcessor(t, NewParams(FormatXYSA))
	rows := [][]any{{30.0, 40.0, 2.0, 0.7}, {100.0, 60.0, 1.0, 0.0}}
	data := bundleWith(rows, nil)

	require.NoError(t, proc.Preprocess(data))
	require.NoError(t, proc.Postprocess(data))

	got := data[core.KeyKeypoints].([][]any)
	require.Len(t, got, 2)
	for i, row := range got {
		for j := range rows[i] {
			require.InDelta(t, rows[i][j].(float64), row[j].(float64), 1e-9)
		}
	}
}

func TestPostprocessDropsInvisible(t *testing.T) {
	p := NewParams(FormatXY)
	p.LabelFields = []string{"kp_labels"}
	proc := mustProcessor(t, p)

	data := bundleWith([][]any{
		{30.0, 40.0},
		{250.0, 40.0}, // outside the 200-wide image
		{30.0, -1.0},  // above the frame
	}, core.Bundle{"kp_labels": []any{"nose", "ear", "eye"}})

	require.NoError(t, proc.EnsureDataValid(data))
	require.NoError(t, proc.Preprocess(data))
	require.NoError(t, proc.Postprocess(data))

	require.Len(t, data[core.KeyKeypoints].([][]any), 1)
	require.Equal(t, []any{"nose"}, data["kp_labels"])
}

func TestRemoveInvisibleOff(t *testing.T) {
	p := NewParams(FormatXY)
	p.RemoveInvisible = false
	proc := mustProcessor(t, p)

	data := bundleWith([][]any{{250.0, 40.0}}, nil)
	require.NoError(t, proc.Preprocess(data))
	require.NoError(t, proc.Postprocess(data))
	require.Len(t, data[core.KeyKeypoints].([][]any), 1)
}

func TestShortRowRejected(t *testing.T) {
	proc := mustProcessor(t, NewParams(FormatXYAS))
	data := bundleWith([][]any{{30.0, 40.0}}, nil)
	require.ErrorContains(t, proc.Preprocess(data), "needs 4")
}
