package bbox

import (
	"testing"

	"github.com/stretchr/testify/require"

	"augpipe/core"
)

func bundleWith(boxes any, extra core.Bundle) core.Bundle {
	data := core.Bundle{core.KeyImage: core.NewArray(100, 200, 3), core.KeyBBoxes: boxes}
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
	_, err := NewParams("voc").Build()
	require.Error(t, err, "unknown format must be rejected")

	_, err = NewParams("").Build()
	require.Error(t, err, "empty format must be rejected")

	p := NewParams(FormatCOCO)
	p.MinVisibility = 1.5
	_, err = p.Build()
	require.Error(t, err, "visibility above 1 must be rejected")

	_, err = NewParams(FormatYOLO).Build()
	require.NoError(t, err)
}

func TestPreprocessConvertsFormats(t *testing.T) {
	cases := []struct {
		format string
		row    []any
	}{
		{FormatPascalVOC, []any{20.0, 10.0, 60.0, 50.0}},
		{FormatCOCO, []any{20.0, 10.0, 40.0, 40.0}},
		{FormatAlbumentations, []any{0.1, 0.1, 0.3, 0.5}},
		{FormatYOLO, []any{0.2, 0.3, 0.2, 0.4}},
	}
	for _, tc := range cases {
		proc := mustProcessor(t, NewParams(tc.format))
		data := bundleWith([][]any{tc.row}, nil)
		require.NoError(t, proc.Preprocess(data), tc.format)

		boxes := data[core.KeyBBoxes].([]Box)
		require.Len(t, boxes, 1, tc.format)
		require.InDelta(t, 20, boxes[0].XMin, 1e-9, tc.format)
		require.InDelta(t, 10, boxes[0].YMin, 1e-9, tc.format)
		require.InDelta(t, 60, boxes[0].XMax, 1e-9, tc.format)
		require.InDelta(t, 50, boxes[0].YMax, 1e-9, tc.format)
	}
}

func TestRoundTripKeepsRows(t *testing.T) {
	proc := mustProcessor(t, NewParams(FormatYOLO))
	rows := [][]any{{0.25, 0.4, 0.1, 0.2}, {0.7, 0.5, 0.2, 0.3}}
	data := bundleWith(rows, nil)

	require.NoError(t, proc.Preprocess(data))
	require.NoError(t, proc.Postprocess(data))

	got := data[core.KeyBBoxes].([][]any)
	require.Len(t, got, 2)
	for i, row := range got {
		for j := range rows[i] {
			require.InDelta(t, rows[i][j].(float64), row[j].(float64), 1e-9)
		}
	}
}

func TestInvalidBoxRejected(t *testing.T) {
	proc := mustProcessor(t, NewParams(FormatPascalVOC))
	data := bundleWith([][]any{{60.0, 10.0, 20.0, 50.0}}, nil)
	require.ErrorContains(t, proc.Preprocess(data), "x_max")
}

func TestLabelFieldsStayAligned(t *testing.T) {
	p := NewParams(FormatPascalVOC)
	p.LabelFields = []string{"class_labels"}
	proc := mustProcessor(t, p)

	// Second box sits fully outside and must be dropped with its label.
	data := bundleWith([][]any{
		{20.0, 10.0, 60.0, 50.0},
		{300.0, 10.0, 340.0, 50.0},
	}, core.Bundle{"class_labels": []any{"cat", "dog"}})

	require.NoError(t, proc.EnsureDataValid(data))
	require.NoError(t, proc.Preprocess(data))
	require.NoError(t, proc.Postprocess(data))

	require.Equal(t, []any{"cat"}, data["class_labels"])
	require.Len(t, data[core.KeyBBoxes].([][]any), 1)
}

func TestLabelFieldLengthMismatch(t *testing.T) {
	p := NewParams(FormatPascalVOC)
	p.LabelFields = []string{"class_labels"}
	proc := mustProcessor(t, p)

	data := bundleWith([][]any{{20.0, 10.0, 60.0, 50.0}}, core.Bundle{"class_labels": []any{"cat", "dog"}})
	require.ErrorContains(t, proc.Preprocess(data), "class_labels")
}

func TestFilterThresholds(t *testing.T) {
	p := NewParams(FormatPascalVOC)
	p.MinVisibility = 0.5
	proc := mustProcessor(t, p)
	shape := core.Shape{Height: 100, Width: 100}

	boxes := []Box{
		{XMin: 10, YMin: 10, XMax: 50, YMax: 50},   // fully inside
		{XMin: 60, YMin: 10, XMax: 140, YMax: 50},  // half visible
		{XMin: 90, YMin: 10, XMax: 170, YMax: 50},  // 1/8 visible, dropped
		{XMin: 200, YMin: 10, XMax: 240, YMax: 50}, // fully outside, dropped
	}
	kept, err := proc.Filter(boxes, shape)
	require.NoError(t, err)
	require.Len(t, kept.([]Box), 2)

	minArea := NewParams(FormatPascalVOC)
	minArea.MinArea = 2000
	proc = mustProcessor(t, minArea)
	kept, err = proc.Filter([]Box{
		{XMin: 0, YMin: 0, XMax: 40, YMax: 40}, // 1600 px², dropped
		{XMin: 0, YMin: 0, XMax: 50, YMax: 50}, // 2500 px², kept
	}, shape)
	require.NoError(t, err)
	require.Len(t, kept.([]Box), 1)
}

func TestInlineLabelsSurviveRoundTrip(t *testing.T) {
	proc := mustProcessor(t, NewParams(FormatPascalVOC))
	data := bundleWith([][]any{{20.0, 10.0, 60.0, 50.0, "cat", 7}}, nil)

	require.NoError(t, proc.Preprocess(data))
	boxes := data[core.KeyBBoxes].([]Box)
	require.Equal(t, []any{"cat", 7}, boxes[0].Labels)

	require.NoError(t, proc.Postprocess(data))
	rows := data[core.KeyBBoxes].([][]any)
	require.Len(t, rows[0], 6)
	require.Equal(t, "cat", rows[0][4])
	require.Equal(t, 7, rows[0][5])
}
