// Package keypoint implements keypoint support for pipelines: format
// conversion, validation and visibility filtering. Points travel through
// the pipeline as absolute x/y coordinates with optional angle and scale
// components.
package keypoint

import (
	"fmt"

	"augpipe/core"
)

// Supported input/output formats. The letters give the column order; a
// format without an angle or scale column leaves that component zero.
const (
	FormatXY   = "xy"
	FormatYX   = "yx"
	FormatXYA  = "xya"
	FormatXYS  = "xys"
	FormatXYAS = "xyas"
	FormatXYSA = "xysa"
)

// Keypoint is the internal representation. Labels stay attached through
// filtering so they never fall out of alignment.
type Keypoint struct {
	X, Y, Angle, Scale float64
	Labels             []any
}

// InBounds reports whether the point lies inside the image.
func (k Keypoint) InBounds(shape core.Shape) bool {
	return k.X >= 0 && k.X < float64(shape.Width) && k.Y >= 0 && k.Y < float64(shape.Height)
}

func formatColumns(format string) (int, error) {
	switch format {
	case FormatXY, FormatYX:
		return 2, nil
	case FormatXYA, FormatXYS:
		return 3, nil
	case FormatXYAS, FormatXYSA:
		return 4, nil
	}
	return 0, fmt.Errorf("keypoint: unknown format %q", format)
}

func decodeRows(v any) ([][]any, error) {
	switch rows := v.(type) {
	case nil:
		return nil, nil
	case [][]any:
		return rows, nil
	case [][]float64:
		out := make([][]any, len(rows))
		for i, r := range rows {
			row := make([]any, len(r))
			for j, x := range r {
				row[j] = x
			}
			out[i] = row
		}
		return out, nil
	case []any:
		out := make([][]any, 0, len(rows))
		for _, r := range rows {
			switch row := r.(type) {
			case []any:
				out = append(out, row)
			case []float64:
				conv := make([]any, len(row))
				for j, x := range row {
					conv[j] = x
				}
				out = append(out, conv)
			default:
				return nil, fmt.Errorf("keypoint: row must be a sequence, got %T", r)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("keypoint: field must be a sequence of rows, got %T", v)
}

func rowFloat(row []any, i int) (float64, error) {
	switch v := row[i].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("keypoint: column %d is %T, want a number", i, row[i])
}

// toInternal converts one row of the declared format. Values past the
// format's columns become labels.
func toInternal(row []any, format string) (Keypoint, error) {
	n, err := formatColumns(format)
	if err != nil {
		return Keypoint{}, err
	}
	if len(row) < n {
		return Keypoint{}, fmt.Errorf("keypoint: row has %d values, format %q needs %d", len(row), format, n)
	}
	c := make([]float64, n)
	for i := range c {
		v, err := rowFloat(row, i)
		if err != nil {
			return Keypoint{}, err
		}
		c[i] = v
	}
	var k Keypoint
	switch format {
	case FormatXY:
		k = Keypoint{X: c[0], Y: c[1]}
	case FormatYX:
		k = Keypoint{X: c[1], Y: c[0]}
	case FormatXYA:
		k = Keypoint{X: c[0], Y: c[1], Angle: c[2]}
	case FormatXYS:
		k = Keypoint{X: c[0], Y: c[1], Scale: c[2]}
	case FormatXYAS:
		k = Keypoint{X: c[0], Y: c[1], Angle: c[2], Scale: c[3]}
	case FormatXYSA:
		k = Keypoint{X: c[0], Y: c[1], Scale: c[2], Angle: c[3]}
	}
	if len(row) > n {
		k.Labels = append(k.Labels, row[n:]...)
	}
	return k, nil
}

func fromInternal(k Keypoint, format string, inline int) []any {
	var c []float64
	switch format {
	case FormatXY:
		c = []float64{k.X, k.Y}
	case FormatYX:
		c = []float64{k.Y, k.X}
	case FormatXYA:
		c = []float64{k.X, k.Y, k.Angle}
	case FormatXYS:
		c = []float64{k.X, k.Y, k.Scale}
	case FormatXYAS:
		c = []float64{k.X, k.Y, k.Angle, k.Scale}
	case FormatXYSA:
		c = []float64{k.X, k.Y, k.Scale, k.Angle}
	}
	row := make([]any, 0, len(c)+inline)
	for _, v := range c {
		row = append(row, v)
	}
	if inline > 0 && len(k.Labels) >= inline {
		row = append(row, k.Labels[:inline]...)
	}
	return row
}
