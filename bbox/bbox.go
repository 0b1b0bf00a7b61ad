// Package bbox implements bounding-box support for pipelines: format
// conversion, validation and bounds filtering. Boxes travel through the
// pipeline in absolute corner coordinates regardless of the declared
// input format.
package bbox

import (
	"fmt"

	"augpipe/core"
)

// Supported input/output formats.
const (
	FormatPascalVOC      = "pascal_voc"     // x_min, y_min, x_max, y_max in pixels
	FormatCOCO           = "coco"           // x_min, y_min, width, height in pixels
	FormatYOLO           = "yolo"           // x_center, y_center, width, height normalized
	FormatAlbumentations = "albumentations" // x_min, y_min, x_max, y_max normalized
)

// Box is the internal representation: absolute corner coordinates plus
// whatever label values ride along with the box. Labels stay attached
// through filtering so they never fall out of alignment.
type Box struct {
	XMin, YMin, XMax, YMax float64
	Labels                 []any
}

// Width returns the box width, never negative.
func (b Box) Width() float64 {
	if w := b.XMax - b.XMin; w > 0 {
		return w
	}
	return 0
}

// Height returns the box height, never negative.
func (b Box) Height() float64 {
	if h := b.YMax - b.YMin; h > 0 {
		return h
	}
	return 0
}

// Area returns the box area in square pixels.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// Clip returns the box intersected with the image bounds.
func (b Box) Clip(shape core.Shape) Box {
	out := b
	out.XMin = clamp(b.XMin, 0, float64(shape.Width))
	out.XMax = clamp(b.XMax, 0, float64(shape.Width))
	out.YMin = clamp(b.YMin, 0, float64(shape.Height))
	out.YMax = clamp(b.YMax, 0, float64(shape.Height))
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// decodeRows accepts the shapes a bboxes field shows up in: a typed row
// slice, or the []any trees YAML and JSON decoders produce.
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
				return nil, fmt.Errorf("bbox: row must be a sequence, got %T", r)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("bbox: field must be a sequence of rows, got %T", v)
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
	return 0, fmt.Errorf("bbox: coordinate %d is %T, want a number", i, row[i])
}

// toInternal converts one row of the declared format into absolute
// corner coordinates. Values past the four coordinates become labels.
func toInternal(row []any, format string, shape core.Shape) (Box, error) {
	if len(row) < 4 {
		return Box{}, fmt.Errorf("bbox: row has %d values, want at least 4", len(row))
	}
	var c [4]float64
	for i := range c {
		v, err := rowFloat(row, i)
		if err != nil {
			return Box{}, err
		}
		c[i] = v
	}
	w, h := float64(shape.Width), float64(shape.Height)
	var b Box
	switch format {
	case FormatPascalVOC:
		b = Box{XMin: c[0], YMin: c[1], XMax: c[2], YMax: c[3]}
	case FormatCOCO:
		b = Box{XMin: c[0], YMin: c[1], XMax: c[0] + c[2], YMax: c[1] + c[3]}
	case FormatYOLO:
		for i, v := range c {
			if v < 0 || v > 1 {
				return Box{}, fmt.Errorf("bbox: yolo coordinate %d out of [0, 1]: %g", i, v)
			}
		}
		b = Box{
			XMin: (c[0] - c[2]/2) * w,
			YMin: (c[1] - c[3]/2) * h,
			XMax: (c[0] + c[2]/2) * w,
			YMax: (c[1] + c[3]/2) * h,
		}
	case FormatAlbumentations:
		b = Box{XMin: c[0] * w, YMin: c[1] * h, XMax: c[2] * w, YMax: c[3] * h}
	default:
		return Box{}, fmt.Errorf("bbox: unknown format %q", format)
	}
	if b.XMax <= b.XMin {
		return Box{}, fmt.Errorf("bbox: x_max must be greater than x_min, got [%g, %g]", b.XMin, b.XMax)
	}
	if b.YMax <= b.YMin {
		return Box{}, fmt.Errorf("bbox: y_max must be greater than y_min, got [%g, %g]", b.YMin, b.YMax)
	}
	if len(row) > 4 {
		b.Labels = append(b.Labels, row[4:]...)
	}
	return b, nil
}

// fromInternal converts a box back to the declared format. Inline label
// values occupy the front of Labels (zipped label-field values follow
// them) and are re-appended to the row.
func fromInternal(b Box, format string, shape core.Shape, inline int) []any {
	w, h := float64(shape.Width), float64(shape.Height)
	var c [4]float64
	switch format {
	case FormatPascalVOC:
		c = [4]float64{b.XMin, b.YMin, b.XMax, b.YMax}
	case FormatCOCO:
		c = [4]float64{b.XMin, b.YMin, b.XMax - b.XMin, b.YMax - b.YMin}
	case FormatYOLO:
		c = [4]float64{
			(b.XMin + b.XMax) / 2 / w,
			(b.YMin + b.YMax) / 2 / h,
			(b.XMax - b.XMin) / w,
			(b.YMax - b.YMin) / h,
		}
	case FormatAlbumentations:
		c = [4]float64{b.XMin / w, b.YMin / h, b.XMax / w, b.YMax / h}
	}
	row := make([]any, 0, 4+inline)
	for _, v := range c {
		row = append(row, v)
	}
	if inline > 0 && len(b.Labels) >= inline {
		row = append(row, b.Labels[:inline]...)
	}
	return row
}
