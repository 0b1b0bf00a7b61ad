package keypoint

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"augpipe/core"
	"augpipe/internal/telemetry"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Params configures keypoint handling for a composition. Construct
// through NewParams so defaults apply.
type Params struct {
	// Format declares the column order of the incoming rows.
	Format string `yaml:"format" validate:"required,oneof=xy yx xya xys xyas xysa"`

	// LabelFields names bundle keys holding per-point labels that must
	// stay aligned with the points through filtering.
	LabelFields []string `yaml:"label_fields,omitempty"`

	// RemoveInvisible drops points that land outside the image.
	RemoveInvisible bool `yaml:"remove_invisible"`

	// CheckEachTransform re-filters points after every child transform
	// instead of only once at the end.
	CheckEachTransform bool `yaml:"check_each_transform"`
}

// NewParams returns keypoint params for the given format that drop
// out-of-bounds points and filter after every transform.
func NewParams(format string) *Params {
	return &Params{Format: format, RemoveInvisible: true, CheckEachTransform: true}
}

// Kind returns the canonical bundle key this configuration governs.
func (p *Params) Kind() string { return core.KeyKeypoints }

// Build validates the configuration and returns a live processor.
func (p *Params) Build() (core.DataProcessor, error) {
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("keypoint: invalid params: %w", err)
	}
	return &Processor{
		params: p,
		fields: []string{core.KeyKeypoints},
	}, nil
}

// Definition serializes the configuration.
func (p *Params) Definition() map[string]any {
	return map[string]any{
		"format":               p.Format,
		"label_fields":         p.LabelFields,
		"remove_invisible":     p.RemoveInvisible,
		"check_each_transform": p.CheckEachTransform,
	}
}

func paramsFromArgs(args core.Args) (core.ProcessorParams, error) {
	p := NewParams(args.String("format", ""))
	p.RemoveInvisible = args.Bool("remove_invisible", true)
	p.CheckEachTransform = args.Bool("check_each_transform", true)
	if lf, ok := args["label_fields"]; ok && lf != nil {
		switch v := lf.(type) {
		case []string:
			p.LabelFields = v
		case []any:
			for _, x := range v {
				s, ok := x.(string)
				if !ok {
					return nil, fmt.Errorf("keypoint: label_fields entries must be strings, got %T", x)
				}
				p.LabelFields = append(p.LabelFields, s)
			}
		default:
			return nil, fmt.Errorf("keypoint: label_fields must be a string list, got %T", lf)
		}
	}
	return p, nil
}

func init() {
	core.RegisterParams(core.KeyKeypoints, paramsFromArgs)
}

// Processor converts keypoints to the internal representation on the way
// in, filters them against image bounds, and converts back on the way
// out.
type Processor struct {
	params *Params
	fields []string
}

func (pr *Processor) Kind() string { return core.KeyKeypoints }

func (pr *Processor) DataFields() []string { return pr.fields }

func (pr *Processor) LabelFields() []string { return pr.params.LabelFields }

func (pr *Processor) CheckEachTransform() bool { return pr.params.CheckEachTransform }

// AddTargets adopts alias fields whose canonical name is keypoints.
func (pr *Processor) AddTargets(targets map[string]string) {
	for name, canonical := range targets {
		if canonical != core.KeyKeypoints {
			continue
		}
		seen := false
		for _, f := range pr.fields {
			if f == name {
				seen = true
				break
			}
		}
		if !seen {
			pr.fields = append(pr.fields, name)
		}
	}
}

func (pr *Processor) EnsureTransformsValid([]core.Transform) error { return nil }

// EnsureDataValid checks that every declared label field is present.
func (pr *Processor) EnsureDataValid(data core.Bundle) error {
	for _, lf := range pr.params.LabelFields {
		if _, ok := data[lf]; !ok {
			return fmt.Errorf("keypoint: label field %q missing from data", lf)
		}
	}
	return nil
}

// Preprocess converts every keypoint field to the internal representation
// and zips label fields onto the points.
func (pr *Processor) Preprocess(data core.Bundle) error {
	for _, field := range pr.fields {
		v, ok := data[field]
		if !ok {
			continue
		}
		rows, err := decodeRows(v)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		points := make([]Keypoint, len(rows))
		for i, row := range rows {
			k, err := toInternal(row, pr.params.Format)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", field, i, err)
			}
			points[i] = k
		}
		for _, lf := range pr.params.LabelFields {
			vals, ok := labelValues(data[lf])
			if !ok {
				return fmt.Errorf("keypoint: label field %q must be a sequence", lf)
			}
			if len(vals) != len(points) {
				return fmt.Errorf("keypoint: label field %q has %d values for %d points", lf, len(vals), len(points))
			}
			for i := range points {
				points[i].Labels = append(points[i].Labels, vals[i])
			}
		}
		data[field] = points
	}
	return nil
}

// Postprocess filters surviving points, writes label fields back and
// converts rows to the declared format.
func (pr *Processor) Postprocess(data core.Bundle) error {
	shape, err := core.ImageShape(data)
	if err != nil {
		return err
	}
	nLabelFields := len(pr.params.LabelFields)
	for _, field := range pr.fields {
		v, ok := data[field]
		if !ok {
			continue
		}
		points, ok := v.([]Keypoint)
		if !ok {
			return fmt.Errorf("keypoint: field %q was not preprocessed", field)
		}
		kept, err := pr.Filter(points, shape)
		if err != nil {
			return err
		}
		points = kept.([]Keypoint)
		for j, lf := range pr.params.LabelFields {
			vals := make([]any, len(points))
			for i, k := range points {
				inline := len(k.Labels) - nLabelFields
				vals[i] = k.Labels[inline+j]
			}
			data[lf] = vals
		}
		rows := make([][]any, len(points))
		for i, k := range points {
			rows[i] = fromInternal(k, pr.params.Format, len(k.Labels)-nLabelFields)
		}
		data[field] = rows
	}
	return nil
}

// Filter drops points that fell outside the image bounds. With
// RemoveInvisible off it returns the points unchanged.
func (pr *Processor) Filter(items any, shape core.Shape) (any, error) {
	points, ok := items.([]Keypoint)
	if !ok {
		return nil, fmt.Errorf("keypoint: cannot filter %T", items)
	}
	if !pr.params.RemoveInvisible {
		return points, nil
	}
	out := points[:0:0]
	for _, k := range points {
		if k.InBounds(shape) {
			out = append(out, k)
		}
	}
	telemetry.AuxiliaryFiltered(core.KeyKeypoints, len(points)-len(out))
	return out, nil
}

func labelValues(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	}
	return nil, false
}
