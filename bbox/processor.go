package bbox

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"augpipe/core"
	"augpipe/internal/telemetry"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Params configures box handling for a composition. The zero value is
// not usable; construct through NewParams so defaults apply.
type Params struct {
	// Format declares the coordinate convention of the incoming rows.
	Format string `yaml:"format" validate:"required,oneof=pascal_voc coco yolo albumentations"`

	// LabelFields names bundle keys holding per-box labels that must stay
	// aligned with the boxes through filtering.
	LabelFields []string `yaml:"label_fields,omitempty"`

	// MinArea drops boxes whose visible area falls below this many square
	// pixels after a transform.
	MinArea float64 `yaml:"min_area" validate:"gte=0"`

	// MinVisibility drops boxes whose visible fraction of the original
	// area falls below this value.
	MinVisibility float64 `yaml:"min_visibility" validate:"gte=0,lte=1"`

	// CheckEachTransform re-filters boxes after every child transform
	// instead of only once at the end.
	CheckEachTransform bool `yaml:"check_each_transform"`
}

// NewParams returns box params for the given format with filtering after
// every transform and no area or visibility threshold.
func NewParams(format string) *Params {
	return &Params{Format: format, CheckEachTransform: true}
}

// Kind returns the canonical bundle key this configuration governs.
func (p *Params) Kind() string { return core.KeyBBoxes }

// Build validates the configuration and returns a live processor.
func (p *Params) Build() (core.DataProcessor, error) {
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("bbox: invalid params: %w", err)
	}
	return &Processor{
		params: p,
		fields: []string{core.KeyBBoxes},
	}, nil
}

// Definition serializes the configuration.
func (p *Params) Definition() map[string]any {
	return map[string]any{
		"format":               p.Format,
		"label_fields":         p.LabelFields,
		"min_area":             p.MinArea,
		"min_visibility":       p.MinVisibility,
		"check_each_transform": p.CheckEachTransform,
	}
}

func paramsFromArgs(args core.Args) (core.ProcessorParams, error) {
	p := NewParams(args.String("format", ""))
	p.MinArea = args.Float("min_area", 0)
	p.MinVisibility = args.Float("min_visibility", 0)
	p.CheckEachTransform = args.Bool("check_each_transform", true)
	if lf, ok := args["label_fields"]; ok && lf != nil {
		switch v := lf.(type) {
		case []string:
			p.LabelFields = v
		case []any:
			for _, x := range v {
				s, ok := x.(string)
				if !ok {
					return nil, fmt.Errorf("bbox: label_fields entries must be strings, got %T", x)
				}
				p.LabelFields = append(p.LabelFields, s)
			}
		default:
			return nil, fmt.Errorf("bbox: label_fields must be a string list, got %T", lf)
		}
	}
	return p, nil
}

func init() {
	core.RegisterParams(core.KeyBBoxes, paramsFromArgs)
}

// Processor converts boxes to internal corner coordinates on the way in,
// filters them against image bounds, and converts back on the way out.
type Processor struct {
	params *Params
	fields []string
}

func (pr *Processor) Kind() string { return core.KeyBBoxes }

func (pr *Processor) DataFields() []string { return pr.fields }

func (pr *Processor) LabelFields() []string { return pr.params.LabelFields }

func (pr *Processor) CheckEachTransform() bool { return pr.params.CheckEachTransform }

// AddTargets adopts alias fields whose canonical name is bboxes.
func (pr *Processor) AddTargets(targets map[string]string) {
	for name, canonical := range targets {
		if canonical != core.KeyBBoxes {
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

// EnsureDataValid checks that every declared label field is present and
// aligned with its boxes.
func (pr *Processor) EnsureDataValid(data core.Bundle) error {
	for _, lf := range pr.params.LabelFields {
		if _, ok := data[lf]; !ok {
			return fmt.Errorf("bbox: label field %q missing from data", lf)
		}
	}
	return nil
}

// Preprocess converts every box field to the internal representation and
// zips label fields onto the boxes.
func (pr *Processor) Preprocess(data core.Bundle) error {
	shape, err := core.ImageShape(data)
	if err != nil {
		return err
	}
	for _, field := range pr.fields {
		v, ok := data[field]
		if !ok {
			continue
		}
		rows, err := decodeRows(v)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		boxes := make([]Box, len(rows))
		for i, row := range rows {
			b, err := toInternal(row, pr.params.Format, shape)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", field, i, err)
			}
			boxes[i] = b
		}
		for _, lf := range pr.params.LabelFields {
			vals, ok := labelValues(data[lf])
			if !ok {
				return fmt.Errorf("bbox: label field %q must be a sequence", lf)
			}
			if len(vals) != len(boxes) {
				return fmt.Errorf("bbox: label field %q has %d values for %d boxes", lf, len(vals), len(boxes))
			}
			for i := range boxes {
				boxes[i].Labels = append(boxes[i].Labels, vals[i])
			}
		}
		data[field] = boxes
	}
	return nil
}

// Postprocess filters surviving boxes, writes label fields back and
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
		boxes, ok := v.([]Box)
		if !ok {
			return fmt.Errorf("bbox: field %q was not preprocessed", field)
		}
		kept, err := pr.Filter(boxes, shape)
		if err != nil {
			return err
		}
		boxes = kept.([]Box)
		for j, lf := range pr.params.LabelFields {
			vals := make([]any, len(boxes))
			for i, b := range boxes {
				inline := len(b.Labels) - nLabelFields
				vals[i] = b.Labels[inline+j]
			}
			data[lf] = vals
		}
		rows := make([][]any, len(boxes))
		for i, b := range boxes {
			rows[i] = fromInternal(b, pr.params.Format, shape, len(b.Labels)-nLabelFields)
		}
		data[field] = rows
	}
	return nil
}

// Filter clips boxes to the image bounds and drops those that became
// degenerate or fell below the area and visibility thresholds.
func (pr *Processor) Filter(items any, shape core.Shape) (any, error) {
	boxes, ok := items.([]Box)
	if !ok {
		return nil, fmt.Errorf("bbox: cannot filter %T", items)
	}
	out := boxes[:0:0]
	for _, b := range boxes {
		orig := b.Area()
		clipped := b.Clip(shape)
		area := clipped.Area()
		if area <= 0 || area < pr.params.MinArea {
			continue
		}
		if orig > 0 && area/orig < pr.params.MinVisibility {
			continue
		}
		out = append(out, clipped)
	}
	telemetry.AuxiliaryFiltered(core.KeyBBoxes, len(boxes)-len(out))
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
