package core

import (
	"errors"
	"fmt"
)

// DefaultSaveKey is where a return-params Compose stores its record.
const DefaultSaveKey = "applied_params"

// ErrNoRecordedParams is returned by RunWithParams on a Compose that was
// not built with WithReturnParams.
var ErrNoRecordedParams = errors.New("compose: RunWithParams requires a Compose built with WithReturnParams")

type composeConfig struct {
	params       []ProcessorParams
	processors   []DataProcessor
	targets      map[string]string
	p            float64
	checkShapes  bool
	strict       bool
	returnParams bool
	saveKey      string
}

// ComposeOption configures a Compose or ReplayCompose.
type ComposeOption func(*composeConfig)

// WithProcessorParams binds an auxiliary processor configuration (box or
// keypoint params) that the composition builds and owns.
func WithProcessorParams(p ProcessorParams) ComposeOption {
	return func(c *composeConfig) { c.params = append(c.params, p) }
}

// WithProcessor binds an already built auxiliary processor.
func WithProcessor(p DataProcessor) ComposeOption {
	return func(c *composeConfig) { c.processors = append(c.processors, p) }
}

// WithTargets registers alias field names (new name → canonical name).
func WithTargets(targets map[string]string) ComposeOption {
	return func(c *composeConfig) { c.targets = targets }
}

// WithProbability sets the gating probability. Default 1.
func WithProbability(p float64) ComposeOption {
	return func(c *composeConfig) { c.p = p }
}

// WithShapeCheck toggles the height/width consistency check across image,
// mask and masks fields. Default on.
func WithShapeCheck(on bool) ComposeOption {
	return func(c *composeConfig) { c.checkShapes = on }
}

// WithStrict toggles rejection of unknown bundle keys. Default on; the
// flag is force-disabled on nested compositions.
func WithStrict(on bool) ComposeOption {
	return func(c *composeConfig) { c.strict = on }
}

// WithReturnParams makes the composition record each applied transform's
// sampled parameters into the returned bundle under the save key.
func WithReturnParams() ComposeOption {
	return func(c *composeConfig) { c.returnParams = true }
}

// WithSaveKey overrides the bundle key the parameter record is stored
// under.
func WithSaveKey(key string) ComposeOption {
	return func(c *composeConfig) { c.saveKey = key }
}

// Compose is the root orchestrating container. It owns the auxiliary
// processors, validates the bundle, wraps the child sequence with
// auxiliary pre/postprocessing, and can record per-transform parameters
// for later replay. Only the outermost Compose in a tree performs
// bundle-level validation; nested ones are pure orchestration.
type Compose struct {
	baseCompose

	paramsByKind map[string]ProcessorParams

	isCheckArgs   bool
	strict        bool
	isCheckShapes bool
	mainCompose   bool

	returnParams bool
	saveKey      string
	byID         map[int]ParamsApplier
}

// NewCompose builds a root composition over the given children.
func NewCompose(transforms []Transform, opts ...ComposeOption) (*Compose, error) {
	return newCompose("Compose", transforms, opts...)
}

func newCompose(class string, transforms []Transform, opts ...ComposeOption) (*Compose, error) {
	cfg := composeConfig{p: 1, checkShapes: true, strict: true, saveKey: DefaultSaveKey}
	for _, o := range opts {
		o(&cfg)
	}

	c := &Compose{
		baseCompose:   newBaseCompose(class, transforms, cfg.p),
		paramsByKind:  map[string]ProcessorParams{},
		isCheckArgs:   true,
		strict:        cfg.strict,
		isCheckShapes: cfg.checkShapes,
		mainCompose:   true,
		returnParams:  cfg.returnParams,
		saveKey:       cfg.saveKey,
	}

	for _, pp := range cfg.params {
		proc, err := pp.Build()
		if err != nil {
			return nil, fmt.Errorf("compose: build %s processor: %w", pp.Kind(), err)
		}
		if err := c.bindProcessor(proc); err != nil {
			return nil, err
		}
		c.paramsByKind[pp.Kind()] = pp
	}
	for _, proc := range cfg.processors {
		if err := c.bindProcessor(proc); err != nil {
			return nil, err
		}
	}

	for _, proc := range c.processors {
		if err := proc.EnsureTransformsValid(c.transforms); err != nil {
			return nil, err
		}
	}

	if err := c.AddTargets(cfg.targets); err != nil {
		return nil, err
	}
	if len(c.transforms) == 0 {
		// No children: accept every canonical key as pass-through.
		for _, k := range canonicalKeys {
			c.availableKeys[k] = struct{}{}
		}
	}

	for _, proc := range c.processors {
		if proc.CheckEachTransform() {
			c.checkEach = append(c.checkEach, proc)
		}
	}
	c.bindChildren(c.transforms)

	if c.returnParams {
		c.availableKeys[c.saveKey] = struct{}{}
		c.byID = map[int]ParamsApplier{}
		collectLeaves(c.transforms, c.byID)
		c.SetDeterministic(true, c.saveKey)
	}
	return c, nil
}

// bindProcessor enforces at most one processor per auxiliary kind.
func (c *Compose) bindProcessor(proc DataProcessor) error {
	if _, ok := c.processors[proc.Kind()]; ok {
		return fmt.Errorf("compose: duplicate processor for kind %q", proc.Kind())
	}
	c.processors[proc.Kind()] = proc
	return nil
}

// bindChildren pushes the shared processor set into every nested
// container, disables bundle-level validation on nested Composes, and
// hands processors to any leaf that wants them.
func (c *Compose) bindChildren(transforms []Transform) {
	for _, t := range transforms {
		if cc, ok := t.(composer); ok {
			cb := cc.base()
			cb.processors = c.processors
			cb.checkEach = c.checkEach
			if nested, ok := t.(interface{ disableCheckArgs() }); ok {
				nested.disableCheckArgs()
			}
			c.bindChildren(cb.transforms)
			continue
		}
		if pa, ok := t.(ProcessorAware); ok {
			pa.SetProcessors(c.processors)
		}
	}
}

func (c *Compose) disableCheckArgs() {
	c.isCheckArgs = false
	c.strict = false
	c.mainCompose = false
}

func collectLeaves(transforms []Transform, out map[int]ParamsApplier) {
	for _, t := range transforms {
		if cc, ok := t.(composer); ok {
			collectLeaves(cc.base().transforms, out)
			continue
		}
		if pa, ok := t.(ParamsApplier); ok {
			out[t.ID()] = pa
		}
	}
}

// Apply runs the composition on the bundle. An un-gated call returns the
// bundle unchanged (the record container, when configured, is still
// injected first so the save key is always present).
func (c *Compose) Apply(data Bundle, force bool) (Bundle, error) {
	if c.returnParams && c.mainCompose {
		data[c.saveKey] = NewRecord()
	}
	if !force && RandFloat() >= c.p {
		return data, nil
	}
	if err := c.preprocess(data); err != nil {
		return nil, err
	}
	for _, t := range c.transforms {
		var err error
		data, err = t.Apply(data, false)
		if err != nil {
			return nil, err
		}
		data, err = c.checkDataPostTransform(data)
		if err != nil {
			return nil, err
		}
	}
	return c.postprocess(data)
}

// RunWithParams replays a previously recorded parameter map: each
// recorded transform re-applies its exact parameters, in record order,
// with the same post-transform checks and pre/postprocess wrapping.
func (c *Compose) RunWithParams(data Bundle, rec *Record) (Bundle, error) {
	if !c.returnParams {
		return nil, ErrNoRecordedParams
	}
	if err := c.preprocess(data); err != nil {
		return nil, err
	}
	for _, id := range rec.Order() {
		t, ok := c.byID[id]
		if !ok {
			return nil, fmt.Errorf("compose: recorded params for unknown node %d", id)
		}
		params, _ := rec.Get(id)
		var err error
		data, err = t.ApplyWithParams(data, params)
		if err != nil {
			return nil, err
		}
		data, err = c.checkDataPostTransform(data)
		if err != nil {
			return nil, err
		}
	}
	return c.postprocess(data)
}

func (c *Compose) preprocess(data Bundle) error {
	if c.strict {
		for k := range data {
			if _, ok := c.availableKeys[k]; ok {
				continue
			}
			if _, ok := maskKeys[k]; ok {
				continue
			}
			if _, ok := imageKeys[k]; ok {
				continue
			}
			return fmt.Errorf("compose: key %q is not in available keys (strict mode)", k)
		}
	}
	if c.isCheckArgs {
		if err := c.checkArgs(data); err != nil {
			return err
		}
	}
	if c.mainCompose {
		for _, proc := range c.processors {
			if err := proc.EnsureDataValid(data); err != nil {
				return err
			}
		}
		for _, proc := range c.processors {
			if err := proc.Preprocess(data); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Compose) postprocess(data Bundle) (Bundle, error) {
	if c.mainCompose {
		for _, proc := range c.processors {
			if err := proc.Postprocess(data); err != nil {
				return nil, err
			}
		}
	}
	return data, nil
}

func (c *Compose) composeArgs() Args {
	args := Args{
		"bbox_params":        nil,
		"keypoint_params":    nil,
		"additional_targets": c.additionalTargets,
		"is_check_shapes":    c.isCheckShapes,
		"strict":             c.strict,
	}
	if pp, ok := c.paramsByKind[KeyBBoxes]; ok {
		args["bbox_params"] = pp.Definition()
	}
	if pp, ok := c.paramsByKind[KeyKeypoints]; ok {
		args["keypoint_params"] = pp.Definition()
	}
	return args
}

// Definition serializes the composition, including processor configs.
func (c *Compose) Definition() *Node { return c.definition(c.composeArgs()) }

// DefinitionWithID is the replay form of Definition.
func (c *Compose) DefinitionWithID() *Node { return c.definitionWithID(c.composeArgs()) }

func composeOptionsFromArgs(args Args) ([]ComposeOption, error) {
	opts := []ComposeOption{
		WithProbability(args.Float("p", 1)),
		WithShapeCheck(args.Bool("is_check_shapes", true)),
		WithStrict(args.Bool("strict", true)),
	}
	if m := args.Map("bbox_params"); m != nil {
		pp, err := buildProcessorParams(KeyBBoxes, m)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithProcessorParams(pp))
	}
	if m := args.Map("keypoint_params"); m != nil {
		pp, err := buildProcessorParams(KeyKeypoints, m)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithProcessorParams(pp))
	}
	if t := args.StringMap("additional_targets"); len(t) > 0 {
		opts = append(opts, WithTargets(t))
	}
	return opts, nil
}

func init() {
	Register("Compose", func(args Args, children []Transform) (Transform, error) {
		opts, err := composeOptionsFromArgs(args)
		if err != nil {
			return nil, err
		}
		return NewCompose(children, opts...)
	})
}
