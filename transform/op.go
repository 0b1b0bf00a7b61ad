// Package transform provides the leaf transform kit: Op implements the
// full Transform capability contract (probability gating, parameter
// sampling, deterministic recording, replay, serialization) once, and
// concrete transforms configure it with per-target functions.
package transform

import (
	"fmt"

	"augpipe/core"
	"augpipe/internal/telemetry"
)

// Func transforms one bundle field's value using the sampled parameters.
type Func func(v any, params core.Params) (any, error)

// Config wires up one transform kind.
type Config struct {
	// Name is the registered class name used for serialization.
	Name string

	// P is the transform's own gating probability.
	P float64

	// Funcs maps canonical target keys (image, mask, masks, bboxes,
	// keypoints, ...) to the function applied to that field. Aliased
	// fields are routed through their canonical name.
	Funcs map[string]Func

	// Sample draws the call's random parameters from the bundle. May be
	// nil for parameterless transforms; the image extent is always added
	// under "rows"/"cols" when an image is present.
	Sample func(data core.Bundle) (core.Params, error)

	// Args supplies extra constructor arguments for serialization; the
	// probability is emitted automatically.
	Args func() core.Args

	// TargetsAsParams lists bundle keys the transform needs as extra
	// sampling context beyond its own targets.
	TargetsAsParams []string
}

// Op is a leaf node of the composition tree.
type Op struct {
	name      string
	p         float64
	id        int
	funcs     map[string]Func
	sample    func(core.Bundle) (core.Params, error)
	argsFn    func() core.Args
	extraKeys []string

	additionalTargets map[string]string

	deterministic bool
	saveKey       string

	replayMode      bool
	appliedInReplay bool
	savedParams     core.Params

	procs map[string]core.DataProcessor
}

// New builds a leaf transform from its configuration.
func New(cfg Config) *Op {
	return &Op{
		name:              cfg.Name,
		p:                 cfg.P,
		id:                core.NextNodeID(),
		funcs:             cfg.Funcs,
		sample:            cfg.Sample,
		argsFn:            cfg.Args,
		extraKeys:         cfg.TargetsAsParams,
		additionalTargets: map[string]string{},
	}
}

// Name returns the transform's registered class name.
func (o *Op) Name() string { return o.name }

// ID returns the node's arena identity.
func (o *Op) ID() int { return o.id }

// Probability returns the transform's own gating probability.
func (o *Op) Probability() float64 { return o.p }

// Apply gates on probability (unless forced), samples parameters,
// records them when deterministic mode is on, and applies. In replay
// mode the transform reproduces its recorded parameters or, if its
// branch never ran, passes the bundle through untouched.
func (o *Op) Apply(data core.Bundle, force bool) (core.Bundle, error) {
	if o.replayMode {
		if o.appliedInReplay {
			return o.ApplyWithParams(data, o.savedParams)
		}
		return data, nil
	}
	if !force && core.RandFloat() >= o.p {
		return data, nil
	}
	params, err := o.sampleParams(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.name, err)
	}
	if o.deterministic {
		if rec, ok := data[o.saveKey].(*core.Record); ok {
			rec.Put(o.id, params)
		}
	}
	return o.ApplyWithParams(data, params)
}

func (o *Op) sampleParams(data core.Bundle) (core.Params, error) {
	params := core.Params{}
	if o.sample != nil {
		p, err := o.sample(data)
		if err != nil {
			return nil, err
		}
		for k, v := range p {
			params[k] = v
		}
	}
	if shape, err := core.ImageShape(data); err == nil {
		params["rows"] = shape.Height
		params["cols"] = shape.Width
	}
	return params, nil
}

// ApplyWithParams applies the transform with an explicit parameter
// record instead of sampling.
func (o *Op) ApplyWithParams(data core.Bundle, params core.Params) (core.Bundle, error) {
	for name, v := range data {
		canonical := name
		if c, ok := o.additionalTargets[name]; ok {
			canonical = c
		}
		fn, ok := o.funcs[canonical]
		if !ok {
			continue
		}
		out, err := fn(v, params)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", o.name, name, err)
		}
		data[name] = out
	}
	telemetry.TransformApplied(o.name)
	return data, nil
}

// SetDeterministic toggles parameter recording under saveKey.
func (o *Op) SetDeterministic(on bool, saveKey string) {
	o.deterministic = on
	o.saveKey = saveKey
}

// EnterReplay freezes the transform for a replayed run.
func (o *Op) EnterReplay(applied bool, params core.Params) {
	o.replayMode = true
	o.appliedInReplay = applied
	o.savedParams = params
}

// AddTargets registers alias field names routed to this transform's
// canonical targets.
func (o *Op) AddTargets(targets map[string]string) error {
	for k, v := range targets {
		o.additionalTargets[k] = v
	}
	return nil
}

// AvailableKeys returns the transform's targets plus registered aliases.
func (o *Op) AvailableKeys() map[string]struct{} {
	keys := make(map[string]struct{}, len(o.funcs)+len(o.additionalTargets))
	for k := range o.funcs {
		keys[k] = struct{}{}
	}
	for k := range o.additionalTargets {
		keys[k] = struct{}{}
	}
	return keys
}

// TargetsAsParams lists extra sampling-context keys.
func (o *Op) TargetsAsParams() []string { return o.extraKeys }

// SetProcessors hands the transform the composition's shared auxiliary
// processors.
func (o *Op) SetProcessors(procs map[string]core.DataProcessor) { o.procs = procs }

func (o *Op) args() core.Args {
	args := core.Args{"p": o.p}
	if o.argsFn != nil {
		for k, v := range o.argsFn() {
			args[k] = v
		}
	}
	return args
}

// Definition serializes the transform.
func (o *Op) Definition() *core.Node {
	return &core.Node{ClassName: o.name, Args: o.args()}
}

// DefinitionWithID is the replay form of Definition.
func (o *Op) DefinitionWithID() *core.Node {
	return &core.Node{ClassName: o.name, Args: o.args(), ID: o.id}
}

// IndentedString renders the leaf on one line.
func (o *Op) IndentedString(int) string { return o.String() }

func (o *Op) String() string { return fmt.Sprintf("%s(p=%g)", o.name, o.p) }
