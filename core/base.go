package core

import (
	"fmt"
	"strings"

	"augpipe/internal/logging"
)

const indentStep = 2

// baseCompose is the shared body of every container: the ordered child
// list, the gating probability, replay flags, alias targets and the
// processors pushed down from the root composition. Selection policy
// lives in the concrete containers.
type baseCompose struct {
	class      string
	id         int
	transforms []Transform
	p          float64

	replayMode      bool
	appliedInReplay bool

	additionalTargets map[string]string
	availableKeys     map[string]struct{}

	// Shared by reference across the whole tree; bound by the root.
	processors map[string]DataProcessor
	checkEach  []DataProcessor
}

func newBaseCompose(class string, transforms []Transform, p float64) baseCompose {
	b := baseCompose{
		class:             class,
		id:                NextNodeID(),
		transforms:        transforms,
		p:                 p,
		additionalTargets: map[string]string{},
		availableKeys:     map[string]struct{}{},
		processors:        map[string]DataProcessor{},
	}
	b.setKeys()
	return b
}

func (b *baseCompose) base() *baseCompose { return b }

// composer is satisfied by every container through embedding; the root
// Compose uses it to push shared configuration into nested containers.
type composer interface {
	Transform
	base() *baseCompose
}

// ID returns the node's arena identity.
func (b *baseCompose) ID() int { return b.id }

// Probability returns the container's gating probability.
func (b *baseCompose) Probability() float64 { return b.p }

// Transforms returns the ordered child list.
func (b *baseCompose) Transforms() []Transform { return b.transforms }

// Len returns the number of children.
func (b *baseCompose) Len() int { return len(b.transforms) }

// Get returns the i-th child.
func (b *baseCompose) Get(i int) Transform { return b.transforms[i] }

// AvailableKeys returns the set of bundle keys the container accepts.
func (b *baseCompose) AvailableKeys() map[string]struct{} { return b.availableKeys }

// AdditionalTargets returns the alias mapping registered on this node.
func (b *baseCompose) AdditionalTargets() map[string]string { return b.additionalTargets }

// AddTargets registers alias names and propagates them to every child and
// every bound processor. Re-registering an existing alias with a
// different canonical target is an error; the same mapping twice is a
// no-op.
func (b *baseCompose) AddTargets(targets map[string]string) error {
	if len(targets) > 0 {
		for k, v := range targets {
			if old, ok := b.additionalTargets[k]; ok && old != v {
				return fmt.Errorf("compose: additional target %q already mapped to %q, refusing %q", k, old, v)
			}
		}
		for k, v := range targets {
			b.additionalTargets[k] = v
		}
		for _, t := range b.transforms {
			if err := t.AddTargets(targets); err != nil {
				return err
			}
		}
		for _, proc := range b.processors {
			proc.AddTargets(targets)
		}
	}
	b.setKeys()
	return nil
}

// setKeys recomputes the available-keys set: alias keys, every child's
// keys and extra sampling keys, plus label and data fields of any bound
// processor.
func (b *baseCompose) setKeys() {
	for k := range b.additionalTargets {
		b.availableKeys[k] = struct{}{}
	}
	for _, t := range b.transforms {
		for k := range t.AvailableKeys() {
			b.availableKeys[k] = struct{}{}
		}
		if src, ok := t.(ExtraKeySource); ok {
			for _, k := range src.TargetsAsParams() {
				b.availableKeys[k] = struct{}{}
			}
		}
	}
	if len(b.processors) > 0 {
		b.availableKeys[KeyLabels] = struct{}{}
		for _, proc := range b.processors {
			if _, ok := b.availableKeys[proc.Kind()]; !ok {
				logging.L().Warn("processor has no transform able to feed it",
					"kind", proc.Kind())
			}
			for _, f := range proc.DataFields() {
				b.availableKeys[f] = struct{}{}
			}
			for _, f := range proc.LabelFields() {
				b.availableKeys[f] = struct{}{}
			}
		}
	}
}

// SetDeterministic propagates parameter recording to every child.
func (b *baseCompose) SetDeterministic(on bool, saveKey string) {
	for _, t := range b.transforms {
		t.SetDeterministic(on, saveKey)
	}
}

// EnterReplay freezes the container for a replayed run. Containers carry
// no parameters of their own; only the applied flag matters.
func (b *baseCompose) EnterReplay(applied bool, _ Params) {
	b.replayMode = true
	b.appliedInReplay = applied
}

// checkDataPostTransform re-filters auxiliary fields against the current
// image bounds; used to drop boxes and keypoints that a child pushed out
// of frame mid-pipeline.
func (b *baseCompose) checkDataPostTransform(data Bundle) (Bundle, error) {
	if len(b.checkEach) == 0 {
		return data, nil
	}
	shape, err := ImageShape(data)
	if err != nil {
		return nil, err
	}
	for _, proc := range b.checkEach {
		fields := map[string]struct{}{}
		for _, f := range proc.DataFields() {
			fields[f] = struct{}{}
		}
		for name := range data {
			canonical := name
			if c, ok := b.additionalTargets[name]; ok {
				canonical = c
			}
			if _, ok := fields[name]; !ok {
				if _, ok := fields[canonical]; !ok {
					continue
				}
			}
			filtered, err := proc.Filter(data[name], shape)
			if err != nil {
				return nil, err
			}
			data[name] = filtered
		}
	}
	return data, nil
}

// definition builds the serialized node for this container, merging any
// subclass-specific constructor arguments.
func (b *baseCompose) definition(extra Args) *Node {
	args := Args{"p": b.p}
	for k, v := range extra {
		args[k] = v
	}
	children := make([]*Node, len(b.transforms))
	for i, t := range b.transforms {
		children[i] = t.Definition()
	}
	return &Node{ClassName: b.class, Args: args, Transforms: children}
}

func (b *baseCompose) definitionWithID(extra Args) *Node {
	args := Args{"p": b.p}
	for k, v := range extra {
		args[k] = v
	}
	children := make([]*Node, len(b.transforms))
	for i, t := range b.transforms {
		children[i] = t.DefinitionWithID()
	}
	return &Node{ClassName: b.class, Args: args, Transforms: children, ID: b.id}
}

// Definition serializes the container structure.
func (b *baseCompose) Definition() *Node { return b.definition(nil) }

// DefinitionWithID serializes the structure keyed by node identity.
func (b *baseCompose) DefinitionWithID() *Node { return b.definitionWithID(nil) }

// IndentedString renders the tree one child per line.
func (b *baseCompose) IndentedString(indent int) string {
	var sb strings.Builder
	sb.WriteString(b.class)
	sb.WriteString("([")
	for _, t := range b.transforms {
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat(" ", indent))
		if is, ok := t.(IndentedStringer); ok {
			sb.WriteString(is.IndentedString(indent + indentStep))
		} else {
			sb.WriteString(fmt.Sprintf("%v", t))
		}
		sb.WriteString(",")
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", indent-indentStep))
	sb.WriteString(fmt.Sprintf("], p=%g)", b.p))
	return sb.String()
}

func (b *baseCompose) String() string { return b.IndentedString(indentStep) }
