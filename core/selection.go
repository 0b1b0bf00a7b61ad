package core

import (
	"sort"

	"augpipe/internal/logging"
)

// OneOf draws exactly one child per gated call. Child probabilities are
// normalized into a discrete distribution and act as weights; the chosen
// child runs with forced application.
type OneOf struct {
	baseCompose
	weights []float64
}

// NewOneOf builds a one-of selector with gating probability p.
func NewOneOf(transforms []Transform, p float64) *OneOf {
	return &OneOf{
		baseCompose: newBaseCompose("OneOf", transforms, p),
		weights:     normalizeWeights(transforms),
	}
}

// Weights returns the normalized selection distribution.
func (o *OneOf) Weights() []float64 { return o.weights }

// Apply draws one child by weight. In replay mode every child is invoked
// once in order instead: leaves restored without recorded parameters are
// no-ops, so only the originally selected branch reproduces its effect.
func (o *OneOf) Apply(data Bundle, force bool) (Bundle, error) {
	if o.replayMode {
		return applyAll(o.transforms, data)
	}
	if len(o.weights) > 0 && (force || RandFloat() < o.p) {
		return o.transforms[sampleOne(o.weights)].Apply(data, true)
	}
	return data, nil
}

// SomeOf draws n children by weight, with or without replacement, and
// applies them in their original container order.
type SomeOf struct {
	baseCompose
	n       int
	replace bool
	sorted  bool
	weights []float64
}

// NewSomeOf builds an n-of selector. With replace=false an n larger than
// the child count is clamped with a warning.
func NewSomeOf(transforms []Transform, n int, replace bool, p float64) *SomeOf {
	return newSomeOf("SomeOf", transforms, n, replace, p, true)
}

func newSomeOf(class string, transforms []Transform, n int, replace bool, p float64, sorted bool) *SomeOf {
	s := &SomeOf{
		baseCompose: newBaseCompose(class, transforms, p),
		n:           n,
		replace:     replace,
		sorted:      sorted,
		weights:     normalizeWeights(transforms),
	}
	if !replace && n > len(transforms) {
		s.n = len(transforms)
		logging.L().Warn("n is greater than the number of transforms, clamping",
			"requested", n, "using", s.n)
	}
	return s
}

// Apply draws the children and runs each with forced application,
// re-filtering auxiliary data after every one. Replay mode runs every
// child in original order (unrecorded leaves no-op).
func (s *SomeOf) Apply(data Bundle, force bool) (Bundle, error) {
	if s.replayMode {
		return applyAllChecked(&s.baseCompose, data)
	}
	if len(s.weights) > 0 && (force || RandFloat() < s.p) {
		for _, i := range s.draw() {
			var err error
			data, err = s.transforms[i].Apply(data, true)
			if err != nil {
				return nil, err
			}
			data, err = s.checkDataPostTransform(data)
			if err != nil {
				return nil, err
			}
		}
	}
	return data, nil
}

func (s *SomeOf) draw() []int {
	idx := sampleIndices(s.weights, s.n, s.replace)
	if s.sorted {
		sort.Ints(idx)
	}
	return idx
}

func (s *SomeOf) someOfArgs() Args { return Args{"n": s.n, "replace": s.replace} }

// Definition serializes the selector including n and replace.
func (s *SomeOf) Definition() *Node { return s.definition(s.someOfArgs()) }

// DefinitionWithID is the replay form of Definition.
func (s *SomeOf) DefinitionWithID() *Node { return s.definitionWithID(s.someOfArgs()) }

// RandomOrder is SomeOf without the re-sort: selected children run in the
// sampled order. Defaults to drawing without replacement. The sampled
// order itself is not replayed.
type RandomOrder struct {
	SomeOf
}

// NewRandomOrder builds a shuffled n-of selector.
func NewRandomOrder(transforms []Transform, n int, replace bool, p float64) *RandomOrder {
	return &RandomOrder{SomeOf: *newSomeOf("RandomOrder", transforms, n, replace, p, false)}
}

// OneOrOther runs its first child with probability p, otherwise its
// second; the chosen child is force-applied. Built for exactly two
// children; any other count only warns.
type OneOrOther struct {
	baseCompose
}

// NewOneOrOther builds the two-way selector from explicit children.
func NewOneOrOther(first, second Transform, p float64) *OneOrOther {
	return NewOneOrOtherTransforms([]Transform{first, second}, p)
}

// NewOneOrOtherTransforms builds the selector from a child list.
func NewOneOrOtherTransforms(transforms []Transform, p float64) *OneOrOther {
	if len(transforms) != 2 {
		logging.L().Warn("OneOrOther expects exactly two transforms", "got", len(transforms))
	}
	return &OneOrOther{baseCompose: newBaseCompose("OneOrOther", transforms, p)}
}

// Apply flips one coin: probability p runs the first child, otherwise the
// last. Replay mode runs both in order.
func (o *OneOrOther) Apply(data Bundle, force bool) (Bundle, error) {
	if o.replayMode {
		return applyAll(o.transforms, data)
	}
	if len(o.transforms) == 0 {
		return data, nil
	}
	if RandFloat() < o.p {
		return o.transforms[0].Apply(data, true)
	}
	return o.transforms[len(o.transforms)-1].Apply(data, true)
}

func applyAll(transforms []Transform, data Bundle) (Bundle, error) {
	for _, t := range transforms {
		var err error
		data, err = t.Apply(data, false)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func applyAllChecked(b *baseCompose, data Bundle) (Bundle, error) {
	for _, t := range b.transforms {
		var err error
		data, err = t.Apply(data, false)
		if err != nil {
			return nil, err
		}
		data, err = b.checkDataPostTransform(data)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func init() {
	Register("OneOf", func(args Args, children []Transform) (Transform, error) {
		return NewOneOf(children, args.Float("p", 0.5)), nil
	})
	Register("SomeOf", func(args Args, children []Transform) (Transform, error) {
		return NewSomeOf(children, args.Int("n", 1), args.Bool("replace", true), args.Float("p", 1)), nil
	})
	Register("RandomOrder", func(args Args, children []Transform) (Transform, error) {
		return NewRandomOrder(children, args.Int("n", 1), args.Bool("replace", false), args.Float("p", 1)), nil
	})
	Register("OneOrOther", func(args Args, children []Transform) (Transform, error) {
		return NewOneOrOtherTransforms(children, args.Float("p", 0.5)), nil
	})
}
