package core

import "fmt"

// DataProcessor validates and filters one auxiliary data kind (boxes or
// keypoints) against image bounds and a set of label fields. Exactly one
// processor per kind may be bound to a root composition; the whole tree
// shares it by reference.
type DataProcessor interface {
	// Kind is the canonical bundle key this processor owns, e.g. "bboxes".
	Kind() string

	// DataFields lists every bundle key the processor filters, including
	// aliases registered through AddTargets.
	DataFields() []string

	// LabelFields lists the bundle keys carrying per-item labels that must
	// stay index-aligned with the filtered data.
	LabelFields() []string

	// CheckEachTransform reports whether the data should be re-filtered
	// after every child transform, not only at postprocess time.
	CheckEachTransform() bool

	AddTargets(targets map[string]string)

	// EnsureTransformsValid rejects processor configurations that cannot
	// work with the given child transforms.
	EnsureTransformsValid(transforms []Transform) error

	// EnsureDataValid rejects bundles whose auxiliary fields are malformed
	// before any transform runs.
	EnsureDataValid(data Bundle) error

	Preprocess(data Bundle) error
	Postprocess(data Bundle) error

	// Filter drops items that fell outside the given image bounds and
	// returns the surviving slice.
	Filter(items any, shape Shape) (any, error)
}

// ProcessorParams is a processor configuration that a Compose can build
// into a live DataProcessor. Params objects are serializable so pipelines
// carrying them can be persisted and restored.
type ProcessorParams interface {
	Kind() string
	Build() (DataProcessor, error)
	Definition() map[string]any
}

// ParamsFactory rebuilds a ProcessorParams from its serialized arguments.
type ParamsFactory func(args Args) (ProcessorParams, error)

var paramsRegistry = map[string]ParamsFactory{}

// RegisterParams is called from each processor package's init to make its
// params constructible by kind during pipeline restoration.
func RegisterParams(kind string, f ParamsFactory) {
	paramsRegistry[kind] = f
}

func buildProcessorParams(kind string, args Args) (ProcessorParams, error) {
	f, ok := paramsRegistry[kind]
	if !ok {
		return nil, fmt.Errorf("core: no processor params registered for kind %q", kind)
	}
	return f(args)
}
