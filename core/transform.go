package core

import "sync/atomic"

// Transform is a node in the composition tree: a leaf transform or a
// nested container. Identity is per-node and stable for the process run;
// two structurally identical transforms are still distinct nodes.
type Transform interface {
	// ID is the node handle used for replay bookkeeping. Assigned once at
	// construction from a process-wide arena counter.
	ID() int

	// Probability is the node's own gating probability in [0, 1].
	Probability() float64

	// Apply runs the node on the bundle. force bypasses the node's own
	// probability gate (the parent's selection policy already chose it).
	Apply(data Bundle, force bool) (Bundle, error)

	// SetDeterministic makes every leaf below record its sampled
	// parameters into the bundle entry named saveKey.
	SetDeterministic(on bool, saveKey string)

	// AddTargets registers alias field names (new name → canonical name)
	// on this node and everything below it.
	AddTargets(targets map[string]string) error

	// AvailableKeys is the set of bundle keys this node understands.
	AvailableKeys() map[string]struct{}

	// Definition serializes the node: class name, constructor arguments,
	// recursively serialized children.
	Definition() *Node

	// DefinitionWithID is the replay form: the same tree keyed by runtime
	// node identity, to be filled with recorded parameters after a call.
	DefinitionWithID() *Node
}

// ParamsApplier is implemented by leaf transforms that can re-run with an
// explicit parameter record instead of sampling fresh randomness.
type ParamsApplier interface {
	ApplyWithParams(data Bundle, params Params) (Bundle, error)
}

// ReplayAware is implemented by nodes that can be frozen into replay
// mode: the node reproduces its recorded effect (params non-nil and
// applied true) or becomes a no-op.
type ReplayAware interface {
	EnterReplay(applied bool, params Params)
}

// ProcessorAware transforms receive the composition's shared auxiliary
// processors when they are wired into a root Compose.
type ProcessorAware interface {
	SetProcessors(procs map[string]DataProcessor)
}

// ExtraKeySource transforms declare bundle keys they need as extra
// sampling context beyond their own targets.
type ExtraKeySource interface {
	TargetsAsParams() []string
}

// IndentedStringer produces the multi-line textual form used when
// printing nested pipelines.
type IndentedStringer interface {
	IndentedString(indent int) string
}

var nodeCounter atomic.Int64

// NextNodeID hands out arena-style node identities: monotonically
// increasing, unique per process run, reproducible across platforms in a
// way memory addresses are not.
func NextNodeID() int { return int(nodeCounter.Add(1)) }
