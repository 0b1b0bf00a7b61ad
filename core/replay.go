package core

import "fmt"

// ReplaySaveKey is where a ReplayCompose stores its filled tree.
const ReplaySaveKey = "replay"

// Record is the per-call sampled-parameter map: node identity to the
// concrete parameters that node sampled, kept in call order of first use.
type Record struct {
	order  []int
	params map[int]Params
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{params: map[int]Params{}}
}

// Put stores params for a node, keeping first-use order.
func (r *Record) Put(id int, p Params) {
	if _, ok := r.params[id]; !ok {
		r.order = append(r.order, id)
	}
	r.params[id] = p
}

// Get returns the params recorded for a node.
func (r *Record) Get(id int) (Params, bool) {
	p, ok := r.params[id]
	return p, ok
}

// Order returns node ids in the order they first recorded.
func (r *Record) Order() []int { return r.order }

// Len returns the number of recorded nodes.
func (r *Record) Len() int { return len(r.order) }

// ReplayCompose is a Compose that captures full structural and parameter
// state per call. The returned bundle carries, under the save key, a
// serialized tree in which every node holds the parameters it sampled and
// whether its branch actually ran; Replay rebuilds a frozen pipeline from
// that tree and reproduces the run bit for bit.
type ReplayCompose struct {
	Compose
}

// NewReplayCompose builds a recording composition. Deterministic
// recording is always on, under the "replay" save key unless overridden
// with WithSaveKey.
func NewReplayCompose(transforms []Transform, opts ...ComposeOption) (*ReplayCompose, error) {
	c, err := newCompose("ReplayCompose", transforms, append([]ComposeOption{WithSaveKey(ReplaySaveKey)}, opts...)...)
	if err != nil {
		return nil, err
	}
	rc := &ReplayCompose{Compose: *c}
	rc.SetDeterministic(true, rc.saveKey)
	rc.availableKeys[rc.saveKey] = struct{}{}
	return rc, nil
}

// Apply runs the composition and replaces the save-key field with the
// filled structural tree: recorded parameters per node plus a bottom-up
// applied flag.
func (rc *ReplayCompose) Apply(data Bundle, force bool) (Bundle, error) {
	rec := NewRecord()
	data[rc.saveKey] = rec
	result, err := rc.Compose.Apply(data, force)
	if err != nil {
		return nil, err
	}
	tree := rc.DefinitionWithID()
	fillParams(tree, rec)
	fillApplied(tree)
	result[rc.saveKey] = tree
	return result, nil
}

// Replay reconstructs the pipeline recorded in tree and applies it to
// data with forced application, reproducing the original outputs for
// every leaf that recorded parameters.
func Replay(tree *Node, data Bundle) (Bundle, error) {
	return ReplayWith(tree, data, nil)
}

// ReplayWith is Replay for pipelines containing non-serializable
// transforms: lambdas maps each such transform's registered name to a
// live instance.
func ReplayWith(tree *Node, data Bundle, lambdas map[string]Transform) (Bundle, error) {
	t, err := restoreForReplay(tree, lambdas)
	if err != nil {
		return nil, err
	}
	return t.Apply(data, true)
}

func restoreForReplay(n *Node, lambdas map[string]Transform) (Transform, error) {
	var t Transform
	if name, ok := instantiateNonSerializable(n); ok {
		lt, found := lambdas[name]
		if !found {
			return nil, fmt.Errorf("core: replay needs a transform for lambda %q", name)
		}
		t = lt
	} else {
		f, ok := registry[n.ClassName]
		if !ok {
			return nil, fmt.Errorf("core: unknown transform class %q", n.ClassName)
		}
		children := make([]Transform, len(n.Transforms))
		for i, c := range n.Transforms {
			ct, err := restoreForReplay(c, lambdas)
			if err != nil {
				return nil, err
			}
			children[i] = ct
		}
		var err error
		t, err = f(n.Args, children)
		if err != nil {
			return nil, err
		}
	}
	ra, ok := t.(ReplayAware)
	if !ok {
		return nil, fmt.Errorf("core: %q cannot be frozen for replay", n.ClassName)
	}
	applied := n.Applied != nil && *n.Applied
	ra.EnterReplay(applied, n.Params)
	return t, nil
}

// instantiateNonSerializable reports whether the node names a
// user-supplied callable that must be looked up rather than built.
func instantiateNonSerializable(n *Node) (string, bool) {
	if n.ClassName != "Lambda" {
		return "", false
	}
	return n.Args.String("name", ""), true
}

// fillParams moves recorded parameters into the identity-addressed tree
// and strips the runtime ids.
func fillParams(n *Node, rec *Record) {
	if p, ok := rec.Get(n.ID); ok {
		n.Params = p
	}
	n.ID = 0
	for _, c := range n.Transforms {
		fillParams(c, rec)
	}
}

// fillApplied computes the bottom-up applied flag: a leaf applied iff it
// recorded parameters, a container iff any child applied.
func fillApplied(n *Node) bool {
	var applied bool
	if len(n.Transforms) > 0 {
		for _, c := range n.Transforms {
			if fillApplied(c) {
				applied = true
			}
		}
	} else {
		applied = n.Params != nil
	}
	n.Applied = &applied
	return applied
}

func (rc *ReplayCompose) replayArgs() Args {
	args := rc.composeArgs()
	args["save_key"] = rc.saveKey
	return args
}

// Definition serializes the composition including its save key.
func (rc *ReplayCompose) Definition() *Node { return rc.definition(rc.replayArgs()) }

// DefinitionWithID is the replay form of Definition.
func (rc *ReplayCompose) DefinitionWithID() *Node { return rc.definitionWithID(rc.replayArgs()) }

func init() {
	Register("ReplayCompose", func(args Args, children []Transform) (Transform, error) {
		opts, err := composeOptionsFromArgs(args)
		if err != nil {
			return nil, err
		}
		if key := args.String("save_key", ""); key != "" {
			opts = append(opts, WithSaveKey(key))
		}
		return NewReplayCompose(children, opts...)
	})
}
