package core

// probe is a minimal leaf for exercising containers: it counts its
// applications and appends its id to the bundle's trace field.
type probe struct {
	id      int
	p       float64
	calls   int
	det     bool
	saveKey string

	replayMode      bool
	appliedInReplay bool
}

func newProbe(p float64) *probe { return &probe{id: NextNodeID(), p: p} }

func (pr *probe) ID() int              { return pr.id }
func (pr *probe) Probability() float64 { return pr.p }

func (pr *probe) Apply(data Bundle, force bool) (Bundle, error) {
	if pr.replayMode {
		if pr.appliedInReplay {
			pr.calls++
		}
		return data, nil
	}
	if !force && RandFloat() >= pr.p {
		return data, nil
	}
	if pr.det {
		if rec, ok := data[pr.saveKey].(*Record); ok {
			rec.Put(pr.id, Params{"hit": pr.calls})
		}
	}
	return pr.mark(data), nil
}

func (pr *probe) ApplyWithParams(data Bundle, _ Params) (Bundle, error) {
	return pr.mark(data), nil
}

func (pr *probe) mark(data Bundle) Bundle {
	pr.calls++
	trace, _ := data["trace"].([]int)
	data["trace"] = append(trace, pr.id)
	return data
}

func (pr *probe) SetDeterministic(on bool, saveKey string) {
	pr.det = on
	pr.saveKey = saveKey
}

func (pr *probe) EnterReplay(applied bool, _ Params) {
	pr.replayMode = true
	pr.appliedInReplay = applied
}

func (pr *probe) AddTargets(map[string]string) error { return nil }

func (pr *probe) AvailableKeys() map[string]struct{} {
	return map[string]struct{}{KeyImage: {}, "trace": {}}
}

func (pr *probe) Definition() *Node {
	return &Node{ClassName: "probe", Args: Args{"p": pr.p}}
}

func (pr *probe) DefinitionWithID() *Node {
	n := pr.Definition()
	n.ID = pr.id
	return n
}

func traceOf(data Bundle) []int {
	trace, _ := data["trace"].([]int)
	return trace
}

func imageBundle(h, w int) Bundle {
	return Bundle{KeyImage: NewArray(h, w, 3)}
}
