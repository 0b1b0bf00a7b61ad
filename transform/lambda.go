package transform

import (
	"fmt"

	"augpipe/core"
)

// Lambda wraps user-supplied per-target functions as a pipeline leaf.
// Lambdas serialize by name only: a restored pipeline cannot rebuild the
// functions, so replay must supply a live instance under the same name
// through core.ReplayWith.
func Lambda(name string, p float64, funcs map[string]Func) *Op {
	return New(Config{
		Name:  "Lambda",
		P:     p,
		Funcs: funcs,
		Args:  func() core.Args { return core.Args{"name": name} },
	})
}

func init() {
	core.Register("Lambda", func(args core.Args, _ []core.Transform) (core.Transform, error) {
		return nil, fmt.Errorf("transform: Lambda %q holds user code and cannot be rebuilt from a description; pass a live instance via core.ReplayWith", args.String("name", ""))
	})
}
