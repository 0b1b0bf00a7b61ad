package core

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestComposeRunsChildrenInOrder(t *testing.T) {
	a, b := newProbe(1), newProbe(1)
	c, err := NewCompose([]Transform{a, b})
	if err != nil {
		t.Fatalf("NewCompose: %v", err)
	}
	out, err := c.Apply(imageBundle(4, 4), false)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	trace := traceOf(out)
	if len(trace) != 2 || trace[0] != a.id || trace[1] != b.id {
		t.Fatalf("want trace [%d %d], got %v", a.id, b.id, trace)
	}
}

func TestComposeZeroProbabilityIsNoOp(t *testing.T) {
	SetRandSource(rand.NewPCG(1, 2))
	p := newProbe(1)
	c, err := NewCompose([]Transform{p}, WithProbability(0))
	if err != nil {
		t.Fatalf("NewCompose: %v", err)
	}
	for i := 0; i < 20; i++ {
		if _, err := c.Apply(imageBundle(4, 4), false); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	if p.calls != 0 {
		t.Fatalf("want 0 applications behind a p=0 gate, got %d", p.calls)
	}
}

func TestComposeStrictRejectsUnknownKey(t *testing.T) {
	c, err := NewCompose([]Transform{newProbe(1)})
	if err != nil {
		t.Fatalf("NewCompose: %v", err)
	}
	data := imageBundle(4, 4)
	data["bogus"] = 1
	if _, err := c.Apply(data, false); err == nil || !strings.Contains(err.Error(), "strict") {
		t.Fatalf("want strict-mode error, got %v", err)
	}
}

func TestComposeStrictOff(t *testing.T) {
	c, err := NewCompose([]Transform{newProbe(1)}, WithStrict(false))
	if err != nil {
		t.Fatalf("NewCompose: %v", err)
	}
	data := imageBundle(4, 4)
	data["bogus"] = 1
	if _, err := c.Apply(data, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestComposeShapeMismatch(t *testing.T) {
	c, err := NewCompose([]Transform{newProbe(1)})
	if err != nil {
		t.Fatalf("NewCompose: %v", err)
	}
	data := Bundle{KeyImage: NewArray(10, 10, 3), KeyMask: NewArray(20, 20)}
	if _, err := c.Apply(data, false); err == nil {
		t.Fatal("want shape mismatch error")
	}

	c, err = NewCompose([]Transform{newProbe(1)}, WithShapeCheck(false))
	if err != nil {
		t.Fatalf("NewCompose: %v", err)
	}
	data = Bundle{KeyImage: NewArray(10, 10, 3), KeyMask: NewArray(20, 20)}
	if _, err := c.Apply(data, false); err != nil {
		t.Fatalf("Apply with shape check off: %v", err)
	}
}

func TestComposeBBoxFieldNeedsProcessor(t *testing.T) {
	c, err := NewCompose(nil)
	if err != nil {
		t.Fatalf("NewCompose: %v", err)
	}
	data := imageBundle(4, 4)
	data[KeyBBoxes] = [][]any{}
	if _, err := c.Apply(data, false); err == nil {
		t.Fatal("want error for bboxes without bbox params")
	}
}

func TestComposeReturnParamsAndRunWithParams(t *testing.T) {
	p := newProbe(1)
	c, err := NewCompose([]Transform{p}, WithReturnParams())
	if err != nil {
		t.Fatalf("NewCompose: %v", err)
	}
	out, err := c.Apply(imageBundle(4, 4), false)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	rec, ok := out[DefaultSaveKey].(*Record)
	if !ok {
		t.Fatalf("want a record under %q, got %T", DefaultSaveKey, out[DefaultSaveKey])
	}
	if rec.Len() != 1 {
		t.Fatalf("want 1 recorded node, got %d", rec.Len())
	}

	before := p.calls
	out2, err := c.RunWithParams(imageBundle(4, 4), rec)
	if err != nil {
		t.Fatalf("RunWithParams: %v", err)
	}
	if p.calls != before+1 {
		t.Fatalf("want one replayed application, got %d", p.calls-before)
	}
	if trace := traceOf(out2); len(trace) != 1 || trace[0] != p.id {
		t.Fatalf("want trace [%d], got %v", p.id, trace)
	}
}

func TestRunWithParamsRequiresReturnParams(t *testing.T) {
	c, err := NewCompose([]Transform{newProbe(1)})
	if err != nil {
		t.Fatalf("NewCompose: %v", err)
	}
	if _, err := c.RunWithParams(imageBundle(4, 4), NewRecord()); !errors.Is(err, ErrNoRecordedParams) {
		t.Fatalf("want ErrNoRecordedParams, got %v", err)
	}
}

func TestAddTargetsConflict(t *testing.T) {
	c, err := NewCompose([]Transform{newProbe(1)}, WithTargets(map[string]string{"image2": KeyImage}))
	if err != nil {
		t.Fatalf("NewCompose: %v", err)
	}
	if err := c.AddTargets(map[string]string{"image2": KeyMask}); err == nil {
		t.Fatal("want conflict error for remapped alias")
	}
	// Same mapping again is fine.
	if err := c.AddTargets(map[string]string{"image2": KeyImage}); err != nil {
		t.Fatalf("re-register same alias: %v", err)
	}
	if _, ok := c.AvailableKeys()["image2"]; !ok {
		t.Fatal("alias missing from available keys")
	}
}
