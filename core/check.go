package core

import "fmt"

// ImageShape extracts the height/width extent of the bundle's image.
func ImageShape(data Bundle) (Shape, error) {
	v, ok := data[KeyImage]
	if !ok {
		return Shape{}, fmt.Errorf("compose: bundle has no %q field", KeyImage)
	}
	a, ok := v.(*Array)
	if !ok {
		return Shape{}, fmt.Errorf("compose: %q must be an array", KeyImage)
	}
	return a.HW(), nil
}

func checkSingle(name string, v any) (Shape, error) {
	a, ok := v.(*Array)
	if !ok {
		return Shape{}, fmt.Errorf("compose: %q must be an array", name)
	}
	if a.NDim() < 2 {
		return Shape{}, fmt.Errorf("compose: %q must have at least two axes", name)
	}
	return a.HW(), nil
}

// checkMasks accepts a single 3- or 4-axis array (a leading batch axis
// shifts the extent to axes 1–2) or a sequence of 2-/3-axis arrays.
func checkMasks(name string, v any) (Shape, error) {
	switch m := v.(type) {
	case *Array:
		switch m.NDim() {
		case 3:
			return m.HW(), nil
		case 4:
			dims := m.Dims()
			return Shape{Height: dims[1], Width: dims[2]}, nil
		default:
			return Shape{}, fmt.Errorf("compose: %q must be a 3- or 4-axis array", name)
		}
	case []*Array:
		if len(m) == 0 {
			return Shape{}, fmt.Errorf("compose: %q must not be empty", name)
		}
		for _, e := range m {
			if e == nil {
				return Shape{}, fmt.Errorf("compose: all elements of %q must be arrays", name)
			}
			if n := e.NDim(); n != 2 && n != 3 {
				return Shape{}, fmt.Errorf("compose: all masks in %q must have 2 or 3 axes", name)
			}
		}
		return m[0].HW(), nil
	}
	return Shape{}, fmt.Errorf("compose: %q must be an array or a sequence of arrays", name)
}

func checkMulti(name string, v any) (Shape, error) {
	m, ok := v.([]*Array)
	if !ok || len(m) == 0 || m[0] == nil {
		return Shape{}, fmt.Errorf("compose: %q must be a non-empty sequence of arrays", name)
	}
	return m[0].HW(), nil
}

func checkShapes(shapes []Shape, on bool) error {
	if !on || len(shapes) == 0 {
		return nil
	}
	first := shapes[0]
	for _, s := range shapes[1:] {
		if s != first {
			return fmt.Errorf("compose: height and width of image, mask and masks must match " +
				"(disable this check with WithShapeCheck(false) only if you are sure about your data)")
		}
	}
	return nil
}

// checkArgs enforces the field classification and shape-consistency rules
// on a bundle before any transform runs. Fields are classified by their
// canonical name after alias remapping.
func (c *Compose) checkArgs(data Bundle) error {
	var shapes []Shape
	for name, v := range data {
		canonical := name
		if t, ok := c.additionalTargets[name]; ok {
			canonical = t
		}
		switch canonical {
		case KeyImage, KeyMask:
			s, err := checkSingle(name, v)
			if err != nil {
				return err
			}
			shapes = append(shapes, s)
		case KeyMasks:
			if !emptySeq(v) {
				s, err := checkMasks(name, v)
				if err != nil {
					return err
				}
				shapes = append(shapes, s)
			}
		case KeyImages:
			if !emptySeq(v) {
				s, err := checkMulti(name, v)
				if err != nil {
					return err
				}
				shapes = append(shapes, s)
			}
		case KeyBBoxes:
			if c.processors[KeyBBoxes] == nil {
				return fmt.Errorf("compose: field %q requires bbox params to be configured", name)
			}
		case KeyKeypoints:
			if c.processors[KeyKeypoints] == nil {
				return fmt.Errorf("compose: field %q requires keypoint params to be configured", name)
			}
		}
	}
	return checkShapes(shapes, c.isCheckShapes)
}

func emptySeq(v any) bool {
	if v == nil {
		return true
	}
	if m, ok := v.([]*Array); ok {
		return len(m) == 0
	}
	return false
}
