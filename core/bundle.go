package core

// Canonical field names a bundle may carry. Additional targets map new
// names onto one of these; after remapping an aliased field behaves
// exactly like its canonical counterpart.
const (
	KeyImage     = "image"
	KeyImages    = "images"
	KeyMask      = "mask"
	KeyMasks     = "masks"
	KeyBBoxes    = "bboxes"
	KeyKeypoints = "keypoints"
	KeyLabels    = "labels"
)

var (
	canonicalKeys = []string{KeyImage, KeyMask, KeyMasks, KeyBBoxes, KeyKeypoints}

	maskKeys  = map[string]struct{}{KeyMask: {}, KeyMasks: {}}
	imageKeys = map[string]struct{}{KeyImage: {}, KeyImages: {}}
)

// Bundle is the named collection of data fields passed through the
// pipeline in one call: image and mask arrays, box and keypoint lists,
// label lists, and opaque pass-through values.
type Bundle map[string]any

// Params holds the concrete values one transform sampled for one call.
type Params map[string]any

// Clone returns a shallow copy: field values are shared, the map is not.
func (b Bundle) Clone() Bundle {
	out := make(Bundle, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
