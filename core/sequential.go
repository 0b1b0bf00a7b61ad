package core

import "fmt"

// Sequential runs all children in order behind a single probability gate.
// It carries no selection policy of its own; it exists to group a
// sub-pipeline so an outer selector can pick it as a unit.
type Sequential struct {
	baseCompose
}

// NewSequential builds the grouping container.
func NewSequential(transforms []Transform, p float64) *Sequential {
	return &Sequential{baseCompose: newBaseCompose("Sequential", transforms, p)}
}

// Apply gates once, then runs every child, re-filtering auxiliary data
// after each.
func (s *Sequential) Apply(data Bundle, force bool) (Bundle, error) {
	if s.replayMode || force || RandFloat() < s.p {
		return applyAllChecked(&s.baseCompose, data)
	}
	return data, nil
}

// SelectiveChannelTransform runs its children on a chosen subset of image
// channels only. The selected channels are extracted into a contiguous
// sub-image, the children run on that sub-image's image field alone, and
// the resulting planes are written back into their original channel
// positions of a copy of the full image. Every other bundle field passes
// through untouched.
type SelectiveChannelTransform struct {
	baseCompose
	channels []int
}

// NewSelectiveChannelTransform builds the channel-scoped container.
// Channel indices may repeat and need not be contiguous.
func NewSelectiveChannelTransform(transforms []Transform, channels []int, p float64) *SelectiveChannelTransform {
	return &SelectiveChannelTransform{
		baseCompose: newBaseCompose("SelectiveChannelTransform", transforms, p),
		channels:    append([]int(nil), channels...),
	}
}

// Apply extracts the channels, runs the sub-pipeline and reassembles the
// image. Output dimensions and channel count are unchanged.
func (s *SelectiveChannelTransform) Apply(data Bundle, force bool) (Bundle, error) {
	if force || RandFloat() < s.p {
		img, ok := data[KeyImage].(*Array)
		if !ok {
			return nil, fmt.Errorf("compose: %q must be an array for channel-selective transforms", KeyImage)
		}
		sub := img.PickChannels(s.channels)
		for _, t := range s.transforms {
			res, err := t.Apply(Bundle{KeyImage: sub}, false)
			if err != nil {
				return nil, err
			}
			out, ok := res[KeyImage].(*Array)
			if !ok {
				return nil, fmt.Errorf("compose: channel sub-pipeline dropped the %q field", KeyImage)
			}
			sub = out
		}
		full := img.Clone()
		for i, c := range s.channels {
			full.SetChannel(c, sub.Channel(i))
		}
		data[KeyImage] = full
	}
	return data, nil
}

func (s *SelectiveChannelTransform) channelArgs() Args { return Args{"channels": s.channels} }

// Definition serializes the container including its channel list.
func (s *SelectiveChannelTransform) Definition() *Node { return s.definition(s.channelArgs()) }

// DefinitionWithID is the replay form of Definition.
func (s *SelectiveChannelTransform) DefinitionWithID() *Node {
	return s.definitionWithID(s.channelArgs())
}

func init() {
	Register("Sequential", func(args Args, children []Transform) (Transform, error) {
		return NewSequential(children, args.Float("p", 0.5)), nil
	})
	Register("SelectiveChannelTransform", func(args Args, children []Transform) (Transform, error) {
		channels := args.IntSlice("channels")
		if channels == nil {
			channels = []int{0, 1, 2}
		}
		return NewSelectiveChannelTransform(children, channels, args.Float("p", 1)), nil
	})
}
