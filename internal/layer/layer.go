// Package layer models the image stack exchanged between the host and the
// execution engine, and validates stacks produced by filters.
package layer

import (
	"fmt"
	"maps"
	"slices"
)

// MaxChannels is the largest channel count the pixel model supports (RGBA).
const MaxChannels = 4

// Layer is one image: a planar float32 pixel buffer plus metadata.
// Pix holds Channels planes of Width*Height samples each, in 0..255.
type Layer struct {
	Name     string
	Width    int
	Height   int
	Channels int
	Pix      []float32
	Meta     map[string]string
}

// New allocates a zeroed layer.
func New(name string, width, height, channels int) *Layer {
	return &Layer{
		Name:     name,
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float32, width*height*channels),
		Meta:     map[string]string{},
	}
}

// Clone returns a deep copy of l.
func (l *Layer) Clone() *Layer {
	c := *l
	c.Pix = slices.Clone(l.Pix)
	c.Meta = maps.Clone(l.Meta)

	return &c
}

// Plane returns the samples of channel c.
func (l *Layer) Plane(c int) []float32 {
	n := l.Width * l.Height
	return l.Pix[c*n : (c+1)*n]
}

// At returns the sample of channel c at (x, y).
func (l *Layer) At(x, y, c int) float32 {
	return l.Pix[c*l.Width*l.Height+y*l.Width+x]
}

// Set stores the sample of channel c at (x, y).
func (l *Layer) Set(x, y, c int, v float32) {
	l.Pix[c*l.Width*l.Height+y*l.Width+x] = v
}

// Check verifies that the buffer size matches the declared geometry.
func (l *Layer) Check() error {
	if l.Width < 0 || l.Height < 0 || l.Channels < 0 {
		return fmt.Errorf("layer %q: negative geometry %dx%dx%d", l.Name, l.Width, l.Height, l.Channels)
	}

	if want := l.Width * l.Height * l.Channels; len(l.Pix) != want {
		return fmt.Errorf("layer %q: %d samples for %dx%dx%d", l.Name, len(l.Pix), l.Width, l.Height, l.Channels)
	}

	return nil
}

// Stack is an ordered list of layers, topmost first.
type Stack []*Layer

// Clone deep-copies every layer.
func (s Stack) Clone() Stack {
	if s == nil {
		return nil
	}

	out := make(Stack, len(s))
	for i, l := range s {
		out[i] = l.Clone()
	}

	return out
}

// Extent returns the largest width and largest height among the layers.
func (s Stack) Extent() (width, height int) {
	for _, l := range s {
		width = max(width, l.Width)
		height = max(height, l.Height)
	}

	return width, height
}
