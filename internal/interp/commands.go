package interp

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"golang.org/x/image/draw"

	"github.com/hupe1980/gmicfx/internal/layer"
)

// blur applies a separable gaussian with standard deviation $1 to every
// channel of every layer. Each pass row is a checkpoint.
func blur(r *run, args []string) error {
	sigma, err := floatArg(args, 0, 1)
	if err != nil {
		return err
	}

	if sigma < 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return fmt.Errorf("invalid sigma %g", sigma)
	}

	if sigma == 0 {
		return nil
	}

	extent := 1
	for _, l := range r.stack {
		extent = max(extent, l.Width, l.Height)
	}

	kernel := gaussianKernel(sigma, extent)

	rows := 0
	for _, l := range r.stack {
		rows += 2 * l.Height * l.Channels
	}

	done := 0

	for _, l := range r.stack {
		tmp := make([]float32, l.Width*l.Height)

		for c := 0; c < l.Channels; c++ {
			plane := l.Plane(c)

			for y := 0; y < l.Height; y++ {
				if err := r.st.Checkpoint(r.ctx); err != nil {
					return err
				}

				row := y * l.Width
				for x := 0; x < l.Width; x++ {
					tmp[row+x] = convolve(kernel, func(k int) float32 {
						return plane[row+clampIndex(x+k, l.Width)]
					})
				}

				done++
				r.report(float64(done)/float64(rows), "blurring")
			}

			for y := 0; y < l.Height; y++ {
				if err := r.st.Checkpoint(r.ctx); err != nil {
					return err
				}

				for x := 0; x < l.Width; x++ {
					plane[y*l.Width+x] = convolve(kernel, func(k int) float32 {
						return tmp[clampIndex(y+k, l.Height)*l.Width+x]
					})
				}

				done++
				r.report(float64(done)/float64(rows), "blurring")
			}
		}
	}

	return nil
}

// gaussianKernel returns a normalized kernel for sigma. The radius never
// exceeds maxRadius; a wider kernel only samples clamped edge pixels.
func gaussianKernel(sigma float64, maxRadius int) []float32 {
	radius := maxRadius
	if r := math.Ceil(3 * sigma); r < float64(maxRadius) {
		radius = int(r)
	}
	k := make([]float32, 2*radius+1)

	var sum float64

	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+radius] = float32(w)
		sum += w
	}

	for i := range k {
		k[i] /= float32(sum)
	}

	return k
}

func convolve(kernel []float32, at func(offset int) float32) float32 {
	radius := len(kernel) / 2

	var acc float32
	for i, w := range kernel {
		acc += w * at(i-radius)
	}

	return acc
}

func clampIndex(i, n int) int {
	return min(max(i, 0), n-1)
}

// channels sets the channel count of every layer to $1. New planes are
// filled with $2 (default 255).
func channels(r *run, args []string) error {
	n, err := intArg(args, 0, 3)
	if err != nil {
		return err
	}

	fillValue, err := floatArg(args, 1, 255)
	if err != nil {
		return err
	}

	if n < 1 {
		return fmt.Errorf("channel count %d must be positive", n)
	}

	for i, l := range r.stack {
		out := layer.New(l.Name, l.Width, l.Height, n)
		out.Meta = l.Meta

		for c := 0; c < n; c++ {
			dst := out.Plane(c)
			if c < l.Channels {
				copy(dst, l.Plane(c))
				continue
			}

			for j := range dst {
				dst[j] = float32(fillValue)
			}
		}

		r.stack[i] = out
	}

	return nil
}

// fill sets every sample of channel c to $c+1, repeating the last value.
func fill(r *run, args []string) error {
	if len(args) == 0 {
		return errors.New("fill needs at least one value")
	}

	values := make([]float32, len(args))

	for i := range args {
		v, err := floatArg(args, i, 0)
		if err != nil {
			return err
		}

		values[i] = float32(v)
	}

	for _, l := range r.stack {
		for c := 0; c < l.Channels; c++ {
			v := values[min(c, len(values)-1)]

			plane := l.Plane(c)
			for j := range plane {
				plane[j] = v
			}
		}
	}

	return nil
}

// invert negates color channels, leaving alpha alone.
func invert(r *run, _ []string) error {
	for _, l := range r.stack {
		colors := l.Channels
		if colors == 2 || colors == 4 {
			colors--
		}

		for c := 0; c < colors; c++ {
			plane := l.Plane(c)
			for j := range plane {
				plane[j] = 255 - plane[j]
			}
		}
	}

	return nil
}

// resize scales every layer to $1 x $2 with Catmull-Rom interpolation.
// A missing or zero height keeps the aspect ratio.
func resize(r *run, args []string) error {
	w, err := intArg(args, 0, 0)
	if err != nil {
		return err
	}

	h, err := intArg(args, 1, 0)
	if err != nil {
		return err
	}

	if w <= 0 {
		return fmt.Errorf("invalid width %d", w)
	}

	for i, l := range r.stack {
		if err := r.st.Checkpoint(r.ctx); err != nil {
			return err
		}

		lh := h
		if lh <= 0 && l.Width > 0 {
			lh = max(1, int(math.Round(float64(w)*float64(l.Height)/float64(l.Width))))
		}

		r.stack[i] = scaleLayer(l, w, lh)
		r.report(float64(i+1)/float64(len(r.stack)), "resizing")
	}

	return nil
}

func scaleLayer(l *layer.Layer, w, h int) *layer.Layer {
	out := layer.New(l.Name, w, h, l.Channels)
	out.Meta = l.Meta

	if l.Width == 0 || l.Height == 0 {
		return out
	}

	src := image.NewGray16(image.Rect(0, 0, l.Width, l.Height))
	dst := image.NewGray16(image.Rect(0, 0, w, h))

	for c := 0; c < l.Channels; c++ {
		for j, v := range l.Plane(c) {
			s := min(max(v, 0), 255) * 257
			src.Pix[2*j] = uint8(uint16(s) >> 8)
			src.Pix[2*j+1] = uint8(uint16(s))
		}

		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

		plane := out.Plane(c)
		for j := range plane {
			plane[j] = float32(uint16(dst.Pix[2*j])<<8|uint16(dst.Pix[2*j+1])) / 257
		}
	}

	return out
}

// message sets the result message to the argument text.
func message(r *run, args []string) error {
	text, err := textArg(args)
	if err != nil {
		return err
	}

	r.message = text

	return nil
}

// rename sets the name of every layer.
func rename(r *run, args []string) error {
	text, err := textArg(args)
	if err != nil {
		return err
	}

	for _, l := range r.stack {
		l.Name = text
	}

	return nil
}

// remove drops every layer.
func remove(r *run, _ []string) error {
	r.stack = layer.Stack{}
	return nil
}

// fail aborts with the argument text.
func fail(_ *run, args []string) error {
	text, err := textArg(args)
	if err != nil {
		return err
	}

	if text == "" {
		text = "command failed"
	}

	return errors.New(text)
}

// sleep waits $1 milliseconds, polling for cancellation.
func sleep(r *run, args []string) error {
	ms, err := intArg(args, 0, 0)
	if err != nil {
		return err
	}

	const tick = time.Millisecond

	total := time.Duration(ms) * time.Millisecond
	start := time.Now()

	for {
		if err := r.st.Checkpoint(r.ctx); err != nil {
			return err
		}

		elapsed := time.Since(start)
		if elapsed >= total {
			return nil
		}

		r.report(float64(elapsed)/float64(total), "waiting")
		time.Sleep(min(tick, total-elapsed))
	}
}
