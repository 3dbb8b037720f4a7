package host

import (
	"image"
	"image/color"

	"github.com/hupe1980/gmicfx/internal/layer"
)

// FromImage converts img to a layer. Gray images yield one channel, opaque
// images three, anything else four.
func FromImage(name string, img image.Image) *layer.Layer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	channels := 4

	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		channels = 1
	default:
		if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
			channels = 3
		}
	}

	l := layer.New(name, w, h, channels)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			samples := sample(img, b.Min.X+x, b.Min.Y+y)

			if channels == 1 {
				l.Set(x, y, 0, samples[0])
				continue
			}

			for ch := 0; ch < channels; ch++ {
				l.Set(x, y, ch, samples[ch])
			}
		}
	}

	return l
}

// ToImage converts l to an image. One channel is gray, two is gray plus
// alpha, three is RGB and four RGBA. Samples are clamped to 0..255.
func ToImage(l *layer.Layer) image.Image {
	r := image.Rect(0, 0, l.Width, l.Height)

	if l.Channels == 1 {
		img := image.NewGray(r)

		for y := 0; y < l.Height; y++ {
			for x := 0; x < l.Width; x++ {
				img.SetGray(x, y, color.Gray{Y: clamp8(l.At(x, y, 0))})
			}
		}

		return img
	}

	img := image.NewNRGBA(r)

	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			img.SetNRGBA(x, y, pixel(l, x, y))
		}
	}

	return img
}

func pixel(l *layer.Layer, x, y int) color.NRGBA {
	switch l.Channels {
	case 0:
		return color.NRGBA{}
	case 2:
		g := clamp8(l.At(x, y, 0))
		return color.NRGBA{R: g, G: g, B: g, A: clamp8(l.At(x, y, 1))}
	case 3:
		return color.NRGBA{R: clamp8(l.At(x, y, 0)), G: clamp8(l.At(x, y, 1)), B: clamp8(l.At(x, y, 2)), A: 0xff}
	default:
		return color.NRGBA{R: clamp8(l.At(x, y, 0)), G: clamp8(l.At(x, y, 1)), B: clamp8(l.At(x, y, 2)), A: clamp8(l.At(x, y, 3))}
	}
}

// sample reads straight from non-premultiplied images so alpha does not
// cost precision.
func sample(img image.Image, x, y int) [4]float32 {
	if n, ok := img.(*image.NRGBA); ok {
		c := n.NRGBAAt(x, y)
		return [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
	}

	c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)

	return [4]float32{to8(c.R), to8(c.G), to8(c.B), to8(c.A)}
}

func to8(v uint16) float32 { return float32(v >> 8) }

func clamp8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
