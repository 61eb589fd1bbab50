// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: wm/blit.go
// Summary: The pixel blitter contract the compositor composes through, and
//           a minimal stdlib-backed implementation.
// Usage: Compositor.Compose calls Surface for every window, the resize
//        outline, and the cursor sprite.
// Notes: The real 2D graphics library is explicitly out of scope (spec.md
//        §1); this backend exists only so the compositor pipeline is
//        concrete and independently testable.

package wm

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Surface is the pixel-blitter contract. Implementations own two pixel
// planes: a compositor backbuffer and the real front surface.
type Surface interface {
	// Size returns the surface's pixel dimensions.
	Size() (w, h int)
	// FillRect paints a solid ARGB color into a rectangle of the backbuffer.
	FillRect(r Rect, argb uint32)
	// BlitWindow composites a window's buffer onto the backbuffer at its
	// current position, honoring rotation, scale, and alpha.
	BlitWindow(w *Window, scale, alpha float64)
	// StrokeRect draws a one-pixel outline.
	StrokeRect(r Rect, argb uint32)
	// Present copies the clipped region from the backbuffer to the front
	// surface using a source-copy operator.
	Present(clip Rect)
}

// ImageSurface is a minimal Surface backed by image/draw. It keeps a
// backbuffer and a front buffer as independent *image.RGBA planes.
type ImageSurface struct {
	w, h    int
	back    *image.RGBA
	front   *image.RGBA
}

// NewImageSurface allocates a surface of the given pixel dimensions.
func NewImageSurface(w, h int) *ImageSurface {
	return &ImageSurface{
		w:     w,
		h:     h,
		back:  image.NewRGBA(image.Rect(0, 0, w, h)),
		front: image.NewRGBA(image.Rect(0, 0, w, h)),
	}
}

func (s *ImageSurface) Size() (int, int) { return s.w, s.h }

func (s *ImageSurface) FillRect(r Rect, argb uint32) {
	draw.Draw(s.back, toImageRect(r), &image.Uniform{C: argbColor(argb)}, image.Point{}, draw.Over)
}

func (s *ImageSurface) StrokeRect(r Rect, argb uint32) {
	c := argbColor(argb)
	top := Rect{X: r.X, Y: r.Y, W: r.W, H: 1}
	bottom := Rect{X: r.X, Y: r.Y + r.H - 1, W: r.W, H: 1}
	left := Rect{X: r.X, Y: r.Y, W: 1, H: r.H}
	right := Rect{X: r.X + r.W - 1, Y: r.Y, W: 1, H: r.H}
	for _, edge := range []Rect{top, bottom, left, right} {
		draw.Draw(s.back, toImageRect(edge), &image.Uniform{C: c}, image.Point{}, draw.Over)
	}
}

// BlitWindow paints w's buffer onto the backbuffer. Rotation is applied by
// nearest-neighbour sampling in device space (the spec calls for nearest
// filtering on rotated Mid windows); scale shrinks/grows around the
// window's center, used by the fade animations.
func (s *ImageSurface) BlitWindow(w *Window, scale, alpha float64) {
	if w.Buffer == nil || w.Width <= 0 || w.Height <= 0 {
		return
	}
	src := wrapWindowBuffer(w)
	rot := w.effectiveRotation()

	cx, cy := float64(w.Width)/2, float64(w.Height)/2
	bounds := RotatedBounds(w)

	for dy := 0; dy < bounds.H; dy++ {
		for dx := 0; dx < bounds.W; dx++ {
			sx := bounds.X + dx
			sy := bounds.Y + dy
			lx, ly := DeviceToWindow(w, sx, sy)

			if rot == 0 && scale == 1.0 {
				lx, ly = sx-w.X, sy-w.Y
			} else if scale != 1.0 {
				// Undo the animation scale to find the source sample: scale
				// is applied centered at the window's own center.
				lx = int((float64(lx)-cx)/scale + cx)
				ly = int((float64(ly)-cy)/scale + cy)
			}

			if lx < 0 || ly < 0 || lx >= w.Width || ly >= w.Height {
				continue
			}

			r, g, b, a := src.pixel(lx, ly)
			if a == 0 {
				continue
			}
			outA := float64(a) / 255 * alpha
			if outA <= 0 {
				continue
			}
			if sx < 0 || sy < 0 || sx >= s.w || sy >= s.h {
				continue
			}
			blendOver(s.back, sx, sy, r, g, b, uint8(math.Round(outA*255)))
		}
	}
}

func (s *ImageSurface) Present(clip Rect) {
	draw.Draw(s.front, toImageRect(clip), s.back, image.Point{X: clip.X, Y: clip.Y}, draw.Src)
}

// windowBuffer is a thin ARGB32-little-endian view over a window's shared
// memory, matching the spec's row stride width*4.
type windowBuffer struct {
	w      int
	h      int
	pixels []byte
}

func wrapWindowBuffer(win *Window) windowBuffer {
	return windowBuffer{w: win.Width, h: win.Height, pixels: win.Buffer.Bytes()}
}

func (b windowBuffer) pixel(x, y int) (r, g, b8, a uint8) {
	if x < 0 || y < 0 || x >= b.w || y >= b.h {
		return 0, 0, 0, 0
	}
	off := y*b.w*4 + x*4
	if off+4 > len(b.pixels) {
		return 0, 0, 0, 0
	}
	blue, green, red, alpha := b.pixels[off], b.pixels[off+1], b.pixels[off+2], b.pixels[off+3]
	return red, green, blue, alpha
}

func blendOver(dst *image.RGBA, x, y int, r, g, b, a uint8) {
	if a == 255 {
		dst.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		return
	}
	existing := dst.RGBAAt(x, y)
	inv := 255 - uint32(a)
	nr := uint8((uint32(r)*uint32(a) + uint32(existing.R)*inv) / 255)
	ng := uint8((uint32(g)*uint32(a) + uint32(existing.G)*inv) / 255)
	nb := uint8((uint32(b)*uint32(a) + uint32(existing.B)*inv) / 255)
	dst.SetRGBA(x, y, color.RGBA{R: nr, G: ng, B: nb, A: 255})
}

func toImageRect(r Rect) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

func argbColor(argb uint32) color.RGBA {
	a := uint8(argb >> 24)
	r := uint8(argb >> 16)
	g := uint8(argb >> 8)
	b := uint8(argb)
	return color.RGBA{R: r, G: g, B: b, A: a}
}
