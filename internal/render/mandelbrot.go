// Package render holds the demo compute kernel: an escape-time Mandelbrot
// renderer producing 8-bit grayscale frames, and a PGM writer for them.
package render

import "math"

// iterations bounds the escape-time loop.
const iterations = 300

// Frame is a rows×cols 8-bit grayscale image.
type Frame struct {
	Pix  []byte
	Rows int
	Cols int
}

// NewFrame allocates a frame. Non-positive dimensions yield an empty frame.
func NewFrame(rows, cols int) *Frame {
	if rows <= 0 || cols <= 0 {
		return &Frame{}
	}
	return &Frame{Pix: make([]byte, rows*cols), Rows: rows, Cols: cols}
}

// View describes the region of the complex plane covered by a frame:
// a square of the given radius around (CenterX, CenterY).
type View struct {
	CenterX float64
	CenterY float64
	Radius  float64
}

// origin returns the top-left corner and the per-pixel increment for
// rendering f under v.
func (v View) origin(f *Frame) (x0, y0, ppi float64) {
	side := f.Rows
	if f.Cols < side {
		side = f.Cols
	}
	ppi = 2 * v.Radius / float64(side)
	return v.CenterX - v.Radius, v.CenterY - v.Radius, ppi
}

// DrawRows renders rows [from, to) of f under v. Rows are independent, so
// disjoint row ranges may be rendered concurrently.
func DrawRows(f *Frame, v View, from, to int) {
	x0, y0, ppi := v.origin(f)
	for h := from; h < to; h++ {
		row := f.Pix[h*f.Cols : (h+1)*f.Cols]
		cy := y0 + float64(h)*ppi
		for w := 0; w < f.Cols; w++ {
			cx := x0 + float64(w)*ppi
			var x, y float64
			z := 0.0
			iter := 0
			for z < 4 && iter < iterations {
				iter++
				x, y = x*x-y*y+cx, 2*x*y+cy
				z = x*x + y*y
			}
			// Smooth the gradient across the escape boundary.
			shade := float64(iter)
			if z > 4 {
				shade = float64(iter) - math.Log2(math.Log2(z)*0.5)
			}
			shade *= 255.0 / iterations
			row[w] = byte(shade)
		}
	}
}

// Draw renders the whole frame.
func Draw(f *Frame, v View) { DrawRows(f, v, 0, f.Rows) }
