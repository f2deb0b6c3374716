// Package render draws orbits as ASCII art for terminal output.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/illum/orbitsim/pkg/orbit"
	"github.com/illum/orbitsim/pkg/physics"
)

// Glyphs used by TerminalRenderer.
const (
	PathGlyph  = '.'
	FocusGlyph = 'O'
	BodyGlyph  = '*'
)

// TerminalRenderer rasterizes an orbit into a fixed-size character grid.
// Rows are treated as twice as tall as columns so circles stay round.
type TerminalRenderer struct {
	width   int
	height  int
	buffer  [][]rune
	ellipse physics.Ellipse
	scale   float64 // world units per column
}

// NewTerminalRenderer creates a renderer with the given grid size. Sizes
// below 3 are raised to 3.
func NewTerminalRenderer(width, height int) *TerminalRenderer {
	width = max(width, 3)
	height = max(height, 3)

	buffer := make([][]rune, height)
	for i := range buffer {
		buffer[i] = make([]rune, width)
	}
	r := &TerminalRenderer{width: width, height: height, buffer: buffer, scale: 1}
	r.Clear()
	return r
}

// Clear blanks the grid.
func (r *TerminalRenderer) Clear() {
	for y := range r.buffer {
		for x := range r.buffer[y] {
			r.buffer[y][x] = ' '
		}
	}
}

// DrawOrbit clears the grid, fits the view to shape and draws the path and
// the focus.
func (r *TerminalRenderer) DrawOrbit(shape orbit.Shape) {
	r.Clear()
	r.ellipse = physics.Ellipse{SemiMajor: shape.A, SemiMinor: shape.B, FocalOffset: shape.C}
	r.scale = math.Max(
		2*shape.A/float64(r.width-1),
		shape.B/float64(r.height-1),
	)
	if r.scale <= 0 || math.IsNaN(r.scale) {
		r.scale = 1
	}

	steps := 4 * (r.width + r.height)
	for i := 0; i < steps; i++ {
		theta := 2 * math.Pi * float64(i) / float64(steps)
		r.plot(r.ellipse.PointAt(theta), PathGlyph)
	}
	r.plot(r.ellipse.Focus(), FocusGlyph)
}

// DrawBody marks the orbiting body at the given parametric angle.
func (r *TerminalRenderer) DrawBody(theta float64) {
	r.plot(r.ellipse.PointAt(theta), BodyGlyph)
}

// Cell returns the glyph at column x, row y, or zero when out of range.
func (r *TerminalRenderer) Cell(x, y int) rune {
	if y < 0 || y >= r.height || x < 0 || x >= r.width {
		return 0
	}
	return r.buffer[y][x]
}

// Render writes the grid inside a border.
func (r *TerminalRenderer) Render(w io.Writer) error {
	border := "+" + strings.Repeat("-", r.width) + "+\n"

	var b strings.Builder
	b.WriteString(border)
	for y := range r.buffer {
		b.WriteByte('|')
		b.WriteString(string(r.buffer[y]))
		b.WriteString("|\n")
	}
	b.WriteString(border)

	_, err := fmt.Fprint(w, b.String())
	return err
}

func (r *TerminalRenderer) worldToScreen(pos physics.Vector2D) (int, int) {
	x := int(math.Round(pos.X/r.scale + float64(r.width-1)/2))
	y := int(math.Round(float64(r.height-1)/2 - pos.Y/(2*r.scale)))
	return x, y
}

func (r *TerminalRenderer) plot(pos physics.Vector2D, glyph rune) {
	x, y := r.worldToScreen(pos)
	if x >= 0 && x < r.width && y >= 0 && y < r.height {
		r.buffer[y][x] = glyph
	}
}
