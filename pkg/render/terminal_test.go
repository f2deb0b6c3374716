package render

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/illum/orbitsim/pkg/orbit"
)

func TestTerminalRenderer_Circle(t *testing.T) {
	r := NewTerminalRenderer(41, 21)
	r.DrawOrbit(orbit.FromSemiMajorAxis(200))

	tests := []struct {
		name string
		x, y int
		want rune
	}{
		{"focus at centre", 20, 10, FocusGlyph},
		{"periapsis", 40, 10, PathGlyph},
		{"apoapsis", 0, 10, PathGlyph},
		{"top", 20, 0, PathGlyph},
		{"bottom", 20, 20, PathGlyph},
		{"inside", 25, 10, ' '},
		{"out of range", 41, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Cell(tt.x, tt.y); got != tt.want {
				t.Errorf("Cell(%d, %d) = %q, want %q", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestTerminalRenderer_Ellipse(t *testing.T) {
	shape, err := orbit.FromEccentricity(200, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	r := NewTerminalRenderer(41, 21)
	r.DrawOrbit(shape)

	if got := r.Cell(30, 10); got != FocusGlyph {
		t.Errorf("focus cell = %q, want %q", got, FocusGlyph)
	}
	if got := r.Cell(20, 10); got != ' ' {
		t.Errorf("centre cell = %q, want blank", got)
	}

	r.DrawBody(math.Pi / 2)
	if got := r.Cell(20, 10-int(math.Round(shape.B/(2*r.scale)))); got != BodyGlyph {
		t.Errorf("body not drawn at the top of the ellipse")
	}
}

func TestTerminalRenderer_Render(t *testing.T) {
	r := NewTerminalRenderer(10, 4)
	r.DrawOrbit(orbit.FromSemiMajorAxis(1))

	var buf bytes.Buffer
	if err := r.Render(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("got %d lines, want 6", len(lines))
	}
	if lines[0] != "+----------+" || lines[5] != lines[0] {
		t.Errorf("border = %q / %q", lines[0], lines[5])
	}
	for _, line := range lines[1:5] {
		if len(line) != 12 || line[0] != '|' || line[11] != '|' {
			t.Errorf("row %q is not framed", line)
		}
	}
}

func TestNewTerminalRenderer_MinimumSize(t *testing.T) {
	r := NewTerminalRenderer(0, -1)
	if r.width != 3 || r.height != 3 {
		t.Errorf("size = %dx%d, want 3x3", r.width, r.height)
	}
}
