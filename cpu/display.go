package cpu

import (
	"strings"
)

const (
	SCREEN_WIDTH  = 64
	SCREEN_HEIGHT = 32
)

// Display is the monochrome frame buffer, row-major, indexed x + SCREEN_WIDTH*y.
type Display [SCREEN_WIDTH * SCREEN_HEIGHT]bool

// Clear turns every pixel off.
func (d *Display) Clear() {
	clear(d[:])
}

// Pixel reports whether the pixel at (x, y) is lit. Coordinates wrap.
func (d *Display) Pixel(x, y int) bool {
	return d[d.index(x, y)]
}

func (d *Display) index(x, y int) int {
	x %= SCREEN_WIDTH
	if x < 0 {
		x += SCREEN_WIDTH
	}
	y %= SCREEN_HEIGHT
	if y < 0 {
		y += SCREEN_HEIGHT
	}
	return x + SCREEN_WIDTH*y
}

// Draw XORs an 8 pixel wide sprite, one byte per row with the MSB leftmost,
// onto the display at (x, y). Sprites wrap around the screen edges.
// Returns true if any lit pixel was turned off.
func (d *Display) Draw(x, y int, sprite []byte) (collision bool) {
	for row, bits := range sprite {
		for col := range 8 {
			if bits&(0x80>>col) == 0 {
				continue
			}
			idx := d.index(x+col, y+row)
			collision = collision || d[idx]
			d[idx] = !d[idx]
		}
	}

	return
}

// Lit returns the number of lit pixels.
func (d *Display) Lit() (count int) {
	for _, on := range d {
		if on {
			count++
		}
	}
	return
}

// String renders the display as SCREEN_HEIGHT lines of '#' and '.'.
func (d *Display) String() string {
	var sb strings.Builder
	sb.Grow((SCREEN_WIDTH + 1) * SCREEN_HEIGHT)
	for y := range SCREEN_HEIGHT {
		for x := range SCREEN_WIDTH {
			if d[x+SCREEN_WIDTH*y] {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
