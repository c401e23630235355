/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

package platform

const tabWidth = 8

// terminal is a scrolling character grid with a cursor. It handles CR,
// LF, BS and TAB and prints everything else.
type terminal struct {
	cols, rows int
	cells      [][]rune
	cx, cy     int
}

func newTerminal(cols, rows int) *terminal {
	t := &terminal{}
	t.resize(cols, rows)
	return t
}

func (t *terminal) resize(cols, rows int) {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	cells := make([][]rune, rows)
	for y := range cells {
		cells[y] = make([]rune, cols)
		for x := range cells[y] {
			cells[y][x] = ' '
		}
	}

	// Scroll up only as far as it takes to keep the cursor on screen.
	off := t.cy - (rows - 1)
	if off < 0 {
		off = 0
	}
	for y := range cells {
		if src := y + off; src >= 0 && src < len(t.cells) {
			copy(cells[y], t.cells[src])
		}
	}

	t.cy -= off
	t.cols, t.rows, t.cells = cols, rows, cells
	t.clampCursor()
}

func (t *terminal) clampCursor() {
	if t.cy < 0 {
		t.cy = 0
	}
	if t.cy >= t.rows {
		t.cy = t.rows - 1
	}
	if t.cx >= t.cols {
		t.cx = t.cols - 1
	}
}

func (t *terminal) scroll() {
	first := t.cells[0]
	copy(t.cells, t.cells[1:])
	for x := range first {
		first[x] = ' '
	}
	t.cells[t.rows-1] = first
}

func (t *terminal) newline() {
	if t.cy++; t.cy == t.rows {
		t.scroll()
		t.cy = t.rows - 1
	}
}

func (t *terminal) put(b byte) {
	switch b {
	case '\r':
		t.cx = 0
	case '\n':
		t.newline()
	case '\b':
		if t.cx > 0 {
			t.cx--
		}
	case '\t':
		t.cx = (t.cx/tabWidth + 1) * tabWidth
		if t.cx >= t.cols {
			t.cx = t.cols - 1
		}
	default:
		if b < 0x20 {
			return
		}
		if t.cx == t.cols {
			t.cx = 0
			t.newline()
		}
		t.cells[t.cy][t.cx] = Glyph(b)
		t.cx++
	}
}

func (t *terminal) line(y int) string {
	return string(t.cells[y])
}
