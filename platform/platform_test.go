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

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

func TestGlyph(t *testing.T) {
	tests := []struct {
		in   byte
		want rune
	}{
		{'A', 'A'},
		{0x0A, ' '},
		{0x7F, ' '},
		{0x80, 'Ç'},
		{0xB0, '░'},
		{0xDB, '█'},
		{0xE1, 'ß'},
		{0xFE, '■'},
	}
	for _, tt := range tests {
		if got := Glyph(tt.in); got != tt.want {
			t.Errorf("Glyph(0x%02X) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func write(t *terminal, s string) {
	for i := 0; i < len(s); i++ {
		t.put(s[i])
	}
}

func TestTerminal(t *testing.T) {
	t.Run("Fresh", func(t *testing.T) {
		tm := newTerminal(10, 3)
		if tm.cx != 0 || tm.cy != 0 {
			t.Fatalf("cursor = %d,%d", tm.cx, tm.cy)
		}
		tm.put('A')
		if tm.line(0) != "A         " || tm.line(2) != "          " {
			t.Errorf("lines = %q %q", tm.line(0), tm.line(2))
		}
	})

	t.Run("Controls", func(t *testing.T) {
		tm := newTerminal(10, 3)
		write(tm, "abc\rX\tY\b\bZ")
		if got := strings.TrimRight(tm.line(0), " "); got != "Xbc    ZY" {
			t.Errorf("line 0 = %q", got)
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		tm := newTerminal(4, 3)
		write(tm, "abcdef")
		if tm.line(0) != "abcd" || tm.line(1) != "ef  " {
			t.Errorf("lines = %q %q", tm.line(0), tm.line(1))
		}
		if tm.cx != 2 || tm.cy != 1 {
			t.Errorf("cursor = %d,%d", tm.cx, tm.cy)
		}
	})

	t.Run("Scroll", func(t *testing.T) {
		tm := newTerminal(4, 2)
		write(tm, "1\r\n2\r\n3")
		if tm.line(0) != "2   " || tm.line(1) != "3   " {
			t.Errorf("lines = %q %q", tm.line(0), tm.line(1))
		}
	})

	t.Run("Resize", func(t *testing.T) {
		tm := newTerminal(4, 3)
		write(tm, "1\r\n2\r\n3")
		tm.resize(6, 2)
		if tm.line(0) != "2     " || tm.line(1) != "3     " {
			t.Errorf("lines = %q %q", tm.line(0), tm.line(1))
		}
		if tm.cy != 1 {
			t.Errorf("cursor row = %d", tm.cy)
		}

		tm.resize(6, 4)
		if tm.line(0) != "2     " || tm.line(1) != "3     " || tm.cy != 1 {
			t.Errorf("grown lines = %q %q, cursor row %d", tm.line(0), tm.line(1), tm.cy)
		}
	})
}

func TestRawConsole(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("hi\x1dignored")
	p := newRawConsole(in, &out)

	var got []byte
	p.SetInputHandler(func(b byte) { got = append(got, b) })
	p.Write('o')
	p.Write('k')

	quit := false
	if err := p.Run(func() { quit = true }); err != nil {
		t.Fatal(err)
	}
	p.Close()

	if string(got) != "hi" {
		t.Errorf("input = %q", got)
	}
	if !quit {
		t.Error("quit not called")
	}
	if out.String() != "ok" {
		t.Errorf("output = %q", out.String())
	}
}

func TestRawConsoleCloseReleasesReader(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	var out bytes.Buffer
	p := newRawConsole(r, &out)
	done := make(chan error, 1)
	go func() { done <- p.Run(nil) }()

	p.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	select {
	case <-p.readerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("reader still blocked after Close")
	}
}
