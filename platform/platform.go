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

// Package platform holds the host consoles that stand in for a terminal
// on the first serial port.
package platform

import "golang.org/x/text/encoding/charmap"

// Console shows what the machine transmits and feeds typed bytes back.
type Console interface {
	Write(b byte)
	SetLED(on bool)
	SetStatus(s string)
	SetInputHandler(h func(byte))

	// Run blocks until the user quits or Close is called. quit runs
	// once when the user asks to leave.
	Run(quit func()) error
	Close()
}

// Glyph maps a received byte to the character a CP437 terminal shows.
func Glyph(b byte) rune {
	if b < 0x20 || b == 0x7F {
		return ' '
	}
	return charmap.CodePage437.DecodeByte(b)
}
