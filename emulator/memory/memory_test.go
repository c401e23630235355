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

package memory

import "testing"

type flat [16]byte

func (f *flat) ReadByte(addr Pointer) byte        { return f[addr] }
func (f *flat) WriteByte(addr Pointer, data byte) { f[addr] = data }

type fifoReg struct {
	words []uint16
	out   []uint16
}

func (r *fifoReg) ReadByte(Pointer) byte         { return 0 }
func (r *fifoReg) WriteByte(Pointer, byte)       {}
func (r *fifoReg) WriteWord(_ Pointer, v uint16) { r.out = append(r.out, v) }

func (r *fifoReg) ReadWord(Pointer) uint16 {
	v := r.words[0]
	r.words = r.words[1:]
	return v
}

func TestWindow(t *testing.T) {
	var mem flat
	w := NewWindow(&mem, 4)

	w.WriteReg(1, 0xAB)
	if mem[5] != 0xAB || w.ReadReg(1) != 0xAB {
		t.Error("register offset")
	}
	w.WriteWord(2, 0x1234)
	if mem[6] != 0x12 || mem[7] != 0x34 {
		t.Error("word split is not big-endian")
	}
	if w.BlockIO() {
		t.Error("flat memory claims block transfers")
	}
}

func TestWindowBlock(t *testing.T) {
	reg := &fifoReg{words: []uint16{0x0201, 0x0403}}
	w := NewWindow(reg, 0)

	buf := make([]byte, 4)
	w.ReadBlock(0, buf)
	if string(buf) != "\x01\x02\x03\x04" {
		t.Errorf("block read % X", buf)
	}

	w.WriteBlock(0, []byte{0xAA, 0xBB})
	if len(reg.out) != 1 || reg.out[0] != 0xBBAA {
		t.Errorf("block write %v", reg.out)
	}
}

func TestPointer(t *testing.T) {
	if s := Pointer(0xFE001000).String(); s != "0xFE001000" {
		t.Error(s)
	}
}
