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

import (
	"fmt"
	"log"
)

// Pointer is a 32-bit 68030 physical address.
type Pointer uint32

func (p Pointer) String() string {
	return fmt.Sprintf("0x%08X", uint32(p))
}

type Memory interface {
	ReadByte(addr Pointer) byte
	WriteByte(addr Pointer, data byte)
}

// WordMemory is implemented by devices that must see 16-bit accesses as a
// single bus cycle, such as a disk data register.
type WordMemory interface {
	ReadWord(addr Pointer) uint16
	WriteWord(addr Pointer, data uint16)
}

// BlockIO moves a whole block through a single 16-bit register. Data is
// stored little-endian, two bytes per register word.
type BlockIO interface {
	ReadBlock(addr Pointer, dst []byte)
	WriteBlock(addr Pointer, src []byte)
}

type DummyMemory struct{}

func (m *DummyMemory) ReadByte(addr Pointer) byte {
	log.Printf("reading unmapped memory: %v", addr)
	return 0xFF
}

func (m *DummyMemory) WriteByte(addr Pointer, data byte) {
	log.Printf("writing unmapped memory: %v", addr)
}

// Window addresses device registers as offsets from a base address.
type Window struct {
	Mem  Memory
	Base Pointer
}

func NewWindow(mem Memory, base Pointer) *Window {
	return &Window{Mem: mem, Base: base}
}

func (w *Window) ReadReg(offset uint8) byte {
	return w.Mem.ReadByte(w.Base + Pointer(offset))
}

func (w *Window) WriteReg(offset uint8, data byte) {
	w.Mem.WriteByte(w.Base+Pointer(offset), data)
}

func (w *Window) ReadWord(offset uint8) uint16 {
	addr := w.Base + Pointer(offset)
	if wm, ok := w.Mem.(WordMemory); ok {
		return wm.ReadWord(addr)
	}
	return uint16(w.Mem.ReadByte(addr))<<8 | uint16(w.Mem.ReadByte(addr+1))
}

func (w *Window) WriteWord(offset uint8, data uint16) {
	addr := w.Base + Pointer(offset)
	if wm, ok := w.Mem.(WordMemory); ok {
		wm.WriteWord(addr, data)
		return
	}
	w.Mem.WriteByte(addr, byte(data>>8))
	w.Mem.WriteByte(addr+1, byte(data))
}

// BlockIO reports whether the window can move blocks in one call.
func (w *Window) BlockIO() bool {
	_, ok := w.Mem.(BlockIO)
	return ok
}

func (w *Window) ReadBlock(offset uint8, dst []byte) {
	addr := w.Base + Pointer(offset)
	if b, ok := w.Mem.(BlockIO); ok {
		b.ReadBlock(addr, dst)
		return
	}
	for i := 0; i+1 < len(dst); i += 2 {
		v := w.ReadWord(offset)
		dst[i], dst[i+1] = byte(v), byte(v>>8)
	}
}

func (w *Window) WriteBlock(offset uint8, src []byte) {
	addr := w.Base + Pointer(offset)
	if b, ok := w.Mem.(BlockIO); ok {
		b.WriteBlock(addr, src)
		return
	}
	for i := 0; i+1 < len(src); i += 2 {
		w.WriteWord(offset, uint16(src[i])|uint16(src[i+1])<<8)
	}
}
