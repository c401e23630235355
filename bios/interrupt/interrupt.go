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

// Package interrupt is the BIOS vector table. Handlers run on whatever
// goroutine delivers the interrupt.
package interrupt

import (
	"sync"

	"github.com/jeffsponaugle/roscoe-sub002/hardware/pic"
	"github.com/jeffsponaugle/roscoe-sub002/status"
)

const NumVectors = 256

type Handler func()

// Registers is the interrupt controller register file.
type Registers interface {
	ReadReg(offset uint8) byte
	WriteReg(offset uint8, data byte)
}

type Table struct {
	lock       sync.RWMutex
	handlers   [NumVectors]Handler
	regs       Registers
	vectorBase int
	mask       byte
	spurious   uint32
}

// New returns a table attached to the controller at regs, which may be
// nil. All request lines start masked.
func New(regs Registers) *Table {
	t := &Table{regs: regs, vectorBase: pic.DefaultVectorBase, mask: 0xFF}
	if regs != nil {
		regs.WriteReg(pic.RegMask, t.mask)
		regs.WriteReg(pic.RegVectorBase, byte(t.vectorBase))
	}
	return t
}

// Vector returns the vector number request line is delivered on.
func (t *Table) Vector(line int) int {
	return t.vectorBase + line
}

func (t *Table) Hook(vector int, h Handler) error {
	if vector < 0 || vector >= NumVectors || h == nil {
		return status.ErrInterruptVectorUnknown
	}
	t.lock.Lock()
	t.handlers[vector] = h
	t.lock.Unlock()
	return nil
}

func (t *Table) Unhook(vector int) error {
	if vector < 0 || vector >= NumVectors {
		return status.ErrInterruptVectorUnknown
	}
	t.lock.Lock()
	t.handlers[vector] = nil
	t.lock.Unlock()
	return nil
}

// MaskSet masks or unmasks a controller request line.
func (t *Table) MaskSet(line int, masked bool) error {
	if line < 0 || line >= pic.NumLines {
		return status.ErrInterruptVectorUnknown
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if masked {
		t.mask |= 1 << uint(line)
	} else {
		t.mask &^= 1 << uint(line)
	}
	if t.regs != nil {
		t.regs.WriteReg(pic.RegMask, t.mask)
	}
	return nil
}

// Masked reports whether line is currently masked.
func (t *Table) Masked(line int) bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return line < 0 || line >= pic.NumLines || t.mask&(1<<uint(line)) != 0
}

// Spurious returns the number of interrupts that arrived on empty vectors.
func (t *Table) Spurious() uint32 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.spurious
}

func (t *Table) HandleInterrupt(vector int) error {
	if vector < 0 || vector >= NumVectors {
		return status.ErrInterruptVectorUnknown
	}

	t.lock.RLock()
	h := t.handlers[vector]
	t.lock.RUnlock()

	if h == nil {
		t.lock.Lock()
		t.spurious++
		t.lock.Unlock()
		return status.ErrInterruptVectorUnknown
	}

	h()
	if line := vector - t.vectorBase; t.regs != nil && line >= 0 && line < pic.NumLines {
		t.regs.WriteReg(pic.RegAcknowledge, 1<<uint(line))
	}
	return nil
}
