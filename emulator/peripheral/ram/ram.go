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

// Package ram is the Roscoe main memory, a flat big-endian array.
package ram

import (
	"crypto/rand"
	"errors"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/processor"
)

const DefaultSize = 16 << 20

var ErrSize = errors.New("ram size must be a non-zero multiple of 4")

type Device struct {
	Base  memory.Pointer
	Size  int
	Clear bool

	mem []byte
}

func (m *Device) Install(p processor.Processor) error {
	if m.Size == 0 {
		m.Size = DefaultSize
	}
	if m.Size < 0 || m.Size%4 != 0 {
		return ErrSize
	}
	m.mem = make([]byte, m.Size)
	if !m.Clear {
		rand.Read(m.mem) // Scramble memory.
	}
	return p.InstallMemoryDevice(m, m.Base, m.Base+memory.Pointer(m.Size-1))
}

func (m *Device) Name() string {
	return "RAM"
}

func (m *Device) Reset() {
}

func (m *Device) Step(int) error {
	return nil
}

func (m *Device) ReadByte(addr memory.Pointer) byte {
	return m.mem[addr-m.Base]
}

func (m *Device) WriteByte(addr memory.Pointer, data byte) {
	m.mem[addr-m.Base] = data
}

func (m *Device) ReadWord(addr memory.Pointer) uint16 {
	i := addr - m.Base
	return uint16(m.mem[i])<<8 | uint16(m.mem[i+1])
}

func (m *Device) WriteWord(addr memory.Pointer, data uint16) {
	i := addr - m.Base
	m.mem[i], m.mem[i+1] = byte(data>>8), byte(data)
}
