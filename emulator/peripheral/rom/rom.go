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

// Package rom maps a read-only image, normally the monitor, into the
// address space.
package rom

import (
	"errors"
	"io"
	"io/ioutil"
	"log"

	"github.com/spf13/afero"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/processor"
)

var ErrEmpty = errors.New("empty rom image")

type Device struct {
	Base    memory.Pointer
	RomName string

	// The image comes from Reader, or Path on Fs when Reader is nil.
	Reader io.Reader
	Fs     afero.Fs
	Path   string

	mem []byte
}

func (m *Device) Install(p processor.Processor) error {
	var err error
	if m.Reader != nil {
		m.mem, err = ioutil.ReadAll(m.Reader)
	} else {
		if m.Fs == nil {
			m.Fs = afero.NewOsFs()
		}
		m.mem, err = afero.ReadFile(m.Fs, m.Path)
	}
	if err != nil {
		return err
	}
	if len(m.mem) == 0 {
		return ErrEmpty
	}
	if len(m.mem)%2 != 0 {
		m.mem = append(m.mem, 0xFF)
	}
	if m.RomName == "" {
		m.RomName = "ROM"
	}
	return p.InstallMemoryDevice(m, m.Base, m.Base+memory.Pointer(len(m.mem)-1))
}

func (m *Device) Name() string {
	return m.RomName
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
	log.Printf("write to %s ignored: %v <- 0x%X", m.RomName, addr, data)
}

func (m *Device) ReadWord(addr memory.Pointer) uint16 {
	i := addr - m.Base
	return uint16(m.mem[i])<<8 | uint16(m.mem[i+1])
}

func (m *Device) WriteWord(addr memory.Pointer, data uint16) {
	m.WriteByte(addr, byte(data>>8))
}
