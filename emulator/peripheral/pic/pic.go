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

// Package pic emulates the Roscoe interrupt request latch. Peripherals
// raise numbered lines and the controller hands out vectors, highest line
// first, to match 68030 priority ordering.
package pic

import (
	"errors"
	"sync"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/processor"
	"github.com/jeffsponaugle/roscoe-sub002/hardware/pic"
)

var ErrNoInterrupts = errors.New("no interrupts")

type Device struct {
	Base memory.Pointer

	lock sync.Mutex
	maskReg, requestReg, serviceReg,
	vectorBase byte
}

func (m *Device) Install(p processor.Processor) error {
	m.vectorBase = pic.DefaultVectorBase
	return p.InstallMemoryDevice(m, m.Base, m.Base+pic.NumRegisters-1)
}

func (m *Device) Name() string {
	return "Interrupt Controller"
}

func (m *Device) Reset() {
	m.lock.Lock()
	m.maskReg, m.requestReg, m.serviceReg = 0, 0, 0
	m.vectorBase = pic.DefaultVectorBase
	m.lock.Unlock()
}

func (m *Device) Step(int) error {
	return nil
}

func (m *Device) GetInterrupt() (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	has := m.requestReg & (^m.maskReg)
	if has == 0 {
		return 0, ErrNoInterrupts
	}
	for i := pic.NumLines - 1; i >= 0; i-- {
		if (has>>i)&1 != 0 {
			m.requestReg ^= 1 << i
			m.serviceReg |= 1 << i
			return int(m.vectorBase) + i, nil
		}
	}
	return 0, ErrNoInterrupts
}

func (m *Device) IRQ(n int) {
	if n < 0 || n >= pic.NumLines {
		return
	}
	m.lock.Lock()
	m.requestReg |= byte(1 << n)
	m.lock.Unlock()
}

func (m *Device) ReadByte(addr memory.Pointer) byte {
	m.lock.Lock()
	defer m.lock.Unlock()

	switch addr - m.Base {
	case pic.RegPending:
		return m.requestReg
	case pic.RegMask:
		return m.maskReg
	case pic.RegVectorBase:
		return m.vectorBase
	case pic.RegAcknowledge:
		return m.serviceReg
	}
	return 0xFF
}

func (m *Device) WriteByte(addr memory.Pointer, data byte) {
	m.lock.Lock()
	defer m.lock.Unlock()

	switch addr - m.Base {
	case pic.RegMask:
		m.maskReg = data
	case pic.RegVectorBase:
		m.vectorBase = data
	case pic.RegAcknowledge:
		// End of interrupt for every line set in data.
		m.serviceReg &^= data
	}
}
