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

// Package pit emulates the periodic interval timer that drives the BIOS
// tick counter. The timer counts emulated CPU cycles, so ticks follow
// emulated time rather than host time.
package pit

import (
	"sync"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/processor"
	"github.com/jeffsponaugle/roscoe-sub002/hardware/pit"
)

type Device struct {
	Base       memory.Pointer
	IRQ        int
	CPUClock   int // Hz
	InputClock int // Hz, defaults to DefaultInputClock

	lock    sync.Mutex
	pic     processor.InterruptController
	divisor uint16
	control byte
	period  int64 // CPU cycles per tick, 0 when stopped
	elapsed int64
	ticks   uint64
}

func (m *Device) Install(p processor.Processor) error {
	m.pic = p.GetInterruptController()
	if m.InputClock == 0 {
		m.InputClock = pit.DefaultInputClock
	}
	return p.InstallMemoryDevice(m, m.Base, m.Base+pit.NumRegisters-1)
}

func (m *Device) Name() string {
	return "Periodic Interval Timer"
}

func (m *Device) Reset() {
	m.lock.Lock()
	m.divisor, m.control = 0, 0
	m.period, m.elapsed, m.ticks = 0, 0, 0
	m.lock.Unlock()
}

func (m *Device) Step(cycles int) error {
	m.lock.Lock()
	if m.period == 0 {
		m.lock.Unlock()
		return nil
	}

	m.elapsed += int64(cycles)
	var fire bool
	for m.elapsed >= m.period {
		m.elapsed -= m.period
		m.ticks++
		fire = true
	}
	m.lock.Unlock()

	// Ticks that land in one step collapse into a single request, like a
	// latched interrupt line.
	if fire && m.pic != nil {
		m.pic.IRQ(m.IRQ)
	}
	return nil
}

// Ticks returns the number of timer periods elapsed since reset.
func (m *Device) Ticks() uint64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.ticks
}

// Frequency returns the programmed tick rate in Hz, 0 when stopped.
func (m *Device) Frequency() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.control&pit.ControlEnable == 0 || m.divisor == 0 {
		return 0
	}
	return float64(m.InputClock) / float64(m.divisor)
}

func (m *Device) recompute() {
	m.period = 0
	if m.control&pit.ControlEnable == 0 || m.divisor == 0 || m.InputClock == 0 {
		return
	}
	m.period = int64(m.CPUClock) * int64(m.divisor) / int64(m.InputClock)
	if m.period == 0 {
		m.period = 1
	}
}

func (m *Device) ReadByte(addr memory.Pointer) byte {
	m.lock.Lock()
	defer m.lock.Unlock()

	switch addr - m.Base {
	case pit.RegDivisorHigh:
		return byte(m.divisor >> 8)
	case pit.RegDivisorLow:
		return byte(m.divisor)
	case pit.RegControl:
		return m.control
	}
	return 0xFF
}

func (m *Device) WriteByte(addr memory.Pointer, data byte) {
	m.lock.Lock()
	defer m.lock.Unlock()

	switch addr - m.Base {
	case pit.RegDivisorHigh:
		m.divisor = (m.divisor & 0x00FF) | uint16(data)<<8
	case pit.RegDivisorLow:
		m.divisor = (m.divisor & 0xFF00) | uint16(data)
	case pit.RegControl:
		m.control = data
		m.elapsed = 0
	default:
		return
	}
	m.recompute()
}
