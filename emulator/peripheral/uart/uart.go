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

// Package uart emulates a 16550 UART on the Roscoe memory map. Transmitted
// characters leave the FIFO at the baud rate programmed into the divisor
// latch, measured in emulated CPU cycles.
package uart

import (
	"math"
	"sync"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/processor"
	"github.com/jeffsponaugle/roscoe-sub002/hardware/ns16550"
	"github.com/jeffsponaugle/roscoe-sub002/status"
)

type fifo struct {
	buf                     [ns16550.FIFOSize]byte
	head, tail, count, size int
}

func (f *fifo) reset(size int) {
	*f = fifo{size: size}
}

func (f *fifo) full() bool {
	return f.count >= f.size
}

func (f *fifo) push(b byte) bool {
	if f.full() {
		return false
	}
	f.buf[f.head] = b
	f.head = (f.head + 1) % f.size
	f.count++
	return true
}

// pop returns the byte at the tail. An empty FIFO leaves its indices alone
// and returns whatever the slot last held.
func (f *fifo) pop() byte {
	b := f.buf[f.tail]
	if f.count > 0 {
		f.tail = (f.tail + 1) % f.size
		f.count--
	}
	return b
}

type Device struct {
	Base     memory.Pointer
	IRQ      int
	CPUClock int // Hz
	Clock    int // UART input clock in Hz, defaults to ns16550.DefaultClock

	// DataTX receives every character once it has left the transmitter.
	DataTX func(byte)
	// OnOut2 is told about every change of the MCR OUT2 line, which drives
	// the front panel LED.
	OnOut2 func(bool)

	lock sync.Mutex
	pic  processor.InterruptController

	ier, lcr, mcr, scr, fcr byte
	divisor                 uint16
	lineErrors              byte

	rx, tx    fifo
	rxTrigger int
	wire      []byte

	charCycles                int32
	clockTimer, rxIdle, rxGap int32

	threPending, rxPending, rxTimeoutPending bool
}

func (m *Device) Install(p processor.Processor) error {
	m.pic = p.GetInterruptController()
	if m.Clock == 0 {
		m.Clock = ns16550.DefaultClock
	}
	m.Reset()
	return p.InstallMemoryDevice(m, m.Base, m.Base+ns16550.NumRegisters-1)
}

func (m *Device) Name() string {
	return "16550 UART"
}

func (m *Device) Reset() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.ier, m.lcr, m.mcr, m.scr, m.fcr = 0, 0, 0, 0, 0
	m.divisor, m.lineErrors = 0, 0
	m.rx.reset(1)
	m.tx.reset(1)
	m.rxTrigger = 1
	m.wire = nil
	m.charCycles, m.clockTimer, m.rxIdle, m.rxGap = 0, 0, 0, 0
	m.threPending, m.rxPending, m.rxTimeoutPending = false, false, false
}

// Divisor returns the value held in the divisor latch.
func (m *Device) Divisor() uint16 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.divisor
}

// CharacterCycles returns the number of CPU cycles one character occupies
// on the wire, 0 while the divisor latch is zero.
func (m *Device) CharacterCycles() int32 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.charCycles
}

func (m *Device) recomputeClock() {
	m.charCycles = 0
	if m.divisor == 0 || m.Clock == 0 {
		return
	}
	halfBits := int64(ns16550.FrameHalfBits(m.lcr))
	c := int64(m.CPUClock) * halfBits * 16 * int64(m.divisor) / (2 * int64(m.Clock))
	switch {
	case c > math.MaxInt32:
		c = math.MaxInt32
	case c < 1:
		c = 1
	}
	m.charCycles = int32(c)
}

func (m *Device) interruptPending() bool {
	rx := (m.rxPending || m.rxTimeoutPending) && m.ier&ns16550.IERReceiveData != 0
	return rx || (m.threPending && m.ier&ns16550.IERTransmitEmpty != 0)
}

func (m *Device) raise(pending bool) {
	if pending && m.pic != nil {
		m.pic.IRQ(m.IRQ)
	}
}

// RXData places a byte straight into the receive FIFO, as if it had just
// finished arriving. A full FIFO drops the byte and flags an overrun.
func (m *Device) RXData(data byte) {
	m.lock.Lock()
	m.receive(data)
	pending := m.interruptPending()
	m.lock.Unlock()
	m.raise(pending)
}

func (m *Device) receive(data byte) {
	if !m.rx.push(data) {
		m.lineErrors |= ns16550.LSROverrun
		return
	}
	m.rxIdle = 0
	m.rxTimeoutPending = false
	if m.rx.count >= m.rxTrigger && m.ier&ns16550.IERReceiveData != 0 {
		m.rxPending = true
	}
}

// Receive queues bytes on the incoming wire. They enter the receive FIFO
// one character time apart during Step.
func (m *Device) Receive(data []byte) {
	m.lock.Lock()
	m.wire = append(m.wire, data...)
	m.lock.Unlock()
}

// RXSpace reports how many more bytes the receive FIFO accepts.
func (m *Device) RXSpace() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.rx.size - m.rx.count
}

// InterruptPending reports whether the UART is asserting its IRQ line.
func (m *Device) InterruptPending() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.interruptPending()
}

func (m *Device) Step(cycles int) error {
	var sent []byte

	m.lock.Lock()

	if m.tx.count > 0 && m.charCycles > 0 {
		// A character leaves once the timer goes negative, one cycle after
		// a full character time.
		m.clockTimer -= int32(cycles)
		for m.clockTimer < 0 {
			sent = append(sent, m.tx.pop())
			if m.tx.count > 0 {
				m.clockTimer += m.charCycles
				continue
			}
			if m.ier&ns16550.IERTransmitEmpty != 0 {
				m.threPending = true
			}
			m.clockTimer = 0
			break
		}
	}

	// In loopback the transmitter feeds the receiver and nothing reaches
	// the line.
	if m.mcr&ns16550.MCRLoopback != 0 {
		for _, b := range sent {
			m.receive(b)
		}
		sent = nil
	}

	if m.charCycles > 0 {
		if len(m.wire) > 0 {
			m.rxGap += int32(cycles)
			for len(m.wire) > 0 && m.rxGap >= m.charCycles {
				m.rxGap -= m.charCycles
				m.receive(m.wire[0])
				m.wire = m.wire[1:]
			}
			if len(m.wire) == 0 {
				m.rxGap = 0
			}
		}

		// Data sitting below the trigger level for four character times
		// raises the FIFO timeout interrupt.
		if m.rx.count > 0 && m.rx.count < m.rxTrigger {
			m.rxIdle += int32(cycles)
			if m.rxIdle >= 4*m.charCycles && m.ier&ns16550.IERReceiveData != 0 {
				m.rxTimeoutPending = true
			}
		}
	}

	pending := m.interruptPending()
	tx := m.DataTX
	m.lock.Unlock()

	if tx != nil {
		for _, b := range sent {
			tx(b)
		}
	}
	m.raise(pending)
	return nil
}

func (m *Device) ReadByte(addr memory.Pointer) byte {
	m.lock.Lock()
	defer m.lock.Unlock()

	dlab := m.lcr&ns16550.LCRDLAB != 0

	switch addr - m.Base {
	case ns16550.RegData:
		if dlab {
			return byte(m.divisor)
		}
		b := m.rx.pop()
		if m.rx.count < m.rxTrigger {
			m.rxPending = false
		}
		m.rxTimeoutPending = false
		m.rxIdle = 0
		return b
	case ns16550.RegIER:
		if dlab {
			return byte(m.divisor >> 8)
		}
		return m.ier
	case ns16550.RegIIR:
		var fifoBits byte
		if m.fcr&ns16550.FCREnable != 0 {
			fifoBits = ns16550.IIRFIFOEnabled
		}
		if m.ier&ns16550.IERReceiveData != 0 {
			if m.rxPending {
				return ns16550.IIRReceiveData | fifoBits
			}
			if m.rxTimeoutPending {
				return ns16550.IIRTimeout | fifoBits
			}
		}
		if m.threPending && m.ier&ns16550.IERTransmitEmpty != 0 {
			m.threPending = false
			return ns16550.IIRTransmitEmpty | fifoBits
		}
		return ns16550.IIRNoInterrupt | fifoBits
	case ns16550.RegLCR:
		return m.lcr
	case ns16550.RegMCR:
		return m.mcr
	case ns16550.RegLSR:
		lsr := m.lineErrors
		m.lineErrors = 0
		if m.rx.count > 0 {
			lsr |= ns16550.LSRDataReady
		}
		if m.tx.count == 0 {
			lsr |= ns16550.LSRTHREmpty | ns16550.LSRTxEmpty
		}
		return lsr
	case ns16550.RegMSR:
		return ns16550.MSRDCD | ns16550.MSRDSR | ns16550.MSRCTS
	case ns16550.RegSCR:
		return m.scr
	}
	return 0xFF
}

func (m *Device) WriteByte(addr memory.Pointer, data byte) {
	m.lock.Lock()

	var out2Changed bool
	dlab := m.lcr&ns16550.LCRDLAB != 0

	switch reg := addr - m.Base; reg {
	case ns16550.RegSCR:
		m.scr = data
	case ns16550.RegLCR:
		m.lcr = data
		m.recomputeClock()
	case ns16550.RegIIR:
		m.fcr = data & ns16550.FCRValidMask
		depth := 1
		m.rxTrigger = 1
		if m.fcr&ns16550.FCREnable != 0 {
			depth = ns16550.FIFOSize
			m.rxTrigger = ns16550.TriggerLevel(m.fcr)
		}
		m.rx.reset(depth)
		m.tx.reset(depth)
		m.clockTimer, m.rxIdle = 0, 0
		m.rxPending, m.rxTimeoutPending = false, false
	case ns16550.RegData:
		if dlab {
			m.divisor = (m.divisor & 0xFF00) | uint16(data)
			m.recomputeClock()
			break
		}
		if m.tx.push(data) {
			m.threPending = false
			if m.tx.count == 1 {
				m.clockTimer = m.charCycles
			}
		}
	case ns16550.RegIER:
		if dlab {
			m.divisor = (m.divisor & 0x00FF) | uint16(data)<<8
			m.recomputeClock()
			break
		}
		m.ier = data & 0x0F
	case ns16550.RegMCR:
		out2Changed = (m.mcr^data)&ns16550.MCROut2 != 0
		m.mcr = data
	default:
		m.lock.Unlock()
		status.Unreachable("uart", "write 0x%02X to register %d", data, reg)
		return
	}

	led, on := m.OnOut2, data&ns16550.MCROut2 != 0
	m.lock.Unlock()

	if out2Changed && led != nil {
		led(on)
	}
}
