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

package pit

import (
	"testing"

	"github.com/jeffsponaugle/roscoe-sub002/hardware/pit"
)

type irqCounter struct{ raised []int }

func (c *irqCounter) GetInterrupt() (int, error) { return 0, nil }
func (c *irqCounter) IRQ(n int)                  { c.raised = append(c.raised, n) }

func TestPeriod(t *testing.T) {
	irqs := &irqCounter{}
	m := &Device{IRQ: 0, CPUClock: 10000000, InputClock: pit.DefaultInputClock, pic: irqs}

	m.Step(1000000)
	if len(irqs.raised) != 0 {
		t.Error("stopped timer fired")
	}

	// 100 Hz from a 1 MHz input clock is 100000 CPU cycles per tick.
	m.WriteByte(pit.RegDivisorHigh, 10000>>8)
	m.WriteByte(pit.RegDivisorLow, 10000&0xFF)
	m.WriteByte(pit.RegControl, pit.ControlEnable)
	if f := m.Frequency(); f != 100 {
		t.Errorf("frequency = %v", f)
	}

	m.Step(99999)
	if len(irqs.raised) != 0 {
		t.Error("fired early")
	}
	m.Step(1)
	if len(irqs.raised) != 1 || m.Ticks() != 1 {
		t.Errorf("raised %d, ticks %d", len(irqs.raised), m.Ticks())
	}

	m.Step(250000)
	if len(irqs.raised) != 2 || m.Ticks() != 3 {
		t.Errorf("raised %d, ticks %d", len(irqs.raised), m.Ticks())
	}

	if m.ReadByte(pit.RegDivisorHigh) != 10000>>8 || m.ReadByte(pit.RegDivisorLow) != 10000&0xFF {
		t.Error("divisor readback")
	}
}
