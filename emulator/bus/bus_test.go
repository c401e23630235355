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

package bus

import (
	"errors"
	"testing"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral/pic"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/processor"
)

type testDevice struct {
	peripheral.NullDevice
	base, size memory.Pointer
	mem        map[memory.Pointer]byte
	irq        int
	steps      int
	pic        processor.InterruptController
}

func (d *testDevice) Install(p processor.Processor) error {
	d.mem = make(map[memory.Pointer]byte)
	d.pic = p.GetInterruptController()
	return p.InstallMemoryDevice(d, d.base, d.base+d.size-1)
}

func (d *testDevice) Step(int) error {
	if d.steps++; d.irq >= 0 {
		d.pic.IRQ(d.irq)
	}
	return nil
}

func (d *testDevice) ReadByte(addr memory.Pointer) byte        { return d.mem[addr] }
func (d *testDevice) WriteByte(addr memory.Pointer, data byte) { d.mem[addr] = data }

type vectors []int

func (v *vectors) HandleInterrupt(vector int) error {
	*v = append(*v, vector)
	return nil
}

func TestMapping(t *testing.T) {
	a := &testDevice{base: 0x1000, size: 0x100, irq: -1}
	b := &testDevice{base: 0x3000, size: 0x10, irq: -1}
	open := &peripheral.OpenBus{Base: 0x8000, Size: 0x1000}
	bus, errs := New([]peripheral.Peripheral{&pic.Device{Base: 0xF000}, b, a, open})
	if len(errs) > 0 {
		t.Fatal(errs[0])
	}

	bus.WriteByte(0x10FF, 1)
	bus.WriteByte(0x3000, 2)
	if a.mem[0x10FF] != 1 || b.mem[0x3000] != 2 {
		t.Error("write went to the wrong device")
	}
	if _, ok := bus.GetMappedMemoryDevice(0x2000).(*memory.DummyMemory); !ok {
		t.Error("hole is mapped")
	}
	if v := bus.ReadByte(0x2000); v != 0xFF {
		t.Errorf("unmapped read = %02X", v)
	}
	if bus.GetMappedMemoryDevice(0x8FFF) != open || bus.ReadWord(0x8800) != 0xFFFF {
		t.Error("open bus window")
	}

	bus.WriteWord(0x1010, 0x1234)
	if a.mem[0x1010] != 0x12 || a.mem[0x1011] != 0x34 {
		t.Error("byte device word access is not big-endian")
	}

	if err := bus.InstallMemoryDevice(a, 0x10F0, 0x1100); !errors.Is(err, ErrOverlap) {
		t.Errorf("overlap: %v", err)
	}

	if st := bus.GetStats(); st.RX == 0 || st.TX == 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestStepDispatch(t *testing.T) {
	d := &testDevice{base: 0x1000, size: 1, irq: 3}
	bus, _ := New([]peripheral.Peripheral{&pic.Device{Base: 0xF000}, d})

	if err := bus.Interrupt(67); !errors.Is(err, processor.ErrInterruptNotHandled) {
		t.Errorf("no handler: %v", err)
	}

	var got vectors
	bus.InstallInterruptHandler(&got)
	bus.Step(100)
	bus.Step(100)

	if d.steps != 2 || len(got) != 2 || got[0] != 67 {
		t.Errorf("steps %d vectors %v", d.steps, got)
	}
}
