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

package emulator

import (
	"os"
	"testing"

	"github.com/spf13/afero"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral/ide"
	"github.com/jeffsponaugle/roscoe-sub002/hardware/ns16550"
	"github.com/jeffsponaugle/roscoe-sub002/hardware/pit"
)

type fakeCore struct {
	vectors []int
	resets  int
}

func (c *fakeCore) Reset()                          { c.resets++ }
func (c *fakeCore) Execute(cycles int) (int, error) { return cycles, nil }
func (c *fakeCore) Interrupt(vector int)            { c.vectors = append(c.vectors, vector) }

func TestMachine(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/monitor.bin", []byte{0x4E, 0x71, 0x4E, 0x75}, 0644)
	afero.WriteFile(fs, "/hd0.img", make([]byte, 100*512), 0644)

	var sent []byte
	core := &fakeCore{}
	m, err := New(Config{
		CPUClock: 1000000,
		RAMSize:  4096,
		Fs:       fs,
		ROMPath:  "/monitor.bin",
		Disks:    [2]string{"/hd0.img"},
		DataTX:   [2]func(byte){func(b byte) { sent = append(sent, b) }},
		Core:     core,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if core.resets != 1 {
		t.Errorf("core reset %d times", core.resets)
	}

	t.Run("Expansion", func(t *testing.T) {
		if v := m.Bus.ReadByte(ExpansionBase + 0x42); v != 0xFF {
			t.Errorf("empty slot reads 0x%02X", v)
		}
	})

	t.Run("ROM", func(t *testing.T) {
		if v := m.Bus.ReadWord(ROMBase); v != 0x4E71 {
			t.Errorf("reset vector word = 0x%04X", v)
		}
	})

	t.Run("TimerVector", func(t *testing.T) {
		w := m.Window(PITBase)
		w.WriteReg(pit.RegDivisorHigh, 10000>>8)
		w.WriteReg(pit.RegDivisorLow, 10000&0xFF)
		w.WriteReg(pit.RegControl, pit.ControlEnable)

		m.Step(9999)
		if len(core.vectors) != 0 {
			t.Fatalf("early vectors %v", core.vectors)
		}
		m.Step(1)
		if len(core.vectors) != 1 || core.vectors[0] != 64+LineTimer {
			t.Errorf("vectors = %v", core.vectors)
		}
		if m.Cycles() != 10000 {
			t.Errorf("cycles = %d", m.Cycles())
		}
	})

	t.Run("Console", func(t *testing.T) {
		w := m.Window(UART0Base)
		w.WriteReg(ns16550.RegLCR, ns16550.LCRDLAB|0x03)
		w.WriteReg(ns16550.RegData, 1)
		w.WriteReg(ns16550.RegIER, 0)
		w.WriteReg(ns16550.RegLCR, 0x03)
		w.WriteReg(ns16550.RegData, 'R')
		m.Step(1000)
		if string(sent) != "R" {
			t.Errorf("sent = %q", sent)
		}
	})

	t.Run("Disk", func(t *testing.T) {
		if err := m.IDE.Insert(0, nil, ""); err != ide.ErrHasDisk {
			t.Errorf("disk 0 not inserted: %v", err)
		}
		if _, err := m.IDE.Eject(1); err != ide.ErrNoDisk {
			t.Errorf("disk 1: %v", err)
		}
	})
}

func TestMachineErrors(t *testing.T) {
	if _, err := New(Config{RAMSize: -1}); err != ErrNoRAM {
		t.Errorf("negative ram: %v", err)
	}

	fs := afero.NewMemMapFs()
	_, err := New(Config{RAMSize: 4096, Fs: fs, Disks: [2]string{"", "/missing.img"}})
	if !os.IsNotExist(err) {
		t.Errorf("missing disk: %v", err)
	}

	_, err = New(Config{RAMSize: 4096, Fs: fs, ROMPath: "/missing.bin"})
	if !os.IsNotExist(err) {
		t.Errorf("missing rom: %v", err)
	}
}
