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

// Package emulator assembles the Roscoe board: RAM, monitor ROM,
// interrupt controller, tick timer, two 16550 UARTs and the IDE channel.
package emulator

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/bus"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral/ide"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral/pic"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral/pit"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral/ram"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral/rom"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral/uart"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/processor"
)

// Memory map.
const (
	RAMBase   memory.Pointer = 0x00000000
	ROMBase   memory.Pointer = 0xFFF00000
	PICBase   memory.Pointer = 0xFE000000
	PITBase   memory.Pointer = 0xFE000010
	UART0Base memory.Pointer = 0xFE000100
	UART1Base memory.Pointer = 0xFE000108
	IDEBase   memory.Pointer = 0xFE001000

	// Expansion slots decode here; nothing is fitted.
	ExpansionBase memory.Pointer = 0xFE100000
	ExpansionSize memory.Pointer = 0x00100000
)

// Interrupt controller lines.
const (
	LineTimer = 0
	LineUART0 = 1
	LineUART1 = 2
)

const (
	DefaultCPUClock = 25000000
	DefaultQuantum  = 1000
)

var ErrNoRAM = errors.New("ram size must be positive")

type Config struct {
	CPUClock int // Hz
	Quantum  int // cycles per step
	RAMSize  int

	Fs      afero.Fs
	ROMPath string
	Disks   [2]string

	// DataTX receives the bytes each UART puts on the line.
	DataTX [2]func(byte)
	// OnLED follows OUT2 of the first UART.
	OnLED func(bool)

	// Core is the 68030 interpreter. Without one the machine only runs
	// its peripherals and interrupts go to the installed handler.
	Core processor.Core
}

type Machine struct {
	Bus  *bus.Bus
	PIC  *pic.Device
	PIT  *pit.Device
	UART [2]*uart.Device
	IDE  *ide.Device

	core     processor.Core
	cpuClock int
	quantum  int
	cycles   uint64
	shutdown int32
}

type coreHandler struct {
	core processor.Core
}

func (h coreHandler) HandleInterrupt(vector int) error {
	h.core.Interrupt(vector)
	return nil
}

func New(cfg Config) (*Machine, error) {
	if cfg.CPUClock <= 0 {
		cfg.CPUClock = DefaultCPUClock
	}
	if cfg.Quantum <= 0 {
		cfg.Quantum = DefaultQuantum
	}
	if cfg.RAMSize == 0 {
		cfg.RAMSize = ram.DefaultSize
	}
	if cfg.RAMSize < 0 {
		return nil, ErrNoRAM
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}

	m := &Machine{
		PIC:      &pic.Device{Base: PICBase},
		PIT:      &pit.Device{Base: PITBase, IRQ: LineTimer, CPUClock: cfg.CPUClock},
		IDE:      &ide.Device{Base: IDEBase},
		core:     cfg.Core,
		cpuClock: cfg.CPUClock,
		quantum:  cfg.Quantum,
	}
	for i, base := range []memory.Pointer{UART0Base, UART1Base} {
		m.UART[i] = &uart.Device{
			Base:     base,
			IRQ:      LineUART0 + i,
			CPUClock: cfg.CPUClock,
			DataTX:   cfg.DataTX[i],
		}
	}
	m.UART[0].OnOut2 = cfg.OnLED

	peripherals := []peripheral.Peripheral{
		&ram.Device{Base: RAMBase, Size: cfg.RAMSize},
		m.PIC, // Interrupt controller
		m.PIT, // Tick timer
		m.UART[0],
		m.UART[1],
		m.IDE,
		&peripheral.OpenBus{Base: ExpansionBase, Size: ExpansionSize, Label: "Expansion Slots"},
	}
	if cfg.ROMPath != "" {
		peripherals = append(peripherals, &rom.Device{
			RomName: "Monitor ROM",
			Base:    ROMBase,
			Fs:      cfg.Fs,
			Path:    cfg.ROMPath,
		})
	}

	var errs []error
	if m.Bus, errs = bus.New(peripherals); len(errs) > 0 {
		return nil, errs[0]
	}
	if m.core != nil {
		m.Bus.InstallInterruptHandler(coreHandler{m.core})
	}

	for i, name := range cfg.Disks {
		if name == "" {
			continue
		}
		fp, err := cfg.Fs.OpenFile(name, os.O_RDWR, 0644)
		if err != nil {
			m.Close()
			return nil, err
		}
		if err := m.IDE.Insert(i, fp, ""); err != nil {
			fp.Close()
			m.Close()
			return nil, err
		}
		log.Printf("Disk %d: %s", i, filepath.Base(name))
	}

	m.Reset()
	return m, nil
}

// Window returns a register window on the machine bus.
func (m *Machine) Window(base memory.Pointer) *memory.Window {
	return memory.NewWindow(m.Bus, base)
}

func (m *Machine) InstallInterruptHandler(h processor.InterruptHandler) {
	m.Bus.InstallInterruptHandler(h)
}

func (m *Machine) CPUClock() int {
	return m.cpuClock
}

// Cycles returns the emulated cycles run so far.
func (m *Machine) Cycles() uint64 {
	return atomic.LoadUint64(&m.cycles)
}

func (m *Machine) Reset() {
	m.Bus.Reset()
	if m.core != nil {
		m.core.Reset()
	}
}

// Step runs the core, if any, for about cycles and then lets every
// peripheral catch up and deliver its interrupts.
func (m *Machine) Step(cycles int) error {
	if m.core != nil {
		n, err := m.core.Execute(cycles)
		if err != nil {
			return err
		}
		cycles = n
	}
	atomic.AddUint64(&m.cycles, uint64(cycles))
	return m.Bus.Step(cycles)
}

// Run steps the machine in real time until Shutdown.
func (m *Machine) Run() error {
	nsPerQuantum := int64(time.Second) * int64(m.quantum) / int64(m.cpuClock)
	start := time.Now()
	var quanta int64

	for atomic.LoadInt32(&m.shutdown) == 0 {
		if err := m.Step(m.quantum); err != nil {
			return err
		}
		quanta++

		ahead := time.Duration(quanta*nsPerQuantum) - time.Since(start)
		switch {
		case ahead > time.Millisecond:
			time.Sleep(ahead)
		case ahead > 0:
			runtime.Gosched()
		case ahead < -time.Second:
			// Too far behind to catch up, drop the backlog.
			start, quanta = time.Now(), 0
		}
	}
	return nil
}

func (m *Machine) Shutdown() {
	atomic.StoreInt32(&m.shutdown, 1)
}

// Close releases the disk images.
func (m *Machine) Close() {
	if m.Bus != nil {
		m.Bus.Close()
	}
}
