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

// Package bios brings up the hosted BIOS: tick timer, interrupt table,
// serial ports, disks and the monitor.
package bios

import (
	"log"

	"github.com/jeffsponaugle/roscoe-sub002/bios/ide"
	"github.com/jeffsponaugle/roscoe-sub002/bios/interrupt"
	"github.com/jeffsponaugle/roscoe-sub002/bios/monitor"
	"github.com/jeffsponaugle/roscoe-sub002/bios/serial"
	"github.com/jeffsponaugle/roscoe-sub002/bios/timer"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/processor"
	"github.com/jeffsponaugle/roscoe-sub002/hardware/ns16550"
	"github.com/jeffsponaugle/roscoe-sub002/hardware/pit"
)

const DefaultBaud = 9600

// Board describes where the BIOS finds its hardware.
type Board struct {
	Mem memory.Memory

	PIC       memory.Pointer
	PIT       memory.Pointer
	TimerLine int
	IDE       memory.Pointer

	UARTs     []memory.Pointer
	UARTLines []int
	UARTClock uint32 // defaults to ns16550.DefaultClock
	Baud      uint32 // defaults to DefaultBaud

	// Attach routes interrupt vectors to the BIOS.
	Attach func(processor.InterruptHandler)
	Idle   func()
}

type System struct {
	Table   *interrupt.Table
	Clock   *timer.Counter
	Serial  *serial.Controller
	Disks   *ide.Controller
	Monitor *monitor.Monitor
}

// Boot runs the power-on sequence. Absent serial ports and disks are
// logged and skipped; a broken interrupt path on a port is logged too.
func Boot(b Board) (*System, error) {
	if b.UARTClock == 0 {
		b.UARTClock = ns16550.DefaultClock
	}
	if b.Baud == 0 {
		b.Baud = DefaultBaud
	}

	s := &System{
		Table: interrupt.New(memory.NewWindow(b.Mem, b.PIC)),
		Clock: timer.NewCounter(timer.DefaultRate),
	}
	if b.Attach != nil {
		b.Attach(s.Table)
	}

	if err := s.Table.Hook(s.Table.Vector(b.TimerLine), s.Clock.Tick); err != nil {
		return nil, err
	}
	if _, err := timer.Program(memory.NewWindow(b.Mem, b.PIT), pit.DefaultInputClock, timer.DefaultRate); err != nil {
		return nil, err
	}
	if err := s.Table.MaskSet(b.TimerLine, false); err != nil {
		return nil, err
	}

	cfg := serial.Config{Clock: s.Clock, Idle: b.Idle}
	for i, base := range b.UARTs {
		cfg.Ports = append(cfg.Ports, serial.Port{Regs: memory.NewWindow(b.Mem, base), Line: b.UARTLines[i]})
	}

	var err error
	if s.Serial, err = serial.New(cfg); err != nil {
		return nil, err
	}
	for i := range b.UARTs {
		if err := s.Serial.Init(i, 8, 1, serial.ParityNone); err != nil {
			log.Printf("serial port %d: %v", i, err)
			continue
		}
		if _, err := s.Serial.SetBaudRate(i, b.UARTClock, b.Baud); err != nil {
			return nil, err
		}
		s.Serial.SetOutputs(i, ns16550.MCRDTR|ns16550.MCRRTS|ns16550.MCROut2)
	}
	if err := s.Serial.InterruptInit(s.Table); err != nil {
		return nil, err
	}
	if err := s.Serial.InterruptTest(); err != nil {
		log.Print(err)
	}

	s.Disks, err = ide.New(ide.Config{Regs: memory.NewWindow(b.Mem, b.IDE), Clock: s.Clock, Idle: b.Idle})
	if err != nil {
		return nil, err
	}
	s.Disks.Probe()

	s.Monitor = monitor.New(monitor.Config{
		Serial:    s.Serial,
		Disks:     s.Disks,
		UARTClock: b.UARTClock,
		Baud:      b.Baud,
		Idle:      b.Idle,
	})
	return s, nil
}

// Shutdown stops the tick timer and unhooks the serial interrupts.
func (s *System) Shutdown(b Board) {
	s.Serial.InterruptShutdown()
	timer.Stop(memory.NewWindow(b.Mem, b.PIT))
}
