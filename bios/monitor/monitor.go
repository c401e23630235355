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

// Package monitor is a small command line on a serial port for poking at
// the disks and the serial driver.
package monitor

import (
	"encoding/hex"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/jeffsponaugle/roscoe-sub002/bios/ide"
	"github.com/jeffsponaugle/roscoe-sub002/bios/serial"
	"github.com/jeffsponaugle/roscoe-sub002/hardware/ata"
	"github.com/jeffsponaugle/roscoe-sub002/version"
)

const (
	prompt  = "> "
	maxLine = 80
)

type Config struct {
	Serial *serial.Controller
	Port   int
	Disks  *ide.Controller // may be nil

	// UARTClock and Baud describe the console line, for the baud command.
	UARTClock uint32
	Baud      uint32

	Idle func()
}

type Monitor struct {
	serial *serial.Controller
	port   int
	disks  *ide.Controller
	clock  uint32
	baud   uint32
	idle   func()
	line   []byte
}

func New(cfg Config) *Monitor {
	m := &Monitor{
		serial: cfg.Serial,
		port:   cfg.Port,
		disks:  cfg.Disks,
		clock:  cfg.UARTClock,
		baud:   cfg.Baud,
		idle:   cfg.Idle,
	}
	if m.idle == nil {
		m.idle = runtime.Gosched
	}
	return m
}

func (m *Monitor) printf(format string, args ...interface{}) error {
	s := strings.ReplaceAll(fmt.Sprintf(format, args...), "\n", "\r\n")
	return m.serial.TransmitDataAll(m.port, []byte(s))
}

// Banner prints the version line and what the disk probe found.
func (m *Monitor) Banner() error {
	if err := m.printf("\nRoscoe monitor %s\n%s\n\n", version.Current.FullString(), version.Copyright); err != nil {
		return err
	}
	if err := m.disksCmd(nil); err != nil {
		return err
	}
	return m.printf("\n%s", prompt)
}

// Run reads and executes lines until quit is closed or the console
// fails.
func (m *Monitor) Run(quit <-chan struct{}) error {
	for {
		select {
		case <-quit:
			return nil
		default:
		}

		n, err := m.Poll()
		if err != nil {
			return err
		}
		if n == 0 {
			m.idle()
		}
	}
}

// Poll handles whatever input has arrived and returns the number of bytes
// consumed.
func (m *Monitor) Poll() (int, error) {
	var buf [16]byte
	n, err := m.serial.ReceiveData(m.port, buf[:])
	if err != nil {
		return 0, err
	}
	for _, b := range buf[:n] {
		if err := m.Input(b); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// Input feeds one received byte to the line editor.
func (m *Monitor) Input(b byte) error {
	switch {
	case b == '\r' || b == '\n':
		line := string(m.line)
		m.line = m.line[:0]
		if err := m.printf("\n"); err != nil {
			return err
		}
		if err := m.Execute(line); err != nil {
			return err
		}
		return m.printf(prompt)
	case b == '\b' || b == 0x7F:
		if len(m.line) == 0 {
			return nil
		}
		m.line = m.line[:len(m.line)-1]
		return m.printf("\b \b")
	case b == 0x15: // Ctrl-U
		for range m.line {
			if err := m.printf("\b \b"); err != nil {
				return err
			}
		}
		m.line = m.line[:0]
	case b >= 0x20 && b < 0x7F && len(m.line) < maxLine:
		m.line = append(m.line, b)
		return m.serial.TransmitDataAll(m.port, []byte{b})
	}
	return nil
}

// Execute runs one command line. Only errors writing to the console are
// returned; command failures are printed.
func (m *Monitor) Execute(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "help", "?":
		err = m.printf("help                 this text\n" +
			"disks                list attached disks\n" +
			"read <disk> <sector> dump a sector\n" +
			"stats                serial counters\n" +
			"baud [rate]          show or set the console rate\n")
	case "disks":
		err = m.disksCmd(args[1:])
	case "read":
		err = m.readCmd(args[1:])
	case "stats":
		err = m.statsCmd()
	case "baud":
		err = m.baudCmd(args[1:])
	default:
		err = m.printf("unknown command %q, try help\n", args[0])
	}
	return err
}

func (m *Monitor) disksCmd([]string) error {
	if m.disks == nil {
		return m.printf("no disk controller\n")
	}
	for i := 0; i < ide.NumDisks; i++ {
		info, err := m.disks.Identify(i)
		if err != nil {
			if err := m.printf("disk %d: %v\n", i, err); err != nil {
				return err
			}
			continue
		}
		mib := info.Sectors * ata.SectorSize >> 20
		if err := m.printf("disk %d: %s, %d sectors (%d MiB), %v\n", i, info.Model, info.Sectors, mib, info.Mode); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) readCmd(args []string) error {
	if len(args) != 2 {
		return m.printf("usage: read <disk> <sector>\n")
	}
	if m.disks == nil {
		return m.printf("no disk controller\n")
	}
	disk, err := strconv.Atoi(args[0])
	if err != nil {
		return m.printf("bad disk %q\n", args[0])
	}
	sector, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil {
		return m.printf("bad sector %q\n", args[1])
	}

	buf := make([]byte, ata.SectorSize)
	if err := m.disks.ReadWriteSectors(disk, sector, 1, buf, false); err != nil {
		return m.printf("read failed: %v\n", err)
	}
	return m.printf("%s", hex.Dump(buf))
}

func (m *Monitor) statsCmd() error {
	for i := 0; i < m.serial.NumPorts(); i++ {
		c, err := m.serial.GetCounters(i)
		if err != nil {
			continue
		}
		err = m.printf("port %d: rx %d tx %d overrun %d parity %d framing %d break %d dropped %d\n",
			i, c.RX, c.TX, c.Overrun, c.Parity, c.Framing, c.Break, c.Dropped)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) baudCmd(args []string) error {
	if len(args) == 0 {
		return m.printf("%d baud\n", m.baud)
	}
	rate, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil || rate == 0 {
		return m.printf("bad rate %q\n", args[0])
	}

	// Let the reply to the command leave at the old rate first.
	m.serial.Flush(m.port)
	actual, err := m.serial.SetBaudRate(m.port, m.clock, uint32(rate))
	if err != nil {
		return m.printf("baud: %v\n", err)
	}
	m.baud = actual
	return m.printf("%d baud\n", actual)
}
