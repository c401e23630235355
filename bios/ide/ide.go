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

// Package ide is the BIOS block driver for the two drives on the Roscoe
// IDE channel. All transfers are polled PIO.
package ide

import (
	"errors"
	"log"
	"runtime"
	"time"
	"unsafe"

	"github.com/jeffsponaugle/roscoe-sub002/bios/timer"
	"github.com/jeffsponaugle/roscoe-sub002/hardware/ata"
	"github.com/jeffsponaugle/roscoe-sub002/status"
)

const (
	NumDisks       = 2
	DefaultTimeout = 5 * time.Second

	selectSettle = time.Millisecond
)

var ErrBadConfig = errors.New("ide: registers and tick source required")

type State int

const (
	StateNotProbed State = iota
	StateNotPresent
	StatePresent
)

func (s State) String() string {
	switch s {
	case StateNotProbed:
		return "not probed"
	case StateNotPresent:
		return "not present"
	case StatePresent:
		return "present"
	}
	return "invalid"
}

type Mode int

const (
	ModeCHS Mode = iota
	ModeLBA28
	ModeLBA48
)

func (m Mode) String() string {
	switch m {
	case ModeCHS:
		return "CHS"
	case ModeLBA28:
		return "LBA28"
	case ModeLBA48:
		return "LBA48"
	}
	return "invalid"
}

// Registers is the task file. Offsets are the ata register numbers.
type Registers interface {
	ReadReg(offset uint8) byte
	WriteReg(offset uint8, data byte)
	ReadWord(offset uint8) uint16
	WriteWord(offset uint8, data uint16)
}

// blockRegisters can move a whole sector through the data register in
// one call.
type blockRegisters interface {
	Registers
	BlockIO() bool
	ReadBlock(offset uint8, dst []byte)
	WriteBlock(offset uint8, src []byte)
}

// Info is what the drive reported in IDENTIFY.
type Info struct {
	State        State
	Model        string
	Config       uint16
	Capabilities uint16
	CommandSets  uint32
	Sectors      uint64
	Mode         Mode

	Heads, SectorsPerTrack uint16
}

type Config struct {
	Regs  Registers
	Clock timer.Source

	// Idle runs on every poll. Defaults to runtime.Gosched.
	Idle func()

	// Timeout replaces DefaultTimeout when nonzero.
	Timeout time.Duration
}

type Controller struct {
	regs    Registers
	clock   timer.Source
	idle    func()
	timeout time.Duration
	disks   [NumDisks]Info
}

func New(cfg Config) (*Controller, error) {
	if cfg.Regs == nil || cfg.Clock == nil || cfg.Clock.Rate() == 0 {
		return nil, ErrBadConfig
	}
	c := &Controller{regs: cfg.Regs, clock: cfg.Clock, idle: cfg.Idle, timeout: cfg.Timeout}
	if c.idle == nil {
		c.idle = runtime.Gosched
	}
	if c.timeout == 0 {
		c.timeout = DefaultTimeout
	}
	return c, nil
}

func deviceBits(disk int) byte {
	if disk == 1 {
		return ata.DeviceSlave
	}
	return 0
}

// Probe probes both drives and returns how many answered. Missing drives
// are logged and recorded, not reported.
func (c *Controller) Probe() int {
	n := 0
	for disk := 0; disk < NumDisks; disk++ {
		if err := c.ProbeDisk(disk); err != nil {
			log.Printf("ide: disk %d: %v", disk, err)
			continue
		}
		n++
	}
	return n
}

// ProbeDisk selects a drive, checks that something drives the bus and
// reads its IDENTIFY block.
func (c *Controller) ProbeDisk(disk int) error {
	if disk < 0 || disk >= NumDisks {
		return status.ErrDiskOutOfRange
	}
	info := &c.disks[disk]
	*info = Info{State: StateNotPresent}

	c.regs.WriteReg(ata.RegDevice, ata.DeviceObsolete|deviceBits(disk))
	timer.Delay(c.clock, selectSettle, c.idle)

	if st := c.regs.ReadReg(ata.RegStatus); st == 0x00 || st == 0xFF {
		return status.ErrDiskNotPresent
	}
	if err := c.wait(ata.StatusBusy, 0, 0, false); err != nil {
		return err
	}

	c.regs.WriteReg(ata.RegCommand, ata.CmdIdentify)
	if err := c.Wait(ata.StatusBusy|ata.StatusDRQ, ata.StatusDRQ, 0); err != nil {
		return err
	}

	var id [ata.SectorWords]uint16
	for i := range id {
		id[i] = c.regs.ReadWord(ata.RegData)
	}
	*info = parseIdentify(id[:])
	return nil
}

func parseIdentify(id []uint16) Info {
	info := Info{
		State:           StatePresent,
		Model:           ata.DecodeString(id[ata.IDModel : ata.IDModel+ata.IDModelWords]),
		Config:          id[ata.IDConfig],
		Capabilities:    id[ata.IDCapabilities],
		CommandSets:     ata.CommandSets(id),
		Heads:           id[ata.IDHeads],
		SectorsPerTrack: id[ata.IDSectorsPerTrack],
	}

	switch {
	case info.CommandSets&ata.CommandSetLBA48 != 0:
		info.Mode = ModeLBA48
		for i := 3; i >= 0; i-- {
			info.Sectors = info.Sectors<<16 | uint64(id[ata.IDLBA48Sectors+i])
		}
	case info.Capabilities&ata.CapabilityLBA != 0:
		info.Mode = ModeLBA28
		info.Sectors = uint64(id[ata.IDLBASectors]) | uint64(id[ata.IDLBASectors+1])<<16
	default:
		info.Mode = ModeCHS
		info.Sectors = uint64(id[ata.IDCylinders]) * uint64(info.Heads) * uint64(info.SectorsPerTrack)
	}
	if info.Heads == 0 {
		info.Heads = ata.CHSHeads
	}
	return info
}

func (c *Controller) present(disk int) (*Info, error) {
	if disk < 0 || disk >= NumDisks {
		return nil, status.ErrDiskOutOfRange
	}
	info := &c.disks[disk]
	if info.State != StatePresent {
		return nil, status.ErrDiskNotPresent
	}
	return info, nil
}

// GetSize returns the drive capacity in sectors.
func (c *Controller) GetSize(disk int) (uint64, error) {
	info, err := c.present(disk)
	if err != nil {
		return 0, err
	}
	return info.Sectors, nil
}

func (c *Controller) Identify(disk int) (Info, error) {
	if disk < 0 || disk >= NumDisks {
		return Info{}, status.ErrDiskOutOfRange
	}
	info := c.disks[disk]
	if info.State != StatePresent {
		return info, status.ErrDiskNotPresent
	}
	return info, nil
}

func (c *Controller) decodeError(st byte) error {
	if st&ata.StatusWriteFault != 0 {
		return status.ErrDiskWriteFault
	}
	e := c.regs.ReadReg(ata.RegError)
	switch {
	case e&ata.ErrorBadBlock != 0:
		return status.ErrDiskBadBlock
	case e&ata.ErrorUncorrectable != 0:
		return status.ErrDiskUncorrectable
	}
	return status.ErrDiskError
}

// Wait polls the status register until status&mask == equals. An error
// reported by the drive is decoded and returned. A zero timeout selects
// the controller default.
func (c *Controller) Wait(mask, equals byte, timeout time.Duration) error {
	return c.wait(mask, equals, timeout, true)
}

// wait counts the timeout down only when the tick count moves, so it runs
// in whole ticks. The poll after the count reaches zero still gets to
// succeed.
func (c *Controller) wait(mask, equals byte, timeout time.Duration, checkErr bool) error {
	if timeout == 0 {
		timeout = c.timeout
	}
	remaining := timer.ToTicks(timeout, c.clock.Rate())
	last := c.clock.Ticks()

	for {
		st := c.regs.ReadReg(ata.RegStatus)
		if checkErr && st&(ata.StatusBusy|ata.StatusError) == ata.StatusError {
			return c.decodeError(st)
		}
		if st&mask == equals {
			return nil
		}
		if remaining == 0 {
			return status.ErrTimeout
		}
		if now := c.clock.Ticks(); now != last {
			if delta := now - last; delta >= remaining {
				remaining = 0
			} else {
				remaining -= delta
			}
			last = now
		}
		c.idle()
	}
}

// SectorSelect loads the task file with the address of count sectors
// starting at sector, in the addressing mode of the drive.
func (c *Controller) SectorSelect(disk int, sector uint64, count int) error {
	info, err := c.present(disk)
	if err != nil {
		return err
	}
	dev := deviceBits(disk)

	switch info.Mode {
	case ModeLBA48:
		c.regs.WriteReg(ata.RegSectorCountHigh, byte(count>>8))
		c.regs.WriteReg(ata.RegLBA3, byte(sector>>24))
		c.regs.WriteReg(ata.RegLBA4, byte(sector>>32))
		c.regs.WriteReg(ata.RegLBA5, byte(sector>>40))
		c.regs.WriteReg(ata.RegSectorCount, byte(count))
		c.regs.WriteReg(ata.RegLBA0, byte(sector))
		c.regs.WriteReg(ata.RegLBA1, byte(sector>>8))
		c.regs.WriteReg(ata.RegLBA2, byte(sector>>16))
		c.regs.WriteReg(ata.RegDevice, ata.DeviceLBA|dev)
	case ModeLBA28:
		c.regs.WriteReg(ata.RegSectorCount, byte(count))
		c.regs.WriteReg(ata.RegLBA0, byte(sector))
		c.regs.WriteReg(ata.RegLBA1, byte(sector>>8))
		c.regs.WriteReg(ata.RegLBA2, byte(sector>>16))
		c.regs.WriteReg(ata.RegDevice, ata.DeviceObsolete|ata.DeviceLBA|dev|byte(sector>>24)&ata.DeviceHeadMask)
	default:
		track := sector / ata.CHSSectorsPerTrack
		head := track % uint64(info.Heads)
		cyl := track / uint64(info.Heads)
		c.regs.WriteReg(ata.RegSectorCount, byte(count))
		c.regs.WriteReg(ata.RegLBA0, byte(sector%ata.CHSSectorsPerTrack+1))
		c.regs.WriteReg(ata.RegLBA1, byte(cyl))
		c.regs.WriteReg(ata.RegLBA2, byte(cyl>>8))
		c.regs.WriteReg(ata.RegDevice, ata.DeviceObsolete|dev|byte(head)&ata.DeviceHeadMask)
	}
	return nil
}

func aligned(buf []byte) bool {
	return uintptr(unsafe.Pointer(&buf[0]))&3 == 0
}

// ReadWriteSectors moves count sectors between buf and the drive. The
// request is checked before any register is touched and is issued in
// commands of at most 255 sectors. Any failure abandons the rest.
func (c *Controller) ReadWriteSectors(disk int, sector uint64, count int, buf []byte, write bool) error {
	info, err := c.present(disk)
	if err != nil {
		return err
	}
	if count <= 0 {
		return status.ErrDiskSectorCountZero
	}
	if sector >= info.Sectors || uint64(count) > info.Sectors-sector {
		return status.ErrDiskSectorOutOfRange
	}
	if len(buf) < count*ata.SectorSize {
		return status.ErrBufferTooSmall
	}

	var block blockRegisters
	if b, ok := c.regs.(blockRegisters); ok && b.BlockIO() && aligned(buf) {
		block = b
	}

	cmd := byte(ata.CmdReadSectors)
	switch {
	case write && info.Mode == ModeLBA48:
		cmd = ata.CmdWriteSectorsExt
	case write:
		cmd = ata.CmdWriteSectors
	case info.Mode == ModeLBA48:
		cmd = ata.CmdReadSectorsExt
	}

	for count > 0 {
		chunk := count
		if chunk > ata.MaxSectorsPerCommand {
			chunk = ata.MaxSectorsPerCommand
		}

		if err := c.wait(ata.StatusBusy, 0, 0, false); err != nil {
			return err
		}
		c.SectorSelect(disk, sector, chunk)
		c.regs.WriteReg(ata.RegCommand, cmd)

		for i := 0; i < chunk; i++ {
			if err := c.Wait(ata.StatusBusy|ata.StatusDRQ, ata.StatusDRQ, 0); err != nil {
				return err
			}
			data := buf[:ata.SectorSize]
			switch {
			case block != nil && write:
				block.WriteBlock(ata.RegData, data)
			case block != nil:
				block.ReadBlock(ata.RegData, data)
			case write:
				for j := 0; j < ata.SectorSize; j += 2 {
					c.regs.WriteWord(ata.RegData, uint16(data[j])|uint16(data[j+1])<<8)
				}
			default:
				for j := 0; j < ata.SectorSize; j += 2 {
					w := c.regs.ReadWord(ata.RegData)
					data[j], data[j+1] = byte(w), byte(w>>8)
				}
			}
			buf = buf[ata.SectorSize:]
		}

		if write {
			if err := c.Wait(ata.StatusBusy, 0, 0); err != nil {
				return err
			}
		}
		sector += uint64(chunk)
		count -= chunk
	}
	return nil
}
