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

// Package ide emulates one IDE channel with a master and a slave drive.
// Drives are disk images behind afero files; every command completes
// after BusyCycles of emulated time.
package ide

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/spf13/afero"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/processor"
	"github.com/jeffsponaugle/roscoe-sub002/hardware/ata"
	"github.com/jeffsponaugle/roscoe-sub002/version"
)

const DefaultBusyCycles = 64

var (
	ErrNoDisk  = errors.New("no disk")
	ErrHasDisk = errors.New("has disk")
)

type drive struct {
	file    afero.File
	sectors uint64
	present bool
	model   string
}

type transfer int

const (
	transferNone transfer = iota
	transferRead
	transferWrite
)

type Device struct {
	Base       memory.Pointer
	BusyCycles int

	lock   sync.Mutex
	drives [2]drive

	features, count, countHigh byte
	lba                        [6]byte
	device, control            byte
	status, errReg             byte

	mode      transfer
	buffer    [ata.SectorSize]byte
	pos       int
	next      uint64 // next sector of the transfer
	remaining int
	busy      int
	ready     func() // runs when busy expires

	commands int
}

func (m *Device) Install(p processor.Processor) error {
	if m.BusyCycles == 0 {
		m.BusyCycles = DefaultBusyCycles
	}
	m.Reset()
	return p.InstallMemoryDevice(m, m.Base, m.Base+ata.NumRegisters-1)
}

func (m *Device) Name() string {
	return "IDE Controller"
}

func (m *Device) Reset() {
	m.lock.Lock()
	m.reset()
	m.lock.Unlock()
}

func (m *Device) reset() {
	m.features, m.count, m.countHigh = 0, 0, 0
	m.lba = [6]byte{}
	m.device = ata.DeviceObsolete
	m.status, m.errReg = ata.StatusReady|ata.StatusSeekDone, 0x01
	m.mode, m.pos, m.remaining, m.busy, m.ready = transferNone, 0, 0, 0, nil
}

func (m *Device) Step(cycles int) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.ready == nil {
		return nil
	}
	if m.busy -= cycles; m.busy <= 0 {
		f := m.ready
		m.busy, m.ready = 0, nil
		f()
	}
	return nil
}

// Commands returns the number of commands accepted since reset.
func (m *Device) Commands() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.commands
}

// Insert attaches an image to drive 0 (master) or 1 (slave).
func (m *Device) Insert(n int, file afero.File, model string) error {
	if n < 0 || n > 1 {
		return fmt.Errorf("drive %d: %w", n, ErrNoDisk)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	d := &m.drives[n]
	if d.present {
		return ErrHasDisk
	}
	fi, err := file.Stat()
	if err != nil {
		return err
	}
	if model == "" {
		model = "ROSCOE " + fi.Name()
	}

	d.file = file
	d.sectors = uint64(fi.Size()) / ata.SectorSize
	d.model = model
	d.present = true
	return nil
}

func (m *Device) Eject(n int) (afero.File, error) {
	if n < 0 || n > 1 {
		return nil, ErrNoDisk
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	d := &m.drives[n]
	if !d.present {
		return nil, ErrNoDisk
	}
	d.present = false
	f := d.file
	d.file = nil
	return f, nil
}

// Close ejects and closes every inserted image.
func (m *Device) Close() error {
	var firstErr error
	for n := range m.drives {
		f, err := m.Eject(n)
		if err != nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Device) selected() *drive {
	d := &m.drives[0]
	if m.device&ata.DeviceSlave != 0 {
		d = &m.drives[1]
	}
	if !d.present {
		return nil
	}
	return d
}

func (m *Device) abort(errBits byte) {
	m.mode, m.remaining, m.ready = transferNone, 0, nil
	m.status = ata.StatusReady | ata.StatusError
	m.errReg = errBits
}

func (m *Device) after(f func()) {
	m.status = ata.StatusBusy
	m.busy = m.BusyCycles
	m.ready = f
}

func geometry(sectors uint64) (cylinders, heads, spt uint64) {
	heads, spt = ata.CHSHeads, ata.CHSSectorsPerTrack
	cylinders = sectors / (heads * spt)
	if cylinders > 16383 {
		cylinders = 16383
	}
	return
}

func (m *Device) identify(d *drive) {
	var id [ata.SectorWords]uint16
	cyl, heads, spt := geometry(d.sectors)

	id[ata.IDConfig] = ata.ConfigFixed
	id[ata.IDCylinders] = uint16(cyl)
	id[ata.IDHeads] = uint16(heads)
	id[ata.IDSectorsPerTrack] = uint16(spt)
	ata.EncodeString(id[ata.IDSerial:ata.IDSerial+ata.IDSerialWords], fmt.Sprintf("VD%08X", d.sectors))
	ata.EncodeString(id[ata.IDFirmware:ata.IDFirmware+ata.IDFirmwareWords], version.Current.Firmware())
	ata.EncodeString(id[ata.IDModel:ata.IDModel+ata.IDModelWords], d.model)
	id[ata.IDCapabilities] = ata.CapabilityLBA

	lba28 := d.sectors
	if lba28 >= ata.MaxLBA28 {
		lba28 = ata.MaxLBA28 - 1
	}
	id[ata.IDLBASectors] = uint16(lba28)
	id[ata.IDLBASectors+1] = uint16(lba28 >> 16)

	sets := uint32(ata.CommandSetLBA48)
	id[ata.IDCommandSets], id[ata.IDCommandSets+1] = uint16(sets), uint16(sets>>16)
	id[ata.IDCommandSetsOn], id[ata.IDCommandSetsOn+1] = uint16(sets), uint16(sets>>16)
	for i := 0; i < 4; i++ {
		id[ata.IDLBA48Sectors+i] = uint16(d.sectors >> (16 * uint(i)))
	}

	for i, w := range id {
		m.buffer[2*i], m.buffer[2*i+1] = byte(w), byte(w>>8)
	}
}

// address decodes the task file for the current command. ok is false
// when the address does not exist on the drive.
func (m *Device) address(d *drive, ext bool) (lba uint64, count int, ok bool) {
	switch {
	case ext:
		for i := 5; i >= 0; i-- {
			lba = lba<<8 | uint64(m.lba[i])
		}
		if count = int(m.countHigh)<<8 | int(m.count); count == 0 {
			count = 0x10000
		}
	case m.device&ata.DeviceLBA != 0:
		lba = uint64(m.device&ata.DeviceHeadMask)<<24 | uint64(m.lba[2])<<16 | uint64(m.lba[1])<<8 | uint64(m.lba[0])
		if count = int(m.count); count == 0 {
			count = 0x100
		}
	default:
		_, heads, spt := geometry(d.sectors)
		cyl := uint64(m.lba[2])<<8 | uint64(m.lba[1])
		head := uint64(m.device & ata.DeviceHeadMask)
		sector := uint64(m.lba[0])
		if sector == 0 || sector > spt {
			return 0, 0, false
		}
		lba = (cyl*heads+head)*spt + sector - 1
		if count = int(m.count); count == 0 {
			count = 0x100
		}
	}
	return lba, count, lba+uint64(count) <= d.sectors
}

func (m *Device) loadSector(d *drive) {
	if _, err := d.file.ReadAt(m.buffer[:], int64(m.next)*ata.SectorSize); err != nil && err != io.EOF {
		log.Printf("ide: read sector %d: %v", m.next, err)
		m.abort(ata.ErrorUncorrectable)
		return
	}
	m.pos = 0
	m.status = ata.StatusReady | ata.StatusSeekDone | ata.StatusDRQ
}

func (m *Device) command(cmd byte) {
	d := m.selected()
	if d == nil {
		return
	}
	if m.status&ata.StatusBusy != 0 {
		return
	}
	m.commands++
	m.errReg = 0
	m.mode, m.pos, m.remaining = transferNone, 0, 0

	switch cmd {
	case ata.CmdIdentify:
		m.after(func() {
			m.identify(d)
			m.mode, m.pos, m.remaining = transferRead, 0, 1
			m.next = d.sectors
			m.status = ata.StatusReady | ata.StatusSeekDone | ata.StatusDRQ
		})
	case ata.CmdReadSectors, ata.CmdReadSectorsExt, ata.CmdWriteSectors, ata.CmdWriteSectorsExt:
		ext := cmd == ata.CmdReadSectorsExt || cmd == ata.CmdWriteSectorsExt
		lba, count, ok := m.address(d, ext)
		if !ok {
			m.abort(ata.ErrorIDNotFound)
			return
		}
		m.next, m.remaining = lba, count
		if cmd == ata.CmdReadSectors || cmd == ata.CmdReadSectorsExt {
			m.mode = transferRead
			m.after(func() { m.loadSector(d) })
		} else {
			m.mode = transferWrite
			m.after(func() {
				m.pos = 0
				m.status = ata.StatusReady | ata.StatusSeekDone | ata.StatusDRQ
			})
		}
	case ata.CmdFlushCache:
		m.after(func() {
			if err := d.file.Sync(); err != nil {
				log.Printf("ide: flush: %v", err)
				m.status = ata.StatusReady | ata.StatusWriteFault | ata.StatusError
				m.errReg = ata.ErrorAborted
				return
			}
			m.status = ata.StatusReady | ata.StatusSeekDone
		})
	default:
		m.abort(ata.ErrorAborted)
	}
}

// sectorDone advances the transfer once the buffer is full or empty.
func (m *Device) sectorDone() {
	d := m.selected()
	if d == nil {
		m.abort(ata.ErrorAborted)
		return
	}

	if m.mode == transferWrite {
		if _, err := d.file.WriteAt(m.buffer[:], int64(m.next)*ata.SectorSize); err != nil {
			log.Printf("ide: write sector %d: %v", m.next, err)
			m.abort(ata.ErrorAborted)
			m.status |= ata.StatusWriteFault
			return
		}
	}

	m.next++
	if m.remaining--; m.remaining == 0 {
		m.mode = transferNone
		m.status = ata.StatusReady | ata.StatusSeekDone
		return
	}

	if m.mode == transferRead {
		m.after(func() { m.loadSector(d) })
	} else {
		m.after(func() {
			m.pos = 0
			m.status = ata.StatusReady | ata.StatusSeekDone | ata.StatusDRQ
		})
	}
}

func (m *Device) readData() uint16 {
	if m.mode != transferRead || m.status&ata.StatusDRQ == 0 {
		return 0xFFFF
	}
	v := uint16(m.buffer[m.pos]) | uint16(m.buffer[m.pos+1])<<8
	if m.pos += 2; m.pos == ata.SectorSize {
		m.sectorDone()
	}
	return v
}

func (m *Device) writeData(v uint16) {
	if m.mode != transferWrite || m.status&ata.StatusDRQ == 0 {
		return
	}
	m.buffer[m.pos], m.buffer[m.pos+1] = byte(v), byte(v>>8)
	if m.pos += 2; m.pos == ata.SectorSize {
		m.sectorDone()
	}
}

func (m *Device) ReadWord(addr memory.Pointer) uint16 {
	m.lock.Lock()
	defer m.lock.Unlock()

	if addr-m.Base == ata.RegData {
		return m.readData()
	}
	return uint16(m.readReg(addr - m.Base))
}

func (m *Device) WriteWord(addr memory.Pointer, data uint16) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if addr-m.Base == ata.RegData {
		m.writeData(data)
		return
	}
	m.writeReg(addr-m.Base, byte(data))
}

func (m *Device) ReadBlock(addr memory.Pointer, dst []byte) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for i := 0; i+1 < len(dst); i += 2 {
		v := m.readData()
		dst[i], dst[i+1] = byte(v), byte(v>>8)
	}
}

func (m *Device) WriteBlock(addr memory.Pointer, src []byte) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for i := 0; i+1 < len(src); i += 2 {
		m.writeData(uint16(src[i]) | uint16(src[i+1])<<8)
	}
}

func (m *Device) ReadByte(addr memory.Pointer) byte {
	m.lock.Lock()
	defer m.lock.Unlock()

	if addr-m.Base == ata.RegData {
		return byte(m.readData())
	}
	return m.readReg(addr - m.Base)
}

func (m *Device) WriteByte(addr memory.Pointer, data byte) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if addr-m.Base == ata.RegData {
		m.writeData(uint16(data))
		return
	}
	m.writeReg(addr-m.Base, data)
}

func (m *Device) readReg(reg memory.Pointer) byte {
	// A missing drive leaves the bus floating low.
	if m.selected() == nil && reg != ata.RegDevice {
		return 0
	}

	switch reg {
	case ata.RegError:
		return m.errReg
	case ata.RegSectorCount:
		return m.count
	case ata.RegLBA0, ata.RegLBA1, ata.RegLBA2:
		return m.lba[reg-ata.RegLBA0]
	case ata.RegDevice:
		return m.device
	case ata.RegStatus, ata.RegAltStatus:
		return m.status
	case ata.RegSectorCountHigh:
		return m.countHigh
	case ata.RegLBA3, ata.RegLBA4, ata.RegLBA5:
		return m.lba[3+reg-ata.RegLBA3]
	}
	return 0xFF
}

func (m *Device) writeReg(reg memory.Pointer, data byte) {
	switch reg {
	case ata.RegFeatures:
		m.features = data
	case ata.RegSectorCount:
		m.count = data
	case ata.RegLBA0, ata.RegLBA1, ata.RegLBA2:
		m.lba[reg-ata.RegLBA0] = data
	case ata.RegDevice:
		m.device = data
	case ata.RegCommand:
		m.command(data)
	case ata.RegSectorCountHigh:
		m.countHigh = data
	case ata.RegLBA3, ata.RegLBA4, ata.RegLBA5:
		m.lba[3+reg-ata.RegLBA3] = data
	case ata.RegDeviceControl:
		if data&ata.DeviceControlSRST != 0 && m.control&ata.DeviceControlSRST == 0 {
			m.reset()
		}
		m.control = data
	}
}
