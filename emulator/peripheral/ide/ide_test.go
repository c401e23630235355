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

package ide

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/bus"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral"
	"github.com/jeffsponaugle/roscoe-sub002/hardware/ata"
)

const (
	testBase    = 0x2000
	testSectors = 2048
)

type fixture struct {
	dev  *Device
	regs *memory.Window
	fs   afero.Fs
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{dev: &Device{Base: testBase, BusyCycles: 10}, fs: afero.NewMemMapFs()}
	b, errs := bus.New([]peripheral.Peripheral{f.dev})
	for _, err := range errs {
		t.Fatal(err)
	}
	f.regs = memory.NewWindow(b, testBase)

	img, err := f.fs.Create("/disk0.img")
	if err != nil {
		t.Fatal(err)
	}
	if err := img.Truncate(testSectors * ata.SectorSize); err != nil {
		t.Fatal(err)
	}
	if err := f.dev.Insert(0, img, "TEST DISK"); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) settle(t *testing.T) byte {
	for i := 0; i < 100; i++ {
		if st := f.regs.ReadReg(ata.RegStatus); st&ata.StatusBusy == 0 {
			return st
		}
		f.dev.Step(5)
	}
	t.Fatal("drive stuck busy")
	return 0
}

func (f *fixture) lba28(lba uint32, count byte) {
	f.regs.WriteReg(ata.RegDevice, ata.DeviceObsolete|ata.DeviceLBA|byte(lba>>24)&ata.DeviceHeadMask)
	f.regs.WriteReg(ata.RegSectorCount, count)
	f.regs.WriteReg(ata.RegLBA0, byte(lba))
	f.regs.WriteReg(ata.RegLBA1, byte(lba>>8))
	f.regs.WriteReg(ata.RegLBA2, byte(lba>>16))
}

func pattern(seed byte) []byte {
	b := make([]byte, ata.SectorSize)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func TestAbsentDrive(t *testing.T) {
	f := newFixture(t)
	f.regs.WriteReg(ata.RegDevice, ata.DeviceObsolete|ata.DeviceSlave)
	if st := f.regs.ReadReg(ata.RegStatus); st != 0 {
		t.Errorf("status of missing slave = %02X", st)
	}
	f.regs.WriteReg(ata.RegCommand, ata.CmdIdentify)
	if f.dev.Commands() != 0 {
		t.Error("missing drive accepted a command")
	}
}

func TestIdentify(t *testing.T) {
	f := newFixture(t)
	f.regs.WriteReg(ata.RegDevice, ata.DeviceObsolete)
	f.regs.WriteReg(ata.RegCommand, ata.CmdIdentify)

	if f.regs.ReadReg(ata.RegStatus)&ata.StatusBusy == 0 {
		t.Error("identify completed without busy time")
	}
	if st := f.settle(t); st&ata.StatusDRQ == 0 {
		t.Fatalf("status = %02X", st)
	}

	id := make([]uint16, ata.SectorWords)
	for i := range id {
		id[i] = f.regs.ReadWord(ata.RegData)
	}
	if st := f.regs.ReadReg(ata.RegStatus); st&ata.StatusDRQ != 0 {
		t.Errorf("DRQ still set after 256 words: %02X", st)
	}

	if model := ata.DecodeString(id[ata.IDModel : ata.IDModel+ata.IDModelWords]); model != "TEST DISK" {
		t.Errorf("model = %q", model)
	}
	if ata.CommandSets(id)&ata.CommandSetLBA48 == 0 || id[ata.IDCapabilities]&ata.CapabilityLBA == 0 {
		t.Error("LBA modes not advertised")
	}
	if n := uint32(id[ata.IDLBASectors]) | uint32(id[ata.IDLBASectors+1])<<16; n != testSectors {
		t.Errorf("LBA28 sectors = %d", n)
	}
	if id[ata.IDHeads] != ata.CHSHeads || id[ata.IDSectorsPerTrack] != ata.CHSSectorsPerTrack {
		t.Errorf("geometry %d/%d", id[ata.IDHeads], id[ata.IDSectorsPerTrack])
	}
}

func TestReadWrite(t *testing.T) {
	f := newFixture(t)

	f.lba28(5, 2)
	f.regs.WriteReg(ata.RegCommand, ata.CmdWriteSectors)
	for s := byte(0); s < 2; s++ {
		if st := f.settle(t); st&ata.StatusDRQ == 0 {
			t.Fatalf("sector %d: status %02X", s, st)
		}
		f.regs.WriteBlock(ata.RegData, pattern(s))
	}
	if st := f.settle(t); st != ata.StatusReady|ata.StatusSeekDone {
		t.Fatalf("after write: status %02X", st)
	}

	img, _ := f.fs.Open("/disk0.img")
	got := make([]byte, ata.SectorSize)
	img.ReadAt(got, 6*ata.SectorSize)
	if !bytes.Equal(got, pattern(1)) {
		t.Error("second sector not on the image")
	}

	t.Run("Read", func(t *testing.T) {
		f.lba28(5, 2)
		f.regs.WriteReg(ata.RegCommand, ata.CmdReadSectors)
		for s := byte(0); s < 2; s++ {
			f.settle(t)
			buf := make([]byte, ata.SectorSize)
			for i := 0; i < ata.SectorSize; i += 2 {
				w := f.regs.ReadWord(ata.RegData)
				buf[i], buf[i+1] = byte(w), byte(w>>8)
			}
			if !bytes.Equal(buf, pattern(s)) {
				t.Errorf("sector %d differs", s)
			}
		}
	})

	t.Run("LBA48", func(t *testing.T) {
		f.regs.WriteReg(ata.RegDevice, ata.DeviceLBA)
		f.regs.WriteReg(ata.RegSectorCountHigh, 0)
		f.regs.WriteReg(ata.RegSectorCount, 1)
		for i, v := range []byte{6, 0, 0, 0, 0, 0} {
			f.regs.WriteReg([]uint8{ata.RegLBA0, ata.RegLBA1, ata.RegLBA2, ata.RegLBA3, ata.RegLBA4, ata.RegLBA5}[i], v)
		}
		f.regs.WriteReg(ata.RegCommand, ata.CmdReadSectorsExt)
		f.settle(t)
		buf := make([]byte, ata.SectorSize)
		f.regs.ReadBlock(ata.RegData, buf)
		if !bytes.Equal(buf, pattern(1)) {
			t.Error("LBA48 read differs")
		}
	})

	t.Run("CHS", func(t *testing.T) {
		// Cylinder 0, head 0, sector 7 is LBA 6.
		f.regs.WriteReg(ata.RegDevice, ata.DeviceObsolete)
		f.regs.WriteReg(ata.RegSectorCount, 1)
		f.regs.WriteReg(ata.RegLBA0, 7)
		f.regs.WriteReg(ata.RegLBA1, 0)
		f.regs.WriteReg(ata.RegLBA2, 0)
		f.regs.WriteReg(ata.RegCommand, ata.CmdReadSectors)
		f.settle(t)
		buf := make([]byte, ata.SectorSize)
		f.regs.ReadBlock(ata.RegData, buf)
		if !bytes.Equal(buf, pattern(1)) {
			t.Error("CHS read differs")
		}
	})
}

func TestCommandErrors(t *testing.T) {
	f := newFixture(t)

	f.regs.WriteReg(ata.RegDevice, ata.DeviceObsolete)
	f.regs.WriteReg(ata.RegCommand, 0x91)
	if st := f.regs.ReadReg(ata.RegStatus); st&ata.StatusError == 0 || f.regs.ReadReg(ata.RegError) != ata.ErrorAborted {
		t.Errorf("unknown command: status %02X error %02X", st, f.regs.ReadReg(ata.RegError))
	}

	f.lba28(testSectors-1, 2)
	f.regs.WriteReg(ata.RegCommand, ata.CmdReadSectors)
	if st := f.regs.ReadReg(ata.RegStatus); st&ata.StatusError == 0 || f.regs.ReadReg(ata.RegError) != ata.ErrorIDNotFound {
		t.Errorf("past the end: status %02X error %02X", st, f.regs.ReadReg(ata.RegError))
	}

	t.Run("FlushCache", func(t *testing.T) {
		f.regs.WriteReg(ata.RegCommand, ata.CmdFlushCache)
		if st := f.settle(t); st&ata.StatusError != 0 {
			t.Errorf("flush: status %02X", st)
		}
	})

	t.Run("SoftReset", func(t *testing.T) {
		f.lba28(0, 1)
		f.regs.WriteReg(ata.RegCommand, ata.CmdReadSectors)
		f.regs.WriteReg(ata.RegDeviceControl, ata.DeviceControlSRST)
		f.regs.WriteReg(ata.RegDeviceControl, 0)
		if st := f.regs.ReadReg(ata.RegStatus); st&(ata.StatusBusy|ata.StatusDRQ) != 0 {
			t.Errorf("status after reset %02X", st)
		}
	})
}

func TestEject(t *testing.T) {
	f := newFixture(t)
	if err := f.dev.Insert(0, nil, ""); err != ErrHasDisk {
		t.Errorf("double insert: %v", err)
	}
	if _, err := f.dev.Eject(0); err != nil {
		t.Fatal(err)
	}
	if _, err := f.dev.Eject(0); err != ErrNoDisk {
		t.Errorf("double eject: %v", err)
	}

	t.Run("Close", func(t *testing.T) {
		f := newFixture(t)
		if err := f.dev.Close(); err != nil {
			t.Fatal(err)
		}
		if _, err := f.dev.Eject(0); err != ErrNoDisk {
			t.Errorf("drive still present: %v", err)
		}
	})
}
