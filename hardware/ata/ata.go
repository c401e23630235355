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

// Package ata defines the IDE/ATA task file as wired in the Roscoe: the
// standard registers followed by a bank holding the upper LBA48 bytes.
package ata

import "strings"

// Register offsets.
const (
	RegData            = 0x0 // 16-bit
	RegError           = 0x1 // read
	RegFeatures        = 0x1 // write
	RegSectorCount     = 0x2
	RegLBA0            = 0x3 // sector number in CHS mode
	RegLBA1            = 0x4 // cylinder low
	RegLBA2            = 0x5 // cylinder high
	RegDevice          = 0x6
	RegStatus          = 0x7 // read
	RegCommand         = 0x7 // write
	RegSectorCountHigh = 0x8
	RegLBA3            = 0x9
	RegLBA4            = 0xA
	RegLBA5            = 0xB
	RegAltStatus       = 0xE // read
	RegDeviceControl   = 0xE // write

	NumRegisters = 0x10
)

// Status register.
const (
	StatusError      = 0x01
	StatusIndex      = 0x02
	StatusCorrected  = 0x04
	StatusDRQ        = 0x08
	StatusSeekDone   = 0x10
	StatusWriteFault = 0x20
	StatusReady      = 0x40
	StatusBusy       = 0x80
)

// Error register.
const (
	ErrorAddressMark   = 0x01
	ErrorTrack0        = 0x02
	ErrorAborted       = 0x04
	ErrorMediaRequest  = 0x08
	ErrorIDNotFound    = 0x10
	ErrorMediaChanged  = 0x20
	ErrorUncorrectable = 0x40
	ErrorBadBlock      = 0x80
)

// Device register.
const (
	DeviceObsolete = 0xA0
	DeviceLBA      = 0x40
	DeviceSlave    = 0x10
	DeviceHeadMask = 0x0F
)

// Device control register.
const (
	DeviceControlNIEN = 0x02
	DeviceControlSRST = 0x04
)

// Commands.
const (
	CmdReadSectors     = 0x20
	CmdReadSectorsExt  = 0x24
	CmdWriteSectors    = 0x30
	CmdWriteSectorsExt = 0x34
	CmdFlushCache      = 0xE7
	CmdIdentify        = 0xEC
)

const (
	SectorSize  = 512
	SectorWords = SectorSize / 2

	// The sector count register is eight bits wide.
	MaxSectorsPerCommand = 255

	CHSSectorsPerTrack = 63
	CHSHeads           = 16

	MaxLBA28 = 1 << 28
)

// IDENTIFY DEVICE word offsets.
const (
	IDConfig          = 0
	IDCylinders       = 1
	IDHeads           = 3
	IDSectorsPerTrack = 6
	IDSerial          = 10
	IDSerialWords     = 10
	IDFirmware        = 23
	IDFirmwareWords   = 4
	IDModel           = 27
	IDModelWords      = 20
	IDCapabilities    = 49
	IDLBASectors      = 60
	IDCommandSets     = 82
	IDCommandSetsOn   = 85
	IDLBA48Sectors    = 100
)

// IDENTIFY capability and command set bits.
const (
	ConfigNotATA = 0x8000
	ConfigFixed  = 0x0040

	CapabilityDMA = 1 << 8
	CapabilityLBA = 1 << 9

	// Bit 26 of the 32-bit command set bitmap formed by words 82 and 83.
	CommandSetLBA48 = 1 << 26
)

// DecodeString unpacks an IDENTIFY string. Each word carries its first
// character in the high byte. Trailing spaces and NULs are removed.
func DecodeString(words []uint16) string {
	b := make([]byte, 0, len(words)*2)
	for _, w := range words {
		b = append(b, byte(w>>8), byte(w))
	}
	return strings.TrimRight(string(b), " \x00")
}

// EncodeString packs s into words, padding with spaces.
func EncodeString(words []uint16, s string) {
	for i := range words {
		hi, lo := byte(' '), byte(' ')
		if 2*i < len(s) {
			hi = s[2*i]
		}
		if 2*i+1 < len(s) {
			lo = s[2*i+1]
		}
		words[i] = uint16(hi)<<8 | uint16(lo)
	}
}

// CommandSets returns the 32-bit command set bitmap of an IDENTIFY block.
func CommandSets(id []uint16) uint32 {
	return uint32(id[IDCommandSets]) | uint32(id[IDCommandSets+1])<<16
}
