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

// Package ns16550 defines the register layout of the 16550 UART as wired
// in the Roscoe, one byte per register.
package ns16550

// Register offsets.
const (
	RegData = 0 // RBR on read, THR on write, DLL when DLAB is set
	RegIER  = 1 // DLM when DLAB is set
	RegIIR  = 2 // FCR on write
	RegLCR  = 3
	RegMCR  = 4
	RegLSR  = 5
	RegMSR  = 6
	RegSCR  = 7

	NumRegisters = 8
)

const FIFOSize = 16

// DefaultClock is the usual 1.8432 MHz UART input clock.
const DefaultClock = 1843200

// Interrupt enable register.
const (
	IERReceiveData   = 0x01
	IERTransmitEmpty = 0x02
	IERLineStatus    = 0x04
	IERModemStatus   = 0x08
)

// Interrupt identification register.
const (
	IIRNoInterrupt   = 0x01
	IIRTransmitEmpty = 0x02
	IIRReceiveData   = 0x04
	IIRLineStatus    = 0x06
	IIRTimeout       = 0x0C
	IIRModemStatus   = 0x00
	IIRIDMask        = 0x0F
	IIRReserved      = 0x30
	IIRFIFOEnabled   = 0xC0
)

// FIFO control register.
const (
	FCREnable      = 0x01
	FCRClearRX     = 0x02
	FCRClearTX     = 0x04
	FCRDMAMode     = 0x08
	FCRTriggerMask = 0xC0
	FCRValidMask   = FCREnable | FCRClearRX | FCRClearTX | FCRDMAMode | FCRTriggerMask

	FCRTrigger1  = 0x00
	FCRTrigger4  = 0x40
	FCRTrigger8  = 0x80
	FCRTrigger14 = 0xC0
)

// TriggerLevel returns the receive FIFO trigger level selected by fcr.
func TriggerLevel(fcr byte) int {
	switch fcr & FCRTriggerMask {
	case FCRTrigger4:
		return 4
	case FCRTrigger8:
		return 8
	case FCRTrigger14:
		return 14
	}
	return 1
}

// Line control register.
const (
	LCRWordLengthMask = 0x03
	LCRStopBits       = 0x04
	LCRParityEnable   = 0x08
	LCREvenParity     = 0x10
	LCRStickParity    = 0x20
	LCRBreak          = 0x40
	LCRDLAB           = 0x80
)

// Modem control register.
const (
	MCRDTR      = 0x01
	MCRRTS      = 0x02
	MCROut1     = 0x04
	MCROut2     = 0x08
	MCRLoopback = 0x10
	MCROutputs  = MCRDTR | MCRRTS | MCROut1 | MCROut2
)

// Line status register.
const (
	LSRDataReady = 0x01
	LSROverrun   = 0x02
	LSRParity    = 0x04
	LSRFraming   = 0x08
	LSRBreak     = 0x10
	LSRTHREmpty  = 0x20
	LSRTxEmpty   = 0x40
	LSRFIFOError = 0x80
	LSRErrorMask = LSROverrun | LSRParity | LSRFraming | LSRBreak
)

// Modem status register.
const (
	MSRDeltaCTS = 0x01
	MSRDeltaDSR = 0x02
	MSRTrailRI  = 0x04
	MSRDeltaDCD = 0x08
	MSRCTS      = 0x10
	MSRDSR      = 0x20
	MSRRI       = 0x40
	MSRDCD      = 0x80
)

// DivisorFor returns the baud divisor for a UART input clock. The chip
// divides its clock by 16 before the divisor.
func DivisorFor(clock, baud uint32) uint32 {
	if baud == 0 {
		return 0
	}
	return (clock >> 4) / baud
}

// BaudFor returns the rate a divisor actually produces.
func BaudFor(clock, divisor uint32) uint32 {
	if divisor == 0 {
		return 0
	}
	return (clock >> 4) / divisor
}

// FrameHalfBits returns the length of one character frame on the wire in
// half bit times, start and stop bits included.
func FrameHalfBits(lcr byte) int {
	data := 5 + int(lcr&LCRWordLengthMask)
	bits := 2 * (1 + data)
	if lcr&LCRParityEnable != 0 {
		bits += 2
	}
	switch {
	case lcr&LCRStopBits == 0:
		bits += 2
	case data == 5:
		bits += 3
	default:
		bits += 4
	}
	return bits
}
