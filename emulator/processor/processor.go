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

package processor

import (
	"errors"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
)

var ErrInterruptNotHandled = errors.New("interrupt not handled")

type Stats struct {
	NumInterrupts uint32
	RX, TX        uint64
}

type InterruptHandler interface {
	HandleInterrupt(vector int) error
}

type InterruptController interface {
	GetInterrupt() (int, error)
	IRQ(n int)
}

// Core is the 68030 instruction interpreter. It lives outside this module
// and reaches devices only through the Processor memory callbacks.
type Core interface {
	Reset()
	Execute(cycles int) (int, error)
	Interrupt(vector int)
}

type Processor interface {
	memory.Memory
	memory.WordMemory

	GetStats() Stats
	GetMappedMemoryDevice(addr memory.Pointer) memory.Memory
	InstallMemoryDevice(device memory.Memory, from, to memory.Pointer) error

	GetInterruptController() InterruptController
	InstallInterruptHandler(handler InterruptHandler)
}
