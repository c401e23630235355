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

package peripheral

import (
	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/processor"
)

// Peripheral is a device on the emulated bus. Step receives the number of
// emulated CPU cycles elapsed since the previous call.
type Peripheral interface {
	Name() string
	Reset()
	Step(cycles int) error
	Install(processor.Processor) error
}

// Closer is implemented by peripherals holding host resources, such as
// disk images. The bus closes them on shutdown.
type Closer interface {
	Close() error
}

// NullDevice does nothing. Embed it to get the Peripheral methods a
// device does not care about.
type NullDevice struct {
}

func (*NullDevice) Install(processor.Processor) error { return nil }
func (*NullDevice) Name() string                      { return "Null Device" }
func (*NullDevice) Reset()                            {}
func (*NullDevice) Step(int) error                    { return nil }

// OpenBus claims an empty decode window. Reads float high and writes are
// dropped without the unmapped-access log, so probing empty expansion
// slots stays quiet.
type OpenBus struct {
	NullDevice

	Base  memory.Pointer
	Size  memory.Pointer
	Label string
}

func (m *OpenBus) Install(p processor.Processor) error {
	return p.InstallMemoryDevice(m, m.Base, m.Base+m.Size-1)
}

func (m *OpenBus) Name() string {
	if m.Label == "" {
		return "Open Bus"
	}
	return m.Label
}

func (m *OpenBus) ReadByte(memory.Pointer) byte   { return 0xFF }
func (m *OpenBus) WriteByte(memory.Pointer, byte) {}
