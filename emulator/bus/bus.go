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

// Package bus routes 68030 memory callbacks to the device mapped at an address.
package bus

import (
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/processor"
)

var ErrOverlap = errors.New("address range overlaps an installed device")

type mapping struct {
	from, to memory.Pointer
	device   memory.Memory
}

type Bus struct {
	lock        sync.RWMutex
	stats       processor.Stats
	peripherals []peripheral.Peripheral
	pic         processor.InterruptController
	handler     processor.InterruptHandler

	mmap  []mapping
	dummy memory.DummyMemory
}

func New(peripherals []peripheral.Peripheral) (*Bus, []error) {
	b := &Bus{peripherals: peripherals}

	var errs []error
	for _, d := range peripherals {
		if pic, ok := d.(processor.InterruptController); ok && b.pic == nil {
			b.pic = pic
		}
	}
	for _, d := range peripherals {
		if err := d.Install(b); err != nil {
			log.Printf("Failed to install %s: %v", d.Name(), err)
			errs = append(errs, err)
		}
	}
	if b.pic == nil {
		log.Print("No interrupt controller detected!")
	}
	return b, errs
}

func (b *Bus) Peripherals() []peripheral.Peripheral {
	return b.peripherals
}

func (b *Bus) Reset() {
	for _, d := range b.peripherals {
		d.Reset()
	}
}

func (b *Bus) Close() {
	for _, d := range b.peripherals {
		if cd, ok := d.(peripheral.Closer); ok {
			if err := cd.Close(); err != nil {
				log.Printf("Failed to close %s: %v", d.Name(), err)
			}
		}
	}
}

func (b *Bus) GetStats() processor.Stats {
	b.lock.Lock()
	defer b.lock.Unlock()
	s := b.stats
	b.stats = processor.Stats{}
	return s
}

func (b *Bus) GetInterruptController() processor.InterruptController {
	return b.pic
}

func (b *Bus) InstallInterruptHandler(handler processor.InterruptHandler) {
	b.lock.Lock()
	b.handler = handler
	b.lock.Unlock()
}

// Interrupt delivers a vector fetched from the interrupt controller.
func (b *Bus) Interrupt(vector int) error {
	b.lock.Lock()
	h := b.handler
	b.stats.NumInterrupts++
	b.lock.Unlock()

	if h == nil {
		return processor.ErrInterruptNotHandled
	}
	return h.HandleInterrupt(vector)
}

func (b *Bus) InstallMemoryDevice(device memory.Memory, from, to memory.Pointer) error {
	if to < from {
		from, to = to, from
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	for _, m := range b.mmap {
		if from <= m.to && m.from <= to {
			return ErrOverlap
		}
	}
	b.mmap = append(b.mmap, mapping{from: from, to: to, device: device})
	sort.Slice(b.mmap, func(i, j int) bool { return b.mmap[i].from < b.mmap[j].from })
	return nil
}

func (b *Bus) GetMappedMemoryDevice(addr memory.Pointer) memory.Memory {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.lookup(addr)
}

func (b *Bus) lookup(addr memory.Pointer) memory.Memory {
	i := sort.Search(len(b.mmap), func(i int) bool { return b.mmap[i].to >= addr })
	if i < len(b.mmap) && b.mmap[i].from <= addr {
		return b.mmap[i].device
	}
	return &b.dummy
}

func (b *Bus) ReadByte(addr memory.Pointer) byte {
	b.lock.Lock()
	b.stats.RX++
	b.lock.Unlock()
	return b.GetMappedMemoryDevice(addr).ReadByte(addr)
}

func (b *Bus) WriteByte(addr memory.Pointer, data byte) {
	b.lock.Lock()
	b.stats.TX++
	b.lock.Unlock()
	b.GetMappedMemoryDevice(addr).WriteByte(addr, data)
}

// ReadWord is big-endian unless the device takes whole word cycles.
func (b *Bus) ReadWord(addr memory.Pointer) uint16 {
	if wm, ok := b.GetMappedMemoryDevice(addr).(memory.WordMemory); ok {
		b.lock.Lock()
		b.stats.RX++
		b.lock.Unlock()
		return wm.ReadWord(addr)
	}
	return uint16(b.ReadByte(addr))<<8 | uint16(b.ReadByte(addr+1))
}

func (b *Bus) WriteWord(addr memory.Pointer, data uint16) {
	if wm, ok := b.GetMappedMemoryDevice(addr).(memory.WordMemory); ok {
		b.lock.Lock()
		b.stats.TX++
		b.lock.Unlock()
		wm.WriteWord(addr, data)
		return
	}
	b.WriteByte(addr, byte(data>>8))
	b.WriteByte(addr+1, byte(data))
}

func (b *Bus) ReadBlock(addr memory.Pointer, dst []byte) {
	if bio, ok := b.GetMappedMemoryDevice(addr).(memory.BlockIO); ok {
		bio.ReadBlock(addr, dst)
		return
	}
	for i := 0; i+1 < len(dst); i += 2 {
		v := b.ReadWord(addr)
		dst[i], dst[i+1] = byte(v), byte(v>>8)
	}
}

func (b *Bus) WriteBlock(addr memory.Pointer, src []byte) {
	if bio, ok := b.GetMappedMemoryDevice(addr).(memory.BlockIO); ok {
		bio.WriteBlock(addr, src)
		return
	}
	for i := 0; i+1 < len(src); i += 2 {
		b.WriteWord(addr, uint16(src[i])|uint16(src[i+1])<<8)
	}
}

// Step advances every peripheral and then drains pending interrupts.
// Vectors nobody handles are logged and dropped.
func (b *Bus) Step(cycles int) error {
	for _, d := range b.peripherals {
		if err := d.Step(cycles); err != nil {
			return err
		}
	}
	if b.pic == nil {
		return nil
	}
	for {
		v, err := b.pic.GetInterrupt()
		if err != nil {
			return nil
		}
		if err := b.Interrupt(v); err != nil {
			log.Printf("interrupt vector %d: %v", v, err)
		}
	}
}
