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

// Package timer keeps the BIOS tick count. The count advances from the
// periodic timer interrupt and every timeout in the BIOS is measured in
// ticks of it.
package timer

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/jeffsponaugle/roscoe-sub002/hardware/pit"
)

// DefaultRate is the tick frequency programmed at boot.
const DefaultRate = 100

var ErrBadRate = errors.New("timer rate out of range")

// Source is a free-running tick count. Ticks wraps at 32 bits.
type Source interface {
	Ticks() uint32
	Rate() uint32
}

type Registers interface {
	ReadReg(offset uint8) byte
	WriteReg(offset uint8, data byte)
}

// Counter is a Source advanced by the timer interrupt.
type Counter struct {
	rate  uint32
	ticks uint32
}

func NewCounter(rate uint32) *Counter {
	if rate == 0 {
		rate = DefaultRate
	}
	return &Counter{rate: rate}
}

// Tick advances the count by one. It is hooked to the timer vector.
func (c *Counter) Tick() {
	atomic.AddUint32(&c.ticks, 1)
}

func (c *Counter) Ticks() uint32 {
	return atomic.LoadUint32(&c.ticks)
}

func (c *Counter) Rate() uint32 {
	return c.rate
}

// Program starts the periodic timer at rate ticks per second. The returned
// rate is what the divisor actually yields.
func Program(regs Registers, inputClock, rate uint32) (uint32, error) {
	if rate == 0 || inputClock == 0 || rate > inputClock {
		return 0, ErrBadRate
	}
	div := inputClock / rate
	if div > 0xFFFF {
		return 0, ErrBadRate
	}

	regs.WriteReg(pit.RegControl, 0)
	regs.WriteReg(pit.RegDivisorHigh, byte(div>>8))
	regs.WriteReg(pit.RegDivisorLow, byte(div))
	regs.WriteReg(pit.RegControl, pit.ControlEnable)
	return inputClock / div, nil
}

// Stop halts the periodic timer.
func Stop(regs Registers) {
	regs.WriteReg(pit.RegControl, 0)
}

// ToTicks converts d to ticks at rate, rounding up. Any nonzero duration
// is at least one tick.
func ToTicks(d time.Duration, rate uint32) uint32 {
	if d <= 0 {
		return 0
	}
	n := (uint64(d)*uint64(rate) + uint64(time.Second) - 1) / uint64(time.Second)
	if n == 0 {
		n = 1
	}
	if n > 0xFFFFFFFF {
		n = 0xFFFFFFFF
	}
	return uint32(n)
}

// ToDuration converts a tick count back to time at rate.
func ToDuration(ticks, rate uint32) time.Duration {
	if rate == 0 {
		return 0
	}
	return time.Duration(uint64(ticks) * uint64(time.Second) / uint64(rate))
}

// Elapsed returns the ticks from start to now, across wraparound.
func Elapsed(start, now uint32) uint32 {
	return now - start
}

// Delay waits until the tick count has advanced by ToTicks(d). idle is
// called on each poll and may be nil.
func Delay(src Source, d time.Duration, idle func()) {
	want := ToTicks(d, src.Rate())
	start := src.Ticks()
	for Elapsed(start, src.Ticks()) < want {
		if idle != nil {
			idle()
		}
	}
}
