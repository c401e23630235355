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

// Package serial is the interrupt driven driver for the Roscoe 16550
// ports. Each port has a transmit and a receive ring. The interrupt
// handler moves bytes between the rings and the chip, foreground calls
// only touch the rings.
//
// The port lock stands in for disabling interrupts: foreground code holds
// it around every ring update and the interrupt handler takes it for its
// whole service loop.
package serial

import (
	"bytes"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/jeffsponaugle/roscoe-sub002/bios/interrupt"
	"github.com/jeffsponaugle/roscoe-sub002/bios/timer"
	"github.com/jeffsponaugle/roscoe-sub002/hardware/ns16550"
	"github.com/jeffsponaugle/roscoe-sub002/status"
)

const (
	DefaultBufferSize     = 512
	DefaultReceiveTimeout = time.Second

	selfTestTimeout = 100 * time.Millisecond
)

type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	}
	return "?"
}

type Registers interface {
	ReadReg(offset uint8) byte
	WriteReg(offset uint8, data byte)
}

type Port struct {
	Regs Registers
	Line int // interrupt controller request line
}

type Config struct {
	Ports []Port
	Clock timer.Source

	// Idle runs on every iteration of a busy-wait. Defaults to
	// runtime.Gosched.
	Idle func()

	TXBufferSize int
	RXBufferSize int
}

// Counters are the line errors and traffic seen on a port.
type Counters struct {
	Overrun, Parity, Framing, Break uint32
	Dropped                         uint32 // received bytes lost to a full ring
	RX, TX                          uint64
}

type port struct {
	mu           sync.Mutex
	regs         Registers
	line         int
	present      bool
	hooked       bool
	transmitting bool
	tx, rx       ring
	counters     Counters
}

type Controller struct {
	ports []*port
	clock timer.Source
	idle  func()
	table *interrupt.Table
}

func New(cfg Config) (*Controller, error) {
	if cfg.Clock == nil || cfg.Clock.Rate() == 0 {
		return nil, fmt.Errorf("serial: no tick source: %w", status.ErrSerialBadConfig)
	}
	if cfg.TXBufferSize == 0 {
		cfg.TXBufferSize = DefaultBufferSize
	}
	if cfg.RXBufferSize == 0 {
		cfg.RXBufferSize = DefaultBufferSize
	}
	if cfg.TXBufferSize < 2 || cfg.RXBufferSize < 2 {
		return nil, fmt.Errorf("serial: ring too small: %w", status.ErrSerialBadConfig)
	}

	c := &Controller{clock: cfg.Clock, idle: cfg.Idle}
	if c.idle == nil {
		c.idle = runtime.Gosched
	}
	for _, p := range cfg.Ports {
		c.ports = append(c.ports, &port{
			regs: p.Regs,
			line: p.Line,
			tx:   newRing(cfg.TXBufferSize),
			rx:   newRing(cfg.RXBufferSize),
		})
	}
	return c, nil
}

// NumPorts returns the number of configured ports.
func (c *Controller) NumPorts() int {
	return len(c.ports)
}

func (c *Controller) port(n int) (*port, error) {
	if n < 0 || n >= len(c.ports) {
		return nil, status.ErrSerialOutOfRange
	}
	return c.ports[n], nil
}

func (c *Controller) presentPort(n int) (*port, error) {
	p, err := c.port(n)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	ok := p.present
	p.mu.Unlock()
	if !ok {
		return nil, status.ErrSerialNotPresent
	}
	return p, nil
}

func lineControl(dataBits, stopBits int, parity Parity) (byte, error) {
	if dataBits < 5 || dataBits > 8 || stopBits < 1 || stopBits > 2 {
		return 0, status.ErrSerialBadConfig
	}
	lcr := byte(dataBits - 5)
	if stopBits == 2 {
		lcr |= ns16550.LCRStopBits
	}
	switch parity {
	case ParityNone:
	case ParityOdd:
		lcr |= ns16550.LCRParityEnable
	case ParityEven:
		lcr |= ns16550.LCRParityEnable | ns16550.LCREvenParity
	default:
		return 0, status.ErrSerialBadConfig
	}
	return lcr, nil
}

// Init checks that a UART answers at the port and sets up its line
// format. The FIFOs are enabled and both rings emptied.
func (c *Controller) Init(n, dataBits, stopBits int, parity Parity) error {
	p, err := c.port(n)
	if err != nil {
		return err
	}
	lcr, err := lineControl(dataBits, stopBits, parity)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.present = false
	for _, pattern := range []byte{0x55, 0xAA} {
		p.regs.WriteReg(ns16550.RegSCR, pattern)
		if p.regs.ReadReg(ns16550.RegSCR) != pattern {
			return status.ErrSerialNotPresent
		}
	}
	p.regs.WriteReg(ns16550.RegIER, 0)
	if p.regs.ReadReg(ns16550.RegIIR)&ns16550.IIRReserved != 0 {
		return status.ErrSerialNotPresent
	}

	p.regs.WriteReg(ns16550.RegLCR, lcr)
	p.regs.WriteReg(ns16550.RegIIR, ns16550.FCREnable|ns16550.FCRClearRX|ns16550.FCRClearTX|ns16550.FCRTrigger8)
	p.regs.WriteReg(ns16550.RegMCR, ns16550.MCRDTR|ns16550.MCRRTS)

	p.tx.reset()
	p.rx.reset()
	p.transmitting = false
	p.present = true
	return nil
}

// SetBaudRate programs the divisor (clock/16)/desired, rounded down, and
// returns the rate it actually gives. That rate is the closest one at or
// above desired.
func (c *Controller) SetBaudRate(n int, clock, desired uint32) (uint32, error) {
	p, err := c.presentPort(n)
	if err != nil {
		return 0, err
	}
	div := ns16550.DivisorFor(clock, desired)
	if div == 0 || div > 0xFFFF {
		return 0, status.ErrSerialBadConfig
	}

	p.mu.Lock()
	lcr := p.regs.ReadReg(ns16550.RegLCR) &^ ns16550.LCRDLAB
	p.regs.WriteReg(ns16550.RegLCR, lcr|ns16550.LCRDLAB)
	p.regs.WriteReg(ns16550.RegData, byte(div))
	p.regs.WriteReg(ns16550.RegIER, byte(div>>8))
	p.regs.WriteReg(ns16550.RegLCR, lcr)
	p.mu.Unlock()

	return ns16550.BaudFor(clock, div), nil
}

// SetOutputs drives the modem control outputs (DTR, RTS, OUT1, OUT2).
func (c *Controller) SetOutputs(n int, outputs byte) error {
	p, err := c.presentPort(n)
	if err != nil {
		return err
	}
	p.mu.Lock()
	mcr := p.regs.ReadReg(ns16550.RegMCR)
	p.regs.WriteReg(ns16550.RegMCR, mcr&^ns16550.MCROutputs|outputs&ns16550.MCROutputs)
	p.mu.Unlock()
	return nil
}

// prime loads the chip FIFO from the transmit ring. Needs p.mu.
func (p *port) prime() {
	for i := 0; i < ns16550.FIFOSize; i++ {
		b, ok := p.tx.pop()
		if !ok {
			break
		}
		p.regs.WriteReg(ns16550.RegData, b)
		p.counters.TX++
	}
}

// TransmitData queues as much of data as fits and returns the count. It
// never waits. A full ring gives ErrSerialQueueFull.
func (c *Controller) TransmitData(n int, data []byte) (int, error) {
	p, err := c.presentPort(n)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	count := p.tx.free()
	if count == 0 {
		return 0, status.ErrSerialQueueFull
	}
	if count > len(data) {
		count = len(data)
	}
	for _, b := range data[:count] {
		p.tx.push(b)
	}
	if !p.transmitting {
		p.prime()
		p.transmitting = true
	}
	return count, nil
}

// TransmitDataAll queues all of data, waiting for room as needed.
func (c *Controller) TransmitDataAll(n int, data []byte) error {
	for len(data) > 0 {
		sent, err := c.TransmitData(n, data)
		if err != nil && err != status.ErrSerialQueueFull {
			return err
		}
		data = data[sent:]
		if len(data) > 0 {
			c.idle()
		}
	}
	return nil
}

// ReceiveData copies whatever has been received, up to len(buf).
func (c *Controller) ReceiveData(n int, buf []byte) (int, error) {
	p, err := c.presentPort(n)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	count := p.rx.read(buf)
	p.mu.Unlock()
	return count, nil
}

// ReceiveDataAll fills buf. It fails with ErrTimeout when no byte arrives
// for timeout; every byte received restarts the wait. Zero selects
// DefaultReceiveTimeout.
func (c *Controller) ReceiveDataAll(n int, buf []byte, timeout time.Duration) (int, error) {
	if _, err := c.presentPort(n); err != nil {
		return 0, err
	}
	if timeout == 0 {
		timeout = DefaultReceiveTimeout
	}
	limit := timer.ToTicks(timeout, c.clock.Rate())

	got := 0
	start := c.clock.Ticks()
	for got < len(buf) {
		count, err := c.ReceiveData(n, buf[got:])
		if err != nil {
			return got, err
		}
		if count > 0 {
			got += count
			start = c.clock.Ticks()
			continue
		}
		if timer.Elapsed(start, c.clock.Ticks()) >= limit {
			return got, status.ErrTimeout
		}
		c.idle()
	}
	return got, nil
}

// ReceiveDataFlush throws away everything in the receive ring.
func (c *Controller) ReceiveDataFlush(n int) error {
	p, err := c.presentPort(n)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.rx.reset()
	p.mu.Unlock()
	return nil
}

// ReceiveDataGetCount returns the number of bytes waiting to be read.
func (c *Controller) ReceiveDataGetCount(n int) (int, error) {
	p, err := c.presentPort(n)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rx.len(), nil
}

// TransmitPending returns the number of bytes still in the transmit ring.
func (c *Controller) TransmitPending(n int) (int, error) {
	p, err := c.presentPort(n)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tx.len(), nil
}

// Flush waits until the transmit ring is empty and then until the chip
// has sent its FIFO.
func (c *Controller) Flush(n int) error {
	p, err := c.presentPort(n)
	if err != nil {
		return err
	}
	return c.drain(p, 0)
}

// drain is Flush with a bound of limit ticks, zero meaning none.
func (c *Controller) drain(p *port, limit uint32) error {
	start := c.clock.Ticks()
	expired := func() bool {
		return limit > 0 && timer.Elapsed(start, c.clock.Ticks()) >= limit
	}

	for {
		p.mu.Lock()
		busy := p.transmitting
		p.mu.Unlock()
		if !busy {
			break
		}
		if expired() {
			return status.ErrTimeout
		}
		c.idle()
	}
	for {
		p.mu.Lock()
		lsr := p.regs.ReadReg(ns16550.RegLSR)
		p.countLineErrors(lsr)
		p.mu.Unlock()
		if lsr&ns16550.LSRTHREmpty != 0 {
			return nil
		}
		if expired() {
			return status.ErrTimeout
		}
		c.idle()
	}
}

func (c *Controller) GetCounters(n int) (Counters, error) {
	p, err := c.port(n)
	if err != nil {
		return Counters{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters, nil
}

// InterruptInit hooks every present port into table and enables its
// receive, transmit and line status interrupts.
func (c *Controller) InterruptInit(table *interrupt.Table) error {
	if table == nil {
		return status.ErrInterruptVectorUnknown
	}
	c.table = table

	for i, p := range c.ports {
		i := i
		p.mu.Lock()
		present := p.present
		p.mu.Unlock()
		if !present {
			continue
		}

		if err := table.Hook(table.Vector(p.line), func() { c.HandleInterrupt(i) }); err != nil {
			return fmt.Errorf("serial: port %d: %w", i, err)
		}

		p.mu.Lock()
		p.hooked = true
		p.regs.WriteReg(ns16550.RegIER, ns16550.IERReceiveData|ns16550.IERTransmitEmpty|ns16550.IERLineStatus)
		p.mu.Unlock()

		if err := table.MaskSet(p.line, false); err != nil {
			return fmt.Errorf("serial: port %d: %w", i, err)
		}
	}
	return nil
}

// InterruptShutdown disables and unhooks all port interrupts. Anything
// left in the transmit rings stays queued.
func (c *Controller) InterruptShutdown() {
	if c.table == nil {
		return
	}
	for _, p := range c.ports {
		p.mu.Lock()
		hooked := p.hooked
		if hooked {
			p.regs.WriteReg(ns16550.RegIER, 0)
			p.hooked = false
			p.transmitting = false
		}
		p.mu.Unlock()

		if hooked {
			c.table.MaskSet(p.line, true)
			c.table.Unhook(c.table.Vector(p.line))
		}
	}
	c.table = nil
}

// InterruptTest loops every hooked port back on itself and checks that a
// test pattern makes the round trip through the interrupt handler.
func (c *Controller) InterruptTest() error {
	pattern := []byte{0x55, 0xAA}
	failed := 0

	for i, p := range c.ports {
		p.mu.Lock()
		hooked := p.hooked
		p.mu.Unlock()
		if !hooked {
			continue
		}

		if err := c.loopbackTest(i, p, pattern); err != nil {
			log.Printf("serial: port %d interrupt test failed: %v", i, err)
			failed++
		}
	}

	if failed > 0 {
		return status.ErrSerialInterruptFailed
	}
	return nil
}

func (c *Controller) loopbackTest(n int, p *port, pattern []byte) error {
	limit := timer.ToTicks(selfTestTimeout, c.clock.Rate())
	if err := c.drain(p, limit); err != nil {
		return fmt.Errorf("transmitter stuck: %w", err)
	}
	c.ReceiveDataFlush(n)

	p.mu.Lock()
	mcr := p.regs.ReadReg(ns16550.RegMCR)
	p.regs.WriteReg(ns16550.RegMCR, mcr|ns16550.MCRLoopback)
	p.mu.Unlock()

	err := c.roundTrip(n, p, pattern, limit)

	p.mu.Lock()
	if err != nil {
		p.tx.reset()
		p.transmitting = false
	}
	p.regs.WriteReg(ns16550.RegMCR, mcr)
	p.mu.Unlock()
	return err
}

func (c *Controller) roundTrip(n int, p *port, pattern []byte, limit uint32) error {
	if _, err := c.TransmitData(n, pattern); err != nil {
		return err
	}
	buf := make([]byte, len(pattern))
	got, err := c.ReceiveDataAll(n, buf, selfTestTimeout)
	if err != nil {
		return fmt.Errorf("received %d of %d bytes: %w", got, len(pattern), err)
	}
	if !bytes.Equal(buf, pattern) {
		return fmt.Errorf("sent % X, got % X", pattern, buf)
	}
	return c.drain(p, limit)
}

func (p *port) countLineErrors(lsr byte) {
	if lsr&ns16550.LSROverrun != 0 {
		p.counters.Overrun++
	}
	if lsr&ns16550.LSRParity != 0 {
		p.counters.Parity++
	}
	if lsr&ns16550.LSRFraming != 0 {
		p.counters.Framing++
	}
	if lsr&ns16550.LSRBreak != 0 {
		p.counters.Break++
	}
}

// HandleInterrupt services port n until the chip reports nothing
// pending.
func (c *Controller) HandleInterrupt(n int) {
	p, err := c.port(n)
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		iir := p.regs.ReadReg(ns16550.RegIIR) & ns16550.IIRIDMask
		switch iir {
		case ns16550.IIRNoInterrupt:
			return
		case ns16550.IIRReceiveData, ns16550.IIRTimeout:
			for {
				lsr := p.regs.ReadReg(ns16550.RegLSR)
				p.countLineErrors(lsr)
				if lsr&ns16550.LSRDataReady == 0 {
					break
				}
				if p.rx.pushOverwrite(p.regs.ReadReg(ns16550.RegData)) {
					p.counters.Dropped++
				}
				p.counters.RX++
			}
		case ns16550.IIRTransmitEmpty:
			if p.tx.len() == 0 {
				p.transmitting = false
			} else {
				p.prime()
			}
		case ns16550.IIRLineStatus:
			p.countLineErrors(p.regs.ReadReg(ns16550.RegLSR))
		default:
			status.Unreachable("serial", "port %d: interrupt identification %#02x", n, iir)
		}
	}
}
