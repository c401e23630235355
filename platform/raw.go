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

package platform

import (
	"bufio"
	"errors"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// QuitByte ends a raw console session. It is Ctrl-].
const QuitByte = 0x1D

// RawConsole passes bytes straight between the machine and a terminal put
// in raw mode. LED and status changes go to the log.
type RawConsole struct {
	lock sync.Mutex

	in    io.Reader
	out   *bufio.Writer
	fd    int
	state *term.State

	inputHandler func(byte)
	led          bool
	done         chan struct{}
	readerDone   chan struct{}
	closeOnce    sync.Once
}

// NewRawConsole uses stdin and stdout. The terminal is left alone when
// stdin is not a terminal.
func NewRawConsole() (*RawConsole, error) {
	p := newRawConsole(os.Stdin, os.Stdout)
	p.fd = int(os.Stdin.Fd())
	if term.IsTerminal(p.fd) {
		st, err := term.MakeRaw(p.fd)
		if err != nil {
			return nil, err
		}
		p.state = st
	}
	return p, nil
}

func newRawConsole(in io.Reader, out io.Writer) *RawConsole {
	return &RawConsole{
		in:         in,
		out:        bufio.NewWriter(out),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
}

func (p *RawConsole) Write(b byte) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.out.WriteByte(b)
	if b == '\n' || p.out.Buffered() > 256 {
		p.out.Flush()
	}
}

// Flush pushes out anything buffered by Write.
func (p *RawConsole) Flush() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.out.Flush()
}

func (p *RawConsole) SetLED(on bool) {
	p.lock.Lock()
	changed := p.led != on
	p.led = on
	p.lock.Unlock()

	if changed {
		log.Printf("LED %v", on)
	}
}

func (p *RawConsole) SetStatus(s string) {
	log.Print(s)
}

func (p *RawConsole) SetInputHandler(h func(byte)) {
	p.lock.Lock()
	p.inputHandler = h
	p.lock.Unlock()
}

func (p *RawConsole) Run(quit func()) error {
	ch := make(chan error, 1)
	go func() {
		defer close(p.readerDone)
		buf := make([]byte, 64)
		for {
			n, err := p.in.Read(buf)
			for _, b := range buf[:n] {
				if b == QuitByte {
					ch <- nil
					return
				}
				p.lock.Lock()
				h := p.inputHandler
				p.lock.Unlock()
				if h != nil {
					h(b)
				}
			}
			if err != nil {
				if err == io.EOF || errors.Is(err, os.ErrDeadlineExceeded) {
					err = nil
				}
				ch <- err
				return
			}
		}
	}()

	select {
	case err := <-ch:
		if quit != nil {
			quit()
		}
		p.Flush()
		return err
	case <-p.done:
		p.Flush()
		return nil
	}
}

// Close ends Run and restores the terminal. The reader blocked on input is
// released through a read deadline when the input supports one; on a
// plain stdin it stays parked until the next byte or process exit.
func (p *RawConsole) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if d, ok := p.in.(interface{ SetReadDeadline(time.Time) error }); ok {
			d.SetReadDeadline(time.Now())
		}
		if p.state != nil {
			term.Restore(p.fd, p.state)
		}
	})
}
