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
	"sync"

	"github.com/gdamore/tcell"
)

type redrawEvent struct{}

// TcellConsole draws the serial stream on a full screen terminal with a
// status line at the bottom. F12 quits.
type TcellConsole struct {
	sync.Mutex

	screen tcell.Screen
	term   *terminal
	led    bool
	status string

	inputHandler func(byte)
	dirty        bool
}

// NewTcellConsole takes ownership of screen, which may be a simulation
// screen in tests. A nil screen opens the real terminal.
func NewTcellConsole(screen tcell.Screen) (*TcellConsole, error) {
	if screen == nil {
		tcell.SetEncodingFallback(tcell.EncodingFallbackASCII)

		var err error
		if screen, err = tcell.NewScreen(); err != nil {
			return nil, err
		}
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.DisableMouse()
	screen.Clear()

	w, h := screen.Size()
	return &TcellConsole{screen: screen, term: newTerminal(w, h-1)}, nil
}

func (p *TcellConsole) Write(b byte) {
	p.Lock()
	p.term.put(b)
	post := !p.dirty
	p.dirty = true
	p.Unlock()

	// One redraw covers everything written before it runs.
	if post {
		p.screen.PostEvent(tcell.NewEventInterrupt(redrawEvent{}))
	}
}

func (p *TcellConsole) SetLED(on bool) {
	p.Lock()
	p.led = on
	p.Unlock()
	p.screen.PostEvent(tcell.NewEventInterrupt(redrawEvent{}))
}

func (p *TcellConsole) SetStatus(s string) {
	p.Lock()
	p.status = s
	p.Unlock()
	p.screen.PostEvent(tcell.NewEventInterrupt(redrawEvent{}))
}

func (p *TcellConsole) SetInputHandler(h func(byte)) {
	p.Lock()
	p.inputHandler = h
	p.Unlock()
}

func (p *TcellConsole) Run(quit func()) error {
	s := p.screen
	for {
		switch ev := s.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyF12 {
				if quit != nil {
					quit()
				}
				return nil
			}
			p.pushKey(ev)
		case *tcell.EventResize:
			w, h := ev.Size()
			p.Lock()
			p.term.resize(w, h-1)
			p.Unlock()
			s.Sync()
			p.draw()
		case *tcell.EventInterrupt:
			p.draw()
		}
	}
}

func (p *TcellConsole) Close() {
	p.screen.Fini()
}

func (p *TcellConsole) pushKey(ev *tcell.EventKey) {
	data := keyBytes(ev)

	p.Lock()
	h := p.inputHandler
	p.Unlock()

	if h == nil {
		return
	}
	for _, b := range data {
		h(b)
	}
}

func (p *TcellConsole) draw() {
	p.Lock()
	defer p.Unlock()

	p.dirty = false
	s := p.screen
	t := p.term

	for y, row := range t.cells {
		for x, r := range row {
			s.SetContent(x, y, r, nil, tcell.StyleDefault)
		}
	}
	s.ShowCursor(t.cx, t.cy)

	bar := tcell.StyleDefault.Reverse(true)
	led := tcell.StyleDefault.Foreground(tcell.ColorGray).Reverse(true)
	if p.led {
		led = tcell.StyleDefault.Foreground(tcell.ColorRed).Reverse(true)
	}
	s.SetContent(0, t.rows, '●', nil, led)
	x := 1
	for _, r := range " " + p.status {
		if x >= t.cols {
			break
		}
		s.SetContent(x, t.rows, r, nil, bar)
		x++
	}
	for ; x < t.cols; x++ {
		s.SetContent(x, t.rows, ' ', nil, bar)
	}
	s.Show()
}

var keySequences = map[tcell.Key]string{
	tcell.KeyEnter:      "\r",
	tcell.KeyBackspace:  "\b",
	tcell.KeyBackspace2: "\b",
	tcell.KeyTab:        "\t",
	tcell.KeyEscape:     "\x1b",
	tcell.KeyDelete:     "\x7f",
	tcell.KeyUp:         "\x1b[A",
	tcell.KeyDown:       "\x1b[B",
	tcell.KeyRight:      "\x1b[C",
	tcell.KeyLeft:       "\x1b[D",
	tcell.KeyHome:       "\x1b[H",
	tcell.KeyEnd:        "\x1b[F",
}

// keyBytes turns a key press into what a serial terminal would send.
func keyBytes(ev *tcell.EventKey) []byte {
	if seq, ok := keySequences[ev.Key()]; ok {
		return []byte(seq)
	}
	switch k := ev.Key(); {
	case k == tcell.KeyRune:
		if r := ev.Rune(); r < 0x80 {
			return []byte{byte(r)}
		}
	case k <= tcell.KeyUS:
		return []byte{byte(k)}
	}
	return nil
}
