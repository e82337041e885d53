package main

import (
	"fmt"
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/emulator"
)

// KEY_HOLD is the number of frames a key stays down after its last
// press event. Terminals report presses and repeats, never releases.
const KEY_HOLD = 6

// keyMap is the conventional QWERTY layout of the hex keypad.
var keyMap = map[rune]int{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xC,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xD,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xE,
	'z': 0xA, 'x': 0x0, 'c': 0xB, 'v': 0xF,
}

var (
	colorOn  = tcell.ColorGreen
	colorOff = tcell.ColorBlack
)

type terminal struct {
	screen tcell.Screen
	emu    *emulator.Emulator
	held   [cpu.KEY_COUNT]int
	paused bool
	fault  error
}

// runTerminal runs the emulator at TIMER_HZ frames per second, with ratio
// instruction steps per frame, until escape is pressed. A machine fault
// stops execution, and is returned on exit.
func runTerminal(emu *emulator.Emulator, ratio int) (err error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return
	}
	err = screen.Init()
	if err != nil {
		return
	}
	defer screen.Fini()

	term := &terminal{
		screen: screen,
		emu:    emu,
	}

	emu.Beep = func() {
		_ = screen.Beep()
	}

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(time.Second / emulator.TIMER_HZ)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if term.handle(ev) {
				err = term.fault
				return
			}
		case <-ticker.C:
			if term.paused || term.fault != nil {
				continue
			}
			term.fault = emu.Run(ratio, 0)
			if term.fault == nil {
				emu.Timer()
				term.release()
			}
			term.draw()
		}
	}
}

// handle processes a terminal event, returning true to quit.
func (term *terminal) handle(ev tcell.Event) (quit bool) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		term.screen.Sync()
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyRune:
			if ev.Rune() == ' ' {
				term.paused = !term.paused
				return
			}
			key, ok := keyMap[unicode.ToLower(ev.Rune())]
			if ok {
				term.held[key] = KEY_HOLD
				_ = term.emu.SetKey(key, true)
			}
		}
	}

	return
}

// release lets go of keys with no recent press event.
func (term *terminal) release() {
	for key, frames := range term.held {
		if frames == 0 {
			continue
		}
		term.held[key]--
		if term.held[key] == 0 {
			_ = term.emu.SetKey(key, false)
		}
	}
}

// draw renders two display rows per terminal row, using half blocks.
func (term *terminal) draw() {
	display := term.emu.Display()
	for y := 0; y < cpu.SCREEN_HEIGHT; y += 2 {
		for x := range cpu.SCREEN_WIDTH {
			fg, bg := colorOff, colorOff
			if display.Pixel(x, y) {
				fg = colorOn
			}
			if display.Pixel(x, y+1) {
				bg = colorOn
			}
			style := tcell.StyleDefault.Foreground(fg).Background(bg)
			term.screen.SetContent(x, y/2, '▀', nil, style)
		}
	}

	c := term.emu.Cpu
	status := fmt.Sprintf("pc:%03X i:%03X dt:%02X st:%02X  [space] pause [esc] quit",
		c.Pc, c.Index, c.Delay, c.Sound)
	if term.fault != nil {
		status = fmt.Sprintf("%v  [esc] quit", term.fault)
	}
	term.screen.SetContent(0, cpu.SCREEN_HEIGHT/2, ' ', nil, tcell.StyleDefault)
	for n, r := range []rune(status) {
		term.screen.SetContent(n, cpu.SCREEN_HEIGHT/2+1, r, nil, tcell.StyleDefault)
	}

	term.screen.Show()
}
