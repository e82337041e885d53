package main

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"

	"github.com/ezrec/chip8/emulator"
)

func newTestTerminal(t *testing.T) *terminal {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(screen.Fini)

	return &terminal{
		screen: screen,
		emu:    emulator.NewEmulator(),
	}
}

func TestTerminalKeys(t *testing.T) {
	assert := assert.New(t)

	term := newTestTerminal(t)

	quit := term.handle(tcell.NewEventKey(tcell.KeyRune, 'W', tcell.ModNone))
	assert.False(quit)
	assert.True(term.emu.Key(0x5))

	quit = term.handle(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone))
	assert.False(quit)
	assert.True(term.emu.Key(0x0))

	for range KEY_HOLD - 1 {
		term.release()
	}
	assert.True(term.emu.Key(0x5))

	term.release()
	assert.False(term.emu.Key(0x5))
	assert.False(term.emu.Key(0x0))

	quit = term.handle(tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone))
	assert.False(quit)
	assert.True(term.paused)

	quit = term.handle(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	assert.True(quit)
}

func TestTerminalDraw(t *testing.T) {
	assert := assert.New(t)

	term := newTestTerminal(t)
	term.emu.Cpu.Screen.Draw(2, 3, []byte{0x80})

	term.draw()

	primary, _, style, _ := term.screen.GetContent(2, 1)
	assert.Equal('▀', primary)
	fg, bg, _ := style.Decompose()
	assert.Equal(colorOff, fg)
	assert.Equal(colorOn, bg)

	_, _, style, _ = term.screen.GetContent(3, 1)
	fg, bg, _ = style.Decompose()
	assert.Equal(colorOff, fg)
	assert.Equal(colorOff, bg)
}
