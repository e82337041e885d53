// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"fmt"
	"io"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/internal"
)

const (
	TIMER_HZ    = 60 // Timer step rate.
	TIMER_RATIO = 10 // Default instruction steps per timer step.

	ROM_LIMIT = cpu.MEMORY_SIZE - cpu.PROGRAM_START // Largest loadable ROM.
)

var _emulator_defines = map[string]string{
	"TIMER_HZ":  fmt.Sprintf("%v", TIMER_HZ),
	"ROM_LIMIT": fmt.Sprintf("%#x", ROM_LIMIT),
}

// Emulator state. CPU + the program listing it is running.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently running program listing.

	Beep func() // Called when the sound timer expires.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:     cpu.NewCpu(),
		Program: &cpu.Program{},
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.Concat2(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Assemble parses source text into the current program.
// The machine is not reset.
func (emu *Emulator) Assemble(input io.Reader) (err error) {
	asm := &cpu.Assembler{Verbose: emu.Verbose}
	for equ, value := range emu.Defines() {
		asm.Predefine(equ, value)
	}

	prog, err := asm.Parse(input)
	if err != nil {
		return
	}

	emu.Program = prog

	return
}

// LoadRom reads a complete ROM image as the current program, and resets.
func (emu *Emulator) LoadRom(input io.Reader) (err error) {
	data, err := io.ReadAll(io.LimitReader(input, ROM_LIMIT+1))
	if err != nil {
		return
	}

	if len(data) > ROM_LIMIT {
		err = fmt.Errorf("%w: more than %d bytes", cpu.ErrProgramSize, ROM_LIMIT)
		return
	}

	emu.Program = cpu.Disassemble(data)

	err = emu.Reset()
	return
}

// Reset the machine, and reload the current program.
func (emu *Emulator) Reset() (err error) {
	emu.Cpu.Verbose = emu.Verbose

	emu.Cpu.Reset()

	err = emu.Cpu.Load(emu.Program.Binary())
	if err != nil {
		return
	}

	if emu.Verbose {
		log.Printf("emulator: reset, %d opcodes", len(emu.Program.Opcodes))
	}

	return
}

// Ticks returns the total instructions executed since a reset.
func (emu *Emulator) Ticks() int {
	return emu.Cpu.Ticks
}

// Code returns the current instruction code.
func (emu *Emulator) Code() (code cpu.Code) {
	code, _ = emu.Cpu.FetchCode()
	return
}

// LineNo returns the current line number for the executing opcode.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.Pc)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick performs a single instruction step of the emulator.
func (emu *Emulator) Tick() (err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	pc := emu.Cpu.Pc
	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{Pc: pc, LineNo: lineno, Err: err}
		}
	}()

	err = emu.Cpu.Tick()

	return
}

// Timer performs a single timer step, calling Beep when the sound timer expires.
func (emu *Emulator) Timer() {
	if emu.Cpu.TickTimers() {
		if emu.Verbose {
			log.Printf("emulator: beep")
		}
		if emu.Beep != nil {
			emu.Beep()
		}
	}
}

// Run performs up to steps instruction steps, with a timer step after
// every ratio instruction steps. A ratio of zero never steps the timers.
func (emu *Emulator) Run(steps int, ratio int) (err error) {
	for n := range steps {
		err = emu.Tick()
		if err != nil {
			return
		}

		if ratio > 0 && (n+1)%ratio == 0 {
			emu.Timer()
		}
	}

	return
}
