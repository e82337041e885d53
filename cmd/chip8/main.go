// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ezrec/chip8/emulator"
)

func main() {
	var compile string
	var rom string
	var output string
	var steps int
	var ratio int
	var disasm bool
	var interactive bool
	var subnSelf bool
	var verbose bool

	flag.StringVar(&compile, "c", "", ".asm file to compile")
	flag.StringVar(&rom, "r", "", ".ch8 ROM file to run")
	flag.StringVar(&output, "o", "", "Write the program binary to file, do not execute")
	flag.IntVar(&steps, "n", 1000, "Instruction steps to run")
	flag.IntVar(&ratio, "t", emulator.TIMER_RATIO, "Instruction steps per timer step")
	flag.BoolVar(&disasm, "d", false, "Print the program listing, do not execute")
	flag.BoolVar(&interactive, "i", false, "Run interactively in the terminal")
	flag.BoolVar(&subnSelf, "q", false, "Quirk: SUBN subtracts VY from itself")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.Cpu.Quirks.SubnSelf = subnSelf

	switch {
	case len(compile) != 0 && len(rom) != 0:
		log.Fatalf("%v: -c and -r are exclusive", os.Args[0])
	case len(compile) != 0:
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		err = emu.Assemble(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
	case len(rom) != 0:
		inf, err := os.Open(rom)
		if err != nil {
			log.Fatalf("%v: %v", rom, err)
		}
		defer inf.Close()

		err = emu.LoadRom(inf)
		if err != nil {
			log.Fatalf("%v: %v", rom, err)
		}
	default:
		log.Fatalf("%v: one of -c or -r is required", os.Args[0])
	}

	if len(output) != 0 {
		err := os.WriteFile(output, emu.Program.Binary(), 0o644)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
		return
	}

	if disasm {
		fmt.Print(emu.Program.String())
		return
	}

	err := emu.Reset()
	if err != nil {
		log.Fatal(err)
	}

	if interactive {
		err = runTerminal(emu, ratio)
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	emu.Beep = func() {
		fmt.Fprint(os.Stderr, "\a")
	}

	err = emu.Run(steps, ratio)

	display := emu.Display()
	fmt.Print(display.String())

	if err != nil {
		log.Print(emu.Cpu.String())
		log.Fatal(err)
	}
}
