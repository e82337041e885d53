// Package cpu implements the CHIP-8 virtual machine and its assembler.
//
// The machine consists of 4KiB of byte addressed memory with the built-in
// hexadecimal font at address 0, sixteen 8-bit registers (V0-VF, with VF used
// as the carry, borrow and collision flag), a 16-bit index register (I), a
// 16-bit program counter (PC), a 16 entry call stack, a 64x32 monochrome
// display, a 16 key keypad, and the delay and sound timers.
//
// Execution is fully synchronous. The caller drives Tick() once per
// instruction and TickTimers() at 60Hz, and reads the display and updates
// the keypad between steps.
//
// The assembler accepts the conventional CHIP-8 mnemonics, which are also
// the disassembly form produced by Code.String().
package cpu
