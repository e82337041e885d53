package cpu

import (
	"fmt"
	"iter"
	"strings"
)

// Opcode represents a line of assembled code with its source location and generated bytes.
type Opcode struct {
	LineNo    int
	Addr      int
	Words     []string
	Bytes     []byte
	Data      bool // Emitted by .byte or .word, not an instruction.
	LinkLabel string
}

// Text returns the source words in assembly form.
func (op *Opcode) Text() string {
	if len(op.Words) < 2 {
		return strings.Join(op.Words, "")
	}
	return op.Words[0] + " " + strings.Join(op.Words[1:], ", ")
}

type Program struct {
	Opcodes []Opcode
}

type Debug struct {
	*Opcode
	Index int
}

// Debug finds the source line which emitted the byte at addr.
func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if int(addr) >= op.Addr && int(addr) < op.Addr+len(op.Bytes) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(addr) - op.Addr,
			}
			break
		}
	}

	return
}

// Binary returns the program image, to be loaded at PROGRAM_START.
func (prog *Program) Binary() (bins []byte) {
	for _, op := range prog.Opcodes {
		offset := op.Addr - PROGRAM_START
		for len(bins) < offset {
			bins = append(bins, 0)
		}
		bins = append(bins[:offset], op.Bytes...)
	}

	return
}

// Codes iterates over the address and word of every instruction.
func (prog *Program) Codes() iter.Seq2[uint16, Code] {
	return func(yield func(addr uint16, code Code) bool) {
		for _, op := range prog.Opcodes {
			if op.Data || len(op.Bytes) != 2 {
				continue
			}
			code := Code(op.Bytes[0])<<8 | Code(op.Bytes[1])
			if !yield(uint16(op.Addr), code) {
				return
			}
		}
	}
}

// Disassemble decodes a program image loaded at PROGRAM_START, one
// instruction word per two bytes. A trailing odd byte is emitted as data.
func Disassemble(image []byte) (prog *Program) {
	prog = &Program{}
	for n := 0; n < len(image); n += 2 {
		addr := PROGRAM_START + n
		if n+1 == len(image) {
			prog.Opcodes = append(prog.Opcodes, Opcode{
				Addr:  addr,
				Words: splitWords(fmt.Sprintf(".byte $%02X", image[n])),
				Bytes: []byte{image[n]},
				Data:  true,
			})
			break
		}
		code := Code(image[n])<<8 | Code(image[n+1])
		prog.Opcodes = append(prog.Opcodes, Opcode{
			Addr:  addr,
			Words: splitWords(code.String()),
			Bytes: []byte{image[n], image[n+1]},
			Data:  code.Decode() == OP_UNKNOWN,
		})
	}

	return
}

// String returns an assembly listing of the program, one line per opcode.
func (prog *Program) String() string {
	var sb strings.Builder
	for _, op := range prog.Opcodes {
		fmt.Fprintf(&sb, "%03X: % -8X %v\n", op.Addr, op.Bytes, op.Text())
	}
	return sb.String()
}
