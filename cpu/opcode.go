package cpu

import (
	"fmt"
	"strings"
)

// Code is a single 16-bit CHIP-8 instruction word.
type Code uint16

// CodeOp is the decoded instruction kind.
type CodeOp int

const (
	OP_UNKNOWN   = CodeOp(iota) // .word
	OP_NOP                      // 0000
	OP_CLS                      // 00E0
	OP_RET                      // 00EE
	OP_JP                       // 1NNN
	OP_CALL                     // 2NNN
	OP_SE_IMM                   // 3XNN
	OP_SNE_IMM                  // 4XNN
	OP_SE_REG                   // 5XY0
	OP_LD_IMM                   // 6XNN
	OP_ADD_IMM                  // 7XNN
	OP_LD_REG                   // 8XY0
	OP_OR                       // 8XY1
	OP_AND                      // 8XY2
	OP_XOR                      // 8XY3
	OP_ADD_REG                  // 8XY4
	OP_SUB                      // 8XY5
	OP_SHR                      // 8XY6
	OP_SUBN                     // 8XY7
	OP_SHL                      // 8XYE
	OP_SNE_REG                  // 9XY0
	OP_LD_I                     // ANNN
	OP_JP_V0                    // BNNN
	OP_RND                      // CXNN
	OP_DRW                      // DXYN
	OP_SKP                      // EX9E
	OP_SKNP                     // EXA1
	OP_LD_VX_DT                 // FX07
	OP_LD_VX_K                  // FX0A
	OP_LD_DT_VX                 // FX15
	OP_LD_ST_VX                 // FX18
	OP_ADD_I                    // FX1E
	OP_LD_F                     // FX29
	OP_LD_B                     // FX33
	OP_LD_MEM_VX                // FX55
	OP_LD_VX_MEM                // FX65
	op_count
)

// CodeArg is an operand kind of an instruction form.
type CodeArg int

//go:generate go tool stringer -linecomment -type=CodeArg
const (
	ARG_VX  = CodeArg(iota) // VX
	ARG_VY                  // VY
	ARG_N                   // $N
	ARG_NN                  // $NN
	ARG_NNN                 // $NNN
	ARG_I                   // I
	ARG_V0                  // V0
	ARG_DT                  // DT
	ARG_ST                  // ST
	ARG_K                   // K
	ARG_F                   // F
	ARG_B                   // B
	ARG_MEM                 // [I]
)

// literal returns the fixed token an operand is written as, if any.
func (arg CodeArg) literal() (text string, ok bool) {
	switch arg {
	case ARG_I:
		return "I", true
	case ARG_V0:
		return "V0", true
	case ARG_DT:
		return "DT", true
	case ARG_ST:
		return "ST", true
	case ARG_K:
		return "K", true
	case ARG_F:
		return "F", true
	case ARG_B:
		return "B", true
	case ARG_MEM:
		return "[I]", true
	}
	return
}

// CodeForm is the assembly form of an instruction kind.
type CodeForm struct {
	Base uint16    // Instruction word with all operand fields zero.
	Name string    // Mnemonic.
	Args []CodeArg // Operands, in assembly order.
}

var codeForms = [op_count]CodeForm{
	OP_UNKNOWN:   {0x0000, ".word", []CodeArg{}},
	OP_NOP:       {0x0000, "NOP", nil},
	OP_CLS:       {0x00E0, "CLS", nil},
	OP_RET:       {0x00EE, "RET", nil},
	OP_JP:        {0x1000, "JP", []CodeArg{ARG_NNN}},
	OP_CALL:      {0x2000, "CALL", []CodeArg{ARG_NNN}},
	OP_SE_IMM:    {0x3000, "SE", []CodeArg{ARG_VX, ARG_NN}},
	OP_SNE_IMM:   {0x4000, "SNE", []CodeArg{ARG_VX, ARG_NN}},
	OP_SE_REG:    {0x5000, "SE", []CodeArg{ARG_VX, ARG_VY}},
	OP_LD_IMM:    {0x6000, "LD", []CodeArg{ARG_VX, ARG_NN}},
	OP_ADD_IMM:   {0x7000, "ADD", []CodeArg{ARG_VX, ARG_NN}},
	OP_LD_REG:    {0x8000, "LD", []CodeArg{ARG_VX, ARG_VY}},
	OP_OR:        {0x8001, "OR", []CodeArg{ARG_VX, ARG_VY}},
	OP_AND:       {0x8002, "AND", []CodeArg{ARG_VX, ARG_VY}},
	OP_XOR:       {0x8003, "XOR", []CodeArg{ARG_VX, ARG_VY}},
	OP_ADD_REG:   {0x8004, "ADD", []CodeArg{ARG_VX, ARG_VY}},
	OP_SUB:       {0x8005, "SUB", []CodeArg{ARG_VX, ARG_VY}},
	OP_SHR:       {0x8006, "SHR", []CodeArg{ARG_VX, ARG_VY}},
	OP_SUBN:      {0x8007, "SUBN", []CodeArg{ARG_VX, ARG_VY}},
	OP_SHL:       {0x800E, "SHL", []CodeArg{ARG_VX, ARG_VY}},
	OP_SNE_REG:   {0x9000, "SNE", []CodeArg{ARG_VX, ARG_VY}},
	OP_LD_I:      {0xA000, "LD", []CodeArg{ARG_I, ARG_NNN}},
	OP_JP_V0:     {0xB000, "JP", []CodeArg{ARG_V0, ARG_NNN}},
	OP_RND:       {0xC000, "RND", []CodeArg{ARG_VX, ARG_NN}},
	OP_DRW:       {0xD000, "DRW", []CodeArg{ARG_VX, ARG_VY, ARG_N}},
	OP_SKP:       {0xE09E, "SKP", []CodeArg{ARG_VX}},
	OP_SKNP:      {0xE0A1, "SKNP", []CodeArg{ARG_VX}},
	OP_LD_VX_DT:  {0xF007, "LD", []CodeArg{ARG_VX, ARG_DT}},
	OP_LD_VX_K:   {0xF00A, "LD", []CodeArg{ARG_VX, ARG_K}},
	OP_LD_DT_VX:  {0xF015, "LD", []CodeArg{ARG_DT, ARG_VX}},
	OP_LD_ST_VX:  {0xF018, "LD", []CodeArg{ARG_ST, ARG_VX}},
	OP_ADD_I:     {0xF01E, "ADD", []CodeArg{ARG_I, ARG_VX}},
	OP_LD_F:      {0xF029, "LD", []CodeArg{ARG_F, ARG_VX}},
	OP_LD_B:      {0xF033, "LD", []CodeArg{ARG_B, ARG_VX}},
	OP_LD_MEM_VX: {0xF055, "LD", []CodeArg{ARG_MEM, ARG_VX}},
	OP_LD_VX_MEM: {0xF065, "LD", []CodeArg{ARG_VX, ARG_MEM}},
}

// Form returns the assembly form of the instruction kind.
func (op CodeOp) Form() CodeForm {
	if op < 0 || op >= op_count {
		op = OP_UNKNOWN
	}
	return codeForms[op]
}

// String returns the mnemonic of the instruction kind.
func (op CodeOp) String() string {
	return op.Form().Name
}

// Nibbles splits the word into its four 4-bit fields, most significant first.
func (code Code) Nibbles() (d1, d2, d3, d4 uint8) {
	d1 = uint8(code>>12) & 0xf
	d2 = uint8(code>>8) & 0xf
	d3 = uint8(code>>4) & 0xf
	d4 = uint8(code>>0) & 0xf
	return
}

// X returns the first register operand index.
func (code Code) X() int {
	return int(code>>8) & 0xf
}

// Y returns the second register operand index.
func (code Code) Y() int {
	return int(code>>4) & 0xf
}

// N returns the low 4-bit immediate.
func (code Code) N() uint8 {
	return uint8(code) & 0xf
}

// NN returns the low 8-bit immediate.
func (code Code) NN() uint8 {
	return uint8(code)
}

// NNN returns the low 12-bit address.
func (code Code) NNN() uint16 {
	return uint16(code) & 0xfff
}

// Decode returns the instruction kind of the word, matching all four nibbles.
func (code Code) Decode() CodeOp {
	d1, d2, d3, d4 := code.Nibbles()

	switch d1 {
	case 0x0:
		switch {
		case d2 == 0 && d3 == 0x0 && d4 == 0x0:
			return OP_NOP
		case d2 == 0 && d3 == 0xE && d4 == 0x0:
			return OP_CLS
		case d2 == 0 && d3 == 0xE && d4 == 0xE:
			return OP_RET
		}
	case 0x1:
		return OP_JP
	case 0x2:
		return OP_CALL
	case 0x3:
		return OP_SE_IMM
	case 0x4:
		return OP_SNE_IMM
	case 0x5:
		if d4 == 0 {
			return OP_SE_REG
		}
	case 0x6:
		return OP_LD_IMM
	case 0x7:
		return OP_ADD_IMM
	case 0x8:
		switch d4 {
		case 0x0:
			return OP_LD_REG
		case 0x1:
			return OP_OR
		case 0x2:
			return OP_AND
		case 0x3:
			return OP_XOR
		case 0x4:
			return OP_ADD_REG
		case 0x5:
			return OP_SUB
		case 0x6:
			return OP_SHR
		case 0x7:
			return OP_SUBN
		case 0xE:
			return OP_SHL
		}
	case 0x9:
		if d4 == 0 {
			return OP_SNE_REG
		}
	case 0xA:
		return OP_LD_I
	case 0xB:
		return OP_JP_V0
	case 0xC:
		return OP_RND
	case 0xD:
		return OP_DRW
	case 0xE:
		switch {
		case d3 == 0x9 && d4 == 0xE:
			return OP_SKP
		case d3 == 0xA && d4 == 0x1:
			return OP_SKNP
		}
	case 0xF:
		switch uint8(code) {
		case 0x07:
			return OP_LD_VX_DT
		case 0x0A:
			return OP_LD_VX_K
		case 0x15:
			return OP_LD_DT_VX
		case 0x18:
			return OP_LD_ST_VX
		case 0x1E:
			return OP_ADD_I
		case 0x29:
			return OP_LD_F
		case 0x33:
			return OP_LD_B
		case 0x55:
			return OP_LD_MEM_VX
		case 0x65:
			return OP_LD_VX_MEM
		}
	}

	return OP_UNKNOWN
}

// MakeCode encodes an instruction kind with its operand fields.
// Operands that the kind does not use are ignored.
func MakeCode(op CodeOp, x, y int, imm uint16) Code {
	form := op.Form()
	word := form.Base
	for _, arg := range form.Args {
		switch arg {
		case ARG_VX:
			word |= uint16(x&0xf) << 8
		case ARG_VY:
			word |= uint16(y&0xf) << 4
		case ARG_N:
			word |= imm & 0xf
		case ARG_NN:
			word |= imm & 0xff
		case ARG_NNN:
			word |= imm & 0xfff
		}
	}
	if op == OP_UNKNOWN {
		word = imm
	}
	return Code(word)
}

// String returns the assembly language representation of this instruction.
func (code Code) String() string {
	op := code.Decode()
	if op == OP_UNKNOWN {
		return fmt.Sprintf(".word $%04X", uint16(code))
	}

	form := op.Form()
	args := make([]string, 0, len(form.Args))
	for _, arg := range form.Args {
		if text, ok := arg.literal(); ok {
			args = append(args, text)
			continue
		}
		switch arg {
		case ARG_VX:
			args = append(args, fmt.Sprintf("V%X", code.X()))
		case ARG_VY:
			args = append(args, fmt.Sprintf("V%X", code.Y()))
		case ARG_N:
			args = append(args, fmt.Sprintf("$%X", code.N()))
		case ARG_NN:
			args = append(args, fmt.Sprintf("$%02X", code.NN()))
		case ARG_NNN:
			args = append(args, fmt.Sprintf("$%03X", code.NNN()))
		}
	}

	if len(args) == 0 {
		return form.Name
	}

	return form.Name + " " + strings.Join(args, ", ")
}
