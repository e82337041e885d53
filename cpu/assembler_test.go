package cpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func assemble(t *testing.T, program ...string) (prog *Program) {
	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(strings.Join(program, "\n")))
	if err != nil {
		t.Fatal(err)
	}
	return
}

func TestAssembler(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	prog, err := asm.Parse(strings.NewReader(""))
	assert.NoError(err)
	assert.Equal(0, len(prog.Opcodes))
	assert.Empty(prog.Binary())

	assert.Equal("0", asm.Equate["LINENO"])
	assert.Equal("0x200", asm.Equate["PROGRAM_START"])
	assert.Equal("0x1000", asm.Equate["MEMORY_SIZE"])
	assert.Equal("64", asm.Equate["SCREEN_WIDTH"])
	assert.Equal("32", asm.Equate["SCREEN_HEIGHT"])
	assert.Equal("5", asm.Equate["FONT_HEIGHT"])
	assert.Equal("16", asm.Equate["KEY_COUNT"])
}

func TestAssemblerBasic(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t,
		"; set V0 to 5, then add 5",
		"  LD V0, $05",
		"  add v0, 5 ; lower case works",
	)

	expected := []Opcode{
		{1 + 1, 0x200, []string{"LD", "V0", "$05"}, []byte{0x60, 0x05}, false, ""},
		{2 + 1, 0x202, []string{"add", "v0", "5"}, []byte{0x70, 0x05}, false, ""},
	}
	assert.Equal(expected, prog.Opcodes)
	assert.Equal([]byte{0x60, 0x05, 0x70, 0x05}, prog.Binary())
}

func TestAssemblerRoundTrip(t *testing.T) {
	assert := assert.New(t)

	var lines []string
	var want []byte
	for op := OP_NOP; op < op_count; op++ {
		code := MakeCode(op, 0xA, 0x5, 0x123)
		lines = append(lines, code.String())
		want = append(want, uint8(code>>8), uint8(code))
	}

	// Unknown words disassemble to data, which assembles back.
	lines = append(lines, Code(0x5121).String())
	want = append(want, 0x51, 0x21)

	prog := assemble(t, lines...)
	assert.Equal(want, prog.Binary())

	again := Disassemble(prog.Binary())
	assert.Equal(len(prog.Opcodes), len(again.Opcodes))
	for n, op := range again.Opcodes {
		assert.Equal(lines[n], op.Text())
	}
}

func TestAssemblerLabels(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t,
		"start:  JP end",
		"        CLS",
		"loop:",
		"        CALL sub",
		"end:    JP start",
		"sub:    LD I, sprite",
		"        RET",
		"sprite: .byte $F0, $90",
	)

	assert.Equal([]byte{
		0x12, 0x06, // 200: JP end
		0x00, 0xE0, // 202: CLS
		0x22, 0x08, // 204: CALL sub
		0x12, 0x00, // 206: JP start
		0xA2, 0x0C, // 208: LD I, sprite
		0x00, 0xEE, // 20A: RET
		0xF0, 0x90, // 20C: sprite
	}, prog.Binary())

	assert.Equal("sub", prog.Opcodes[2].LinkLabel)
	assert.True(prog.Opcodes[6].Data)
}

func TestAssemblerData(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t,
		".byte 1, $2, 0x3, 0b100, -1",
		".word $1234, 0xABCD",
	)

	assert.Equal([]byte{1, 2, 3, 4, 0xff, 0x12, 0x34, 0xAB, 0xCD}, prog.Binary())
	assert.Equal(0x205, prog.Opcodes[1].Addr)
}

func TestAssemblerExpressions(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t,
		".equ WIDTH 8",
		".equ SCORE V3",
		"LD SCORE, $(WIDTH*2+1)",
		"LD V1, 'A'",
		"LD V2, $(SCREEN_WIDTH - 1)",
		"data: .byte 0",
		"LD I, $(data + 1)",
		"ADD V4, -1",
	)

	assert.Equal([]byte{
		0x63, 0x11,
		0x61, 0x41,
		0x62, 0x3F,
		0x00,
		0xA2, 0x07,
		0x74, 0xFF,
	}, prog.Binary())
}

func TestAssemblerMacro(t *testing.T) {
	assert := assert.New(t)

	prog := assemble(t,
		".macro SETADD reg, val",
		"  LD reg, val",
		"@again: ADD reg, 1",
		"  SE reg, $(val + 3)",
		"  JP @again",
		".endm",
		"SETADD V2, 7",
		"SETADD V3, 9",
	)

	assert.Equal([]byte{
		0x62, 0x07,
		0x72, 0x01,
		0x32, 0x0A,
		0x12, 0x02,
		0x63, 0x09,
		0x73, 0x01,
		0x33, 0x0C,
		0x12, 0x0A,
	}, prog.Binary())
}

func TestAssemblerPredefine(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	asm.Predefine("SPEED", "3")
	asm.Predefine("SPEED", "4")

	prog, err := asm.Parse(strings.NewReader("LD V0, SPEED"))
	assert.NoError(err)
	assert.Equal([]byte{0x60, 0x04}, prog.Binary())
}

func TestAssemblerErrors(t *testing.T) {
	table := []struct {
		name    string
		program []string
		lineno  int
		err     error
	}{
		{"unknown", []string{"CLS", "FOO V0"}, 2, ErrInstructionInvalid},
		{"extra", []string{"CLS V0"}, 1, ErrOpcodeExtraArgs},
		{"missing", []string{"DRW V0, V1"}, 1, ErrOpcodeMissing},
		{"range_nn", []string{"LD V0, $100"}, 1, ErrValueRange},
		{"range_n", []string{"DRW V0, V1, 16"}, 1, ErrValueRange},
		{"register", []string{"SKP VG"}, 1, ErrRegisterInvalid},
		{"literal", []string{"LD DT, 5"}, 1, ErrRegisterInvalid},
		{"label_dup", []string{"a: CLS", "a: CLS"}, 2, ErrLabelDuplicate},
		{"equ_syntax", []string{".equ A"}, 1, ErrEquateSyntax},
		{"equ_dup", []string{".equ A 1", ".equ A 2"}, 2, ErrEquateDuplicate},
		{"endm", []string{".endm"}, 1, ErrMacroLonelyEndm},
		{"macro_nest", []string{".macro A", ".macro B"}, 2, ErrMacroNesting},
		{"macro_lonely", []string{".macro A", "CLS"}, 2, ErrMacroLonely},
		{"macro_args", []string{".macro A x", "CLS", ".endm", "A"}, 4, ErrMacroSyntax},
		{"byte_empty", []string{".byte"}, 1, ErrOpcodeMissing},
	}

	for _, entry := range table {
		t.Run(entry.name, func(t *testing.T) {
			assert := assert.New(t)

			asm := &Assembler{}
			_, err := asm.Parse(strings.NewReader(strings.Join(entry.program, "\n")))
			assert.ErrorIs(err, entry.err)

			var syntax *ErrSyntax
			if assert.True(errors.As(err, &syntax)) {
				assert.Equal(entry.lineno, syntax.LineNo)
			}
		})
	}
}

func TestAssemblerLabelMissing(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	_, err := asm.Parse(strings.NewReader("CLS\nJP nowhere\nCLS"))

	var missing ErrLabelMissing
	assert.True(errors.As(err, &missing))
	assert.Equal(ErrLabelMissing("nowhere"), missing)

	var syntax *ErrSyntax
	assert.True(errors.As(err, &syntax))
	assert.Equal(2, syntax.LineNo)
}

func TestAssemblerExpressionError(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	_, err := asm.Parse(strings.NewReader(`LD V0, $("text")`))

	var expr ErrParseExpression
	assert.True(errors.As(err, &expr))
}
