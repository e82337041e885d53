package cpu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testProgram() *Program {
	return &Program{
		Opcodes: []Opcode{
			{LineNo: 1, Addr: 0x200, Words: []string{"LD", "V0", "$10"},
				Bytes: []byte{0x60, 0x10}},
			{LineNo: 2, Addr: 0x202, Words: []string{"LD", "V1", "$20"},
				Bytes: []byte{0x61, 0x20}},
			{LineNo: 3, Addr: 0x204, Words: []string{".byte", "1", "2", "3"},
				Bytes: []byte{1, 2, 3}, Data: true},
			{LineNo: 4, Addr: 0x207, Words: []string{"ADD", "V0", "V1"},
				Bytes: []byte{0x80, 0x14}},
		},
	}
}

func TestProgram_Debug(t *testing.T) {
	assert := assert.New(t)

	prog := testProgram()

	dbg := prog.Debug(0x200)
	assert.NotNil(dbg.Opcode)
	assert.Equal(1, dbg.Opcode.LineNo)
	assert.Equal(0, dbg.Index)

	dbg = prog.Debug(0x203)
	assert.NotNil(dbg.Opcode)
	assert.Equal(2, dbg.Opcode.LineNo)
	assert.Equal(1, dbg.Index)

	dbg = prog.Debug(0x206)
	assert.NotNil(dbg.Opcode)
	assert.Equal(3, dbg.Opcode.LineNo)
	assert.Equal(2, dbg.Index)

	dbg = prog.Debug(0x207)
	assert.NotNil(dbg.Opcode)
	assert.Equal(4, dbg.Opcode.LineNo)
}

func TestProgram_Debug_NotFound(t *testing.T) {
	assert := assert.New(t)

	prog := testProgram()

	dbg := prog.Debug(0x1FF)
	assert.Nil(dbg.Opcode)
	assert.Equal(0, dbg.Index)

	dbg = prog.Debug(0x209)
	assert.Nil(dbg.Opcode)
}

func TestProgram_Binary(t *testing.T) {
	assert := assert.New(t)

	prog := testProgram()

	assert.Equal([]byte{0x60, 0x10, 0x61, 0x20, 1, 2, 3, 0x80, 0x14}, prog.Binary())
}

func TestProgram_Binary_Gap(t *testing.T) {
	assert := assert.New(t)

	prog := &Program{
		Opcodes: []Opcode{
			{Addr: 0x200, Bytes: []byte{0x00, 0xE0}},
			{Addr: 0x205, Bytes: []byte{0x12, 0x00}},
		},
	}

	assert.Equal([]byte{0x00, 0xE0, 0, 0, 0, 0x12, 0x00}, prog.Binary())
}

func TestProgram_Codes(t *testing.T) {
	assert := assert.New(t)

	prog := testProgram()

	addrs := []uint16{}
	codes := []Code{}
	for addr, code := range prog.Codes() {
		addrs = append(addrs, addr)
		codes = append(codes, code)
	}

	assert.Equal([]uint16{0x200, 0x202, 0x207}, addrs)
	assert.Equal([]Code{0x6010, 0x6120, 0x8014}, codes)
}

func TestProgram_Codes_EarlyReturn(t *testing.T) {
	assert := assert.New(t)

	prog := testProgram()

	count := 0
	for range prog.Codes() {
		count++
		if count == 1 {
			break
		}
	}

	assert.Equal(1, count)
}

func TestProgram_Codes_Empty(t *testing.T) {
	assert := assert.New(t)

	prog := &Program{
		Opcodes: []Opcode{},
	}

	count := 0
	for range prog.Codes() {
		count++
	}

	assert.Equal(0, count)
}

func TestProgram_Disassemble(t *testing.T) {
	assert := assert.New(t)

	prog := Disassemble([]byte{0x00, 0xE0, 0xD0, 0x15, 0xFF, 0xFF, 0x12})

	assert.Equal(4, len(prog.Opcodes))

	assert.Equal(0x200, prog.Opcodes[0].Addr)
	assert.Equal("CLS", prog.Opcodes[0].Text())
	assert.False(prog.Opcodes[0].Data)

	assert.Equal(0x202, prog.Opcodes[1].Addr)
	assert.Equal("DRW V0, V1, $5", prog.Opcodes[1].Text())

	assert.Equal(".word $FFFF", prog.Opcodes[2].Text())
	assert.True(prog.Opcodes[2].Data)

	assert.Equal(0x206, prog.Opcodes[3].Addr)
	assert.Equal(".byte $12", prog.Opcodes[3].Text())
	assert.Equal([]byte{0x12}, prog.Opcodes[3].Bytes)
	assert.True(prog.Opcodes[3].Data)

	assert.Equal([]byte{0x00, 0xE0, 0xD0, 0x15, 0xFF, 0xFF, 0x12}, prog.Binary())
}

func TestProgram_String(t *testing.T) {
	assert := assert.New(t)

	prog := Disassemble([]byte{0x60, 0x05, 0x00, 0xEE})

	lines := strings.Split(strings.TrimSuffix(prog.String(), "\n"), "\n")
	assert.Equal(2, len(lines))
	assert.True(strings.HasPrefix(lines[0], "200: 60 05"))
	assert.True(strings.HasSuffix(lines[0], "LD V0, $05"))
	assert.True(strings.HasPrefix(lines[1], "202: 00 EE"))
	assert.True(strings.HasSuffix(lines[1], "RET"))
}

func TestProgram_Integration_ParseAndDebug(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	program := strings.Join([]string{
		"LD V0, $10",
		"",
		"LD V1, $20",
		"ADD V0, V1",
	}, "\n")

	prog, err := asm.Parse(strings.NewReader(program))
	assert.NoError(err)

	dbg := prog.Debug(0x200)
	assert.NotNil(dbg.Opcode)
	assert.Equal(1, dbg.Opcode.LineNo)

	dbg = prog.Debug(0x202)
	assert.NotNil(dbg.Opcode)
	assert.Equal(3, dbg.Opcode.LineNo)

	dbg = prog.Debug(0x205)
	assert.NotNil(dbg.Opcode)
	assert.Equal(4, dbg.Opcode.LineNo)
	assert.Equal(1, dbg.Index)
}
