package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"math/rand/v2"
)

const (
	MEMORY_SIZE    = 4096  // Bytes of addressable memory.
	PROGRAM_START  = 0x200 // Load address and initial PC.
	REGISTER_COUNT = 16    // V0 through VF.
	KEY_COUNT      = 16    // Keypad keys 0 through F.
	REG_VF         = 0xF   // Carry, borrow and collision flag register.
)

var _cpu_defines = map[string]string{
	"MEMORY_SIZE":   fmt.Sprintf("%#x", MEMORY_SIZE),
	"PROGRAM_START": fmt.Sprintf("%#x", PROGRAM_START),
	"SCREEN_WIDTH":  fmt.Sprintf("%d", SCREEN_WIDTH),
	"SCREEN_HEIGHT": fmt.Sprintf("%d", SCREEN_HEIGHT),
	"FONT_BASE":     fmt.Sprintf("%#x", FONT_BASE),
	"FONT_HEIGHT":   fmt.Sprintf("%d", FONT_HEIGHT),
	"KEY_COUNT":     fmt.Sprintf("%d", KEY_COUNT),
}

// Quirks selects compatibility behaviours that differ from the standard
// instruction set.
type Quirks struct {
	// SubnSelf makes 8XY7 compute VY - VY instead of VY - VX.
	SubnSelf bool
}

// Cpu is the complete CHIP-8 machine state.
type Cpu struct {
	Verbose bool         // Set to enable verbose logging.
	Quirks  Quirks       // Compatibility behaviours.
	Random  func() uint8 // Random byte source for RND; nil uses math/rand/v2.

	Memory   [MEMORY_SIZE]byte     // Font and program memory.
	Register [REGISTER_COUNT]uint8 // V0 through VF.
	Index    uint16                // I register.
	Pc       uint16                // Address of the next instruction.
	Stack    Stack                 // Return address stack.
	Screen   Display               // Frame buffer.
	Keypad   [KEY_COUNT]bool       // Pressed state of each key.
	Delay    uint8                 // Delay timer.
	Sound    uint8                 // Sound timer.

	Fault error // Set once an instruction fails; cleared by Reset.
	Ticks int   // Instructions executed since reset.
}

// NewCpu creates a machine in its power-on state.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{}
	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Reset the machine state.
// - Zeros memory, then installs the font at FONT_BASE.
// - Clears the registers, stack, display, keypad and timers.
// - Sets PC to PROGRAM_START.
// - Clears any fault and the tick counter.
//
// Verbose, Quirks and Random are configuration, and are left as-is.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Memory[:])
	copy(cpu.Memory[FONT_BASE:], Font[:])
	clear(cpu.Register[:])
	cpu.Index = 0
	cpu.Pc = PROGRAM_START
	cpu.Stack.Reset()
	cpu.Screen.Clear()
	clear(cpu.Keypad[:])
	cpu.Delay = 0
	cpu.Sound = 0

	cpu.Fault = nil
	cpu.Ticks = 0
}

// Load copies a program into memory at PROGRAM_START.
// Memory outside of the program's range is left untouched.
func (cpu *Cpu) Load(program []byte) (err error) {
	if len(program) > MEMORY_SIZE-PROGRAM_START {
		err = fmt.Errorf("%w: %d > %d", ErrProgramSize, len(program), MEMORY_SIZE-PROGRAM_START)
		return
	}

	copy(cpu.Memory[PROGRAM_START:], program)

	if cpu.Verbose {
		log.Printf("cpu: loaded %d bytes", len(program))
	}

	return
}

// SetKey sets the pressed state of a keypad key.
func (cpu *Cpu) SetKey(index int, pressed bool) (err error) {
	if index < 0 || index >= KEY_COUNT {
		err = ErrKeyInvalid
		return
	}

	cpu.Keypad[index] = pressed
	return
}

// Key reports whether a keypad key is pressed.
func (cpu *Cpu) Key(index int) bool {
	if index < 0 || index >= KEY_COUNT {
		return false
	}
	return cpu.Keypad[index]
}

// Keys returns a copy of the keypad state.
func (cpu *Cpu) Keys() [KEY_COUNT]bool {
	return cpu.Keypad
}

// Display returns a copy of the frame buffer.
func (cpu *Cpu) Display() Display {
	return cpu.Screen
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text += fmt.Sprintf("   pc: %03X\n", cpu.Pc)
	text += fmt.Sprintf("    i: %03X\n", cpu.Index)
	if ret, ok := cpu.Stack.Peek(); ok {
		text += fmt.Sprintf("stack: %03X (%d)\n", ret, cpu.Stack.Sp)
	} else {
		text += "stack: --- (0)\n"
	}
	text += fmt.Sprintf("delay: %02X\n", cpu.Delay)
	text += fmt.Sprintf("sound: %02X\n", cpu.Sound)
	for n, val := range cpu.Register {
		text += fmt.Sprintf("   v%X: %02X\n", n, val)
	}

	return
}

// random returns the next random byte.
func (cpu *Cpu) random() uint8 {
	if cpu.Random != nil {
		return cpu.Random()
	}
	return uint8(rand.Uint32())
}

// FetchCode reads the big-endian instruction word at PC.
func (cpu *Cpu) FetchCode() (code Code, err error) {
	if int(cpu.Pc)+1 >= MEMORY_SIZE {
		err = fmt.Errorf("%w: 0x%04x", ErrPcRange, cpu.Pc)
		return
	}

	code = Code(cpu.Memory[cpu.Pc])<<8 | Code(cpu.Memory[cpu.Pc+1])
	return
}

// Tick executes a single instruction.
//
// A failed instruction halts the machine: the error is retained, and
// returned by every further Tick until Reset.
func (cpu *Cpu) Tick() (err error) {
	if cpu.Fault != nil {
		return cpu.Fault
	}

	defer func() {
		if err != nil {
			cpu.Fault = err
			if cpu.Verbose {
				log.Printf("cpu: halted at %03x: %v", cpu.Pc, err)
			}
		}
	}()

	code, err := cpu.FetchCode()
	if err != nil {
		return
	}

	err = cpu.Execute(code)
	if err != nil {
		return
	}

	cpu.Ticks++

	return
}

// checkRange verifies that [addr, addr+size) is inside memory.
func (cpu *Cpu) checkRange(addr uint16, size int) (err error) {
	if int(addr)+size > MEMORY_SIZE {
		err = fmt.Errorf("%w: 0x%04x+%d", ErrMemoryRange, addr, size)
	}
	return
}

// flag converts a condition to a VF value.
func flag(cond bool) uint8 {
	if cond {
		return 1
	}
	return 0
}

// Execute executes a single instruction as if fetched from PC.
// Machine state is only modified if the instruction succeeds.
func (cpu *Cpu) Execute(code Code) (err error) {
	defer func() {
		if err != nil {
			err = errors.Join(ErrOpcode(code), err)
		}
	}()
	if cpu.Verbose {
		log.Printf("%03x: %v", cpu.Pc, code)
	}

	next_pc := cpu.Pc + 2

	x := code.X()
	y := code.Y()
	vx := cpu.Register[x]
	vy := cpu.Register[y]
	v := &cpu.Register

	op := code.Decode()
	switch op {
	case OP_NOP:
		// pass
	case OP_CLS:
		cpu.Screen.Clear()
	case OP_RET:
		addr, ok := cpu.Stack.Pop()
		if !ok {
			err = ErrStackEmpty
			return
		}
		next_pc = addr
	case OP_JP:
		next_pc = code.NNN()
	case OP_CALL:
		if !cpu.Stack.Push(next_pc) {
			err = ErrStackFull
			return
		}
		next_pc = code.NNN()
	case OP_SE_IMM:
		if vx == code.NN() {
			next_pc += 2
		}
	case OP_SNE_IMM:
		if vx != code.NN() {
			next_pc += 2
		}
	case OP_SE_REG:
		if vx == vy {
			next_pc += 2
		}
	case OP_LD_IMM:
		v[x] = code.NN()
	case OP_ADD_IMM:
		v[x] = vx + code.NN()
	case OP_LD_REG:
		v[x] = vy
	case OP_OR:
		v[x] = vx | vy
	case OP_AND:
		v[x] = vx & vy
	case OP_XOR:
		v[x] = vx ^ vy
	case OP_ADD_REG:
		sum := uint16(vx) + uint16(vy)
		v[x] = uint8(sum)
		v[REG_VF] = flag(sum > 0xff)
	case OP_SUB:
		v[x] = vx - vy
		v[REG_VF] = flag(vx >= vy)
	case OP_SHR:
		v[x] = vx >> 1
		v[REG_VF] = vx & 1
	case OP_SUBN:
		sub := vx
		if cpu.Quirks.SubnSelf {
			sub = vy
		}
		v[x] = vy - sub
		v[REG_VF] = flag(vy >= sub)
	case OP_SHL:
		v[x] = vx << 1
		v[REG_VF] = vx >> 7
	case OP_SNE_REG:
		if vx != vy {
			next_pc += 2
		}
	case OP_LD_I:
		cpu.Index = code.NNN()
	case OP_JP_V0:
		next_pc = uint16(v[0]) + code.NNN()
	case OP_RND:
		v[x] = cpu.random() & code.NN()
	case OP_DRW:
		rows := int(code.N())
		err = cpu.checkRange(cpu.Index, rows)
		if err != nil {
			return
		}
		sprite := cpu.Memory[cpu.Index : int(cpu.Index)+rows]
		collision := cpu.Screen.Draw(int(vx), int(vy), sprite)
		v[REG_VF] = flag(collision)
	case OP_SKP, OP_SKNP:
		if int(vx) >= KEY_COUNT {
			err = fmt.Errorf("%w: %d", ErrKeyInvalid, vx)
			return
		}
		if cpu.Keypad[vx] == (op == OP_SKP) {
			next_pc += 2
		}
	case OP_LD_VX_DT:
		v[x] = cpu.Delay
	case OP_LD_VX_K:
		// Re-execute until a key is down.
		next_pc = cpu.Pc
		for key, pressed := range cpu.Keypad {
			if pressed {
				v[x] = uint8(key)
				next_pc = cpu.Pc + 2
				break
			}
		}
	case OP_LD_DT_VX:
		cpu.Delay = vx
	case OP_LD_ST_VX:
		cpu.Sound = vx
	case OP_ADD_I:
		cpu.Index += uint16(vx)
	case OP_LD_F:
		cpu.Index = FONT_BASE + uint16(vx)*FONT_HEIGHT
	case OP_LD_B:
		err = cpu.checkRange(cpu.Index, 3)
		if err != nil {
			return
		}
		cpu.Memory[cpu.Index+0] = vx / 100
		cpu.Memory[cpu.Index+1] = (vx / 10) % 10
		cpu.Memory[cpu.Index+2] = vx % 10
	case OP_LD_MEM_VX:
		err = cpu.checkRange(cpu.Index, x+1)
		if err != nil {
			return
		}
		copy(cpu.Memory[cpu.Index:], v[:x+1])
	case OP_LD_VX_MEM:
		err = cpu.checkRange(cpu.Index, x+1)
		if err != nil {
			return
		}
		copy(v[:x+1], cpu.Memory[cpu.Index:])
	default:
		err = ErrOpcodeUnknown
		return
	}

	cpu.Pc = next_pc

	return
}
