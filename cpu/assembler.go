// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates, in addition to the cpu defines.
var sysEquate = map[string]string{
	"LINENO": "0",
}

var (
	reCharacter = regexp.MustCompile(`'\\?[^']'`)
	reParen     = regexp.MustCompile(`\$\([^\$]*\)`)
	reLabel     = regexp.MustCompile(`^[A-Za-z_.][A-Za-z0-9_.]*$`)
)

// Assembler is a single pass macro assembler for CHIP-8 programs.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.

	predefine map[string]string   // Predefines
	Label     map[string]int      // Map of labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.

	expansion int // Count of macro expansions, for unique '@' labels.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// valueOf returns the value of a simple word, which must fit in 'bits'.
// Negative values are encoded as two's complement.
func (asm *Assembler) valueOf(word string, bits int) (value uint16, err error) {
	if len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}

	text := word
	base := 0
	if text[0] == '$' {
		text = text[1:]
		base = 16
	}

	v64, err := strconv.ParseInt(text, base, 32)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	limit := int64(1) << bits
	if v64 >= limit || v64 < -(limit>>1) {
		err = fmt.Errorf("%w: %v", ErrValueRange, word)
		return
	}

	value = uint16(v64 & (limit - 1))
	return
}

// registerOf returns the register index of a V0-VF word.
func registerOf(word string) (reg int, err error) {
	if len(word) != 2 || (word[0] != 'V' && word[0] != 'v') {
		err = fmt.Errorf("%w: %v", ErrRegisterInvalid, word)
		return
	}

	r64, perr := strconv.ParseUint(word[1:], 16, 4)
	if perr != nil {
		err = fmt.Errorf("%w: %v", ErrRegisterInvalid, word)
		return
	}

	reg = int(r64)
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value uint32, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		value16, verr := asm.valueOf(str, 16)
		if verr != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt(int(value16))
	}
	for key, addr := range asm.Label {
		if _, ok := pred[key]; !ok {
			pred[key] = starlark.MakeInt(addr)
		}
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = uint32(st_int64)
	return
}

// splitWords splits an operand list on whitespace and commas.
func splitWords(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// parseLine parses a single line into words, handling labels, equates and macros.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	line = reCharacter.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	line = reParen.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#x", value)
	})
	if err != nil {
		return
	}

	words = splitWords(line)

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if strings.EqualFold(words[0], ".equ") {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]int, 16)
		}
		asm.Label[label] = asm.currentAddr()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = words[1+n]
		}
		defer func() { asm.Equate = old_equate }()

		asm.expansion++
		local := fmt.Sprintf("%v_%v_", name, asm.expansion)
		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", local)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// currentAddr gets the address of the next emitted byte.
func (asm *Assembler) currentAddr() int {
	if len(asm.Opcode) == 0 {
		return PROGRAM_START
	}

	last := asm.Opcode[len(asm.Opcode)-1]

	return last.Addr + len(last.Bytes)
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	asm.Opcode = asm.Opcode[:0]
	asm.expansion = 0
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	maps.Copy(asm.Equate, _cpu_defines)
	maps.Copy(asm.Equate, asm.predefine)

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = splitWords(strings.Join(words[2:], " "))
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Final linking of address labels.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if len(op.LinkLabel) == 0 {
			continue
		}
		label := op.LinkLabel
		addr, ok := asm.Label[label]
		if !ok {
			lineno = op.LineNo
			line = strings.Join(op.Words, " ")
			err = ErrLabelMissing(label)
			return
		}
		if addr >= MEMORY_SIZE {
			lineno = op.LineNo
			line = strings.Join(op.Words, " ")
			err = fmt.Errorf("%w: %v = %#x", ErrValueRange, label, addr)
			return
		}
		if len(op.Bytes) != 2 {
			log.Fatalf("Unable to link label '%s' to line %d: %v", label, op.LineNo, op.Words)
		}
		op.Bytes[0] |= uint8(addr>>8) & 0xf
		op.Bytes[1] |= uint8(addr)
	}

	prog = &Program{
		Opcodes: make([]Opcode, len(asm.Opcode)),
	}
	copy(prog.Opcodes, asm.Opcode)

	return
}

// parseData evaluates a .byte or .word directive.
func (asm *Assembler) parseData(bits int, args []string) (data []byte, err error) {
	if len(args) == 0 {
		err = ErrOpcodeMissing
		return
	}

	for _, arg := range args {
		var value uint16
		value, err = asm.valueOf(arg, bits)
		if err != nil {
			return
		}
		if bits == 16 {
			data = append(data, uint8(value>>8))
		}
		data = append(data, uint8(value))
	}

	return
}

// encode attempts to encode the arguments with the form of an instruction kind.
// used is the count of operands accepted before any error.
func (asm *Assembler) encode(op CodeOp, args []string) (code Code, label string, used int, err error) {
	var x, y int
	var imm uint16

	for n, arg := range op.Form().Args {
		used = n
		word := args[n]
		if text, ok := arg.literal(); ok {
			if !strings.EqualFold(word, text) {
				err = fmt.Errorf("%w: %v", ErrOpcodeInvalid, word)
				return
			}
			continue
		}
		switch arg {
		case ARG_VX:
			x, err = registerOf(word)
		case ARG_VY:
			y, err = registerOf(word)
		case ARG_N:
			imm, err = asm.valueOf(word, 4)
		case ARG_NN:
			imm, err = asm.valueOf(word, 8)
		case ARG_NNN:
			imm, err = asm.valueOf(word, 12)
			var perr ErrParseNumber
			if errors.As(err, &perr) && reLabel.MatchString(word) {
				// Resolved after the full pass.
				label = word
				imm = 0
				err = nil
			}
		}
		if err != nil {
			return
		}
	}

	used = len(args)
	code = MakeCode(op, x, y, imm)
	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var data []byte
	var label string
	var isData bool

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words

	defer func() {
		if len(data) == 0 {
			return
		}
		opcode := Opcode{
			LineNo:    lineno,
			Addr:      asm.currentAddr(),
			Words:     initial_words,
			Bytes:     data,
			Data:      isData,
			LinkLabel: label,
		}
		asm.Opcode = append(asm.Opcode, opcode)
	}()

	name := strings.ToUpper(words[0])
	args := words[1:]

	switch name {
	case ".BYTE":
		isData = true
		data, err = asm.parseData(8, args)
		return
	case ".WORD":
		isData = true
		data, err = asm.parseData(16, args)
		return
	}

	// Report the error of the form that accepted the most operands.
	var known bool
	var most int
	best := -1
	err = ErrInstructionInvalid
	for op := OP_NOP; op < op_count; op++ {
		form := op.Form()
		if form.Name != name {
			continue
		}
		known = true
		most = max(most, len(form.Args))
		if len(form.Args) != len(args) {
			continue
		}
		code, link, used, eerr := asm.encode(op, args)
		if eerr == nil {
			label = link
			data = []byte{uint8(code >> 8), uint8(code)}
			err = nil
			return
		}
		if used > best {
			best = used
			err = eerr
		}
	}

	if known && errors.Is(err, ErrInstructionInvalid) {
		err = ErrOpcodeMissing
		if len(args) > most {
			err = ErrOpcodeExtraArgs
		}
	}

	return
}
