package asm

import (
	"fmt"

	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
)

// Result is what a successful Assemble produces: the final symbol table
// (fully-qualified label -> word address), for callers (the source
// package's `.input`/`.output`/`.enter` directives) that reference labels
// defined inside an `.asm` block.
type Result struct {
	Symbols map[string]int64
}

type pendingInstruction struct {
	line            int
	addr            int64
	spec            MnemonicSpec
	args            []resolvedArg
}

type pendingWord struct {
	line int
	addr int64
	arg  resolvedArg
}

// resolvedArg is an Arg with any label reference already scope-qualified
// against the label active at its source position, so the link pass only
// needs a flat symbol-table lookup.
type resolvedArg struct {
	arg       Arg
	qualified string // for ArgLabel / ArgIndexed with a label base
}

// Assemble runs the two-pass assembler for one `.asm` block: dialect is
// the target CPU's table (see Lookup), lines is the block's raw source
// (already stripped of its own `.asm [address]` header line), lineOffset
// is added to in-block line numbers for error messages, and baseAddr is
// the block's starting RAM word address. Encoded words are written via
// ram.Put at fromCPU=false; an address already in ram.IsFilled is a hard
// overlap error.
func Assemble(d *Dialect, lines []string, lineOffset int, baseAddr int64, ram *memory.RAM) (*Result, error) {
	statements, err := ParseLines(lines, lineOffset)
	if err != nil {
		return nil, err
	}

	symbols := map[string]int64{}
	var instructions []pendingInstruction
	var words []pendingWord

	addr := baseAddr
	scope := ""

	for _, st := range statements {
		for _, l := range st.Labels {
			qualified, err := qualifyDecl(l, scope, st.Line)
			if err != nil {
				return nil, err
			}
			if !l.IsLocal {
				scope = l.Name
			}
			if _, exists := symbols[qualified]; exists {
				return nil, &ParsingError{Line: st.Line, Err: &DuplicateLabelError{Label: qualified}}
			}
			symbols[qualified] = addr
		}

		switch {
		case st.Mnemonic == "" && !st.Word:
			// label-only statement, already recorded above
			continue
		case st.Word:
			for _, a := range st.Args {
				ra, err := resolveArg(a, scope, st.Line)
				if err != nil {
					return nil, err
				}
				words = append(words, pendingWord{line: st.Line, addr: addr, arg: ra})
				addr++
			}
		default:
			spec, ok := d.Mnemonics[st.Mnemonic]
			if !ok {
				return nil, parseErrorf(st.Line, "unknown mnemonic %q for %s", st.Mnemonic, d.CPU)
			}
			if len(st.Args) != len(spec.Operands) {
				return nil, parseErrorf(st.Line, "%s expects %d operand(s), got %d", st.Mnemonic, len(spec.Operands), len(st.Args))
			}
			resolved := make([]resolvedArg, len(st.Args))
			for i, a := range st.Args {
				ra, err := resolveArg(a, scope, st.Line)
				if err != nil {
					return nil, err
				}
				resolved[i] = ra
			}
			instructions = append(instructions, pendingInstruction{
				line: st.Line, addr: addr, spec: spec, args: resolved,
			})
			addr += int64(spec.InstructionBits / d.WordBits)
		}
	}

	for _, w := range words {
		if err := emitWord(d, ram, w, symbols); err != nil {
			return nil, err
		}
	}
	for _, ins := range instructions {
		if err := emitInstruction(d, ram, ins, symbols); err != nil {
			return nil, err
		}
	}

	return &Result{Symbols: symbols}, nil
}

func qualifyDecl(l LabelDecl, scope string, line int) (string, error) {
	if !l.IsLocal {
		return l.Name, nil
	}
	if scope == "" {
		return "", &ParsingError{Line: line, Err: &UnexpectedLocalLabelError{Label: l.Name}}
	}
	return scope + l.Name, nil
}

// resolveArg qualifies any label reference in a against the scope active
// at its source position.
func resolveArg(a Arg, scope string, line int) (resolvedArg, error) {
	switch a.Kind {
	case ArgLabel:
		q, err := qualifyRef(a.Label, a.IsLocal, scope, line)
		if err != nil {
			return resolvedArg{}, err
		}
		return resolvedArg{arg: a, qualified: q}, nil
	case ArgIndexed:
		if a.Label == "" {
			return resolvedArg{arg: a}, nil // numeric base, nothing to qualify
		}
		q, err := qualifyRef(a.Label, a.IsLocal, scope, line)
		if err != nil {
			return resolvedArg{}, err
		}
		return resolvedArg{arg: a, qualified: q}, nil
	default:
		return resolvedArg{arg: a}, nil
	}
}

func qualifyRef(label string, isLocal bool, scope string, line int) (string, error) {
	if !isLocal {
		return label, nil
	}
	if scope == "" {
		return "", &ParsingError{Line: line, Err: &UnexpectedLocalLabelError{Label: label}}
	}
	return scope + label, nil
}

func lookup(symbols map[string]int64, qualified string, line int) (int64, error) {
	addr, ok := symbols[qualified]
	if !ok {
		return 0, &ParsingError{Line: line, Err: &UndefinedLabelError{Label: qualified}}
	}
	return addr, nil
}

func checkSigned(v int64, bits int) bool {
	lo := -(int64(1) << uint(bits-1))
	hi := int64(1) << uint(bits-1)
	return v >= lo && v < hi
}

func checkUnsigned(v int64, bits int) bool {
	if v < 0 {
		return false
	}
	return v < (int64(1) << uint(bits))
}

func fieldMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

func emitWord(d *Dialect, ram *memory.RAM, w pendingWord, symbols map[string]int64) error {
	var v int64
	switch w.arg.arg.Kind {
	case ArgImmediate:
		v = w.arg.arg.Value
	case ArgLabel:
		addr, err := lookup(symbols, w.arg.qualified, w.line)
		if err != nil {
			return err
		}
		v = addr
	default:
		return parseErrorf(w.line, ".word operands must be a literal or a label")
	}
	if !checkSigned(v, d.WordBits) && !checkUnsigned(v, d.WordBits) {
		return &ParsingError{Line: w.line, Err: &TooLongWordError{Value: v, Bits: d.WordBits}}
	}
	if err := checkOverlap(ram, w.addr, 1); err != nil {
		return &ParsingError{Line: w.line, Err: err}
	}
	return ram.Put(cell.New(w.addr, ram.AddressBits), cell.New(v, d.WordBits), false)
}

func emitInstruction(d *Dialect, ram *memory.RAM, ins pendingInstruction, symbols map[string]int64) error {
	operandBits := ins.spec.InstructionBits - 8
	value := uint64(ins.spec.Opcode) << uint(operandBits)

	for i, ra := range ins.args {
		op := ins.spec.Operands[i]
		if err := placeField(&value, op.Field, ra, symbols, ins.line, ins.addr, ins.spec.InstructionBits, d); err != nil {
			return err
		}
		if op.Index != nil {
			idxArg := resolvedArg{arg: Arg{Kind: ArgRegister, Reg: ra.arg.Reg, Line: ra.arg.Line}}
			if err := placeField(&value, *op.Index, idxArg, symbols, ins.line, ins.addr, ins.spec.InstructionBits, d); err != nil {
				return err
			}
		}
	}

	words := ins.spec.InstructionBits / d.WordBits
	if err := checkOverlap(ram, ins.addr, words); err != nil {
		return &ParsingError{Line: ins.line, Err: err}
	}
	full := cell.FromUnsigned(value, ins.spec.InstructionBits)
	return ram.Put(cell.New(ins.addr, ram.AddressBits), full, false)
}

func placeField(value *uint64, f Field, ra resolvedArg, symbols map[string]int64, line int, addr int64, instructionBits int, d *Dialect) error {
	var v int64
	switch f.Mode {
	case Absolute:
		switch ra.arg.Kind {
		case ArgImmediate:
			v = ra.arg.Value
		case ArgLabel, ArgIndexed:
			if ra.arg.Kind == ArgIndexed && ra.qualified == "" {
				v = ra.arg.Value
			} else {
				resolved, err := lookup(symbols, ra.qualified, line)
				if err != nil {
					return err
				}
				v = resolved
			}
		default:
			return parseErrorf(line, "operand must be an address or label")
		}
	case PCRelative:
		var target int64
		switch ra.arg.Kind {
		case ArgLabel:
			resolved, err := lookup(symbols, ra.qualified, line)
			if err != nil {
				return err
			}
			target = resolved
		default:
			return parseErrorf(line, "operand must be a label")
		}
		pcNext := addr + int64(instructionBits/d.WordBits)
		v = target - pcNext
		if !checkSigned(v, f.Width) {
			return &ParsingError{Line: line, Err: &TooLongJumpError{Label: ra.qualified, Offset: v, Bits: f.Width}}
		}
	case Register:
		if ra.arg.Kind != ArgRegister {
			return parseErrorf(line, "operand must be a register r0..rf")
		}
		v = int64(ra.arg.Reg)
		if v < 0 || v > 15 {
			return parseErrorf(line, "register index %d out of range [0,15]", v)
		}
	case ImmediateSigned:
		if ra.arg.Kind != ArgImmediate {
			return parseErrorf(line, "operand must be an immediate literal")
		}
		v = ra.arg.Value
		if !checkSigned(v, f.Width) {
			return &ParsingError{Line: line, Err: &TooLongImmediateError{Value: v, Bits: f.Width, Signed: true}}
		}
	case ImmediateUnsigned:
		if ra.arg.Kind != ArgImmediate {
			return parseErrorf(line, "operand must be an immediate literal")
		}
		v = ra.arg.Value
		if !checkUnsigned(v, f.Width) {
			return &ParsingError{Line: line, Err: &TooLongImmediateError{Value: v, Bits: f.Width, Signed: false}}
		}
	}

	masked := uint64(v) & fieldMask(f.Width)
	*value |= masked << uint(f.Offset)
	return nil
}

func checkOverlap(ram *memory.RAM, addr int64, words int) error {
	for i := 0; i < words; i++ {
		if ram.IsFilled(int(addr) + i) {
			return fmt.Errorf("segment overlaps already-filled address 0x%x", int(addr)+i)
		}
	}
	return nil
}
