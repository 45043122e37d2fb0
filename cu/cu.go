// Package cu implements the control-unit family: a shared fetch/step/run
// skeleton and opcode table, specialized by seven variants (mm-0, mm-1,
// mm-2, mm-3, mm-v, mm-s, mm-r, mm-m) that each supply their own
// decode/load/execute/write-back behavior.
package cu

import (
	"fmt"

	"github.com/sarchlab/modelmachine/alu"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
	"github.com/sarchlab/modelmachine/register"
)

// Status reports whether the control unit can execute another step.
type Status int

const (
	Running Status = iota
	Halted
)

func (s Status) String() string {
	if s == Halted {
		return "HALTED"
	}
	return "RUNNING"
}

// Variant supplies the per-ISA behavior the shared ControlUnit dispatches
// into at each stage of step(). InstructionBits also doubles as opcode
// validation: it returns an error (always a *WrongOpcodeError) for any
// opcode this variant does not recognize.
type Variant interface {
	Name() string
	InstructionBits(op Opcode) (int, error)
	Decode(op Opcode) error
	Load(op Opcode) error
	// Execute handles opcodes particular to this variant and should call
	// ControlUnit.DispatchCommon for anything it doesn't special-case.
	Execute(op Opcode) error
	WriteBack(op Opcode) error
}

// ControlUnit is the shared fetch/decode/load/execute/write-back skeleton.
// Every concrete variant embeds one and supplies itself as the Variant.
type ControlUnit struct {
	Registers   *register.File
	RAM         *memory.RAM
	ALU         *alu.ALU
	IRBits      int
	WordBits    int
	AddressBits int

	Failed  bool
	variant Variant

	// Timing, when non-nil, accumulates a per-opcode cycle count — pure
	// bookkeeping, see cu.TimingConfig.
	Timing *TimingConfig
	Cycles uint64

	// Warn receives non-fatal diagnostics (reserved non-zero bits),
	// mirroring _expect_zero's warnings.warn. Defaults to a no-op.
	Warn func(string)

	instructionCount uint64
	lastOpcode       Opcode
}

// New builds the shared skeleton. variant must be supplied after
// construction via Bind, since variants embed *ControlUnit and need a
// fully-constructed value before they can hand back "self".
func New(registers *register.File, ram *memory.RAM, a *alu.ALU, irBits, wordBits, addressBits int) (*ControlUnit, error) {
	if a.OperandBits%ram.WordBits != 0 {
		return nil, fmt.Errorf("cu: alu operand_bits %d not a multiple of ram word_bits %d", a.OperandBits, ram.WordBits)
	}
	if a.OperandBits != irBits {
		return nil, fmt.Errorf("cu: alu operand_bits %d does not match ir_bits %d", a.OperandBits, irBits)
	}

	c := &ControlUnit{
		Registers:   registers,
		RAM:         ram,
		ALU:         a,
		IRBits:      irBits,
		WordBits:    wordBits,
		AddressBits: addressBits,
		Warn:        func(string) {},
	}
	if err := registers.Add(register.PC, ram.AddressBits); err != nil {
		return nil, err
	}
	if err := registers.Add(register.ADDR, ram.AddressBits); err != nil {
		return nil, err
	}
	if err := registers.Add(register.IR, irBits); err != nil {
		return nil, err
	}
	return c, nil
}

// Bind attaches the concrete variant (mm-0 .. mm-m) that will receive
// Decode/Load/Execute/WriteBack calls. Call once, right after New and
// after the variant has declared its own CU-specific registers.
func (c *ControlUnit) Bind(v Variant) { c.variant = v }

// IR returns the current instruction register contents.
func (c *ControlUnit) IR() cell.Cell { return c.Registers.MustGet(register.IR) }

// Address returns the current ADDR register contents.
func (c *ControlUnit) Address() cell.Cell { return c.Registers.MustGet(register.ADDR) }

// InstructionCount returns how many instructions have completed a step
// (successfully or via a caught HaltError).
func (c *ControlUnit) InstructionCount() uint64 { return c.instructionCount }

// ExpectZero warns (does not fail) if the IR bits in [start, stop) of the
// operand field (i.e. excluding the opcode byte) are non-zero, matching
// _expect_zero: reserved bits are ignored on execution, not rejected.
func (c *ControlUnit) ExpectZero(op Opcode, start, stop int) {
	operands := c.IR().Slice(0, c.IRBits-OpcodeBits)
	part := operands.Slice(start, stop)
	if part.Unsigned() != 0 {
		c.Warn(fmt.Sprintf("expected zero bits at %d:%d for %s; these bits will be ignored", start, stop, op))
	}
}

// opcodeOf extracts the opcode byte from the top OpcodeBits of IR.
func (c *ControlUnit) opcodeOf() Opcode {
	return Opcode(c.IR().Slice(c.IRBits-OpcodeBits, c.IRBits).Unsigned())
}

// fetch reads one instruction at PC, left-justifies it into IR, and
// advances PC by the instruction's word count, per control_unit.py's
// _fetch.
func (c *ControlUnit) fetch() error {
	pc := c.Registers.MustGet(register.PC)
	opcodeWord, err := c.RAM.Fetch(pc, c.RAM.WordBits, true)
	if err != nil {
		return err
	}
	rawOpcode := Opcode(opcodeWord.Slice(c.RAM.WordBits-OpcodeBits, c.RAM.WordBits).Unsigned())

	instructionBits, err := c.variant.InstructionBits(rawOpcode)
	if err != nil {
		return err
	}

	additionalBits := instructionBits - opcodeWord.Bits()
	var instruction cell.Cell
	if additionalBits == 0 {
		instruction = opcodeWord
	} else if additionalBits > 0 {
		operandsAddr := pc.Add(cell.New(1, c.RAM.AddressBits))
		operands, err := c.RAM.Fetch(operandsAddr, additionalBits, true)
		if err != nil {
			return err
		}
		instruction = cell.FromUnsigned(
			(opcodeWord.Unsigned()<<uint(additionalBits))|operands.Unsigned(),
			instructionBits,
		)
	} else {
		return fmt.Errorf("cu: instruction_bits %d narrower than ram word %d", instructionBits, opcodeWord.Bits())
	}

	ir := cell.FromUnsigned(instruction.Unsigned()<<uint(c.IRBits-instructionBits), c.IRBits)
	if err := c.Registers.Set(register.IR, ir); err != nil {
		return err
	}

	words := instructionBits / c.RAM.WordBits
	newPC := pc.Add(cell.New(int64(words), c.RAM.AddressBits))
	return c.Registers.Set(register.PC, newPC)
}

// DispatchCommon implements the opcode dispatch every variant shares:
// halt, the six arithmetic ops, the unconditional jump, and the ten
// conditional jumps. Variants call this from their own Execute after
// handling their own opcodes; handled reports whether op was one of
// these common ones.
func (c *ControlUnit) DispatchCommon(op Opcode) (handled bool, err error) {
	switch op {
	case Halt:
		c.ALU.Halt()
	case Add:
		c.ALU.Add()
	case Sub:
		c.ALU.Sub()
	case SMul:
		c.ALU.SMul()
	case UMul:
		c.ALU.UMul()
	case SDiv:
		err = c.ALU.SDivMod()
	case UDiv:
		err = c.ALU.UDivMod()
	case Jump:
		c.ALU.Jump()
	default:
		if spec, ok := condJumps[op]; ok {
			c.ALU.CondJump(spec.signed, spec.comp, spec.equal)
		} else {
			return false, nil
		}
	}
	return true, err
}

// Step runs fetch/decode/load/execute/write_back once. Any HaltError
// raised along the way is caught here: it is reported via Warn, the ALU
// is halted, and Failed is set — matching control_unit.py's step().
func (c *ControlUnit) Step() {
	if c.Status() == Halted {
		return
	}

	err := c.runStep()
	if err != nil {
		c.Warn(err.Error())
		c.Failed = true
		c.ALU.Halt()
	}
	c.instructionCount++
	if c.Timing != nil {
		c.Cycles += c.Timing.CostOf(c.lastOpcode)
	}
}

// runStep is the per-instruction body Step wraps with halt-error recovery.
// It also records the opcode it fetched so Step can charge timing even
// when Execute errors out partway through.
func (c *ControlUnit) runStep() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if he, ok := r.(error); ok {
				err = he
				return
			}
			panic(r)
		}
	}()

	if ferr := c.fetch(); ferr != nil {
		return ferr
	}
	op := c.opcodeOf()
	c.lastOpcode = op

	if derr := c.variant.Decode(op); derr != nil {
		return derr
	}
	if lerr := c.variant.Load(op); lerr != nil {
		return lerr
	}
	if eerr := c.variant.Execute(op); eerr != nil {
		return eerr
	}
	if werr := c.variant.WriteBack(op); werr != nil {
		return werr
	}
	return nil
}

// Status reports HALTED iff the FLAGS register has the HALT bit set.
func (c *ControlUnit) Status() Status {
	flags := c.Registers.MustGet(register.FLAGS)
	if flags.Unsigned()&alu.HALT != 0 {
		return Halted
	}
	return Running
}

// Run steps until Status is Halted.
func (c *ControlUnit) Run() {
	for c.Status() == Running {
		c.Step()
	}
}
