// Package cpu wires one control-unit variant to the I/O unit and the
// resolved requests a Program declares, matching the split the original
// cpu.Cpu uses: inputs are consumed once before the run loop starts,
// outputs are read once after the control unit halts.
package cpu

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/cu"
	"github.com/sarchlab/modelmachine/iounit"
	"github.com/sarchlab/modelmachine/memory"
	"github.com/sarchlab/modelmachine/source"
)

// Cpu owns one bound control-unit variant's shared skeleton, its I/O unit,
// and the output slots still owed once the program halts.
type Cpu struct {
	Name string
	Unit *cu.ControlUnit

	io      *iounit.IOUnit
	outputs []source.ResolvedIO
	stack   iounit.StackPort
}

type options struct {
	ramOpts []memory.Option
	timing  *cu.TimingConfig
}

// Option configures a Cpu at construction time.
type Option func(*options)

// WithRAMOptions forwards opts to the underlying memory.New call, e.g. to
// disable protected-memory mode or attach a cachesim.Cache.
func WithRAMOptions(opts ...memory.Option) Option {
	return func(o *options) { o.ramOpts = append(o.ramOpts, opts...) }
}

// WithTiming attaches a per-opcode cycle-cost table; Cpu.Cycles() reports
// the running total once set.
func WithTiming(tc *cu.TimingConfig) Option {
	return func(o *options) { o.timing = tc }
}

// New builds the control unit p.CPUName names, assembles/loads p into its
// RAM, and consumes every declared .input slot from stdin — .enter tokens
// first, falling back to stdin once they run out, exactly as the original
// load_program reads .enter data before any interactive input.
func New(p *source.Program, stdin io.Reader, opts ...Option) (*Cpu, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	unit, stack, err := newVariant(p.CPUName, o.ramOpts...)
	if err != nil {
		return nil, err
	}
	if o.timing != nil {
		unit.Timing = o.timing
	}

	built, err := source.Build(p, unit.RAM, unit.ALU.OperandBits)
	if err != nil {
		return nil, err
	}

	c := &Cpu{
		Name:    p.CPUName,
		Unit:    unit,
		io:      &iounit.IOUnit{RAM: unit.RAM, IOBits: unit.ALU.OperandBits, Stack: stack},
		outputs: built.Outputs,
		stack:   stack,
	}

	if err := c.consumeInputs(built, stdin); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cpu) consumeInputs(built *source.Built, stdin io.Reader) error {
	tokens := make([]string, len(built.Enter))
	for i, v := range built.Enter {
		tokens[i] = strconv.FormatInt(v, 10)
	}
	enterText := strings.Join(tokens, " ")
	if enterText != "" {
		enterText += "\n"
	}
	r := io.MultiReader(strings.NewReader(enterText), stdin)

	for _, slot := range built.Inputs {
		addr := cell.New(slot.Address, c.Unit.AddressBits)
		if err := c.io.Input(addr, r); err != nil {
			if slot.Message != "" {
				return fmt.Errorf("input %q: %w", slot.Message, err)
			}
			return err
		}
	}
	return nil
}

// Run executes the control unit to completion and prints every declared
// .output slot to w, in declaration order.
func (c *Cpu) Run(w io.Writer) error {
	c.Unit.Run()
	return c.PrintOutputs(w)
}

// PrintOutputs reads every declared .output slot and writes it to w. It is
// split out from Run so cmd/mm's debugger can call it after a manual
// step-until-halted loop.
func (c *Cpu) PrintOutputs(w io.Writer) error {
	for _, slot := range c.outputs {
		addr := cell.New(slot.Address, c.Unit.AddressBits)
		if err := c.io.Output(addr, w); err != nil {
			if slot.Message != "" {
				return fmt.Errorf("output %q: %w", slot.Message, err)
			}
			return err
		}
	}
	return nil
}

// PeekStack pops and returns the top of the instruction stack, for the two
// stack-discipline variants (mm-0, mm-s). It errors if this CPU addresses
// memory instead of a stack.
func (c *Cpu) PeekStack() (cell.Cell, error) {
	if c.stack == nil {
		return cell.Cell{}, fmt.Errorf("cpu: %s has no instruction stack", c.Name)
	}
	return c.stack.Pop()
}

// Step runs a single fetch/decode/load/execute/write-back cycle.
func (c *Cpu) Step() { c.Unit.Step() }

// Status reports whether the control unit can still execute.
func (c *Cpu) Status() cu.Status { return c.Unit.Status() }

// InstructionCount returns how many steps have completed.
func (c *Cpu) InstructionCount() uint64 { return c.Unit.InstructionCount() }

// Cycles returns the running timing total, zero if WithTiming was never
// set.
func (c *Cpu) Cycles() uint64 { return c.Unit.Cycles }

// newVariant constructs the named CPU's control unit, returning its shared
// skeleton plus a non-nil iounit.StackPort for the two stack-discipline
// variants (mm-0, mm-s).
func newVariant(name string, ramOpts ...memory.Option) (*cu.ControlUnit, iounit.StackPort, error) {
	switch name {
	case "mm-0":
		c, err := cu.NewCU0(ramOpts...)
		if err != nil {
			return nil, nil, err
		}
		return c.ControlUnit, c, nil
	case "mm-1":
		c, err := cu.NewCU1(ramOpts...)
		if err != nil {
			return nil, nil, err
		}
		return c.ControlUnit, nil, nil
	case "mm-2":
		c, err := cu.NewCU2(ramOpts...)
		if err != nil {
			return nil, nil, err
		}
		return c.ControlUnit, nil, nil
	case "mm-3":
		c, err := cu.NewCU3(ramOpts...)
		if err != nil {
			return nil, nil, err
		}
		return c.ControlUnit, nil, nil
	case "mm-v":
		c, err := cu.NewCUV(ramOpts...)
		if err != nil {
			return nil, nil, err
		}
		return c.ControlUnit, nil, nil
	case "mm-s":
		c, err := cu.NewCUS(ramOpts...)
		if err != nil {
			return nil, nil, err
		}
		return c.ControlUnit, c, nil
	case "mm-r":
		c, err := cu.NewCUR(ramOpts...)
		if err != nil {
			return nil, nil, err
		}
		return c.ControlUnit, nil, nil
	case "mm-m":
		c, err := cu.NewCUM(ramOpts...)
		if err != nil {
			return nil, nil, err
		}
		return c.ControlUnit, nil, nil
	}
	return nil, nil, fmt.Errorf("cpu: unknown cpu %q", name)
}
