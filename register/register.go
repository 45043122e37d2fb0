// Package register implements the register file shared by every control
// unit: a dense, named set of Cells with declared per-register widths.
package register

import (
	"fmt"

	"github.com/sarchlab/modelmachine/cell"
)

// Name identifies a register. Values are dense so File can index them
// directly into a flat table, mirroring RegisterName's IntEnum ordering.
type Name int

const (
	PC Name = iota
	IR
	ADDR
	SP
	S
	S1
	R
	FLAGS
	A1
	A2
	M
	R0
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	RA
	RB
	RC
	RD
	RE
	RF

	numNames
)

var names = [numNames]string{
	PC: "PC", IR: "IR", ADDR: "ADDR", SP: "SP", S: "S", S1: "S1", R: "R", FLAGS: "FLAGS",
	A1: "A1", A2: "A2", M: "M",
	R0: "R0", R1: "R1", R2: "R2", R3: "R3", R4: "R4", R5: "R5", R6: "R6", R7: "R7",
	R8: "R8", R9: "R9", RA: "RA", RB: "RB", RC: "RC", RD: "RD", RE: "RE", RF: "RF",
}

func (n Name) String() string {
	if n < 0 || int(n) >= len(names) {
		return fmt.Sprintf("Name(%d)", int(n))
	}
	return names[n]
}

// GeneralRegisters lists R0..RF in order, the sixteen general-purpose
// registers used by mm-r and mm-m.
var GeneralRegisters = [16]Name{R0, R1, R2, R3, R4, R5, R6, R7, R8, R9, RA, RB, RC, RD, RE, RF}

// NotFoundError reports a read of a register that was never added.
type NotFoundError struct {
	Name Name
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found in register file", e.Name)
}

// WidthConflictError reports adding a register at a width that conflicts
// with a previous declaration, the Go analogue of the Python KeyError.
type WidthConflictError struct {
	Name          Name
	Requested, Existing int
}

func (e *WidthConflictError) Error() string {
	return fmt.Sprintf(
		"cannot add register %s with %d bits, register with this name and %d bits already exists",
		e.Name, e.Requested, e.Existing,
	)
}

type writeEntry struct {
	before cell.Cell
	after  cell.Cell
}

// File is the register file: a fixed slot per Name, each either empty or
// holding a Cell of its declared width.
type File struct {
	table    [numNames]*cell.Cell
	writeLog []map[Name]*writeEntry
}

// NewFile returns an empty register file. Registers must be declared with
// Add before they can be read or written.
func NewFile() *File {
	return &File{}
}

// WithWriteLog enables write-log tracking on f and returns f, for chaining
// with NewFile.
func (f *File) WithWriteLog() *File {
	f.writeLog = []map[Name]*writeEntry{}
	return f
}

// Add declares name at the given width, initialized to zero. Calling Add
// again with the same width is a no-op (idempotent); calling it again with
// a different width is an error, matching add_register's KeyError.
func (f *File) Add(name Name, bits int) error {
	if existing := f.table[name]; existing != nil {
		if existing.Bits() != bits {
			return &WidthConflictError{Name: name, Requested: bits, Existing: existing.Bits()}
		}
		return nil
	}
	c := cell.Zero(bits)
	f.table[name] = &c
	return nil
}

// Contains reports whether name has been declared.
func (f *File) Contains(name Name) bool { return f.table[name] != nil }

// Get returns the current value of name. It is an error to read a register
// that was never declared with Add.
func (f *File) Get(name Name) (cell.Cell, error) {
	c := f.table[name]
	if c == nil {
		return cell.Cell{}, &NotFoundError{Name: name}
	}
	return *c, nil
}

// MustGet is Get but panics on a missing register, for call sites that
// already know the register exists (e.g. the ALU reading its own
// registers right after construction adds them).
func (f *File) MustGet(name Name) cell.Cell {
	c, err := f.Get(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Set stores word into name. word's width must match the register's
// declared width.
func (f *File) Set(name Name, word cell.Cell) error {
	current, err := f.Get(name)
	if err != nil {
		return err
	}
	if current.Bits() != word.Bits() {
		return fmt.Errorf("register: width mismatch writing %s: declared %d, got %d", name, current.Bits(), word.Bits())
	}

	if f.writeLog != nil && len(f.writeLog) > 0 {
		top := f.writeLog[len(f.writeLog)-1]
		if _, ok := top[name]; !ok {
			top[name] = &writeEntry{before: current}
		}
		top[name].after = word
	}

	f.table[name] = &word
	return nil
}

// PushLogFrame starts a new write-log frame.
func (f *File) PushLogFrame() {
	if f.writeLog == nil {
		return
	}
	f.writeLog = append(f.writeLog, map[Name]*writeEntry{})
}

// PopLogFrame removes and returns the most recent write-log frame.
func (f *File) PopLogFrame() map[Name]*writeEntry {
	if f.writeLog == nil || len(f.writeLog) == 0 {
		return nil
	}
	top := f.writeLog[len(f.writeLog)-1]
	f.writeLog = f.writeLog[:len(f.writeLog)-1]
	return top
}

// State returns a snapshot of every declared register's current value.
func (f *File) State() map[Name]cell.Cell {
	res := make(map[Name]cell.Cell)
	for n := Name(0); n < numNames; n++ {
		if c := f.table[n]; c != nil {
			res[n] = *c
		}
	}
	return res
}
