// Package memory implements RAM, the word-addressable random access memory
// shared by every modelmachine control unit.
package memory

import (
	"fmt"
	"sort"

	"github.com/sarchlab/modelmachine/cell"
)

// MaxAddressBits and MaxWordBits bound the widths RAM accepts, covering the
// seven built-in machines (every one uses 16-bit addresses; the widest RAM
// word is mm-3's 56 bits).
const (
	MaxAddressBits = 16
	MaxWordBits    = 64
)

// AccessError reports an out-of-bounds or protected-memory access, the Go
// analogue of RamAccessError.
type AccessError struct {
	msg string
}

func (e *AccessError) Error() string { return e.msg }
func (e *AccessError) IsHaltError()  {}

func accessErrorf(format string, args ...any) error {
	return &AccessError{msg: fmt.Sprintf(format, args...)}
}

// writeEntry records one word's before/after state within a log frame.
type writeEntry struct {
	wasFilled bool
	before    uint64
	after     uint64
}

// RAM is word-addressable random access memory, word_bits wide per cell,
// address_bits wide per address. Reading memory that was never written is
// an error when IsProtected is set (the default) and a warning otherwise —
// the "dirty read" policy from the original implementation.
type RAM struct {
	WordBits    int
	AddressBits int
	Endianess   cell.Endianess
	IsProtected bool

	size int
	data []uint64
	fill []bool

	filledIntervals []interval

	accessCount int

	// writeLog, when non-nil, is a stack of per-word-address change sets.
	// PushLogFrame/PopLogFrame let the debugger bracket a single step so
	// it can report exactly what changed.
	writeLog []map[uint64]*writeEntry

	// warn receives non-fatal diagnostics (dirty unprotected reads,
	// matching the original's warnings.warn calls). Defaults to a no-op.
	warn func(string)

	// onAccess, when set, is called after every from_cpu Fetch/Put with the
	// word address, word count and whether it was a write. It never
	// observes debugger peeks (from_cpu=false) and never affects RAM
	// semantics — it exists purely so an external cache model (cachesim)
	// can instrument real CPU traffic without RAM knowing about it.
	onAccess func(address, words int, isWrite bool)
}

type interval struct {
	start, stop int // [start, stop)
}

// Option configures a RAM at construction time.
type Option func(*RAM)

// WithEndianess sets the byte/word order used by Fetch/Put. Default Big.
func WithEndianess(e cell.Endianess) Option {
	return func(r *RAM) { r.Endianess = e }
}

// WithProtected controls whether reading unwritten memory is an error
// (true, the default) or a warning (false).
func WithProtected(protected bool) Option {
	return func(r *RAM) { r.IsProtected = protected }
}

// WithWriteLog enables write-log tracking, used by the debugger to report
// what a single step changed.
func WithWriteLog() Option {
	return func(r *RAM) { r.writeLog = []map[uint64]*writeEntry{} }
}

// WithWarn overrides where non-fatal diagnostics are sent. Default discards
// them; cmd/mm wires this to fmt.Fprintf(os.Stderr, ...).
func WithWarn(fn func(string)) Option {
	return func(r *RAM) { r.warn = fn }
}

// WithAccessHook registers fn to be called after every from_cpu Fetch/Put,
// letting cachesim observe real instruction/operand traffic without RAM
// depending on it. Debugger peeks (from_cpu=false) never trigger it.
func WithAccessHook(fn func(address, words int, isWrite bool)) Option {
	return func(r *RAM) { r.onAccess = fn }
}

// New creates a RAM of the given word and address width. is_protected
// defaults to true, matching RandomAccessMemory's default.
func New(wordBits, addressBits int, opts ...Option) *RAM {
	if addressBits > MaxAddressBits {
		panic(fmt.Sprintf("memory: address_bits %d exceeds MaxAddressBits", addressBits))
	}
	if wordBits > MaxWordBits {
		panic(fmt.Sprintf("memory: word_bits %d exceeds MaxWordBits", wordBits))
	}
	size := 1 << uint(addressBits)
	r := &RAM{
		WordBits:    wordBits,
		AddressBits: addressBits,
		Endianess:   cell.Big,
		IsProtected: true,
		size:        size,
		data:        make([]uint64, size),
		fill:        make([]bool, size),
		warn:        func(string) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Len returns the memory size in words.
func (r *RAM) Len() int { return r.size }

// AccessCount returns the number of words fetched or stored so far with
// from_cpu semantics (instruction fetch/load/store), matching access_count.
func (r *RAM) AccessCount() int { return r.accessCount }

// FilledIntervals returns the merged [start, stop) ranges of addresses
// that have been written at least once.
func (r *RAM) FilledIntervals() []struct{ Start, Stop int } {
	out := make([]struct{ Start, Stop int }, len(r.filledIntervals))
	for i, iv := range r.filledIntervals {
		out[i] = struct{ Start, Stop int }{iv.start, iv.stop}
	}
	return out
}

// IsFilled reports whether the word at address has been written.
func (r *RAM) IsFilled(address int) bool { return r.fill[address] }

// PushLogFrame starts a new write-log frame; changes made until the
// matching PopLogFrame are collected together.
func (r *RAM) PushLogFrame() {
	if r.writeLog == nil {
		return
	}
	r.writeLog = append(r.writeLog, map[uint64]*writeEntry{})
}

// PopLogFrame removes and returns the most recent write-log frame as a map
// from word address to (was-filled-before, value-before, value-after).
func (r *RAM) PopLogFrame() map[uint64]*writeEntry {
	if r.writeLog == nil || len(r.writeLog) == 0 {
		return nil
	}
	top := r.writeLog[len(r.writeLog)-1]
	r.writeLog = r.writeLog[:len(r.writeLog)-1]
	return top
}

func (r *RAM) fillCell(address int) {
	if r.fill[address] {
		return
	}
	r.fill[address] = true

	if r.writeLog != nil && len(r.writeLog) > 0 {
		top := r.writeLog[len(r.writeLog)-1]
		if e, ok := top[uint64(address)]; ok {
			e.wasFilled = true
		}
	}

	for i, e := range r.filledIntervals {
		if address == e.start-1 {
			r.filledIntervals[i] = interval{address, e.stop}
			return
		}
		if address == e.stop {
			merged := interval{e.start, e.stop + 1}
			if i+1 < len(r.filledIntervals) && merged.stop == r.filledIntervals[i+1].start {
				merged.stop = r.filledIntervals[i+1].stop
				r.filledIntervals = append(r.filledIntervals[:i+1], r.filledIntervals[i+2:]...)
			}
			r.filledIntervals[i] = merged
			return
		}
	}

	ins := interval{address, address + 1}
	idx := sort.Search(len(r.filledIntervals), func(i int) bool {
		return r.filledIntervals[i].start >= ins.start
	})
	r.filledIntervals = append(r.filledIntervals, interval{})
	copy(r.filledIntervals[idx+1:], r.filledIntervals[idx:])
	r.filledIntervals[idx] = ins
}

// setWord records a single word write, updating the write log if enabled.
func (r *RAM) setWord(address int, word uint64) {
	if r.writeLog != nil && len(r.writeLog) > 0 {
		top := r.writeLog[len(r.writeLog)-1]
		e, ok := top[uint64(address)]
		if !ok {
			e = &writeEntry{wasFilled: r.fill[address], before: r.data[address]}
			top[uint64(address)] = e
		}
		e.after = word
	}
	r.data[address] = word
	r.fillCell(address)
}

func (r *RAM) missing(address int, fromCPU bool) {
	if !fromCPU {
		return
	}
	if r.IsProtected {
		panic(accessErrorf("cannot read memory by address 0x%x, it is dirty memory, clean it first", address))
	}
	r.warn(fmt.Sprintf("read memory by address 0x%x, it is dirty memory, clean it first", address))
}

func (r *RAM) get(address int, fromCPU bool) cell.Cell {
	if r.fill[address] {
		return cell.FromUnsigned(r.data[address], r.WordBits)
	}
	r.missing(address, fromCPU)
	return cell.Zero(r.WordBits)
}

// Fetch loads `bits` worth of memory (a multiple of WordBits) starting at
// address and decodes it into one Cell per the configured endianess.
// Reading past the top of memory is an AccessError. from_cpu controls
// whether AccessCount is incremented and whether dirty reads are
// protected-checked (debugger peeks pass fromCPU=false).
func (r *RAM) Fetch(address cell.Cell, bits int, fromCPU bool) (cell.Cell, error) {
	if address.Bits() != r.AddressBits {
		panic("memory: address width mismatch")
	}
	if bits%r.WordBits != 0 {
		panic("memory: fetch width not a multiple of word_bits")
	}
	words := bits / r.WordBits
	if words+int(address.Unsigned()) > r.size {
		return cell.Cell{}, accessErrorf(
			"try to read %d words from address 0x%x over memory size 0x%x",
			words, address.Unsigned(), r.size)
	}

	var result cell.Cell
	err := r.withRecover(func() {
		words_ := make([]cell.Cell, words)
		for i := 0; i < words; i++ {
			a := int(address.Unsigned()) + i
			words_[i] = r.get(a, fromCPU)
		}
		result = cell.Decode(words_, r.Endianess)
	})
	if err != nil {
		return cell.Cell{}, err
	}
	if fromCPU {
		r.accessCount += words
		if r.onAccess != nil {
			r.onAccess(int(address.Unsigned()), words, false)
		}
	}
	return result, nil
}

// Put stores value (whose width must be a multiple of WordBits) starting
// at address. Writing past the top of memory is an AccessError.
func (r *RAM) Put(address cell.Cell, value cell.Cell, fromCPU bool) error {
	if address.Bits() != r.AddressBits {
		panic("memory: address width mismatch")
	}
	if value.Bits()%r.WordBits != 0 {
		panic("memory: put width not a multiple of word_bits")
	}
	words := value.Bits() / r.WordBits
	if words+int(address.Unsigned()) > r.size {
		return accessErrorf(
			"try to write %d words from address 0x%x over memory size 0x%x",
			words, address.Unsigned(), r.size)
	}

	if fromCPU {
		r.accessCount += words
		if r.onAccess != nil {
			r.onAccess(int(address.Unsigned()), words, true)
		}
	}

	enc := value.Encode(r.WordBits, r.Endianess)
	for i, w := range enc {
		r.setWord(int(address.Unsigned())+i, w.Unsigned())
	}
	return nil
}

// withRecover turns a panic raised by missing() (a protected dirty read)
// back into a returned error, keeping Fetch's public signature idiomatic
// while get/missing stay simple recursive helpers mirroring the Python.
func (r *RAM) withRecover(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if ae, ok := rec.(*AccessError); ok {
				err = ae
				return
			}
			panic(rec)
		}
	}()
	fn()
	return nil
}
