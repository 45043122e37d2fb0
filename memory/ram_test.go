package memory_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
)

var _ = Describe("RAM", func() {
	var ram *memory.RAM

	BeforeEach(func() {
		ram = memory.New(8, 8, memory.WithProtected(false))
	})

	Describe("Put and Fetch", func() {
		It("round-trips a single word", func() {
			addr := cell.New(0x10, 8)
			Expect(ram.Put(addr, cell.New(0x42, 8), true)).To(Succeed())

			got, err := ram.Fetch(addr, 8, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Unsigned()).To(Equal(uint64(0x42)))
		})

		It("round-trips a multi-word big-endian value", func() {
			ram = memory.New(8, 8, memory.WithEndianess(cell.Big))
			addr := cell.New(0x00, 8)
			Expect(ram.Put(addr, cell.New(0xabcd, 16), true)).To(Succeed())

			hi, err := ram.Fetch(addr, 8, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(hi.Unsigned()).To(Equal(uint64(0xab)))

			whole, err := ram.Fetch(addr, 16, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(whole.Unsigned()).To(Equal(uint64(0xabcd)))
		})

		It("increments access count only for from_cpu accesses", func() {
			addr := cell.New(0, 8)
			Expect(ram.Put(addr, cell.New(1, 8), false)).To(Succeed())
			Expect(ram.AccessCount()).To(Equal(0))

			Expect(ram.Put(addr, cell.New(1, 8), true)).To(Succeed())
			Expect(ram.AccessCount()).To(Equal(1))
		})

		It("rejects reads/writes past the top of memory", func() {
			addr := cell.New(0xff, 8)
			err := ram.Put(addr, cell.New(0xabcd, 16), true)
			Expect(err).To(HaveOccurred())
			_, err = ram.Fetch(addr, 16, true)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("protected dirty reads", func() {
		It("errors on reading unwritten memory when protected", func() {
			protected := memory.New(8, 8, memory.WithProtected(true))
			_, err := protected.Fetch(cell.New(5, 8), 8, true)
			Expect(err).To(HaveOccurred())
		})

		It("returns zero and warns on reading unwritten memory when unprotected", func() {
			var warned bool
			unprotected := memory.New(8, 8, memory.WithProtected(false), memory.WithWarn(func(string) { warned = true }))
			got, err := unprotected.Fetch(cell.New(5, 8), 8, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Unsigned()).To(Equal(uint64(0)))
			Expect(warned).To(BeTrue())
		})
	})

	Describe("filled intervals", func() {
		It("tracks a single written word as a one-element interval", func() {
			Expect(ram.Put(cell.New(5, 8), cell.New(1, 8), true)).To(Succeed())
			Expect(ram.FilledIntervals()).To(ConsistOf(struct{ Start, Stop int }{5, 6}))
		})

		It("merges adjacent writes into one interval", func() {
			Expect(ram.Put(cell.New(5, 8), cell.New(1, 8), true)).To(Succeed())
			Expect(ram.Put(cell.New(6, 8), cell.New(1, 8), true)).To(Succeed())
			Expect(ram.Put(cell.New(4, 8), cell.New(1, 8), true)).To(Succeed())
			Expect(ram.FilledIntervals()).To(ConsistOf(struct{ Start, Stop int }{4, 7}))
		})

		It("bridges two intervals when the gap is filled", func() {
			Expect(ram.Put(cell.New(1, 8), cell.New(1, 8), true)).To(Succeed())
			Expect(ram.Put(cell.New(3, 8), cell.New(1, 8), true)).To(Succeed())
			Expect(ram.FilledIntervals()).To(ConsistOf(
				struct{ Start, Stop int }{1, 2},
				struct{ Start, Stop int }{3, 4},
			))

			Expect(ram.Put(cell.New(2, 8), cell.New(1, 8), true)).To(Succeed())
			Expect(ram.FilledIntervals()).To(ConsistOf(struct{ Start, Stop int }{1, 4}))
		})
	})

	Describe("write log", func() {
		It("records before/after values only within a pushed frame", func() {
			logged := memory.New(8, 8, memory.WithWriteLog())
			logged.PushLogFrame()
			Expect(logged.Put(cell.New(1, 8), cell.New(9, 8), true)).To(Succeed())
			frame := logged.PopLogFrame()
			Expect(frame).To(HaveLen(1))
		})
	})

	Describe("access hook", func() {
		It("reports from_cpu Fetch and Put but not debugger peeks", func() {
			var calls []struct {
				address, words int
				isWrite        bool
			}
			hooked := memory.New(8, 8, memory.WithAccessHook(func(address, words int, isWrite bool) {
				calls = append(calls, struct {
					address, words int
					isWrite        bool
				}{address, words, isWrite})
			}))

			Expect(hooked.Put(cell.New(2, 8), cell.New(5, 8), true)).To(Succeed())
			_, err := hooked.Fetch(cell.New(2, 8), 8, false)
			Expect(err).NotTo(HaveOccurred())

			Expect(calls).To(HaveLen(1))
			Expect(calls[0].address).To(Equal(2))
			Expect(calls[0].words).To(Equal(1))
			Expect(calls[0].isWrite).To(BeTrue())
		})
	})
})
