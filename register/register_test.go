package register_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/register"
)

var _ = Describe("File", func() {
	var f *register.File

	BeforeEach(func() {
		f = register.NewFile()
	})

	Describe("Add", func() {
		It("declares a register at zero", func() {
			Expect(f.Add(register.PC, 16)).To(Succeed())
			got, err := f.Get(register.PC)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Unsigned()).To(Equal(uint64(0)))
			Expect(got.Bits()).To(Equal(16))
		})

		It("is idempotent when re-added with the same width", func() {
			Expect(f.Add(register.S, 32)).To(Succeed())
			Expect(f.Set(register.S, cell.New(7, 32))).To(Succeed())
			Expect(f.Add(register.S, 32)).To(Succeed())

			got, _ := f.Get(register.S)
			Expect(got.Unsigned()).To(Equal(uint64(7)))
		})

		It("errors when re-added with a different width", func() {
			Expect(f.Add(register.S, 32)).To(Succeed())
			err := f.Add(register.S, 16)
			Expect(err).To(HaveOccurred())
			Expect(err).To(BeAssignableToTypeOf(&register.WidthConflictError{}))
		})
	})

	Describe("Get", func() {
		It("errors reading an undeclared register", func() {
			_, err := f.Get(register.FLAGS)
			Expect(err).To(HaveOccurred())
			Expect(err).To(BeAssignableToTypeOf(&register.NotFoundError{}))
		})
	})

	Describe("Set", func() {
		It("errors on width mismatch", func() {
			Expect(f.Add(register.ADDR, 16)).To(Succeed())
			err := f.Set(register.ADDR, cell.New(1, 8))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Contains and State", func() {
		It("reports only declared registers", func() {
			Expect(f.Contains(register.PC)).To(BeFalse())
			Expect(f.Add(register.PC, 16)).To(Succeed())
			Expect(f.Contains(register.PC)).To(BeTrue())
		})

		It("snapshots every declared register", func() {
			Expect(f.Add(register.PC, 16)).To(Succeed())
			Expect(f.Add(register.FLAGS, 32)).To(Succeed())
			state := f.State()
			Expect(state).To(HaveLen(2))
			Expect(state).To(HaveKey(register.PC))
			Expect(state).To(HaveKey(register.FLAGS))
		})
	})

	Describe("write log", func() {
		It("records only the first and last value within a frame", func() {
			Expect(f.Add(register.S, 8)).To(Succeed())
			f = f.WithWriteLog()
			f.PushLogFrame()
			Expect(f.Set(register.S, cell.New(1, 8))).To(Succeed())
			Expect(f.Set(register.S, cell.New(2, 8))).To(Succeed())
			frame := f.PopLogFrame()
			Expect(frame).To(HaveLen(1))
		})
	})
})
