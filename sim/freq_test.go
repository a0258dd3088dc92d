package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Freq", func() {
	It("should get period", func() {
		f := 1 * GHz
		Expect(f.Period()).To(BeNumerically("~", 1e-9, 1e-18))
	})

	It("should convert cycles to seconds", func() {
		f := 2 * GHz
		Expect(f.Seconds(4)).To(BeNumerically("~", 2e-9, 1e-18))
	})

	It("should convert seconds to cycles", func() {
		f := 1 * GHz
		Expect(f.Cycles(3e-9)).To(Equal(VTimeInCycle(3)))
		Expect(f.Cycles(2.6e-9)).To(Equal(VTimeInCycle(3)))
	})

	It("should panic on zero frequency", func() {
		f := Freq(0)
		Expect(func() { f.Period() }).To(Panic())
	})

	It("should panic on negative durations", func() {
		f := 1 * GHz
		Expect(func() { f.Cycles(-1) }).To(Panic())
	})
})
