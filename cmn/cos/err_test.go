package cos_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ProD3-LF/estimators/cmn/cos"
)

var _ = Describe("Errs", func() {
	It("deduplicates identical errors", func() {
		var e cos.Errs
		e.Add(errors.New("boom"))
		e.Add(errors.New("boom"))
		Expect(e.Cnt()).To(Equal(1))
	})

	It("caps accumulation at the maximum tracked count", func() {
		var e cos.Errs
		for i := 0; i < 10; i++ {
			e.Add(errors.New(string(rune('a' + i))))
		}
		Expect(e.Cnt()).To(BeNumerically("<=", 4))
	})

	It("reports not-found errors distinctly", func() {
		err := cos.NewErrNotFound("flow %x", []byte{1, 2})
		Expect(cos.IsErrNotFound(err)).To(BeTrue())
		Expect(cos.IsErrNotFound(errors.New("other"))).To(BeFalse())
	})
})
