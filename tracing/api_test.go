package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dtusim/sim"
)

type recordingHook struct {
	ctxs []sim.HookCtx
}

func (h *recordingHook) Func(ctx sim.HookCtx) {
	h.ctxs = append(h.ctxs, ctx)
}

var _ = Describe("Api", func() {
	var (
		domain *sim.ComponentBase
		hook   *recordingHook
	)

	BeforeEach(func() {
		domain = sim.NewComponentBase("Domain")
		hook = &recordingHook{}
	})

	It("should not invoke anything if there is no hook", func() {
		Expect(func() {
			StartTask("", "", domain, "", "")
		}).NotTo(Panic())
	})

	It("should panic if ID is not given", func() {
		domain.AcceptHook(hook)

		Expect(func() {
			StartTask("", "123", domain, "kind", "what")
		}).Should(Panic())
	})

	It("should panic if kind is empty", func() {
		domain.AcceptHook(hook)

		Expect(func() {
			StartTask("id", "123", domain, "", "what")
		}).Should(Panic())
	})

	It("should report start, tag and end", func() {
		domain.AcceptHook(hook)

		StartTask("id", "parent", domain, "xfer", "read")
		TagTask("id", domain, "pagefault", "0x1000")
		EndTask("id", domain)

		Expect(hook.ctxs).To(HaveLen(3))
		Expect(hook.ctxs[0].Pos).To(BeIdenticalTo(HookPosTaskStart))
		Expect(hook.ctxs[0].Item).To(Equal(TaskStart{
			ID:       "id",
			ParentID: "parent",
			Kind:     "xfer",
			What:     "read",
			Where:    "Domain",
		}))
		Expect(hook.ctxs[1].Item).To(Equal(TaskTag{
			TaskID: "id", What: "pagefault", Detail: "0x1000",
		}))
		Expect(hook.ctxs[2].Item).To(Equal(TaskEnd{ID: "id"}))
	})
})
