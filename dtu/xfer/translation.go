package xfer

import "github.com/sarchlab/dtusim/vm"

// translationBridge carries at most one outstanding translation of a
// transfer. Once aborted, late results never reach the unit.
type translationBridge struct {
	unit       *Unit
	reqID      uint64
	translator Translator
	inflight   bool
}

func newTranslationBridge(
	unit *Unit,
	reqID uint64,
	translator Translator,
) *translationBridge {
	return &translationBridge{
		unit:       unit,
		reqID:      reqID,
		translator: translator,
	}
}

func (b *translationBridge) start(vAddr uint64, access vm.AccessKind) {
	if b.inflight {
		panic("translation already in flight")
	}

	b.inflight = true
	b.translator.StartTranslate(vAddr, access, b)
}

// TranslateDone implements vm.TranslationCallback.
func (b *translationBridge) TranslateDone(success bool, phys uint64) {
	if !b.inflight {
		return
	}

	b.inflight = false
	b.unit.translateDone(b.reqID, success, phys)
}

func (b *translationBridge) abort() {
	if !b.inflight {
		return
	}

	b.inflight = false
	b.translator.AbortTranslate(b)
}
