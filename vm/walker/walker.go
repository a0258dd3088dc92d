// Package walker provides a translator that caches translations in a TLB and
// walks the page table on misses.
package walker

import (
	"fmt"
	"log"
	"reflect"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/sim"
	"github.com/sarchlab/dtusim/tracing"
	"github.com/sarchlab/dtusim/vm"
)

// A FaultHandler resolves page faults, typically by mapping the page. It
// returns true if the faulting access should be walked again.
type FaultHandler interface {
	HandlePageFault(pid vm.PID, vAddr uint64, access vm.AccessKind) bool
}

type tlbEntry struct {
	pAddr uint64
	perm  vm.AccessKind
}

type walk struct {
	id      string
	vAddr   uint64
	access  vm.AccessKind
	cb      vm.TranslationCallback
	faulted bool
}

type walkDoneEvent struct {
	sim.EventBase
	walk *walk
}

// A Walker translates virtual addresses of one address space.
type Walker struct {
	*sim.ComponentBase

	engine       sim.EventScheduler
	pageTable    vm.PageTable
	pid          vm.PID
	tlb          *lru.Cache
	walkLatency  sim.VTimeInCycle
	faultHandler FaultHandler
	logger       zerolog.Logger

	pending map[vm.TranslationCallback]*walk

	numWalks  uint64
	numFaults uint64
	numAborts uint64
}

func (w *Walker) vpn(vAddr uint64) uint64 {
	return vAddr >> w.pageTable.Log2PageSize()
}

func (w *Walker) pageOffset(vAddr uint64) uint64 {
	return vAddr & ((1 << w.pageTable.Log2PageSize()) - 1)
}

// Lookup checks the TLB. It never starts a walk.
func (w *Walker) Lookup(
	vAddr uint64,
	access vm.AccessKind,
) (uint64, vm.LookupResult) {
	v, ok := w.tlb.Get(w.vpn(vAddr))
	if !ok {
		return 0, vm.Miss
	}

	entry := v.(tlbEntry)
	if !entry.perm.Covers(access) {
		return 0, vm.PageFault
	}

	return entry.pAddr + w.pageOffset(vAddr), vm.Hit
}

// StartTranslate walks the page table for the address. The callback is
// invoked exactly once unless the translation is aborted first. Accesses
// marked with vm.AccessNoFault fail without calling the fault handler.
func (w *Walker) StartTranslate(
	vAddr uint64,
	access vm.AccessKind,
	cb vm.TranslationCallback,
) {
	if _, busy := w.pending[cb]; busy {
		log.Panicf("callback already has a translation in flight")
	}

	wk := &walk{
		id:     sim.GetIDGenerator().Generate(),
		vAddr:  vAddr,
		access: access,
		cb:     cb,
	}
	w.pending[cb] = wk
	w.numWalks++

	tracing.StartTask(wk.id, "", w, "translation", access.String())
	w.scheduleWalk(wk)
}

func (w *Walker) scheduleWalk(wk *walk) {
	evt := &walkDoneEvent{
		EventBase: sim.MakeEventBase(
			w.engine.CurrentTime()+w.walkLatency, w),
		walk: wk,
	}
	w.engine.Schedule(evt)
}

// AbortTranslate cancels the translation started with the callback. The
// callback will not be invoked. Aborting a callback without a translation in
// flight has no effect.
func (w *Walker) AbortTranslate(cb vm.TranslationCallback) {
	wk, ok := w.pending[cb]
	if !ok {
		return
	}

	delete(w.pending, cb)
	w.numAborts++

	tracing.TagTask(wk.id, w, "aborted", "")
	tracing.EndTask(wk.id, w)
	w.logger.Debug().Uint64("vaddr", wk.vAddr).Msg("translation aborted")
}

// Handle defines how the Walker handles events.
func (w *Walker) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *walkDoneEvent:
		w.finishWalk(e.walk)
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

func (w *Walker) finishWalk(wk *walk) {
	if w.pending[wk.cb] != wk {
		return
	}

	page, found := w.pageTable.Find(w.pid, wk.vAddr)
	if found && page.Valid && page.Perm.Covers(wk.access) {
		w.tlb.Add(w.vpn(wk.vAddr), tlbEntry{pAddr: page.PAddr, perm: page.Perm})
		w.complete(wk, true, page.PAddr+w.pageOffset(wk.vAddr))

		return
	}

	canFault := wk.access&vm.AccessNoFault == 0
	if w.faultHandler != nil && !wk.faulted && canFault {
		wk.faulted = true
		w.numFaults++

		tracing.TagTask(wk.id, w, "pagefault", fmt.Sprintf("%#x", wk.vAddr))

		if w.faultHandler.HandlePageFault(w.pid, wk.vAddr, wk.access) {
			w.scheduleWalk(wk)
			return
		}
	}

	var perm vm.AccessKind
	if found && page.Valid {
		perm = page.Perm
	}

	w.tlb.Add(w.vpn(wk.vAddr), tlbEntry{pAddr: page.PAddr, perm: perm})
	w.complete(wk, false, 0)
}

func (w *Walker) complete(wk *walk, success bool, phys uint64) {
	delete(w.pending, wk.cb)
	tracing.EndTask(wk.id, w)

	w.logger.Debug().
		Uint64("vaddr", wk.vAddr).
		Uint64("phys", phys).
		Bool("success", success).
		Msg("translation done")

	wk.cb.TranslateDone(success, phys)
}

// SetPID switches the address space. The TLB is flushed.
func (w *Walker) SetPID(pid vm.PID) {
	w.pid = pid
	w.tlb.Purge()
}

// PID returns the current address space.
func (w *Walker) PID() vm.PID {
	return w.pid
}

// Invalidate removes the cached translation of the page containing vAddr.
func (w *Walker) Invalidate(vAddr uint64) {
	w.tlb.Remove(w.vpn(vAddr))
}

// Flush removes all the cached translations.
func (w *Walker) Flush() {
	w.tlb.Purge()
}

// NumInflight returns the number of translations in flight.
func (w *Walker) NumInflight() int {
	return len(w.pending)
}

// NumWalks returns the number of started translations.
func (w *Walker) NumWalks() uint64 {
	return w.numWalks
}

// NumFaults returns the number of page faults sent to the fault handler.
func (w *Walker) NumFaults() uint64 {
	return w.numFaults
}

// NumAborts returns the number of aborted translations.
func (w *Walker) NumAborts() uint64 {
	return w.numAborts
}
