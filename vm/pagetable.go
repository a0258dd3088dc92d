package vm

import (
	"log"
	"sync"
)

// A Page is an entry in the page table, maintaining the information about how
// to translate a virtual address to a physical address.
type Page struct {
	PID      PID
	VAddr    uint64
	PAddr    uint64
	PageSize uint64
	Perm     AccessKind
	Valid    bool
}

// A PageTable holds the pages of all the address spaces.
type PageTable interface {
	Insert(page Page)
	Remove(pid PID, vAddr uint64)
	Find(pid PID, vAddr uint64) (Page, bool)
	Update(page Page)
	Log2PageSize() uint64
}

// NewPageTable creates a new PageTable.
func NewPageTable(log2PageSize uint64) PageTable {
	return &pageTableImpl{
		log2PageSize: log2PageSize,
		tables:       make(map[PID]map[uint64]Page),
	}
}

type pageTableImpl struct {
	sync.Mutex
	log2PageSize uint64
	tables       map[PID]map[uint64]Page
}

func (pt *pageTableImpl) Log2PageSize() uint64 {
	return pt.log2PageSize
}

func (pt *pageTableImpl) getTable(pid PID) map[uint64]Page {
	table, found := pt.tables[pid]
	if !found {
		table = make(map[uint64]Page)
		pt.tables[pid] = table
	}

	return table
}

func (pt *pageTableImpl) alignToPage(addr uint64) uint64 {
	return (addr >> pt.log2PageSize) << pt.log2PageSize
}

// Insert puts a new page into the PageTable.
func (pt *pageTableImpl) Insert(page Page) {
	pt.Lock()
	defer pt.Unlock()

	if page.VAddr != pt.alignToPage(page.VAddr) {
		log.Panicf("page vaddr %#x is not page aligned", page.VAddr)
	}

	table := pt.getTable(page.PID)
	if _, found := table[page.VAddr]; found {
		log.Panicf("page %#x of pid %d exists", page.VAddr, page.PID)
	}

	if page.PageSize == 0 {
		page.PageSize = 1 << pt.log2PageSize
	}

	table[page.VAddr] = page
}

// Remove removes the page that contains the target address.
func (pt *pageTableImpl) Remove(pid PID, vAddr uint64) {
	pt.Lock()
	defer pt.Unlock()

	table := pt.getTable(pid)
	vAddr = pt.alignToPage(vAddr)

	if _, found := table[vAddr]; !found {
		log.Panicf("page %#x of pid %d does not exist", vAddr, pid)
	}

	delete(table, vAddr)
}

// Find returns the page that contains the given virtual address. The bool
// return value indicates if the page is found or not.
func (pt *pageTableImpl) Find(pid PID, vAddr uint64) (Page, bool) {
	pt.Lock()
	defer pt.Unlock()

	page, found := pt.getTable(pid)[pt.alignToPage(vAddr)]

	return page, found
}

// Update changes the fields of an existing page. The PID and the VAddr fields
// locate the page to update.
func (pt *pageTableImpl) Update(page Page) {
	pt.Lock()
	defer pt.Unlock()

	table := pt.getTable(page.PID)
	if _, found := table[page.VAddr]; !found {
		log.Panicf("page %#x of pid %d does not exist", page.VAddr, page.PID)
	}

	table[page.VAddr] = page
}
