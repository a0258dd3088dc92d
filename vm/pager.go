package vm

// A Pager resolves page faults by mapping the faulting page to the next free
// frame of a physical range.
type Pager struct {
	pageTable PageTable
	perm      AccessKind
	next      uint64
	limit     uint64
	numMapped uint64
}

// NewPager creates a Pager that hands out the frames in [base, limit). The
// pages it maps grant perm.
func NewPager(pageTable PageTable, base, limit uint64, perm AccessKind) *Pager {
	return &Pager{
		pageTable: pageTable,
		perm:      perm,
		next:      base,
		limit:     limit,
	}
}

// HandlePageFault maps the page of vAddr. It returns false if the page is
// mapped without the required permissions or if the frames are used up.
func (p *Pager) HandlePageFault(pid PID, vAddr uint64, access AccessKind) bool {
	pageSize := uint64(1) << p.pageTable.Log2PageSize()

	page, found := p.pageTable.Find(pid, vAddr)
	if found {
		if !page.Perm.Covers(access) {
			return false
		}

		if !page.Valid {
			page.Valid = true
			p.pageTable.Update(page)
		}

		return true
	}

	if !p.perm.Covers(access) || p.next+pageSize > p.limit {
		return false
	}

	p.pageTable.Insert(Page{
		PID:      pid,
		VAddr:    vAddr &^ (pageSize - 1),
		PAddr:    p.next,
		PageSize: pageSize,
		Perm:     p.perm,
		Valid:    true,
	})
	p.next += pageSize
	p.numMapped++

	return true
}

// NumMapped returns the number of pages the Pager has mapped.
func (p *Pager) NumMapped() uint64 {
	return p.numMapped
}
