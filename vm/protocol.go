// Package vm provides the virtual memory primitives of the device: access
// permissions, page table entries, and the translation callback contract.
package vm

import (
	"fmt"
	"strings"
)

// PID identifies an address space.
type PID uint32

// AccessKind is a set of permissions an access requires or a page grants.
type AccessKind uint8

// The access permissions.
const (
	AccessRead     AccessKind = 1 << iota
	AccessWrite               // 2
	AccessInternal            // 4, accesses issued by the device itself

	// AccessNoFault is not a permission. It marks accesses that must fail
	// instead of waiting for a page fault to be resolved.
	AccessNoFault // 8
)

// Covers returns true if all the permissions of other are in k. The
// AccessNoFault marker is ignored.
func (k AccessKind) Covers(other AccessKind) bool {
	other &^= AccessNoFault
	return k&other == other
}

func (k AccessKind) String() string {
	if k == 0 {
		return "-"
	}

	var parts []string
	if k&AccessRead != 0 {
		parts = append(parts, "r")
	}

	if k&AccessWrite != 0 {
		parts = append(parts, "w")
	}

	if k&AccessInternal != 0 {
		parts = append(parts, "i")
	}

	if k&AccessNoFault != 0 {
		parts = append(parts, "n")
	}

	known := AccessRead | AccessWrite | AccessInternal | AccessNoFault
	if rest := k &^ known; rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint8(rest)))
	}

	return strings.Join(parts, "")
}

// LookupResult is the outcome of a TLB lookup.
type LookupResult uint8

// The possible lookup results.
const (
	// Hit means the translation is cached and permits the access.
	Hit LookupResult = iota
	// Miss means the translation has to be walked.
	Miss
	// PageFault means the translation is known not to permit the access.
	PageFault
)

func (r LookupResult) String() string {
	switch r {
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case PageFault:
		return "pagefault"
	default:
		return fmt.Sprintf("LookupResult(%d)", uint8(r))
	}
}

// A TranslationCallback receives the result of an asynchronous translation.
type TranslationCallback interface {
	TranslateDone(success bool, phys uint64)
}
