package mps

// Protect is a page-protection mode, a subset of {read, write} access
// that should trap when the mutator touches a segment.
type Protect uint8

const (
	ProtectNone  Protect = 0
	ProtectRead  Protect = 1 << 0
	ProtectWrite Protect = 1 << 1
)

// vmProvider is the external collaborator: the low-level virtual-memory
// provider that commits/decommits address space and flips page
// protection. The arena is handed one at creation; production code on
// a supported platform gets unixVM (golang.org/x/sys), tests and
// unsupported platforms get fakeVM, which models protection purely in
// memory without ever touching the real page tables.
type vmProvider interface {
	// Reserve carves out size bytes of address space and returns its
	// base. The returned region is committed and initially unprotected.
	Reserve(size uintptr) (Addr, Res)
	// Release gives back a region previously returned by Reserve.
	Release(base Addr, size uintptr)
	// Protect sets the page protection over [base, base+size).
	Protect(base Addr, size uintptr, mode Protect) Res
}
