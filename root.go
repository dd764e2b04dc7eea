package mps

// RootKind distinguishes the root description shapes RootCreate*
// accepts.
type RootKind int

const (
	RootKindTable RootKind = iota
	RootKindTableMasked
	RootKindStack
	RootKindFunc
)

// StackScanner is the out-of-scope external collaborator
// that captures a thread's registers and conservative stack range. A
// client passes one per thread to RootCreateStack, and the root calls
// into it during a root scan.
type StackScanner interface {
	ScanStack(ss *ScanState) Res
}

// RootFunc is the scan-callback root kind.
type RootFunc func(ss *ScanState) Res

// Root describes a location set the mutator treats as live roots,
//.
type Root struct {
	arena *Arena
	kind  RootKind
	rank  Rank

	// RootKindTable / RootKindTableMasked
	table []Addr
	mask  Word

	// RootKindStack
	scanner StackScanner

	// RootKindFunc
	fn RootFunc

	protectable bool
	mutable     bool
}

// RootCreateTable registers a table of exact references as a root.
func RootCreateTable(arena *Arena, rank Rank, table []Addr) (*Root, Res) {
	r := &Root{arena: arena, kind: RootKindTable, rank: rank, table: table, mutable: true}
	arena.roots = append(arena.roots, r)
	return r, ResOK
}

// RootCreateTableMasked registers a table root that ignores words where
// (word & mask) != 0.
func RootCreateTableMasked(arena *Arena, rank Rank, table []Addr, mask Word) (*Root, Res) {
	r := &Root{arena: arena, kind: RootKindTableMasked, rank: rank, table: table, mask: mask, mutable: true}
	arena.roots = append(arena.roots, r)
	return r, ResOK
}

// RootCreateStack registers the registers-and-stack root kind for one
// mutator thread.
func RootCreateStack(arena *Arena, rank Rank, scanner StackScanner) (*Root, Res) {
	r := &Root{arena: arena, kind: RootKindStack, rank: rank, scanner: scanner, mutable: true}
	arena.roots = append(arena.roots, r)
	return r, ResOK
}

// RootCreateReg is an alias kept for the exact external-interface name
// of a threadReg-associated register root.
func RootCreateReg(arena *Arena, rank Rank, scanner StackScanner) (*Root, Res) {
	return RootCreateStack(arena, rank, scanner)
}

// RootCreateFunc registers a scan-callback root.
func RootCreateFunc(arena *Arena, rank Rank, fn RootFunc) (*Root, Res) {
	r := &Root{arena: arena, kind: RootKindFunc, rank: rank, fn: fn, mutable: true}
	arena.roots = append(arena.roots, r)
	return r, ResOK
}

// RootDestroy removes the root from its arena.
func (r *Root) RootDestroy() Res {
	roots := r.arena.roots
	for i, other := range roots {
		if other == r {
			r.arena.roots = append(roots[:i], roots[i+1:]...)
			break
		}
	}
	return ResOK
}

func (r *Root) Rank() Rank { return r.rank }

// scan invokes ss.FixRef for every candidate reference this root holds.
func (r *Root) scan(ss *ScanState) Res {
	switch r.kind {
	case RootKindTable:
		for i := range r.table {
			if res := ss.FixRef(&r.table[i]); res != ResOK {
				return res
			}
		}
	case RootKindTableMasked:
		for i := range r.table {
			if Word(r.table[i])&r.mask != 0 {
				continue
			}
			if res := ss.FixRef(&r.table[i]); res != ResOK {
				return res
			}
		}
	case RootKindStack:
		if r.scanner != nil {
			return r.scanner.ScanStack(ss)
		}
	case RootKindFunc:
		if r.fn != nil {
			return r.fn(ss)
		}
	}
	return ResOK
}
