package mps

// Format is the client contract describing object layout.
// The collector never interprets object contents itself; every scan,
// skip, pad, and (for moving pools) forward/isForwarded call is
// delegated here.
type Format interface {
	// Scan invokes ss.FixRef for each candidate reference in [base, limit).
	Scan(ss *ScanState, base, limit Addr) Res
	// Skip returns the address of the next object after addr. Skip must
	// be monotone and total over live objects.
	Skip(addr Addr) Addr
	// Pad writes a self-describing padding object of exactly size bytes
	// at base, so that Skip can step over it.
	Pad(base Addr, size uintptr)
	// HeaderSize is the number of bytes of client header preceding the
	// address a reference actually points at (0 for headerless formats).
	HeaderSize() uintptr
	// Alignment is the required alignment of formatted objects.
	Alignment() uintptr
}

// MovingFormat is implemented by formats used with moving pool classes.
// Neither AMS, AWL nor SNC requires it; it's declared here as part of
// the format contract even though this core only ships non-moving
// pool classes.
type MovingFormat interface {
	Format
	Forward(old, new Addr)
	IsForwarded(addr Addr) (Addr, bool)
}

// SingleAccessFormat is implemented by formats that can fix the one
// reference a barrier fault actually touched without scanning the rest
// of the object, grounded on poolawl.c's PoolSingleAccess (the
// Dylan-specific slot-access path AWL was built for). A format that
// doesn't implement it simply never gets single accesses: AWL falls
// back to a whole-segment scan, exactly as AWLAccess does on ResFAIL.
type SingleAccessFormat interface {
	Format
	FixSingle(ss *ScanState, addr Addr) Res
}

// FormatNoScan is a Scan implementation for formats that declare no
// references at all (used by tests of pool classes that never scan,
// like SNC).
func FormatNoScan(ss *ScanState, base, limit Addr) Res {
	return ResOK
}
