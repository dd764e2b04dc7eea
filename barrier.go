package mps

// TraceSegAccess handles a mutator access barrier hit on seg,
// grounded on trace.c's TraceSegAccess. A read hit means
// the segment is grey for some flipped trace and must be scanned before
// the mutator is allowed through; a write hit means the segment's
// summary must be widened to RefSetUNIV before the mutator's store is
// allowed to proceed (the write barrier's whole job is to keep the
// summary accurate without scanning on every write).
func (a *Arena) TraceSegAccess(seg *Segment, mode Protect) Res {
	hit := seg.effective & mode
	readHit := hit&ProtectRead != 0
	writeHit := hit&ProtectWrite != 0

	if writeHit {
		seg.deferScans = wbDeferScans
	}

	if readHit {
		check(seg.grey.Inter(a.flippedTraces) != TraceSetEMPTY,
			"barrier: read hit on segment not grey for any flipped trace")
		rank := effectiveRank(seg)
		traces := a.flippedTraces.Inter(seg.grey)
		ss := newScanState(a, traces, rank)
		_, res := seg.pool.class.Scan(seg.pool, ss, seg)
		if res != ResOK {
			return res
		}
		// Stale grey queue entries for seg are left in place: findGrey
		// re-checks seg.grey membership before processing, so no
		// explicit removal is required here.
		seg.SetGrey(seg.grey.Inter(^traces))
	}

	if writeHit {
		seg.SetSummary(RefSetUNIV)
	}

	a.shield.Sync(seg)
	return ResOK
}

// wbDeferScans is how many further scans the write barrier is deferred
// for after a hit.
const wbDeferScans = 1
