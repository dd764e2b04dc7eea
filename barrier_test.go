package mps

import "testing"

func TestTraceSegAccessWriteHitWidensSummary(t *testing.T) {
	a, pool, format := newAMSTestPool(t)
	buf, _ := APCreate(pool, RankEXACT)
	addr, _ := buf.Reserve(8)
	format.put(addr, 8)
	buf.Commit(addr, 8)
	buf.Detach()

	seg := pool.Segments()[0]
	// Simulate the OS having trapped a write into seg because it was
	// currently write-protected.
	seg.effective = ProtectWrite

	if res := a.TraceSegAccess(seg, ProtectWrite); res != ResOK {
		t.Fatalf("TraceSegAccess: %v", res)
	}
	if seg.Summary() != RefSetUNIV {
		t.Fatal("a write hit should widen the segment's summary to RefSetUNIV")
	}
	if seg.effective != ProtectNone {
		t.Fatalf("effective = %v, want ProtectNone once the summary is universal", seg.effective)
	}
}

func TestTraceSegAccessReadHitScansAndClearsGrey(t *testing.T) {
	a, pool, format := newAMSTestPool(t)
	buf, _ := APCreate(pool, RankEXACT)
	addr, _ := buf.Reserve(8)
	format.put(addr, 8)
	buf.Commit(addr, 8)
	buf.Detach()

	seg := pool.Segments()[0]
	d := amsSegOf(seg)
	if !d.isBlack(0) {
		t.Fatal("setup: a freshly allocated grain should start black")
	}

	tr, _ := TraceCreate(a, TraceStartWhyClientFull)
	pool.class.Grey(pool, tr, seg)
	if !d.isGrey(0) {
		t.Fatal("setup: Grey should have re-greyed the black grain")
	}
	// Simulate TraceStart's UNFLIPPED -> FLIPPED transition for tr
	// without driving the full root-scanning machinery.
	a.flippedTraces = a.flippedTraces.Add(tr.ti)
	seg.effective = ProtectRead

	if res := a.TraceSegAccess(seg, ProtectRead); res != ResOK {
		t.Fatalf("TraceSegAccess: %v", res)
	}
	if !d.isBlack(0) {
		t.Fatal("a read hit should scan the grey grain back to black")
	}
	if seg.Grey().IsMember(tr.ti) {
		t.Fatal("a read hit should clear the segment's greyness for the trace it scanned")
	}
	if seg.effective != ProtectWrite {
		t.Fatalf("effective = %v, want ProtectWrite: read-grey is gone but the summary is still non-universal", seg.effective)
	}
}

func TestTraceSegAccessNoHitLeavesSummaryUntouched(t *testing.T) {
	a, pool, format := newAMSTestPool(t)
	buf, _ := APCreate(pool, RankEXACT)
	addr, _ := buf.Reserve(8)
	format.put(addr, 8)
	buf.Commit(addr, 8)
	buf.Detach()

	seg := pool.Segments()[0]
	seg.effective = ProtectRead
	before := seg.Summary()

	// mode bits disjoint from the segment's effective protection: no
	// hit, so neither the write-hit nor read-hit path should run.
	if res := a.TraceSegAccess(seg, ProtectWrite); res != ResOK {
		t.Fatalf("TraceSegAccess: %v", res)
	}
	if seg.Summary() != before {
		t.Fatal("an access that doesn't overlap the effective protection should not widen the summary")
	}
}
