package mps

// ams.go implements the AMS (Automatic Mark-Sweep) pool class,
// grounded on poolams.c. Per segment, three bit tables over
// grains encode (alloc, mark, scanned); colour is derived rather than
// stored directly:
//
//	White ⇔ alloc ∧ ¬mark
//	Grey  ⇔ alloc ∧ mark ∧ ¬scanned
//	Black ⇔ alloc ∧ mark ∧ scanned

// defaultAMSSegSize is the segment size AMS requests from the arena
// when no existing segment has room; real MPS computes this from the
// pool's extendBy policy, which isn't exposed as a configuration knob
// here, so we fix a simple constant and document it as an Open
// Question resolution in DESIGN.md.
const defaultAMSSegSize = 64 * 1024

type amsSegData struct {
	grains uint

	alloc   *BT
	mark    *BT
	scanned *BT

	firstFree uint

	colourTablesInUse bool
	marksChanged      bool
	ambiguousFixes    bool

	freeGrains, bufferedGrains, newGrains, oldGrains uint
}

func (*amsSegData) segmentPayloadMarker() {}
func (d *amsSegData) amsData() *amsSegData { return d }

// hasAMSData is implemented by every segment payload built on top of
// AMS's bit-table machinery, including AWL's (which adds weak-rank and
// single-access bookkeeping around the same three tables).
type hasAMSData interface {
	amsData() *amsSegData
}

func newAMSSegData(grains uint) *amsSegData {
	return &amsSegData{
		grains:     grains,
		alloc:      NewBT(grains),
		mark:       NewBT(grains),
		scanned:    NewBT(grains),
		freeGrains: grains,
	}
}

func (d *amsSegData) isAlloced(i uint) bool { return d.alloc.Get(i) }
func (d *amsSegData) isWhite(i uint) bool   { return d.alloc.Get(i) && !d.mark.Get(i) }
func (d *amsSegData) isGrey(i uint) bool    { return d.alloc.Get(i) && d.mark.Get(i) && !d.scanned.Get(i) }
func (d *amsSegData) isBlack(i uint) bool   { return d.alloc.Get(i) && d.mark.Get(i) && d.scanned.Get(i) }

// AMS is the PoolClass implementation for mark-and-sweep pools.
type AMS struct {
	UnimplementedPoolClass
	// SupportAmbiguous mirrors AMS_SUPPORT_AMBIGUOUS: when
	// false, ambiguous references into this pool are never treated as
	// real references (poolams.c's "doesn't support ambiguous
	// references" / .ambiguous.noshare path).
	SupportAmbiguous bool
}

// NewAMSPool creates a pool of class AMS, the mps_class_ams() analogue.
func NewAMSPool(arena *Arena, opts PoolOptions, supportAmbiguous bool) (*Pool, Res) {
	return PoolCreate(arena, &AMS{SupportAmbiguous: supportAmbiguous}, opts)
}

func (AMS) Name() string { return "AMS" }

func amsSegOf(seg *Segment) *amsSegData {
	d, ok := seg.payload.(hasAMSData)
	check(ok, "ams: segment payload does not carry amsSegData")
	return d.amsData()
}

func (a *AMS) BufferFill(pool *Pool, buf *Buffer, size uintptr) (Addr, Addr, Res) {
	grainsNeeded := uint(alignUp(size, pool.alignment) / pool.alignment)

	for _, seg := range pool.segs {
		if seg.HasBuffer() {
			continue
		}
		d := amsSegOf(seg)
		if d.colourTablesInUse {
			continue // mid-collection segment, not a fill target
		}
		base, limit, ok := d.alloc.FindLongResRange(0, d.grains, grainsNeeded)
		if !ok {
			continue
		}
		d.alloc.SetRange(base, limit)
		d.mark.SetRange(base, limit)
		d.scanned.SetRange(base, limit)
		n := limit - base
		d.freeGrains -= n
		d.bufferedGrains += n
		buf.seg = seg
		return seg.base + Addr(uintptr(base)*pool.alignment), seg.base + Addr(uintptr(limit)*pool.alignment), ResOK
	}

	segSize := defaultAMSSegSize
	if size > uintptr(segSize) {
		segSize = int(alignUp(size, pool.arena.grainSize))
	}
	seg, res := pool.NewSegment(uintptr(segSize))
	if res != ResOK {
		return 0, 0, res
	}
	seg.SetRankSet(buf.rank.rankSetOf())
	d := newAMSSegData(seg.grains)
	seg.payload = d
	// A freshly created segment has nothing else competing for it yet,
	// so the whole thing is handed to the buffer at once -- the same
	// "grab everything currently free" policy as the reused-segment
	// path above, applied to a segment that is entirely free.
	d.alloc.SetRange(0, d.grains)
	d.mark.SetRange(0, d.grains)
	d.scanned.SetRange(0, d.grains)
	d.freeGrains = 0
	d.bufferedGrains = d.grains
	buf.seg = seg
	return seg.base, seg.base + Addr(uintptr(d.grains)*pool.alignment), ResOK
}

func (a *AMS) BufferEmpty(pool *Pool, buf *Buffer, init, limit Addr) {
	seg := buf.seg
	if seg == nil {
		return
	}
	d := amsSegOf(seg)
	if limit > init {
		pool.format.Pad(init, uintptr(limit-init))
	}
	baseIdx := uint((buf.base - seg.base) / Addr(pool.alignment))
	initIdx := uint((init - seg.base) / Addr(pool.alignment))
	limitIdx := uint((limit - seg.base) / Addr(pool.alignment))

	if limitIdx > initIdx {
		d.alloc.ResetRange(initIdx, limitIdx)
		n := limitIdx - initIdx
		d.bufferedGrains -= n
		d.freeGrains += n
	}
	if initIdx > baseIdx {
		d.bufferedGrains -= (initIdx - baseIdx)
		d.newGrains += (initIdx - baseIdx)
	}
}

func (a *AMS) Whiten(pool *Pool, trace *Trace, seg *Segment) Res {
	d := amsSegOf(seg)
	check(!d.colourTablesInUse, "ams: Whiten on segment already mid-collection")
	for i := uint(0); i < d.grains; i++ {
		if d.isAlloced(i) && !seg.HasBuffer() {
			d.mark.Reset(i)
			d.scanned.Reset(i)
		}
	}
	d.colourTablesInUse = true
	d.marksChanged = false
	d.oldGrains += d.newGrains
	d.newGrains = 0
	return ResOK
}

func (a *AMS) Grey(pool *Pool, trace *Trace, seg *Segment) {
	d := amsSegOf(seg)
	if d.colourTablesInUse {
		return // already white for some trace; never simultaneously grey+white here
	}
	// A non-condemned segment is greyed conservatively: every black
	// object becomes grey again so its references get re-checked
	// against the new white set during the UNFLIPPED -> FLIPPED
	// transition. A segment holding no black object needs no
	// re-checking and is left ungreyed.
	any := false
	for i := uint(0); i < d.grains; i++ {
		if d.isBlack(i) {
			d.scanned.Reset(i)
			any = true
		}
	}
	if any {
		seg.SetGrey(seg.grey.Add(trace.ti))
		d.marksChanged = true
	}
}

func amsObjectIterate(pool *Pool, seg *Segment, fn func(i uint, base, next Addr)) {
	format := pool.format
	d := amsSegOf(seg)
	addr := seg.base
	for addr < seg.limit {
		i := uint(addr-seg.base) / uint(pool.alignment)
		if !d.isAlloced(i) {
			addr += Addr(pool.alignment)
			continue
		}
		next := format.Skip(addr)
		fn(i, addr, next)
		addr = next
	}
}

// Scan repeats amsObjectIterate to a fixed point: scanning one grey
// object can mark a not-yet-visited object in the same segment grey
// (or re-grey one already passed), so a single pass can leave grey
// work behind. poolams.c's amsSegScan loops "while (marksChanged)" for
// exactly this reason; Reclaim's invariant that no grey work remains
// depends on it.
//
// An ambiguous fix recorded since the last full pass (d.ambiguousFixes,
// set by Fix) makes per-grain grey tracking unreliable for this
// segment, the same way findGrey's queue membership goes stale once a
// reference into it has been fixed outside the normal grey-queue path:
// this pass scans every allocated grain instead of only the ones
// flagged grey, then clears the flag. A fix that lands *during* this
// pass is handled on the next call instead, since full is captured
// before the loop runs.
func (a *AMS) Scan(pool *Pool, ss *ScanState, seg *Segment) (bool, Res) {
	d := amsSegOf(seg)
	full := d.ambiguousFixes
	var res Res = ResOK
	for {
		d.marksChanged = false
		amsObjectIterate(pool, seg, func(i uint, base, next Addr) {
			if res != ResOK {
				return
			}
			if full {
				if !d.isAlloced(i) {
					return
				}
			} else if !d.isGrey(i) {
				return
			}
			if r := pool.format.Scan(ss, base, next); r != ResOK {
				res = r
				return
			}
			j := uint(next-seg.base) / uint(pool.alignment)
			for k := i; k < j; k++ {
				d.scanned.Set(k)
			}
		})
		if res != ResOK {
			return false, res
		}
		if !d.marksChanged {
			break
		}
	}
	if full {
		d.ambiguousFixes = false
	}
	return true, ResOK
}

func (a *AMS) Fix(pool *Pool, ss *ScanState, seg *Segment, refIO *Ref) Res {
	d := amsSegOf(seg)
	clientRef := *refIO
	base := clientRef - Addr(pool.format.HeaderSize())

	if base < seg.base || base >= seg.limit {
		check(ss.rank == RankAMBIG, "ams: out-of-range fix at non-ambiguous rank")
		return ResOK
	}
	if !isAligned(base, pool.alignment) {
		check(ss.rank == RankAMBIG, "ams: unaligned fix at non-ambiguous rank")
		return ResOK
	}
	i := uint(base-seg.base) / uint(pool.alignment)
	if !d.isAlloced(i) {
		check(ss.rank == RankAMBIG, "ams: fix of unallocated grain at non-ambiguous rank")
		return ResOK
	}

	if ss.rank == RankAMBIG {
		if !a.SupportAmbiguous {
			return ResOK
		}
		d.ambiguousFixes = true
	}

	if d.isWhite(i) {
		ss.wasMarked = false
		if ss.rank == RankWEAK {
			*refIO = 0
			return ResOK
		}
		d.mark.Set(i)
		d.marksChanged = true
		seg.SetGrey(seg.grey.Add(trId(ss.traces)))
		for ti := TraceId(0); ti < MaxTraces; ti++ {
			if ss.traces.IsMember(ti) {
				if t := ss.arena.traces[ti]; t != nil {
					t.enqueueGrey(seg)
				}
			}
		}
	}
	return ResOK
}

// trId extracts a representative TraceId from a TraceSet for segment
// greying bookkeeping; Fix is only ever invoked with a single active
// trace's set in this core (see ScanState), so "representative" is
// exact, not approximate.
func trId(ts TraceSet) TraceId {
	for ti := TraceId(0); ti < MaxTraces; ti++ {
		if ts.IsMember(ti) {
			return ti
		}
	}
	return 0
}

func (a *AMS) Blacken(pool *Pool, traces TraceSet, seg *Segment) {
	d := amsSegOf(seg)
	amsObjectIterate(pool, seg, func(i uint, base, next Addr) {
		if d.isGrey(i) {
			j := uint(next-seg.base) / uint(pool.alignment)
			for k := i; k < j; k++ {
				d.scanned.Set(k)
			}
		}
	})
	d.marksChanged = false
}

func (a *AMS) Reclaim(pool *Pool, trace *Trace, seg *Segment) {
	d := amsSegOf(seg)
	check(!d.marksChanged, "ams: Reclaim with grey objects outstanding")

	reclaimed := uint(0)
	for i := uint(0); i < d.grains; i++ {
		if d.isWhite(i) {
			d.alloc.Reset(i)
			reclaimed++
		}
	}
	d.freeGrains += reclaimed
	if d.oldGrains >= reclaimed {
		d.oldGrains -= reclaimed
	} else {
		d.oldGrains = 0
	}
	trace.stats.ReclaimSize += uintptr(reclaimed) * pool.alignment
	trace.stats.PreservedInPlaceSize += uintptr(d.oldGrains) * pool.alignment

	d.colourTablesInUse = false
	seg.SetWhite(seg.white.Del(trace.ti))

	if d.freeGrains == d.grains && !seg.HasBuffer() {
		pool.FreeSegment(seg)
	}
}

func (a *AMS) Walk(pool *Pool, seg *Segment, format Format, fn FormattedObjectsVisitor, closure any) {
	amsObjectIterate(pool, seg, func(i uint, base, next Addr) {
		fn(base+Addr(format.HeaderSize()), format, pool, closure)
	})
}

func (a *AMS) Access(pool *Pool, seg *Segment, addr Addr, mode Protect) Res {
	pool.arena.TraceSegAccess(seg, mode)
	return ResOK
}

// Merge coalesces segHi into segLo, grounded on AMSSegMerge: the two
// segments' alloc/mark/scanned bit tables are concatenated into one
// table sized for the combined grain count, segLo is widened to cover
// both extents, and segHi is freed. Neither segment may be buffered or
// mid-collection -- poolams.c's AMSSegMerge refuses the same cases via
// SegHasBuffer()/amsSegMergeIsPossible's colour-table check.
func (a *AMS) Merge(pool *Pool, segLo, segHi *Segment) Res {
	check(segLo.pool == pool && segHi.pool == pool, "ams: Merge across pools")
	check(segLo.limit == segHi.base, "ams: Merge of non-adjacent segments")
	if segLo.HasBuffer() || segHi.HasBuffer() {
		return ResFAIL
	}
	dLo := amsSegOf(segLo)
	dHi := amsSegOf(segHi)
	if dLo.colourTablesInUse || dHi.colourTablesInUse {
		return ResFAIL
	}

	grains := dLo.grains + dHi.grains
	merged := newAMSSegData(grains)
	for i := uint(0); i < dLo.grains; i++ {
		if dLo.alloc.Get(i) {
			merged.alloc.Set(i)
		}
		if dLo.mark.Get(i) {
			merged.mark.Set(i)
		}
		if dLo.scanned.Get(i) {
			merged.scanned.Set(i)
		}
	}
	for i := uint(0); i < dHi.grains; i++ {
		j := dLo.grains + i
		if dHi.alloc.Get(i) {
			merged.alloc.Set(j)
		}
		if dHi.mark.Get(i) {
			merged.mark.Set(j)
		}
		if dHi.scanned.Get(i) {
			merged.scanned.Set(j)
		}
	}
	merged.freeGrains = dLo.freeGrains + dHi.freeGrains
	merged.bufferedGrains = dLo.bufferedGrains + dHi.bufferedGrains
	merged.newGrains = dLo.newGrains + dHi.newGrains
	merged.oldGrains = dLo.oldGrains + dHi.oldGrains

	segLo.limit = segHi.limit
	segLo.grains = grains
	segLo.payload = merged
	segLo.SetSummary(segLo.Summary() | segHi.Summary())

	pool.FreeSegment(segHi)
	return ResOK
}

// Split divides seg at address at into two segments, grounded on
// AMSSegSplit: the alloc/mark/scanned bit tables are sliced at the
// corresponding grain index into two freshly sized tables, one kept on
// seg (shrunk to [seg.base, at)) and one on a newly created segment
// covering [at, seg.limit). Per-generation counters aren't preserved
// exactly across a split -- poolams.c recomputes them from the
// resulting bit tables too, which recomputeAMSCounts does here by
// treating every surviving allocated grain as old, since a split
// happens outside any collection's new/old accounting.
func (a *AMS) Split(pool *Pool, seg *Segment, at Addr) (*Segment, Res) {
	check(seg.pool == pool, "ams: Split of segment from another pool")
	check(at > seg.base && at < seg.limit, "ams: Split point not strictly inside segment")
	check(isAligned(at, pool.alignment), "ams: Split point not alignment-aligned")
	if seg.HasBuffer() {
		return nil, ResFAIL
	}
	d := amsSegOf(seg)
	if d.colourTablesInUse {
		return nil, ResFAIL
	}

	splitGrain := uint(at-seg.base) / uint(pool.alignment)
	loGrains := splitGrain
	hiGrains := d.grains - splitGrain

	dLo := newAMSSegData(loGrains)
	dHi := newAMSSegData(hiGrains)
	for i := uint(0); i < loGrains; i++ {
		if d.alloc.Get(i) {
			dLo.alloc.Set(i)
		}
		if d.mark.Get(i) {
			dLo.mark.Set(i)
		}
		if d.scanned.Get(i) {
			dLo.scanned.Set(i)
		}
	}
	for i := uint(0); i < hiGrains; i++ {
		j := splitGrain + i
		if d.alloc.Get(j) {
			dHi.alloc.Set(i)
		}
		if d.mark.Get(j) {
			dHi.mark.Set(i)
		}
		if d.scanned.Get(j) {
			dHi.scanned.Set(i)
		}
	}

	segHi := &Segment{
		pool:    pool,
		base:    at,
		limit:   seg.limit,
		grains:  hiGrains,
		rankSet: seg.rankSet,
		payload: dHi,
	}
	segHi.SetSummary(seg.Summary())

	seg.limit = at
	seg.grains = loGrains
	seg.payload = dLo

	pool.segs = append(pool.segs, segHi)
	pool.arena.addSegment(segHi)

	recomputeAMSCounts(dLo)
	recomputeAMSCounts(dHi)

	return segHi, ResOK
}

func recomputeAMSCounts(d *amsSegData) {
	alloced := d.alloc.CountRange(0, d.grains)
	d.freeGrains = d.grains - alloced
	d.bufferedGrains = 0
	d.newGrains = 0
	d.oldGrains = alloced
}

func (a *AMS) TotalSize(pool *Pool) uintptr {
	total := uintptr(0)
	for _, seg := range pool.segs {
		total += seg.Size()
	}
	return total
}

func (a *AMS) FreeSize(pool *Pool) uintptr {
	total := uintptr(0)
	for _, seg := range pool.segs {
		total += uintptr(amsSegOf(seg).freeGrains) * pool.alignment
	}
	return total
}

// rankSetOf renders a single Rank as a RankSet, used when a buffer's
// rank determines the rank set of the segment it just filled.
func (r Rank) rankSetOf() RankSet { return RankSetSingle(r) }
