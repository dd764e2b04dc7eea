package mps

// awl.go implements the AWL (Automatic Weak Linked) pool class,
// grounded on poolawl.c. AWL is AMS plus two things poolawl.c
// adds on top of the same three-bit-table colour scheme: support for a
// "dependent object" (findDependent, never invented here beyond the
// hook itself, since nothing here names a client use for it) and
// a single-access budget that lets a barrier fault on a segment mixing
// weak and strong references fix just the one reference that faulted
// instead of scanning (and so retaining) the whole segment.

// awlSegData wraps an amsSegData with the extra per-segment counters
// poolawl.c's AWLSegStruct carries (singleAccesses, stats.sameAccesses,
// stats.lastAccess), so AWL can reuse every AMS method that only needs
// the shared bit tables via the hasAMSData indirection in ams.go.
type awlSegData struct {
	ams *amsSegData

	singleAccesses uint

	sameAccesses uint
	lastAccess   Addr
}

func (*awlSegData) segmentPayloadMarker()  {}
func (d *awlSegData) amsData() *amsSegData { return d.ams }

func newAWLSegData(grains uint) *awlSegData {
	return &awlSegData{ams: newAMSSegData(grains)}
}

func awlSegOf(seg *Segment) *awlSegData {
	d, ok := seg.payload.(*awlSegData)
	check(ok, "awl: segment payload is not awlSegData")
	return d
}

// AWLStats mirrors awlStatTotalStruct, exposed for Describe/tests.
type AWLStats struct {
	GoodScans     uint // scanned at proper (weak) rank
	BadScans      uint // scanned at an improper rank
	SavedScans    uint // whole-segment scans avoided by single accesses
	SavedAccesses uint // single accesses that contributed to a saved scan
	Declined      uint // single accesses declined because of a budget limit
}

// AWL is the PoolClass implementation for automatic weak-linked pools.
// It embeds AMS and overrides BufferFill/BufferEmpty (to build an
// awlSegData payload instead of a bare amsSegData), Access (to run
// the single-access budget before falling back to AMS's whole-segment
// scan path), Merge/Split, Name and Describe.
type AWL struct {
	AMS

	// FindDependent locates the "dependent object" of a client object,
	// poolawl.c's findDependent hook (Dylan-specific; never invented
	// beyond the hook since nothing here names a use for it).
	FindDependent func(obj Addr) Addr

	// succAccesses counts successive single accesses across the whole
	// pool, poolawl.c's AWL.succAccesses.
	succAccesses uint

	// SegSALimit/HaveSegSALimit and TotalSALimit/HaveTotalSALimit mirror
	// AWLSegSALimit/AWLHaveSegSALimit and AWLTotalSALimit/
	// AWLHaveTotalSALimit: budgets on, respectively, how many single
	// accesses one segment may absorb between scans and how many
	// successive single accesses the whole pool may absorb before
	// declining further ones (poolawl.c .assume.*).
	SegSALimit      uint
	HaveSegSALimit  bool
	TotalSALimit    uint
	HaveTotalSALimit bool

	Stats AWLStats
}

// NewAWLPool creates a pool of class AWL, the mps_class_awl() analogue.
func NewAWLPool(arena *Arena, opts PoolOptions, findDependent func(Addr) Addr) (*Pool, Res) {
	return PoolCreate(arena, &AWL{
		AMS:              AMS{SupportAmbiguous: false},
		FindDependent:    findDependent,
		SegSALimit:       AWLSegSALimitDefault,
		HaveSegSALimit:   true,
		TotalSALimit:     AWLTotalSALimitDefault,
		HaveTotalSALimit: true,
	}, opts)
}

// AWLSegSALimitDefault and AWLTotalSALimitDefault mirror poolawl.c's
// AWL_SEG_SA_LIMIT / AWL_TOTAL_SA_LIMIT build-time constants.
const (
	AWLSegSALimitDefault   = 64
	AWLTotalSALimitDefault = 64
)

func (AWL) Name() string { return "AWL" }

func (a *AWL) BufferFill(pool *Pool, buf *Buffer, size uintptr) (Addr, Addr, Res) {
	grainsNeeded := uint(alignUp(size, pool.alignment) / pool.alignment)

	for _, seg := range pool.segs {
		if seg.HasBuffer() {
			continue
		}
		d := awlSegOf(seg)
		if d.ams.colourTablesInUse {
			continue
		}
		base, limit, ok := d.ams.alloc.FindLongResRange(0, d.ams.grains, grainsNeeded)
		if !ok {
			continue
		}
		d.ams.alloc.SetRange(base, limit)
		d.ams.mark.SetRange(base, limit)
		d.ams.scanned.SetRange(base, limit)
		n := limit - base
		d.ams.freeGrains -= n
		d.ams.bufferedGrains += n
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
	d := newAWLSegData(seg.grains)
	seg.payload = d
	// Same "grab the whole free segment" policy as AMS.BufferFill.
	d.ams.alloc.SetRange(0, d.ams.grains)
	d.ams.mark.SetRange(0, d.ams.grains)
	d.ams.scanned.SetRange(0, d.ams.grains)
	d.ams.freeGrains = 0
	d.ams.bufferedGrains = d.ams.grains
	buf.seg = seg
	return seg.base, seg.base + Addr(uintptr(d.ams.grains)*pool.alignment), ResOK
}

func (a *AWL) BufferEmpty(pool *Pool, buf *Buffer, init, limit Addr) {
	seg := buf.seg
	if seg == nil {
		return
	}
	d := awlSegOf(seg).ams
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

// canTrySingleAccess mirrors AWLCanTrySingleAccess: single accesses are
// worth attempting only on a segment that actually mixes in weak
// references (.assume.noweak), only while some trace has flipped, only
// while the segment's effective (lowest) rank isn't WEAK (nothing to
// save there), and only while neither budget has been exhausted.
func (a *AWL) canTrySingleAccess(arena *Arena, seg *Segment) bool {
	if !seg.rankSet.IsMember(RankWEAK) {
		return false
	}
	if arena.flippedTraces.IsEmpty() {
		return false
	}
	if effectiveRank(seg) == RankWEAK {
		return false
	}
	if a.HaveTotalSALimit && a.succAccesses >= a.TotalSALimit {
		a.Stats.Declined++
		return false
	}
	d := awlSegOf(seg)
	if a.HaveSegSALimit && d.singleAccesses >= a.SegSALimit {
		a.Stats.Declined++
		return false
	}
	return true
}

func (a *AWL) noteRefAccess(seg *Segment, addr Addr) {
	d := awlSegOf(seg)
	d.singleAccesses++
	if addr == d.lastAccess {
		d.sameAccesses++
	}
	d.lastAccess = addr
	a.succAccesses++
}

func (a *AWL) noteSegAccess() {
	a.succAccesses = 0
}

// noteScan mirrors AWLNoteScan, called whenever this segment completes
// a scan (whether barrier-provoked or part of ordinary tracing) so the
// pool-wide hit/miss statistics stay current, and resets the
// per-segment single-access count for the next cycle.
func (a *AWL) noteScan(seg *Segment, rank Rank) {
	if !seg.rankSet.IsMember(RankWEAK) {
		return
	}
	d := awlSegOf(seg)
	if rank == RankWEAK {
		a.Stats.GoodScans++
		if d.singleAccesses > 0 {
			a.Stats.SavedScans++
			a.Stats.SavedAccesses += d.singleAccesses
		}
	} else {
		a.Stats.BadScans++
	}
	d.singleAccesses = 0
	d.sameAccesses = 0
	d.lastAccess = 0
}

// singleAccess attempts to fix just the one reference at addr without
// scanning the rest of the object, via the format's SingleAccessFormat
// hook, grounded on poolawl.c's PoolSingleAccess. Returns ResFAIL if the
// format can't do it (e.g. it doesn't implement SingleAccessFormat),
// matching AWLAccess's "not all accesses can be managed singly" path.
func (a *AWL) singleAccess(pool *Pool, seg *Segment, addr Addr, mode Protect) Res {
	saFormat, ok := pool.format.(SingleAccessFormat)
	if !ok {
		return ResFAIL
	}
	rank := effectiveRank(seg)
	traces := pool.arena.flippedTraces.Inter(seg.grey)
	if traces.IsEmpty() {
		return ResFAIL
	}
	ss := newScanState(pool.arena, traces, rank)
	if res := saFormat.FixSingle(ss, addr); res != ResOK {
		return res
	}
	return ResOK
}

// Merge and Split are not supported for AWL pools: poolawl.c has no
// AWLSegMerge/AWLSegSplit counterpart to AMSSegMerge/AMSSegSplit, since
// reconciling two segments' single-access budgets and statistics
// (awlSegData, above) across a merge or split isn't something the
// grounding source does either. Without these overrides, AWL would
// inherit AMS's Merge/Split by embedding and silently corrupt its own
// payload type when they replaced segLo.payload with a bare
// amsSegData.
func (a *AWL) Merge(pool *Pool, segLo, segHi *Segment) Res { return ResUNIMPL }
func (a *AWL) Split(pool *Pool, seg *Segment, at Addr) (*Segment, Res) {
	return nil, ResUNIMPL
}

// Access overrides AMS's generic TraceSegAccess delegation with
// poolawl.c's AWLAccess: try a single-reference fix first, and only
// fall back to scanning/whitening the whole segment (via the embedded
// AMS machinery, by way of the arena's standard barrier handler) when
// the single access isn't possible or fails.
func (a *AWL) Access(pool *Pool, seg *Segment, addr Addr, mode Protect) Res {
	if a.canTrySingleAccess(pool.arena, seg) {
		res := a.singleAccess(pool, seg, addr, mode)
		switch res {
		case ResOK:
			a.noteRefAccess(seg, addr)
			return ResOK
		case ResFAIL:
			// fall through to whole-segment access below
		default:
			return res
		}
	}

	res := pool.arena.TraceSegAccess(seg, mode)
	if res == ResOK {
		a.noteSegAccess()
		a.noteScan(seg, effectiveRank(seg))
	}
	return res
}
