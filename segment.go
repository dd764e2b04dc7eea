package mps

// segmentPayload is the per-pool-class state a segment carries, a Go
// rendering of the tagged-variant shape: rather than a
// cyclic struct graph or a C-style subclass cast, each pool class keeps
// its own payload type and type-switches on it. A Segment never knows
// which payload it holds; only its owning Pool's PoolClass does.
type segmentPayload interface {
	segmentPayloadMarker()
}

// Segment is a contiguous grain-aligned arena region owned by exactly
// one pool.
type Segment struct {
	pool    *Pool
	base    Addr
	limit   Addr
	grains  uint

	rankSet RankSet
	summary RefSet
	white   TraceSet
	grey    TraceSet
	nailed  TraceSet

	// shield state
	shieldDepth int
	effective   Protect
	queued      bool
	// write-barrier deferral, grounded on trace.c's TraceSegAccess.
	deferScans int

	buffer *Buffer

	payload segmentPayload
}

// Base and Limit expose the segment's address range.
func (s *Segment) Base() Addr  { return s.base }
func (s *Segment) Limit() Addr { return s.limit }
func (s *Segment) Size() uintptr { return uintptr(s.limit - s.base) }
func (s *Segment) Pool() *Pool { return s.pool }

func (s *Segment) RankSet() RankSet { return s.rankSet }
func (s *Segment) Summary() RefSet  { return s.summary }
func (s *Segment) White() TraceSet  { return s.white }
func (s *Segment) Grey() TraceSet   { return s.grey }

func (s *Segment) SetSummary(rs RefSet) { s.summary = rs }

// SetWhite replaces the segment's white trace set with ts. Per the
// single-white invariant, a segment may be white for at most one
// trace at a time; we check that rather than silently allowing it.
func (s *Segment) SetWhite(ts TraceSet) {
	check(ts.IsEmpty() || ((ts&(ts-1)) == 0 && (s.white.IsEmpty() || s.white == ts)),
		"segment: single-white invariant violated")
	s.white = ts
}

// SetGrey changes greyness of the segment with respect to the given
// trace set (additively -- callers Del explicitly when a trace finishes
// greying a segment, mirroring SegSetGrey's semantics in segment.c).
func (s *Segment) SetGrey(ts TraceSet) {
	s.grey = ts
}

func (s *Segment) SetRankSet(rs RankSet) { s.rankSet = rs }

// HasBuffer reports whether an allocation buffer is currently attached.
func (s *Segment) HasBuffer() bool { return s.buffer != nil }
func (s *Segment) Buffer() *Buffer { return s.buffer }

// Merge joins s with next, the segment immediately following it in the
// same pool, provided the pool class permits it; s absorbs next's
// extent and next is destroyed. Pool classes that have no notion of
// coalescing segments return ResUNIMPL via UnimplementedPoolClass.
func (s *Segment) Merge(next *Segment) Res {
	return s.pool.class.Merge(s.pool, s, next)
}

// Split divides s at address at into two segments: s is shrunk to
// [s.base, at) and a new segment covering [at, s.limit) is returned,
// provided the pool class permits it.
func (s *Segment) Split(at Addr) (*Segment, Res) {
	return s.pool.class.Split(s.pool, s, at)
}

// desiredProtect computes the protection mode a segment should have
// given its current rank/colour/white/grey state:
// "a segment that is grey for a flipped trace has read protection so
// mutator access traps."
func (s *Segment) desiredProtect(arena *Arena) Protect {
	if s.rankSet.IsEmpty() {
		return ProtectNone
	}
	if s.deferScans > 0 {
		return ProtectNone
	}
	mode := ProtectNone
	if arena.flippedTraces.Inter(s.grey) != TraceSetEMPTY {
		mode |= ProtectRead
	}
	if s.summary != RefSetUNIV {
		mode |= ProtectWrite
	}
	return mode
}
