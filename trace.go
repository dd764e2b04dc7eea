package mps

import "fmt"

// TraceState is the trace state machine a Trace moves through.
type TraceState int

const (
	TraceInit TraceState = iota
	TraceUnflipped
	TraceFlipped
	TraceFinished
)

func (s TraceState) String() string {
	switch s {
	case TraceInit:
		return "INIT"
	case TraceUnflipped:
		return "UNFLIPPED"
	case TraceFlipped:
		return "FLIPPED"
	case TraceFinished:
		return "FINISHED"
	default:
		return "?"
	}
}

// TraceStartWhy is the reason code carried on a gcStart message.
type TraceStartWhy string

const (
	TraceStartWhyClientFull   TraceStartWhy = "client requested full collection"
	TraceStartWhyChainGen0Cap TraceStartWhy = "generation 0 capacity exceeded"
	TraceStartWhyDynamicCrit  TraceStartWhy = "dynamic criterion met"
	// TraceStartWhyWalk is the reason code for the throwaway trace
	// ArenaRootsWalk creates purely to reuse the ordinary scan machinery,
	// grounded on walk.c's TraceStartWhyWALK.
	TraceStartWhyWalk TraceStartWhy = "root walk"
)

// TraceStats mirrors the subset of TraceStruct's statistics fields
// exposed to the client via the gc message.
type TraceStats struct {
	CondemnedSize         uintptr
	NotCondemnedSize      uintptr
	ReclaimSize           uintptr
	PreservedInPlaceSize  uintptr
	PreservedInPlaceCount uint
}

// Trace is a collection cycle object.
type Trace struct {
	ti    TraceId
	arena *Arena
	why   TraceStartWhy
	state TraceState

	condemned map[*Segment]bool

	// grey work queues per rank, scanned in ascending band order,
	// grounded on trace.c's traceBand/traceBandAdvance.
	greyQueue [RankCount][]*Segment

	band Rank

	stats TraceStats
}

// TraceCreate creates a trace attached to arena, assigning it a trace
// index from the small busy-trace set; fails with ResLIMIT if the set
// is full. The new trace starts in INIT state.
func TraceCreate(arena *Arena, why TraceStartWhy) (*Trace, Res) {
	for i := TraceId(0); i < MaxTraces; i++ {
		if !arena.busyTraces.IsMember(i) {
			t := &Trace{ti: i, arena: arena, why: why, state: TraceInit, condemned: make(map[*Segment]bool)}
			arena.busyTraces = arena.busyTraces.Add(i)
			arena.traces[i] = t
			arena.messages.postGCStart(why)
			return t, ResOK
		}
	}
	return nil, ResLIMIT
}

func (t *Trace) ID() TraceId     { return t.ti }
func (t *Trace) State() TraceState { return t.state }
func (t *Trace) Stats() TraceStats { return t.stats }

// TraceAddWhite condemns seg for this trace: the pool's Whiten method
// marks the segment's contents white while the trace is still in its
// UNFLIPPED state.
func (t *Trace) TraceAddWhite(seg *Segment) Res {
	check(t.state == TraceInit || t.state == TraceUnflipped,
		"trace: AddWhite outside INIT/UNFLIPPED, state=%v", t.state)
	if res := seg.pool.class.Whiten(seg.pool, t, seg); res != ResOK {
		return res
	}
	seg.SetWhite(seg.white.Add(t.ti))
	t.condemned[seg] = true
	t.stats.CondemnedSize += seg.Size()
	t.arena.shield.Sync(seg)
	return ResOK
}

// traceGreyNonCondemned greys every non-condemned segment with respect
// to t, so that the mutator's view of the heap after flip is a graph
// where every edge out of a black object is accounted for. This core
// greys every non-condemned segment unconditionally rather than
// computing a precise zone-based filter (a segment's summary is only
// ever a conservative superset, so over-greying is always safe, merely
// less efficient) -- recorded as an Open Question resolution in
// DESIGN.md.
func (t *Trace) traceGreyNonCondemned() {
	for _, seg := range t.arena.segments {
		if t.condemned[seg] {
			continue
		}
		seg.pool.class.Grey(seg.pool, t, seg)
		if seg.grey.IsMember(t.ti) {
			t.enqueueGrey(seg)
		}
	}
}

func (t *Trace) enqueueGrey(seg *Segment) {
	r := effectiveRank(seg)
	t.greyQueue[r] = append(t.greyQueue[r], seg)
}

// effectiveRank picks the rank band a segment is scanned under: the
// lowest rank in its rank set, matching trace.c's TraceRankForAccess
// ordering (ambiguous scanned before exact before final before weak).
func effectiveRank(seg *Segment) Rank {
	for r := Rank(0); r < RankCount; r++ {
		if seg.rankSet.IsMember(r) {
			return r
		}
	}
	return RankEXACT
}

// TraceStart takes a trace from INIT through UNFLIPPED to FLIPPED: roots are
// scanned, and pool classes for non-condemned segments are greyed with
// respect to this trace.
func (t *Trace) TraceStart() Res {
	check(t.state == TraceInit, "trace: Start from state=%v", t.state)
	t.state = TraceUnflipped
	t.traceGreyNonCondemned()

	t.arena.flippedTraces = t.arena.flippedTraces.Add(t.ti)
	t.state = TraceFlipped

	ss := newScanState(t.arena, TraceSetSingle(t.ti), RankAMBIG)
	for _, root := range t.arena.roots {
		ss.rank = root.rank
		if res := root.scan(ss); res != ResOK {
			return res
		}
	}
	return ResOK
}

// findGrey finds a segment that is grey for this trace at the current
// band, advancing the band when the current one is exhausted. The
// fixed point is reached when no grey remains for this trace.
func (t *Trace) findGrey() (*Segment, Rank, bool) {
	for {
		q := t.greyQueue[t.band]
		for len(q) > 0 {
			seg := q[len(q)-1]
			q = q[:len(q)-1]
			t.greyQueue[t.band] = q
			if seg.grey.IsMember(t.ti) {
				return seg, t.band, true
			}
		}
		if t.band == RankWEAK {
			return nil, 0, false
		}
		t.band++
	}
}

// TraceScan drives the scanning fixed point: it repeatedly picks a
// segment with non-empty grey-for-this-trace, exposes it, and calls the
// pool's Scan method, until no grey remains. The trace must already be
// in FLIPPED state.
func (t *Trace) TraceScan() Res {
	check(t.state == TraceFlipped, "trace: Scan outside FLIPPED, state=%v", t.state)
	for {
		seg, rank, ok := t.findGrey()
		if !ok {
			break
		}
		ss := newScanState(t.arena, TraceSetSingle(t.ti), rank)
		var res Res
		t.arena.shield.WithExposed(seg, func() {
			_, res = seg.pool.class.Scan(seg.pool, ss, seg)
		})
		if res != ResOK {
			if !res.IsRecoverable() {
				return res
			}
			// Allocation failure mid-scan: switch to emergency fix for
			// the remainder of this trace's life ("emergency mode").
			t.arena.emergency = true
			continue
		}
		seg.SetGrey(seg.grey.Del(t.ti))
		t.arena.shield.Sync(seg)
	}
	return ResOK
}

// TraceReclaim is called once scanning reaches a fixed point: every
// condemned segment is reclaimed and the trace moves to FINISHED state.
func (t *Trace) TraceReclaim() Res {
	check(t.state == TraceFlipped, "trace: Reclaim outside FLIPPED, state=%v", t.state)
	for seg := range t.condemned {
		before := seg.Size()
		seg.pool.class.Reclaim(seg.pool, t, seg)
		_ = before
	}
	t.state = TraceFinished
	t.arena.flippedTraces = t.arena.flippedTraces.Del(t.ti)
	t.arena.busyTraces = t.arena.busyTraces.Del(t.ti)
	t.arena.traces[t.ti] = nil
	t.arena.emergency = false
	t.arena.messages.postGC(t.stats)
	return ResOK
}

// ArenaCollect runs condemn/flip/scan/reclaim to completion synchronously
// for the given pools, the arenaCollect analogue. Real incremental
// driving is available via Arena.Step.
func (a *Arena) ArenaCollect(pools []*Pool, why TraceStartWhy) Res {
	trace, res := TraceCreate(a, why)
	if res != ResOK {
		return res
	}
	for _, p := range pools {
		for _, seg := range p.segs {
			if seg.HasBuffer() {
				// Buffered ranges are exempt from whiten.
				continue
			}
			if res := trace.TraceAddWhite(seg); res != ResOK {
				return res
			}
		}
	}
	if res := trace.TraceStart(); res != ResOK {
		return res
	}
	if res := trace.TraceScan(); res != ResOK {
		return res
	}
	return trace.TraceReclaim()
}

// startAutomaticTrace begins a new collection when some pool's
// generation chain currently justifies one, the condemn-set selection
// TraceStartCollectAll/TraceCondemnEnd perform in the grounding source
// before a trace is even created. Every pool whose chain qualifies
// (Pool.generationsToCollect) is condemned together under a single
// trace; a pool's generation-0 threshold sets TraceStartWhyChainGen0Cap,
// an older generation (reached only because generationsToCollect walks
// leaves-first and a younger generation already qualified too) sets
// TraceStartWhyDynamicCrit. Returns ResOK with no trace created when
// nothing currently qualifies.
func (a *Arena) startAutomaticTrace() Res {
	var targets []*Pool
	why := TraceStartWhy("")
	for _, p := range a.pools {
		gen := p.generationsToCollect()
		if gen < 0 {
			continue
		}
		targets = append(targets, p)
		if gen == 0 {
			why = TraceStartWhyChainGen0Cap
		} else if why == "" {
			why = TraceStartWhyDynamicCrit
		}
	}
	if len(targets) == 0 {
		return ResOK
	}

	trace, res := TraceCreate(a, why)
	if res != ResOK {
		return res
	}
	for _, p := range targets {
		for _, seg := range p.segs {
			if seg.HasBuffer() {
				continue
			}
			if res := trace.TraceAddWhite(seg); res != ResOK {
				return res
			}
		}
		for _, g := range p.chain {
			g.newSize = 0
		}
	}
	return ResOK
}

// Step performs one unit of work on the lowest-numbered active trace,
// the arenaStep(deadline) analogue. This core runs synchronously (no
// background collector thread): a trace that has not flipped yet is
// started with TraceStart and Step returns more=true; a flipped trace
// is scanned to completion and reclaimed, and Step returns more=false.
// quantumBytes is not used. Before looking for an active trace to drive, Step
// checks whether any pool's generation chain now justifies starting a
// new one -- this is how the condemn-set policy actually gets
// exercised without every caller having to poll it by hand.
func (a *Arena) Step(quantumBytes uintptr) (more bool, res Res) {
	if a.busyTraces.IsEmpty() {
		if res := a.startAutomaticTrace(); res != ResOK {
			return false, res
		}
	}
	for i := TraceId(0); i < MaxTraces; i++ {
		tr := a.traces[i]
		if tr == nil {
			continue
		}
		switch tr.state {
		case TraceInit:
			if res := tr.TraceStart(); res != ResOK {
				return true, res
			}
			return true, ResOK
		case TraceUnflipped:
			if res := tr.TraceStart(); res != ResOK {
				return true, res
			}
			return true, ResOK
		case TraceFlipped:
			if res := tr.TraceScan(); res != ResOK {
				return true, res
			}
			if res := tr.TraceReclaim(); res != ResOK {
				return false, res
			}
			return false, ResOK
		}
	}
	return false, ResOK
}

func (t *Trace) String() string {
	return fmt.Sprintf("Trace[%d] state=%s why=%q condemned=%d", t.ti, t.state, t.why, len(t.condemned))
}
