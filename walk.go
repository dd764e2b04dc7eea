package mps

// walk.go implements the three walkers, grounded on walk.c. Every
// walker requires a parked arena: there is no background collector
// thread here to race with, but the contract is carried anyway since
// a client may still have an in-progress incremental trace
// (Arena.Step not yet driven to completion) when it calls a walker.

// poolWalk walks every area of pool's segments still holding live
// formatted objects -- the initialized prefix of a buffered segment,
// or the whole extent of an unbuffered one -- invoking areaScan once
// per area with the segment exposed, grounded on walk.c's per-segment
// SegWalk/ShieldExpose pairing. closure is not threaded through
// directly: callers close over it in areaScan, the same way a pool
// class's own Walk method closes over its FormattedObjectsVisitor
// closure argument.
func poolWalk(pool *Pool, areaScan func(base, limit Addr), closure any) Res {
	check(pool.arena.IsParked(), "walk: pool walked while arena is not parked")
	for _, seg := range pool.segs {
		limit := seg.limit
		if seg.HasBuffer() {
			limit = seg.Buffer().Init()
		}
		pool.arena.shield.WithExposed(seg, func() {
			areaScan(seg.base, limit)
		})
	}
	return ResOK
}

// ArenaFormattedObjectsWalk visits every formatted object in every
// segment of the arena, dispatching through each owning pool's Walk
// method, grounded on walk.c's ArenaFormattedObjectsWalk.
func (a *Arena) ArenaFormattedObjectsWalk(f FormattedObjectsVisitor, closure any) Res {
	check(a.IsParked(), "walk: formatted objects walked while arena is not parked")
	for _, seg := range a.Segments() {
		pool := seg.Pool()
		format := pool.Format()
		if format == nil {
			continue
		}
		a.shield.WithExposed(seg, func() {
			pool.class.Walk(pool, seg, format, f, closure)
		})
	}
	return ResOK
}

// RootStepper is the per-reference callback for ArenaRootsWalk, the
// mps_roots_stepper_t analogue: called with the address of a
// reference found in root, plus the client closure.
type RootStepper func(refIO *Ref, root *Root, closure any)

// ArenaRootsWalk walks every root in the arena once per rank (ascending
// rank order, matching trace.c's band ordering), invoking f on
// every candidate reference a root's own Scan/FixRef path turns up.
//
// Grounded on walk.c's ArenaRootsWalk/RootsWalkFix: a throwaway trace
// is created purely so the real root-scanning code path runs
// unmodified. walk.c calls this "fooling _mps_fix2" in two stages; only
// the second is done here (there is no trace white summary to set):
// every segment is marked white for the trace
// (.roots-walk.second-stage) so that Fix's ordinary "locate segment,
// check white-for-trace, dispatch" shape is exercised -- except here
// the dispatch is f itself, never a pool's Fix method, so the walk can
// never mutate the heap it's walking.
func (a *Arena) ArenaRootsWalk(f RootStepper, closure any) Res {
	check(a.IsParked(), "walk: roots walked while arena is not parked")

	trace, res := TraceCreate(a, TraceStartWhyWalk)
	if res != ResOK {
		return res
	}

	for _, seg := range a.segments {
		seg.SetWhite(seg.white.Add(trace.ti))
	}
	a.flippedTraces = a.flippedTraces.Add(trace.ti)

	var currentRoot *Root
	ss := newScanState(a, TraceSetSingle(trace.ti), RankAMBIG)
	ss.fix = func(ss *ScanState, refIO *Ref) Res {
		seg, ok := a.find(*refIO)
		if !ok || seg.white.Inter(ss.traces) == TraceSetEMPTY {
			return ResOK
		}
		before := *refIO
		f(refIO, currentRoot, closure)
		check(*refIO == before, "walk: root stepper must not mutate the reference it is given")
		return ResOK
	}

	var walkRes Res = ResOK
	for r := Rank(0); r < RankCount; r++ {
		ss.rank = r
		for _, root := range a.roots {
			if root.rank != r {
				continue
			}
			currentRoot = root
			ss.unfixedSummary = RefSetEMPTY
			if res := root.scan(ss); res != ResOK {
				walkRes = res
				break
			}
		}
		if walkRes != ResOK {
			break
		}
	}

	for _, seg := range a.segments {
		seg.SetWhite(seg.white.Del(trace.ti))
	}
	a.flippedTraces = a.flippedTraces.Del(trace.ti)
	a.busyTraces = a.busyTraces.Del(trace.ti)
	a.traces[trace.ti] = nil

	return walkRes
}
