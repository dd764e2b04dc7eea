package mps

// shieldCacheLimit bounds the queue of segments with a deferred
// protection change. Queued changes are applied when the queue reaches
// this limit or when Flush is called; nothing else flushes the queue.
const shieldCacheLimit = 64

// Shield mediates read/write memory protection on segments, amortising
// syscalls by deferring protection changes while a segment is exposed
// or while the queue has room. One Shield lives on each Arena.
type Shield struct {
	arena   *Arena
	pending []*Segment
	holds   int
}

func newShield(arena *Arena) *Shield {
	return &Shield{arena: arena}
}

// Expose lifts all protection on seg so the collector may read/write it,
// incrementing a nestable depth counter. Contract: while exposed, the
// collector may freely touch the segment's memory.
func (sh *Shield) Expose(seg *Segment) {
	seg.shieldDepth++
	sh.holds++
	if seg.shieldDepth == 1 && seg.effective != ProtectNone {
		sh.arena.vm.Protect(seg.base, seg.Size(), ProtectNone)
		seg.effective = ProtectNone
	}
}

// Cover decrements the depth counter; at zero it queues the segment's
// desired protection to be reinstated lazily.
func (sh *Shield) Cover(seg *Segment) {
	check(seg.shieldDepth > 0, "shield: Cover without matching Expose")
	seg.shieldDepth--
	sh.holds--
	if seg.shieldDepth == 0 {
		sh.enqueue(seg)
	}
}

// WithExposed runs fn with seg exposed, guaranteeing Cover on every exit
// path -- a scoped-acquisition rendering of Expose/Cover.
func (sh *Shield) WithExposed(seg *Segment, fn func()) {
	sh.Expose(seg)
	defer sh.Cover(seg)
	fn()
}

func (sh *Shield) enqueue(seg *Segment) {
	if seg.queued {
		return
	}
	seg.queued = true
	sh.pending = append(sh.pending, seg)
	if len(sh.pending) >= shieldCacheLimit {
		sh.Flush()
	}
}

// Flush realizes every queued protection change.
func (sh *Shield) Flush() {
	for _, seg := range sh.pending {
		seg.queued = false
		if seg.shieldDepth > 0 {
			// Re-exposed since being queued; leave it be, it will be
			// re-queued on its matching Cover.
			continue
		}
		desired := seg.desiredProtect(sh.arena)
		if desired != seg.effective {
			sh.arena.vm.Protect(seg.base, seg.Size(), desired)
			seg.effective = desired
		}
	}
	sh.pending = sh.pending[:0]
}

// Sync immediately applies seg's desired protection without going
// through the deferred queue, used right after whiten/grey/reclaim
// transitions that must be visible before the mutator resumes.
//
// desiredProtect is consulted before deferScans is decremented, not
// after: a write-barrier hit (barrier.go's TraceSegAccess) sets
// deferScans then calls Sync in the same breath, and if the decrement
// ran first, desiredProtect would see it already back at zero and
// reinstate protection immediately -- the deferral would buy nothing.
// Reading it first lets this call see the freshly-armed deferral and
// hand back ProtectNone for one more access before the count drops and
// protection re-arms on the call after.
func (sh *Shield) Sync(seg *Segment) {
	desired := seg.desiredProtect(sh.arena)
	if seg.deferScans > 0 {
		seg.deferScans--
	}
	if desired != seg.effective && seg.shieldDepth == 0 {
		sh.arena.vm.Protect(seg.base, seg.Size(), desired)
		seg.effective = desired
	} else {
		sh.enqueue(seg)
	}
}
