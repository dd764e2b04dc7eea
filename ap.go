package mps

// AllocFrame is an opaque lightweight-frame marker. The zero value
// is the distinguished bottom-of-stack marker.
type AllocFrame Addr

const FrameBottom AllocFrame = 0

// Buffer is a per-mutator allocation buffer (AP): an
// (init, alloc, limit) triple pointing into one active segment owned by
// a pool, satisfying segBase ≤ base ≤ init ≤ alloc ≤ limit ≤ segLimit
// while attached.
type Buffer struct {
	arena *Arena
	pool  *Pool
	rank  Rank

	seg   *Segment
	base  Addr
	init  Addr
	alloc Addr
	limit Addr

	// flipSeen records the set of traces that had flipped the last time
	// this buffer's segment colour was checked; Commit uses it to
	// detect a flip that intervened between Reserve and Commit.
	flipSeen TraceSet

	attached bool

	// classData is per-pool-class buffer state, the same tagged-variant
	// rendering segmentPayload gives segments -- SNC uses it to hold the
	// buffer's segment chain head (poolsnc.c's SNCBufStruct.topseg).
	classData any
}

func (b *Buffer) ClassData() any       { return b.classData }
func (b *Buffer) SetClassData(d any)   { b.classData = d }

// APCreate creates an allocation buffer for pool at the given rank,
// apCreate(pool, rank).
func APCreate(pool *Pool, rank Rank) (*Buffer, Res) {
	buf := &Buffer{arena: pool.arena, pool: pool, rank: rank}
	pool.buffers = append(pool.buffers, buf)
	return buf, ResOK
}

// APDestroy detaches and destroys the buffer.
func (b *Buffer) APDestroy() Res {
	if b.attached {
		b.detach()
	}
	bufs := b.pool.buffers
	for i, other := range bufs {
		if other == b {
			b.pool.buffers = append(bufs[:i], bufs[i+1:]...)
			break
		}
	}
	return ResOK
}

func (b *Buffer) isReset() bool { return !b.attached }

func (b *Buffer) attach(seg *Segment, base, limit, initAddr Addr, allocSize uintptr) {
	b.seg = seg
	seg.buffer = b
	b.base = base
	b.limit = limit
	b.init = initAddr
	b.alloc = initAddr + Addr(allocSize)
	b.attached = true
	b.flipSeen = b.arena.flippedTraces
}

func (b *Buffer) detach() {
	if b.seg != nil {
		b.pool.class.BufferEmpty(b.pool, b, b.init, b.limit)
		b.seg.buffer = nil
	}
	b.seg = nil
	b.base, b.init, b.alloc, b.limit = 0, 0, 0, 0
	b.attached = false
}

// Reserve returns a base address for size bytes of new allocation,
// refilling from the pool via BufferFill if the buffer has no room,
//.
func (b *Buffer) Reserve(size uintptr) (Addr, Res) {
	size = alignUp(size, b.pool.alignment)
	if b.attached {
		if uintptr(b.limit-b.alloc) >= size {
			base := b.alloc
			b.alloc = base + Addr(size)
			b.pool.RecordAlloc(size)
			return base, ResOK
		}
		// The current range can't satisfy this reservation: finalize it
		// (BufferEmpty pads the unused tail and clears the segment's
		// buffer association) before asking the pool for a fresh range,
		// so the old segment is eligible for collection again instead of
		// staying falsely marked as buffered forever.
		b.detach()
	}
	base, limit, res := b.pool.class.BufferFill(b.pool, b, size)
	if res != ResOK {
		return 0, res
	}
	b.attach(b.seg, base, limit, base, size)
	b.pool.RecordAlloc(size)
	return base, ResOK
}

// Commit confirms that the object at [base, base+size) is fully
// initialized. It returns false (with ResOK) if a trace flipped between
// the matching Reserve and this Commit, in which case the object must
// be re-initialized and re-reserved.
func (b *Buffer) Commit(base Addr, size uintptr) (bool, Res) {
	if b.flipSeen != b.arena.flippedTraces {
		return false, ResOK
	}
	b.init = base + Addr(alignUp(size, b.pool.alignment))
	return true, ResOK
}

// Detach pads the unused region and returns the buffer to the detached
// state.
func (b *Buffer) Detach() {
	if b.attached {
		b.detach()
	}
}

// FramePush returns an opaque marker at the current init point.
func (b *Buffer) FramePush() (AllocFrame, Res) {
	return b.pool.class.FramePush(b.pool, b)
}

// FramePop discards all objects allocated above marker.
func (b *Buffer) FramePop(frame AllocFrame) Res {
	return b.pool.class.FramePop(b.pool, b, frame)
}

func (b *Buffer) Segment() *Segment { return b.seg }
func (b *Buffer) Init() Addr        { return b.init }
func (b *Buffer) Alloc() Addr       { return b.alloc }
func (b *Buffer) Limit() Addr       { return b.limit }
func (b *Buffer) Rank() Rank        { return b.rank }
