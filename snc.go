package mps

// snc.go implements SNC (Stack-No-Checking), a pool class for cheap
// stack-discipline allocation with lightweight frames, grounded on
// poolsnc.c. Objects live until their allocation frame is popped, not
// until a trace condemns them: SNC never whitens, greys, fixes, or
// reclaims anything (the UnimplementedPoolClass defaults are correct
// for all of those), it only allocates, scans, and frees whole
// segments on frame pop.

// sncSegData chains a segment either onto a buffer's active stack or
// onto the pool's free list, through the same field -- a segment is
// never on both at once. Grounded on poolsnc.c's SNCSegStruct.next.
type sncSegData struct {
	next *Segment
}

func (*sncSegData) segmentPayloadMarker() {}

func sncSegOf(seg *Segment) *sncSegData {
	d, ok := seg.payload.(*sncSegData)
	check(ok, "snc: segment payload is not sncSegData")
	return d
}

// SNC is the PoolClass implementation for stack-no-checking pools.
type SNC struct {
	UnimplementedPoolClass

	freeSegs *Segment
}

// NewSNCPool creates a pool of class SNC, the mps_class_snc() analogue.
func NewSNCPool(arena *Arena, opts PoolOptions) (*Pool, Res) {
	return PoolCreate(arena, &SNC{}, opts)
}

func (*SNC) Name() string { return "SNC" }

// defaultSNCSegSize is the segment size SNC requests from the arena
// when its free list has nothing big enough for a fill, the same
// extend-by role ams.go's defaultAMSSegSize plays for AMS/AWL: without
// it, every BufferFill would size a segment to the exact reservation
// requested, and a client doing many small allocations would never see
// multi-segment spanning or a freed segment get reused at a larger
// scale than the single allocation that freed it.
const defaultSNCSegSize = 64 * 1024

// sncTopSeg and sncSetTopSeg access a buffer's segment-chain head,
// stored in the buffer's class data -- the Go rendering of
// SNCBufStruct.topseg, poolsnc.c's buffer subclass.
func sncTopSeg(buf *Buffer) *Segment {
	seg, _ := buf.ClassData().(*Segment)
	return seg
}

func sncSetTopSeg(buf *Buffer, seg *Segment) {
	buf.SetClassData(seg)
}

// recordAllocatedSeg pushes seg onto buf's chain, poolsnc.c's
// sncRecordAllocatedSeg.
func sncRecordAllocatedSeg(buf *Buffer, seg *Segment) {
	d := sncSegOf(seg)
	check(d.next == nil, "snc: newly allocated segment already chained")
	d.next = sncTopSeg(buf)
	sncSetTopSeg(buf, seg)
}

// recordFreeSeg pads seg's entire extent and pushes it onto the pool's
// free list, poolsnc.c's sncRecordFreeSeg. A padded, degreyed,
// rank-empty segment is never scanned again until it is reused by a
// later BufferFill; SNC.Walk still visits its padding objects.
func (s *SNC) recordFreeSeg(pool *Pool, seg *Segment) {
	d := sncSegOf(seg)
	check(d.next == nil, "snc: freed segment still chained")

	seg.SetGrey(TraceSetEMPTY)
	seg.SetRankSet(RankSetEMPTY)
	seg.SetSummary(RefSetEMPTY)

	pool.arena.shield.WithExposed(seg, func() {
		pool.format.Pad(seg.base, seg.Size())
	})

	d.next = s.freeSegs
	s.freeSegs = seg
}

// popPartialSegChain frees every segment on buf's chain above upTo (nil
// means the whole chain), poolsnc.c's sncPopPartialSegChain.
func (s *SNC) popPartialSegChain(pool *Pool, buf *Buffer, upTo *Segment) {
	free := sncTopSeg(buf)
	for free != upTo {
		check(free != nil, "snc: popped past the bottom of the segment chain")
		d := sncSegOf(free)
		next := d.next
		d.next = nil
		s.recordFreeSeg(pool, free)
		free = next
	}
	sncSetTopSeg(buf, upTo)
}

// findFreeSeg detaches and returns a free-listed segment of at least
// size bytes, poolsnc.c's sncFindFreeSeg.
func (s *SNC) findFreeSeg(size uintptr) (*Segment, bool) {
	var last *Segment
	free := s.freeSegs
	for free != nil {
		d := sncSegOf(free)
		if free.Size() >= size {
			if last == nil {
				s.freeSegs = d.next
			} else {
				sncSegOf(last).next = d.next
			}
			d.next = nil
			return free, true
		}
		last = free
		free = d.next
	}
	return nil, false
}

func (s *SNC) BufferFill(pool *Pool, buf *Buffer, size uintptr) (Addr, Addr, Res) {
	seg, ok := s.findFreeSeg(size)
	if !ok {
		segSize := uintptr(defaultSNCSegSize)
		if size > segSize {
			segSize = alignUp(size, pool.arena.grainSize)
		}
		var res Res
		seg, res = pool.NewSegment(segSize)
		if res != ResOK {
			return 0, 0, res
		}
		seg.payload = &sncSegData{}
	}

	// Every filled segment takes the buffer's rank and a universal
	// summary, whatever that rank is (poolsnc.c doesn't track per-write
	// summaries for stack-discipline pools).
	seg.SetRankSet(buf.rank.rankSetOf())
	seg.SetSummary(RefSetUNIV)

	sncRecordAllocatedSeg(buf, seg)
	buf.seg = seg
	return seg.Base(), seg.Limit(), ResOK
}

func (s *SNC) BufferEmpty(pool *Pool, buf *Buffer, init, limit Addr) {
	if limit <= init {
		return
	}
	seg := buf.seg
	pool.arena.shield.WithExposed(seg, func() {
		pool.format.Pad(init, uintptr(limit-init))
	})
}

// Scan scans only the buffer's initialized range when the segment is
// still attached to a buffer (poolsnc.c's SegBufferScanLimit), since
// everything past that point is uninitialized; a detached segment is
// scanned in full.
func (s *SNC) Scan(pool *Pool, ss *ScanState, seg *Segment) (bool, Res) {
	base := seg.base
	limit := seg.limit
	if seg.HasBuffer() {
		limit = seg.Buffer().Init()
	}
	if base < limit {
		if res := pool.format.Scan(ss, base, limit); res != ResOK {
			return false, res
		}
	}
	return true, ResOK
}

func (s *SNC) Walk(pool *Pool, seg *Segment, format Format, fn FormattedObjectsVisitor, closure any) {
	// Avoid walking a grey segment: it may still hold pointers into
	// old-space mid-collection, poolsnc.c's sncSegWalk.
	if !seg.grey.IsEmpty() {
		return
	}
	addr := seg.base
	limit := seg.limit
	if seg.HasBuffer() {
		limit = seg.Buffer().Init()
	}
	for addr < limit {
		next := format.Skip(addr)
		fn(addr+Addr(format.HeaderSize()), format, pool, closure)
		addr = next
	}
}

// FramePush returns a marker at the buffer's current init point,
// poolsnc.c's SNCFramePush. If init sits exactly at the segment limit
// (so that address can't double as a frame marker -- poolsnc.c's fix
// for job003882), the buffer is refilled first through BufferFill (a
// free-listed segment, or a new one of at least defaultSNCSegSize
// bytes) and the frame is anchored at its base instead.
func (s *SNC) FramePush(pool *Pool, buf *Buffer) (AllocFrame, Res) {
	if buf.isReset() {
		check(sncTopSeg(buf) == nil, "snc: reset buffer has a non-empty chain")
		return FrameBottom, ResOK
	}
	if buf.Init() < buf.Segment().Limit() {
		return AllocFrame(buf.Init()), ResOK
	}
	buf.Detach()
	base, limit, res := s.BufferFill(pool, buf, pool.alignment)
	if res != ResOK {
		return FrameBottom, res
	}
	buf.attach(buf.seg, base, limit, base, 0)
	check(buf.Init() < buf.Segment().Limit(), "snc: refill left no room for a frame marker")
	return AllocFrame(buf.Init()), ResOK
}

// FramePop discards everything allocated above frame, poolsnc.c's
// SNCFramePop: a pop to the bottom of the stack frees the whole chain,
// a pop within the current segment just rewinds the alloc pointer, and
// a pop that crosses a segment boundary frees every segment above the
// target one and reattaches the buffer to it.
func (s *SNC) FramePop(pool *Pool, buf *Buffer, frame AllocFrame) Res {
	if frame == FrameBottom {
		buf.Detach()
		s.popPartialSegChain(pool, buf, nil)
		return ResOK
	}

	addr := Addr(frame)
	seg, ok := pool.arena.find(addr)
	check(ok, "snc: frame marker does not name a known segment")
	check(seg.pool == pool, "snc: frame marker names a segment from another pool")

	if buf.Segment() == seg {
		check(addr <= buf.Limit(), "snc: frame marker points past the buffer's scan limit")
		buf.alloc = addr
		buf.init = addr
		return ResOK
	}

	buf.Detach()
	s.popPartialSegChain(pool, buf, seg)
	buf.attach(seg, seg.Base(), seg.Limit(), addr, 0)
	return ResOK
}

func (s *SNC) TotalSize(pool *Pool) uintptr {
	total := uintptr(0)
	for _, seg := range pool.segs {
		total += seg.Size()
	}
	return total
}

func (s *SNC) FreeSize(pool *Pool) uintptr {
	total := uintptr(0)
	for seg := s.freeSegs; seg != nil; seg = sncSegOf(seg).next {
		total += seg.Size()
	}
	return total
}
