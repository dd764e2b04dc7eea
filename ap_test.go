package mps

import "testing"

func newAMSTestPool(t *testing.T) (*Arena, *Pool, *testFormat) {
	a := newTestArena(t)
	format := newTestFormat(8)
	pool, res := NewAMSPool(a, PoolOptions{Format: format, Alignment: 8, Name: "p"}, false)
	if res != ResOK {
		t.Fatalf("NewAMSPool: %v", res)
	}
	return a, pool, format
}

func TestBufferReserveCommit(t *testing.T) {
	_, pool, format := newAMSTestPool(t)
	buf, res := APCreate(pool, RankEXACT)
	if res != ResOK {
		t.Fatalf("APCreate: %v", res)
	}
	addr, res := buf.Reserve(8)
	if res != ResOK {
		t.Fatalf("Reserve: %v", res)
	}
	format.put(addr, 8)
	ok, res := buf.Commit(addr, 8)
	if res != ResOK || !ok {
		t.Fatalf("Commit = (%v,%v), want (true, ResOK)", ok, res)
	}
	if buf.Init() != addr+8 {
		t.Fatalf("Init() = %v, want %v", buf.Init(), addr+8)
	}
}

func TestBufferReserveRefillsAcrossSegments(t *testing.T) {
	_, pool, format := newAMSTestPool(t)
	buf, _ := APCreate(pool, RankEXACT)

	// defaultAMSSegSize is 64KiB; request more than that in one go so
	// BufferFill must allocate a fresh segment rather than reuse.
	big := uintptr(128 << 10)
	addr, res := buf.Reserve(big)
	if res != ResOK {
		t.Fatalf("Reserve: %v", res)
	}
	format.put(addr, big)
	if ok, res := buf.Commit(addr, big); !ok || res != ResOK {
		t.Fatalf("Commit: (%v,%v)", ok, res)
	}
	if len(pool.Segments()) == 0 {
		t.Fatal("a segment should have been allocated to satisfy the large reservation")
	}
}

func TestBufferCommitDetectsInterveningFlip(t *testing.T) {
	a, pool, format := newAMSTestPool(t)
	buf, _ := APCreate(pool, RankEXACT)
	addr, res := buf.Reserve(8)
	if res != ResOK {
		t.Fatalf("Reserve: %v", res)
	}
	format.put(addr, 8)

	// Simulate a trace flip happening between Reserve and Commit.
	a.flippedTraces = a.flippedTraces.Add(0)

	ok, res := buf.Commit(addr, 8)
	if res != ResOK {
		t.Fatalf("Commit: %v", res)
	}
	if ok {
		t.Fatal("Commit across an intervening flip must report false")
	}
}

func TestBufferDetachPadsUnusedRegion(t *testing.T) {
	_, pool, format := newAMSTestPool(t)
	buf, _ := APCreate(pool, RankEXACT)
	addr, _ := buf.Reserve(8)
	format.put(addr, 8)
	buf.Commit(addr, 8)

	// Reserve more room than we commit, then detach: the gap between
	// init and limit should be handed to Format.Pad.
	addr2, res := buf.Reserve(8)
	if res != ResOK {
		t.Fatalf("Reserve: %v", res)
	}
	format.put(addr2, 8)
	buf.Detach()
	if buf.Segment() != nil {
		t.Fatal("Detach should leave the buffer unattached")
	}
	if format.has(addr2) {
		t.Fatal("Detach should hand the uncommitted tail to Format.Pad")
	}
}

func TestAPDestroyDetachesAndRemoves(t *testing.T) {
	_, pool, _ := newAMSTestPool(t)
	buf, _ := APCreate(pool, RankEXACT)
	if res := buf.APDestroy(); res != ResOK {
		t.Fatalf("APDestroy: %v", res)
	}
	if len(pool.buffers) != 0 {
		t.Fatal("APDestroy should remove the buffer from its pool")
	}
}
