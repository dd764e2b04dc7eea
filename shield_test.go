package mps

import "testing"

func TestShieldExposeCoverNesting(t *testing.T) {
	a := newTestArena(t)
	format := newTestFormat(8)
	pool, res := NewAMSPool(a, PoolOptions{Format: format, Alignment: 8, Name: "p"}, false)
	if res != ResOK {
		t.Fatalf("NewAMSPool: %v", res)
	}
	seg, res := pool.NewSegment(4096)
	if res != ResOK {
		t.Fatalf("NewSegment: %v", res)
	}
	seg.SetRankSet(RankSetSingle(RankEXACT))
	seg.SetSummary(RefSet(1))

	a.shield.Expose(seg)
	a.shield.Expose(seg)
	if seg.effective != ProtectNone {
		t.Fatal("while exposed, effective protection must be none")
	}
	a.shield.Cover(seg)
	if seg.shieldDepth != 1 {
		t.Fatalf("shieldDepth = %d, want 1 after one Cover of a doubly-exposed segment", seg.shieldDepth)
	}
	a.shield.Cover(seg)
	if seg.shieldDepth != 0 {
		t.Fatal("shieldDepth should reach zero after matching Covers")
	}
}

func TestShieldCoverWithoutExposePanics(t *testing.T) {
	a := newTestArena(t)
	seg := &Segment{}
	defer func() {
		if recover() == nil {
			t.Fatal("Cover without a matching Expose should panic")
		}
	}()
	a.shield.Cover(seg)
}

func TestShieldWithExposedRunsAndCovers(t *testing.T) {
	a := newTestArena(t)
	format := newTestFormat(8)
	pool, _ := NewAMSPool(a, PoolOptions{Format: format, Alignment: 8, Name: "p"}, false)
	seg, _ := pool.NewSegment(4096)

	ran := false
	a.shield.WithExposed(seg, func() {
		ran = true
		if seg.shieldDepth != 1 {
			t.Fatalf("shieldDepth during WithExposed = %d, want 1", seg.shieldDepth)
		}
	})
	if !ran {
		t.Fatal("WithExposed should run its closure")
	}
	if seg.shieldDepth != 0 {
		t.Fatal("WithExposed should cover on every exit path")
	}
}

func TestShieldFlushAppliesDesiredProtection(t *testing.T) {
	a := newTestArena(t)
	format := newTestFormat(8)
	pool, _ := NewAMSPool(a, PoolOptions{Format: format, Alignment: 8, Name: "p"}, false)
	seg, _ := pool.NewSegment(4096)
	seg.SetRankSet(RankSetSingle(RankEXACT))
	seg.SetSummary(RefSet(1))

	a.shield.Expose(seg)
	a.shield.Cover(seg)
	a.shield.Flush()

	want := seg.desiredProtect(a)
	if seg.effective != want {
		t.Fatalf("after Flush, effective = %v, want %v", seg.effective, want)
	}
}
