package mps

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestArenaDescribeIncludesEachPool(t *testing.T) {
	a := newTestArena(t)
	format := newTestFormat(8)
	if _, res := NewAMSPool(a, PoolOptions{Format: format, Alignment: 8, Name: "heap"}, false); res != ResOK {
		t.Fatalf("NewAMSPool: %v", res)
	}

	var buf bytes.Buffer
	a.Describe(&buf)
	out := buf.String()
	if !strings.Contains(out, "arena:") {
		t.Fatalf("Describe output missing arena summary line: %q", out)
	}
	if !strings.Contains(out, "AMS") || !strings.Contains(out, `"heap"`) {
		t.Fatalf("Describe output missing pool line: %q", out)
	}
}

func TestPoolDescribeShowsSegmentAddressRange(t *testing.T) {
	_, pool, format := newAMSTestPool(t)
	buf, _ := APCreate(pool, RankEXACT)
	addr, _ := buf.Reserve(8)
	format.put(addr, 8)
	buf.Commit(addr, 8)
	buf.Detach()

	seg := pool.Segments()[0]
	out := pool.class.Describe(pool)
	if !strings.Contains(out, "total=") || !strings.Contains(out, "free=") {
		t.Fatalf("Describe output missing size summary: %q", out)
	}
	wantRange := fmt.Sprintf("[%#x,%#x)", seg.Base(), seg.Limit())
	if !strings.Contains(out, wantRange) {
		t.Fatalf("Describe output %q missing segment range %q", out, wantRange)
	}
}

func TestAWLDescribeIncludesStatsSummary(t *testing.T) {
	format := newTestFormat(8)
	_, pool := newAWLTestPool(t, format)
	out := pool.class.Describe(pool)
	if !strings.Contains(out, "stats{") {
		t.Fatalf("AWL Describe output missing stats block: %q", out)
	}
}

func TestMessageQueueDescribeMessagesDoesNotConsume(t *testing.T) {
	var q MessageQueue
	q.MessageTypeEnable(MessageTypeGCStart)
	q.postGCStart(TraceStartWhyClientFull)

	var buf bytes.Buffer
	q.DescribeMessages(&buf)
	if !strings.Contains(buf.String(), "gcStart") {
		t.Fatalf("DescribeMessages output missing message: %q", buf.String())
	}
	if q.Pending() != 1 {
		t.Fatal("DescribeMessages should not consume queued messages")
	}
}
