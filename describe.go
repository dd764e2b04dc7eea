package mps

import (
	"fmt"
	"io"

	bytesize "github.com/inhies/go-bytesize"
	"github.com/mattn/go-colorable"
)

// describe.go is purely diagnostic: nothing here runs on the
// collection critical path, and nothing here is reachable from a Res
// return value. It exists so a client (or cmd/gcdump) can print a
// human-readable snapshot of the collector's state, reporting
// arena and pool sizes through go-bytesize and printing through a
// Windows-safe colorable writer.

const (
	colorWhite  = "\x1b[37m"
	colorGrey   = "\x1b[90m"
	colorBlack  = "\x1b[30;1m"
	colorReset  = "\x1b[0m"
	colorYellow = "\x1b[33m"
)

// DescribeWriter returns a writer that renders ANSI colour on an
// interactive terminal and degrades to plain text otherwise (via
// go-colorable's Windows/dumb-terminal handling, backed in turn by
// go-isatty).
func DescribeWriter() io.Writer {
	return colorable.NewColorableStdout()
}

func segmentColour(seg *Segment) string {
	switch {
	case !seg.White().IsEmpty():
		return colorWhite
	case !seg.Grey().IsEmpty():
		return colorGrey
	default:
		return colorBlack
	}
}

// Describe writes a one-line-per-segment report of every pool owned by
// the arena to w.
func (a *Arena) Describe(w io.Writer) {
	fmt.Fprintf(w, "arena: grain=%s committed=%s reserved=%s\n",
		bytesize.New(float64(a.grainSize)), bytesize.New(float64(a.committed)), bytesize.New(float64(a.reserved)))
	for _, p := range a.pools {
		fmt.Fprintf(w, "%s\n", p.class.Describe(p))
	}
}

// Describe renders one line per segment of the pool: address range,
// colour (white/grey/black by trace membership), and effective rank.
func (a *AMS) Describe(pool *Pool) string {
	return poolDescribe(pool, "AMS")
}

func (a *AWL) Describe(pool *Pool) string {
	s := poolDescribe(pool, "AWL")
	return s + fmt.Sprintf(" stats{good=%d bad=%d saved=%d declined=%d}",
		a.Stats.GoodScans, a.Stats.BadScans, a.Stats.SavedScans, a.Stats.Declined)
}

func (s *SNC) Describe(pool *Pool) string {
	return poolDescribe(pool, "SNC")
}

func poolDescribe(pool *Pool, class string) string {
	out := fmt.Sprintf("pool %q [%s] total=%s free=%s", pool.name, class,
		bytesize.New(float64(pool.class.TotalSize(pool))), bytesize.New(float64(pool.class.FreeSize(pool))))
	for _, seg := range pool.segs {
		out += fmt.Sprintf("\n  %s[%#x,%#x) rank=%v%s", segmentColour(seg), seg.Base(), seg.Limit(), effectiveRank(seg), colorReset)
	}
	return out
}

// DescribeMessages renders the message queue's pending entries without
// consuming them, for use by the inspector CLI.
func (q *MessageQueue) DescribeMessages(w io.Writer) {
	for _, m := range q.queue {
		fmt.Fprintf(w, "%s%s%s\n", colorYellow, m.String(), colorReset)
	}
}
