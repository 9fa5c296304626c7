package transcript

import (
	"sort"

	"neurovoice/internal/analysis"
	"neurovoice/internal/timefmt"
)

// Badge is the indicator rendered next to a segment for its fluency.
type Badge string

const (
	BadgeNone    Badge = ""
	BadgeWarning Badge = "warning"
	BadgeInfo    Badge = "info"
)

// BadgeFor maps an upstream fluency classification to its indicator.
func BadgeFor(f analysis.Fluency) Badge {
	switch f {
	case analysis.FluencyBlocked:
		return BadgeWarning
	case analysis.FluencySlow:
		return BadgeInfo
	default:
		return BadgeNone
	}
}

// Row is a segment as rendered at a given playback position.
type Row struct {
	Segment analysis.Segment
	Start   float64
	End     float64
	Active  bool
	Badge   Badge
}

// IsActive reports whether t lies within [start, end] of seg. A segment whose
// end precedes its start is never active.
func IsActive(seg analysis.Segment, t float64) bool {
	return between(timefmt.ParseDisplayTime(seg.StartTime), timefmt.ParseDisplayTime(seg.EndTime), t)
}

func between(start, end, t float64) bool {
	return start <= t && t <= end
}

// Rows computes the rendered state of every segment at playback position t.
// Overlapping segments may be active at the same time.
func Rows(t float64, segments []analysis.Segment) []Row {
	rows := make([]Row, len(segments))
	for i, seg := range segments {
		start := timefmt.ParseDisplayTime(seg.StartTime)
		end := timefmt.ParseDisplayTime(seg.EndTime)
		rows[i] = Row{
			Segment: seg,
			Start:   start,
			End:     end,
			Active:  between(start, end, t),
			Badge:   BadgeFor(seg.Fluency),
		}
	}
	return rows
}

// Index answers "which segments are active at t" in O(log n + k) for
// transcripts that are queried on every playback tick. It gives the same
// answer as Rows for any input, including unsorted or overlapping segments.
type Index struct {
	order  []int     // segment indices sorted by start
	starts []float64 // starts[i] is the start of segments[order[i]]
	ends   []float64
	maxEnd []float64 // maxEnd[i] = max(ends[0..i])
}

// NewIndex parses the timestamps of segments once and builds the index.
func NewIndex(segments []analysis.Segment) *Index {
	n := len(segments)
	ix := &Index{
		order:  make([]int, n),
		starts: make([]float64, n),
		ends:   make([]float64, n),
		maxEnd: make([]float64, n),
	}

	starts := make([]float64, n)
	ends := make([]float64, n)
	for i, seg := range segments {
		ix.order[i] = i
		starts[i] = timefmt.ParseDisplayTime(seg.StartTime)
		ends[i] = timefmt.ParseDisplayTime(seg.EndTime)
	}
	sort.SliceStable(ix.order, func(a, b int) bool {
		return starts[ix.order[a]] < starts[ix.order[b]]
	})

	for i, idx := range ix.order {
		ix.starts[i] = starts[idx]
		ix.ends[i] = ends[idx]
		ix.maxEnd[i] = ends[idx]
		if i > 0 && ix.maxEnd[i-1] > ix.maxEnd[i] {
			ix.maxEnd[i] = ix.maxEnd[i-1]
		}
	}
	return ix
}

// Len returns the number of indexed segments.
func (ix *Index) Len() int { return len(ix.order) }

// Active returns the indices (into the original slice) of the segments
// active at t, in ascending order.
func (ix *Index) Active(t float64) []int {
	// hi is the number of segments starting at or before t.
	hi := sort.Search(len(ix.starts), func(i int) bool { return ix.starts[i] > t })

	var out []int
	for i := hi - 1; i >= 0; i-- {
		if ix.maxEnd[i] < t {
			// Nothing at or before i reaches t.
			break
		}
		if ix.ends[i] >= t {
			out = append(out, ix.order[i])
		}
	}
	sort.Ints(out)
	return out
}
