package transcript

import (
	"reflect"
	"testing"

	"neurovoice/internal/analysis"
)

func seg(start, end string) analysis.Segment {
	return analysis.Segment{StartTime: start, EndTime: end}
}

func activeIndices(rows []Row) []int {
	var out []int
	for i, r := range rows {
		if r.Active {
			out = append(out, i)
		}
	}
	return out
}

func TestIsActive_bounds_inclusive(t *testing.T) {
	s := seg("01:00", "01:30")
	for _, at := range []float64{60, 75, 90} {
		if !IsActive(s, at) {
			t.Errorf("expected active at %v", at)
		}
	}
	for _, at := range []float64{59.999, 90.001} {
		if IsActive(s, at) {
			t.Errorf("expected inactive at %v", at)
		}
	}
}

func TestIsActive_inverted_segment(t *testing.T) {
	s := seg("00:20", "00:10")
	for _, at := range []float64{5, 10, 15, 20, 25} {
		if IsActive(s, at) {
			t.Errorf("segment ending before it starts should never be active (t=%v)", at)
		}
	}
}

func TestRows_overlap_is_permissive(t *testing.T) {
	segs := []analysis.Segment{seg("00:10", "00:20"), seg("00:15", "00:25")}

	rows := Rows(17, segs)
	if !rows[0].Active || !rows[1].Active {
		t.Errorf("both overlapping segments should be active at 17s: %+v", rows)
	}
	rows = Rows(22, segs)
	if rows[0].Active || !rows[1].Active {
		t.Errorf("only B should be active at 22s: %+v", rows)
	}
}

func TestRows_parses_bounds_and_badges(t *testing.T) {
	segs := []analysis.Segment{
		{StartTime: "00:05", EndTime: "00:12", Fluency: analysis.FluencyBlocked},
		{StartTime: "00:13", EndTime: "00:20", Fluency: analysis.FluencySlow},
		{StartTime: "", EndTime: "bad"},
	}
	rows := Rows(0, segs)
	if rows[0].Start != 5 || rows[0].End != 12 || rows[0].Badge != BadgeWarning {
		t.Errorf("row 0: %+v", rows[0])
	}
	if rows[1].Badge != BadgeInfo {
		t.Errorf("row 1 badge = %q, want info", rows[1].Badge)
	}
	// Missing timestamps degrade to 0 and the segment is active at 0.
	if rows[2].Badge != BadgeNone || !rows[2].Active {
		t.Errorf("row 2: %+v", rows[2])
	}
}

func TestBadgeFor(t *testing.T) {
	if BadgeFor(analysis.FluencyBlocked) != BadgeWarning {
		t.Error("blocked should be a warning")
	}
	if BadgeFor(analysis.FluencySlow) != BadgeInfo {
		t.Error("slow should be informational")
	}
	if BadgeFor(analysis.FluencyNone) != BadgeNone || BadgeFor("unknown") != BadgeNone {
		t.Error("anything else renders no badge")
	}
}

func TestIndex_matches_Rows(t *testing.T) {
	segs := []analysis.Segment{
		seg("00:00", "00:04"),
		seg("00:05", "00:40"), // long turn overlapping the next ones
		seg("00:10", "00:20"),
		seg("00:15", "00:25"),
		seg("00:30", "00:20"), // inverted
		seg("00:26", "00:29"),
		seg("00:03", "00:06"), // out of order
	}
	ix := NewIndex(segs)
	if ix.Len() != len(segs) {
		t.Fatalf("Len = %d", ix.Len())
	}

	for tt := 0.0; tt <= 45; tt += 0.5 {
		want := activeIndices(Rows(tt, segs))
		got := ix.Active(tt)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("t=%v: index %v, rows %v", tt, got, want)
		}
	}
}

func TestIndex_overlap(t *testing.T) {
	ix := NewIndex([]analysis.Segment{seg("00:10", "00:20"), seg("00:15", "00:25")})
	if got := ix.Active(17); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Active(17) = %v, want [0 1]", got)
	}
	if got := ix.Active(9); len(got) != 0 {
		t.Errorf("Active(9) = %v, want none", got)
	}
}

func TestIndex_empty(t *testing.T) {
	ix := NewIndex(nil)
	if got := ix.Active(3); len(got) != 0 {
		t.Errorf("empty index should report nothing, got %v", got)
	}
}
