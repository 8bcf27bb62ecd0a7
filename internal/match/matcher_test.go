package match

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/wegman-software/chainmerge/internal/point"
)

func refAt(id int64, lat, lon float64) point.Point {
	return point.Point{
		Location: orb.Point{lon, lat},
		Ref:      &point.Reference{ID: id, Version: 1},
		Tags:     point.Tags{},
		Kind:     point.KindNode,
	}
}

func vendorAt(ref string, lat, lon float64) point.Point {
	return point.Point{
		Location: orb.Point{lon, lat},
		Tags:     point.Tags{"ref": ref},
		Kind:     point.KindNode,
	}
}

func TestHaversine(t *testing.T) {
	tests := []struct {
		name string
		a, b orb.Point
		want float64
	}{
		{"same point", orb.Point{-86.78, 36.16}, orb.Point{-86.78, 36.16}, 0},
		{"one degree of longitude at equator", orb.Point{0, 0}, orb.Point{1, 0}, EarthRadius * math.Pi / 180},
		{"one degree of latitude", orb.Point{10, 0}, orb.Point{10, 1}, EarthRadius * math.Pi / 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Haversine() = %f, want %f", got, tt.want)
			}
			if back := Haversine(tt.b, tt.a); math.Abs(back-got) > 1e-9 {
				t.Errorf("Haversine is not symmetric: %f vs %f", got, back)
			}
		})
	}
}

func TestHaversineAntipodal(t *testing.T) {
	tests := []struct {
		name string
		a, b orb.Point
	}{
		{"equator", orb.Point{0, 0}, orb.Point{180, 0}},
		{"off the equator", orb.Point{-86.7816, 36.1627}, orb.Point{93.2184, -36.1627}},
		{"poles", orb.Point{0, 90}, orb.Point{0, -90}},
	}
	want := EarthRadius * math.Pi
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			if math.IsNaN(got) {
				t.Fatal("Haversine returned NaN")
			}
			if math.Abs(got-want) > 1 {
				t.Errorf("Haversine() = %f, want %f", got, want)
			}
		})
	}
}

func TestMatchNearestWithinThreshold(t *testing.T) {
	refs := []point.Point{
		refAt(1, 0, 0),
		refAt(2, 0, 0.01),
	}
	vendors := []point.Point{
		vendorAt("a", 0, 0.0102), // ~22m from ref 2
		vendorAt("b", 0, 0.5),    // far from everything
	}

	res := Match(refs, vendors, 100)

	if len(res.Pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(res.Pairs))
	}
	first := res.Pairs[0]
	if !first.Matched() || first.Reference.ID() != 2 || first.Vendor.Tags["ref"] != "a" {
		t.Errorf("first pair = %+v, want ref 2 matched with vendor a", first)
	}
	if first.DistanceM >= 100 || first.DistanceM <= 0 {
		t.Errorf("DistanceM = %f, want in (0, 100)", first.DistanceM)
	}
	second := res.Pairs[1]
	if second.Reference != nil || second.Vendor.Tags["ref"] != "b" {
		t.Errorf("second pair = %+v, want vendor-only b", second)
	}
	if len(res.UnmatchedReference) != 1 || res.UnmatchedReference[0].ID() != 1 {
		t.Errorf("unmatched reference = %v, want [ref 1]", res.UnmatchedReference)
	}
	if res.Stats.Matched != 1 || res.Stats.VendorOnly != 1 || res.Stats.UnmatchedReference != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestMatchThresholdIsStrict(t *testing.T) {
	refs := []point.Point{refAt(1, 0, 0)}
	vendors := []point.Point{vendorAt("a", 0, 0.001)}
	d := Haversine(refs[0].Location, vendors[0].Location)

	res := Match(refs, vendors, d)
	if res.Stats.Matched != 0 {
		t.Errorf("distance equal to threshold matched; want no match")
	}

	res = Match(refs, vendors, math.Nextafter(d, math.Inf(1)))
	if res.Stats.Matched != 1 {
		t.Errorf("distance just below threshold did not match")
	}
}

func TestMatchGreedyOrderDependence(t *testing.T) {
	refs := []point.Point{
		refAt(1, 0, 0),
		refAt(2, 0, 0.002),
	}
	vendors := []point.Point{
		vendorAt("first", 0, 0.0005),  // ~56m from ref 1
		vendorAt("second", 0, 0.0001), // closer to ref 1, ~211m from ref 2
	}

	res := Match(refs, vendors, 100)

	if res.Stats.Matched != 1 {
		t.Fatalf("matched = %d, want 1", res.Stats.Matched)
	}
	if res.Pairs[0].Vendor.Tags["ref"] != "first" || res.Pairs[0].Reference.ID() != 1 {
		t.Errorf("earlier vendor point should win ref 1, got %+v", res.Pairs[0])
	}
	if res.Pairs[1].Reference != nil || res.Pairs[1].Vendor.Tags["ref"] != "second" {
		t.Errorf("later vendor point should be vendor-only, got %+v", res.Pairs[1])
	}
	if len(res.UnmatchedReference) != 1 || res.UnmatchedReference[0].ID() != 2 {
		t.Errorf("unmatched = %v, want [ref 2]", res.UnmatchedReference)
	}
}

func TestMatchTieKeepsFirstCandidate(t *testing.T) {
	refs := []point.Point{
		refAt(7, 0, -0.0003),
		refAt(8, 0, 0.0003),
	}
	vendors := []point.Point{vendorAt("a", 0, 0)}

	res := Match(refs, vendors, 1000)
	if res.Pairs[0].Reference.ID() != 7 {
		t.Errorf("tie picked ref %d, want 7", res.Pairs[0].Reference.ID())
	}
}

func TestMatchWayCentroid(t *testing.T) {
	way := refAt(300, 0, 0.0001)
	way.Kind = point.KindWay
	way.WayNodes = []int64{1, 2, 3, 1}

	res := Match([]point.Point{way}, []point.Point{vendorAt("a", 0, 0)}, 50)
	if !res.Pairs[0].Matched() || res.Pairs[0].Reference.Kind != point.KindWay {
		t.Errorf("way reference should match by its centroid, got %+v", res.Pairs[0])
	}
}

func TestMatchEmptyInputs(t *testing.T) {
	vendors := []point.Point{vendorAt("a", 0, 0), vendorAt("b", 1, 1)}
	res := Match(nil, vendors, 1000)
	if len(res.Pairs) != 2 || res.Stats.VendorOnly != 2 {
		t.Errorf("empty pool: pairs = %d, vendor-only = %d, want 2, 2", len(res.Pairs), res.Stats.VendorOnly)
	}
	for _, p := range res.Pairs {
		if p.Reference != nil {
			t.Error("empty pool produced a matched pair")
		}
	}

	refs := []point.Point{refAt(1, 0, 0), refAt(2, 1, 1)}
	res = Match(refs, nil, 1000)
	if len(res.Pairs) != 0 {
		t.Errorf("empty vendor list produced %d pairs", len(res.Pairs))
	}
	if len(res.UnmatchedReference) != 2 {
		t.Errorf("unmatched = %d, want 2", len(res.UnmatchedReference))
	}
}

func refID(p Pair) int64 {
	if p.Reference == nil {
		return 0
	}
	return p.Reference.ID()
}

func grid() ([]point.Point, []point.Point) {
	var refs, vendors []point.Point
	for i := 0; i < 12; i++ {
		lat := float64(i%4) * 0.003
		lon := float64(i/4) * 0.003
		refs = append(refs, refAt(int64(i+1), lat, lon))
	}
	for i := 0; i < 15; i++ {
		lat := float64(i%5)*0.0025 + 0.0002
		lon := float64(i/5)*0.0031 - 0.0001
		vendors = append(vendors, vendorAt(string(rune('a'+i)), lat, lon))
	}
	return refs, vendors
}

func TestMatchProperties(t *testing.T) {
	refs, vendors := grid()
	const threshold = 150.0

	res := Match(refs, vendors, threshold)

	// every matched pair is within the threshold
	for _, p := range res.Pairs {
		if p.Matched() {
			if d := Haversine(p.Reference.Location, p.Vendor.Location); !(d < threshold) {
				t.Errorf("pair %s/%s at %fm exceeds threshold", p.Reference, p.Vendor.Tags["ref"], d)
			}
		}
	}

	// pool conservation
	seen := make(map[int64]int)
	matched := 0
	for _, p := range res.Pairs {
		if p.Reference != nil {
			matched++
			seen[p.Reference.ID()]++
		}
	}
	for _, r := range res.UnmatchedReference {
		seen[r.ID()]++
	}
	if matched+len(res.UnmatchedReference) != len(refs) {
		t.Errorf("matched %d + unmatched %d != %d references", matched, len(res.UnmatchedReference), len(refs))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("reference %d appears %d times", id, n)
		}
	}

	// vendor exhaustiveness
	vseen := make(map[string]int)
	for _, p := range res.Pairs {
		if p.Vendor == nil {
			t.Fatal("pair without vendor point")
		}
		vseen[p.Vendor.Tags["ref"]]++
	}
	if len(vseen) != len(vendors) {
		t.Errorf("%d vendor points in pairs, want %d", len(vseen), len(vendors))
	}
	for ref, n := range vseen {
		if n != 1 {
			t.Errorf("vendor %s appears %d times", ref, n)
		}
	}

	// idempotent re-match
	again := Match(refs, vendors, threshold)
	if len(again.Pairs) != len(res.Pairs) {
		t.Fatalf("re-match produced %d pairs, want %d", len(again.Pairs), len(res.Pairs))
	}
	for i := range res.Pairs {
		if refID(res.Pairs[i]) != refID(again.Pairs[i]) {
			t.Errorf("pair %d reference differs between runs", i)
		}
		if res.Pairs[i].Vendor.Tags["ref"] != again.Pairs[i].Vendor.Tags["ref"] {
			t.Errorf("pair %d vendor differs between runs", i)
		}
	}
}

func TestMatchDoesNotModifyInputs(t *testing.T) {
	refs, vendors := grid()
	Match(refs, vendors, 500)
	if len(refs) != 12 || refs[0].ID() != 1 {
		t.Error("reference input was modified")
	}
}

func TestMatchObserver(t *testing.T) {
	refs := []point.Point{refAt(1, 0, 0), refAt(2, 1, 1)}
	vendors := []point.Point{vendorAt("a", 0, 0.0001), vendorAt("b", 1, 1.0001)}

	var observed []int64
	Match(refs, vendors, 100, WithObserver(func(p Pair) {
		observed = append(observed, p.Reference.ID())
	}))

	if len(observed) != 2 || observed[0] != 1 || observed[1] != 2 {
		t.Errorf("observed = %v, want [1 2]", observed)
	}
}
