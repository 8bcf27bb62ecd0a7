package match

import (
	"math"

	"github.com/wegman-software/chainmerge/internal/point"
)

// Pair is the unit of merge decision. Reference or Vendor may be nil, never both.
type Pair struct {
	Reference *point.Point
	Vendor    *point.Point
	DistanceM float64 // only meaningful when both sides are present
}

// Matched reports whether both sides are present
func (p Pair) Matched() bool {
	return p.Reference != nil && p.Vendor != nil
}

// Stats holds the counts of a single Match call
type Stats struct {
	Reference          int
	Vendor             int
	Matched            int
	VendorOnly         int
	UnmatchedReference int
	MaxDistanceM       float64
}

// Result is the outcome of matching a vendor feed against a reference pool
type Result struct {
	Pairs              []Pair
	UnmatchedReference []point.Point
	Stats              Stats
}

// Option configures a Match call
type Option func(*options)

type options struct {
	onMatch func(Pair)
}

// WithObserver registers a callback invoked for every matched pair as it is decided
func WithObserver(fn func(Pair)) Option {
	return func(o *options) {
		o.onMatch = fn
	}
}

// pool holds the reference points still available for matching.
// Members are consumed in place so iteration order never changes.
type pool struct {
	points   []point.Point
	consumed []bool
	live     int
}

func newPool(points []point.Point) *pool {
	return &pool{
		points:   points,
		consumed: make([]bool, len(points)),
		live:     len(points),
	}
}

// nearest returns the index of the closest live member and its distance,
// or -1 when the pool is empty. Ties keep the earliest member.
func (p *pool) nearest(target point.Point) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	if p.live == 0 {
		return best, bestDist
	}
	for i := range p.points {
		if p.consumed[i] {
			continue
		}
		d := Haversine(target.Location, p.points[i].Location)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}

func (p *pool) take(i int) *point.Point {
	p.consumed[i] = true
	p.live--
	return &p.points[i]
}

func (p *pool) remaining() []point.Point {
	out := make([]point.Point, 0, p.live)
	for i := range p.points {
		if !p.consumed[i] {
			out = append(out, p.points[i])
		}
	}
	return out
}

// Match pairs each vendor point with the nearest unconsumed reference point
// closer than thresholdM meters.
//
// Vendor points are visited once, in input order, and a chosen reference
// point is never offered again; earlier vendor points win under contention.
// Vendor points without a candidate at the time they are visited become
// vendor-only pairs. The returned pairs list matched pairs first, then
// vendor-only pairs, each in vendor input order. Inputs are not modified.
func Match(reference, vendor []point.Point, thresholdM float64, opts ...Option) Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	refs := make([]point.Point, len(reference))
	copy(refs, reference)
	pl := newPool(refs)

	res := Result{
		Pairs: make([]Pair, 0, len(vendor)),
		Stats: Stats{
			Reference: len(reference),
			Vendor:    len(vendor),
		},
	}

	waiting := make([]int, 0)
	for vi := range vendor {
		v := &vendor[vi]
		idx, dist := pl.nearest(*v)
		if idx < 0 || !(dist < thresholdM) {
			waiting = append(waiting, vi)
			continue
		}

		pair := Pair{Reference: pl.take(idx), Vendor: v, DistanceM: dist}
		res.Pairs = append(res.Pairs, pair)
		res.Stats.Matched++
		if dist > res.Stats.MaxDistanceM {
			res.Stats.MaxDistanceM = dist
		}
		if o.onMatch != nil {
			o.onMatch(pair)
		}
	}

	for _, vi := range waiting {
		res.Pairs = append(res.Pairs, Pair{Vendor: &vendor[vi]})
	}
	res.Stats.VendorOnly = len(waiting)

	res.UnmatchedReference = pl.remaining()
	res.Stats.UnmatchedReference = len(res.UnmatchedReference)

	return res
}
