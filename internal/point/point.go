package point

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// ErrMalformedPoint is returned by the normalizers when a record has no usable coordinates
var ErrMalformedPoint = errors.New("malformed point")

// Kind is the OSM geometry kind a point is written back as
type Kind string

const (
	KindNode Kind = "node"
	KindWay  Kind = "way"
)

// Tags is the key-value tag set of a point
type Tags map[string]string

// Clone returns an independent copy of the tag set
func (t Tags) Clone() Tags {
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Reference holds the identity and edit metadata of an existing OSM entity
type Reference struct {
	ID        int64
	Version   int
	Timestamp time.Time
	User      string
	UID       int64
	Changeset int64
}

// Point is the unit of comparison between the reference dataset and a vendor feed.
// Location is (lon, lat); for ways it is the centroid of the way's geometry.
type Point struct {
	Location orb.Point
	Ref      *Reference
	Tags     Tags
	Kind     Kind
	WayNodes []int64
}

// Lat returns the latitude in decimal degrees
func (p Point) Lat() float64 { return p.Location.Lat() }

// Lon returns the longitude in decimal degrees
func (p Point) Lon() float64 { return p.Location.Lon() }

// ID returns the reference identifier, or 0 for vendor-only points
func (p Point) ID() int64 {
	if p.Ref == nil {
		return 0
	}
	return p.Ref.ID
}

// String identifies the point in log output
func (p Point) String() string {
	if p.Ref != nil {
		return fmt.Sprintf("%s/%d", p.Kind, p.Ref.ID)
	}
	return fmt.Sprintf("%s@%.7f,%.7f", p.Kind, p.Lat(), p.Lon())
}

// NewVendor builds a vendor-only node point, validating the coordinates
func NewVendor(lat, lon float64, tags Tags) (Point, error) {
	if err := ValidateCoords(lat, lon); err != nil {
		return Point{}, err
	}
	if tags == nil {
		tags = Tags{}
	}
	return Point{
		Location: orb.Point{lon, lat},
		Tags:     tags,
		Kind:     KindNode,
	}, nil
}

// ValidateCoords checks that lat/lon are finite and within WGS84 bounds
func ValidateCoords(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return fmt.Errorf("%w: non-finite coordinates", ErrMalformedPoint)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrMalformedPoint, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrMalformedPoint, lon)
	}
	return nil
}
