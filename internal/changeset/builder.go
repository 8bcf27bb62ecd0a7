package changeset

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wegman-software/chainmerge/internal/logger"
	"github.com/wegman-software/chainmerge/internal/match"
	"github.com/wegman-software/chainmerge/internal/point"
)

// ErrEmptyPair is returned for a pair with neither a reference nor a vendor point
var ErrEmptyPair = errors.New("match pair has no points")

// ErrNoIdentity is returned when a matched reference point has no id to modify
var ErrNoIdentity = errors.New("reference point has no identity")

// Action is the edit an operation applies
type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
)

// Operation is a single proposed edit
type Operation struct {
	Action Action
	Point  point.Point
}

// Stats counts the outcome of Build
type Stats struct {
	Modified           int
	Created            int
	Dropped            int // reference-only pairs, no operation emitted
	AmbiguousAddresses int
}

// Changeset is the ordered list of operations handed to a writer:
// every modify first, then every create, each in pair order.
type Changeset struct {
	Operations []Operation
	Stats      Stats
}

// Build applies the merge policy to matched and unmatched pairs.
//
// Matched pairs become modify operations keeping the reference identity,
// metadata and geometry with vendor tags layered over the reference tags.
// Vendor-only pairs become create operations with ids taken from ids.
// Reference-only pairs are dropped silently; deleting entities missing from
// a feed is never proposed.
func Build(pairs []match.Pair, ids *IDAllocator) (*Changeset, error) {
	log := logger.Get()

	var modifies, creates []Operation
	var stats Stats

	for _, pair := range pairs {
		switch {
		case pair.Reference != nil && pair.Vendor != nil:
			if pair.Reference.Ref == nil {
				return nil, fmt.Errorf("%w: %s", ErrNoIdentity, *pair.Reference)
			}
			op, ok := modifyOp(*pair.Reference, *pair.Vendor)
			if !ok {
				stats.AmbiguousAddresses++
				log.Warn("Could not split vendor address",
					zap.Stringer("reference", op.Point),
					zap.String("addr:full", pair.Vendor.Tags[KeyFullAddress]))
			}
			modifies = append(modifies, op)

		case pair.Vendor != nil:
			op, ok := createOp(*pair.Vendor, ids.Next())
			if !ok {
				stats.AmbiguousAddresses++
				log.Warn("Could not split vendor address",
					zap.Int64("id", op.Point.ID()),
					zap.String("addr:full", pair.Vendor.Tags[KeyFullAddress]))
			}
			creates = append(creates, op)

		case pair.Reference != nil:
			stats.Dropped++
			log.Debug("Reference entity not in vendor feed, leaving untouched",
				zap.Stringer("reference", *pair.Reference))

		default:
			return nil, ErrEmptyPair
		}
	}

	stats.Modified = len(modifies)
	stats.Created = len(creates)

	ops := make([]Operation, 0, len(modifies)+len(creates))
	ops = append(ops, modifies...)
	ops = append(ops, creates...)

	return &Changeset{Operations: ops, Stats: stats}, nil
}

func modifyOp(ref, vendor point.Point) (Operation, bool) {
	vendorTags, ok := SplitAddress(vendor.Tags)
	tags := MergeTags(ref.Tags, vendorTags)
	if _, had := vendor.Tags[KeyFullAddress]; had {
		delete(tags, KeyFullAddress)
	}
	// A house number without a street must not pair with the old street
	if !ok {
		delete(tags, KeyStreet)
	}

	meta := *ref.Ref
	var nodes []int64
	if ref.WayNodes != nil {
		nodes = append([]int64(nil), ref.WayNodes...)
	}

	return Operation{
		Action: ActionModify,
		Point: point.Point{
			Location: ref.Location,
			Ref:      &meta,
			Tags:     tags,
			Kind:     ref.Kind,
			WayNodes: nodes,
		},
	}, ok
}

func createOp(vendor point.Point, id int64) (Operation, bool) {
	tags, ok := SplitAddress(vendor.Tags)
	return Operation{
		Action: ActionCreate,
		Point: point.Point{
			Location: vendor.Location,
			Ref:      &point.Reference{ID: id},
			Tags:     tags,
			Kind:     point.KindNode,
		},
	}, ok
}

// Count returns the number of operations with the given action
func (c *Changeset) Count(action Action) int {
	n := 0
	for _, op := range c.Operations {
		if op.Action == action {
			n++
		}
	}
	return n
}
