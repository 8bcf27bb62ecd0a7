package changeset

import (
	"errors"
	"fmt"
)

// ErrIdentifierCollision means the same placeholder id was handed out twice.
// It corrupts the document's referential integrity, so it is raised as a panic.
var ErrIdentifierCollision = errors.New("identifier collision")

// IDAllocator hands out placeholder ids for new entities: -1, -2, -3, ...
// Ids reserved by other elements of the same document are skipped.
// Not safe for concurrent use.
type IDAllocator struct {
	next     int64
	reserved map[int64]struct{}
	issued   map[int64]struct{}
}

// NewIDAllocator creates an allocator starting at -1
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{
		next:     -1,
		reserved: make(map[int64]struct{}),
		issued:   make(map[int64]struct{}),
	}
}

// Reserve marks a negative id as already used elsewhere in the document
func (a *IDAllocator) Reserve(id int64) {
	if id < 0 {
		a.reserved[id] = struct{}{}
	}
}

// Next returns the next unused negative id
func (a *IDAllocator) Next() int64 {
	for {
		id := a.next
		a.next--
		if _, ok := a.reserved[id]; ok {
			continue
		}
		a.mustIssue(id)
		return id
	}
}

// Issued returns how many ids have been handed out
func (a *IDAllocator) Issued() int {
	return len(a.issued)
}

func (a *IDAllocator) mustIssue(id int64) {
	if _, dup := a.issued[id]; dup {
		panic(fmt.Errorf("%w: %d", ErrIdentifierCollision, id))
	}
	a.issued[id] = struct{}{}
}
