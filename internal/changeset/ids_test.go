package changeset

import (
	"errors"
	"testing"
)

func TestIDAllocatorSequence(t *testing.T) {
	a := NewIDAllocator()
	for want := int64(-1); want >= -5; want-- {
		if got := a.Next(); got != want {
			t.Errorf("Next() = %d, want %d", got, want)
		}
	}
	if a.Issued() != 5 {
		t.Errorf("Issued() = %d, want 5", a.Issued())
	}
}

func TestIDAllocatorSkipsReserved(t *testing.T) {
	a := NewIDAllocator()
	a.Reserve(-2)
	a.Reserve(-3)
	a.Reserve(12) // positive ids are never allocated

	got := []int64{a.Next(), a.Next(), a.Next()}
	want := []int64{-1, -4, -5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Next() #%d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestIDAllocatorCollisionPanics(t *testing.T) {
	a := NewIDAllocator()
	a.Next()
	a.next = -1

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on reissued id")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrIdentifierCollision) {
			t.Errorf("panic value = %v, want ErrIdentifierCollision", r)
		}
	}()
	a.Next()
}
