package heap

import "errors"

var (
	// ErrInvalidHandle is returned for the zero handle, out-of-range slots,
	// freed cells and stale generations.
	ErrInvalidHandle = errors.New("invalid heap handle")

	// ErrExhausted is returned by Allocate when the live cell cap is reached
	// and a collection could not make room.
	ErrExhausted = errors.New("heap exhausted")
)

// RootSource reports the values that keep cells alive. The collector calls
// MarkRoots while holding the heap lock, so implementations must not call
// back into the heap.
type RootSource interface {
	MarkRoots(mark func(Value))
}

// RootFunc adapts a function to RootSource.
type RootFunc func(mark func(Value))

func (f RootFunc) MarkRoots(mark func(Value)) { f(mark) }

// Stats is a snapshot of heap counters.
type Stats struct {
	ID          string
	Live        int
	Capacity    int
	Allocations uint64
	Collections uint64
	Freed       uint64
}

// CollectResult summarizes one collection cycle.
type CollectResult struct {
	Marked int
	Freed  int
}

// Heap is the boundary between execution and memory management. Cells are
// addressed by Handle; reads go through View and writes through Update so an
// implementation can synchronize access.
type Heap interface {
	// Allocate stores c and returns a reference value of the cell's kind.
	Allocate(c Cell) (Value, error)

	// Deref returns the cell behind h. The caller must not retain the cell
	// across a collection or mutate it outside Update.
	Deref(h Handle) (Cell, error)

	// View runs fn with shared access to the cell behind h.
	View(h Handle, fn func(Cell) error) error

	// Update runs fn with exclusive access to the cell behind h.
	Update(h Handle, fn func(Cell) error) error

	// Collect runs a full mark-and-sweep cycle over all registered roots.
	Collect() CollectResult

	// ShouldCollect reports whether enough allocation happened to make a
	// collection worthwhile.
	ShouldCollect() bool

	// AddRoots registers a root source and returns a function removing it.
	AddRoots(src RootSource) (remove func())

	Stats() Stats
}
