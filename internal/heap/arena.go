package heap

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/wendelmax/jsvm/internal/config"
)

var log = commonlog.GetLogger(config.LogHeap)

type entry struct {
	cell   Cell // nil when the slot is free
	gen    uint32
	marked bool
}

// Arena is the default Heap: a slice of cells indexed by slot, a free list,
// and a stop-the-world mark-and-sweep collector.
type Arena struct {
	mu sync.RWMutex

	id    uuid.UUID
	cells []entry
	free  []uint32
	live  int

	cfg         config.GC
	sinceGC     int
	allocations uint64
	collections uint64
	freed       uint64

	roots    map[int]RootSource
	nextRoot int
}

// NewArena creates an empty arena.
func NewArena(cfg config.GC) *Arena {
	if cfg.Threshold <= 0 {
		cfg.Threshold = config.DefaultGCThreshold
	}
	return &Arena{
		id:    uuid.New(),
		cells: make([]entry, 0, 256),
		cfg:   cfg,
		roots: make(map[int]RootSource),
	}
}

// ID identifies the arena in logs.
func (a *Arena) ID() uuid.UUID { return a.id }

// Allocate stores c in a free slot, growing the arena if none is available.
func (a *Arena) Allocate(c Cell) (Value, error) {
	if c == nil {
		return Value{}, ErrInvalidHandle
	}
	a.mu.Lock()
	if a.cfg.MaxCells > 0 && a.live >= a.cfg.MaxCells {
		a.mu.Unlock()
		// Reclaim garbage before giving up.
		a.Collect()
		a.mu.Lock()
		if a.live >= a.cfg.MaxCells {
			a.mu.Unlock()
			return Value{}, ErrExhausted
		}
	}
	defer a.mu.Unlock()

	var slot uint32
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
		a.cells[slot].cell = c
	} else {
		slot = uint32(len(a.cells))
		a.cells = append(a.cells, entry{cell: c, gen: 1})
	}
	a.live++
	a.sinceGC++
	a.allocations++
	return Ref(c.Kind(), makeHandle(slot, a.cells[slot].gen)), nil
}

// lookup resolves h; the caller holds the lock.
func (a *Arena) lookup(h Handle) (*entry, error) {
	slot, ok := h.slot()
	if !ok || int(slot) >= len(a.cells) {
		return nil, ErrInvalidHandle
	}
	e := &a.cells[slot]
	if e.cell == nil || e.gen != h.generation() {
		return nil, ErrInvalidHandle
	}
	return e, nil
}

func (a *Arena) Deref(h Handle) (Cell, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, err := a.lookup(h)
	if err != nil {
		return nil, err
	}
	return e.cell, nil
}

func (a *Arena) View(h Handle, fn func(Cell) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, err := a.lookup(h)
	if err != nil {
		return err
	}
	return fn(e.cell)
}

func (a *Arena) Update(h Handle, fn func(Cell) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.lookup(h)
	if err != nil {
		return err
	}
	return fn(e.cell)
}

func (a *Arena) ShouldCollect() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sinceGC >= a.cfg.Threshold
}

func (a *Arena) AddRoots(src RootSource) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextRoot
	a.nextRoot++
	a.roots[id] = src
	return func() {
		a.mu.Lock()
		delete(a.roots, id)
		a.mu.Unlock()
	}
}

// Collect marks everything reachable from the registered roots and frees the rest.
func (a *Arena) Collect() CollectResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	var work []*entry
	marked := 0
	mark := func(v Value) {
		if !v.IsHeap() {
			return
		}
		e, err := a.lookup(v.Handle())
		if err != nil || e.marked {
			return
		}
		e.marked = true
		marked++
		work = append(work, e)
	}
	for _, src := range a.roots {
		src.MarkRoots(mark)
	}
	for len(work) > 0 {
		e := work[len(work)-1]
		work = work[:len(work)-1]
		e.cell.trace(mark)
	}

	freed := 0
	for i := range a.cells {
		e := &a.cells[i]
		if e.cell == nil {
			continue
		}
		if e.marked {
			e.marked = false
			continue
		}
		e.cell = nil
		e.gen++
		a.free = append(a.free, uint32(i))
		freed++
	}
	a.live -= freed
	a.sinceGC = 0
	a.collections++
	a.freed += uint64(freed)

	log.Debugf("heap %s: gc #%d marked %d, freed %d, live %d", a.id, a.collections, marked, freed, a.live)
	return CollectResult{Marked: marked, Freed: freed}
}

func (a *Arena) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Stats{
		ID:          a.id.String(),
		Live:        a.live,
		Capacity:    len(a.cells),
		Allocations: a.allocations,
		Collections: a.collections,
		Freed:       a.freed,
	}
}

var _ Heap = (*Arena)(nil)
