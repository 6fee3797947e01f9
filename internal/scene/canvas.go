package scene

import (
	"math"
	"sync"
)

// Canvas is the diagramming surface the engine renders onto
type Canvas interface {
	// Cells returns a copy of the current cells in insertion order
	Cells() []Cell
	// Batch applies fn atomically. If fn returns an error nothing changes.
	Batch(fn func(b Batch) error) error
	// Reset replaces every cell
	Reset(cells []Cell)
	// CenterContent centres the viewport on the node cells
	CenterContent() Viewport
}

// Batch is the mutation surface handed to Canvas.Batch
type Batch interface {
	Get(id string) (Cell, bool)
	Add(cell Cell) error
	SetProp(id, key string, value any) error
	DeleteProp(id, key string) error
	Remove(id string) error
}

// Viewport is the visible window centre of the canvas
type Viewport struct {
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
	Zoom    float64 `json:"zoom"`
}

// ChangeType labels a committed canvas change
type ChangeType string

const (
	ChangeReset    ChangeType = "reset"
	ChangePatch    ChangeType = "patch"
	ChangeViewport ChangeType = "viewport"
)

// Change describes one committed mutation of a canvas
type Change struct {
	Type     ChangeType `json:"type"`
	Cells    []Cell     `json:"cells,omitempty"`
	Removed  []string   `json:"removed,omitempty"`
	Viewport *Viewport  `json:"viewport,omitempty"`
}

// Observer is notified after every committed change
type Observer func(Change)

// MemoryCanvas is an in-process Canvas. Mutations are serialised; batches
// work on a copy which is swapped in only when the batch succeeds.
type MemoryCanvas struct {
	mu        sync.RWMutex
	cells     map[string]Cell
	order     []string
	viewport  Viewport
	observers []Observer
}

// NewMemoryCanvas creates an empty canvas
func NewMemoryCanvas() *MemoryCanvas {
	return &MemoryCanvas{
		cells:    make(map[string]Cell),
		viewport: Viewport{Zoom: 1},
	}
}

// Observe registers an observer. Observers run after the lock is released.
func (m *MemoryCanvas) Observe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Cells returns a copy of the current cells in insertion order
func (m *MemoryCanvas) Cells() []Cell {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Cell, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.cells[id].Clone())
	}
	return out
}

// Cell returns a single cell
func (m *MemoryCanvas) Cell(id string) (Cell, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cells[id]
	if !ok {
		return Cell{}, false
	}
	return c.Clone(), true
}

// Viewport returns the current viewport
func (m *MemoryCanvas) Viewport() Viewport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewport
}

// Reset replaces every cell
func (m *MemoryCanvas) Reset(cells []Cell) {
	m.mu.Lock()
	m.cells = make(map[string]Cell, len(cells))
	m.order = make([]string, 0, len(cells))
	for _, c := range cells {
		if _, dup := m.cells[c.ID]; !dup {
			m.order = append(m.order, c.ID)
		}
		m.cells[c.ID] = c.Clone()
	}
	snapshot := m.snapshotLocked(m.order)
	observers := m.observers
	m.mu.Unlock()

	notify(observers, Change{Type: ChangeReset, Cells: snapshot})
}

// Batch applies fn atomically
func (m *MemoryCanvas) Batch(fn func(b Batch) error) error {
	m.mu.Lock()
	b := &memBatch{
		cells:   make(map[string]Cell, len(m.cells)),
		order:   append([]string(nil), m.order...),
		touched: make(map[string]bool),
	}
	for id, c := range m.cells {
		b.cells[id] = c
	}

	if err := fn(b); err != nil {
		m.mu.Unlock()
		return err
	}

	m.cells = b.cells
	m.order = b.compactOrder()

	var changed []string
	for _, id := range m.order {
		if b.touched[id] {
			changed = append(changed, id)
		}
	}
	var removed []string
	for _, id := range b.removed {
		if _, back := m.cells[id]; !back {
			removed = append(removed, id)
		}
	}
	snapshot := m.snapshotLocked(changed)
	observers := m.observers
	m.mu.Unlock()

	if len(snapshot) > 0 || len(removed) > 0 {
		notify(observers, Change{Type: ChangePatch, Cells: snapshot, Removed: removed})
	}
	return nil
}

// CenterContent centres the viewport on the bounding box of all node cells
func (m *MemoryCanvas) CenterContent() Viewport {
	m.mu.Lock()
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	found := false
	for _, id := range m.order {
		c := m.cells[id]
		if c.Kind != KindNode {
			continue
		}
		x, okX := c.Props.Float("x")
		y, okY := c.Props.Float("y")
		if !okX || !okY {
			continue
		}
		w, _ := c.Props.Float("width")
		h, _ := c.Props.Float("height")
		minX, minY = math.Min(minX, x), math.Min(minY, y)
		maxX, maxY = math.Max(maxX, x+w), math.Max(maxY, y+h)
		found = true
	}
	if found {
		m.viewport.CenterX = (minX + maxX) / 2
		m.viewport.CenterY = (minY + maxY) / 2
	}
	vp := m.viewport
	observers := m.observers
	m.mu.Unlock()

	notify(observers, Change{Type: ChangeViewport, Viewport: &vp})
	return vp
}

func (m *MemoryCanvas) snapshotLocked(ids []string) []Cell {
	out := make([]Cell, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.cells[id].Clone())
	}
	return out
}

func notify(observers []Observer, ch Change) {
	for _, o := range observers {
		o(ch)
	}
}

// memBatch is the copy-on-write working set of a MemoryCanvas batch. Cells
// are cloned on first write so the committed state is never shared.
type memBatch struct {
	cells   map[string]Cell
	order   []string
	touched map[string]bool
	owned   map[string]bool
	removed []string
}

func (b *memBatch) Get(id string) (Cell, bool) {
	c, ok := b.cells[id]
	if !ok {
		return Cell{}, false
	}
	return c.Clone(), true
}

func (b *memBatch) Add(cell Cell) error {
	if _, ok := b.cells[cell.ID]; ok {
		return cellError(ErrDuplicateCell, cell.ID)
	}
	b.cells[cell.ID] = cell.Clone()
	b.own(cell.ID)
	b.order = append(b.order, cell.ID)
	b.touched[cell.ID] = true
	return nil
}

func (b *memBatch) SetProp(id, key string, value any) error {
	c, err := b.writable(id)
	if err != nil {
		return err
	}
	c.Props[key] = cloneValue(value)
	return nil
}

func (b *memBatch) DeleteProp(id, key string) error {
	c, err := b.writable(id)
	if err != nil {
		return err
	}
	delete(c.Props, key)
	return nil
}

func (b *memBatch) Remove(id string) error {
	if _, ok := b.cells[id]; !ok {
		return cellError(ErrUnknownCell, id)
	}
	delete(b.cells, id)
	delete(b.touched, id)
	b.removed = append(b.removed, id)
	return nil
}

func (b *memBatch) writable(id string) (*Cell, error) {
	c, ok := b.cells[id]
	if !ok {
		return nil, cellError(ErrUnknownCell, id)
	}
	if !b.owned[id] {
		c = c.Clone()
		b.own(id)
	}
	if c.Props == nil {
		c.Props = Props{}
	}
	b.cells[id] = c
	b.touched[id] = true
	// Props is a map so edits through the returned pointer reach b.cells.
	return &c, nil
}

func (b *memBatch) own(id string) {
	if b.owned == nil {
		b.owned = make(map[string]bool)
	}
	b.owned[id] = true
}

// compactOrder drops removed ids and collapses re-added ones
func (b *memBatch) compactOrder() []string {
	seen := make(map[string]bool, len(b.cells))
	out := make([]string, 0, len(b.cells))
	for _, id := range b.order {
		if _, ok := b.cells[id]; !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
