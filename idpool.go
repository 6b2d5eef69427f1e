package wayland

import "sync"

// clientIDCeiling is the exclusive upper bound of the client-owned id
// range; ids from here through 0xffffffff are reserved for the server
// (spec.md §3, invariant 1).
const clientIDCeiling = 0xff000000

// idPool allocates and recycles client-owned object ids. New ids are drawn
// from a cyclic counter over [1, clientIDCeiling), mirroring the reference
// client's itertools.cycle(range(1, 0xfeffffff)); once an id is freed via
// delete_id it is pushed onto a FIFO recycle queue and handed out again
// before the counter advances further, so a long-lived connection never
// runs out of room even though the counter only travels forward.
type idPool struct {
	mu      sync.Mutex
	next    ID
	recycle []ID
}

func newIDPool() *idPool {
	return &idPool{next: 1}
}

// Allocate returns the next client-owned id: the oldest recycled id if one
// is queued, otherwise the next unused value of the cyclic counter.
func (p *idPool) Allocate() ID {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.recycle) > 0 {
		id := p.recycle[0]
		p.recycle = p.recycle[1:]
		return id
	}

	id := p.next
	p.next++
	if p.next >= clientIDCeiling {
		p.next = 1
	}
	return id
}

// Release returns id to the recycle queue after a delete_id event. It must
// never be called for ids freed only by a local destroy request: those ids
// remain live until the server itself confirms deletion (spec.md §3,
// invariant 5).
func (p *idPool) Release(id ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recycle = append(p.recycle, id)
}

// objectTable is the live id -> Object lookup a connection maintains: the
// client-side half of the shared object namespace (client ids plus any
// ids the server has allocated, announced by a new_id event argument).
type objectTable struct {
	mu      sync.RWMutex
	objects map[ID]*Object
}

func newObjectTable() *objectTable {
	return &objectTable{objects: make(map[ID]*Object)}
}

// Insert registers obj under its own id, overwriting any previous
// occupant (ids are only reinserted after the server has confirmed the
// previous occupant deleted).
func (t *objectTable) Insert(obj *Object) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.objects[obj.id] = obj
}

// Lookup resolves id to its live Object, if any.
func (t *objectTable) Lookup(id ID) (*Object, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	obj, ok := t.objects[id]
	return obj, ok
}

// Remove drops id from the table. It does not release the id back to the
// pool; callers do that explicitly once they know the id was client-owned.
func (t *objectTable) Remove(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.objects, id)
}
