package nominal

// HeapObjectId indexes a slot in the Heap. Ids are never reused: a swept
// slot keeps its id but has its data set to nil, and the allocator only
// ever advances. This is a known weakness inherited directly from the source language this runtime implements.
type HeapObjectId uint32

// HeapObjectKind distinguishes the three payload shapes a heap object can
// carry.
type HeapObjectKind uint8

const (
	ObjString HeapObjectKind = iota
	ObjMap
	ObjFunction
)

// HeapString is a mutable, non-interned string living on the heap.
// Interned strings (identifiers, most literals) never allocate one of
// these; HeapString exists for values built at runtime, e.g. by the host
// via new_string.
type HeapString struct {
	bytes []byte
	hash  uint64
	valid bool
}

func newHeapString(s string) *HeapString {
	b := []byte(s)
	return &HeapString{bytes: b, hash: djb2(b), valid: true}
}

func (h *HeapString) String() string { return string(h.bytes) }

type heapSlot struct {
	kind     HeapObjectKind
	data     any // *HeapString | *Map | *Function; nil when swept
	refcount int32
	marked   bool
}

// Heap is an id-indexed arena of typed managed objects, collected with a
// mark-and-sweep pass that the host or a builtin must request explicitly
// — there is no automatic trigger (spec §4.2, §5).
type Heap struct {
	slots []heapSlot
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{}
}

// Alloc assigns the next id and stores data under it. The backing slice
// grows (and copies) like any Go slice append; this stands in for the
// spec's explicit capacity-doubling bump allocator.
func (h *Heap) Alloc(kind HeapObjectKind, data any) HeapObjectId {
	id := HeapObjectId(len(h.slots))
	h.slots = append(h.slots, heapSlot{kind: kind, data: data})
	return id
}

// Kind returns the type tag for a live slot.
func (h *Heap) Kind(id HeapObjectId) HeapObjectKind {
	return h.slots[id].kind
}

// Data returns the slot's live payload, or nil if the slot was swept.
func (h *Heap) Data(id HeapObjectId) any {
	return h.slots[id].data
}

// IsLive reports whether id still refers to an unswept slot (invariant I2).
func (h *Heap) IsLive(id HeapObjectId) bool {
	return int(id) < len(h.slots) && h.slots[id].data != nil
}

// Mark flags id as reachable for the current collection cycle.
func (h *Heap) Mark(id HeapObjectId) {
	h.slots[id].marked = true
}

// Marked reports whether id has already been visited this cycle, so
// traversal can avoid infinite loops on cyclic structures.
func (h *Heap) Marked(id HeapObjectId) bool {
	return h.slots[id].marked
}

// Acquire increments the pin count that overrides sweeping for id. It is
// the host-facing escape hatch described in spec §4.2 and §6.
func (h *Heap) Acquire(id HeapObjectId) {
	h.slots[id].refcount++
}

// Release decrements the pin count. It never goes below zero.
func (h *Heap) Release(id HeapObjectId) {
	if h.slots[id].refcount > 0 {
		h.slots[id].refcount--
	}
}

// Free nulls out a slot's data without checking reachability. Sweep
// clears slots directly rather than through Free.
func (h *Heap) Free(id HeapObjectId) {
	h.slots[id].data = nil
}

// Sweep frees every unreachable, unpinned, unmarked slot and clears the
// mark bit on everything else, returning the number of objects freed.
// It does not return freed slots to a free list: the next allocation
// still bumps past the high-water mark (spec §4.2).
func (h *Heap) Sweep() uint32 {
	var freed uint32
	for i := range h.slots {
		s := &h.slots[i]
		if s.data == nil {
			continue
		}
		if s.refcount == 0 && !s.marked {
			s.data = nil
			freed++
		} else {
			s.marked = false
		}
	}
	return freed
}

// Len reports the number of slots ever allocated (live or swept).
func (h *Heap) Len() int {
	return len(h.slots)
}
