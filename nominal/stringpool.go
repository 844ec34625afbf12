package nominal

import "fmt"

// StringId is a dense handle into a StringPool. Ids are stable for the
// lifetime of the State that owns the pool.
type StringId uint32

// defaultStringPoolCapacity mirrors the fixed-slot-count discipline the
// rest of the runtime uses for its stacks: a pool panics rather than
// silently growing past its configured bound.
const defaultStringPoolCapacity = 512

// StringPool is an append-only interner for identifiers and string
// literals. Two entries with identical bytes share an id, and the pool
// caches each string's content hash so equality and hashing agree without
// re-walking bytes on every lookup.
type StringPool struct {
	strings  []string
	hashes   []uint64
	byString map[string]StringId
	capacity int
}

// NewStringPool creates a pool with the given fixed capacity. A capacity
// of 0 selects the default of 512 slots.
func NewStringPool(capacity int) *StringPool {
	if capacity <= 0 {
		capacity = defaultStringPoolCapacity
	}
	return &StringPool{
		strings:  make([]string, 0, capacity),
		hashes:   make([]uint64, 0, capacity),
		byString: make(map[string]StringId, capacity),
		capacity: capacity,
	}
}

// djb2 is the hash function used for both interned and heap strings so
// that equal values are guaranteed to hash equal (spec invariant P2).
func djb2(b []byte) uint64 {
	var h uint64 = 5381
	for _, c := range b {
		h = ((h << 5) + h) + uint64(c)
	}
	return h
}

// Intern returns the dense id for s, allocating a new slot if this is the
// first time these bytes have been seen.
func (p *StringPool) Intern(s string) StringId {
	if id, ok := p.byString[s]; ok {
		return id
	}
	if len(p.strings) >= p.capacity {
		panic(fmt.Sprintf("nominal: string pool exhausted (capacity %d)", p.capacity))
	}
	id := StringId(len(p.strings))
	p.strings = append(p.strings, s)
	p.hashes = append(p.hashes, djb2([]byte(s)))
	p.byString[s] = id
	return id
}

// InternBytes interns the given bytes, copying them into a fresh string
// so later mutation of the caller's slice cannot corrupt the pool.
func (p *StringPool) InternBytes(b []byte) StringId {
	return p.Intern(string(b))
}

// Lookup returns the string content for id. It panics on an invalid id,
// since a valid StringId is an invariant (I1) the caller must uphold.
func (p *StringPool) Lookup(id StringId) string {
	return p.strings[id]
}

// HashOf returns the cached content hash for id.
func (p *StringPool) HashOf(id StringId) uint64 {
	return p.hashes[id]
}

// Len reports how many distinct strings are interned.
func (p *StringPool) Len() int {
	return len(p.strings)
}
