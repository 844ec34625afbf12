package nominal

import "fmt"

// mapEntry is one slot in a Map's backing table. Entries are never
// relocated once appended, so their index also serves as the stable
// insertion-order position; next chains collisions within a bucket.
type mapEntry struct {
	key   Value
	value Value
	hash  uint64
	next  int32 // index of the next entry in this bucket's chain, -1 if none
	live  bool  // false once removed; the slot is never reused
}

const defaultMapBucketCount = 8

// Map is Nominal's sole aggregate type: a hash table that also remembers
// insertion order (so iteration and array-style display are well
// defined) and the contiguous-integer-key special case that lets a
// literal like {1, 2, 3} act as an array (spec §3, §4.3).
type Map struct {
	class      Value // Nil, or another Map used for CLASSOF dispatch
	entries    []mapEntry
	buckets    []int32 // bucket -> index into entries, -1 if empty
	live       int     // count of entries with live == true
	contiguous bool    // true iff keys are exactly Number(0..len-1) in order
	nextIndex  float64 // next key required to keep contiguous true
}

// NewMap creates an empty map with no class. An empty map is
// trivially contiguous (it is an empty array).
func NewMap() *Map {
	m := &Map{contiguous: true, class: Nil}
	m.resetBuckets(defaultMapBucketCount)
	return m
}

func (m *Map) bucketIndex(hash uint64) int {
	return int(hash % uint64(len(m.buckets)))
}

func (m *Map) resetBuckets(n int) {
	m.buckets = make([]int32, n)
	for i := range m.buckets {
		m.buckets[i] = -1
	}
	for i := range m.entries {
		e := &m.entries[i]
		if !e.live {
			continue
		}
		b := m.bucketIndex(e.hash)
		e.next = m.buckets[b]
		m.buckets[b] = int32(i)
	}
}

func (m *Map) growIfNeeded() {
	if m.live*2 < len(m.buckets)*3 { // load factor 1.5
		return
	}
	m.resetBuckets(len(m.buckets) * 2)
}

// find returns the entry index for key, or -1 if absent.
func (m *Map) find(s *State, key Value) int {
	if len(m.buckets) == 0 {
		return -1
	}
	h := s.Hash(key)
	i := m.buckets[m.bucketIndex(h)]
	for i != -1 {
		e := &m.entries[i]
		if e.live && e.hash == h && s.Equals(e.key, key) {
			return int(i)
		}
		i = e.next
	}
	return -1
}

func (m *Map) insertNew(s *State, key, value Value) {
	m.growIfNeeded()
	h := s.Hash(key)
	idx := int32(len(m.entries))
	b := m.bucketIndex(h)
	m.entries = append(m.entries, mapEntry{key: key, value: value, hash: h, next: m.buckets[b], live: true})
	m.buckets[b] = idx
	m.live++

	if m.contiguous {
		if key.IsNumber() && key.AsNumber() == m.nextIndex {
			m.nextIndex++
		} else {
			m.contiguous = false
		}
	}
}

// Insert adds key/value and fails if key is already present (backs both
// `:=` forms, per the bracket-vs-dot resolution in SPEC_FULL.md: the
// bracket flag is ignored for define).
func (m *Map) Insert(s *State, key, value Value) error {
	if m.find(s, key) != -1 {
		return fmt.Errorf("key already exists")
	}
	m.insertNew(s, key, value)
	return nil
}

// Update overwrites an existing key's value and fails if key is absent
// (backs dot-assign `m.k = v`).
func (m *Map) Update(s *State, key, value Value) error {
	i := m.find(s, key)
	if i == -1 {
		return fmt.Errorf("no value for key")
	}
	m.entries[i].value = value
	return nil
}

// Set inserts or overwrites unconditionally and never fails (backs
// bracket-assign `m[k] = v`).
func (m *Map) Set(s *State, key, value Value) {
	if i := m.find(s, key); i != -1 {
		m.entries[i].value = value
		return
	}
	m.insertNew(s, key, value)
}

// Find returns the value for key, failing if absent (backs dot-read
// `m.k`).
func (m *Map) Find(s *State, key Value) (Value, error) {
	i := m.find(s, key)
	if i == -1 {
		return Nil, fmt.Errorf("no value for key")
	}
	return m.entries[i].value, nil
}

// Get returns the value for key, or Nil if absent (backs bracket-read
// `m[k]`).
func (m *Map) Get(s *State, key Value) Value {
	i := m.find(s, key)
	if i == -1 {
		return Nil
	}
	return m.entries[i].value
}

// Contains reports whether key is present.
func (m *Map) Contains(s *State, key Value) bool {
	return m.find(s, key) != -1
}

// Len reports the number of live key/value pairs.
func (m *Map) Len() int { return m.live }

// Contiguous reports whether every key is an integer Number running
// 0..Len()-1 in insertion order, i.e. whether this map may be treated
// as an array literal.
func (m *Map) Contiguous() bool { return m.contiguous }

// Class returns the map used for CLASSOF/operator dispatch, or Nil.
func (m *Map) Class() Value { return m.class }

// SetClass assigns the dispatch class.
func (m *Map) SetClass(class Value) { m.class = class }

// MapEntry is one key/value pair as seen by iteration, in insertion
// order.
type MapEntry struct {
	Key   Value
	Value Value
}

// Entries returns all live pairs in insertion order. Used by the VM's
// MAP opcode reconstruction, by iteration builtins, and by the
// debugger's printer.
func (m *Map) Entries() []MapEntry {
	out := make([]MapEntry, 0, m.live)
	for _, e := range m.entries {
		if e.live {
			out = append(out, MapEntry{Key: e.key, Value: e.value})
		}
	}
	return out
}
