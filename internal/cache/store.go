// Package cache implements the record store: the arena-backed table of
// resource records a responder (authoritative, "local" arena) or a querier
// (learned from the network, "peer" arena) holds at any moment.
//
// This is the Go-native counterpart of the original arena design: instead
// of a single bump-allocated block of memory holding RR structs linked by
// pointer, with strings trailing each record as [count:u16][length:u16]
// entries, a Store holds a growable slice of Record values addressed by a
// typed Slot, and every name/rdata string is interned once in a shared
// pool.Pool and referenced by pool.Index. Deleting a record releases its
// pool references and returns the slot to a free list for reuse, which is
// the same bump-allocator-with-freelist behavior the original arena gave
// for free by construction.
//
// PRIMARY TECHNICAL AUTHORITY: spec.md §3 (DATA MODEL: RR identity tuple,
// cache arena layout, invariants, lifecycle), §4.3 (Record Store).
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/joshuafuller/beacon/internal/pool"
	"github.com/joshuafuller/beacon/internal/protocol"
)

// Slot identifies a record within a Store. The zero value, NoSlot, never
// refers to a live record.
type Slot uint32

// NoSlot is the sentinel for "no record".
const NoSlot Slot = 0

// Record is the mutable state associated with one RR identity tuple
// (name, type, class) within a single arena.
//
// spec.md §3: the identity tuple is immutable once inserted; TTL, timers,
// refresh bookkeeping, and FSM state change over the record's lifetime.
type Record struct {
	// NameIndex is the interned owner name (e.g. the service instance or
	// host name this record answers for). It dedupes and compares
	// case-insensitively; the stored text keeps the casing of whichever
	// spelling was interned first.
	NameIndex pool.Index
	// Name is a convenience copy of the owner name for logging; the
	// authoritative value is NameIndex's pool entry.
	Name string
	// Type is the RR type (A, PTR, SRV, TXT, ...).
	Type protocol.RecordType
	// Class is the RR class without the cache-flush bit (always
	// protocol.ClassIN in this module).
	Class uint16
	// Unique marks a record as a unique (not shared) RR per RFC 6762
	// §10.2: unique records are conflict-checked and sent with the
	// cache-flush bit; shared records (e.g. PTR enumeration records) are
	// not.
	Unique bool
	// RDataIndex is the interned, opaque (non-folded) encoded RDATA.
	RDataIndex pool.Index
	// OriginalTTL is the TTL this record was last (re)announced/learned
	// with, used to compute refresh checkpoints.
	OriginalTTL uint32
	// ExpiresAt is when this record is no longer valid absent a refresh.
	ExpiresAt time.Time
	// RefreshedMask has bit i set once the refresh query for
	// protocol.RefreshPercentages[i] has been sent, per RFC 6762 §5.2.
	RefreshedMask uint8
	// PoofCount is the number of corroborating negative observations
	// collected for Passive Observation Of Failures (RFC 6762 §10.5).
	PoofCount int
	// FSMState is the owning FSM's state constant for this record. The
	// store treats it as opaque; only internal/fsm interprets it.
	FSMState int
	// Interface names the network interface this record is scoped to, or
	// "" if it applies to every enabled interface.
	Interface string
}

type key struct {
	name  string
	typ   protocol.RecordType
	class uint16
	iface string
}

// Store is an arena of records sharing one string pool.Pool. A responder
// uses one Store for its authoritative ("local") records; a querier uses a
// separate Store for records learned from the network ("peer").
type Store struct {
	pool *pool.Pool

	mu      sync.RWMutex
	records []Record // index 0 reserved as NoSlot
	free    []Slot
	byKey   map[key]Slot
}

// NewStore creates an empty arena backed by the given string pool. Sharing
// one pool.Pool across a local and a peer Store lets identical names (e.g.
// a service's own PTR target also appearing in a peer response) share one
// interned entry.
func NewStore(p *pool.Pool) *Store {
	return &Store{
		pool:    p,
		records: make([]Record, 1),
		byKey:   make(map[key]Slot),
	}
}

// Pool returns the string pool backing this store.
func (s *Store) Pool() *pool.Pool {
	return s.pool
}

func foldName(name string) string {
	return strings.ToLower(name)
}

func keyFor(name string, typ protocol.RecordType, class uint16, iface string) key {
	return key{name: foldName(name), typ: typ, class: protocol.ClassValue(class), iface: iface}
}

// Find looks up a record by its identity tuple plus interface scope.
func (s *Store) Find(name string, typ protocol.RecordType, class uint16, iface string) (Slot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.byKey[keyFor(name, typ, class, iface)]
	return slot, ok
}

// FindAny looks up a record scoped to any interface ("") first, falling
// back to nothing; callers needing all per-interface matches use All with a
// name filter instead.
func (s *Store) FindAny(name string, typ protocol.RecordType, class uint16) (Slot, bool) {
	return s.Find(name, typ, class, "")
}

// Insert adds a new record for an identity tuple that must not already
// exist in this arena (callers check Find first so they can apply
// spec.md §7's EXIST_* non-error-success semantics instead of overwriting).
// The name and rdata strings are interned into the shared pool.
func (s *Store) Insert(name string, typ protocol.RecordType, class uint16, unique bool, rdata string, ttl uint32, iface string) Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	nameIdx := s.pool.Intern(name, true)
	rdataIdx := s.pool.Intern(rdata, false)

	rec := Record{
		NameIndex:   nameIdx,
		Name:        name,
		Type:        typ,
		Class:       protocol.ClassValue(class),
		Unique:      unique,
		RDataIndex:  rdataIdx,
		OriginalTTL: ttl,
		ExpiresAt:   time.Now().Add(time.Duration(ttl) * time.Second),
		Interface:   iface,
	}

	var slot Slot
	if n := len(s.free); n > 0 {
		slot = s.free[n-1]
		s.free = s.free[:n-1]
		s.records[slot] = rec
	} else {
		slot = Slot(len(s.records))
		s.records = append(s.records, rec)
	}
	s.byKey[keyFor(name, typ, class, iface)] = slot
	return slot
}

// Get returns a copy of the record at slot. Mutate it via Update, not by
// modifying the returned copy.
func (s *Store) Get(slot Slot) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.liveLocked(slot) {
		return Record{}, false
	}
	return s.records[slot], true
}

// Update applies fn to the live record at slot in place. fn must not change
// NameIndex, Type, Class, or Interface (that would desynchronize byKey);
// callers needing to rename must Delete and Insert instead.
func (s *Store) Update(slot Slot, fn func(*Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(slot) {
		return false
	}
	fn(&s.records[slot])
	return true
}

// Delete releases a record's pool references and returns its slot for
// reuse.
func (s *Store) Delete(slot Slot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(slot) {
		return false
	}
	rec := s.records[slot]
	delete(s.byKey, keyFor(rec.Name, rec.Type, rec.Class, rec.Interface))
	s.pool.Release(rec.NameIndex)
	s.pool.Release(rec.RDataIndex)
	s.records[slot] = Record{}
	s.free = append(s.free, slot)
	return true
}

// liveLocked reports whether slot currently refers to an allocated record.
// Callers must hold s.mu.
func (s *Store) liveLocked(slot Slot) bool {
	if slot == NoSlot || int(slot) >= len(s.records) {
		return false
	}
	for _, f := range s.free {
		if f == slot {
			return false
		}
	}
	return true
}

// All returns every live slot, in no particular order. Used by the timer
// wheel sweep and by full-cache enumeration (NO_MORE_ENTRIES iteration).
func (s *Store) All() []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	freeSet := make(map[Slot]struct{}, len(s.free))
	for _, f := range s.free {
		freeSet[f] = struct{}{}
	}
	out := make([]Slot, 0, len(s.records))
	for i := 1; i < len(s.records); i++ {
		slot := Slot(i)
		if _, freed := freeSet[slot]; freed {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// ByName returns every live slot whose owner name matches (case-insensitive).
func (s *Store) ByName(name string) []Slot {
	folded := foldName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	freeSet := make(map[Slot]struct{}, len(s.free))
	for _, f := range s.free {
		freeSet[f] = struct{}{}
	}
	var out []Slot
	for i := 1; i < len(s.records); i++ {
		slot := Slot(i)
		if _, freed := freeSet[slot]; freed {
			continue
		}
		if foldName(s.records[slot].Name) == folded {
			out = append(out, slot)
		}
	}
	return out
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}
