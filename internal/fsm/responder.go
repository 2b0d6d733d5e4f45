// Package fsm implements the responder and querier record-lifecycle state
// machines that drive every resource record independently through its own
// sequence of states, coordinated by one shared timer.Wheel and cache.Store
// per side (responder: authoritative/local; querier: peer/learned).
//
// This generalizes the teacher's internal/state package (a single Prober +
// Announcer + Machine wired for one fixed set of records) into a table that
// can carry an arbitrary number of records, each with its own independent
// state and deadline, per spec.md §4.5.
//
// PRIMARY TECHNICAL AUTHORITY: spec.md §4.5 (Responder FSM), §9 (DESIGN
// NOTES: global state reimagined as explicit per-record context).
package fsm

import (
	"time"

	"github.com/joshuafuller/beacon/internal/cache"
	"github.com/joshuafuller/beacon/internal/protocol"
	"github.com/joshuafuller/beacon/internal/timer"
)

// ResponderState enumerates the lifecycle a locally-registered record moves
// through, per RFC 6762 §8 (probing/announcing) and §10.1 (goodbye).
type ResponderState int

const (
	// StateProbing is the initial state for a unique record: up to
	// protocol.ProbeCount queries are sent to check nobody else already
	// owns this name.
	StateProbing ResponderState = iota
	// StateAnnouncing sends unsolicited responses announcing the new
	// record, per RFC 6762 §8.3.
	StateAnnouncing
	// StateValid is the steady state: the record answers queries and is
	// included in announcements triggered by network changes, but is not
	// itself timer-driven.
	StateValid
	// StateGoodbye is sending a TTL=0 departure announcement, per RFC 6762
	// §10.1.
	StateGoodbye
	// StateSuspended means a conflict was lost: the record has stopped
	// answering queries and is waiting for the caller to rename and
	// restart probing. See DESIGN.md for why conflicts suspend rather
	// than immediately delete.
	StateSuspended
	// StateDeleted is terminal; the record has been removed from the
	// store.
	StateDeleted
)

// String returns the state's name for logs and tests.
func (s ResponderState) String() string {
	switch s {
	case StateProbing:
		return "Probing"
	case StateAnnouncing:
		return "Announcing"
	case StateValid:
		return "Valid"
	case StateGoodbye:
		return "Goodbye"
	case StateSuspended:
		return "Suspended"
	case StateDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// ActionKind names what the event loop should do in response to an
// Advance/Start/OnConflict call.
type ActionKind int

const (
	// ActionNone means no packet needs to be sent.
	ActionNone ActionKind = iota
	// ActionSendProbe means send a QTYPE=ANY probe query for the record's name.
	ActionSendProbe
	// ActionSendAnnounce means send an unsolicited response for the record.
	ActionSendAnnounce
	// ActionSendGoodbye means send a TTL=0 response for the record.
	ActionSendGoodbye
	// ActionDeleted means the record has been removed from the store; the
	// caller should drop any remaining references (e.g. registry entries).
	ActionDeleted
)

// Action describes one thing the caller should do for one record.
type Action struct {
	Kind ActionKind
	Slot cache.Slot
}

// purpose tags let one record have more than one independent timer.Wheel
// entry at once (the querier schedules up to four refresh checkpoints plus
// an expiry, all for the same slot). The event loop decodes a fired
// timer.ID back into (slot, purpose) with DecodeTimerID to know which FSM
// method to call.
type purpose uint8

const (
	purposeLifecycle purpose = 0 // responder: probe/announce/goodbye

	purposeRefresh0     purpose = 1 // querier: refresh at protocol.RefreshPercentages[0]
	purposeRefresh1     purpose = 2
	purposeRefresh2     purpose = 3
	purposeRefresh3     purpose = 4
	purposeExpiry       purpose = 5 // querier: TTL expiry
	purposeQueryRetry   purpose = 6 // querier: re-send query before any answer observed
	purposePoofWindow   purpose = 7 // querier: POOF observation window closed
	purposePoofGrace    purpose = 8 // querier: PoofDelete grace window closed
	purposeGoodbyeGrace purpose = 9 // querier: goodbye (TTL=0) grace window closed
)

func timerID(slot cache.Slot, p purpose) timer.ID {
	return timer.ID(uint64(slot)<<8 | uint64(p))
}

// DecodeTimerID recovers the slot and purpose a timer.ID was scheduled
// with, so the event loop can route a fired deadline to the right FSM call.
func DecodeTimerID(id timer.ID) (cache.Slot, int) {
	return cache.Slot(uint64(id) >> 8), int(uint64(id) & 0xFF)
}

// Purpose tags exposed for the event loop to switch on after DecodeTimerID.
const (
	PurposeResponderLifecycle  = int(purposeLifecycle)
	PurposeQuerierRefresh0     = int(purposeRefresh0)
	PurposeQuerierRefresh1     = int(purposeRefresh1)
	PurposeQuerierRefresh2     = int(purposeRefresh2)
	PurposeQuerierRefresh3     = int(purposeRefresh3)
	PurposeQuerierExpiry       = int(purposeExpiry)
	PurposeQuerierQueryRetry   = int(purposeQueryRetry)
	PurposeQuerierPoofWindow   = int(purposePoofWindow)
	PurposeQuerierPoofGrace    = int(purposePoofGrace)
	PurposeQuerierGoodbyeGrace = int(purposeGoodbyeGrace)
)

// responderBookkeeping is per-record state the FSM needs beyond what
// cache.Record.FSMState (a plain ResponderState) can hold.
type responderBookkeeping struct {
	probeAttempt    int
	announceAttempt int
	backoff         time.Duration
}

// Responder drives every locally-registered record's lifecycle.
type Responder struct {
	store *cache.Store
	wheel *timer.Wheel
	books map[cache.Slot]*responderBookkeeping
}

// NewResponder creates a responder FSM over store, scheduling deadlines on wheel.
func NewResponder(store *cache.Store, wheel *timer.Wheel) *Responder {
	return &Responder{
		store: store,
		wheel: wheel,
		books: make(map[cache.Slot]*responderBookkeeping),
	}
}

func (r *Responder) state(slot cache.Slot) ResponderState {
	rec, ok := r.store.Get(slot)
	if !ok {
		return StateDeleted
	}
	return ResponderState(rec.FSMState)
}

func (r *Responder) setState(slot cache.Slot, s ResponderState) {
	r.store.Update(slot, func(rec *cache.Record) { rec.FSMState = int(s) })
}

// Start begins probing a newly-inserted unique record, or moves a shared
// record directly to Valid (RFC 6762 §8.1: "shared resource records...
// contain no unique identifying information... and do not require this
// probing step").
func (r *Responder) Start(slot cache.Slot, unique bool, now time.Time) []Action {
	if !unique {
		r.setState(slot, StateValid)
		return []Action{{Kind: ActionSendAnnounce, Slot: slot}}
	}
	r.books[slot] = &responderBookkeeping{}
	r.setState(slot, StateProbing)
	r.wheel.Schedule(timerID(slot, purposeLifecycle), now)
	return nil
}

// Advance is called by the event loop when slot's scheduled timer fires.
// It returns the action(s) to perform and reschedules the next deadline.
func (r *Responder) Advance(slot cache.Slot, now time.Time) []Action {
	book, ok := r.books[slot]
	if !ok {
		book = &responderBookkeeping{}
		r.books[slot] = book
	}

	switch r.state(slot) {
	case StateProbing:
		book.probeAttempt++
		if book.probeAttempt >= protocol.ProbeCount {
			// Final probe goes out now; if no conflict is observed within
			// the next probe interval, the next fire sends the first
			// announcement.
			r.setState(slot, StateAnnouncing)
			book.announceAttempt = 0
			book.backoff = protocol.AnnounceIntervalInitial
		}
		r.wheel.Schedule(timerID(slot, purposeLifecycle), now.Add(protocol.ProbeInterval))
		return []Action{{Kind: ActionSendProbe, Slot: slot}}

	case StateAnnouncing:
		return r.fireAnnounce(slot, book, now)

	case StateGoodbye:
		book.announceAttempt++
		if book.announceAttempt < 2 {
			// RFC 6762 §10.1 recommends sending the goodbye packet twice
			// to guard against loss, mirroring the announce burst.
			r.wheel.Schedule(timerID(slot, purposeLifecycle), now.Add(250*time.Millisecond))
			return []Action{{Kind: ActionSendGoodbye, Slot: slot}}
		}
		r.setState(slot, StateDeleted)
		delete(r.books, slot)
		r.store.Delete(slot)
		return []Action{{Kind: ActionDeleted, Slot: slot}}

	default:
		return nil
	}
}

func (r *Responder) fireAnnounce(slot cache.Slot, book *responderBookkeeping, now time.Time) []Action {
	book.announceAttempt++
	if book.announceAttempt >= protocol.AnnounceCount {
		r.setState(slot, StateValid)
		delete(r.books, slot)
		return []Action{{Kind: ActionSendAnnounce, Slot: slot}}
	}
	next := book.backoff
	book.backoff *= 2
	if book.backoff > protocol.AnnounceIntervalMax {
		book.backoff = protocol.AnnounceIntervalMax
	}
	r.wheel.Schedule(timerID(slot, purposeLifecycle), now.Add(next))
	return []Action{{Kind: ActionSendAnnounce, Slot: slot}}
}

// Goodbye begins the departure sequence for a record currently Valid (or
// Announcing/Probing, which is simply aborted since nothing has been
// announced to retract yet).
func (r *Responder) Goodbye(slot cache.Slot, now time.Time) []Action {
	switch r.state(slot) {
	case StateProbing, StateAnnouncing:
		r.wheel.Cancel(timerID(slot, purposeLifecycle))
		delete(r.books, slot)
		r.setState(slot, StateDeleted)
		r.store.Delete(slot)
		return []Action{{Kind: ActionDeleted, Slot: slot}}
	case StateValid, StateSuspended:
		r.books[slot] = &responderBookkeeping{}
		r.setState(slot, StateGoodbye)
		r.wheel.Schedule(timerID(slot, purposeLifecycle), now)
		return []Action{{Kind: ActionSendGoodbye, Slot: slot}}
	default:
		return nil
	}
}

// OnConflict reports a competing record observed on the network for the
// same name/type while we are Probing, Announcing, or Valid. weWin must
// already reflect RFC 6762 §8.2.1's lexicographic tiebreak (see
// internal/fsm.CompareRData). Losing suspends the record; the caller
// (responder/service layer) is expected to rename and call Start again.
func (r *Responder) OnConflict(slot cache.Slot, weWin bool, now time.Time) []Action {
	if weWin {
		return nil
	}
	switch r.state(slot) {
	case StateProbing, StateAnnouncing, StateValid:
		r.wheel.Cancel(timerID(slot, purposeLifecycle))
		delete(r.books, slot)
		r.setState(slot, StateSuspended)
		return nil
	default:
		return nil
	}
}

// State exposes the current lifecycle state of slot (StateDeleted if the
// slot no longer exists), for tests and diagnostics.
func (r *Responder) State(slot cache.Slot) ResponderState {
	return r.state(slot)
}
