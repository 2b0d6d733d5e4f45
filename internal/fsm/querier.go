package fsm

import (
	"math/rand"
	"time"

	"github.com/joshuafuller/beacon/internal/cache"
	"github.com/joshuafuller/beacon/internal/protocol"
	"github.com/joshuafuller/beacon/internal/timer"
)

// QuerierState enumerates the lifecycle of a record learned from the
// network, per spec.md §4.6.
type QuerierState int

const (
	// StateQuery means a query has been sent (or is about to be, for a
	// continuous query) and no answer has arrived yet.
	StateQuery QuerierState = iota
	// StateValid is a cached, unexpired answer.
	StateValid
	// StateUpdating means a refresh query is outstanding; the previous
	// answer is still valid until it expires or a fresh one arrives.
	StateUpdating
	// StateDelete is terminal: the record's TTL expired with no refresh.
	StateDelete
	// StatePoofDelete means Passive Observation Of Failures (RFC 6762
	// §10.5) corroborated the record's disappearance on other interfaces;
	// it sits here for protocol.PoofGracePeriod before removal, reverting
	// to Valid if a genuine answer arrives first.
	StatePoofDelete
	// StateGoodbyeDelete means a goodbye (TTL=0) was observed for this
	// record; it sits here for protocol.GoodbyeGracePeriod before removal
	// and the service-change notification fire, reverting to Valid if a
	// live answer arrives first (RFC 6762 §10.1).
	StateGoodbyeDelete
)

// String returns the state's name for logs and tests.
func (s QuerierState) String() string {
	switch s {
	case StateQuery:
		return "Query"
	case StateValid:
		return "Valid"
	case StateUpdating:
		return "Updating"
	case StateDelete:
		return "Delete"
	case StatePoofDelete:
		return "PoofDelete"
	case StateGoodbyeDelete:
		return "GoodbyeDelete"
	default:
		return "Unknown"
	}
}

// QueryActionKind names what the event loop should do for a querier record.
type QueryActionKind int

const (
	// QueryActionNone means nothing to send.
	QueryActionNone QueryActionKind = iota
	// QueryActionSendQuery means send (or resend) a query for the record's name/type.
	QueryActionSendQuery
	// QueryActionRemoved means the record was deleted from the store (TTL
	// expiry, goodbye or POOF); the Poof field on the returned Action
	// distinguishes POOF removal from the others.
	QueryActionRemoved
)

// QueryAction describes one thing the caller should do for one record.
type QueryAction struct {
	Kind QueryActionKind
	Slot cache.Slot
	// Poof is set alongside QueryActionRemoved: true for early POOF removal
	// (StatePoofDelete), false for ordinary TTL expiry or goodbye removal.
	Poof bool
}

// Querier drives every network-learned record's cache lifecycle: refresh
// scheduling at RFC 6762 §5.2's 80/85/90/95% checkpoints, TTL expiry, and
// POOF early removal.
type Querier struct {
	store *cache.Store
	wheel *timer.Wheel
}

// NewQuerier creates a querier FSM over store, scheduling deadlines on wheel.
func NewQuerier(store *cache.Store, wheel *timer.Wheel) *Querier {
	return &Querier{store: store, wheel: wheel}
}

func (q *Querier) state(slot cache.Slot) QuerierState {
	rec, ok := q.store.Get(slot)
	if !ok {
		return StateDelete
	}
	return QuerierState(rec.FSMState)
}

func (q *Querier) setState(slot cache.Slot, s QuerierState) {
	q.store.Update(slot, func(rec *cache.Record) { rec.FSMState = int(s) })
}

// StartQuery marks a record as actively being queried with no answer yet,
// and schedules a retry in case the first query is lost.
func (q *Querier) StartQuery(slot cache.Slot, now time.Time) {
	q.setState(slot, StateQuery)
	q.wheel.Schedule(timerID(slot, purposeQueryRetry), now.Add(protocol.ProbeInterval))
}

// OnAnswer is called when a fresh answer arrives for slot (whether it was
// previously unknown, Query, Valid, or Updating). It (re)schedules the four
// RFC 6762 §5.2 refresh checkpoints plus final expiry from the record's
// OriginalTTL/ExpiresAt, which the caller must have already set via
// cache.Store.Insert or Update before calling this.
func (q *Querier) OnAnswer(slot cache.Slot, now time.Time) []QueryAction {
	rec, ok := q.store.Get(slot)
	if !ok {
		return nil
	}

	q.wheel.Cancel(timerID(slot, purposeQueryRetry))
	q.wheel.Cancel(timerID(slot, purposePoofWindow))
	q.wheel.Cancel(timerID(slot, purposePoofGrace))
	q.wheel.Cancel(timerID(slot, purposeGoodbyeGrace))
	for i := range protocol.RefreshPercentages {
		q.wheel.Cancel(timerID(slot, refreshPurpose(i)))
	}

	q.store.Update(slot, func(r *cache.Record) {
		r.RefreshedMask = 0
		r.PoofCount = 0
	})
	q.setState(slot, StateValid)

	ttl := time.Duration(rec.OriginalTTL) * time.Second
	base := rec.ExpiresAt.Add(-ttl)
	for i, pct := range protocol.RefreshPercentages {
		// RFC 6762 §5.2: jitter each checkpoint by ±(RefreshJitterPercent/2)
		// of the TTL so many queriers caching the same record don't all
		// refresh in lockstep.
		jitter := (rand.Float64() - 0.5) * protocol.RefreshJitterPercent
		deadline := base.Add(time.Duration(float64(ttl) * (pct + jitter)))
		q.wheel.Schedule(timerID(slot, refreshPurpose(i)), deadline)
	}
	q.wheel.Schedule(timerID(slot, purposeExpiry), rec.ExpiresAt)
	return nil
}

func refreshPurpose(i int) purpose {
	return purposeRefresh0 + purpose(i)
}

// AdvanceRefresh is called when one of the four refresh checkpoints fires.
// It sends a refresh query and marks the record Updating until OnAnswer (a
// fresh response) or expiry/POOF resolves it.
func (q *Querier) AdvanceRefresh(slot cache.Slot, checkpoint int, now time.Time) []QueryAction {
	switch q.state(slot) {
	case StateDelete, StatePoofDelete, StateGoodbyeDelete:
		return nil
	}
	q.store.Update(slot, func(r *cache.Record) { r.RefreshedMask |= 1 << uint(checkpoint) })
	q.setState(slot, StateUpdating)
	return []QueryAction{{Kind: QueryActionSendQuery, Slot: slot}}
}

// AdvanceExpiry is called when a record's TTL has elapsed with no refresh
// answer; it removes the record.
func (q *Querier) AdvanceExpiry(slot cache.Slot, now time.Time) []QueryAction {
	for i := range protocol.RefreshPercentages {
		q.wheel.Cancel(timerID(slot, refreshPurpose(i)))
	}
	q.wheel.Cancel(timerID(slot, purposePoofWindow))
	q.wheel.Cancel(timerID(slot, purposePoofGrace))
	q.wheel.Cancel(timerID(slot, purposeGoodbyeGrace))
	q.setState(slot, StateDelete)
	q.store.Delete(slot)
	return []QueryAction{{Kind: QueryActionRemoved, Slot: slot, Poof: false}}
}

// OnNegativeObservation is called when the querier observes, on a
// different interface than the one the record was learned on, evidence
// that the record no longer exists (e.g. a competing query with no
// matching answer in the same multicast exchange). RFC 6762 §10.5: this
// is Passive Observation Of Failures. After protocol.PoofMaxCount
// corroborating observations within protocol.PoofObservationWindow, the
// record enters StatePoofDelete for protocol.PoofGracePeriod instead of
// being removed outright: a genuine answer observed during the grace
// window (via OnAnswer) still reverts it to Valid.
func (q *Querier) OnNegativeObservation(slot cache.Slot, now time.Time) []QueryAction {
	state := q.state(slot)
	if state != StateValid && state != StateUpdating {
		return nil
	}

	rec, ok := q.store.Get(slot)
	if !ok {
		return nil
	}

	if rec.PoofCount == 0 {
		q.wheel.Schedule(timerID(slot, purposePoofWindow), now.Add(protocol.PoofObservationWindow))
	}

	count := rec.PoofCount + 1
	q.store.Update(slot, func(r *cache.Record) { r.PoofCount = count })

	if count < protocol.PoofMaxCount {
		return nil
	}

	for i := range protocol.RefreshPercentages {
		q.wheel.Cancel(timerID(slot, refreshPurpose(i)))
	}
	q.wheel.Cancel(timerID(slot, purposeExpiry))
	q.wheel.Cancel(timerID(slot, purposePoofWindow))
	q.setState(slot, StatePoofDelete)
	q.wheel.Schedule(timerID(slot, purposePoofGrace), now.Add(protocol.PoofGracePeriod))
	return nil
}

// AdvancePoofGrace is called when protocol.PoofGracePeriod elapses after a
// record entered StatePoofDelete with no corroborating OnAnswer arriving
// to revert it; the record is now actually removed.
func (q *Querier) AdvancePoofGrace(slot cache.Slot) []QueryAction {
	if q.state(slot) != StatePoofDelete {
		return nil
	}
	q.store.Delete(slot)
	return []QueryAction{{Kind: QueryActionRemoved, Slot: slot, Poof: true}}
}

// OnGoodbye is called when a goodbye announcement (TTL=0) is observed for
// slot. Per RFC 6762 §10.1 the record isn't removed immediately: it sits
// in StateGoodbyeDelete for protocol.GoodbyeGracePeriod, reverting to
// Valid if a genuine answer arrives (via OnAnswer) before the grace
// window closes.
func (q *Querier) OnGoodbye(slot cache.Slot, now time.Time) []QueryAction {
	state := q.state(slot)
	if state == StateDelete || state == StateGoodbyeDelete {
		return nil
	}

	for i := range protocol.RefreshPercentages {
		q.wheel.Cancel(timerID(slot, refreshPurpose(i)))
	}
	q.wheel.Cancel(timerID(slot, purposeExpiry))
	q.wheel.Cancel(timerID(slot, purposeQueryRetry))
	q.setState(slot, StateGoodbyeDelete)
	q.wheel.Schedule(timerID(slot, purposeGoodbyeGrace), now.Add(protocol.GoodbyeGracePeriod))
	return nil
}

// AdvanceGoodbyeGrace is called when protocol.GoodbyeGracePeriod elapses
// after a record entered StateGoodbyeDelete with no corroborating
// OnAnswer reverting it: the record is now actually removed, and the
// caller should fire a service-change (SERVICE_DELETED) notification.
func (q *Querier) AdvanceGoodbyeGrace(slot cache.Slot) []QueryAction {
	if q.state(slot) != StateGoodbyeDelete {
		return nil
	}
	q.store.Delete(slot)
	return []QueryAction{{Kind: QueryActionRemoved, Slot: slot, Poof: false}}
}

// OnPoofWindowExpired is called when purposePoofWindow fires without
// reaching protocol.PoofMaxCount corroborating observations: the
// accumulated count resets, per RFC 6762 §10.5's requirement that
// observations be corroborated "within a reasonably short time".
func (q *Querier) OnPoofWindowExpired(slot cache.Slot) {
	q.store.Update(slot, func(r *cache.Record) { r.PoofCount = 0 })
}

// State exposes the current lifecycle state of slot (StateDelete if the
// slot no longer exists), for tests and diagnostics.
func (q *Querier) State(slot cache.Slot) QuerierState {
	return q.state(slot)
}
