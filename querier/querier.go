package querier

import (
	"fmt"
	"net"
	"sync"
	"time"

	"context"

	"github.com/joshuafuller/beacon/internal/cache"
	"github.com/joshuafuller/beacon/internal/eventloop"
	"github.com/joshuafuller/beacon/internal/fsm"
	"github.com/joshuafuller/beacon/internal/message"
	"github.com/joshuafuller/beacon/internal/packetproc"
	"github.com/joshuafuller/beacon/internal/pool"
	"github.com/joshuafuller/beacon/internal/protocol"
	"github.com/joshuafuller/beacon/internal/security"
	"github.com/joshuafuller/beacon/internal/timer"
	"github.com/joshuafuller/beacon/internal/transport"
)

// Querier provides high-level mDNS query functionality: one-shot Query()
// calls for quick lookups, and Browse() for continuous service discovery
// backed by a record cache that refreshes and expires per RFC 6762 §5.2/§10.5.
//
// NOTE: Fields are ordered for memory alignment (fieldalignment optimization).
// Larger types (interfaces, slices, sync types) come first, then smaller types.
type Querier struct {
	transport transport.Transport

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	explicitInterfaces []net.Interface
	defaultTimeout     time.Duration
	rateLimitCooldown  time.Duration

	responseChan chan []byte

	interfaceFilter func(net.Interface) bool
	rateLimiter     *security.RateLimiter

	// pool, store, querierFSM, wheel, loop, and proc back the continuous
	// Browse() discovery path; Query() does not use them.
	pool       *pool.Pool
	store      *cache.Store
	querierFSM *fsm.Querier
	wheel      *timer.Wheel
	loop       *eventloop.Loop
	proc       *packetproc.Processor

	rateLimitThreshold int

	closeOnce sync.Once

	mu               sync.Mutex
	rateLimitEnabled bool

	hookMu          sync.Mutex
	onServiceChange func(ServiceChangeEvent)
}

// ServiceChangeKind distinguishes why a cached record was removed, for
// ServiceChangeEvent.
type ServiceChangeKind int

const (
	// ServiceDeleted means the record was removed: a goodbye was observed
	// and its grace window closed with no corroborating answer, its TTL
	// expired with no refresh, or POOF corroborated its disappearance and
	// its grace window closed the same way.
	ServiceDeleted ServiceChangeKind = iota
)

// ServiceChangeEvent describes a cached record leaving the Querier's store,
// delivered through the callback registered with WithOnServiceChange.
type ServiceChangeEvent struct {
	Name string
	Type RecordType
	Kind ServiceChangeKind
}

// New creates a new Querier with optional configuration.
func New(opts ...Option) (*Querier, error) {
	ctx, cancel := context.WithCancel(context.Background())

	p := pool.New()
	store := cache.NewStore(p)
	wheel := timer.New()

	q := &Querier{
		defaultTimeout:     1 * time.Second,
		responseChan:       make(chan []byte, 100),
		ctx:                ctx,
		cancel:             cancel,
		rateLimitEnabled:   true,
		rateLimitThreshold: 100,
		rateLimitCooldown:  60 * time.Second,
		pool:               p,
		store:              store,
		wheel:              wheel,
		querierFSM:         fsm.NewQuerier(store, wheel),
	}

	for _, opt := range opts {
		if err := opt(q); err != nil {
			cancel()
			return nil, err
		}
	}

	ifaces, err := q.resolveInterfaces()
	if err != nil {
		cancel()
		return nil, err
	}

	tr, err := transport.NewUDPv4Transport(ifaces)
	if err != nil {
		cancel()
		return nil, err
	}
	q.transport = tr

	if q.rateLimitEnabled {
		q.rateLimiter = security.NewRateLimiter(
			q.rateLimitThreshold,
			q.rateLimitCooldown,
			10000,
		)
		q.wg.Add(1)
		go q.cleanupLoop()
	}

	q.proc = packetproc.New(nil, nil, q)
	q.loop = eventloop.New(wheel, tr, q.onTick, q.onPacket)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.loop.Run(ctx)
	}()

	return q, nil
}

// resolveInterfaces applies the explicit-list/filter/default precedence
// documented on WithInterfaces and WithInterfaceFilter.
func (q *Querier) resolveInterfaces() ([]net.Interface, error) {
	if len(q.explicitInterfaces) > 0 {
		return q.explicitInterfaces, nil
	}

	ifaces, err := transport.DefaultInterfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate interfaces: %w", err)
	}
	if q.interfaceFilter == nil {
		return ifaces, nil
	}

	filtered := ifaces[:0:0]
	for _, iface := range ifaces {
		if q.interfaceFilter(iface) {
			filtered = append(filtered, iface)
		}
	}
	return filtered, nil
}

// Query sends an mDNS query and returns all responses received within the timeout.
// If ctx has no deadline, the Querier's default timeout (WithTimeout) applies.
func (q *Querier) Query(ctx context.Context, name string, recordType RecordType) (*Response, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && q.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.defaultTimeout)
		defer cancel()
	}

	if err := protocol.ValidateName(name); err != nil {
		return nil, err
	}
	if err := protocol.ValidateRecordType(uint16(recordType)); err != nil {
		return nil, err
	}

	queryMsg, err := message.BuildQuery(name, uint16(recordType))
	if err != nil {
		return nil, err
	}

	if err := q.transport.Send(ctx, queryMsg, protocol.MulticastGroupIPv4()); err != nil {
		return nil, err
	}

	return q.collectResponses(ctx, name, recordType)
}

func (q *Querier) collectResponses(ctx context.Context, _ string, queryType RecordType) (*Response, error) {
	response := &Response{
		Records: make([]ResourceRecord, 0),
	}
	seen := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return response, nil

		case responseMsg := <-q.responseChan:
			parsedMsg, err := message.ParseMessage(responseMsg)
			if err != nil {
				continue
			}
			if err := protocol.ValidateResponse(parsedMsg.Header.Flags); err != nil {
				continue
			}

			for _, answer := range parsedMsg.Answers {
				if RecordType(answer.TYPE) != queryType {
					continue
				}
				data, err := message.ParseRDATA(answer.TYPE, answer.RDATA)
				if err != nil {
					continue
				}

				dedupeKey := fmt.Sprintf("%s|%d|%v", answer.NAME, answer.TYPE, data)
				if seen[dedupeKey] {
					continue
				}
				seen[dedupeKey] = true

				response.Records = append(response.Records, ResourceRecord{
					Name:  answer.NAME,
					Type:  RecordType(answer.TYPE),
					Class: answer.CLASS,
					TTL:   answer.TTL,
					Data:  data,
				})
			}
		}
	}
}

// Browse starts continuous discovery of serviceType (e.g. "_http._tcp.local")
// by sending a PTR query and tracking answers in a refreshed, POOF-aware
// cache. Call Discovered repeatedly to read the current known instances.
func (q *Querier) Browse(serviceType string) error {
	if err := protocol.ValidateName(serviceType); err != nil {
		return err
	}
	q.startQuery(serviceType, protocol.RecordTypePTR)
	return nil
}

func (q *Querier) startQuery(name string, rtype protocol.RecordType) cache.Slot {
	class := uint16(protocol.ClassIN)
	slot, exists := q.store.Find(name, rtype, class, "")
	now := time.Now()
	if !exists {
		slot = q.store.Insert(name, rtype, class, false, "", 0, "")
		q.querierFSM.StartQuery(slot, now)
	}
	q.sendQueryFor(slot)
	return slot
}

func (q *Querier) sendQueryFor(slot cache.Slot) {
	rec, ok := q.store.Get(slot)
	if !ok {
		return
	}
	query, err := message.BuildQuery(rec.Name, uint16(rec.Type))
	if err != nil {
		return
	}
	_ = q.transport.Send(q.ctx, query, protocol.MulticastGroupIPv4())
}

// Discovered returns every currently-valid cached record learned for name
// (e.g. the PTR targets discovered for a browsed service type).
func (q *Querier) Discovered(name string) []ResourceRecord {
	var out []ResourceRecord
	for _, slot := range q.store.ByName(name) {
		rec, ok := q.store.Get(slot)
		if !ok || q.querierFSM.State(slot) != fsm.StateValid {
			continue
		}
		rdata, _ := q.pool.Get(rec.RDataIndex)
		data, err := message.ParseRDATA(uint16(rec.Type), []byte(rdata))
		if err != nil {
			continue
		}
		out = append(out, ResourceRecord{
			Name:  rec.Name,
			Type:  RecordType(rec.Type),
			Class: rec.Class,
			TTL:   rec.OriginalTTL,
			Data:  data,
		})
	}
	return out
}

// onTick routes a fired timer deadline to the querier FSM and executes any
// resulting query action.
func (q *Querier) onTick(id timer.ID, now time.Time) {
	slot, purpose := fsm.DecodeTimerID(id)
	switch purpose {
	case fsm.PurposeQuerierRefresh0, fsm.PurposeQuerierRefresh1, fsm.PurposeQuerierRefresh2, fsm.PurposeQuerierRefresh3:
		checkpoint := purpose - fsm.PurposeQuerierRefresh0
		q.executeQueryActions(q.querierFSM.AdvanceRefresh(slot, checkpoint, now))
	case fsm.PurposeQuerierExpiry:
		rec, _ := q.store.Get(slot)
		q.executeQueryActions(q.querierFSM.AdvanceExpiry(slot, now))
		q.notifyIfRemoved(rec, slot)
	case fsm.PurposeQuerierQueryRetry:
		if q.querierFSM.State(slot) == fsm.StateQuery {
			q.sendQueryFor(slot)
		}
	case fsm.PurposeQuerierPoofWindow:
		q.querierFSM.OnPoofWindowExpired(slot)
	case fsm.PurposeQuerierPoofGrace:
		rec, _ := q.store.Get(slot)
		q.executeQueryActions(q.querierFSM.AdvancePoofGrace(slot))
		q.notifyIfRemoved(rec, slot)
	case fsm.PurposeQuerierGoodbyeGrace:
		rec, _ := q.store.Get(slot)
		q.executeQueryActions(q.querierFSM.AdvanceGoodbyeGrace(slot))
		q.notifyIfRemoved(rec, slot)
	}
}

func (q *Querier) executeQueryActions(actions []fsm.QueryAction) {
	for _, a := range actions {
		switch a.Kind {
		case fsm.QueryActionSendQuery:
			q.sendQueryFor(a.Slot)
		case fsm.QueryActionRemoved, fsm.QueryActionNone:
		}
	}
}

// notifyIfRemoved fires the registered service-change callback for rec if it
// was just removed by one of the grace/expiry Advance* calls. rec must be a
// snapshot taken before the Advance* call, since the record no longer exists
// in the store afterward.
func (q *Querier) notifyIfRemoved(rec cache.Record, slot cache.Slot) {
	if rec.Name == "" {
		return
	}
	if _, stillExists := q.store.Get(slot); stillExists {
		return
	}
	q.hookMu.Lock()
	cb := q.onServiceChange
	q.hookMu.Unlock()
	if cb == nil {
		return
	}
	cb(ServiceChangeEvent{Name: rec.Name, Type: RecordType(rec.Type), Kind: ServiceDeleted})
}

// onPacket is the event loop's single inbound-packet entry point: it feeds
// the one-shot Query() path (via responseChan) and the continuous Browse()
// path (via the packet processor) from the same received datagram.
func (q *Querier) onPacket(p eventloop.Packet) {
	if len(p.Data) == 0 || len(p.Data) > transport.MaxPacketSize {
		return
	}
	if srcIP := addrIP(p.Src); srcIP != nil && q.rateLimitEnabled && q.rateLimiter != nil {
		if !q.rateLimiter.Allow(srcIP.String()) {
			return
		}
	}

	select {
	case q.responseChan <- p.Data:
	default:
	}

	q.proc.Process(p.Data, p.Src, time.Now())
}

func addrIP(addr net.Addr) net.IP {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return nil
	}
	return udpAddr.IP
}

// HandleQuestion implements packetproc.Handler. A querier never answers
// questions; it only learns from answers.
func (q *Querier) HandleQuestion(message.Question, *message.DNSMessage, net.Addr) {}

// HandleAnswer implements packetproc.Handler: learn or refresh a cached
// record from an observed answer, per RFC 6762 §5.
func (q *Querier) HandleAnswer(a message.Answer, _ net.Addr) {
	now := time.Now()
	rtype := protocol.RecordType(a.TYPE)
	class := uint16(protocol.ClassIN)

	if a.TTL == 0 {
		// RFC 6762 §10.1: a goodbye announcement starts a grace window
		// instead of removing the record immediately; AdvanceGoodbyeGrace
		// (scheduled by OnGoodbye) does the actual removal if nothing
		// revives the record first.
		if slot, ok := q.store.Find(a.NAME, rtype, class, ""); ok {
			q.executeQueryActions(q.querierFSM.OnGoodbye(slot, now))
		}
		return
	}

	slot, exists := q.store.Find(a.NAME, rtype, class, "")
	newData := string(a.RDATA)
	if exists {
		q.store.Update(slot, func(r *cache.Record) {
			if cur, _ := q.pool.Get(r.RDataIndex); cur != newData {
				q.pool.Release(r.RDataIndex)
				r.RDataIndex = q.pool.Intern(newData, false)
			}
			r.OriginalTTL = a.TTL
			r.ExpiresAt = now.Add(time.Duration(a.TTL) * time.Second)
		})
	} else {
		slot = q.store.Insert(a.NAME, rtype, class, false, newData, a.TTL, "")
	}
	q.querierFSM.OnAnswer(slot, now)
}

func (q *Querier) cleanupLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			if q.rateLimiter != nil {
				q.rateLimiter.Cleanup()
			}
		}
	}
}

// Close gracefully shuts down the Querier and releases resources. Calling
// Close more than once is safe: the event loop and response channel are
// only torn down on the first call, but the underlying transport's own
// Close is invoked every time so its idempotency (or lack of it) is not
// masked.
func (q *Querier) Close() error {
	q.closeOnce.Do(func() {
		q.cancel()
		q.wg.Wait()
		close(q.responseChan)
	})

	return q.transport.Close()
}
