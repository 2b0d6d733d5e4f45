// Package responder implements the public mDNS service-registration API,
// backed by internal/cache's record arena, internal/fsm's per-record
// responder state machine, and internal/eventloop's single cooperative
// scheduler.
package responder

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/joshuafuller/beacon/internal/cache"
	"github.com/joshuafuller/beacon/internal/eventloop"
	"github.com/joshuafuller/beacon/internal/fsm"
	"github.com/joshuafuller/beacon/internal/message"
	"github.com/joshuafuller/beacon/internal/packetproc"
	"github.com/joshuafuller/beacon/internal/pool"
	"github.com/joshuafuller/beacon/internal/protocol"
	"github.com/joshuafuller/beacon/internal/records"
	internalresponder "github.com/joshuafuller/beacon/internal/responder"
	"github.com/joshuafuller/beacon/internal/security"
	"github.com/joshuafuller/beacon/internal/timer"
	"github.com/joshuafuller/beacon/internal/transport"
)

// maxRenameAttempts bounds the RFC 6762 §9 rename-and-retry loop.
const maxRenameAttempts = 10

// registerPollInterval and registerTimeout bound how long Register() waits
// for the asynchronous probe/announce sequence the event loop drives before
// giving up. Probing (3×250ms) plus announcing (up to 3 bursts capped at
// 8s) can take several seconds in the worst case.
const (
	registerPollInterval = 20 * time.Millisecond
	registerTimeout      = 12 * time.Second
)

var multicastAddr = protocol.MulticastGroupIPv4()

// Responder manages mDNS service registration and response per RFC 6762.
type Responder struct {
	ctx    context.Context
	cancel context.CancelFunc

	transport transport.Transport
	pool      *pool.Pool
	store     *cache.Store
	wheel     *timer.Wheel
	fsm       *fsm.Responder
	loop      *eventloop.Loop
	proc      *packetproc.Processor

	hostname string
	ipv4     []byte

	registry *internalresponder.Registry

	mu           sync.Mutex
	serviceSlots map[string][]cache.Slot // instance name -> owned slots

	recordSet *records.RecordSet // per-record multicast rate limiting, RFC 6762 §6.2

	injectConflict          bool                         // test hook: force every probe to lose its tiebreak
	injectSimultaneousProbe *simultaneousProbeInjection // test hook: resolve probing via an injected tiebreak

	// lastRegisteredSlots is the set of slots from the most recent
	// insertRecordSet call. A single Register() starts every one of a
	// service's records probing/announcing at the same instant, so their
	// FSM timers fire together; probe/announce grouping and the round
	// coalescing below use this set to turn that burst of per-record FSM
	// actions back into the one probe/announce datagram RFC 6762 §8
	// describes per round.
	lastRegisteredSlots []cache.Slot

	// Test/observability hooks (contract tests capture probe/announce
	// traffic through these rather than sniffing the wire).
	hookMu               sync.Mutex
	onProbeCallback      func()
	onAnnounceCallback   func()
	lastProbeMessage     []byte
	lastAnnounceMessage  []byte
	lastAnnouncedRecords []*ResourceRecord
	lastAnnounceDest     string
	lastProbeRoundAt     time.Time
	lastAnnounceRoundAt  time.Time
}

// probeCoalesceWindow and announceCoalesceWindow collapse the burst of
// per-record FSM actions a single Register() round produces (one per
// probing/announcing record, all scheduled off the same timestamp) back
// into a single wire datagram and a single OnProbe/OnAnnounce callback per
// round. Both are well under the 250ms probe and 1s announce spacing they
// sit inside, so they never eat into real round-to-round gaps.
const (
	probeCoalesceWindow    = 50 * time.Millisecond
	announceCoalesceWindow = 50 * time.Millisecond
)

// ResourceRecord is the public alias for the resource records a Responder
// announces, re-exported so callers (and contract tests) can inspect
// GetLastAnnouncedRecords() without importing internal/message directly.
type ResourceRecord = message.ResourceRecord

// simultaneousProbeInjection captures a forced tiebreak outcome for the
// RFC 6762 §8.2.1 simultaneous-probe test hook.
type simultaneousProbeInjection struct {
	ourData, theirData []byte
}

// responderInterfaceID is the RecordSet interface key this responder rate
// limits against. UDPv4Transport sends once across all joined interfaces
// rather than exposing per-interface sends, so one key covers the whole
// responder instead of one per net.Interface.
const responderInterfaceID = "default"

// New creates a new mDNS responder and starts its event loop.
func New(ctx context.Context, opts ...Option) (*Responder, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	hostname += ".local"

	ifaces, err := transport.DefaultInterfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate interfaces: %w", err)
	}

	tr, err := transport.NewUDPv4Transport(ifaces)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)

	p := pool.New()
	store := cache.NewStore(p)
	wheel := timer.New()

	r := &Responder{
		ctx:          loopCtx,
		cancel:       cancel,
		transport:    tr,
		pool:         p,
		store:        store,
		wheel:        wheel,
		fsm:          fsm.NewResponder(store, wheel),
		registry:     internalresponder.NewRegistry(),
		hostname:     hostname,
		serviceSlots: make(map[string][]cache.Slot),
		recordSet:    records.NewRecordSet(),
	}

	ipv4, err := getLocalIPv4()
	if err == nil {
		r.ipv4 = ipv4
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			cancel()
			_ = tr.Close()
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	rateLimiter := security.NewRateLimiter(100, 60*time.Second, 10000)
	r.proc = packetproc.New(rateLimiter, nil, r)
	r.loop = eventloop.New(wheel, tr, r.onTick, r.onPacket)
	go r.loop.Run(loopCtx)

	return r, nil
}

// Register registers a service with probing and announcing per RFC 6762 §8.
// It blocks until the service reaches the Valid state (answering queries)
// or all rename attempts are exhausted.
func (r *Responder) Register(service *Service) error {
	if service == nil {
		return fmt.Errorf("service cannot be nil")
	}
	if err := service.Validate(); err != nil {
		return err
	}
	if service.Hostname == "" {
		service.Hostname = r.hostname
	}

	ipv4 := r.ipv4
	if ipv4 == nil {
		var err error
		ipv4, err = getLocalIPv4()
		if err != nil {
			return fmt.Errorf("failed to get local IPv4: %w", err)
		}
	}

	for attempt := 1; attempt <= maxRenameAttempts; attempt++ {
		serviceName := service.InstanceName + "." + service.ServiceType
		if _, exists := r.registry.Get(service.InstanceName); exists {
			return fmt.Errorf("service %q already registered", service.InstanceName)
		}

		info := &records.ServiceInfo{
			InstanceName: service.InstanceName,
			ServiceType:  service.ServiceType,
			Hostname:     service.Hostname,
			Port:         service.Port,
			IPv4Address:  ipv4,
			TXTRecords:   service.TXTRecords,
		}
		recordSet := records.BuildRecordSet(info)

		slots := r.insertRecordSet(recordSet)
		suspended := r.runToValid(slots)

		if suspended {
			r.removeSlots(slots)
			if attempt >= maxRenameAttempts {
				return fmt.Errorf("max rename attempts (%d) exceeded for service %q", maxRenameAttempts, service.InstanceName)
			}
			service.Rename()
			continue
		}

		r.mu.Lock()
		r.serviceSlots[service.InstanceName] = slots
		r.mu.Unlock()

		internalSvc := &internalresponder.Service{
			InstanceName: service.InstanceName,
			ServiceType:  service.ServiceType,
			Port:         service.Port,
			TXT:          service.TXTRecords,
		}
		if err := r.registry.Register(internalSvc); err != nil {
			return fmt.Errorf("failed to add to registry: %w", err)
		}
		_ = serviceName
		return nil
	}

	return fmt.Errorf("unexpected: register loop completed without result")
}

// insertRecordSet interns and inserts every record in recordSet into the
// store, starts its FSM, and executes any action the FSM returns
// immediately (shared records like PTR go straight to Valid and announce).
func (r *Responder) insertRecordSet(recordSet []*message.ResourceRecord) []cache.Slot {
	slots := make([]cache.Slot, 0, len(recordSet))
	now := time.Now()

	r.hookMu.Lock()
	r.lastAnnouncedRecords = recordSet
	r.hookMu.Unlock()

	for _, rr := range recordSet {
		unique := rr.CacheFlush
		slot := r.store.Insert(rr.Name, rr.Type, uint16(rr.Class), unique, string(rr.Data), rr.TTL, "")
		slots = append(slots, slot)

		if r.injectConflict && unique {
			// Test hook: immediately lose the tiebreak once probing starts.
			actions := r.fsm.Start(slot, unique, now)
			r.execute(actions)
			r.execute(r.fsm.OnConflict(slot, false, now))
			continue
		}

		if r.injectSimultaneousProbe != nil && unique {
			// Test hook: resolve the RFC 6762 §8.2.1 tiebreak with the
			// injected data rather than waiting for a real competing probe.
			weWin := fsm.CompareRData(r.injectSimultaneousProbe.ourData, r.injectSimultaneousProbe.theirData)
			actions := r.fsm.Start(slot, unique, now)
			r.execute(actions)
			r.execute(r.fsm.OnConflict(slot, weWin, now))
			continue
		}

		actions := r.fsm.Start(slot, unique, now)
		r.execute(actions)
	}

	r.hookMu.Lock()
	r.lastRegisteredSlots = slots
	r.hookMu.Unlock()

	return slots
}

// runToValid polls until every slot reaches StateValid (success) or any
// slot reaches StateSuspended (a lost conflict, reported as the return
// value true), bounded by registerTimeout.
func (r *Responder) runToValid(slots []cache.Slot) (suspended bool) {
	deadline := time.Now().Add(registerTimeout)
	for time.Now().Before(deadline) {
		allValid := true
		for _, slot := range slots {
			switch r.fsm.State(slot) {
			case fsm.StateSuspended:
				return true
			case fsm.StateValid:
			default:
				allValid = false
			}
		}
		if allValid {
			return false
		}
		time.Sleep(registerPollInterval)
	}
	return true
}

func (r *Responder) removeSlots(slots []cache.Slot) {
	for _, slot := range slots {
		r.store.Delete(slot)
	}
}

// onTick is called by the event loop for every timer.ID due on the wheel.
func (r *Responder) onTick(id timer.ID, now time.Time) {
	slot, _ := fsm.DecodeTimerID(id)
	r.execute(r.fsm.Advance(slot, now))
}

// onPacket is called by the event loop for every inbound datagram.
func (r *Responder) onPacket(p eventloop.Packet) {
	r.proc.Process(p.Data, p.Src, time.Now())
}

// execute sends the wire-level effect of each FSM action.
func (r *Responder) execute(actions []fsm.Action) {
	for _, a := range actions {
		switch a.Kind {
		case fsm.ActionSendProbe:
			r.sendProbe(a.Slot)
		case fsm.ActionSendAnnounce:
			r.sendAnnounce(a.Slot)
		case fsm.ActionSendGoodbye:
			r.sendGoodbye(a.Slot)
		case fsm.ActionDeleted, fsm.ActionNone:
		}
	}
}

// sendProbe sends a probe query for slot per RFC 6762 §8.1: a question
// asking "does anyone already have this name" plus, in the Authority
// section, the proposed record(s) for every other record from the same
// Register() round still Probing — so a simultaneously-probing peer can
// run the RFC 6762 §8.2.1 tiebreak against our full proposed set.
//
// Every record in a round starts probing off the same timestamp, so their
// per-record FSMs fire their probe actions within microseconds of each
// other; probeCoalesceWindow collapses that burst into the single
// datagram and single OnProbe callback RFC 6762 §8.1 describes per round.
func (r *Responder) sendProbe(slot cache.Slot) {
	rec, ok := r.store.Get(slot)
	if !ok {
		return
	}

	r.hookMu.Lock()
	if time.Since(r.lastProbeRoundAt) < probeCoalesceWindow {
		r.hookMu.Unlock()
		return
	}
	r.lastProbeRoundAt = time.Now()
	round := r.lastRegisteredSlots
	r.hookMu.Unlock()

	var authority []*message.ResourceRecord
	for _, s := range round {
		if r.fsm.State(s) != fsm.StateProbing {
			continue
		}
		other, ok := r.store.Get(s)
		if !ok {
			continue
		}
		authority = append(authority, r.toResourceRecord(other))
	}
	if len(authority) == 0 {
		authority = []*message.ResourceRecord{r.toResourceRecord(rec)}
	}

	query, err := message.BuildQueryWithAuthority(rec.Name, uint16(protocol.RecordTypeANY), authority)
	if err != nil {
		return
	}
	_ = r.transport.Send(r.ctx, query, multicastAddr)

	r.hookMu.Lock()
	r.lastProbeMessage = query
	cb := r.onProbeCallback
	r.hookMu.Unlock()
	if cb != nil {
		cb()
	}
}

// sendAnnounce sends an announcement per RFC 6762 §8.3. Like sendProbe, it
// coalesces the burst of per-record FSM announce actions a single
// Register() round produces into one packet carrying every record from the
// round that has reached Announcing or Valid, and one OnAnnounce callback.
func (r *Responder) sendAnnounce(slot cache.Slot) {
	rec, ok := r.store.Get(slot)
	if !ok {
		return
	}
	rr := r.toResourceRecord(rec)
	// RFC 6762 §6.2 allows the 250ms probe-defense exception whenever a
	// unique record announces; ordinary re-announcements still wait out the
	// full 1s window via CanMulticast.
	if !r.recordSet.CanMulticastProbeDefense(rr, responderInterfaceID) {
		return
	}

	r.hookMu.Lock()
	if time.Since(r.lastAnnounceRoundAt) < announceCoalesceWindow {
		r.hookMu.Unlock()
		return
	}
	r.lastAnnounceRoundAt = time.Now()
	round := r.lastRegisteredSlots
	r.hookMu.Unlock()

	var batch []*message.ResourceRecord
	for _, s := range round {
		state := r.fsm.State(s)
		if state != fsm.StateAnnouncing && state != fsm.StateValid {
			continue
		}
		other, ok := r.store.Get(s)
		if !ok {
			continue
		}
		batch = append(batch, r.toResourceRecord(other))
	}
	if len(batch) == 0 {
		batch = []*message.ResourceRecord{rr}
	}

	packet, err := message.BuildResponse(batch)
	if err != nil {
		return
	}
	if err := r.transport.Send(r.ctx, packet, multicastAddr); err != nil {
		return
	}
	for _, b := range batch {
		r.recordSet.RecordMulticast(b, responderInterfaceID)
	}

	r.hookMu.Lock()
	r.lastAnnounceMessage = packet
	r.lastAnnounceDest = multicastAddr.String()
	cb := r.onAnnounceCallback
	r.hookMu.Unlock()
	if cb != nil {
		cb()
	}
}

func (r *Responder) sendGoodbye(slot cache.Slot) {
	rec, ok := r.store.Get(slot)
	if !ok {
		return
	}
	rr := r.toResourceRecord(rec)
	rr.TTL = protocol.GoodbyeTTL
	packet, err := message.BuildResponse([]*message.ResourceRecord{rr})
	if err != nil {
		return
	}
	if err := r.transport.Send(r.ctx, packet, multicastAddr); err == nil {
		r.recordSet.RecordMulticast(rr, responderInterfaceID)
	}
}

func (r *Responder) toResourceRecord(rec cache.Record) *message.ResourceRecord {
	rdata, _ := r.pool.Get(rec.RDataIndex)
	return &message.ResourceRecord{
		Name:       rec.Name,
		Type:       rec.Type,
		Class:      protocol.ClassIN,
		TTL:        rec.OriginalTTL,
		Data:       []byte(rdata),
		CacheFlush: rec.Unique,
	}
}

// HandleQuestion implements packetproc.Handler: answer any question that
// matches a record we own, per RFC 6762 §6. Probing records never answer
// (they don't own the name yet); only Announcing/Valid records do.
//
// RFC 6762 §6 also directs a responder to pack likely-to-be-needed records
// into the Additional section so the querier doesn't need a second
// round-trip: a PTR answer carries the matching instance's SRV/TXT/A
// records, truncated (Additional section only; Answers are never dropped)
// if the packet would exceed the 9000-byte mDNS limit.
func (r *Responder) HandleQuestion(q message.Question, msg *message.DNSMessage, _ net.Addr) {
	slots := r.store.ByName(q.QNAME)
	if len(slots) == 0 {
		return
	}

	var answers, additionals []*message.ResourceRecord
	for _, slot := range slots {
		rec, ok := r.store.Get(slot)
		if !ok {
			continue
		}
		if q.QTYPE != uint16(protocol.RecordTypeANY) && uint16(rec.Type) != q.QTYPE {
			continue
		}
		state := r.fsm.State(slot)
		if state != fsm.StateAnnouncing && state != fsm.StateValid {
			continue
		}
		rr := r.toResourceRecord(rec)
		if packetproc.KnownAnswerSuppressed(msg, rr.Name, uint16(rr.Type), rr.Data, rr.TTL) {
			continue
		}
		if !r.recordSet.CanMulticast(rr, responderInterfaceID) {
			continue
		}
		answers = append(answers, rr)
		if rec.Type == protocol.RecordTypePTR {
			additionals = append(additionals, r.additionalsForPTR(rr, msg)...)
		}
	}
	if len(answers) == 0 {
		return
	}

	additionals = truncateAdditionals(answers, additionals, transport.MaxPacketSize)

	packet, err := message.BuildResponseWithAdditional(answers, additionals)
	if err != nil {
		return
	}
	if err := r.transport.Send(r.ctx, packet, multicastAddr); err != nil {
		return
	}
	for _, rr := range answers {
		r.recordSet.RecordMulticast(rr, responderInterfaceID)
	}
	for _, rr := range additionals {
		r.recordSet.RecordMulticast(rr, responderInterfaceID)
	}
}

// additionalsForPTR resolves the SRV, TXT, and A records for the service
// instance a PTR answer points to, per RFC 6763 §6. Records already in the
// querier's known-answer list (per msg) are suppressed same as the Answer
// section (RFC 6762 §7.1).
func (r *Responder) additionalsForPTR(ptr *message.ResourceRecord, msg *message.DNSMessage) []*message.ResourceRecord {
	instanceName, err := message.ParseName(ptr.Data, 0)
	if err != nil {
		return nil
	}

	var out []*message.ResourceRecord
	var hostname string
	for _, slot := range r.store.ByName(instanceName) {
		rec, ok := r.store.Get(slot)
		if !ok {
			continue
		}
		if rec.Type != protocol.RecordTypeSRV && rec.Type != protocol.RecordTypeTXT {
			continue
		}
		if r.fsm.State(slot) != fsm.StateValid && r.fsm.State(slot) != fsm.StateAnnouncing {
			continue
		}
		rr := r.toResourceRecord(rec)
		if rec.Type == protocol.RecordTypeSRV {
			if target, _, err := message.ParseName(rr.Data, 4); err == nil {
				hostname = target
			}
		}
		if packetproc.KnownAnswerSuppressed(msg, rr.Name, uint16(rr.Type), rr.Data, rr.TTL) {
			continue
		}
		out = append(out, rr)
	}

	if hostname != "" {
		for _, slot := range r.store.ByName(hostname) {
			rec, ok := r.store.Get(slot)
			if !ok || (rec.Type != protocol.RecordTypeA && rec.Type != protocol.RecordTypeAAAA) {
				continue
			}
			if r.fsm.State(slot) != fsm.StateValid && r.fsm.State(slot) != fsm.StateAnnouncing {
				continue
			}
			rr := r.toResourceRecord(rec)
			if packetproc.KnownAnswerSuppressed(msg, rr.Name, uint16(rr.Type), rr.Data, rr.TTL) {
				continue
			}
			out = append(out, rr)
		}
	}

	return out
}

// truncateAdditionals drops additional records (lowest priority first, in
// encounter order) until answers+additionals fit under limit, never
// touching answers themselves. Estimate per record mirrors the wire cost:
// name/type/class/ttl/rdlength overhead plus actual RDATA length.
func truncateAdditionals(answers, additionals []*message.ResourceRecord, limit int) []*message.ResourceRecord {
	size := 12 // header
	for _, rr := range answers {
		size += estimateRecordSize(rr)
	}

	kept := make([]*message.ResourceRecord, 0, len(additionals))
	for _, rr := range additionals {
		cost := estimateRecordSize(rr)
		if size+cost > limit {
			continue
		}
		size += cost
		kept = append(kept, rr)
	}
	return kept
}

func estimateRecordSize(rr *message.ResourceRecord) int {
	return 50 + 10 + len(rr.Data) // name (compressed, ~50) + fixed fields (10) + rdata
}

// HandleAnswer implements packetproc.Handler: detect a conflict when
// another host announces a unique record we also hold with different
// RDATA, per RFC 6762 §9.
//
// While a record is still Probing, RFC 6762 §8.1/§8.2 treats any answer
// for its owner name as a potential conflict regardless of RR type (a peer
// asserting an A record for a name we're probing a SRV for is just as much
// a conflict as a matching-type answer), so that case matches on name+class
// alone. Once a record is past Probing, type is included in the match: an
// exact RDATA clash is only meaningful between records of the same kind.
func (r *Responder) HandleAnswer(a message.Answer, _ net.Addr) {
	slot, ok := r.findProbingConflictCandidate(a.NAME)
	if !ok {
		slot, ok = r.store.FindAny(a.NAME, protocol.RecordType(a.TYPE), uint16(protocol.ClassIN))
		if !ok {
			return
		}
	}
	rec, ok := r.store.Get(slot)
	if !ok || !rec.Unique {
		return
	}
	ourData, _ := r.pool.Get(rec.RDataIndex)
	if ourData == string(a.RDATA) {
		return // Same data, not a conflict.
	}
	weWin := fsm.CompareRData([]byte(ourData), a.RDATA)
	r.execute(r.fsm.OnConflict(slot, weWin, time.Now()))
}

// findProbingConflictCandidate returns the first unique record owned by
// name that is still Probing, ignoring RR type per RFC 6762 §8.1/§8.2.
func (r *Responder) findProbingConflictCandidate(name string) (cache.Slot, bool) {
	for _, slot := range r.store.ByName(name) {
		if r.fsm.State(slot) != fsm.StateProbing {
			continue
		}
		rec, ok := r.store.Get(slot)
		if !ok || !rec.Unique {
			continue
		}
		return slot, true
	}
	return 0, false
}

// Unregister unregisters a service and sends goodbye packets per RFC 6762 §10.1.
func (r *Responder) Unregister(serviceID string) error {
	svc, found := r.GetService(serviceID)
	if !found {
		return fmt.Errorf("service %q not registered", serviceID)
	}

	r.mu.Lock()
	slots := r.serviceSlots[svc.InstanceName]
	delete(r.serviceSlots, svc.InstanceName)
	r.mu.Unlock()

	now := time.Now()
	for _, slot := range slots {
		r.execute(r.fsm.Goodbye(slot, now))
	}

	if err := r.registry.Remove(svc.InstanceName); err != nil {
		return fmt.Errorf("service %q not registered", serviceID)
	}
	return nil
}

// Close closes the responder and unregisters all services.
func (r *Responder) Close() error {
	services := r.registry.List()
	for _, instanceName := range services {
		_ = r.Unregister(instanceName)
	}

	r.cancel()

	if r.transport != nil {
		return r.transport.Close()
	}
	return nil
}

func getLocalIPv4() ([]byte, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipv4 := ipnet.IP.To4(); ipv4 != nil {
				return ipv4, nil
			}
		}
	}
	return nil, fmt.Errorf("no non-loopback IPv4 address found")
}

// InjectConflictDuringProbing is a test hook that forces every probe to
// lose its tiebreak, exercising the rename-and-retry loop.
func (r *Responder) InjectConflictDuringProbing(inject bool) {
	r.injectConflict = inject
}

// InjectSimultaneousProbe is a test hook for RFC 6762 §8.2.1: it resolves
// every probe's tiebreak by comparing ourData against theirData instead of
// waiting for a real competing probe, letting a test exercise either side
// of the lexicographic comparison.
func (r *Responder) InjectSimultaneousProbe(ourData, theirData []byte) {
	r.injectSimultaneousProbe = &simultaneousProbeInjection{ourData: ourData, theirData: theirData}
}

// OnProbe registers a callback invoked once per probe round (RFC 6762
// §8.1 sends three, 250ms apart).
func (r *Responder) OnProbe(callback func()) {
	r.hookMu.Lock()
	r.onProbeCallback = callback
	r.hookMu.Unlock()
}

// OnAnnounce registers a callback invoked once per announce round (RFC
// 6762 §8.3 sends at least two, 1s apart).
func (r *Responder) OnAnnounce(callback func()) {
	r.hookMu.Lock()
	r.onAnnounceCallback = callback
	r.hookMu.Unlock()
}

// GetLastProbeMessage returns the wire bytes of the most recently sent
// probe datagram.
func (r *Responder) GetLastProbeMessage() []byte {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	return r.lastProbeMessage
}

// GetLastAnnounceMessage returns the wire bytes of the most recently sent
// announce datagram.
func (r *Responder) GetLastAnnounceMessage() []byte {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	return r.lastAnnounceMessage
}

// GetLastAnnouncedRecords returns the full record set built for the most
// recent Register() call (PTR/SRV/TXT/A), independent of how many
// announce rounds have fired so far.
func (r *Responder) GetLastAnnouncedRecords() []*ResourceRecord {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	return r.lastAnnouncedRecords
}

// GetLastAnnounceDest returns the destination address of the most
// recently sent announce datagram, e.g. "224.0.0.251:5353".
func (r *Responder) GetLastAnnounceDest() string {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	return r.lastAnnounceDest
}

// GetService retrieves a registered service by service ID (instance name,
// or the full "Instance.ServiceType" form).
func (r *Responder) GetService(serviceID string) (*Service, bool) {
	if svc, found := r.registry.Get(serviceID); found {
		return &Service{
			InstanceName: svc.InstanceName,
			ServiceType:  svc.ServiceType,
			Port:         svc.Port,
			TXTRecords:   svc.TXT,
		}, true
	}

	for _, instanceName := range r.registry.List() {
		svc, found := r.registry.Get(instanceName)
		if !found {
			continue
		}
		if svc.InstanceName+"."+svc.ServiceType == serviceID {
			return &Service{
				InstanceName: svc.InstanceName,
				ServiceType:  svc.ServiceType,
				Port:         svc.Port,
				TXTRecords:   svc.TXT,
			}, true
		}
	}
	return nil, false
}

// UpdateService updates a registered service's TXT record without
// re-probing, per RFC 6762 §8.4: TXT content carries no identifying
// information, so changing it cannot create a naming conflict.
func (r *Responder) UpdateService(serviceID string, txtRecords map[string]string) error {
	svc, found := r.GetService(serviceID)
	if !found {
		return fmt.Errorf("service %q not found", serviceID)
	}

	internalSvc, found := r.registry.Get(svc.InstanceName)
	if !found {
		return fmt.Errorf("internal error: service %q in GetService but not in registry", svc.InstanceName)
	}
	internalSvc.TXT = txtRecords

	r.mu.Lock()
	slots := r.serviceSlots[svc.InstanceName]
	r.mu.Unlock()

	txtData := buildTXTWireData(txtRecords)
	for _, slot := range slots {
		rec, ok := r.store.Get(slot)
		if !ok || rec.Type != protocol.RecordTypeTXT {
			continue
		}
		r.store.Update(slot, func(rr *cache.Record) {
			r.pool.Release(rr.RDataIndex)
			rr.RDataIndex = r.pool.Intern(string(txtData), false)
		})
		r.sendAnnounce(slot)
	}
	return nil
}

func buildTXTWireData(txtRecords map[string]string) []byte {
	if len(txtRecords) == 0 {
		return []byte{0x00}
	}
	data := make([]byte, 0, 256)
	for key, value := range txtRecords {
		entry := key + "=" + value
		data = append(data, byte(len(entry)))
		data = append(data, []byte(entry)...)
	}
	return data
}
