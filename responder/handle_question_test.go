package responder

import (
	"context"
	"testing"
	"time"

	"github.com/joshuafuller/beacon/internal/cache"
	"github.com/joshuafuller/beacon/internal/fsm"
	"github.com/joshuafuller/beacon/internal/message"
	"github.com/joshuafuller/beacon/internal/pool"
	"github.com/joshuafuller/beacon/internal/protocol"
	"github.com/joshuafuller/beacon/internal/records"
	internalresponder "github.com/joshuafuller/beacon/internal/responder"
	"github.com/joshuafuller/beacon/internal/timer"
	"github.com/joshuafuller/beacon/internal/transport"
)

// newTestResponder builds a Responder around a MockTransport, bypassing
// New()'s real socket/interface enumeration so HandleQuestion's record
// assembly can be tested directly against the cache.
func newTestResponder(t *testing.T) (*Responder, *transport.MockTransport) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	p := pool.New()
	store := cache.NewStore(p)
	wheel := timer.New()
	mock := transport.NewMockTransport()

	r := &Responder{
		ctx:          ctx,
		cancel:       cancel,
		transport:    mock,
		pool:         p,
		store:        store,
		wheel:        wheel,
		fsm:          fsm.NewResponder(store, wheel),
		registry:     internalresponder.NewRegistry(),
		hostname:     "host.local",
		serviceSlots: make(map[string][]cache.Slot),
		recordSet:    records.NewRecordSet(),
	}
	return r, mock
}

// insertValid inserts a record directly into Valid state, bypassing the
// probe/announce sequence HandleQuestion doesn't exercise.
func insertValid(t *testing.T, r *Responder, name string, rtype protocol.RecordType, unique bool, rdata string, ttl uint32) cache.Slot {
	t.Helper()
	now := time.Now()
	slot := r.store.Insert(name, rtype, uint16(protocol.ClassIN), unique, rdata, ttl, "")
	r.execute(r.fsm.Start(slot, unique, now))
	if r.fsm.State(slot) == fsm.StateProbing {
		// Shared records (PTR) go straight to Valid; unique records
		// require the probe window. Advance the wheel deterministically
		// to flush through probing/announcing to Valid.
		for i := 0; i < 10 && r.fsm.State(slot) != fsm.StateValid; i++ {
			for _, id := range r.wheel.Due(time.Now().Add(10 * time.Second)) {
				s, _ := fsm.DecodeTimerID(id)
				if s == slot {
					r.execute(r.fsm.Advance(s, time.Now()))
				}
			}
		}
	}
	return slot
}

func ptrRDATA(t *testing.T, instanceName, serviceType string) []byte {
	t.Helper()
	data, err := message.EncodeServiceInstanceName(instanceName, serviceType)
	if err != nil {
		t.Fatalf("EncodeServiceInstanceName: %v", err)
	}
	return data
}

func TestHandleQuestion_PTRResponse_IncludesSRVAndTXTAsAdditional(t *testing.T) {
	r, mock := newTestResponder(t)

	serviceType := "_http._tcp.local"
	instance := "My Printer." + serviceType

	insertValid(t, r, serviceType, protocol.RecordTypePTR, false, string(ptrRDATA(t, "My Printer", serviceType)), 120)
	insertValid(t, r, instance, protocol.RecordTypeTXT, true, "\x00", 120)

	hostnameEncoded, err := message.EncodeName("host.local")
	if err != nil {
		t.Fatalf("EncodeName: %v", err)
	}
	srvData := append([]byte{0, 0, 0, 0, 0x1F, 0x90}, hostnameEncoded...) // port 8080
	insertValid(t, r, instance, protocol.RecordTypeSRV, true, string(srvData), 120)
	insertValid(t, r, "host.local", protocol.RecordTypeA, true, string([]byte{192, 168, 1, 50}), 120)

	query := &message.DNSMessage{Header: message.DNSHeader{}}
	r.HandleQuestion(message.Question{QNAME: serviceType, QTYPE: uint16(protocol.RecordTypePTR)}, query, nil)

	if len(mock.SendCalls()) != 1 {
		t.Fatalf("Send calls = %d, want 1", len(mock.SendCalls()))
	}

	parsed, err := message.ParseMessage(mock.SendCalls()[0].Packet)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(parsed.Answers) != 1 || parsed.Answers[0].TYPE != uint16(protocol.RecordTypePTR) {
		t.Fatalf("Answers = %+v, want single PTR", parsed.Answers)
	}
	if len(parsed.Additionals) != 3 {
		t.Fatalf("Additionals = %d, want 3 (SRV, TXT, A)", len(parsed.Additionals))
	}
}

func TestHandleQuestion_RateLimited_SecondImmediateQueryGetsNoResponse(t *testing.T) {
	r, mock := newTestResponder(t)
	serviceType := "_http._tcp.local"
	insertValid(t, r, serviceType, protocol.RecordTypePTR, false, string(ptrRDATA(t, "My Printer", serviceType)), 120)

	query := &message.DNSMessage{Header: message.DNSHeader{}}
	r.HandleQuestion(message.Question{QNAME: serviceType, QTYPE: uint16(protocol.RecordTypePTR)}, query, nil)
	r.HandleQuestion(message.Question{QNAME: serviceType, QTYPE: uint16(protocol.RecordTypePTR)}, query, nil)

	if len(mock.SendCalls()) != 1 {
		t.Fatalf("Send calls = %d, want 1 (second query within 1s rate-limit window)", len(mock.SendCalls()))
	}
}
