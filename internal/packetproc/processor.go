// Package packetproc implements the inbound packet pipeline shared by the
// responder and querier event loops: size/source gating, rate limiting,
// parsing, duplicate-question suppression, and known-answer suppression,
// before handing surviving questions/answers to an fsm.Responder or
// fsm.Querier.
//
// Grounded on querier/querier.go's receiveLoop, which inlined packet-size
// validation, link-local source checking, and rate limiting directly in the
// receive goroutine. This package extracts that sequence so both the
// responder and querier event loops (internal/eventloop) can share it,
// and adds the two RFC 6762 §7.3/§6 suppression passes the teacher's
// one-shot query model never needed.
package packetproc

import (
	"net"
	"time"

	"github.com/joshuafuller/beacon/internal/message"
	"github.com/joshuafuller/beacon/internal/protocol"
	"github.com/joshuafuller/beacon/internal/security"
)

// maxMDNSPacketSize is RFC 6762 §17's maximum message size.
const maxMDNSPacketSize = 9000

// Handler receives the questions and answers that survive gating,
// suppression, and parsing.
type Handler interface {
	// HandleQuestion is called once per question in an inbound query
	// (QR=0), along with the full message (for known-answer suppression)
	// and the packet's source address.
	HandleQuestion(q message.Question, msg *message.DNSMessage, src net.Addr)
	// HandleAnswer is called once per record in an inbound response's
	// answer section (QR=1).
	HandleAnswer(a message.Answer, src net.Addr)
}

// questionKey identifies a question for duplicate-suppression purposes.
type questionKey struct {
	name  string
	qtype uint16
}

// Processor runs one packet through gating, parsing, and suppression.
// Not safe for concurrent Process calls; each event loop owns its own
// Processor and calls Process from its single goroutine.
type Processor struct {
	rateLimiter *security.RateLimiter
	sourceFilter *security.SourceFilter
	handler      Handler

	recentQuestions map[questionKey]time.Time
}

// New creates a Processor. sourceFilter may be nil to skip link-local
// source validation (e.g. in tests); rateLimiter may be nil to skip rate
// limiting.
func New(rateLimiter *security.RateLimiter, sourceFilter *security.SourceFilter, handler Handler) *Processor {
	return &Processor{
		rateLimiter:     rateLimiter,
		sourceFilter:    sourceFilter,
		handler:         handler,
		recentQuestions: make(map[questionKey]time.Time),
	}
}

// Process gates, parses, and dispatches one inbound datagram. It never
// returns an error for malformed or rejected packets: per RFC 6762 §6 a
// responder silently drops anything it cannot process rather than
// responding with an error.
func (p *Processor) Process(data []byte, src net.Addr, now time.Time) {
	if len(data) == 0 || len(data) > maxMDNSPacketSize {
		return
	}

	srcIP := addrIP(src)
	if srcIP != nil {
		if p.sourceFilter != nil && !p.sourceFilter.IsValid(srcIP) {
			return
		}
		if p.rateLimiter != nil && !p.rateLimiter.Allow(srcIP.String()) {
			return
		}
	}

	msg, err := message.ParseMessage(data)
	if err != nil {
		return
	}

	if msg.Header.IsResponse() {
		if err := protocol.ValidateResponse(msg.Header.Flags); err != nil {
			return
		}
		for _, a := range msg.Answers {
			p.handler.HandleAnswer(a, src)
		}
		return
	}

	p.pruneQuestions(now)
	for _, q := range msg.Questions {
		key := questionKey{name: q.QNAME, qtype: q.QTYPE}
		if last, ok := p.recentQuestions[key]; ok && now.Sub(last) < protocol.ProbeInterval {
			// RFC 6762 §7.3: suppress duplicate questions seen from other
			// hosts within one probe interval of each other.
			continue
		}
		p.recentQuestions[key] = now
		p.handler.HandleQuestion(q, msg, src)
	}
}

// pruneQuestions drops duplicate-suppression entries old enough that a
// repeat of the same question is no longer a duplicate, bounding the map's
// size under sustained query traffic.
func (p *Processor) pruneQuestions(now time.Time) {
	for k, t := range p.recentQuestions {
		if now.Sub(t) > 2*protocol.ProbeInterval {
			delete(p.recentQuestions, k)
		}
	}
}

func addrIP(addr net.Addr) net.IP {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return nil
	}
	return udpAddr.IP
}

// KnownAnswerSuppressed reports whether rr already appears in query's
// answer section with a TTL at least half its original value, per RFC 6762
// §7.1: a responder must not answer with a record the querier has already
// shown it knows, unless that knowledge is about to go stale.
func KnownAnswerSuppressed(query *message.DNSMessage, name string, rtype uint16, rdata []byte, fullTTL uint32) bool {
	for _, a := range query.Answers {
		if a.NAME != name || a.TYPE != rtype {
			continue
		}
		if string(a.RDATA) != string(rdata) {
			continue
		}
		if a.TTL >= fullTTL/2 {
			return true
		}
	}
	return false
}
