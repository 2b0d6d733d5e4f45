// Package eventloop implements the single cooperative scheduler described in
// spec.md §9: one goroutine owns a reprogrammable time.Timer against
// timer.Wheel's earliest deadline, and the same goroutine drains inbound
// packets, so FSM state (internal/fsm) never needs its own lock beyond
// internal/cache.Store's.
//
// This replaces the teacher's per-feature goroutines (internal/state's
// Prober/Announcer each ran their own time.Sleep loop;
// responder/querier.go's receiveLoop ran independently with no timer
// coordination at all) with one loop per side that multiplexes both
// concerns, matching the receiveLoop's existing shape
// (context.WithTimeout-bounded Receive calls feeding a buffered channel) but
// adding the reprogrammable-timer half spec.md §9 asks for.
package eventloop

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/joshuafuller/beacon/internal/timer"
	"github.com/joshuafuller/beacon/internal/transport"
)

// Packet is one inbound datagram handed to OnPacket.
type Packet struct {
	Data []byte
	Src  net.Addr
}

// Loop drives a timer.Wheel and a transport.Transport's receive side from a
// single goroutine.
type Loop struct {
	wheel     *timer.Wheel
	transport transport.Transport
	onTick    func(id timer.ID, now time.Time)
	onPacket  func(Packet)

	packets chan Packet
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates a Loop. onTick is called once per timer.ID returned by
// wheel.Due, in the order Due returned them. onPacket is called once per
// datagram received on tr. Both callbacks run on the Loop's own goroutine,
// never concurrently with each other.
func New(wheel *timer.Wheel, tr transport.Transport, onTick func(timer.ID, time.Time), onPacket func(Packet)) *Loop {
	return &Loop{
		wheel:     wheel,
		transport: tr,
		onTick:    onTick,
		onPacket:  onPacket,
		packets:   make(chan Packet, 64),
		stop:      make(chan struct{}),
	}
}

// Run blocks until ctx is canceled, processing timer fires and inbound
// packets as they arrive. Call it from its own goroutine.
func (l *Loop) Run(ctx context.Context) {
	l.wg.Add(1)
	go l.receiveLoop(ctx)
	defer l.wg.Wait()
	defer close(l.stop)

	wakeup := time.NewTimer(time.Hour)
	defer wakeup.Stop()
	l.reprogram(wakeup)

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-l.packets:
			l.onPacket(p)
			l.reprogram(wakeup)
		case <-wakeup.C:
			now := time.Now()
			for _, id := range l.wheel.Due(now) {
				l.onTick(id, now)
			}
			l.reprogram(wakeup)
		}
	}
}

// reprogram resets wakeup to fire at the wheel's current earliest deadline,
// per spec.md §9's "single reprogrammable timer" design: the loop never
// polls on a fixed period, only on the next deadline that actually exists.
func (l *Loop) reprogram(wakeup *time.Timer) {
	if !wakeup.Stop() {
		select {
		case <-wakeup.C:
		default:
		}
	}
	if at, ok := l.wheel.Earliest(); ok {
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		wakeup.Reset(d)
		return
	}
	wakeup.Reset(time.Hour)
}

// receiveLoop continuously calls transport.Receive with a short deadline so
// it can observe ctx cancellation promptly, handing each datagram to the
// main Run loop over l.packets. Grounded on
// querier/querier.go's receiveLoop, which uses the same bounded-Receive
// pattern against a buffered channel.
func (l *Loop) receiveLoop(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-l.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		rctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		data, src, err := l.transport.Receive(rctx)
		cancel()
		if err != nil {
			continue
		}

		select {
		case l.packets <- Packet{Data: data, Src: src}:
		case <-l.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
