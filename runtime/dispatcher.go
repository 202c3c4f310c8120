/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package runtime ties the wire codec, TP segmentation, transport set and
// service discovery state into the single cooperative event loop spec.md
// §4.5 describes: one goroutine polls SD, drains every bound transport,
// reassembles TP segments, and routes the result to either a pending-request
// completion slot or a registered handler.
package runtime

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/arunj123/go-someip/sd"
	"github.com/arunj123/go-someip/stats"
	"github.com/arunj123/go-someip/tp"
	"github.com/arunj123/go-someip/transport"
	"github.com/arunj123/go-someip/wire"
	"github.com/arunj123/go-someip/workerpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// defaultMTU is the conservative datagram size budget spec.md §4.5
	// assumes when deciding whether to TP-segment a request payload.
	defaultMTU = 1400
	// tpHeaderBytes is the combined main-header + TP-subheader overhead
	// (16 + 4) a TP-carried message pays per datagram.
	tpHeaderBytes = wire.HeaderSize + wire.TPHeaderSize

	defaultRequestTimeout = 2 * time.Second
	sdPollInterval        = 10 * time.Millisecond
	transportPollInterval = 2 * time.Millisecond
)

// Dispatcher is the runtime's central object: one per middleware instance.
type Dispatcher struct {
	clientID uint16

	mu       sync.RWMutex
	handlers map[uint16]Handler

	transports []transport.Transport

	sessions    *sessionAllocator
	pending     *pendingTable
	reassembler *tp.Reassembler

	SD   *sd.State
	pool pooler

	tcpMu      sync.Mutex
	tcpClients map[string]*transport.TCPClient
	tcpDial    singleflight.Group
	clientSF   singleflight.Group

	requestTimeout time.Duration
	maxPayload     int

	stats *stats.Stats

	log *logrus.Entry
}

// pooler is the subset of workerpool.Pool the dispatcher depends on, kept
// as an interface so tests can run without spinning up real goroutines.
type pooler interface {
	Submit(fn workerpool.Job)
	SubmitWithKey(key []byte, fn workerpool.Job)
}

// queueDepther is implemented by pooler values that can report their
// current backlog (workerpool.Pool does; test doubles need not).
type queueDepther interface {
	QueueDepth() int
}

// NewDispatcher builds a Dispatcher over an already-bound set of transports
// (UDP unicast sockets and/or TCP servers/clients) and a driven sd.State.
// clientID is this instance's SOME/IP client identifier, stamped on every
// request this dispatcher originates.
func NewDispatcher(clientID uint16, transports []transport.Transport, sdState *sd.State, pool pooler) *Dispatcher {
	return &Dispatcher{
		clientID:       clientID,
		handlers:       make(map[uint16]Handler),
		transports:     transports,
		sessions:       newSessionAllocator(),
		pending:        newPendingTable(),
		reassembler:    tp.NewReassembler(),
		SD:             sdState,
		pool:           pool,
		tcpClients:     make(map[string]*transport.TCPClient),
		requestTimeout: defaultRequestTimeout,
		maxPayload:     defaultMTU - tpHeaderBytes,
		log:            logrus.WithField("component", "runtime"),
	}
}

// WithRequestTimeout overrides the default 2s SendRequestAndWait deadline.
func (d *Dispatcher) WithRequestTimeout(timeout time.Duration) *Dispatcher {
	d.requestTimeout = timeout
	return d
}

// WithStats attaches a stats.Stats this dispatcher feeds from its request/
// reassembly/worker-pool hot paths, and hands the same instance to d.SD so
// SD's own counters are fed too.
func (d *Dispatcher) WithStats(st *stats.Stats) *Dispatcher {
	d.stats = st
	d.SD.WithStats(st)
	return d
}

// OfferService registers h as the handler for serviceID and announces the
// service over SD on offerOn, spec.md §4.4/§4.5.
func (d *Dispatcher) OfferService(serviceID, instanceID uint16, major uint8, minor uint32, endpoints []sd.Option, offerOn []string, timing sd.Timing, h Handler) {
	d.mu.Lock()
	d.handlers[serviceID] = h
	d.mu.Unlock()
	d.SD.OfferService(serviceID, instanceID, major, minor, endpoints, offerOn, timing)
}

// StopOffer withdraws a previously offered service and unregisters its
// handler.
func (d *Dispatcher) StopOffer(serviceID, instanceID uint16) {
	d.SD.StopOffer(serviceID, instanceID)
	d.mu.Lock()
	delete(d.handlers, serviceID)
	d.mu.Unlock()
}

// Run drives the dispatcher's event loop until ctx is cancelled, returning
// the first error encountered. Grounded on ptp4u/server/server.go's
// Start(): there, one waitgroup covers every long-lived goroutine so any
// one exiting unblocks the others; here errgroup.WithContext gives the same
// shape plus first-error propagation instead of the teacher's silent
// swallow.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.loop(gctx) })
	return g.Wait()
}

func (d *Dispatcher) loop(ctx context.Context) error {
	lastSDPoll := time.Time{}
	ticker := time.NewTicker(transportPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if now.Sub(lastSDPoll) >= sdPollInterval {
				d.SD.Poll(now)
				lastSDPoll = now
			}
			d.pollTransports(now)
			d.sampleStats()
		}
	}
}

// pollTransports drains every bound transport, non-blocking, until each one
// reports WouldBlock.
func (d *Dispatcher) pollTransports(now time.Time) {
	d.mu.RLock()
	snapshot := append([]transport.Transport(nil), d.transports...)
	d.mu.RUnlock()

	buf := make([]byte, 65535)
	for _, tr := range snapshot {
		for {
			n, src, err := tr.Receive(buf)
			if err != nil {
				if !transport.IsWouldBlock(err) {
					d.log.WithError(err).Warn("runtime: transport receive failed")
				}
				break
			}
			d.handleInbound(tr, buf[:n], src, now)
		}
	}
}

func (d *Dispatcher) handleInbound(via transport.Transport, raw []byte, src net.Addr, now time.Time) {
	h, err := wire.DecodeHeader(raw)
	if err != nil {
		d.log.WithError(err).Warn("runtime: dropping malformed message")
		d.incMalformed()
		return
	}
	payload := raw[wire.HeaderSize:]

	if h.IsTP() {
		tph, err := wire.DecodeTPHeader(payload)
		if err != nil {
			d.log.WithError(err).Warn("runtime: dropping malformed TP sub-header")
			d.incMalformed()
			return
		}
		key := tp.NewKey(h)
		assembled, err := d.reassembler.Process(key, tp.Segment{Header: tph, Payload: payload[wire.TPHeaderSize:]})
		if err != nil {
			if err != tp.ErrIncomplete {
				d.log.WithError(err).Warn("runtime: TP reassembly failed")
				d.reassembler.Evict(key)
				d.incMalformed()
			}
			return
		}
		h.MessageType = h.MessageType.WithoutTP()
		payload = assembled
	}

	switch {
	case h.IsReply():
		d.completeRequest(h, payload)
	case h.MessageType == wire.MessageNotification:
		d.invokeHandler(h, payload, via, src, false)
	case h.MessageType == wire.MessageRequest:
		d.invokeHandler(h, payload, via, src, true)
	case h.MessageType == wire.MessageRequestNoReturn:
		d.invokeHandler(h, payload, via, src, false)
	default:
		d.log.Warnf("runtime: unhandled message type %s", h.MessageType)
	}
}

func (d *Dispatcher) incMalformed() {
	if d.stats != nil {
		d.stats.IncMalformedDropped()
	}
}

// sampleStats refreshes the gauges that reflect instantaneous backlog
// rather than a cumulative count: pending requests, TP reassembly
// backlog, and worker pool queue depth.
func (d *Dispatcher) sampleStats() {
	if d.stats == nil {
		return
	}
	d.stats.SetPendingRequests(d.pending.len())
	d.stats.SetReassemblyPending(d.reassembler.Pending())
	if qd, ok := d.pool.(queueDepther); ok {
		d.stats.SetWorkerQueueDepth(qd.QueueDepth())
	}
}

func (d *Dispatcher) completeRequest(h wire.Header, payload []byte) {
	key := pendingKey{h.ServiceID, h.MethodID, h.SessionID}
	res := pendingResult{payload: append([]byte(nil), payload...), returnCode: uint8(h.ReturnCode)}
	if !d.pending.deliver(key, res) {
		d.log.Debugf("runtime: reply for service 0x%04x method 0x%04x session 0x%04x has no waiter", h.ServiceID, h.MethodID, h.SessionID)
	}
}

// invokeHandler runs the registered handler for h.ServiceID, inline or on
// the worker pool depending on Handler.Blocking, and sends a Response when
// wantsReply is true and the handler produced one.
func (d *Dispatcher) invokeHandler(h wire.Header, payload []byte, via transport.Transport, src net.Addr, wantsReply bool) {
	d.mu.RLock()
	handler, ok := d.handlers[h.ServiceID]
	d.mu.RUnlock()

	if !ok {
		if wantsReply {
			d.sendError(h, via, src, wire.ReturnUnknownService)
		}
		return
	}

	run := func() {
		resp, produced := handler.Fn(h, payload)
		if wantsReply && produced {
			d.sendResponse(h, resp, via, src)
		}
	}
	if handler.Blocking && d.pool != nil {
		key := make([]byte, 2)
		key[0], key[1] = byte(h.ClientID>>8), byte(h.ClientID)
		d.pool.SubmitWithKey(key, run)
		return
	}
	run()
}

func (d *Dispatcher) sendResponse(req wire.Header, payload []byte, via transport.Transport, dst net.Addr) {
	resp := wire.Header{
		ServiceID: req.ServiceID, MethodID: req.MethodID,
		ClientID: req.ClientID, SessionID: req.SessionID,
		ProtocolVersion: wire.ProtocolVersion, InterfaceVersion: req.InterfaceVersion,
		MessageType: wire.MessageResponse, ReturnCode: wire.ReturnOk,
	}
	d.sendMessage(resp, payload, via, dst)
}

func (d *Dispatcher) sendError(req wire.Header, via transport.Transport, dst net.Addr, code wire.ReturnCode) {
	resp := wire.Header{
		ServiceID: req.ServiceID, MethodID: req.MethodID,
		ClientID: req.ClientID, SessionID: req.SessionID,
		ProtocolVersion: wire.ProtocolVersion, InterfaceVersion: req.InterfaceVersion,
		MessageType: wire.MessageError, ReturnCode: code,
	}
	d.sendMessage(resp, nil, via, dst)
}

// sendMessage writes h+payload to via, TP-segmenting when payload exceeds
// d.maxPayload, spec.md §4.5.
func (d *Dispatcher) sendMessage(h wire.Header, payload []byte, via transport.Transport, dst net.Addr) {
	if len(payload) <= d.maxPayload {
		h.SetPayloadLength(len(payload))
		msg := wire.Message{Header: h, Payload: payload}
		if _, err := via.Send(msg.Bytes(), dst); err != nil {
			d.log.WithError(err).Warn("runtime: send failed")
		}
		return
	}

	h.MessageType = h.MessageType.WithTP()
	for _, seg := range tp.SegmentPayload(payload, d.maxPayload) {
		segBuf := make([]byte, wire.TPHeaderSize+len(seg.Payload))
		_ = wire.EncodeTPHeader(seg.Header, segBuf)
		copy(segBuf[wire.TPHeaderSize:], seg.Payload)
		h.SetPayloadLength(len(segBuf))
		msg := wire.Message{Header: h, Payload: segBuf}
		if _, err := via.Send(msg.Bytes(), dst); err != nil {
			d.log.WithError(err).Warn("runtime: TP segment send failed")
			return
		}
	}
}

// transportFor resolves the transport this dispatcher should use to reach
// dst over proto: an already-bound UDP transport of the matching address
// family, or a lazily-dialled (and cached) TCP client.
func (d *Dispatcher) transportFor(dst net.Addr, proto transport.Protocol) (transport.Transport, error) {
	switch proto {
	case transport.ProtoUDP:
		wantV6 := isV6Addr(dst)
		d.mu.RLock()
		defer d.mu.RUnlock()
		for _, tr := range d.transports {
			if _, ok := tr.(*transport.UDPTransport); ok && isV6Addr(tr.LocalAddr()) == wantV6 {
				return tr, nil
			}
		}
		return nil, fmt.Errorf("runtime: no bound UDP transport matching address family of %s", dst)

	case transport.ProtoTCP:
		addr := dst.String()
		d.tcpMu.Lock()
		if c, ok := d.tcpClients[addr]; ok {
			d.tcpMu.Unlock()
			return c, nil
		}
		d.tcpMu.Unlock()

		v, err, _ := d.tcpDial.Do(addr, func() (any, error) {
			return transport.DialTCP(addr)
		})
		if err != nil {
			return nil, fmt.Errorf("runtime: dialing %s: %w", addr, err)
		}
		client := v.(*transport.TCPClient)
		_ = client.SetNonblocking(true)
		d.tcpMu.Lock()
		d.tcpClients[addr] = client
		d.tcpMu.Unlock()
		d.mu.Lock()
		d.transports = append(d.transports, client)
		d.mu.Unlock()
		return client, nil

	default:
		return nil, ErrUnsupportedProtocol
	}
}

func isV6Addr(a net.Addr) bool {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.IP.To4() == nil
	case *net.TCPAddr:
		return v.IP.To4() == nil
	default:
		return false
	}
}
