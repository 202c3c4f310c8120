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

package runtime

import (
	"context"
	"net"
	"time"

	"github.com/arunj123/go-someip/sd"
	"github.com/arunj123/go-someip/transport"
	"github.com/arunj123/go-someip/wire"
)

// RemoteClient is a resolved handle to one discovered service instance,
// spec.md §4.5's get_client<T>: cheap to hold onto, re-resolves nothing
// itself - callers that want to react to a service going away should
// re-call GetClient.
type RemoteClient struct {
	d          *Dispatcher
	ServiceID  uint16
	InstanceID uint16
	Addr       net.Addr
	Proto      transport.Protocol
}

// Call issues methodID against the remote instance and blocks for its reply.
func (c *RemoteClient) Call(ctx context.Context, methodID uint16, payload []byte) ([]byte, error) {
	return c.d.SendRequestAndWait(ctx, c.ServiceID, methodID, payload, c.Addr, c.Proto)
}

// Notify fires a one-way RequestNoReturn at methodID without waiting.
func (c *RemoteClient) Notify(methodID uint16, payload []byte) error {
	return c.d.SendNoReturn(c.ServiceID, methodID, payload, c.Addr, c.Proto)
}

// GetClient busy-polls service discovery for (serviceID, instanceID) until
// it resolves or timeout elapses, spec.md §4.5. Concurrent calls for the
// same (serviceID, instanceID) collapse onto a single poll loop via
// singleflight, matching SPEC_FULL.md's domain-stack wiring for
// golang.org/x/sync/singleflight.
func (d *Dispatcher) GetClient(ctx context.Context, serviceID, instanceID uint16, timeout time.Duration) (*RemoteClient, error) {
	sfKey := fmtKey(serviceID, instanceID)

	v, err, _ := d.clientSF.Do(sfKey, func() (any, error) {
		deadline := time.Now().Add(timeout)
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		d.SD.FindService(serviceID, instanceID, nil)
		for {
			if svc, ok := d.SD.GetService(serviceID, instanceID); ok {
				if addr, proto, ok := svc.Endpoint(); ok {
					return &RemoteClient{d: d, ServiceID: serviceID, InstanceID: instanceID, Addr: addr, Proto: proto}, nil
				}
			}
			if !time.Now().Before(deadline) {
				return nil, ErrServiceNotFound
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case now := <-ticker.C:
				d.SD.Poll(now)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return v.(*RemoteClient), nil
}

// Subscribe sends a SubscribeEventgroup for (serviceID, eventgroupID) on
// findOn (or every listener, if findOn is empty) and marks the subscription
// Pending, spec.md §4.4/§4.5. The consumer's own bound UDP endpoint is
// carried as the referenced option so the provider's Notify traffic has
// somewhere to go. Use d.SD.Subs.State/IsAcked to observe the ack.
func (d *Dispatcher) Subscribe(serviceID, instanceID, eventgroupID uint16, major uint8, ttl time.Duration, findOn []string) error {
	endpoint, err := d.localNotifyEndpoint()
	if err != nil {
		return err
	}
	d.SD.SubscribeEventgroup(serviceID, instanceID, eventgroupID, major, ttl, findOn, endpoint)
	return nil
}

// Unsubscribe sends a TTL=0 SubscribeEventgroup, withdrawing a prior
// Subscribe.
func (d *Dispatcher) Unsubscribe(serviceID, instanceID, eventgroupID uint16, major uint8, findOn []string) error {
	endpoint, err := d.localNotifyEndpoint()
	if err != nil {
		return err
	}
	d.SD.UnsubscribeEventgroup(serviceID, instanceID, eventgroupID, major, findOn, endpoint)
	return nil
}

// localNotifyEndpoint builds the IPv4/IPv6 endpoint option advertising this
// dispatcher's own bound UDP transport, for embedding in a SubscribeEventgroup.
func (d *Dispatcher) localNotifyEndpoint() (sd.Option, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, tr := range d.transports {
		udpAddr, ok := tr.LocalAddr().(*net.UDPAddr)
		if !ok {
			continue
		}
		if udpAddr.IP.To4() != nil {
			return sd.Option{Type: sd.OptionIPv4Endpoint, IP: udpAddr.IP, Port: uint16(udpAddr.Port), L4Proto: transport.ProtoUDP}, nil
		}
		return sd.Option{Type: sd.OptionIPv6Endpoint, IP: udpAddr.IP, Port: uint16(udpAddr.Port), L4Proto: transport.ProtoUDP}, nil
	}
	return sd.Option{}, ErrUnsupportedProtocol
}

// NotifyEventgroup pushes payload on eventID to every address currently
// subscribed to (serviceID, eventgroupID), per the provider-side subscriber
// set sd.State.Subs tracks. Returns the number of subscribers reached and
// the last error encountered, if any.
func (d *Dispatcher) NotifyEventgroup(serviceID, eventgroupID, eventID uint16, payload []byte) (sent int, err error) {
	addrs := d.SD.Subs.SubscriberAddrs(sd.EventgroupKey{ServiceID: serviceID, EventgroupID: eventgroupID})
	for _, addr := range addrs {
		if nerr := d.Notify(serviceID, eventID, payload, addr, transport.ProtoUDP); nerr != nil {
			err = nerr
			continue
		}
		sent++
	}
	return sent, err
}

func fmtKey(serviceID, instanceID uint16) string {
	b := [4]byte{byte(serviceID >> 8), byte(serviceID), byte(instanceID >> 8), byte(instanceID)}
	return string(b[:])
}

// SendRequestAndWait issues a Request to dst and blocks until its Response
// arrives, ctx is cancelled, or d's request timeout elapses - spec.md
// §4.5: "applies TP segmentation if payload.len > MTU - header_bytes; 2s
// default deadline."
func (d *Dispatcher) SendRequestAndWait(ctx context.Context, serviceID, methodID uint16, payload []byte, dst net.Addr, proto transport.Protocol) ([]byte, error) {
	tr, err := d.transportFor(dst, proto)
	if err != nil {
		return nil, err
	}

	session := d.sessions.next(serviceID, methodID)
	pkey := pendingKey{serviceID, methodID, session}
	ch, err := d.pending.register(pkey)
	if err != nil {
		return nil, err
	}
	defer d.pending.cancel(pkey)

	h := wire.Header{
		ServiceID: serviceID, MethodID: methodID,
		ClientID: d.clientID, SessionID: session,
		ProtocolVersion: wire.ProtocolVersion, InterfaceVersion: 1,
		MessageType: wire.MessageRequest, ReturnCode: wire.ReturnOk,
	}
	d.sendMessage(h, payload, tr, dst)

	timer := time.NewTimer(d.requestTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		if d.stats != nil {
			d.stats.IncRequestCompleted()
		}
		if wire.ReturnCode(res.returnCode) != wire.ReturnOk {
			return res.payload, &RemoteError{Code: wire.ReturnCode(res.returnCode)}
		}
		return res.payload, nil
	case <-timer.C:
		if d.stats != nil {
			d.stats.IncRequestTimedOut()
		}
		return nil, ErrRequestTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendNoReturn fires a one-way RequestNoReturn message; no completion slot
// is installed since no reply is expected, spec.md §3.
func (d *Dispatcher) SendNoReturn(serviceID, methodID uint16, payload []byte, dst net.Addr, proto transport.Protocol) error {
	tr, err := d.transportFor(dst, proto)
	if err != nil {
		return err
	}
	session := d.sessions.next(serviceID, methodID)
	h := wire.Header{
		ServiceID: serviceID, MethodID: methodID,
		ClientID: d.clientID, SessionID: session,
		ProtocolVersion: wire.ProtocolVersion, InterfaceVersion: 1,
		MessageType: wire.MessageRequestNoReturn, ReturnCode: wire.ReturnOk,
	}
	d.sendMessage(h, payload, tr, dst)
	return nil
}

// Notify sends a fire-and-forget Notification to dst, used by providers to
// push events to subscribers discovered via d.SD.Subs.
func (d *Dispatcher) Notify(serviceID, eventID uint16, payload []byte, dst net.Addr, proto transport.Protocol) error {
	tr, err := d.transportFor(dst, proto)
	if err != nil {
		return err
	}
	h := wire.Header{
		ServiceID: serviceID, MethodID: eventID,
		ClientID: 0, SessionID: 0,
		ProtocolVersion: wire.ProtocolVersion, InterfaceVersion: 1,
		MessageType: wire.MessageNotification, ReturnCode: wire.ReturnOk,
	}
	d.sendMessage(h, payload, tr, dst)
	return nil
}

// RemoteError wraps a non-Ok SOME/IP return code delivered in a Response.
type RemoteError struct {
	Code wire.ReturnCode
}

func (e *RemoteError) Error() string {
	return "runtime: remote returned " + e.Code.String()
}
