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

package sd

import (
	"net"
	"sync"
	"time"

	"github.com/arunj123/go-someip/transport"
)

// ServiceKey identifies a service instance.
type ServiceKey struct {
	ServiceID  uint16
	InstanceID uint16
}

// InstanceWildcard is the instance-id that matches any instance of a
// service-id, spec.md §4.4.
const InstanceWildcard uint16 = 0xFFFF

// RemoteService is a discovered offer, spec.md §3.
type RemoteService struct {
	ServiceID  uint16
	InstanceID uint16
	MajorVer   uint8
	MinorVer   uint32
	Endpoints  []Option
	LastSeen   time.Time
	TTL        time.Duration
}

func (r RemoteService) expired(now time.Time) bool {
	return now.Sub(r.LastSeen) > r.TTL
}

// Endpoint returns the first IPv4 or IPv6 unicast endpoint with its L4
// protocol, per spec.md §4.4's get_service resolution order.
func (r RemoteService) Endpoint() (net.Addr, transport.Protocol, bool) {
	for _, opt := range r.Endpoints {
		switch opt.Type {
		case OptionIPv4Endpoint, OptionIPv6Endpoint:
			switch opt.L4Proto {
			case transport.ProtoTCP:
				return &net.TCPAddr{IP: opt.IP, Port: int(opt.Port)}, opt.L4Proto, true
			case transport.ProtoUDP:
				return &net.UDPAddr{IP: opt.IP, Port: int(opt.Port)}, opt.L4Proto, true
			}
		}
	}
	return nil, 0, false
}

// Registry is the mutex-guarded (service-id, instance-id) -> RemoteService
// map, generalised from the teacher's syncMapCli double-keyed map pattern
// (ptp4u/server/server.go).
type Registry struct {
	mu       sync.Mutex
	services map[ServiceKey]RemoteService
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[ServiceKey]RemoteService)}
}

// Upsert records or refreshes an offer.
func (r *Registry) Upsert(svc RemoteService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[ServiceKey{svc.ServiceID, svc.InstanceID}] = svc
}

// Remove deletes a (service-id, instance-id) entry.
func (r *Registry) Remove(serviceID, instanceID uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, ServiceKey{serviceID, instanceID})
}

// Get resolves a (service-id, instance-id) lookup; InstanceWildcard matches
// any instance of the service-id.
func (r *Registry) Get(serviceID, instanceID uint16) (RemoteService, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if instanceID != InstanceWildcard {
		svc, ok := r.services[ServiceKey{serviceID, instanceID}]
		return svc, ok
	}
	for _, svc := range r.services {
		if svc.ServiceID == serviceID {
			return svc, true
		}
	}
	return RemoteService{}, false
}

// SweepExpired removes every entry whose TTL has elapsed relative to now.
// spec.md §9(a) leaves the sweep cadence as an open question; this
// implementation sweeps once per Poll (see State.Poll).
func (r *Registry) SweepExpired(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, svc := range r.services {
		if svc.expired(now) {
			delete(r.services, k)
		}
	}
}

// All returns a snapshot of every registered remote service, for stats/CLI use.
func (r *Registry) All() []RemoteService {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RemoteService, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc)
	}
	return out
}
