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
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/arunj123/go-someip/config"
	"github.com/arunj123/go-someip/sd"
	"github.com/arunj123/go-someip/transport"
	"github.com/arunj123/go-someip/workerpool"
	log "github.com/sirupsen/logrus"
)

// Instance is everything Load assembles for one configured instance: the
// dispatcher ready to Run, plus the bits of config it needs afterwards to
// resolve offer_on/find_on aliases into sd.Options and sd.Timing.
type Instance struct {
	Dispatcher *Dispatcher
	Tree       *config.Tree
	Name       string
	inst       config.Instance
}

// Load builds a fully wired Dispatcher for instanceName out of tree: one
// transport per unique (ip, port, protocol) the instance's unicast_bind or
// any providing.offer_on endpoint touches, one sd.Listener per interface
// named by unicast_bind, offer_on or find_on (using the default SD groups
// where the interface has no SD sub-config), and a workerpool.Pool sized to the number
// of providing entries (minimum 2). spec.md §4.5/§6.
func Load(tree *config.Tree, instanceName string, clientID uint16) (*Instance, error) {
	inst, ok := tree.Instances[instanceName]
	if !ok {
		return nil, fmt.Errorf("runtime: unknown instance %q", instanceName)
	}

	rpcTransports, err := bindRPCTransports(tree, inst)
	if err != nil {
		return nil, err
	}

	listeners, err := buildSDListeners(tree, inst)
	if err != nil {
		return nil, err
	}

	state := sd.NewState(listeners)

	poolSize := len(inst.Providing)
	if poolSize < 2 {
		poolSize = 2
	}
	pool := workerpool.New(poolSize, 64)
	pool.Start()

	d := NewDispatcher(clientID, rpcTransports, state, pool)
	return &Instance{Dispatcher: d, Tree: tree, Name: instanceName, inst: inst}, nil
}

// bindRPCTransports binds one socket per endpoint reachable through
// unicast_bind or any providing.offer_on entry - the sockets application
// Request/Response/Notification traffic flows over, distinct from the SD
// multicast listeners buildSDListeners creates.
func bindRPCTransports(tree *config.Tree, inst config.Instance) ([]transport.Transport, error) {
	seen := make(map[string]bool)
	var out []transport.Transport

	bind := func(epAlias string) error {
		if seen[epAlias] {
			return nil
		}
		seen[epAlias] = true
		ep, ok := tree.Endpoints[epAlias]
		if !ok {
			return fmt.Errorf("runtime: endpoint %q not found", epAlias)
		}
		tr, err := bindEndpoint(tree, ep)
		if err != nil {
			return fmt.Errorf("runtime: binding endpoint %q: %w", epAlias, err)
		}
		out = append(out, tr)
		return nil
	}

	for _, epAlias := range inst.UnicastBind {
		if err := bind(epAlias); err != nil {
			return nil, err
		}
	}
	for _, p := range inst.Providing {
		for _, epAlias := range p.OfferOn {
			if err := bind(epAlias); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func bindEndpoint(tree *config.Tree, ep config.Endpoint) (transport.Transport, error) {
	ifaceName := ""
	if iface, ok := tree.Interfaces[ep.Interface]; ok {
		ifaceName = iface.OSName
	}
	addr := net.JoinHostPort(ep.IP, strconv.Itoa(ep.Port))

	switch ep.Protocol {
	case "tcp":
		return transport.ListenTCP(addr)
	case "udp":
		udpAddr, err := net.ResolveUDPAddr(udpNetwork(ep.IP), addr)
		if err != nil {
			return nil, err
		}
		return transport.NewUDPTransport(transport.UDPConfig{
			BindAddr:      udpAddr,
			InterfaceName: ifaceName,
			ReuseAddr:     true,
		})
	default:
		return nil, fmt.Errorf("unsupported protocol %q", ep.Protocol)
	}
}

func udpNetwork(ip string) string {
	if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() == nil {
		return "udp6"
	}
	return "udp"
}

// buildSDListeners builds one sd.Listener per interface this instance binds
// an endpoint on or finds required services on, joining the interface's
// configured (or default) multicast SD group.
func buildSDListeners(tree *config.Tree, inst config.Instance) ([]*sd.Listener, error) {
	ifaceAliases := make(map[string]bool)
	for iface := range inst.UnicastBind {
		ifaceAliases[iface] = true
	}
	for _, p := range inst.Providing {
		for iface := range p.OfferOn {
			ifaceAliases[iface] = true
		}
	}
	for _, r := range inst.Required {
		for _, iface := range r.FindOn {
			ifaceAliases[iface] = true
		}
	}

	var listeners []*sd.Listener
	for alias := range ifaceAliases {
		iface, ok := tree.Interfaces[alias]
		if !ok {
			return nil, fmt.Errorf("runtime: interface %q not found", alias)
		}
		l, err := buildListener(alias, iface)
		if err != nil {
			return nil, err
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}

func buildListener(alias string, iface config.Interface) (*sd.Listener, error) {
	v4Group := iface.SD.V4Endpoint
	if v4Group == "" {
		v4Group = net.JoinHostPort(config.DefaultV4MulticastIP, strconv.Itoa(config.DefaultSDPort))
	}
	groupAddr, err := net.ResolveUDPAddr("udp4", v4Group)
	if err != nil {
		return nil, fmt.Errorf("sd listener %q: %w", alias, err)
	}

	tr, err := transport.NewUDPTransport(transport.UDPConfig{
		BindAddr:       groupAddr,
		MulticastGroup: groupAddr,
		InterfaceName:  iface.OSName,
		MulticastTTL:   iface.SD.HopLimit,
		ReuseAddr:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("sd listener %q: %w", alias, err)
	}

	l := &sd.Listener{
		Alias:   alias,
		V4:      tr,
		V4Group: groupAddr,
	}

	// Dual-stack by default, spec.md §6: join the IPv6 SD group alongside
	// v4; an empty v6 endpoint falls back to the default v6 group.
	v6Group := iface.SD.V6Endpoint
	if v6Group == "" {
		v6Group = net.JoinHostPort(config.DefaultV6MulticastIP, strconv.Itoa(config.DefaultSDPort))
	}
	v6GroupAddr, err := net.ResolveUDPAddr("udp6", v6Group)
	if err != nil {
		return nil, fmt.Errorf("sd listener %q: resolving v6 group: %w", alias, err)
	}
	v6tr, err := transport.NewUDPTransport(transport.UDPConfig{
		BindAddr:       v6GroupAddr,
		MulticastGroup: v6GroupAddr,
		InterfaceName:  iface.OSName,
		MulticastTTL:   iface.SD.HopLimit,
		ReuseAddr:      true,
	})
	if err != nil {
		log.WithError(err).Warnf("sd listener %q: v6 multicast group unavailable, continuing v4-only", alias)
		return l, nil
	}
	l.V6 = v6tr
	l.V6Group = v6GroupAddr

	return l, nil
}

// Timing converts the instance's configured timers into an sd.Timing.
func (i *Instance) Timing() sd.Timing {
	initMin, initMax, repBase, cyclic, _, _, _, repMax, ttl := i.inst.SD.Timers.AsMillis()
	t := sd.DefaultTiming()
	if initMin > 0 {
		t.InitialDelayMin = time.Duration(initMin) * time.Millisecond
	}
	if initMax > 0 {
		t.InitialDelayMax = time.Duration(initMax) * time.Millisecond
	}
	if repBase > 0 {
		t.RepetitionBase = time.Duration(repBase) * time.Millisecond
	}
	if repMax > 0 {
		t.RepetitionMax = repMax
	}
	if cyclic > 0 {
		t.CyclicDelay = time.Duration(cyclic) * time.Millisecond
	}
	if ttl > 0 {
		t.TTL = ttl
	}
	return t
}

// Providing returns the configured Providing entry for alias.
func (i *Instance) Providing(alias string) (config.Providing, bool) {
	p, ok := i.inst.Providing[alias]
	return p, ok
}

// Required returns the configured Required entry for alias.
func (i *Instance) Required(alias string) (config.Required, bool) {
	r, ok := i.inst.Required[alias]
	return r, ok
}
