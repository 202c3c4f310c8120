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

// Package config loads the SOME/IP middleware's configuration tree,
// spec.md §6: a single JSON file with three top-level sections
// (interfaces, endpoints, instances). Grounded on the teacher's "seed a
// struct with defaults, then overlay parsed values" idiom
// (ptp4u/server/config.go's DynamicConfig, cmd/ptp4u/main.go's flag
// defaulting) - here expressed as parse-then-ApplyDefaults since the whole
// tree comes from one file rather than flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Tree is the root configuration document.
type Tree struct {
	Interfaces map[string]Interface `json:"interfaces"`
	Endpoints  map[string]Endpoint  `json:"endpoints"`
	Instances  map[string]Instance  `json:"instances"`
}

// Timers mirrors sd.Timing in config-file form (milliseconds/seconds),
// spec.md §6 defaults.
type Timers struct {
	InitialDelayMinMs int `json:"initial_delay_min_ms,omitempty"`
	InitialDelayMaxMs int `json:"initial_delay_max_ms,omitempty"`
	RepetitionBaseMs  int `json:"repetition_base_ms,omitempty"`
	RepetitionMax     int `json:"repetition_max,omitempty"`
	CyclicDelayMs     int `json:"cyclic_delay_ms,omitempty"`
	TTLSeconds        int `json:"ttl_seconds,omitempty"`
	RequestRespMinMs  int `json:"request_response_delay_min_ms,omitempty"`
	RequestRespMaxMs  int `json:"request_response_delay_max_ms,omitempty"`
	RequestTimeoutMs  int `json:"request_timeout_ms,omitempty"`
}

// SD is the per-interface or per-instance SD sub-configuration.
type SD struct {
	V4Endpoint string `json:"v4_endpoint,omitempty"`
	V6Endpoint string `json:"v6_endpoint,omitempty"`
	HopLimit   int    `json:"hop_limit,omitempty"`
	Timers     Timers `json:"timers,omitempty"`
}

// Interface is one named network interface: its OS name (for binding to
// device), the endpoints it exposes by role, and its SD sub-config.
type Interface struct {
	OSName    string            `json:"os_name,omitempty"`
	Endpoints map[string]string `json:"endpoints,omitempty"`
	SD        SD                `json:"sd,omitempty"`
}

// Endpoint is one named (ip, port, protocol) the middleware binds or
// connects to.
type Endpoint struct {
	IP        string `json:"ip"`
	Version   int    `json:"version"` // 4 or 6
	Port      int    `json:"port"`
	Protocol  string `json:"protocol"` // "udp" or "tcp"
	Interface string `json:"interface,omitempty"`
	Multicast bool   `json:"multicast,omitempty"`
}

// Providing is one service this instance offers.
type Providing struct {
	ServiceID  uint16            `json:"service_id"`
	InstanceID uint16            `json:"instance_id"`
	Major      uint8             `json:"major"`
	Minor      uint32            `json:"minor"`
	OfferOn    map[string]string `json:"offer_on"` // interface alias -> endpoint alias
	Multicast  string            `json:"multicast,omitempty"`
}

// Required is one service this instance consumes.
type Required struct {
	ServiceID  uint16   `json:"service_id"`
	InstanceID uint16   `json:"instance_id"`
	Major      uint8    `json:"major"`
	FindOn     []string `json:"find_on"`
	// VersionConstraint is a hashicorp/go-version range, e.g. ">=1.2, <2.0".
	// It is decoded but not consulted when resolving clients: GetClient
	// compares neither this constraint nor the major version.
	VersionConstraint string `json:"version_constraint,omitempty"`
}

// Instance is one runtime instance of this middleware: its unicast
// bindings, the services it provides and requires, and its SD sub-config.
type Instance struct {
	UnicastBind map[string]string    `json:"unicast_bind,omitempty"` // interface alias -> endpoint alias
	Providing   map[string]Providing `json:"providing,omitempty"`
	Required    map[string]Required  `json:"required,omitempty"`
	SD          SD                   `json:"sd,omitempty"`
}

// Load reads and parses path, then applies spec.md §6 defaults to every
// unset field.
func Load(path string) (*Tree, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var t Tree
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks the structural invariants spec.md §4.5 requires at load
// time: every instance's required/providing entries must reference
// interfaces and endpoints that exist, and every endpoint used for binding
// must name its interface (spec.md §4.5: "refuses to start if a declared
// endpoint lacks its mandatory interface name").
func (t *Tree) Validate() error {
	for alias, ep := range t.Endpoints {
		if ep.Interface == "" {
			return fmt.Errorf("config: endpoint %q is missing its mandatory interface name", alias)
		}
		if ep.Protocol != "udp" && ep.Protocol != "tcp" {
			return fmt.Errorf("config: endpoint %q has invalid protocol %q", alias, ep.Protocol)
		}
	}
	for name, inst := range t.Instances {
		for iface, ep := range inst.UnicastBind {
			if _, ok := t.Interfaces[iface]; !ok {
				return fmt.Errorf("config: instance %q unicast_bind references unknown interface %q", name, iface)
			}
			if _, ok := t.Endpoints[ep]; !ok {
				return fmt.Errorf("config: instance %q unicast_bind references unknown endpoint %q", name, ep)
			}
		}
		for svc, p := range inst.Providing {
			for iface, ep := range p.OfferOn {
				if _, ok := t.Interfaces[iface]; !ok {
					return fmt.Errorf("config: instance %q providing %q offer_on references unknown interface %q", name, svc, iface)
				}
				if _, ok := t.Endpoints[ep]; !ok {
					return fmt.Errorf("config: instance %q providing %q offer_on references unknown endpoint %q", name, svc, ep)
				}
			}
		}
		for svc, r := range inst.Required {
			for _, iface := range r.FindOn {
				if _, ok := t.Interfaces[iface]; !ok {
					return fmt.Errorf("config: instance %q required %q find_on references unknown interface %q", name, svc, iface)
				}
			}
		}
	}
	return nil
}
