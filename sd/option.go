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
	"encoding/binary"
	"fmt"
	"net"

	"github.com/arunj123/go-someip/transport"
	"github.com/arunj123/go-someip/wire"
)

// OptionType identifies the kind of SD option.
type OptionType uint8

// Option types, spec.md §3.
const (
	OptionConfiguration  OptionType = 0x01
	OptionLoadBalancing  OptionType = 0x02
	OptionIPv4Endpoint   OptionType = 0x04
	OptionIPv6Endpoint   OptionType = 0x06
	OptionIPv4Multicast  OptionType = 0x14
	OptionIPv6Multicast  OptionType = 0x16
)

// Option is a tagged union of every SD option shape. Only the fields
// relevant to Type are meaningful.
type Option struct {
	Type OptionType

	// Ipv4/Ipv6Endpoint, Ipv4/Ipv6Multicast.
	IP       net.IP
	L4Proto  transport.Protocol
	Port     uint16

	// Configuration.
	Config string

	// LoadBalancing.
	Priority uint16
	Weight   uint16

	// Unknown - raw payload for any type not recognised above.
	Raw []byte
}

func (o Option) isIPv4() bool { return o.Type == OptionIPv4Endpoint || o.Type == OptionIPv4Multicast }
func (o Option) isIPv6() bool { return o.Type == OptionIPv6Endpoint || o.Type == OptionIPv6Multicast }

// EncodeOption appends the wire encoding of o (length-prefixed, length
// excludes the type byte) to b and returns the new slice.
func EncodeOption(o Option, b []byte) ([]byte, error) {
	switch o.Type {
	case OptionIPv4Endpoint, OptionIPv4Multicast:
		ip4 := o.IP.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("%w: option type 0x%02x requires an IPv4 address", wire.ErrMalformed, o.Type)
		}
		payload := make([]byte, 8)
		copy(payload[0:4], ip4)
		payload[5] = byte(o.L4Proto)
		binary.BigEndian.PutUint16(payload[6:8], o.Port)
		return appendOption(b, o.Type, payload), nil

	case OptionIPv6Endpoint, OptionIPv6Multicast:
		ip6 := o.IP.To16()
		if ip6 == nil {
			return nil, fmt.Errorf("%w: option type 0x%02x requires an IPv6 address", wire.ErrMalformed, o.Type)
		}
		payload := make([]byte, 20)
		copy(payload[0:16], ip6)
		payload[17] = byte(o.L4Proto)
		binary.BigEndian.PutUint16(payload[18:20], o.Port)
		return appendOption(b, o.Type, payload), nil

	case OptionConfiguration:
		return appendOption(b, o.Type, []byte(o.Config)), nil

	case OptionLoadBalancing:
		payload := make([]byte, 4)
		binary.BigEndian.PutUint16(payload[0:2], o.Priority)
		binary.BigEndian.PutUint16(payload[2:4], o.Weight)
		return appendOption(b, o.Type, payload), nil

	default:
		return appendOption(b, o.Type, o.Raw), nil
	}
}

func appendOption(b []byte, t OptionType, payload []byte) []byte {
	length := uint16(len(payload)) // payload only; the type byte is not counted
	hdr := make([]byte, 3)
	binary.BigEndian.PutUint16(hdr[0:2], length)
	hdr[2] = byte(t)
	out := append(b, hdr...)
	out = append(out, payload...)
	return out
}

// DecodeOption parses one option from the front of b, returning it and the
// number of bytes consumed.
func DecodeOption(b []byte) (Option, int, error) {
	if len(b) < 3 {
		return Option{}, 0, fmt.Errorf("%w: option header truncated", wire.ErrMalformed)
	}
	length := binary.BigEndian.Uint16(b[0:2])
	t := OptionType(b[2])
	total := 3 + int(length) // length excludes the type byte
	if total > len(b) {
		return Option{}, 0, fmt.Errorf("%w: option promises %d bytes, have %d", wire.ErrMalformed, total, len(b))
	}
	payload := b[3:total]

	switch t {
	case OptionIPv4Endpoint, OptionIPv4Multicast:
		if len(payload) < 8 {
			return Option{}, 0, fmt.Errorf("%w: ipv4 option too short", wire.ErrMalformed)
		}
		return Option{
			Type:    t,
			IP:      net.IP(append([]byte(nil), payload[0:4]...)),
			L4Proto: transport.Protocol(payload[5]),
			Port:    binary.BigEndian.Uint16(payload[6:8]),
		}, total, nil

	case OptionIPv6Endpoint, OptionIPv6Multicast:
		if len(payload) < 20 {
			return Option{}, 0, fmt.Errorf("%w: ipv6 option too short", wire.ErrMalformed)
		}
		return Option{
			Type:    t,
			IP:      net.IP(append([]byte(nil), payload[0:16]...)),
			L4Proto: transport.Protocol(payload[17]),
			Port:    binary.BigEndian.Uint16(payload[18:20]),
		}, total, nil

	case OptionConfiguration:
		return Option{Type: t, Config: string(payload)}, total, nil

	case OptionLoadBalancing:
		if len(payload) < 4 {
			return Option{}, 0, fmt.Errorf("%w: load balancing option too short", wire.ErrMalformed)
		}
		return Option{
			Type:     t,
			Priority: binary.BigEndian.Uint16(payload[0:2]),
			Weight:   binary.BigEndian.Uint16(payload[2:4]),
		}, total, nil

	default:
		return Option{Type: t, Raw: append([]byte(nil), payload...)}, total, nil
	}
}
