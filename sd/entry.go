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

// Package sd implements SOME/IP Service Discovery: the wire Entry/Option/
// Packet codec, the LocalService offer phase machine, the RemoteService and
// subscription registries, and multi-interface fan-out.
package sd

import (
	"encoding/binary"
	"fmt"

	"github.com/arunj123/go-someip/wire"
)

// EntryType identifies the kind of SD entry.
type EntryType uint8

// Entry types, spec.md §3.
const (
	EntryFindService             EntryType = 0x00
	EntryOfferService            EntryType = 0x01
	EntryRequestService          EntryType = 0x02
	EntrySubscribeEventgroup     EntryType = 0x06
	EntrySubscribeEventgroupAck  EntryType = 0x07
	EntryStopSubscribeEventgroup EntryType = 0x86
)

func (t EntryType) String() string {
	switch t {
	case EntryFindService:
		return "FindService"
	case EntryOfferService:
		return "OfferService"
	case EntryRequestService:
		return "RequestService"
	case EntrySubscribeEventgroup:
		return "SubscribeEventgroup"
	case EntrySubscribeEventgroupAck:
		return "SubscribeEventgroupAck"
	case EntryStopSubscribeEventgroup:
		return "StopSubscribeEventgroup"
	default:
		return fmt.Sprintf("EntryType(0x%02x)", uint8(t))
	}
}

// EntrySize is the fixed wire size of one SD entry.
const EntrySize = 16

// Entry is one SD entry. Final32 carries minor-version for service entries
// or (eventgroup-id<<16 | counter) for eventgroup entries - callers
// interpret it per Type.
type Entry struct {
	Type        EntryType
	Index1      uint8
	Index2      uint8
	NOpts1      uint8 // 4-bit count, 0..15
	NOpts2      uint8 // 4-bit count, 0..15
	ServiceID   uint16
	InstanceID  uint16
	MajorVer    uint8
	TTL         uint32 // 24-bit value
	Final32     uint32
}

// EventgroupID extracts the eventgroup id from Final32 for eventgroup entries.
func (e Entry) EventgroupID() uint16 { return uint16(e.Final32 >> 16) }

// MinorVersion extracts the minor version from Final32 for service entries.
func (e Entry) MinorVersion() uint32 { return e.Final32 }

// EncodeEntry appends the wire encoding of e to b.
func EncodeEntry(e Entry, b []byte) error {
	if len(b) < EntrySize {
		return fmt.Errorf("%w: entry buffer too small", wire.ErrMalformed)
	}
	b[0] = byte(e.Type)
	b[1] = e.Index1
	b[2] = e.Index2
	b[3] = (e.NOpts1&0x0F)<<4 | (e.NOpts2 & 0x0F)
	binary.BigEndian.PutUint16(b[4:6], e.ServiceID)
	binary.BigEndian.PutUint16(b[6:8], e.InstanceID)
	b[8] = e.MajorVer
	b[9] = byte(e.TTL >> 16)
	b[10] = byte(e.TTL >> 8)
	b[11] = byte(e.TTL)
	binary.BigEndian.PutUint32(b[12:16], e.Final32)
	return nil
}

// DecodeEntry parses one entry from the front of b.
func DecodeEntry(b []byte) (Entry, error) {
	if len(b) < EntrySize {
		return Entry{}, fmt.Errorf("%w: entry shorter than %d bytes", wire.ErrMalformed, EntrySize)
	}
	return Entry{
		Type:       EntryType(b[0]),
		Index1:     b[1],
		Index2:     b[2],
		NOpts1:     b[3] >> 4,
		NOpts2:     b[3] & 0x0F,
		ServiceID:  binary.BigEndian.Uint16(b[4:6]),
		InstanceID: binary.BigEndian.Uint16(b[6:8]),
		MajorVer:   b[8],
		TTL:        uint32(b[9])<<16 | uint32(b[10])<<8 | uint32(b[11]),
		Final32:    binary.BigEndian.Uint32(b[12:16]),
	}, nil
}
