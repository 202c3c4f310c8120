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

// Package wire implements the SOME/IP message header, TP sub-header and
// primitive/string/sequence serialisation described in PRS_SOMEIP.
package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size, in bytes, of a SOME/IP message header.
const HeaderSize = 16

// ProtocolVersion is the only protocol version this codec understands.
const ProtocolVersion uint8 = 1

// Header is the common 16-byte SOME/IP message header.
//
//	0               1               2               3
//	+-------+-------+-------+-------+-------+-------+-------+-------+
//	|          Service ID           |           Method ID           |
//	+-------+-------+-------+-------+-------+-------+-------+-------+
//	|                            Length                             |
//	+-------+-------+-------+-------+-------+-------+-------+-------+
//	|           Client ID           |          Session ID           |
//	+-------+-------+-------+-------+-------+-------+-------+-------+
//	|Proto V|Iface V|MsgType|RetCode|
//	+-------+-------+-------+-------+
type Header struct {
	ServiceID        uint16
	MethodID         uint16
	Length           uint32 // 8 + len(payload), covers RequestID..payload
	ClientID         uint16
	SessionID        uint16
	ProtocolVersion  uint8
	InterfaceVersion uint8
	MessageType      MessageType
	ReturnCode       ReturnCode
}

// PayloadLength returns the number of payload bytes implied by Length.
func (h Header) PayloadLength() uint32 {
	if h.Length < 8 {
		return 0
	}
	return h.Length - 8
}

// SetPayloadLength sets Length from a payload byte count.
func (h *Header) SetPayloadLength(n int) {
	h.Length = uint32(n) + 8
}

// IsTP reports whether the message type carries a TP sub-header.
func (h Header) IsTP() bool {
	return h.MessageType.IsTP()
}

// IsReply reports whether the message type is a Response/Error variant.
func (h Header) IsReply() bool {
	return h.MessageType.IsReply()
}

// EncodeHeader writes h into b, which must be at least HeaderSize bytes.
func EncodeHeader(h Header, b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("wire: buffer too small to encode header: have %d, need %d", len(b), HeaderSize)
	}
	binary.BigEndian.PutUint16(b[0:2], h.ServiceID)
	binary.BigEndian.PutUint16(b[2:4], h.MethodID)
	binary.BigEndian.PutUint32(b[4:8], h.Length)
	binary.BigEndian.PutUint16(b[8:10], h.ClientID)
	binary.BigEndian.PutUint16(b[10:12], h.SessionID)
	b[12] = h.ProtocolVersion
	b[13] = h.InterfaceVersion
	b[14] = byte(h.MessageType)
	b[15] = byte(h.ReturnCode)
	return nil
}

// DecodeHeader parses a Header from b. It fails with ErrMalformed when
// fewer than HeaderSize bytes are available.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: need %d header bytes, have %d", ErrMalformed, HeaderSize, len(b))
	}
	return Header{
		ServiceID:        binary.BigEndian.Uint16(b[0:2]),
		MethodID:         binary.BigEndian.Uint16(b[2:4]),
		Length:           binary.BigEndian.Uint32(b[4:8]),
		ClientID:         binary.BigEndian.Uint16(b[8:10]),
		SessionID:        binary.BigEndian.Uint16(b[10:12]),
		ProtocolVersion:  b[12],
		InterfaceVersion: b[13],
		MessageType:      MessageType(b[14]),
		ReturnCode:       ReturnCode(b[15]),
	}, nil
}

// TPHeaderSize is the fixed size of the TP sub-header.
const TPHeaderSize = 4

// TPAlign is the unit, in bytes, that TP segment offsets are expressed in.
const TPAlign = 16

// TPHeader is the 4-byte Transport-Protocol sub-header that follows the
// message header when the message type has the TP bit (0x20) set.
type TPHeader struct {
	Offset       uint32 // absolute byte offset; must be a multiple of TPAlign
	MoreSegments bool
}

// EncodeTPHeader writes h into b, which must be at least TPHeaderSize bytes.
func EncodeTPHeader(h TPHeader, b []byte) error {
	if len(b) < TPHeaderSize {
		return fmt.Errorf("wire: buffer too small to encode TP header: have %d, need %d", len(b), TPHeaderSize)
	}
	units := h.Offset / TPAlign
	v := units << 4
	if h.MoreSegments {
		v |= 1
	}
	binary.BigEndian.PutUint32(b[0:4], v)
	return nil
}

// DecodeTPHeader parses a TPHeader from b.
func DecodeTPHeader(b []byte) (TPHeader, error) {
	if len(b) < TPHeaderSize {
		return TPHeader{}, fmt.Errorf("%w: need %d TP header bytes, have %d", ErrMalformed, TPHeaderSize, len(b))
	}
	v := binary.BigEndian.Uint32(b[0:4])
	return TPHeader{
		Offset:       (v >> 4) * TPAlign,
		MoreSegments: v&0x1 != 0,
	}, nil
}
