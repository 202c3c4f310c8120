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

// Package tp implements the SOME/IP Transport-Protocol (TP) segmentation
// and reassembly layer used to carry payloads larger than the transport's
// effective MTU.
package tp

import "github.com/arunj123/go-someip/wire"

// Segment is one TP-carried slice of a larger payload, paired with the
// sub-header that describes its position.
type Segment struct {
	Header  wire.TPHeader
	Payload []byte
}

// SegmentPayload splits payload into TP segments whose payload length (other
// than the last) is the largest multiple of 16 not exceeding
// maxSegmentPayload. An empty payload produces a single zero-length segment
// with More=false.
func SegmentPayload(payload []byte, maxSegmentPayload int) []Segment {
	aligned := (maxSegmentPayload / wire.TPAlign) * wire.TPAlign
	if aligned <= 0 {
		aligned = wire.TPAlign
	}

	if len(payload) == 0 {
		return []Segment{{Header: wire.TPHeader{Offset: 0, MoreSegments: false}, Payload: nil}}
	}

	var segments []Segment
	offset := 0
	for offset < len(payload) {
		end := offset + aligned
		more := true
		if end >= len(payload) {
			end = len(payload)
			more = false
		}
		segments = append(segments, Segment{
			Header:  wire.TPHeader{Offset: uint32(offset), MoreSegments: more},
			Payload: payload[offset:end],
		})
		offset = end
	}
	return segments
}
