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

	"github.com/arunj123/go-someip/wire"
)

const (
	flagReboot  = 1 << 7
	flagUnicast = 1 << 6
)

// Packet is a decoded SD packet: the entries run and the options run they
// reference by (index, count).
type Packet struct {
	Reboot           bool
	UnicastSupported bool
	Entries          []Entry
	Options          []Option
}

// EncodePacket serialises p per spec.md §6's wire layout:
// [flags u8 | reserved 3 | entries-length u32 | entries | options-length u32 | options].
func EncodePacket(p Packet) []byte {
	var flags byte
	if p.Reboot {
		flags |= flagReboot
	}
	if p.UnicastSupported {
		flags |= flagUnicast
	}

	entryBytes := make([]byte, len(p.Entries)*EntrySize)
	for i, e := range p.Entries {
		_ = EncodeEntry(e, entryBytes[i*EntrySize:(i+1)*EntrySize])
	}

	var optionBytes []byte
	for _, o := range p.Options {
		optionBytes, _ = EncodeOption(o, optionBytes)
	}

	out := make([]byte, 0, 8+len(entryBytes)+len(optionBytes))
	out = append(out, flags, 0, 0, 0)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(entryBytes)))
	out = append(out, lenBuf[:]...)
	out = append(out, entryBytes...)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(optionBytes)))
	out = append(out, lenBuf[:]...)
	out = append(out, optionBytes...)
	return out
}

// DecodePacket parses an SD packet from b.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < 8 {
		return Packet{}, fmt.Errorf("%w: sd packet shorter than 8 bytes", wire.ErrMalformed)
	}
	flags := b[0]
	entriesLen := binary.BigEndian.Uint32(b[4:8])
	rest := b[8:]
	if uint32(len(rest)) < entriesLen {
		return Packet{}, fmt.Errorf("%w: sd packet entries run truncated", wire.ErrMalformed)
	}
	entryBytes := rest[:entriesLen]
	rest = rest[entriesLen:]

	if len(rest) < 4 {
		return Packet{}, fmt.Errorf("%w: sd packet missing options length", wire.ErrMalformed)
	}
	optionsLen := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint32(len(rest)) < optionsLen {
		return Packet{}, fmt.Errorf("%w: sd packet options run truncated", wire.ErrMalformed)
	}
	optionBytes := rest[:optionsLen]

	var entries []Entry
	for len(entryBytes) >= EntrySize {
		e, err := DecodeEntry(entryBytes[:EntrySize])
		if err != nil {
			return Packet{}, err
		}
		entries = append(entries, e)
		entryBytes = entryBytes[EntrySize:]
	}

	var options []Option
	for len(optionBytes) > 0 {
		o, n, err := DecodeOption(optionBytes)
		if err != nil {
			return Packet{}, err
		}
		options = append(options, o)
		optionBytes = optionBytes[n:]
	}

	return Packet{
		Reboot:           flags&flagReboot != 0,
		UnicastSupported: flags&flagUnicast != 0,
		Entries:          entries,
		Options:          options,
	}, nil
}

// OptionsForEntry resolves the two (index, count) option runs an entry
// references, bounds-checked against p.Options.
func (p Packet) OptionsForEntry(e Entry) (run1, run2 []Option, err error) {
	run1, err = sliceOptions(p.Options, e.Index1, e.NOpts1)
	if err != nil {
		return nil, nil, err
	}
	run2, err = sliceOptions(p.Options, e.Index2, e.NOpts2)
	if err != nil {
		return nil, nil, err
	}
	return run1, run2, nil
}

func sliceOptions(opts []Option, index, count uint8) ([]Option, error) {
	if count == 0 {
		return nil, nil
	}
	start := int(index)
	end := start + int(count)
	if start < 0 || end > len(opts) {
		return nil, fmt.Errorf("%w: option run [%d,%d) out of bounds (have %d)", wire.ErrMalformed, start, end, len(opts))
	}
	return opts[start:end], nil
}
