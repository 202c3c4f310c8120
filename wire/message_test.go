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

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageRoundtrip(t *testing.T) {
	h := Header{ServiceID: 0x1001, MethodID: 0x0001, ClientID: 7, SessionID: 9,
		ProtocolVersion: ProtocolVersion, InterfaceVersion: 1, MessageType: MessageRequest}
	h.SetPayloadLength(2)
	m := Message{Header: h, Payload: []byte{10, 20}}

	b := m.Bytes()
	require.Len(t, b, HeaderSize+2)

	got, err := DecodeMessage(b)
	require.NoError(t, err)
	require.Equal(t, m.Header, got.Header)
	require.Equal(t, m.Payload, got.Payload)
	require.NoError(t, ValidateLength(got.Header, len(got.Payload)))
}
