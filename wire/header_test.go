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

func TestHeaderRoundtrip(t *testing.T) {
	h := Header{
		ServiceID:        0x1234,
		MethodID:         0x5678,
		ClientID:         0x0001,
		SessionID:        0x0002,
		ProtocolVersion:  ProtocolVersion,
		InterfaceVersion: 1,
		MessageType:      MessageRequest,
		ReturnCode:       ReturnOk,
	}
	h.SetPayloadLength(100)

	b := make([]byte, HeaderSize)
	require.NoError(t, EncodeHeader(h, b))
	require.Equal(t, uint32(108), h.Length)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x6c}, b[4:8])

	got, err := DecodeHeader(b)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestDecodeHeaderTooShort(t *testing.T) {
	_, err := DecodeHeader(make([]byte, 15))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestTPHeaderRoundtrip(t *testing.T) {
	t.Run("more segments", func(t *testing.T) {
		h := TPHeader{Offset: 1376, MoreSegments: true}
		b := make([]byte, TPHeaderSize)
		require.NoError(t, EncodeTPHeader(h, b))
		got, err := DecodeTPHeader(b)
		require.NoError(t, err)
		require.Equal(t, h, got)
	})
	t.Run("last segment", func(t *testing.T) {
		h := TPHeader{Offset: 5504, MoreSegments: false}
		b := make([]byte, TPHeaderSize)
		require.NoError(t, EncodeTPHeader(h, b))
		got, err := DecodeTPHeader(b)
		require.NoError(t, err)
		require.Equal(t, h, got)
	})
}

func TestMessageTypeFlags(t *testing.T) {
	require.True(t, MessageRequestWithTp.IsTP())
	require.False(t, MessageRequest.IsTP())
	require.True(t, MessageResponse.IsReply())
	require.False(t, MessageRequest.IsReply())
	require.Equal(t, MessageRequestWithTp, MessageRequest.WithTP())
	require.Equal(t, MessageRequest, MessageRequestWithTp.WithoutTP())
}
