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

// MessageType is the SOME/IP message type, a closed enumeration where the
// high bit (0x80) marks a reply and bit 0x20 marks a TP (segmented) carrier.
type MessageType uint8

// As per the SOME/IP protocol specification message type table.
const (
	MessageRequest               MessageType = 0x00
	MessageRequestNoReturn       MessageType = 0x01
	MessageNotification          MessageType = 0x02
	MessageRequestWithTp         MessageType = 0x20
	MessageRequestNoReturnWithTp MessageType = 0x21
	MessageNotificationWithTp    MessageType = 0x22
	MessageResponse              MessageType = 0x80
	MessageError                 MessageType = 0x81
	MessageResponseWithTp        MessageType = 0xA0
	MessageErrorWithTp           MessageType = 0xA1
)

const (
	tpFlag    MessageType = 0x20
	replyFlag MessageType = 0x80
)

// messageTypeNames maps MessageType to its wire-table name.
var messageTypeNames = map[MessageType]string{
	MessageRequest:               "REQUEST",
	MessageRequestNoReturn:       "REQUEST_NO_RETURN",
	MessageNotification:          "NOTIFICATION",
	MessageRequestWithTp:         "REQUEST_WITH_TP",
	MessageRequestNoReturnWithTp: "REQUEST_NO_RETURN_WITH_TP",
	MessageNotificationWithTp:    "NOTIFICATION_WITH_TP",
	MessageResponse:              "RESPONSE",
	MessageError:                 "ERROR",
	MessageResponseWithTp:        "RESPONSE_WITH_TP",
	MessageErrorWithTp:           "ERROR_WITH_TP",
}

func (m MessageType) String() string {
	if s, ok := messageTypeNames[m]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsTP reports whether bit 0x20 (segmented carrier) is set.
func (m MessageType) IsTP() bool {
	return m&tpFlag != 0
}

// IsReply reports whether bit 0x80 (response/error) is set.
func (m MessageType) IsReply() bool {
	return m&replyFlag != 0
}

// WithTP returns the TP-carrying variant of m, where one exists.
func (m MessageType) WithTP() MessageType {
	switch m {
	case MessageRequest:
		return MessageRequestWithTp
	case MessageRequestNoReturn:
		return MessageRequestNoReturnWithTp
	case MessageNotification:
		return MessageNotificationWithTp
	case MessageResponse:
		return MessageResponseWithTp
	case MessageError:
		return MessageErrorWithTp
	default:
		return m
	}
}

// WithoutTP strips bit 0x20, returning the base (non-segmented) message type.
func (m MessageType) WithoutTP() MessageType {
	return m &^ tpFlag
}

// ReturnCode is the SOME/IP return code, closed enumeration.
type ReturnCode uint8

// As per the SOME/IP protocol specification return code table.
const (
	ReturnOk                    ReturnCode = 0x00
	ReturnNotOk                 ReturnCode = 0x01
	ReturnUnknownService        ReturnCode = 0x02
	ReturnUnknownMethod         ReturnCode = 0x03
	ReturnNotReady              ReturnCode = 0x04
	ReturnNotReachable          ReturnCode = 0x05
	ReturnTimeout               ReturnCode = 0x06
	ReturnWrongProtocolVersion  ReturnCode = 0x07
	ReturnWrongInterfaceVersion ReturnCode = 0x08
	ReturnMalformedMessage      ReturnCode = 0x09
	ReturnWrongMessageType      ReturnCode = 0x0A
	ReturnE2eRepeated           ReturnCode = 0x0B
	ReturnE2eWrongSequence      ReturnCode = 0x0C
	ReturnE2eNotAvailable       ReturnCode = 0x0D
	ReturnE2eNoNewData          ReturnCode = 0x0E
)

var returnCodeNames = map[ReturnCode]string{
	ReturnOk:                    "E_OK",
	ReturnNotOk:                 "E_NOT_OK",
	ReturnUnknownService:        "E_UNKNOWN_SERVICE",
	ReturnUnknownMethod:         "E_UNKNOWN_METHOD",
	ReturnNotReady:              "E_NOT_READY",
	ReturnNotReachable:          "E_NOT_REACHABLE",
	ReturnTimeout:               "E_TIMEOUT",
	ReturnWrongProtocolVersion:  "E_WRONG_PROTOCOL_VERSION",
	ReturnWrongInterfaceVersion: "E_WRONG_INTERFACE_VERSION",
	ReturnMalformedMessage:      "E_MALFORMED_MESSAGE",
	ReturnWrongMessageType:      "E_WRONG_MESSAGE_TYPE",
	ReturnE2eRepeated:           "E_E2E_REPEATED",
	ReturnE2eWrongSequence:      "E_E2E_WRONG_SEQUENCE",
	ReturnE2eNotAvailable:       "E_E2E_NOT_AVAILABLE",
	ReturnE2eNoNewData:          "E_E2E_NO_NEW_DATA",
}

func (r ReturnCode) String() string {
	if s, ok := returnCodeNames[r]; ok {
		return s
	}
	return "E_UNKNOWN"
}
