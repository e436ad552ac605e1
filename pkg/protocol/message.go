package protocol

import "fmt"

// MessageType is the leading tag byte of a binary message from the
// pattern source.
type MessageType uint8

const (
	// From the web UI to the pattern source.
	MsgPutSourceCode  MessageType = 0x01
	MsgPutByteCode    MessageType = 0x03
	MsgPreviewImage   MessageType = 0x04
	MsgGetProgramList MessageType = 0x07
	MsgPutPixelMap    MessageType = 0x08

	// From the pattern source to the web UI.
	MsgPreviewFrame  MessageType = 0x05
	MsgGetSourceCode MessageType = 0x06

	// Both directions.
	MsgExpanderConfig MessageType = 0x09
)

// MessageTypeOf maps a tag byte to its message type. Every byte maps to
// something; unrecognized tags report IsKnown() == false.
func MessageTypeOf(tag byte) MessageType {
	return MessageType(tag)
}

// IsKnown reports whether the tag is part of the vendor message table.
func (mt MessageType) IsKnown() bool {
	switch mt {
	case MsgPutSourceCode, MsgPutByteCode, MsgPreviewImage, MsgPreviewFrame,
		MsgGetSourceCode, MsgGetProgramList, MsgPutPixelMap, MsgExpanderConfig:
		return true
	}
	return false
}

// String returns the string representation of the message type.
func (mt MessageType) String() string {
	switch mt {
	case MsgPutSourceCode:
		return "PutSourceCode"
	case MsgPutByteCode:
		return "PutByteCode"
	case MsgPreviewImage:
		return "PreviewImage"
	case MsgPreviewFrame:
		return "PreviewFrame"
	case MsgGetSourceCode:
		return "GetSourceCode"
	case MsgGetProgramList:
		return "GetProgramList"
	case MsgPutPixelMap:
		return "PutPixelMap"
	case MsgExpanderConfig:
		return "ExpanderConfig"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(mt))
	}
}
