// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/protocol.go
// Summary: The fixed wire header and framing used by every message the
//           dispatcher exchanges with clients.
// Usage: transport.Channel carries raw datagrams; WriteMessage/ReadMessage
//        (de)serialize a Header plus payload onto one datagram each.

package protocol

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

const (
	magic      uint32 = 0x594e5401 // "YNT\x01"
	headerSize        = 16
)

// Flag bits for the header Flags byte.
const (
	FlagChecksum uint8 = 0x01
)

// Version is the negotiated protocol version implemented by this package.
const Version uint8 = 1

// MessageType enumerates the message categories the dispatcher understands.
// Unknown values are logged and dropped, per the message dispatcher's
// design.
type MessageType uint8

const (
	MsgHello MessageType = iota
	MsgWelcome
	MsgWindowNew
	MsgWindowInit
	MsgFlip
	MsgFlipRegion
	MsgKeyEvent
	MsgMouseEvent
	MsgWindowMove
	MsgWindowClose
	MsgWindowStack
	MsgResizeRequest
	MsgResizeOffer
	MsgResizeAccept
	MsgResizeBufid
	MsgResizeDone
	MsgQueryWindows
	MsgWindowAdvertise
	MsgSubscribe
	MsgUnsubscribe
	MsgSessionEnd
	MsgWindowFocus
	MsgKeyBind
	MsgWindowDragStart
	MsgWindowUpdateShape
	MsgFocusChanged
	MsgMouseDown
	MsgMouseMove
	MsgMouseEnter
	MsgMouseLeave
	MsgMouseClick
	MsgMouseRaise
	MsgMouseDrag
	MsgInputSourceRegister
)

// Header describes the fixed portion of every frame exchanged over the
// wire. The transport layer attaches the sender's identity out of band;
// it is not part of the wire header.
type Header struct {
	Version  uint8
	Type     MessageType
	Flags    uint8
	Reserved uint8

	PayloadLen uint32
	Checksum   uint32
}

var (
	ErrInvalidMagic     = errors.New("protocol: invalid magic")
	ErrUnsupportedVer   = errors.New("protocol: unsupported version")
	ErrShortDatagram    = errors.New("protocol: datagram shorter than header")
	ErrShortPayload     = errors.New("protocol: payload shorter than declared length")
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
)

// EncodeMessage serialises a header (always with FlagChecksum set) and
// payload into a single datagram suitable for transport.Channel.Send.
func EncodeMessage(msgType MessageType, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	buf[4] = Version
	buf[5] = byte(msgType)
	buf[6] = FlagChecksum
	buf[7] = 0
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(payload)))

	if len(payload) > 0 {
		copy(buf[headerSize:], payload)
	}

	crc := crc32.NewIEEE()
	_, _ = crc.Write(buf[4:12])
	if len(payload) > 0 {
		_, _ = crc.Write(payload)
	}
	binary.LittleEndian.PutUint32(buf[12:16], crc.Sum32())

	return buf
}

// DecodeMessage parses a single datagram into its header and payload. The
// returned payload aliases buf.
func DecodeMessage(buf []byte) (Header, []byte, error) {
	var hdr Header
	if len(buf) < headerSize {
		return hdr, nil, ErrShortDatagram
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return hdr, nil, ErrInvalidMagic
	}

	hdr.Version = buf[4]
	hdr.Type = MessageType(buf[5])
	hdr.Flags = buf[6]
	hdr.Reserved = buf[7]
	hdr.PayloadLen = binary.LittleEndian.Uint32(buf[8:12])
	hdr.Checksum = binary.LittleEndian.Uint32(buf[12:16])

	if hdr.Version != Version {
		return hdr, nil, ErrUnsupportedVer
	}

	payload := buf[headerSize:]
	if uint32(len(payload)) < hdr.PayloadLen {
		return hdr, nil, ErrShortPayload
	}
	payload = payload[:hdr.PayloadLen]

	if hdr.Flags&FlagChecksum != 0 {
		crc := crc32.NewIEEE()
		_, _ = crc.Write(buf[4:12])
		if len(payload) > 0 {
			_, _ = crc.Write(payload)
		}
		if crc.Sum32() != hdr.Checksum {
			return hdr, nil, ErrChecksumMismatch
		}
	}

	return hdr, payload, nil
}
