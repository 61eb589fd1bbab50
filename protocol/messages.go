// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/messages.go
// Summary: Message payload types and their wire encodings, one pair of
//           Encode*/Decode* functions per MessageType.

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var (
	errStringTooLong = errors.New("protocol: string exceeds 64KB limit")
	errPayloadShort  = errors.New("protocol: payload too short")
)

func encodeString(buf *bytes.Buffer, value string) error {
	if len(value) > 0xFFFF {
		return errStringTooLong
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(value))); err != nil {
		return err
	}
	if len(value) > 0 {
		if _, err := buf.WriteString(value); err != nil {
			return err
		}
	}
	return nil
}

func decodeString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, errPayloadShort
	}
	length := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]
	if uint16(len(b)) < length {
		return "", nil, errPayloadShort
	}
	return string(b[:length]), b[length:], nil
}

// Welcome answers HELLO with the screen dimensions.
type Welcome struct {
	ScreenW int32
	ScreenH int32
}

func EncodeWelcome(w Welcome) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 8))
	binary.Write(buf, binary.LittleEndian, w.ScreenW)
	binary.Write(buf, binary.LittleEndian, w.ScreenH)
	return buf.Bytes()
}

func DecodeWelcome(b []byte) (Welcome, error) {
	var w Welcome
	if len(b) < 8 {
		return w, errPayloadShort
	}
	w.ScreenW = int32(binary.LittleEndian.Uint32(b[0:4]))
	w.ScreenH = int32(binary.LittleEndian.Uint32(b[4:8]))
	return w, nil
}

// WindowNew requests a new window of the given size.
type WindowNew struct {
	Width  int32
	Height int32
}

func EncodeWindowNew(m WindowNew) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 8))
	binary.Write(buf, binary.LittleEndian, m.Width)
	binary.Write(buf, binary.LittleEndian, m.Height)
	return buf.Bytes()
}

func DecodeWindowNew(b []byte) (WindowNew, error) {
	var m WindowNew
	if len(b) < 8 {
		return m, errPayloadShort
	}
	m.Width = int32(binary.LittleEndian.Uint32(b[0:4]))
	m.Height = int32(binary.LittleEndian.Uint32(b[4:8]))
	return m, nil
}

// WindowInit answers WINDOW_NEW with the allocated wid and buffer id.
type WindowInit struct {
	Wid    uint32
	Width  int32
	Height int32
	BufID  uint32
}

func EncodeWindowInit(m WindowInit) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 16))
	binary.Write(buf, binary.LittleEndian, m.Wid)
	binary.Write(buf, binary.LittleEndian, m.Width)
	binary.Write(buf, binary.LittleEndian, m.Height)
	binary.Write(buf, binary.LittleEndian, m.BufID)
	return buf.Bytes()
}

func DecodeWindowInit(b []byte) (WindowInit, error) {
	var m WindowInit
	if len(b) < 16 {
		return m, errPayloadShort
	}
	m.Wid = binary.LittleEndian.Uint32(b[0:4])
	m.Width = int32(binary.LittleEndian.Uint32(b[4:8]))
	m.Height = int32(binary.LittleEndian.Uint32(b[8:12]))
	m.BufID = binary.LittleEndian.Uint32(b[12:16])
	return m, nil
}

// WindowRef names a window by id alone (FLIP, WINDOW_CLOSE, WINDOW_FOCUS,
// WINDOW_DRAG_START).
type WindowRef struct {
	Wid uint32
}

func EncodeWindowRef(m WindowRef) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, m.Wid)
	return buf
}

func DecodeWindowRef(b []byte) (WindowRef, error) {
	var m WindowRef
	if len(b) < 4 {
		return m, errPayloadShort
	}
	m.Wid = binary.LittleEndian.Uint32(b[0:4])
	return m, nil
}

// FlipRegion marks a sub-rectangle of a window dirty.
type FlipRegion struct {
	Wid           uint32
	X, Y, W, H    int32
}

func EncodeFlipRegion(m FlipRegion) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 20))
	binary.Write(buf, binary.LittleEndian, m.Wid)
	binary.Write(buf, binary.LittleEndian, m.X)
	binary.Write(buf, binary.LittleEndian, m.Y)
	binary.Write(buf, binary.LittleEndian, m.W)
	binary.Write(buf, binary.LittleEndian, m.H)
	return buf.Bytes()
}

func DecodeFlipRegion(b []byte) (FlipRegion, error) {
	var m FlipRegion
	if len(b) < 20 {
		return m, errPayloadShort
	}
	m.Wid = binary.LittleEndian.Uint32(b[0:4])
	m.X = int32(binary.LittleEndian.Uint32(b[4:8]))
	m.Y = int32(binary.LittleEndian.Uint32(b[8:12]))
	m.W = int32(binary.LittleEndian.Uint32(b[12:16]))
	m.H = int32(binary.LittleEndian.Uint32(b[16:20]))
	return m, nil
}

// KeyEvent carries a raw keyboard event, from an input source or a client
// echoing one back to the dispatcher.
type KeyEvent struct {
	Keycode   uint32
	Modifiers uint32
	Pressed   bool
}

func EncodeKeyEvent(m KeyEvent) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 9))
	binary.Write(buf, binary.LittleEndian, m.Keycode)
	binary.Write(buf, binary.LittleEndian, m.Modifiers)
	if m.Pressed {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func DecodeKeyEvent(b []byte) (KeyEvent, error) {
	var m KeyEvent
	if len(b) < 9 {
		return m, errPayloadShort
	}
	m.Keycode = binary.LittleEndian.Uint32(b[0:4])
	m.Modifiers = binary.LittleEndian.Uint32(b[4:8])
	m.Pressed = b[8] != 0
	return m, nil
}

// MouseEvent carries a raw pointer sample in subpixel screen coordinates.
type MouseEvent struct {
	X, Y     int32
	Buttons  uint8
	Pressed  uint8
	Released uint8
}

func EncodeMouseEvent(m MouseEvent) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 11))
	binary.Write(buf, binary.LittleEndian, m.X)
	binary.Write(buf, binary.LittleEndian, m.Y)
	buf.WriteByte(m.Buttons)
	buf.WriteByte(m.Pressed)
	buf.WriteByte(m.Released)
	return buf.Bytes()
}

func DecodeMouseEvent(b []byte) (MouseEvent, error) {
	var m MouseEvent
	if len(b) < 11 {
		return m, errPayloadShort
	}
	m.X = int32(binary.LittleEndian.Uint32(b[0:4]))
	m.Y = int32(binary.LittleEndian.Uint32(b[4:8]))
	m.Buttons = b[8]
	m.Pressed = b[9]
	m.Released = b[10]
	return m, nil
}

// WindowMove repositions a window.
type WindowMove struct {
	Wid  uint32
	X, Y int32
}

func EncodeWindowMove(m WindowMove) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 12))
	binary.Write(buf, binary.LittleEndian, m.Wid)
	binary.Write(buf, binary.LittleEndian, m.X)
	binary.Write(buf, binary.LittleEndian, m.Y)
	return buf.Bytes()
}

func DecodeWindowMove(b []byte) (WindowMove, error) {
	var m WindowMove
	if len(b) < 12 {
		return m, errPayloadShort
	}
	m.Wid = binary.LittleEndian.Uint32(b[0:4])
	m.X = int32(binary.LittleEndian.Uint32(b[4:8]))
	m.Y = int32(binary.LittleEndian.Uint32(b[8:12]))
	return m, nil
}

// WindowStack reorders a window into a new z-band. Z is wm.Band's wire
// encoding: 0=BOTTOM, 1=MID, 2=TOP.
type WindowStack struct {
	Wid uint32
	Z   uint8
}

func EncodeWindowStack(m WindowStack) []byte {
	buf := make([]byte, 5)
	binary.LittleEndian.PutUint32(buf[0:4], m.Wid)
	buf[4] = m.Z
	return buf
}

func DecodeWindowStack(b []byte) (WindowStack, error) {
	var m WindowStack
	if len(b) < 5 {
		return m, errPayloadShort
	}
	m.Wid = binary.LittleEndian.Uint32(b[0:4])
	m.Z = b[4]
	return m, nil
}

// ResizeDims is the common (wid, w, h) shape shared by RESIZE_REQUEST,
// RESIZE_ACCEPT, and RESIZE_DONE.
type ResizeDims struct {
	Wid    uint32
	Width  int32
	Height int32
}

func EncodeResizeDims(m ResizeDims) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 12))
	binary.Write(buf, binary.LittleEndian, m.Wid)
	binary.Write(buf, binary.LittleEndian, m.Width)
	binary.Write(buf, binary.LittleEndian, m.Height)
	return buf.Bytes()
}

func DecodeResizeDims(b []byte) (ResizeDims, error) {
	var m ResizeDims
	if len(b) < 12 {
		return m, errPayloadShort
	}
	m.Wid = binary.LittleEndian.Uint32(b[0:4])
	m.Width = int32(binary.LittleEndian.Uint32(b[4:8]))
	m.Height = int32(binary.LittleEndian.Uint32(b[8:12]))
	return m, nil
}

// ResizeOffer proposes new dimensions; Serial is 0 unless the offer is
// itself echoing a prior request.
type ResizeOffer struct {
	Wid    uint32
	Width  int32
	Height int32
	Serial uint32
}

func EncodeResizeOffer(m ResizeOffer) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 16))
	binary.Write(buf, binary.LittleEndian, m.Wid)
	binary.Write(buf, binary.LittleEndian, m.Width)
	binary.Write(buf, binary.LittleEndian, m.Height)
	binary.Write(buf, binary.LittleEndian, m.Serial)
	return buf.Bytes()
}

func DecodeResizeOffer(b []byte) (ResizeOffer, error) {
	var m ResizeOffer
	if len(b) < 16 {
		return m, errPayloadShort
	}
	m.Wid = binary.LittleEndian.Uint32(b[0:4])
	m.Width = int32(binary.LittleEndian.Uint32(b[4:8]))
	m.Height = int32(binary.LittleEndian.Uint32(b[8:12]))
	m.Serial = binary.LittleEndian.Uint32(b[12:16])
	return m, nil
}

// ResizeBufid answers RESIZE_ACCEPT with the pending buffer's id.
type ResizeBufid struct {
	Wid    uint32
	Width  int32
	Height int32
	BufID  uint32
}

func EncodeResizeBufid(m ResizeBufid) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 16))
	binary.Write(buf, binary.LittleEndian, m.Wid)
	binary.Write(buf, binary.LittleEndian, m.Width)
	binary.Write(buf, binary.LittleEndian, m.Height)
	binary.Write(buf, binary.LittleEndian, m.BufID)
	return buf.Bytes()
}

func DecodeResizeBufid(b []byte) (ResizeBufid, error) {
	var m ResizeBufid
	if len(b) < 16 {
		return m, errPayloadShort
	}
	m.Wid = binary.LittleEndian.Uint32(b[0:4])
	m.Width = int32(binary.LittleEndian.Uint32(b[4:8]))
	m.Height = int32(binary.LittleEndian.Uint32(b[8:12]))
	m.BufID = binary.LittleEndian.Uint32(b[12:16])
	return m, nil
}

// WindowAdvertise carries a window's opaque advertisement payload, both as
// a client request (WINDOW_ADVERTISE) and as the per-window record streamed
// back by QUERY_WINDOWS. Wid == 0 terminates a QUERY_WINDOWS stream.
type WindowAdvertise struct {
	Wid           uint32
	Flags         uint32
	Offsets       [6]int32
	Width, Height int32
	X, Y          int32
	Strings       string
}

func EncodeWindowAdvertise(m WindowAdvertise) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 48+len(m.Strings)))
	binary.Write(buf, binary.LittleEndian, m.Wid)
	binary.Write(buf, binary.LittleEndian, m.Flags)
	for _, o := range m.Offsets {
		binary.Write(buf, binary.LittleEndian, o)
	}
	binary.Write(buf, binary.LittleEndian, m.Width)
	binary.Write(buf, binary.LittleEndian, m.Height)
	binary.Write(buf, binary.LittleEndian, m.X)
	binary.Write(buf, binary.LittleEndian, m.Y)
	encodeString(buf, m.Strings)
	return buf.Bytes()
}

func DecodeWindowAdvertise(b []byte) (WindowAdvertise, error) {
	var m WindowAdvertise
	if len(b) < 48 {
		return m, errPayloadShort
	}
	m.Wid = binary.LittleEndian.Uint32(b[0:4])
	m.Flags = binary.LittleEndian.Uint32(b[4:8])
	for i := 0; i < 6; i++ {
		off := 8 + i*4
		m.Offsets[i] = int32(binary.LittleEndian.Uint32(b[off : off+4]))
	}
	rest := b[32:]
	m.Width = int32(binary.LittleEndian.Uint32(rest[0:4]))
	m.Height = int32(binary.LittleEndian.Uint32(rest[4:8]))
	m.X = int32(binary.LittleEndian.Uint32(rest[8:12]))
	m.Y = int32(binary.LittleEndian.Uint32(rest[12:16]))
	str, _, err := decodeString(rest[16:])
	if err != nil {
		return m, err
	}
	m.Strings = str
	return m, nil
}

// WindowFocus requests focus for a window.
type WindowFocus struct {
	Wid uint32
}

func EncodeWindowFocus(m WindowFocus) []byte { return EncodeWindowRef(WindowRef{Wid: m.Wid}) }

func DecodeWindowFocus(b []byte) (WindowFocus, error) {
	ref, err := DecodeWindowRef(b)
	return WindowFocus(ref), err
}

// KeyBind installs or overwrites a global key binding.
type KeyBind struct {
	Modifiers uint32
	Keycode   uint32
	Response  uint8
}

func EncodeKeyBind(m KeyBind) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 9))
	binary.Write(buf, binary.LittleEndian, m.Modifiers)
	binary.Write(buf, binary.LittleEndian, m.Keycode)
	buf.WriteByte(m.Response)
	return buf.Bytes()
}

func DecodeKeyBind(b []byte) (KeyBind, error) {
	var m KeyBind
	if len(b) < 9 {
		return m, errPayloadShort
	}
	m.Modifiers = binary.LittleEndian.Uint32(b[0:4])
	m.Keycode = binary.LittleEndian.Uint32(b[4:8])
	m.Response = b[8]
	return m, nil
}

// WindowUpdateShape sets a window's hit-test alpha threshold.
type WindowUpdateShape struct {
	Wid       uint32
	Threshold uint8
}

func EncodeWindowUpdateShape(m WindowUpdateShape) []byte {
	buf := make([]byte, 5)
	binary.LittleEndian.PutUint32(buf[0:4], m.Wid)
	buf[4] = m.Threshold
	return buf
}

func DecodeWindowUpdateShape(b []byte) (WindowUpdateShape, error) {
	var m WindowUpdateShape
	if len(b) < 5 {
		return m, errPayloadShort
	}
	m.Wid = binary.LittleEndian.Uint32(b[0:4])
	m.Threshold = b[4]
	return m, nil
}

// FocusChanged notifies a client that one of its windows gained or lost
// focus.
type FocusChanged struct {
	Wid     uint32
	Focused bool
}

func EncodeFocusChanged(m FocusChanged) []byte {
	buf := make([]byte, 5)
	binary.LittleEndian.PutUint32(buf[0:4], m.Wid)
	if m.Focused {
		buf[4] = 1
	}
	return buf
}

func DecodeFocusChanged(b []byte) (FocusChanged, error) {
	var m FocusChanged
	if len(b) < 5 {
		return m, errPayloadShort
	}
	m.Wid = binary.LittleEndian.Uint32(b[0:4])
	m.Focused = b[4] != 0
	return m, nil
}

// PointerDelivery is the common shape of every pointer event the dispatcher
// delivers to a client window (MOUSE_DOWN, MOUSE_MOVE, MOUSE_ENTER,
// MOUSE_LEAVE, MOUSE_CLICK, MOUSE_RAISE, MOUSE_DRAG): window-local
// coordinates, plus a prior position for the drag/raise variants.
type PointerDelivery struct {
	Wid                uint32
	X, Y               int32
	OldX, OldY         int32
}

func EncodePointerDelivery(m PointerDelivery) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 20))
	binary.Write(buf, binary.LittleEndian, m.Wid)
	binary.Write(buf, binary.LittleEndian, m.X)
	binary.Write(buf, binary.LittleEndian, m.Y)
	binary.Write(buf, binary.LittleEndian, m.OldX)
	binary.Write(buf, binary.LittleEndian, m.OldY)
	return buf.Bytes()
}

func DecodePointerDelivery(b []byte) (PointerDelivery, error) {
	var m PointerDelivery
	if len(b) < 20 {
		return m, errPayloadShort
	}
	m.Wid = binary.LittleEndian.Uint32(b[0:4])
	m.X = int32(binary.LittleEndian.Uint32(b[4:8]))
	m.Y = int32(binary.LittleEndian.Uint32(b[8:12]))
	m.OldX = int32(binary.LittleEndian.Uint32(b[12:16]))
	m.OldY = int32(binary.LittleEndian.Uint32(b[16:20]))
	return m, nil
}

// InputSourceRegister authenticates a client as a privileged producer of
// KEY_EVENT/MOUSE_EVENT packets, resolving the trust question the design
// notes leave open: the dispatcher only accepts input packets from clients
// that registered with the token configured for the mouse/keyboard source
// workers.
type InputSourceRegister struct {
	Token string
}

func EncodeInputSourceRegister(m InputSourceRegister) []byte {
	buf := bytes.NewBuffer(nil)
	encodeString(buf, m.Token)
	return buf.Bytes()
}

func DecodeInputSourceRegister(b []byte) (InputSourceRegister, error) {
	var m InputSourceRegister
	tok, _, err := decodeString(b)
	if err != nil {
		return m, err
	}
	m.Token = tok
	return m, nil
}
