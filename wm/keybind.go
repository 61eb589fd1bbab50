// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: wm/keybind.go
// Summary: Global key-binding table consulted after built-in key handling.

package wm

// BindResponse tells the input state machine whether a bound key event
// should also be forwarded to the focused window.
type BindResponse uint8

const (
	PassThrough BindResponse = iota
	Steal
)

// Binding is one entry in the key-bind table.
type Binding struct {
	Owner    ClientID
	Response BindResponse
}

func bindKey(modifiers uint32, keycode uint32) uint32 {
	return (modifiers << 24) | (keycode & 0x00FFFFFF)
}

// KeyBindTable is the hashmap of (modifiers, keycode) -> (owner, response)
// described by the data model.
type KeyBindTable struct {
	binds map[uint32]Binding
}

// NewKeyBindTable returns an empty bind table.
func NewKeyBindTable() *KeyBindTable {
	return &KeyBindTable{binds: make(map[uint32]Binding)}
}

// Bind registers or replaces a binding for (modifiers, keycode).
func (t *KeyBindTable) Bind(modifiers, keycode uint32, owner ClientID, resp BindResponse) {
	t.binds[bindKey(modifiers, keycode)] = Binding{Owner: owner, Response: resp}
}

// Unbind removes a binding, if any.
func (t *KeyBindTable) Unbind(modifiers, keycode uint32) {
	delete(t.binds, bindKey(modifiers, keycode))
}

// Lookup returns the binding for (modifiers, keycode), if one exists.
func (t *KeyBindTable) Lookup(modifiers, keycode uint32) (Binding, bool) {
	b, ok := t.binds[bindKey(modifiers, keycode)]
	return b, ok
}

// UnbindOwner removes every binding held by owner, used on client
// disconnect.
func (t *KeyBindTable) UnbindOwner(owner ClientID) {
	for k, b := range t.binds {
		if b.Owner == owner {
			delete(t.binds, k)
		}
	}
}
