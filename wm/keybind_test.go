// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package wm

import "testing"

func TestBindLookupUnbind(t *testing.T) {
	tbl := NewKeyBindTable()
	tbl.Bind(uint32(ModSuper), 'Q', ClientID(42), Steal)

	b, ok := tbl.Lookup(uint32(ModSuper), 'Q')
	if !ok {
		t.Fatalf("expected a binding to be found")
	}
	if b.Owner != 42 || b.Response != Steal {
		t.Fatalf("unexpected binding: %+v", b)
	}

	tbl.Unbind(uint32(ModSuper), 'Q')
	if _, ok := tbl.Lookup(uint32(ModSuper), 'Q'); ok {
		t.Fatalf("expected no binding after unbind")
	}
}

func TestBindKeyDistinguishesModifiersAndKeycode(t *testing.T) {
	tbl := NewKeyBindTable()
	tbl.Bind(uint32(ModSuper), 'Q', ClientID(1), PassThrough)
	tbl.Bind(uint32(ModCtrl), 'Q', ClientID(2), PassThrough)

	a, _ := tbl.Lookup(uint32(ModSuper), 'Q')
	b, _ := tbl.Lookup(uint32(ModCtrl), 'Q')
	if a.Owner == b.Owner {
		t.Fatalf("expected distinct bindings per modifier combination")
	}
}

func TestUnbindOwnerRemovesOnlyThatOwnersBindings(t *testing.T) {
	tbl := NewKeyBindTable()
	tbl.Bind(0, 'A', ClientID(1), PassThrough)
	tbl.Bind(0, 'B', ClientID(2), PassThrough)

	tbl.UnbindOwner(ClientID(1))

	if _, ok := tbl.Lookup(0, 'A'); ok {
		t.Fatalf("expected client 1's binding to be removed")
	}
	if _, ok := tbl.Lookup(0, 'B'); !ok {
		t.Fatalf("expected client 2's binding to survive")
	}
}
