// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package wm

import (
	"testing"

	"github.com/duskwm/compositord/shm"
)

func realBufferAlloc(wid uint32, size int) (*shm.Region, uint32, error) {
	region, err := shm.Create("compositord-test.window", size)
	return region, wid, err
}

func TestComposeAdvancesTickEachFrame(t *testing.T) {
	reg := NewRegistry()
	dq := NewDamageQueue()
	surf := NewImageSurface(64, 64)
	c := NewCompositor(reg, dq, surf)

	c.Compose(0)
	if c.Tick() != tickStep {
		t.Fatalf("expected tick to advance by %d, got %d", tickStep, c.Tick())
	}
	c.Compose(16)
	if c.Tick() != 2*tickStep {
		t.Fatalf("expected tick to advance again, got %d", c.Tick())
	}
}

func TestComposeRetiresWindowAfterFadeOutCompletes(t *testing.T) {
	reg := NewRegistry()
	dq := NewDamageQueue()
	surf := NewImageSurface(64, 64)
	c := NewCompositor(reg, dq, surf)

	w, err := reg.Create(ClientID(1), 10, 10, 0, realBufferAlloc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Buffer.Close()
	w.AnimMode = AnimNone // skip the fade-in so the test only exercises fade-out
	reg.MarkForClose(w, 0)

	for i := 0; i < AnimLength/tickStep+2; i++ {
		c.Compose(int64(i))
		if _, ok := reg.Lookup(w.Wid); !ok {
			return
		}
	}
	t.Fatalf("expected the window to be destroyed once its fade-out completed")
}

func TestComposeWithNoDamageDoesNothing(t *testing.T) {
	reg := NewRegistry()
	dq := NewDamageQueue()
	surf := NewImageSurface(64, 64)
	c := NewCompositor(reg, dq, surf)

	// No windows, no damage: Compose should return early after the tick
	// advance without touching the surface.
	c.Compose(0)
	if c.Tick() != tickStep {
		t.Fatalf("expected the tick to still advance even with no damage")
	}
}
