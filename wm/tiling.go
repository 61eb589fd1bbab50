// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: wm/tiling.go
// Summary: The tile(W, wdiv, hdiv, cx, cy) placement algorithm shared by the
//           ALT+F10 maximize shortcut and the SUPER+arrow half/quarter grid.

package wm

// Tile places w into cell (cx, cy) of a wdiv x hdiv grid covering the
// screen below the TOP band, marking the window's old and new bounds and
// returning the resize dimensions the caller should offer to the window's
// owner.
func Tile(dq *DamageQueue, w *Window, screenW, screenH, panelH, wdiv, hdiv, cx, cy int) (newW, newH int) {
	if wdiv <= 0 {
		wdiv = 1
	}
	if hdiv <= 0 {
		hdiv = 1
	}
	cellW := screenW / wdiv
	cellH := (screenH - panelH) / hdiv

	dq.MarkWindow(w)
	w.X = cellW * cx
	w.Y = panelH + cellH*cy
	dq.MarkWindow(w)

	return cellW, cellH
}
