package main

import (
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/draftview/draftview/internal/batch"
	"github.com/draftview/draftview/internal/geom"
	"github.com/draftview/draftview/internal/render"
)

// view is the current pan/zoom state of the viewport.
type view struct {
	w, h             int
	zoom, panX, panY float32
}

func (v *view) reset() {
	v.zoom, v.panX, v.panY = 1, 0, 0
}

// eventHandlers wires GLFW input to the drawing: hover/select picking,
// entity deletion, visibility toggles, point-symbol cycling, and
// pan/zoom.
type eventHandlers struct {
	window   *glfw.Window
	drawing  *drawing
	renderer *render.Renderer
	view     view

	// Current mouse position in world coordinates.
	mouseWorldX, mouseWorldY float32

	// Entity currently under the cursor, "" when over empty canvas.
	hovered string

	// Drag state, captured on mouse press.
	isDragging                       bool
	dragStartMouseX, dragStartMouseY float64
	dragStartPanX, dragStartPanY     float32
	dragMoved                        bool
}

func newEventHandlers(window *glfw.Window, d *drawing, r *render.Renderer) *eventHandlers {
	eh := &eventHandlers{window: window, drawing: d, renderer: r}
	eh.view.reset()
	eh.view.w, eh.view.h = window.GetFramebufferSize()
	eh.setupCallbacks()
	eh.updateRendererView()
	return eh
}

func (eh *eventHandlers) setupCallbacks() {
	eh.window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		eh.handleKey(key, action, mods)
	})
	eh.window.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		eh.handleMouseButton(button, action)
	})
	eh.window.SetCursorPosCallback(func(_ *glfw.Window, xpos, ypos float64) {
		eh.handleCursorPos(xpos, ypos)
	})
	eh.window.SetScrollCallback(func(_ *glfw.Window, _, zoomDelta float64) {
		eh.performZoom(zoomDelta)
	})
	eh.window.SetFramebufferSizeCallback(func(_ *glfw.Window, newW, newH int) {
		eh.view.w, eh.view.h = newW, newH
		eh.updateRendererView()
	})
}

func (eh *eventHandlers) updateRendererView() {
	eh.renderer.SetView(eh.view.w, eh.view.h, eh.view.zoom, eh.view.panX, eh.view.panY)
}

// pickRay shoots straight down the view axis at the cursor's world
// position.
func (eh *eventHandlers) pickRay() geom.Ray {
	return geom.MakeRay(
		geom.V3(eh.mouseWorldX, eh.mouseWorldY, 100),
		geom.V3(0, 0, -1),
	)
}

// updateHover re-picks under the cursor and swaps the hover overlay.
func (eh *eventHandlers) updateHover() {
	hits := eh.drawing.group.IntersectAll(eh.pickRay(), batch.DefaultRayParams())
	next := ""
	if len(hits) > 0 {
		next = hits[0].Entity
	}
	if next == eh.hovered {
		return
	}
	if eh.hovered != "" {
		eh.drawing.group.Unhover(eh.hovered)
	}
	if next != "" {
		eh.drawing.group.Hover(next)
	}
	eh.hovered = next
}

func (eh *eventHandlers) handleKey(key glfw.Key, action glfw.Action, _ glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}

	switch key {
	case glfw.KeyD:
		if eh.hovered != "" {
			eh.drawing.delete(eh.hovered)
			eh.hovered = ""
			eh.updateHover()
		}
	case glfw.KeyV:
		if eh.hovered != "" {
			// Hidden entities stop hit-testing, so V over empty canvas
			// is the way back.
			eh.drawing.group.SetEntityVisible(eh.hovered, false)
			eh.drawing.group.Unhover(eh.hovered)
			eh.hovered = ""
		} else {
			for _, id := range eh.drawing.entities {
				eh.drawing.group.SetEntityVisible(id, true)
			}
		}
	case glfw.KeyP:
		if err := eh.drawing.cycleSymbolMode(); err != nil {
			runtimeLogger.Printf("point symbol regeneration: %v", err)
		}
	case glfw.KeyR:
		eh.view.reset()
		eh.updateRendererView()
	case glfw.KeyEscape:
		for _, id := range eh.drawing.entities {
			eh.drawing.group.Unselect(id)
		}
	}
}

func (eh *eventHandlers) handleMouseButton(button glfw.MouseButton, action glfw.Action) {
	if button != glfw.MouseButtonLeft {
		return
	}

	switch action {
	case glfw.Press:
		eh.isDragging = true
		eh.dragMoved = false
		eh.dragStartMouseX, eh.dragStartMouseY = eh.window.GetCursorPos()
		eh.dragStartPanX, eh.dragStartPanY = eh.view.panX, eh.view.panY
	case glfw.Release:
		eh.isDragging = false
		if !eh.dragMoved {
			eh.toggleSelection()
		}
	}
}

// toggleSelection selects the hovered entity, or unselects it if it was
// already selected.
func (eh *eventHandlers) toggleSelection() {
	if eh.hovered == "" {
		return
	}
	g := eh.drawing.group
	if g.Overlay().Has(batch.OverlaySelect, eh.hovered) {
		g.Unselect(eh.hovered)
	} else {
		g.Select(eh.hovered)
	}
}

func (eh *eventHandlers) handleCursorPos(xpos, ypos float64) {
	eh.updateMouseWorldPos(xpos, ypos)
	if eh.isDragging {
		eh.updatePanning(xpos, ypos)
	} else {
		eh.updateHover()
	}
}

// updateMouseWorldPos maps window cursor coordinates to world space,
// inverting the renderer's center-zoom-then-pan transform.
func (eh *eventHandlers) updateMouseWorldPos(mouseX, mouseY float64) {
	scaleX, scaleY := eh.window.GetContentScale()
	fbX := float32(mouseX) * scaleX
	fbY := float32(mouseY) * scaleY

	cx, cy := float32(eh.view.w)/2, float32(eh.view.h)/2
	zoom := eh.view.zoom
	eh.mouseWorldX = (fbX - cx*(1-zoom) - eh.view.panX) / zoom
	eh.mouseWorldY = (fbY - cy*(1-zoom) - eh.view.panY) / zoom
}

func (eh *eventHandlers) updatePanning(xpos, ypos float64) {
	scaleX, scaleY := eh.window.GetContentScale()
	dx := float32(xpos-eh.dragStartMouseX) * scaleX
	dy := float32(ypos-eh.dragStartMouseY) * scaleY
	if dx*dx+dy*dy > 4 {
		eh.dragMoved = true
	}

	eh.view.panX = eh.dragStartPanX + dx
	eh.view.panY = eh.dragStartPanY + dy
	eh.updateRendererView()
}

// performZoom zooms about the cursor so the world point under it stays
// put.
func (eh *eventHandlers) performZoom(zoomDelta float64) {
	cx, cy := float32(eh.view.w)/2, float32(eh.view.h)/2
	mouseX, mouseY := eh.window.GetCursorPos()
	scaleX, scaleY := eh.window.GetContentScale()
	fbX := float32(mouseX) * scaleX
	fbY := float32(mouseY) * scaleY

	zoomFactor := float32(1.0 + zoomDelta*0.15)
	oldZoom := eh.view.zoom
	newZoom := oldZoom * zoomFactor
	if newZoom < 0.05 {
		newZoom = 0.05
	}
	if newZoom > 50 {
		newZoom = 50
	}

	cursorOffsetX, cursorOffsetY := fbX-cx, fbY-cy
	worldOffsetX := (cursorOffsetX - eh.view.panX) / oldZoom
	worldOffsetY := (cursorOffsetY - eh.view.panY) / oldZoom

	eh.view.zoom = newZoom
	eh.view.panX = cursorOffsetX - worldOffsetX*newZoom
	eh.view.panY = cursorOffsetY - worldOffsetY*newZoom
	eh.updateRendererView()
}
