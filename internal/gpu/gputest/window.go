package gputest

import "github.com/vkngwrapper/core/v3/core1_0"

// Window is a scripted window. Each WaitEvents call moves to the next entry
// of Pending; the last extent sticks once Pending is drained.
type Window struct {
	Current core1_0.Extent2D
	Pending []core1_0.Extent2D
	Resized bool

	WaitEventsCalls int
}

func NewWindow(width, height int) *Window {
	return &Window{Current: core1_0.Extent2D{Width: width, Height: height}}
}

// Resize changes the extent and raises the resized flag, like a size-changed
// event from the platform would.
func (w *Window) Resize(width, height int) {
	w.Current = core1_0.Extent2D{Width: width, Height: height}
	w.Resized = true
}

func (w *Window) Extent() core1_0.Extent2D { return w.Current }
func (w *Window) WasResized() bool         { return w.Resized }
func (w *Window) ResetResized()            { w.Resized = false }

func (w *Window) WaitEvents() {
	w.WaitEventsCalls++
	if len(w.Pending) > 0 {
		w.Current = w.Pending[0]
		w.Pending = w.Pending[1:]
	}
}
