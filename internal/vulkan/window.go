package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Window is an SDL window with a Vulkan-capable surface. SDL requires every
// method to be called from the thread that created it.
type Window struct {
	window  *sdl.Window
	resized bool
	closed  bool
}

func NewWindow(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "failed to initialize sdl video")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "failed to create window")
	}

	return &Window{window: window}, nil
}

// Extent is the drawable size in pixels, which is zero while minimized.
func (w *Window) Extent() core1_0.Extent2D {
	if w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return core1_0.Extent2D{}
	}
	width, height := w.window.VulkanGetDrawableSize()
	return core1_0.Extent2D{Width: int(width), Height: int(height)}
}

func (w *Window) WasResized() bool {
	return w.resized
}

func (w *Window) ResetResized() {
	w.resized = false
}

func (w *Window) ShouldClose() bool {
	return w.closed
}

// PollEvents drains the event queue without blocking.
func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handle(event)
	}
}

// WaitEvents blocks for one event and then drains whatever else is queued.
func (w *Window) WaitEvents() {
	if event := sdl.WaitEvent(); event != nil {
		w.handle(event)
	}
	w.PollEvents()
}

func (w *Window) handle(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.closed = true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED, sdl.WINDOWEVENT_RESTORED:
			w.resized = true
		case sdl.WINDOWEVENT_CLOSE:
			w.closed = true
		}
	case *sdl.KeyboardEvent:
		if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
			w.closed = true
		}
	}
}

// KeyDown reports whether the key at scancode is currently held.
func (w *Window) KeyDown(scancode sdl.Scancode) bool {
	return sdl.GetKeyboardState()[scancode] != 0
}

func (w *Window) Destroy() {
	if w.window != nil {
		_ = w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
