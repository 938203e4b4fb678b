package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// ErrNotInitialized is returned by operations on a window that was closed or never created.
var ErrNotInitialized = errors.New("window: not initialized")

// glfwWindow forwards GLFW events to the callbacks of its parent.
type glfwWindow struct {
	parent  *engineWindow
	window  *glfw.Window
	running bool
}

var glfwButtons = map[glfw.MouseButton]MouseButton{
	glfw.MouseButtonLeft:   MouseButtonLeft,
	glfw.MouseButtonRight:  MouseButtonRight,
	glfw.MouseButtonMiddle: MouseButtonMiddle,
}

func sizeLimit(v int) int {
	if v <= 0 {
		return glfw.DontCare
	}
	return v
}

// newPlatformWindow opens a GLFW window without a client API, since WebGPU draws
// to its surface directly.
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("create GLFW window: %w", err)
	}
	win.SetSizeLimits(sizeLimit(w.minWidth), sizeLimit(w.minHeight), sizeLimit(w.maxWidth), sizeLimit(w.maxHeight))

	gw := &glfwWindow{parent: w, window: win, running: true}
	win.SetKeyCallback(gw.key)
	win.SetScrollCallback(gw.scroll)
	win.SetMouseButtonCallback(gw.mouseButton)
	win.SetCursorPosCallback(gw.cursor)
	win.SetDropCallback(gw.drop)
	// Framebuffer size is in pixels, which differs from window size on high-DPI displays.
	win.SetFramebufferSizeCallback(gw.framebufferSize)

	w.internalWindow = gw
	w.setSize(win.GetFramebufferSize())
	return nil
}

func (gw *glfwWindow) key(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	w := gw.parent
	switch {
	case key == glfw.KeyEscape && action == glfw.Press:
		gw.running = false
		gw.window.SetShouldClose(true)
	case action == glfw.Release:
		if w.onKeyUp != nil {
			w.onKeyUp(uint32(key))
		}
	case w.onKeyDown != nil:
		w.onKeyDown(uint32(key))
	}
}

func (gw *glfwWindow) scroll(_ *glfw.Window, _, yoff float64) {
	if fn := gw.parent.onScroll; fn != nil {
		fn(float32(yoff))
	}
}

func (gw *glfwWindow) mouseButton(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	b, ok := glfwButtons[button]
	fn := gw.parent.onMouseButton
	if !ok || fn == nil || action == glfw.Repeat {
		return
	}
	x, y := gw.window.GetCursorPos()
	fn(b, action == glfw.Press, int32(x), int32(y))
}

func (gw *glfwWindow) cursor(_ *glfw.Window, x, y float64) {
	if fn := gw.parent.onMouseMove; fn != nil {
		fn(int32(x), int32(y))
	}
}

func (gw *glfwWindow) drop(_ *glfw.Window, names []string) {
	if fn := gw.parent.onDrop; fn != nil && len(names) > 0 {
		fn(names)
	}
}

func (gw *glfwWindow) framebufferSize(_ *glfw.Window, width, height int) {
	gw.parent.setSize(width, height)
	// Minimizing reports 0x0, which no surface can be configured with.
	if fn := gw.parent.onResize; fn != nil && width > 0 && height > 0 {
		fn(width, height)
	}
}

func platformGetSurfaceDescriptor(w *engineWindow) *wgpu.SurfaceDescriptor {
	gw, ok := w.internalWindow.(*glfwWindow)
	if !ok {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(gw.window)
}

func platformIsRunningCheck(w *engineWindow) bool {
	gw, ok := w.internalWindow.(*glfwWindow)
	return ok && gw.running && !gw.window.ShouldClose()
}

func platformCloseWindow(w *engineWindow) error {
	gw, ok := w.internalWindow.(*glfwWindow)
	if !ok {
		return ErrNotInitialized
	}
	gw.running = false
	gw.window.Destroy()
	glfw.Terminate()
	w.internalWindow = nil
	return nil
}

// platformProcessMessages polls without blocking and applies a pending title.
func platformProcessMessages(w *engineWindow) bool {
	glfw.PollEvents()
	if !platformIsRunningCheck(w) {
		return false
	}
	if title, ok := w.takeTitle(); ok {
		w.internalWindow.(*glfwWindow).window.SetTitle(title)
	}
	return true
}
