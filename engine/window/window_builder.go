package window

// WindowBuilderOption configures a window before it is opened.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the initial title. The viewer replaces it every few frames with
// its status line.
//
// Parameters:
//   - title: the title bar text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithSize sets the initial client area. The size is clamped to the limits set by
// WithMinSize and WithMaxSize regardless of option order.
//
// Parameters:
//   - width: pixels
//   - height: pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.width, w.height = width, height
	}
}

// WithMinSize bounds how small the window can be dragged.
//
// Parameters:
//   - width: pixels
//   - height: pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithMinSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.minWidth, w.minHeight = width, height
	}
}

// WithMaxSize bounds how large the window can be dragged. A non-positive
// dimension is unbounded.
//
// Parameters:
//   - width: pixels
//   - height: pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithMaxSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.maxWidth, w.maxHeight = width, height
	}
}
