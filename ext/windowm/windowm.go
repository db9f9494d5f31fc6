// Package windowm is the front-end surface of the host window manager.
// Every call goes out under the "windowm" namespace and names its target
// window with winId.
package windowm

import (
	"context"
	"encoding/json"
	"fmt"

	"ezi-bridge/ext"

	"github.com/pkg/errors"
)

const Namespace = "windowm"

// Info identifies a window as the host reports it.
type Info struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type Manager struct {
	c         ext.Caller
	callbacks *ext.Callbacks
}

// New returns a Manager issuing calls through c. callbacks may be nil, in
// which case SetBeforeCloseMessage is unavailable.
func New(c ext.Caller, callbacks *ext.Callbacks) *Manager {
	return &Manager{c: c, callbacks: callbacks}
}

// Window returns a handle for a window known by id and title without
// asking the host.
func (m *Manager) Window(info Info) *Window {
	return &Window{ID: info.ID, Title: info.Title, m: m}
}

// GetCurrentWindow returns the window this front-end runs in.
func (m *Manager) GetCurrentWindow(ctx context.Context) (*Window, error) {
	var info Info
	if err := m.c.Invoke(ctx, Namespace, "getCurrentWindow", struct{}{}, &info); err != nil {
		return nil, err
	}
	return m.Window(info), nil
}

func (m *Manager) GetWindowList(ctx context.Context) ([]*Window, error) {
	var infos []Info
	if err := m.c.Invoke(ctx, Namespace, "getWindowList", struct{}{}, &infos); err != nil {
		return nil, err
	}
	windows := make([]*Window, 0, len(infos))
	for _, info := range infos {
		windows = append(windows, m.Window(info))
	}
	return windows, nil
}

// GetWindowByTitle returns the first window titled title, or nil.
func (m *Manager) GetWindowByTitle(ctx context.Context, title string) (*Window, error) {
	return m.find(ctx, func(w *Window) bool { return w.Title == title })
}

// GetWindowByID returns the window with id, or nil.
func (m *Manager) GetWindowByID(ctx context.Context, id int) (*Window, error) {
	return m.find(ctx, func(w *Window) bool { return w.ID == id })
}

func (m *Manager) find(ctx context.Context, match func(*Window) bool) (*Window, error) {
	windows, err := m.GetWindowList(ctx)
	if err != nil {
		return nil, err
	}
	for _, w := range windows {
		if match(w) {
			return w, nil
		}
	}
	return nil, nil
}

// CreateWindow opens a new window. nil opts leaves every option to the host.
func (m *Manager) CreateWindow(ctx context.Context, opts *Options) (*Window, error) {
	if opts != nil {
		if err := opts.Validate(); err != nil {
			return nil, err
		}
	}
	var info Info
	args := struct {
		Options *Options `json:"options,omitempty"`
	}{opts}
	if err := m.c.Invoke(ctx, Namespace, "createWindow", args, &info); err != nil {
		return nil, err
	}
	return m.Window(info), nil
}

// Window is a handle on one host window. Title mirrors the last title set
// through this handle.
type Window struct {
	ID    int
	Title string
	m     *Manager
}

func (w *Window) call(ctx context.Context, method string, extra map[string]any, reply any) error {
	args := map[string]any{"winId": w.ID}
	for k, v := range extra {
		args[k] = v
	}
	return w.m.c.Invoke(ctx, Namespace, method, args, reply)
}

func (w *Window) is(ctx context.Context, method string) (bool, error) {
	var v bool
	err := w.call(ctx, method, nil, &v)
	return v, err
}

func (w *Window) do(ctx context.Context, method string, extra map[string]any) error {
	return w.call(ctx, method, extra, nil)
}

func (w *Window) IsMaximizable(ctx context.Context) (bool, error) { return w.is(ctx, "isMaximizable") }
func (w *Window) IsMaximized(ctx context.Context) (bool, error)   { return w.is(ctx, "isMaximized") }
func (w *Window) IsMinimizable(ctx context.Context) (bool, error) { return w.is(ctx, "isMinimizable") }
func (w *Window) IsMinimized(ctx context.Context) (bool, error)   { return w.is(ctx, "isMinimized") }
func (w *Window) IsMovable(ctx context.Context) (bool, error)     { return w.is(ctx, "isMovable") }
func (w *Window) IsClosed(ctx context.Context) (bool, error)      { return w.is(ctx, "isClosed") }
func (w *Window) IsFocusable(ctx context.Context) (bool, error)   { return w.is(ctx, "isFocusable") }
func (w *Window) IsFocused(ctx context.Context) (bool, error)     { return w.is(ctx, "isFocused") }
func (w *Window) IsVisible(ctx context.Context) (bool, error)     { return w.is(ctx, "isVisible") }
func (w *Window) IsBorderless(ctx context.Context) (bool, error)  { return w.is(ctx, "isBorderless") }

func (w *Window) GetBackgroundMode(ctx context.Context) (BackgroundMode, error) {
	var mode BackgroundMode
	err := w.call(ctx, "getBackgroundMode", nil, &mode)
	return mode, err
}

func (w *Window) GetSize(ctx context.Context) (Size, error) {
	var s Size
	err := w.call(ctx, "getSize", nil, &s)
	return s, err
}

func (w *Window) GetPosition(ctx context.Context) (Point, error) {
	var p Point
	err := w.call(ctx, "getPosition", nil, &p)
	return p, err
}

func (w *Window) SetTitle(ctx context.Context, title string) error {
	if err := w.do(ctx, "setTitle", map[string]any{"title": title}); err != nil {
		return err
	}
	w.Title = title
	return nil
}

func (w *Window) SetBackgroundMode(ctx context.Context, mode BackgroundMode) error {
	return w.do(ctx, "setBackgroundMode", map[string]any{"mode": mode})
}

func (w *Window) SetSize(ctx context.Context, s Size) error {
	return w.do(ctx, "setSize", map[string]any{"width": s.Width, "height": s.Height})
}

func (w *Window) SetPosition(ctx context.Context, p Point) error {
	return w.do(ctx, "setPosition", map[string]any{"x": p.X, "y": p.Y})
}

func (w *Window) SetMaximizable(ctx context.Context, enable bool) error {
	return w.do(ctx, "setMaximizable", map[string]any{"enable": enable})
}

func (w *Window) SetMinimizable(ctx context.Context, enable bool) error {
	return w.do(ctx, "setMinimizable", map[string]any{"enable": enable})
}

func (w *Window) SetMovable(ctx context.Context, enable bool) error {
	return w.do(ctx, "setMovable", map[string]any{"enable": enable})
}

func (w *Window) SetFocusable(ctx context.Context, enable bool) error {
	return w.do(ctx, "setFocusable", map[string]any{"enable": enable})
}

func (w *Window) SetBorderless(ctx context.Context, enable bool) error {
	return w.do(ctx, "setBorderless", map[string]any{"enable": enable})
}

func (w *Window) Close(ctx context.Context) error    { return w.do(ctx, "close", nil) }
func (w *Window) Reload(ctx context.Context) error   { return w.do(ctx, "reload", nil) }
func (w *Window) Focus(ctx context.Context) error    { return w.do(ctx, "focus", nil) }
func (w *Window) Blur(ctx context.Context) error     { return w.do(ctx, "blur", nil) }
func (w *Window) Minimize(ctx context.Context) error { return w.do(ctx, "minimize", nil) }
func (w *Window) Maximize(ctx context.Context) error { return w.do(ctx, "maximize", nil) }
func (w *Window) Restore(ctx context.Context) error  { return w.do(ctx, "restore", nil) }
func (w *Window) Hide(ctx context.Context) error     { return w.do(ctx, "hide", nil) }
func (w *Window) Drag(ctx context.Context) error     { return w.do(ctx, "drag", nil) }
func (w *Window) Show(ctx context.Context) error     { return w.do(ctx, "show", nil) }

// BeforeCloseMessage is the confirmation the host shows when the user
// tries to close a window.
type BeforeCloseMessage struct {
	Content     string `json:"content"`
	ExtraButton string `json:"extraButton"`
}

// CloseChoice is the user's answer to a BeforeCloseMessage.
type CloseChoice string

const (
	ChoiceClose  CloseChoice = "close"
	ChoiceExtra  CloseChoice = "extra"
	ChoiceCancel CloseChoice = "cancel"
)

// BeforeCloseCallbackName is the callback the host fires for window id.
func BeforeCloseCallbackName(id int) string {
	return fmt.Sprintf("__beforeCloseCallback_%d", id)
}

// SetBeforeCloseMessage asks the host to confirm closing with msg and to
// report the choice to fn. The returned cancel removes the confirmation.
func (w *Window) SetBeforeCloseMessage(ctx context.Context, msg BeforeCloseMessage, fn func(CloseChoice)) (cancel func(context.Context) error, err error) {
	if fn == nil {
		return nil, errors.New("before-close callback must not be nil")
	}
	if w.m.callbacks == nil {
		return nil, errors.New("window manager has no callback table")
	}

	name := BeforeCloseCallbackName(w.ID)
	w.m.callbacks.Set(name, func(args json.RawMessage) {
		var choice CloseChoice
		if err := json.Unmarshal(args, &choice); err != nil {
			choice = ChoiceCancel
		}
		fn(choice)
	})
	if err := w.do(ctx, "setBeforeCloseMessage", map[string]any{"options": msg, "callbackName": name}); err != nil {
		w.m.callbacks.Delete(name)
		return nil, err
	}

	return func(ctx context.Context) error {
		defer w.m.callbacks.Delete(name)
		return w.do(ctx, "setBeforeCloseMessage", nil)
	}, nil
}
