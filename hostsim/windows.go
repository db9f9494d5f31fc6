package hostsim

import (
	"context"
	"sync"

	"ezi-bridge/ext/windowm"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const success = "success"

type window struct {
	id    int
	title string
	src   string
	size  windowm.Size
	pos   windowm.Point
	mode  windowm.BackgroundMode

	remember    bool
	maximizable bool
	minimizable bool
	movable     bool
	focusable   bool
	borderless  bool

	maximized bool
	minimized bool
	focused   bool
	visible   bool
	closed    bool
	reloads   int

	beforeClose  *windowm.BeforeCloseMessage
	callbackName string
}

func (w *window) info() windowm.Info {
	return windowm.Info{ID: w.id, Title: w.title}
}

// Windows is an in-memory window manager answering the "windowm"
// namespace. The first window opened is the current one.
type Windows struct {
	logger    zerolog.Logger
	screen    windowm.Size
	positions PositionStore
	events    *eventBus

	mu      sync.Mutex
	nextID  int
	current int
	windows map[int]*window
	order   []int
}

func NewWindows(logger zerolog.Logger, screen windowm.Size, positions PositionStore) *Windows {
	if positions == nil {
		positions = NewMemoryPositions()
	}
	return &Windows{
		logger:    logger.With().Str("component", "windowm").Logger(),
		screen:    screen,
		positions: positions,
		events:    &eventBus{logger: logger},
		nextID:    1,
		windows:   make(map[int]*window),
	}
}

// Open creates a window from opts, defaults filled in.
func (ws *Windows) Open(ctx context.Context, opts windowm.Options) (windowm.Info, error) {
	if err := opts.Validate(); err != nil {
		return windowm.Info{}, err
	}
	opts = opts.WithDefaults()

	w := &window{
		title:       opts.Title,
		src:         opts.Src,
		size:        *opts.Size,
		mode:        opts.BackgroundMode,
		maximizable: *opts.Maximizable,
		minimizable: *opts.Minimizable,
		movable:     *opts.Movable,
		focusable:   true,
		borderless:  opts.Borderless,
		visible:     true,
	}
	w.pos = ws.center(w.size)
	switch opts.Position.Mode {
	case windowm.PositionFixed:
		if opts.Position.X != nil {
			w.pos.X = *opts.Position.X
		}
		if opts.Position.Y != nil {
			w.pos.Y = *opts.Position.Y
		}
	case windowm.PositionRemembered:
		w.remember = true
		p, ok, err := ws.positions.LoadPosition(ctx, w.title)
		if err != nil {
			ws.logger.Warn().Err(err).Str("title", w.title).Msg("failed to load remembered position")
		} else if ok {
			w.pos = p
		}
	}

	ws.mu.Lock()
	w.id = ws.nextID
	ws.nextID++
	ws.windows[w.id] = w
	ws.order = append(ws.order, w.id)
	if ws.current == 0 {
		ws.current = w.id
	}
	ws.mu.Unlock()

	ws.logger.Debug().Int("winId", w.id).Str("title", w.title).Msg("window opened")
	return w.info(), nil
}

func (ws *Windows) center(size windowm.Size) windowm.Point {
	return windowm.Point{X: (ws.screen.Width - size.Width) / 2, Y: (ws.screen.Height - size.Height) / 2}
}

// with runs fn on the open window id under the lock.
func (ws *Windows) with(id int, fn func(w *window) error) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.windows[id]
	if !ok {
		return errors.Errorf("no window %d", id)
	}
	if w.closed {
		return errors.Errorf("window %d is closed", id)
	}
	return fn(w)
}

func (ws *Windows) remember(ctx context.Context, w *window) {
	if !w.remember {
		return
	}
	if err := ws.positions.SavePosition(ctx, w.title, w.pos); err != nil {
		ws.logger.Warn().Err(err).Int("winId", w.id).Msg("failed to remember position")
	}
}

// UserClose simulates the user closing window id. With a before-close
// message set, the window stays open unless choice is "close", and choice
// is sent to the front-end under the returned callback name.
func (ws *Windows) UserClose(ctx context.Context, id int, choice windowm.CloseChoice) (callback string, err error) {
	err = ws.with(id, func(w *window) error {
		if w.beforeClose != nil {
			callback = w.callbackName
			if choice != windowm.ChoiceClose {
				return nil
			}
		}
		w.closed = true
		ws.remember(ctx, w)
		return nil
	})
	if err == nil && callback != "" {
		ws.events.emit(callback, choice)
	}
	return callback, err
}

type Empty struct{}

type WindowArgs struct {
	WinID        int                         `json:"winId"`
	Title        string                      `json:"title,omitempty"`
	Mode         windowm.BackgroundMode      `json:"mode,omitempty"`
	Width        int                         `json:"width,omitempty"`
	Height       int                         `json:"height,omitempty"`
	X            int                         `json:"x,omitempty"`
	Y            int                         `json:"y,omitempty"`
	Enable       bool                        `json:"enable,omitempty"`
	Options      *windowm.BeforeCloseMessage `json:"options,omitempty"`
	CallbackName string                      `json:"callbackName,omitempty"`
}

type CreateArgs struct {
	Options *windowm.Options `json:"options,omitempty"`
}

func (ws *Windows) GetCurrentWindow(ctx context.Context, args *Empty, reply *windowm.Info) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.windows[ws.current]
	if !ok {
		return errors.New("no current window")
	}
	*reply = w.info()
	return nil
}

// GetWindowList lists open windows in creation order.
func (ws *Windows) GetWindowList(ctx context.Context, args *Empty, reply *[]windowm.Info) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	list := make([]windowm.Info, 0, len(ws.order))
	for _, id := range ws.order {
		if w := ws.windows[id]; !w.closed {
			list = append(list, w.info())
		}
	}
	*reply = list
	return nil
}

func (ws *Windows) CreateWindow(ctx context.Context, args *CreateArgs, reply *windowm.Info) error {
	var opts windowm.Options
	if args.Options != nil {
		opts = *args.Options
	}
	info, err := ws.Open(ctx, opts)
	if err != nil {
		return err
	}
	*reply = info
	return nil
}

func (ws *Windows) flag(id int, reply *bool, get func(w *window) bool) error {
	return ws.with(id, func(w *window) error {
		*reply = get(w)
		return nil
	})
}

func (ws *Windows) IsMaximizable(ctx context.Context, args *WindowArgs, reply *bool) error {
	return ws.flag(args.WinID, reply, func(w *window) bool { return w.maximizable })
}

func (ws *Windows) IsMaximized(ctx context.Context, args *WindowArgs, reply *bool) error {
	return ws.flag(args.WinID, reply, func(w *window) bool { return w.maximized })
}

func (ws *Windows) IsMinimizable(ctx context.Context, args *WindowArgs, reply *bool) error {
	return ws.flag(args.WinID, reply, func(w *window) bool { return w.minimizable })
}

func (ws *Windows) IsMinimized(ctx context.Context, args *WindowArgs, reply *bool) error {
	return ws.flag(args.WinID, reply, func(w *window) bool { return w.minimized })
}

func (ws *Windows) IsMovable(ctx context.Context, args *WindowArgs, reply *bool) error {
	return ws.flag(args.WinID, reply, func(w *window) bool { return w.movable })
}

// IsClosed also answers for closed windows.
func (ws *Windows) IsClosed(ctx context.Context, args *WindowArgs, reply *bool) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.windows[args.WinID]
	if !ok {
		return errors.Errorf("no window %d", args.WinID)
	}
	*reply = w.closed
	return nil
}

func (ws *Windows) IsFocusable(ctx context.Context, args *WindowArgs, reply *bool) error {
	return ws.flag(args.WinID, reply, func(w *window) bool { return w.focusable })
}

func (ws *Windows) IsFocused(ctx context.Context, args *WindowArgs, reply *bool) error {
	return ws.flag(args.WinID, reply, func(w *window) bool { return w.focused })
}

func (ws *Windows) IsVisible(ctx context.Context, args *WindowArgs, reply *bool) error {
	return ws.flag(args.WinID, reply, func(w *window) bool { return w.visible })
}

func (ws *Windows) IsBorderless(ctx context.Context, args *WindowArgs, reply *bool) error {
	return ws.flag(args.WinID, reply, func(w *window) bool { return w.borderless })
}

func (ws *Windows) GetBackgroundMode(ctx context.Context, args *WindowArgs, reply *windowm.BackgroundMode) error {
	return ws.with(args.WinID, func(w *window) error {
		*reply = w.mode
		return nil
	})
}

func (ws *Windows) GetSize(ctx context.Context, args *WindowArgs, reply *windowm.Size) error {
	return ws.with(args.WinID, func(w *window) error {
		*reply = w.size
		return nil
	})
}

func (ws *Windows) GetPosition(ctx context.Context, args *WindowArgs, reply *windowm.Point) error {
	return ws.with(args.WinID, func(w *window) error {
		*reply = w.pos
		return nil
	})
}

// set runs a mutation and answers "success".
func (ws *Windows) set(id int, reply *string, fn func(w *window) error) error {
	if err := ws.with(id, fn); err != nil {
		return err
	}
	*reply = success
	return nil
}

func (ws *Windows) SetTitle(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		w.title = args.Title
		return nil
	})
}

func (ws *Windows) SetBackgroundMode(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		if !args.Mode.Valid() {
			return errors.Errorf("unknown background mode %q", args.Mode)
		}
		w.mode = args.Mode
		return nil
	})
}

func (ws *Windows) SetSize(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		if args.Width <= 0 || args.Height <= 0 {
			return errors.Errorf("window size must be positive, got %dx%d", args.Width, args.Height)
		}
		w.size = windowm.Size{Width: args.Width, Height: args.Height}
		return nil
	})
}

func (ws *Windows) SetPosition(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		if !w.movable {
			return errors.Errorf("window %d is not movable", w.id)
		}
		w.pos = windowm.Point{X: args.X, Y: args.Y}
		ws.remember(ctx, w)
		return nil
	})
}

func (ws *Windows) SetMaximizable(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		w.maximizable = args.Enable
		return nil
	})
}

func (ws *Windows) SetMinimizable(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		w.minimizable = args.Enable
		return nil
	})
}

func (ws *Windows) SetMovable(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		w.movable = args.Enable
		return nil
	})
}

func (ws *Windows) SetFocusable(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		w.focusable = args.Enable
		if !w.focusable {
			w.focused = false
		}
		return nil
	})
}

func (ws *Windows) SetBorderless(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		w.borderless = args.Enable
		return nil
	})
}

// SetBeforeCloseMessage installs a close confirmation. Without options it
// removes the current one.
func (ws *Windows) SetBeforeCloseMessage(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		if args.Options == nil {
			w.beforeClose, w.callbackName = nil, ""
			return nil
		}
		if args.CallbackName == "" {
			return errors.New("before-close message needs a callbackName")
		}
		msg := *args.Options
		w.beforeClose, w.callbackName = &msg, args.CallbackName
		return nil
	})
}

// Close closes the window without confirmation.
func (ws *Windows) Close(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		w.closed = true
		w.visible = false
		w.focused = false
		ws.remember(ctx, w)
		return nil
	})
}

func (ws *Windows) Reload(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		w.reloads++
		return nil
	})
}

func (ws *Windows) Focus(ctx context.Context, args *WindowArgs, reply *string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	target, ok := ws.windows[args.WinID]
	if !ok || target.closed {
		return errors.Errorf("no window %d", args.WinID)
	}
	if !target.focusable {
		return errors.Errorf("window %d is not focusable", args.WinID)
	}
	for _, w := range ws.windows {
		w.focused = false
	}
	target.focused = true
	target.visible = true
	target.minimized = false
	*reply = success
	return nil
}

func (ws *Windows) Blur(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		w.focused = false
		return nil
	})
}

func (ws *Windows) Minimize(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		if !w.minimizable {
			return errors.Errorf("window %d is not minimizable", w.id)
		}
		w.minimized, w.maximized, w.focused = true, false, false
		return nil
	})
}

func (ws *Windows) Maximize(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		if !w.maximizable {
			return errors.Errorf("window %d is not maximizable", w.id)
		}
		w.maximized, w.minimized = true, false
		return nil
	})
}

func (ws *Windows) Restore(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		w.maximized, w.minimized = false, false
		return nil
	})
}

func (ws *Windows) Hide(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		w.visible, w.focused = false, false
		return nil
	})
}

// Drag starts an interactive move; here it only checks the window may move.
func (ws *Windows) Drag(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		if !w.movable {
			return errors.Errorf("window %d is not movable", w.id)
		}
		return nil
	})
}

func (ws *Windows) Show(ctx context.Context, args *WindowArgs, reply *string) error {
	return ws.set(args.WinID, reply, func(w *window) error {
		w.visible = true
		return nil
	})
}
