package hostsim

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"ezi-bridge/ext/filesystem"
	"ezi-bridge/ext/tray"
	"ezi-bridge/ext/version"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Tray answers the "tray" namespace.
type Tray struct {
	windows *Windows
	events  *eventBus

	mu           sync.Mutex
	visible      bool
	mainWindowID int
	menu         []tray.MenuItem
}

type TrayArgs struct {
	MainWindowID int             `json:"mainWindowId,omitempty"`
	MenuItems    []tray.MenuItem `json:"menuItems,omitempty"`
}

func (t *Tray) Show(ctx context.Context, args *TrayArgs, reply *string) error {
	var closed bool
	if err := t.windows.IsClosed(ctx, &WindowArgs{WinID: args.MainWindowID}, &closed); err != nil {
		return err
	}
	if closed {
		return errors.Errorf("main window %d is closed", args.MainWindowID)
	}
	t.mu.Lock()
	t.visible, t.mainWindowID = true, args.MainWindowID
	t.mu.Unlock()
	*reply = success
	return nil
}

func (t *Tray) Hide(ctx context.Context, args *TrayArgs, reply *string) error {
	t.mu.Lock()
	t.visible = false
	t.mu.Unlock()
	*reply = success
	return nil
}

func (t *Tray) SetContextMenu(ctx context.Context, args *TrayArgs, reply *string) error {
	t.mu.Lock()
	t.menu = args.MenuItems
	t.mu.Unlock()
	*reply = success
	return nil
}

// Menu returns the last menu the front-end set.
func (t *Tray) Menu() []tray.MenuItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.menu
}

func (t *Tray) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// Click simulates the user picking menu item id and tells the front-end.
func (t *Tray) Click(id int) (tray.MenuItem, error) {
	t.mu.Lock()
	visible := t.visible
	item, ok := tray.Find(t.menu, id)
	t.mu.Unlock()
	if !visible {
		return tray.MenuItem{}, errors.New("tray is hidden")
	}
	if !ok {
		return tray.MenuItem{}, errors.Errorf("no menu item %d", id)
	}
	t.events.emit(tray.ClickCallbackName, id)
	return item, nil
}

// Terminal answers the "terminal" namespace by logging.
type Terminal struct {
	logger zerolog.Logger
}

type TerminalArgs struct {
	Argv []any `json:"argv"`
}

func (t *Terminal) Log(ctx context.Context, args *TerminalArgs, reply *string) error {
	t.logger.Info().Msg(fmt.Sprint(args.Argv...))
	*reply = success
	return nil
}

func (t *Terminal) Error(ctx context.Context, args *TerminalArgs, reply *string) error {
	t.logger.Error().Msg(fmt.Sprint(args.Argv...))
	*reply = success
	return nil
}

// Version answers the "version" namespace with a fixed record.
type Version struct {
	info version.Info
}

func (v *Version) Info(ctx context.Context, args *Empty, reply *version.Info) error {
	*reply = v.info
	return nil
}

// Filesystem answers the "filesystem" namespace inside one directory.
// Paths that leave the directory are rejected.
type Filesystem struct {
	root *os.Root
}

func (f *Filesystem) ReadFile(ctx context.Context, args *filesystem.PathArgs, reply *[]byte) error {
	data, err := f.root.ReadFile(args.Path)
	if err != nil {
		return errors.Wrapf(err, "read %s", args.Path)
	}
	*reply = data
	return nil
}

func (f *Filesystem) WriteFile(ctx context.Context, args *filesystem.WriteArgs, reply *string) error {
	if err := f.root.WriteFile(args.Path, args.Data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", args.Path)
	}
	*reply = success
	return nil
}

func (f *Filesystem) DeleteFile(ctx context.Context, args *filesystem.PathArgs, reply *string) error {
	if err := f.root.Remove(args.Path); err != nil {
		return errors.Wrapf(err, "delete %s", args.Path)
	}
	*reply = success
	return nil
}

func (f *Filesystem) IsExists(ctx context.Context, args *filesystem.PathArgs, reply *bool) error {
	_, err := f.root.Stat(args.Path)
	switch {
	case err == nil:
		*reply = true
	case errors.Is(err, fs.ErrNotExist):
		*reply = false
	default:
		return errors.Wrapf(err, "stat %s", args.Path)
	}
	return nil
}

func (f *Filesystem) ReadFileStats(ctx context.Context, args *filesystem.PathArgs, reply *filesystem.Stat) error {
	info, err := f.root.Stat(args.Path)
	if err != nil {
		return errors.Wrapf(err, "stat %s", args.Path)
	}
	*reply = filesystem.Stat{Size: info.Size(), ModifiedTime: info.ModTime()}
	return nil
}
