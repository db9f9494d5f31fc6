// Package tray is the front-end surface of the host tray icon and its
// context menu.
package tray

import (
	"context"
	"encoding/json"
	"sync"

	"ezi-bridge/ext"
	"ezi-bridge/ext/windowm"

	"github.com/pkg/errors"
)

const Namespace = "tray"

// FirstItemID is the id given to the first top-level menu item.
const FirstItemID = 2000

// ClickCallbackName is the callback the host fires with the clicked item id.
const ClickCallbackName = "__TrayMenuItemClickCallback_"

type ItemType string

const (
	Normal    ItemType = "normal"
	Separator ItemType = "separator"
	Submenu   ItemType = "submenu"
)

type MenuItem struct {
	Type    ItemType   `json:"type" yaml:"type"`
	Label   string     `json:"label" yaml:"label"`
	ID      int        `json:"id,omitempty" yaml:"id,omitempty"`
	Enabled *bool      `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Checked *bool      `json:"checked,omitempty" yaml:"checked,omitempty"`
	Submenu []MenuItem `json:"submenu,omitempty" yaml:"submenu,omitempty"`
}

// Unknown is what FindByID returns for an id that is not in the menu.
var Unknown = MenuItem{Type: Normal, ID: -1, Label: "unknown"}

type Tray struct {
	c         ext.Caller
	callbacks *ext.Callbacks

	mu    sync.Mutex
	items []MenuItem
}

// New returns a Tray issuing calls through c. callbacks may be nil, in
// which case SetOnClick is unavailable.
func New(c ext.Caller, callbacks *ext.Callbacks) *Tray {
	return &Tray{c: c, callbacks: callbacks}
}

// Show puts the tray icon up, owned by mainWindow.
func (t *Tray) Show(ctx context.Context, mainWindow *windowm.Window) error {
	if mainWindow == nil {
		return errors.New("tray needs a main window")
	}
	return t.c.Invoke(ctx, Namespace, "show", map[string]any{"mainWindowId": mainWindow.ID}, nil)
}

func (t *Tray) Hide(ctx context.Context) error {
	return t.c.Invoke(ctx, Namespace, "hide", struct{}{}, nil)
}

// SetContextMenu numbers items, sends them to the host, and keeps them as
// the current menu once the host accepts. The numbered copy is returned;
// items itself is left untouched.
func (t *Tray) SetContextMenu(ctx context.Context, items []MenuItem) ([]MenuItem, error) {
	menu := cloneItems(items)
	AssignIDs(menu, FirstItemID)
	if err := t.send(ctx, menu); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.items = menu
	t.mu.Unlock()
	return cloneItems(menu), nil
}

// Update resends the current menu. It does nothing when no menu was set.
func (t *Tray) Update(ctx context.Context) ([]MenuItem, error) {
	menu := t.ContextMenu()
	if len(menu) == 0 {
		return nil, nil
	}
	if err := t.send(ctx, menu); err != nil {
		return nil, err
	}
	return menu, nil
}

func (t *Tray) send(ctx context.Context, menu []MenuItem) error {
	return t.c.Invoke(ctx, Namespace, "setContextMenu", map[string]any{"menuItems": menu}, nil)
}

// ContextMenu returns a copy of the current menu.
func (t *Tray) ContextMenu() []MenuItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneItems(t.items)
}

// FindByID looks id up in the current menu, submenus included.
func (t *Tray) FindByID(id int) MenuItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	if item, ok := Find(t.items, id); ok {
		return item
	}
	return Unknown
}

// SetOnClick routes host click events to fn with the clicked item.
func (t *Tray) SetOnClick(fn func(MenuItem)) error {
	if fn == nil {
		return errors.New("click callback must not be nil")
	}
	if t.callbacks == nil {
		return errors.New("tray has no callback table")
	}
	t.callbacks.Set(ClickCallbackName, func(args json.RawMessage) {
		var id int
		if err := json.Unmarshal(args, &id); err != nil {
			fn(Unknown)
			return
		}
		fn(t.FindByID(id))
	})
	return nil
}

// AssignIDs numbers items from start in order. A submenu's children are
// numbered from the id after their parent, so they share ids with the
// parent's later siblings; hosts match clicks by the first hit.
func AssignIDs(items []MenuItem, start int) {
	for i := range items {
		items[i].ID = start
		start++
		if items[i].Type == Submenu && items[i].Submenu != nil {
			AssignIDs(items[i].Submenu, start)
		}
	}
}

// Find returns the first item with id, searching depth first.
func Find(items []MenuItem, id int) (MenuItem, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
		if item.Type == Submenu {
			if found, ok := Find(item.Submenu, id); ok {
				return found, true
			}
		}
	}
	return MenuItem{}, false
}

func cloneItems(items []MenuItem) []MenuItem {
	if items == nil {
		return nil
	}
	out := make([]MenuItem, len(items))
	for i, item := range items {
		out[i] = item
		out[i].Submenu = cloneItems(item.Submenu)
	}
	return out
}
