package windowm

import (
	"encoding/json"
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type BackgroundMode string

const (
	BackgroundOpaque      BackgroundMode = "opaque"
	BackgroundTransparent BackgroundMode = "transparent"
	BackgroundMica        BackgroundMode = "mica"    // Windows 11+
	BackgroundAcrylic     BackgroundMode = "acrylic" // Windows 10+
)

func (m BackgroundMode) Valid() bool {
	switch m {
	case BackgroundOpaque, BackgroundTransparent, BackgroundMica, BackgroundAcrylic:
		return true
	}
	return false
}

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

type PositionMode string

const (
	PositionCenter     PositionMode = "center"
	PositionRemembered PositionMode = "remembered" // last closed position, centered the first time
	PositionFixed      PositionMode = "fixed"
)

// Position is either a keyword ("center", "remembered") or explicit
// coordinates. Either coordinate may be left out.
type Position struct {
	Mode PositionMode
	X, Y *int
}

func At(x, y int) *Position {
	return &Position{Mode: PositionFixed, X: &x, Y: &y}
}

type coords struct {
	X *int `json:"x,omitempty" yaml:"x"`
	Y *int `json:"y,omitempty" yaml:"y"`
}

func (p Position) MarshalJSON() ([]byte, error) {
	if p.Mode == PositionFixed {
		return json.Marshal(coords{X: p.X, Y: p.Y})
	}
	return json.Marshal(string(p.Mode))
}

func (p *Position) UnmarshalJSON(data []byte) error {
	var keyword string
	if err := json.Unmarshal(data, &keyword); err == nil {
		return p.setKeyword(keyword)
	}
	var c coords
	if err := json.Unmarshal(data, &c); err != nil {
		return errors.Wrap(err, "position must be a keyword or {x, y}")
	}
	*p = Position{Mode: PositionFixed, X: c.X, Y: c.Y}
	return nil
}

func (p *Position) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return p.setKeyword(node.Value)
	}
	var c coords
	if err := node.Decode(&c); err != nil {
		return errors.Wrap(err, "position must be a keyword or {x, y}")
	}
	*p = Position{Mode: PositionFixed, X: c.X, Y: c.Y}
	return nil
}

func (p *Position) setKeyword(s string) error {
	switch PositionMode(s) {
	case PositionCenter, PositionRemembered:
		*p = Position{Mode: PositionMode(s)}
		return nil
	}
	return errors.Errorf("unknown position %q", s)
}

type Splashscreen struct {
	Src  string `json:"src" yaml:"src"`
	Size *Size  `json:"size,omitempty" yaml:"size"`
}

// Options describe a window to create. Zero fields take the defaults
// listed in DefaultOptions.
type Options struct {
	Src                  string         `json:"src,omitempty" yaml:"src"`
	Title                string         `json:"title,omitempty" yaml:"title"`
	Size                 *Size          `json:"size,omitempty" yaml:"size"`
	Position             *Position      `json:"position,omitempty" yaml:"position"`
	BackgroundMode       BackgroundMode `json:"backgroundMode,omitempty" yaml:"backgroundMode"`
	BackgroundColor      string         `json:"backgroundColor,omitempty" yaml:"backgroundColor"`
	Theme                Theme          `json:"theme,omitempty" yaml:"theme"`
	AccentColor          string         `json:"accentColor,omitempty" yaml:"accentColor"` // exposed to the page as --ezi-accent-color
	Splashscreen         *Splashscreen  `json:"splashscreen,omitempty" yaml:"splashscreen"`
	Opacity              *float64       `json:"opacity,omitempty" yaml:"opacity"`
	Borderless           bool           `json:"borderless,omitempty" yaml:"borderless"`
	Movable              *bool          `json:"movable,omitempty" yaml:"movable"`
	Resizable            *bool          `json:"resizable,omitempty" yaml:"resizable"`
	Minimizable          *bool          `json:"minimizable,omitempty" yaml:"minimizable"`
	Maximizable          *bool          `json:"maximizable,omitempty" yaml:"maximizable"`
	IgnoreMouseEvents    bool           `json:"ignoreMouseEvents,omitempty" yaml:"ignoreMouseEvents"`
	IgnoreKeyboardEvents bool           `json:"ignoreKeyboardEvents,omitempty" yaml:"ignoreKeyboardEvents"`
	AlwaysOnTop          bool           `json:"alwaysOnTop,omitempty" yaml:"alwaysOnTop"`
	SkipTaskbar          bool           `json:"skipTaskbar,omitempty" yaml:"skipTaskbar"`
	Fullscreen           bool           `json:"fullscreen,omitempty" yaml:"fullscreen"`
}

func DefaultOptions() Options {
	yes := true
	opacity := 1.0
	return Options{
		Src:             "index.html",
		Title:           "EziWindow",
		Size:            &Size{Width: 800, Height: 600},
		Position:        &Position{Mode: PositionCenter},
		BackgroundMode:  BackgroundOpaque,
		BackgroundColor: "#ffffff",
		Theme:           ThemeSystem,
		AccentColor:     "system",
		Splashscreen:    &Splashscreen{Src: "ezi-logo.png", Size: &Size{Width: 150, Height: 150}},
		Opacity:         &opacity,
		Movable:         &yes,
		Resizable:       &yes,
		Minimizable:     &yes,
		Maximizable:     &yes,
	}
}

// WithDefaults fills every unset field from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Src == "" {
		o.Src = d.Src
	}
	if o.Title == "" {
		o.Title = d.Title
	}
	if o.Size == nil {
		o.Size = d.Size
	}
	if o.Position == nil || o.Position.Mode == "" {
		o.Position = d.Position
	}
	if o.BackgroundMode == "" {
		o.BackgroundMode = d.BackgroundMode
	}
	if o.BackgroundColor == "" {
		o.BackgroundColor = d.BackgroundColor
	}
	if o.Theme == "" {
		o.Theme = d.Theme
	}
	if o.AccentColor == "" {
		o.AccentColor = d.AccentColor
	}
	if o.Splashscreen == nil {
		o.Splashscreen = d.Splashscreen
	} else if o.Splashscreen.Size == nil {
		s := *o.Splashscreen
		s.Size = d.Splashscreen.Size
		o.Splashscreen = &s
	}
	if o.Opacity == nil {
		o.Opacity = d.Opacity
	}
	if o.Movable == nil {
		o.Movable = d.Movable
	}
	if o.Resizable == nil {
		o.Resizable = d.Resizable
	}
	if o.Minimizable == nil {
		o.Minimizable = d.Minimizable
	}
	if o.Maximizable == nil {
		o.Maximizable = d.Maximizable
	}
	return o
}

var (
	hexColor  = regexp.MustCompile(`^#([0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	rgbColor  = regexp.MustCompile(`^rgb\(\s*\d{1,3}\s*,\s*\d{1,3}\s*,\s*\d{1,3}\s*\)$`)
	rgbaColor = regexp.MustCompile(`^rgba\(\s*\d{1,3}\s*,\s*\d{1,3}\s*,\s*\d{1,3}\s*,\s*(0|1|0?\.\d+|1\.0+)\s*\)$`)
)

var namedColors = map[string]bool{
	"red": true, "blue": true, "green": true, "yellow": true, "purple": true,
	"orange": true, "black": true, "white": true, "gray": true, "pink": true,
	"cyan": true, "magenta": true, "lime": true, "teal": true, "navy": true,
	"maroon": true, "olive": true, "silver": true, "gold": true,
}

func validColor(s string) bool {
	return hexColor.MatchString(s) || rgbColor.MatchString(s) || rgbaColor.MatchString(s)
}

// Validate reports the first field that a host would reject.
func (o Options) Validate() error {
	if o.Size != nil && (o.Size.Width <= 0 || o.Size.Height <= 0) {
		return errors.Errorf("window size must be positive, got %dx%d", o.Size.Width, o.Size.Height)
	}
	if o.BackgroundMode != "" && !o.BackgroundMode.Valid() {
		return errors.Errorf("unknown background mode %q", o.BackgroundMode)
	}
	if o.BackgroundColor != "" && !validColor(o.BackgroundColor) {
		return errors.Errorf("invalid background color %q", o.BackgroundColor)
	}
	switch o.Theme {
	case "", ThemeLight, ThemeDark, ThemeSystem:
	default:
		return errors.Errorf("unknown theme %q", o.Theme)
	}
	if a := o.AccentColor; a != "" && a != "system" && !namedColors[a] && !validColor(a) {
		return errors.Errorf("invalid accent color %q", a)
	}
	if o.Opacity != nil && (*o.Opacity < 0 || *o.Opacity > 1) {
		return errors.Errorf("opacity must be within [0, 1], got %v", *o.Opacity)
	}
	return nil
}
