package windowm

import (
	"context"
	"encoding/json"
	"testing"

	"ezi-bridge/ext"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type invocation struct {
	fn   string
	args map[string]any
}

// fakeCaller answers from a table keyed by "ns.method" and records what it saw.
type fakeCaller struct {
	calls   []invocation
	answers map[string]string
	errs    map[string]error
}

func (f *fakeCaller) Invoke(ctx context.Context, ns, method string, args, reply any) error {
	fn := ns + "." + method
	raw, _ := json.Marshal(args)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	f.calls = append(f.calls, invocation{fn: fn, args: m})
	if err := f.errs[fn]; err != nil {
		return err
	}
	answer, ok := f.answers[fn]
	if !ok {
		answer = `"success"`
	}
	if reply == nil {
		return nil
	}
	return json.Unmarshal([]byte(answer), reply)
}

func (f *fakeCaller) last() invocation {
	return f.calls[len(f.calls)-1]
}

func TestManagerLookups(t *testing.T) {
	c := &fakeCaller{answers: map[string]string{
		"windowm.getCurrentWindow": `{"id":1,"title":"main"}`,
		"windowm.getWindowList":    `[{"id":1,"title":"main"},{"id":2,"title":"settings"}]`,
	}}
	m := New(c, nil)
	ctx := context.Background()

	cur, err := m.GetCurrentWindow(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, cur.ID)
	require.Equal(t, "main", cur.Title)

	list, err := m.GetWindowList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	w, err := m.GetWindowByTitle(ctx, "settings")
	require.NoError(t, err)
	require.Equal(t, 2, w.ID)

	w, err = m.GetWindowByID(ctx, 7)
	require.NoError(t, err)
	require.Nil(t, w)
}

func TestWindowCallsCarryWinID(t *testing.T) {
	c := &fakeCaller{answers: map[string]string{
		"windowm.isMaximized": `true`,
		"windowm.getSize":     `{"width":1024,"height":768}`,
	}}
	w := New(c, nil).Window(Info{ID: 3, Title: "a"})
	ctx := context.Background()

	maximized, err := w.IsMaximized(ctx)
	require.NoError(t, err)
	require.True(t, maximized)
	require.Equal(t, map[string]any{"winId": float64(3)}, c.last().args)

	size, err := w.GetSize(ctx)
	require.NoError(t, err)
	require.Equal(t, Size{1024, 768}, size)

	require.NoError(t, w.SetPosition(ctx, Point{X: 10, Y: 20}))
	require.Equal(t, "windowm.setPosition", c.last().fn)
	require.Equal(t, map[string]any{"winId": float64(3), "x": float64(10), "y": float64(20)}, c.last().args)

	require.NoError(t, w.SetMovable(ctx, false))
	require.Equal(t, false, c.last().args["enable"])

	require.NoError(t, w.Minimize(ctx))
	require.Equal(t, "windowm.minimize", c.last().fn)
}

func TestSetTitleUpdatesHandleOnlyOnSuccess(t *testing.T) {
	c := &fakeCaller{}
	w := New(c, nil).Window(Info{ID: 1, Title: "old"})

	require.NoError(t, w.SetTitle(context.Background(), "new"))
	require.Equal(t, "new", w.Title)

	c.errs = map[string]error{"windowm.setTitle": errors.New("denied")}
	require.Error(t, w.SetTitle(context.Background(), "newer"))
	require.Equal(t, "new", w.Title)
}

func TestCreateWindowValidates(t *testing.T) {
	c := &fakeCaller{answers: map[string]string{"windowm.createWindow": `{"id":5,"title":"tool"}`}}
	m := New(c, nil)
	ctx := context.Background()

	w, err := m.CreateWindow(ctx, &Options{Title: "tool", Position: At(5, 6)})
	require.NoError(t, err)
	require.Equal(t, 5, w.ID)
	opts := c.last().args["options"].(map[string]any)
	require.Equal(t, map[string]any{"x": float64(5), "y": float64(6)}, opts["position"])

	bad := 1.5
	_, err = m.CreateWindow(ctx, &Options{Opacity: &bad})
	require.ErrorContains(t, err, "opacity")
	require.Len(t, c.calls, 1)

	_, err = m.CreateWindow(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, c.last().args)
}

func TestBeforeCloseMessage(t *testing.T) {
	c := &fakeCaller{}
	cbs := ext.NewCallbacks(zerolog.Nop())
	w := New(c, cbs).Window(Info{ID: 4})
	ctx := context.Background()

	var got CloseChoice
	cancel, err := w.SetBeforeCloseMessage(ctx, BeforeCloseMessage{Content: "Quit?", ExtraButton: "Later"}, func(choice CloseChoice) {
		got = choice
	})
	require.NoError(t, err)
	require.Equal(t, "__beforeCloseCallback_4", c.last().args["callbackName"])

	require.True(t, cbs.Fire(BeforeCloseCallbackName(4), json.RawMessage(`"extra"`)))
	require.Equal(t, ChoiceExtra, got)

	require.NoError(t, cancel(ctx))
	require.Equal(t, map[string]any{"winId": float64(4)}, c.last().args)
	require.False(t, cbs.Fire(BeforeCloseCallbackName(4), json.RawMessage(`"close"`)))

	_, err = w.SetBeforeCloseMessage(ctx, BeforeCloseMessage{}, nil)
	require.Error(t, err)
	_, err = New(c, nil).Window(Info{ID: 4}).SetBeforeCloseMessage(ctx, BeforeCloseMessage{}, func(CloseChoice) {})
	require.Error(t, err)
}

func TestPositionEncoding(t *testing.T) {
	data, err := json.Marshal(Position{Mode: PositionRemembered})
	require.NoError(t, err)
	require.JSONEq(t, `"remembered"`, string(data))

	var p Position
	require.NoError(t, json.Unmarshal([]byte(`{"x":3}`), &p))
	require.Equal(t, PositionFixed, p.Mode)
	require.Equal(t, 3, *p.X)
	require.Nil(t, p.Y)

	require.Error(t, json.Unmarshal([]byte(`"left"`), &p))

	var doc struct {
		A Position `yaml:"a"`
		B Position `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: center\nb: {x: 1, y: 2}\n"), &doc))
	require.Equal(t, PositionCenter, doc.A.Mode)
	require.Equal(t, 2, *doc.B.Y)
}

func TestOptionsDefaultsAndValidate(t *testing.T) {
	o := Options{Title: "mine", Splashscreen: &Splashscreen{Src: "s.png"}}.WithDefaults()
	require.Equal(t, "mine", o.Title)
	require.Equal(t, "index.html", o.Src)
	require.Equal(t, Size{800, 600}, *o.Size)
	require.Equal(t, PositionCenter, o.Position.Mode)
	require.Equal(t, "s.png", o.Splashscreen.Src)
	require.Equal(t, Size{150, 150}, *o.Splashscreen.Size)
	require.True(t, *o.Movable)
	require.NoError(t, o.Validate())

	for _, bad := range []Options{
		{Size: &Size{0, 10}},
		{BackgroundMode: "glass"},
		{BackgroundColor: "white"},
		{Theme: "sepia"},
		{AccentColor: "chartreuse"},
	} {
		require.Error(t, bad.Validate())
	}
	for _, good := range []string{"system", "red", "#ff0000", "rgb(255, 0, 0)", "rgba(255, 0, 0, 0.5)"} {
		require.NoError(t, Options{AccentColor: good}.Validate(), good)
	}
}
