package version

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const injected = `{
  "EziVersion": "1.4.2",
  "BuildType": "Release",
  "BuildDate": "2025-03-01T08:30:00Z",
  "Platform": "windows",
  "OSVersion": "10.0.22631",
  "EziGitHash": "a1b2c3d",
  "WebViewVersion": "122.0.2365.92"
}`

func TestParseAndPredicates(t *testing.T) {
	info, err := Parse([]byte(injected))
	require.NoError(t, err)

	require.True(t, info.IsRelease())
	require.False(t, info.IsDebug())
	require.True(t, info.IsWindows())
	require.False(t, info.IsLinux())
	require.False(t, info.IsMacOS())
	require.True(t, info.IsWindows11OrHigher())
	require.True(t, info.EziVersionGreaterThan("1.4.1"))
	require.False(t, info.EziVersionGreaterThan("1.4.2"))
	require.Equal(t, time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC), info.BuildTime())

	_, err = Parse([]byte(`{`))
	require.Error(t, err)
}

func TestWindows10IsNotEleven(t *testing.T) {
	info := &Info{Platform: Windows, OSVersion: "10.0.19045"}
	require.False(t, info.IsWindows11OrHigher())

	info = &Info{Platform: Linux, OSVersion: "10.0.30000"}
	require.False(t, info.IsWindows11OrHigher())
}

func TestGreaterThan(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"2.0.0", "1.9.9", true},
		{"1.10.0", "1.9.0", true},
		{"1.2.3", "1.2.3", false},
		{"1.2.3", "1.2.4", false},
		{"1.2", "1.2.0", false},
		{"1.x.0", "1.0.0", false},
		{"2.x.0", "1.0.0", true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, GreaterThan(tc.a, tc.b), "%s > %s", tc.a, tc.b)
	}
}

func TestReport(t *testing.T) {
	info, err := Parse([]byte(injected))
	require.NoError(t, err)

	report := info.Report(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, strings.HasPrefix(report, "Ezi Version Report:\n"))
	require.Contains(t, report, "- Ezi Version: 1.4.2\n")
	require.Contains(t, report, "- Build Date: 2025-03-01T08:30:00Z\n")
	require.True(t, strings.HasSuffix(report, "- Report Time: 2025-04-01T00:00:00Z"))

	require.Contains(t, (&Info{BuildDate: "someday"}).Report(time.Now()), "- Build Date: unknown")
}

type staticCaller struct{ body string }

func (s staticCaller) Invoke(ctx context.Context, ns, method string, args, reply any) error {
	return json.Unmarshal([]byte(s.body), reply)
}

func TestFetch(t *testing.T) {
	info, err := Fetch(context.Background(), staticCaller{injected})
	require.NoError(t, err)
	require.Equal(t, "a1b2c3d", info.EziGitHash)
}
