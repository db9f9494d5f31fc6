// Package version reads the build and platform information a host injects
// into its front-ends.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ezi-bridge/ext"

	"github.com/pkg/errors"
)

const Namespace = "version"

type Platform string

const (
	Windows     Platform = "windows"
	Linux       Platform = "linux"
	MacOS       Platform = "macos"
	HarmonyOS   Platform = "harmonyos"
	OpenHarmony Platform = "openharmony"
	Android     Platform = "android"
	IOS         Platform = "ios"
)

type BuildType string

const (
	Debug   BuildType = "Debug"
	Release BuildType = "Release"
)

// Info is the injected version record. Field names follow the injected
// object.
type Info struct {
	EziVersion     string    `json:"EziVersion"`
	BuildType      BuildType `json:"BuildType"`
	BuildDate      string    `json:"BuildDate"`
	Platform       Platform  `json:"Platform"`
	OSVersion      string    `json:"OSVersion"`
	EziGitHash     string    `json:"EziGitHash"`
	WebViewVersion string    `json:"WebViewVersion"`
}

func Parse(data []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, errors.Wrap(err, "parse version info")
	}
	return &info, nil
}

// Fetch asks the host for its version record.
func Fetch(ctx context.Context, c ext.Caller) (*Info, error) {
	var info Info
	if err := c.Invoke(ctx, Namespace, "info", struct{}{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02", "Jan 2 2006 15:04:05", "Jan  2 2006 15:04:05"}

// BuildTime parses BuildDate. The zero time is returned for an
// unrecognized date.
func (i *Info) BuildTime() time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, i.BuildDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Report renders a human readable summary, stamped with now.
func (i *Info) Report(now time.Time) string {
	buildDate := "unknown"
	if t := i.BuildTime(); !t.IsZero() {
		buildDate = t.UTC().Format(time.RFC3339)
	}
	var b strings.Builder
	b.WriteString("Ezi Version Report:\n")
	fmt.Fprintf(&b, "- Ezi Version: %s\n", i.EziVersion)
	fmt.Fprintf(&b, "- Build Type: %s\n", i.BuildType)
	fmt.Fprintf(&b, "- Git Hash: %s\n", i.EziGitHash)
	fmt.Fprintf(&b, "- Platform: %s\n", i.Platform)
	fmt.Fprintf(&b, "- OS Version: %s\n", i.OSVersion)
	fmt.Fprintf(&b, "- WebView Version: %s\n", i.WebViewVersion)
	fmt.Fprintf(&b, "- Build Date: %s\n", buildDate)
	fmt.Fprintf(&b, "- Report Time: %s", now.UTC().Format(time.RFC3339))
	return b.String()
}

func (i *Info) IsDebug() bool   { return i.BuildType == Debug }
func (i *Info) IsRelease() bool { return i.BuildType == Release }

func (i *Info) IsWindows() bool     { return i.Platform == Windows }
func (i *Info) IsLinux() bool       { return i.Platform == Linux }
func (i *Info) IsMacOS() bool       { return i.Platform == MacOS }
func (i *Info) IsHarmonyOS() bool   { return i.Platform == HarmonyOS }
func (i *Info) IsOpenHarmony() bool { return i.Platform == OpenHarmony }
func (i *Info) IsAndroid() bool     { return i.Platform == Android }
func (i *Info) IsIOS() bool         { return i.Platform == IOS }

func (i *Info) EziVersionGreaterThan(target string) bool {
	return GreaterThan(i.EziVersion, target)
}

func (i *Info) OSVersionGreaterThan(target string) bool {
	return GreaterThan(i.OSVersion, target)
}

// IsWindows11OrHigher reports a Windows OS version above 10.0.22000.
func (i *Info) IsWindows11OrHigher() bool {
	return i.IsWindows() && i.OSVersionGreaterThan("10.0.22000")
}

// GreaterThan compares the first three dot-separated parts of a and b
// numerically. A missing or non-numeric part is neither greater than nor
// equal to anything, so the comparison stops being true at that part.
func GreaterThan(a, b string) bool {
	a1, a2, a3 := parts(a)
	b1, b2, b3 := parts(b)
	return a1 > b1 || (a1 == b1 && a2 > b2) || (a1 == b1 && a2 == b2 && a3 > b3)
}

func parts(v string) (float64, float64, float64) {
	var out [3]float64
	fields := strings.Split(v, ".")
	for i := range out {
		if i >= len(fields) {
			out[i] = math.NaN()
			continue
		}
		out[i] = number(fields[i])
	}
	return out[0], out[1], out[2]
}

func number(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
