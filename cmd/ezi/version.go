package main

import (
	"fmt"
	"runtime"
	"time"

	"ezi-bridge/ext/version"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.eziVersion=... -X main.gitHash=... -X main.buildDate=...".
var (
	eziVersion = "0.0.0"
	buildType  = "Debug"
	gitHash    = "unknown"
	buildDate  = ""
	osVersion  = "0.0.0"
)

func buildInfo() version.Info {
	return version.Info{
		EziVersion:     eziVersion,
		BuildType:      version.BuildType(buildType),
		BuildDate:      buildDate,
		Platform:       platform(runtime.GOOS),
		OSVersion:      osVersion,
		EziGitHash:     gitHash,
		WebViewVersion: "none",
	}
}

func platform(goos string) version.Platform {
	switch goos {
	case "windows":
		return version.Windows
	case "darwin":
		return version.MacOS
	case "android":
		return version.Android
	case "ios":
		return version.IOS
	default:
		return version.Linux
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version report",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := buildInfo()
		fmt.Fprintln(cmd.OutOrStdout(), info.Report(time.Now()))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
