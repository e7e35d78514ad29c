package version

import (
	"fmt"
	"runtime"
)

var (
	CLIName    = "manifest-mcp"
	CLIVersion = "0.1.0"
	Commit     = "unknown"
	BuildDate  = "unknown"
)

// Info is the structured form printed by `version --long --json`.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

func Current() Info {
	return Info{
		Name:      CLIName,
		Version:   CLIVersion,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

func Long() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s)", CLIVersion, Commit, BuildDate, runtime.Version())
}
