// Package vars holds build-time variables populated via the linker (ldflags).
package vars

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"time"
)

// License of the project
const License = "AGPL-3.0"

var (
	// Name of the project
	Name = "mcping"

	// Version of application (git tag), "dev" for local builds
	Version = "dev"

	// Commit is the git SHA the binary was built from
	Commit = "unknown"

	// Revision build, count of commits
	Revision = 0

	// BuildTime is the time of start build app, RFC3339 UTC
	BuildTime = time.Unix(0, 0)

	// URL to repository (https)
	URL = "https://github.com/woozymasta/mcping"

	_revision  string
	_buildTime string
)

// BuildInfo is the build metadata served by /api/version.
type BuildInfo struct {
	// betteralign:ignore

	Name        string    `json:"name" example:"mcping"`
	Version     string    `json:"version" example:"v1.2.3"`
	Commit      string    `json:"commit" example:"da15c174cd2ada1ad247906536c101e8f6799def"`
	CommitShort string    `json:"commit_short,omitempty" example:"da15c17"`
	Revision    int       `json:"revision,omitempty" example:"1337"`
	BuildTime   time.Time `json:"build_time,omitempty" example:"1970-01-01T00:00:00Z"`
	GoVersion   string    `json:"go_version" example:"go1.25.5"`
	URL         string    `json:"url,omitempty" example:"https://github.com/woozymasta/mcping"`
	License     string    `json:"license,omitempty" example:"AGPL-3.0"`
}

func init() {
	if n, err := strconv.Atoi(_revision); err == nil {
		Revision = n
	}

	if _buildTime != "" {
		if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
			BuildTime = t.UTC()
		}
	}

	// go install builds carry the module version and VCS revision instead of ldflags
	if info, ok := debug.ReadBuildInfo(); ok {
		if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && Commit == "unknown" {
				Commit = s.Value
			}
		}
	}
}

// Print writes the build information to the standard output.
func Print() {
	Fprint(os.Stdout)
}

// Fprint writes the build information to w.
func Fprint(w io.Writer) {
	_, _ = fmt.Fprintf(w, `name:     %s
url:      %s
file:     %s
version:  %s
commit:   %s
revision: %d
built:    %s
go:       %s
license:  %s
`, Name, URL, os.Args[0], Version, Commit, Revision, BuildTime, runtime.Version(), License)
}

// Info returns a BuildInfo struct containing detailed build metadata.
func Info() BuildInfo {
	return BuildInfo{
		Name:        Name,
		Version:     Version,
		Commit:      Commit,
		CommitShort: CommitShort(),
		Revision:    Revision,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
		URL:         URL,
		License:     License,
	}
}

// UserAgent returns the product token sent with outgoing HTTP requests.
func UserAgent() string {
	return Name + "/" + Version + " (+" + URL + ")"
}

// CommitShort returns the first 7 characters of the git commit hash.
func CommitShort() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}

	return Commit
}
