// Package vars holds build-time variables populated via the linker (ldflags).
package vars

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// License of the project
const License = "AGPL-3.0"

var (
	// Name of the project
	Name = "gamestat"

	// Version of application (git tag), e.g. v1.2.3
	Version = "dev"

	// Commit is the current git commit, full or short git SHA
	Commit = "unknown"

	// Revision build, count of commits
	Revision = 0

	// BuildTime is the time of start build app, RFC3339 UTC
	BuildTime = time.Unix(0, 0).UTC()

	// URL to repository (https)
	URL = "https://github.com/woozymasta/gamestat"

	_revision  string
	_buildTime string
)

// BuildInfo is the version payload served by GET /api/version.
type BuildInfo struct {
	// betteralign:ignore

	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	Revision  int       `json:"revision,omitempty"`
	BuildTime time.Time `json:"build_time"`
}

func init() {
	setRevision(_revision)
	setBuildTime(_buildTime)
}

func setRevision(s string) {
	if n, err := strconv.Atoi(s); err == nil {
		Revision = n
	}
}

func setBuildTime(s string) {
	if s == "" {
		return
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		BuildTime = t.UTC()
	}
}

// Print writes the build information to w.
func Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, `name:     %s
url:      %s
file:     %s
version:  %s
commit:   %s
revision: %d
built:    %s
license:  %s
`, Name, URL, os.Args[0], Version, CommitShort(), Revision, BuildTime.Format(time.RFC3339), License)
}

// Ver returns the build information exposed over the API.
func Ver() BuildInfo {
	return BuildInfo{
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		Revision:  Revision,
		BuildTime: BuildTime,
	}
}

// UserAgent returns the identifier sent with outgoing HTTP requests.
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
