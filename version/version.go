package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

// Set with -ldflags -X.
var (
	Version   = "dev"
	Commit    = ""
	Branch    = ""
	BuildTime = ""
)

// Info is the resolved build identity.
type Info struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	GoVersion string    `json:"go_version"`
	BuiltAt   time.Time `json:"built_at,omitzero"`
	Modified  bool      `json:"modified,omitempty"`
}

// Get resolves the build identity from the linker values, falling back
// to the module build info for anything not stamped.
func Get() *Info {
	info := &Info{Version: Version, Commit: Commit, Branch: Branch}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuiltAt = t.UTC()
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = shortCommit(s.Value)
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		case "vcs.time":
			if info.BuiltAt.IsZero() {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					info.BuiltAt = t.UTC()
				}
			}
		}
	}
	return info
}

func shortCommit(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// Release reports whether the binary was stamped with a clean version.
func (i *Info) Release() bool {
	return i.Version != "dev" && !i.Modified && !strings.HasSuffix(i.Version, "-dirty")
}

// Short renders version[-commit][-dirty].
func (i *Info) Short() string {
	s := i.Version
	if i.Commit != "" {
		s += "-" + i.Commit
	}
	if i.Modified {
		s += "-dirty"
	}
	return s
}

// String renders the short form plus branch, build time and toolchain.
func (i *Info) String() string {
	var b strings.Builder
	b.WriteString("viewkit ")
	b.WriteString(i.Short())
	if i.Branch != "" && i.Branch != "main" && i.Branch != "master" {
		fmt.Fprintf(&b, " (%s)", i.Branch)
	}
	if !i.BuiltAt.IsZero() {
		fmt.Fprintf(&b, " built %s", i.BuiltAt.Format(time.RFC3339))
	}
	if i.GoVersion != "" {
		fmt.Fprintf(&b, " %s", i.GoVersion)
	}
	return b.String()
}
