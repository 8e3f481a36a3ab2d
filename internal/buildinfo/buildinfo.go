// Package buildinfo carries the build identifiers stamped in with
// -ldflags "-X aegis/internal/buildinfo.Version=...".
package buildinfo

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func set(s, unset string) bool { return s != "" && s != unset }

// Short returns the release version, else the abbreviated commit, else "dev".
func Short() string {
	switch {
	case set(Version, "dev"):
		return Version
	case set(Commit, "unknown"):
		if len(Commit) > 12 {
			return Commit[:12]
		}
		return Commit
	}
	return "dev"
}

// Banner is the first console line printed at boot and the window title.
func Banner() string {
	s := "AegisOS " + Short()
	if set(Date, "unknown") {
		s += " (" + Date + ")"
	}
	return s
}
