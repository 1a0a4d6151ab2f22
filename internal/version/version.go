package version

import (
	"fmt"
	"runtime/debug"
)

// Populated at build time via -ldflags "-X tabsense/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// String returns the version with commit and build date when known. Builds
// without ldflags fall back to the module version recorded by the toolchain.
func String() string {
	base := Version
	if base == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			base = bi.Main.Version
		}
	}
	if Commit != "" {
		base += fmt.Sprintf(" (%s)", Commit)
	}
	if Date != "" {
		base += " " + Date
	}
	return base
}
