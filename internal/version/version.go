package version

import "fmt"

// Set via -ldflags "-X aigist/internal/version.Version=... -X aigist/internal/version.Commit=..."
var (
	Version = "0.1.0-dev"
	Commit  = "unknown"
)

func String() string { return fmt.Sprintf("aigist %s (%s)", Version, Commit) }
