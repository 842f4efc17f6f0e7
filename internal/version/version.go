// Package version carries build identity, stamped via ldflags:
//
//	go build -ldflags "-X github.com/avelik/polymarket-data/internal/version.Version=0.3.0 \
//	                   -X github.com/avelik/polymarket-data/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/avelik/polymarket-data/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	// Version is the semantic version of this build.
	Version = "dev"

	// Commit is the short git commit hash.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// String formats the full build identity for startup logs.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
