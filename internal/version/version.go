package version

var (
	// Version is populated by ldflags at build time.
	Version = "v0.1.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders the build identity for logs and --version.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
