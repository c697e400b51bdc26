package discovery

// Repo represents a single discovered repository root.
type Repo struct {
	Path string // Absolute, symlink-resolved path to the working copy
}

// Decision is the outcome of visiting a directory during traversal.
type Decision int

const (
	// Recurse means the directory is not a repository and its
	// subdirectories should be visited.
	Recurse Decision = iota
	// RootFound means the directory holds the version-control marker.
	RootFound
	// Skip means the directory is excluded, unreadable or already visited.
	Skip
)

func (d Decision) String() string {
	switch d {
	case Recurse:
		return "recurse"
	case RootFound:
		return "root"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}
