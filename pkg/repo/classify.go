package repo

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Verdict is the classification of a repository's status.
type Verdict int

const (
	Clean Verdict = iota
	Dirty
	Unknown
)

func (v Verdict) String() string {
	switch v {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// MarshalText renders the verdict by name in JSON reports.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

var (
	// DefaultCleanMarkers appear in status output of a tree with nothing to commit.
	DefaultCleanMarkers = []string{"nothing to commit, working tree clean"}
	// DefaultSyncMarkers appear when the branch is out of sync with its upstream.
	DefaultSyncMarkers = []string{"branch is ahead", "branch is behind", "have diverged"}
)

// Classifier maps status output to a Verdict using marker phrases.
// It matches human-readable text, so it is only as stable as git's wording.
type Classifier struct {
	CleanMarkers []string
	SyncMarkers  []string
}

// DefaultClassifier returns a Classifier for git's English status output.
func DefaultClassifier() Classifier {
	return Classifier{
		CleanMarkers: append([]string(nil), DefaultCleanMarkers...),
		SyncMarkers:  append([]string(nil), DefaultSyncMarkers...),
	}
}

// Classify returns Unknown for failed invocations, Dirty when the output
// lacks a clean marker or carries a sync marker, and Clean otherwise.
func (c Classifier) Classify(result Result) Verdict {
	if !result.Succeeded {
		return Unknown
	}

	out := StripANSI(result.Stdout)
	if !containsAny(out, c.CleanMarkers) {
		return Dirty
	}
	if containsAny(out, c.SyncMarkers) {
		return Dirty
	}
	return Clean
}

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	return ansi.Strip(s)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}
