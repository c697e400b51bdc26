package discovery

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
)

// DefaultMarker is the entry whose presence marks a repository root.
const DefaultMarker = ".git"

// Options configures a Locator.
type Options struct {
	Marker         string   // Marker entry name, DefaultMarker when empty
	Exclude        []string // Glob patterns for directories never descended into
	FollowSymlinks bool     // Follow symlinked directories during recursive search
	Logger         logrus.FieldLogger
}

// Locator expands input directories into repository roots.
type Locator struct {
	marker         string
	exclude        []string
	followSymlinks bool
	log            logrus.FieldLogger
}

// NewLocator validates the exclude patterns and returns a Locator.
func NewLocator(opts Options) (*Locator, error) {
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
	}

	marker := opts.Marker
	if marker == "" {
		marker = DefaultMarker
	}

	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	return &Locator{
		marker:         marker,
		exclude:        opts.Exclude,
		followSymlinks: opts.FollowSymlinks,
		log:            log,
	}, nil
}

// Locate returns the repository roots for the given directories, sorted by path.
//
// Without recursion every input directory is taken as a repository as-is.
// With recursion each input is searched breadth-first and the search stops
// at the first directory holding the marker on every branch. Every directory
// is visited at most once, keyed by its symlink-resolved path, so symlink
// cycles terminate. If ctx is cancelled the roots found so far are returned
// together with the context error.
func (l *Locator) Locate(ctx context.Context, roots []string, recursive bool) ([]Repo, error) {
	if !recursive {
		return l.direct(roots), nil
	}

	var (
		found   []Repo
		queue   []string
		visited = make(map[string]struct{})
	)

	enqueue := func(path string) {
		if _, seen := visited[path]; seen {
			return
		}
		visited[path] = struct{}{}
		queue = append(queue, path)
	}

	for _, root := range roots {
		resolved, err := normalize(root)
		if err != nil {
			l.log.WithField("path", root).WithError(err).Debug("Skipping unresolvable search root")
			continue
		}
		enqueue(resolved)
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			sortRepos(found)
			return found, err
		}

		dir := queue[0]
		queue = queue[1:]

		decision, children := l.visit(dir)
		l.log.WithField("path", dir).WithField("decision", decision).Trace("Visited directory")

		switch decision {
		case RootFound:
			found = append(found, Repo{Path: dir})
		case Recurse:
			for _, child := range children {
				enqueue(child)
			}
		}
	}

	sortRepos(found)
	return found, nil
}

// direct treats every input as a repository root, dropping non-directories
// and duplicate spellings of the same directory.
func (l *Locator) direct(roots []string) []Repo {
	var repos []Repo
	seen := make(map[string]struct{})

	for _, root := range roots {
		resolved, err := normalize(root)
		if err != nil {
			l.log.WithField("path", root).WithError(err).Debug("Skipping unresolvable directory")
			continue
		}
		info, err := os.Stat(resolved)
		if err != nil || !info.IsDir() {
			l.log.WithField("path", resolved).Debug("Skipping non-directory")
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		repos = append(repos, Repo{Path: resolved})
	}

	sortRepos(repos)
	return repos
}

// visit decides what to do with a single directory. For Recurse it also
// returns the resolved subdirectories that are not excluded.
func (l *Locator) visit(dir string) (Decision, []string) {
	if l.hasMarker(dir) {
		return RootFound, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		l.log.WithField("path", dir).WithError(err).Debug("Skipping unreadable directory")
		return Skip, nil
	}

	var children []string
	for _, entry := range entries {
		child := filepath.Join(dir, entry.Name())

		isLink := entry.Type()&fs.ModeSymlink != 0
		if !entry.IsDir() && !isLink {
			continue
		}
		if isLink && !l.followSymlinks {
			continue
		}

		// Patterns apply to the entry's own name, before any link is resolved.
		if l.excluded(child) {
			l.log.WithField("path", child).Debug("Excluded directory")
			continue
		}

		if isLink {
			resolved, ok := l.resolveLink(child)
			if !ok {
				continue
			}
			child = resolved
		}
		children = append(children, child)
	}

	return Recurse, children
}

// hasMarker reports whether dir holds the marker entry. A marker file
// counts as well as a directory, which covers worktrees and submodules.
func (l *Locator) hasMarker(dir string) bool {
	_, err := os.Lstat(filepath.Join(dir, l.marker))
	return err == nil
}

// resolveLink returns the real path of a symlink that points at a directory.
func (l *Locator) resolveLink(link string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(link)
	if err != nil {
		l.log.WithField("path", link).WithError(err).Debug("Skipping broken symlink")
		return "", false
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return resolved, true
}

func (l *Locator) excluded(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range l.exclude {
		if l.matches(pattern, base, doublestar.Match) || l.matches(pattern, path, doublestar.PathMatch) {
			return true
		}
	}
	return false
}

func (l *Locator) matches(pattern, name string, match func(string, string) (bool, error)) bool {
	ok, err := match(pattern, name)
	if err != nil {
		l.log.WithField("pattern", pattern).WithError(err).Debug("Exclude pattern failed to match")
		return false
	}
	return ok
}

// normalize makes path absolute and resolves every symlink in it.
func normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func sortRepos(repos []Repo) {
	sort.Slice(repos, func(i, j int) bool {
		return repos[i].Path < repos[j].Path
	})
}
