// Package check queries and classifies discovered repositories concurrently.
package check

import (
	"context"
	"io"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mattsolo1/grove-gitcheck/pkg/discovery"
	"github.com/mattsolo1/grove-gitcheck/pkg/repo"
)

// Entry pairs a repository with its status and verdict.
type Entry struct {
	Repo    discovery.Repo
	Result  repo.Result
	Verdict repo.Verdict
}

// DefaultWorkers is the pool size used when none is configured.
func DefaultWorkers() int {
	return 2 * runtime.NumCPU()
}

// Runner fans status queries out over a bounded worker pool.
type Runner struct {
	Provider   repo.Provider
	Classifier repo.Classifier
	Workers    int
	Logger     logrus.FieldLogger
}

// Run queries every repository and returns the entries sorted by path.
// Repositories not yet queried when ctx is cancelled are reported as Unknown.
func (r *Runner) Run(ctx context.Context, repos []discovery.Repo) []Entry {
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	log := r.logger()

	entries := make([]Entry, len(repos))
	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, rp := range repos {
		i, rp := i, rp
		g.Go(func() error {
			var result repo.Result
			if err := ctx.Err(); err != nil {
				result = repo.Result{ExitCode: -1, Err: err}
			} else {
				result = r.Provider.Query(ctx, rp.Path)
			}

			verdict := r.Classifier.Classify(result)
			entry := log.WithField("path", rp.Path).WithField("verdict", verdict)
			if verdict == repo.Unknown {
				entry.WithField("reason", result.Reason()).Debug("Status unavailable")
			} else {
				entry.Debug("Checked repository")
			}

			entries[i] = Entry{Repo: rp, Result: result, Verdict: verdict}
			return nil
		})
	}
	// Failures are carried in each entry; workers always return nil.
	g.Wait()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Repo.Path < entries[j].Repo.Path
	})
	return entries
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}

// Summary counts entries per verdict.
type Summary struct {
	Clean   int
	Dirty   int
	Unknown int
}

// Summarize tallies the verdicts of entries.
func Summarize(entries []Entry) Summary {
	var s Summary
	for _, e := range entries {
		switch e.Verdict {
		case repo.Clean:
			s.Clean++
		case repo.Dirty:
			s.Dirty++
		default:
			s.Unknown++
		}
	}
	return s
}

// Total is the number of entries counted.
func (s Summary) Total() int {
	return s.Clean + s.Dirty + s.Unknown
}
