// Package report prints repositories that need attention.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/samber/lo"

	"github.com/mattsolo1/grove-gitcheck/pkg/check"
	"github.com/mattsolo1/grove-gitcheck/pkg/repo"
)

// Color modes accepted by Options.Color.
const (
	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

// Options controls what the Reporter prints.
type Options struct {
	Quiet       bool   // Print bare paths only
	ShowUnknown bool   // Print entries whose status could not be determined
	JSON        bool   // Print a JSON array instead of text
	Color       string // ColorAlways, ColorAuto or ColorNever; empty means auto
}

// Reporter writes non-clean entries to an output stream.
type Reporter struct {
	out     io.Writer
	opts    Options
	heading lipgloss.Style
	note    lipgloss.Style
	plain   bool
}

// New returns a Reporter writing to out. In auto color mode styling follows
// out's terminal capabilities. Whenever the resulting profile has no colors
// the styling embedded in the status text is stripped as well.
func New(out io.Writer, opts Options) *Reporter {
	renderer := lipgloss.NewRenderer(out)
	switch opts.Color {
	case ColorAlways:
		renderer.SetColorProfile(termenv.ANSI)
	case ColorNever:
		renderer.SetColorProfile(termenv.Ascii)
	}
	return &Reporter{
		out:     out,
		opts:    opts,
		heading: renderer.NewStyle().Bold(true),
		note:    renderer.NewStyle().Foreground(lipgloss.Color("1")),
		plain:   renderer.ColorProfile() == termenv.Ascii,
	}
}

// jsonEntry is the JSON shape of one reported repository.
type jsonEntry struct {
	Path     string       `json:"path"`
	Verdict  repo.Verdict `json:"verdict"`
	ExitCode int          `json:"exit_code"`
	TimedOut bool         `json:"timed_out,omitempty"`
	Error    string       `json:"error,omitempty"`
	Status   string       `json:"status"`
}

// Visible returns the entries the Reporter would print, in input order.
func (r *Reporter) Visible(entries []check.Entry) []check.Entry {
	return lo.Filter(entries, func(e check.Entry, _ int) bool {
		switch e.Verdict {
		case repo.Clean:
			return false
		case repo.Unknown:
			return r.opts.ShowUnknown
		default:
			return true
		}
	})
}

// Report prints every visible entry. Clean entries are never printed.
func (r *Reporter) Report(entries []check.Entry) error {
	visible := r.Visible(entries)

	if r.opts.JSON {
		return r.reportJSON(visible)
	}

	for _, e := range visible {
		if err := r.reportEntry(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reporter) reportEntry(e check.Entry) error {
	if r.opts.Quiet {
		_, err := fmt.Fprintln(r.out, e.Repo.Path)
		return err
	}

	var b strings.Builder
	b.WriteString(r.heading.Render(e.Repo.Path))
	b.WriteString("\n")

	if e.Verdict == repo.Unknown {
		b.WriteString(r.note.Render(fmt.Sprintf("(status unavailable: %s)", e.Result.Reason())))
		b.WriteString("\n")
	}
	status := e.Result.Stdout
	if r.plain {
		status = repo.StripANSI(status)
	}
	if status != "" {
		b.WriteString(status)
		if !strings.HasSuffix(status, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Reporter) reportJSON(entries []check.Entry) error {
	output := lo.Map(entries, func(e check.Entry, _ int) jsonEntry {
		return jsonEntry{
			Path:     e.Repo.Path,
			Verdict:  e.Verdict,
			ExitCode: e.Result.ExitCode,
			TimedOut: e.Result.TimedOut,
			Error:    e.Result.Reason(),
			Status:   repo.StripANSI(e.Result.Stdout),
		}
	})

	jsonData, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = fmt.Fprintln(r.out, string(jsonData))
	return err
}

// Summary formats the verdict counts as one line for the diagnostic log.
func Summary(s check.Summary) string {
	return fmt.Sprintf("%d repositories checked: %d clean, %d dirty, %d unknown",
		s.Total(), s.Clean, s.Dirty, s.Unknown)
}
