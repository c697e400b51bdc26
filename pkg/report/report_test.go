package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-gitcheck/pkg/check"
	"github.com/mattsolo1/grove-gitcheck/pkg/discovery"
	"github.com/mattsolo1/grove-gitcheck/pkg/repo"
)

func sampleEntries() []check.Entry {
	return []check.Entry{
		{
			Repo:    discovery.Repo{Path: "/src/clean"},
			Result:  repo.Result{Succeeded: true, Stdout: "nothing to commit, working tree clean\n"},
			Verdict: repo.Clean,
		},
		{
			Repo:    discovery.Repo{Path: "/src/dirty"},
			Result:  repo.Result{Succeeded: true, Stdout: "Changes to be committed:\n\t\x1b[32mnew file:   a.go\x1b[m\n"},
			Verdict: repo.Dirty,
		},
		{
			Repo:    discovery.Repo{Path: "/src/broken"},
			Result:  repo.Result{ExitCode: -1, TimedOut: true, Err: errors.New("status command timed out after 30s")},
			Verdict: repo.Unknown,
		},
	}
}

func TestReporter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Quiet: true, ShowUnknown: true, Color: ColorNever})

	require.NoError(t, r.Report(sampleEntries()))
	assert.Equal(t, "/src/dirty\n/src/broken\n", buf.String())
}

func TestReporter_Verbose(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{ShowUnknown: true, Color: ColorNever})

	require.NoError(t, r.Report(sampleEntries()))

	expected := "/src/dirty\n" +
		"Changes to be committed:\n\tnew file:   a.go\n" +
		"\n" +
		"/src/broken\n" +
		"(status unavailable: status command timed out after 30s)\n" +
		"\n"
	assert.Equal(t, expected, buf.String())
	assert.NotContains(t, buf.String(), "/src/clean")
}

func TestReporter_ColorAlwaysKeepsStyling(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Color: ColorAlways})

	require.NoError(t, r.Report(sampleEntries()))

	out := buf.String()
	assert.Contains(t, out, "\x1b[32mnew file:")
	assert.Contains(t, out, "\x1b[1m")
	assert.Contains(t, repo.StripANSI(out), "/src/dirty\n")
}

func TestReporter_ColorAutoStripsForPlainWriter(t *testing.T) {
	t.Setenv("CLICOLOR_FORCE", "0")

	for _, mode := range []string{ColorAuto, ""} {
		var buf bytes.Buffer
		r := New(&buf, Options{ShowUnknown: true, Color: mode})

		require.NoError(t, r.Report(sampleEntries()))

		out := buf.String()
		assert.NotContains(t, out, "\x1b[", "mode %q", mode)
		assert.Contains(t, out, "Changes to be committed:\n\tnew file:   a.go\n", "mode %q", mode)
	}
}

func TestReporter_HideUnknown(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Quiet: true, ShowUnknown: false, Color: ColorNever})

	require.NoError(t, r.Report(sampleEntries()))
	assert.Equal(t, "/src/dirty\n", buf.String())
}

func TestReporter_NothingToReport(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{ShowUnknown: true})

	require.NoError(t, r.Report(sampleEntries()[:1]))
	assert.Empty(t, buf.String())
}

func TestReporter_MissingTrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Color: ColorNever})

	entries := []check.Entry{{
		Repo:    discovery.Repo{Path: "/src/x"},
		Result:  repo.Result{Succeeded: true, Stdout: "Untracked files:"},
		Verdict: repo.Dirty,
	}}
	require.NoError(t, r.Report(entries))
	assert.Equal(t, "/src/x\nUntracked files:\n\n", buf.String())
}

func TestReporter_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{JSON: true, ShowUnknown: true})

	require.NoError(t, r.Report(sampleEntries()))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)

	assert.Equal(t, "/src/dirty", decoded[0]["path"])
	assert.Equal(t, "dirty", decoded[0]["verdict"])
	assert.False(t, strings.Contains(decoded[0]["status"].(string), "\x1b"))

	assert.Equal(t, "unknown", decoded[1]["verdict"])
	assert.Equal(t, true, decoded[1]["timed_out"])
	assert.Equal(t, "status command timed out after 30s", decoded[1]["error"])
}

func TestReporter_JSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{JSON: true})

	require.NoError(t, r.Report(nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "4 repositories checked: 1 clean, 2 dirty, 1 unknown",
		Summary(check.Summary{Clean: 1, Dirty: 2, Unknown: 1}))
}
