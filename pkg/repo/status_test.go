package repo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gitRun runs git in dir with a fixed identity so commits work on bare CI hosts.
func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	full := append([]string{"-c", "user.email=test@example.com", "-c", "user.name=Test User", "-c", "commit.gpgsign=false"}, args...)
	cmd := exec.Command("git", full...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func TestExecProvider_Git(t *testing.T) {
	// Skip if git is not available
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	repoDir := t.TempDir()
	gitRun(t, repoDir, "init")
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "file1.go"), []byte("package main\n"), 0644))
	gitRun(t, repoDir, "add", "file1.go")
	gitRun(t, repoDir, "commit", "-m", "Initial commit")

	provider, err := NewExecProvider(DefaultCommand, 10*time.Second)
	require.NoError(t, err)
	classifier := DefaultClassifier()

	t.Run("clean repository", func(t *testing.T) {
		result := provider.Query(context.Background(), repoDir)
		require.True(t, result.Succeeded, result.Reason())
		assert.Equal(t, 0, result.ExitCode)
		assert.Equal(t, Clean, classifier.Classify(result))
	})

	t.Run("staged changes", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(repoDir, "file2.go"), []byte("package main\n"), 0644))
		gitRun(t, repoDir, "add", "file2.go")

		result := provider.Query(context.Background(), repoDir)
		require.True(t, result.Succeeded, result.Reason())
		assert.Contains(t, StripANSI(result.Stdout), "file2.go")
		assert.Equal(t, Dirty, classifier.Classify(result))
	})

	t.Run("not a repository", func(t *testing.T) {
		// GIT_CEILING_DIRECTORIES stops git from finding a repository above the temp dir.
		plain := t.TempDir()
		p := *provider
		p.Env = append(append([]string(nil), provider.Env...), "GIT_CEILING_DIRECTORIES="+filepath.Dir(plain))

		result := p.Query(context.Background(), plain)
		assert.False(t, result.Succeeded)
		assert.NotZero(t, result.ExitCode)
		assert.Nil(t, result.Err)
		assert.Equal(t, Unknown, classifier.Classify(result))
	})
}

func TestExecProvider_MissingExecutable(t *testing.T) {
	provider, err := NewExecProvider([]string{"gitcheck-no-such-binary-xyz", "status"}, time.Second)
	require.NoError(t, err)

	result := provider.Query(context.Background(), t.TempDir())
	assert.False(t, result.Succeeded)
	assert.Equal(t, -1, result.ExitCode)
	assert.Error(t, result.Err)
	assert.False(t, result.TimedOut)
}

func TestExecProvider_NonZeroExit(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	provider, err := NewExecProvider([]string{"sh", "-c", "echo partial; echo broken >&2; exit 3"}, time.Second)
	require.NoError(t, err)

	result := provider.Query(context.Background(), t.TempDir())
	assert.False(t, result.Succeeded)
	assert.Equal(t, 3, result.ExitCode)
	assert.Nil(t, result.Err)
	assert.Equal(t, "partial\n", result.Stdout)
	assert.Equal(t, "exit status 3: broken", result.Reason())
}

func TestExecProvider_Timeout(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	provider, err := NewExecProvider([]string{"sh", "-c", "sleep 30"}, 200*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	result := provider.Query(context.Background(), t.TempDir())

	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, result.TimedOut)
	assert.False(t, result.Succeeded)
	assert.ErrorIs(t, result.Err, ErrTimeout)
	assert.Equal(t, Unknown, DefaultClassifier().Classify(result))
}

func TestExecProvider_Cancelled(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	provider, err := NewExecProvider([]string{"sh", "-c", "sleep 30"}, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	result := provider.Query(ctx, t.TempDir())
	assert.False(t, result.Succeeded)
	assert.False(t, result.TimedOut)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestNewExecProvider(t *testing.T) {
	_, err := NewExecProvider(nil, time.Second)
	assert.ErrorIs(t, err, ErrEmptyCommand)

	p, err := NewExecProvider(DefaultCommand, 0)
	require.NoError(t, err)
	assert.Equal(t, "git", p.Command)
	assert.Equal(t, []string{"-c", "color.status=always", "status"}, p.Args)
	assert.Equal(t, DefaultTimeout, p.Timeout)
}

func TestProviderFunc(t *testing.T) {
	var got string
	p := ProviderFunc(func(ctx context.Context, dir string) Result {
		got = dir
		return Result{Succeeded: true}
	})

	assert.True(t, p.Query(context.Background(), "/x").Succeeded)
	assert.Equal(t, "/x", got)
}
