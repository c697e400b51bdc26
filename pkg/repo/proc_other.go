//go:build !unix

package repo

import "os/exec"

// configureProcess keeps exec's default of killing the process on cancel.
func configureProcess(cmd *exec.Cmd) {}
