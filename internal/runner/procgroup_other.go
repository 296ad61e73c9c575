//go:build !unix

package runner

import "os/exec"

// configureProcessGroup is a no-op where process groups are unavailable;
// exec.CommandContext still kills the direct child on cancellation.
func configureProcessGroup(cmd *exec.Cmd) {}
