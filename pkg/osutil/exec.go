// Package osutil holds small process helpers shared by the git and
// dependency-install runners.
package osutil

import (
	"context"
	"io"
	"os/exec"
)

// Command builds an exec.Cmd rooted at dir whose process tree is killed
// when ctx is cancelled.
func Command(ctx context.Context, dir, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	SetProcessGroup(cmd)
	SetProcessGroupKill(cmd)
	return cmd
}

// Stream runs the command with stdout and stderr attached to the given
// writers and waits for it to finish.
func Stream(ctx context.Context, dir string, stdout, stderr io.Writer, name string, args ...string) error {
	cmd := Command(ctx, dir, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// HasCommand reports whether name resolves on PATH.
func HasCommand(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
