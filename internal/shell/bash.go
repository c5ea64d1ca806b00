// Package shell runs bash commands for the workflow agent.
package shell

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
)

// Result is the outcome of one command.
// Error is set only when the command could not be started at all.
type Result struct {
	Success    bool   `json:"success"`
	ReturnCode int    `json:"return_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	Command    string `json:"command"`
	Error      string `json:"error,omitempty"`
}

// Bash executes commands through "bash -c".
type Bash struct {
	workDir string
}

// NewBash creates a runner. An empty workDir uses the process working directory.
func NewBash(workDir string) *Bash {
	return &Bash{workDir: workDir}
}

// WorkDir returns the configured working directory.
func (b *Bash) WorkDir() string { return b.workDir }

// Execute runs command and captures its output. A non-zero exit is reported
// through Success and ReturnCode, not as an error.
func (b *Bash) Execute(ctx context.Context, command string) Result {
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = b.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Command: command,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Success = true
	case errors.As(err, &exitErr):
		res.ReturnCode = exitErr.ExitCode()
	default:
		res.ReturnCode = -1
		res.Error = err.Error()
		slog.Debug("bash command failed to start", "command", command, "error", err)
	}
	return res
}

// Available reports whether name resolves on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
