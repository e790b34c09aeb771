package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Invocation is one request to a backend.
type Invocation struct {
	Input         string // source drawing
	OutputDir     string // directory that receives the interchange file
	TargetVersion string // ACAD2018 style release name
	Binary        string // executable resolved by Probe; the backend default when empty
}

// Outcome reports what a backend produced. Output is empty when nothing was found.
type Outcome struct {
	Output   string
	ExitCode int
	Stderr   string
	Warnings []string
}

// Backend is one external conversion tool. Implementations own their argument
// shape and where they leave the output file. A backend is shared by every
// job, so Probe and Invoke must not mutate it.
type Backend interface {
	Name() string
	Priority() int
	// Probe reports the resolved binary and whether it can be executed.
	Probe() (string, bool)
	Invoke(ctx context.Context, inv Invocation) (Outcome, error)
}

// RunResult is the exit status and captured output of a process.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes external commands. A non-zero exit is reported in RunResult,
// not as an error; errors mean the process could not be started or was killed.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (RunResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Converters may spawn helpers that hold the pipes open after the kill.
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	res := RunResult{Stdout: stdout.String(), Stderr: strings.TrimSpace(stderr.String())}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("start %s: %w", name, err)
	}
	return res, nil
}

var lookPath = exec.LookPath

// probeBinary prefers an explicitly configured path and falls back to PATH lookup.
func probeBinary(path, binary string) (string, bool) {
	if path != "" {
		if err := executable(path); err == nil {
			return path, true
		}
	}
	if binary == "" {
		return "", false
	}
	resolved, err := lookPath(binary)
	if err != nil {
		return "", false
	}
	return resolved, true
}

func executable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() || fi.Mode().Perm()&0o111 == 0 {
		return errNotExecutable
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// removeStale deletes a leftover output so a failed run cannot be mistaken for a success.
func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale output: %w", err)
	}
	return nil
}

func nonEmptyFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}

func exitError(name string, res RunResult) error {
	if res.Stderr != "" {
		return fmt.Errorf("%s exited with status %d: %s", name, res.ExitCode, res.Stderr)
	}
	return fmt.Errorf("%s exited with status %d", name, res.ExitCode)
}
