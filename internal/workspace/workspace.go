package workspace

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/boqbuilder/internal/logfields"
)

const (
	inDir  = "in"
	outDir = "out"
	tmpDir = "tmp"
)

// ErrInvalidJobID is returned for IDs that would escape the base directory.
var ErrInvalidJobID = errors.New("invalid job id")

// Manager creates and sweeps job workspaces below one base directory.
type Manager struct {
	baseDir string
}

// NewManager returns a manager rooted at baseDir (os.TempDir when empty).
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "boqbuilder")
	}
	return &Manager{baseDir: baseDir}
}

// BaseDir returns the root holding all job directories.
func (m *Manager) BaseDir() string { return m.baseDir }

// Job is one job's directory tree.
type Job struct {
	ID   string
	Root string
	In   string
	Out  string
	Tmp  string
}

// Lookup returns the paths for jobID without touching the filesystem.
func (m *Manager) Lookup(jobID string) (*Job, error) {
	if jobID == "" || jobID == "." || jobID == ".." || strings.ContainsAny(jobID, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	root := filepath.Join(m.baseDir, jobID)
	return &Job{
		ID:   jobID,
		Root: root,
		In:   filepath.Join(root, inDir),
		Out:  filepath.Join(root, outDir),
		Tmp:  filepath.Join(root, tmpDir),
	}, nil
}

// Create ensures the job's directories exist. Calling it again is a no-op.
func (m *Manager) Create(jobID string) (*Job, error) {
	j, err := m.Lookup(jobID)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{j.In, j.Out, j.Tmp} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create job directory: %w", err)
		}
	}
	slog.Debug("Job workspace ready", logfields.JobID(jobID), logfields.Path(j.Root))
	return j, nil
}

// Exists reports whether the job's root directory is present.
func (m *Manager) Exists(jobID string) bool {
	j, err := m.Lookup(jobID)
	if err != nil {
		return false
	}
	st, err := os.Stat(j.Root)
	return err == nil && st.IsDir()
}

// Artifact returns the path of a named file in the output directory.
func (j *Job) Artifact(name string) string {
	return filepath.Join(j.Out, name)
}

// Stage places src inside the job's input directory and returns the staged path.
// A file already inside In is returned unchanged.
func (j *Job) Stage(src string) (string, error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}
	in, err := filepath.Abs(j.In)
	if err != nil {
		return "", err
	}
	if filepath.Dir(abs) == in {
		return abs, nil
	}

	dst := filepath.Join(j.In, filepath.Base(src))
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Sweep removes job directories whose modification time is older than
// retention relative to now, returning the removed job IDs.
func (m *Manager) Sweep(retention time.Duration, now time.Time) ([]string, error) {
	if retention <= 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	cutoff := now.Add(-retention)
	var removed []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(m.baseDir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Failed to remove expired workspace", logfields.Path(path), logfields.Error(err))
			continue
		}
		removed = append(removed, e.Name())
	}
	if len(removed) > 0 {
		slog.Info("Swept expired workspaces", logfields.Count(len(removed)))
	}
	return removed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("failed to stage input: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to stage input: %w", err)
	}
	return out.Close()
}
