package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/sirupsen/logrus"
)

// GitOptions configures a GitStore.
type GitOptions struct {
	// URL is the clone URL of the remote (a gist or any git remote).
	URL string
	// Token is injected into https URLs for authentication.
	Token string
	// Dir is the working clone. A temporary directory is used when empty.
	Dir         string
	AuthorName  string
	AuthorEmail string
}

// GitStore keeps documents as files in a clone of a git remote. Commit
// pushes; a rejected push is retried once after rebasing onto the remote.
type GitStore struct {
	opts    GitOptions
	dir     string
	tempDir bool
	fresh   bool
	staged  map[string]bool
	log     *logrus.Entry
}

// OpenGit clones the remote, or reuses an existing clone in opts.Dir.
func OpenGit(ctx context.Context, opts GitOptions) (*GitStore, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: registry url is required for the git backend", models.ErrValidation)
	}

	s := &GitStore{
		opts:   opts,
		dir:    opts.Dir,
		staged: make(map[string]bool),
		log:    logger.Component("gitstore"),
	}
	if s.dir == "" {
		dir, err := os.MkdirTemp("", "sentinel-registry-")
		if err != nil {
			return nil, fmt.Errorf("failed to create clone directory: %w", err)
		}
		s.dir = dir
		s.tempDir = true
	}

	if s.isCloned() {
		if _, err := s.run(ctx, "remote", "set-url", "origin", s.authURL()); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := s.clone(ctx); err != nil {
		s.Close()
		return nil, err
	}
	s.fresh = true
	return s, nil
}

// Dir returns the working clone directory.
func (s *GitStore) Dir() string {
	return s.dir
}

func (s *GitStore) isCloned() bool {
	info, err := os.Stat(filepath.Join(s.dir, ".git"))
	return err == nil && info.IsDir()
}

func (s *GitStore) authURL() string {
	if s.opts.Token == "" || !strings.HasPrefix(s.opts.URL, "https://") {
		return s.opts.URL
	}
	return strings.Replace(s.opts.URL, "https://", "https://"+s.opts.Token+"@", 1)
}

func (s *GitStore) clone(ctx context.Context) error {
	// git clone refuses a non-empty target; never clear one we did not create.
	entries, err := os.ReadDir(s.dir)
	switch {
	case err == nil && len(entries) > 0:
		return fmt.Errorf("%w: registry dir %s exists and is not a git clone", models.ErrValidation, s.dir)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("failed to read clone directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.dir), 0755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", "clone", "--quiet", s.authURL(), s.dir)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: failed to clone registry: %s", models.ErrTransient, s.redact(stderr.String()))
	}
	s.log.WithField("dir", s.dir).Info("Cloned registry")
	return nil
}

// run executes git in the clone with the bot identity and returns stdout.
func (s *GitStore) run(ctx context.Context, args ...string) (string, error) {
	full := []string{"-C", s.dir}
	if s.opts.AuthorName != "" {
		full = append(full, "-c", "user.name="+s.opts.AuthorName)
	}
	if s.opts.AuthorEmail != "" {
		full = append(full, "-c", "user.email="+s.opts.AuthorEmail)
	}
	full = append(full, args...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &gitError{
			args:   s.redact(strings.Join(args, " ")),
			err:    err,
			stderr: s.redact(strings.TrimSpace(stderr.String())),
		}
	}
	return stdout.String(), nil
}

type gitError struct {
	args   string
	err    error
	stderr string
}

func (e *gitError) Error() string {
	return fmt.Sprintf("git %s: %v (stderr: %s)", e.args, e.err, e.stderr)
}

func (e *gitError) Unwrap() error { return e.err }

// exitCode returns the git exit status, or -1 when git did not run.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func (s *GitStore) redact(text string) string {
	if s.opts.Token == "" {
		return text
	}
	return strings.ReplaceAll(text, s.opts.Token, "***")
}

// Refresh pulls the remote. A clone made by OpenGit is already current.
func (s *GitStore) Refresh(ctx context.Context) error {
	if s.fresh {
		s.fresh = false
		return nil
	}
	if len(s.staged) > 0 {
		// Rebasing would fail on uncommitted staged files.
		return nil
	}
	if _, err := s.run(ctx, "pull", "--rebase", "--quiet"); err != nil {
		return fmt.Errorf("%w: failed to pull registry: %v", models.ErrTransient, err)
	}
	return nil
}

func (s *GitStore) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list registry: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && !strings.HasPrefix(entry.Name(), ".") {
			keys = append(keys, entry.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *GitStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("document %s: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (s *GitStore) Write(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, key), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	s.staged[key] = true
	return nil
}

// Commit adds the staged files, commits once and pushes.
func (s *GitStore) Commit(ctx context.Context, message string) (bool, error) {
	if len(s.staged) == 0 {
		return false, nil
	}
	keys := make([]string, 0, len(s.staged))
	for k := range s.staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if _, err := s.run(ctx, append([]string{"add", "--"}, keys...)...); err != nil {
		return false, err
	}

	// diff --cached --quiet exits 1 when something is staged.
	_, err := s.run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		s.staged = make(map[string]bool)
		s.log.WithField("message", message).Debug("Nothing changed, skipping commit")
		return false, nil
	}
	if exitCode(err) != 1 {
		return false, err
	}

	if _, err := s.run(ctx, "commit", "--quiet", "-m", message); err != nil {
		return false, err
	}
	s.staged = make(map[string]bool)

	if err := s.push(ctx); err != nil {
		return false, err
	}
	s.log.WithFields(logrus.Fields{"message": message, "files": len(keys)}).Info("Committed registry changes")
	return true, nil
}

func (s *GitStore) push(ctx context.Context) error {
	_, err := s.run(ctx, "push", "--quiet", "origin", "HEAD")
	if err == nil {
		return nil
	}
	s.log.WithError(err).Warn("Push rejected, rebasing onto remote")

	if _, rebaseErr := s.run(ctx, "pull", "--rebase", "--quiet"); rebaseErr != nil {
		if _, abortErr := s.run(ctx, "rebase", "--abort"); abortErr != nil {
			s.log.WithError(abortErr).Warn("Failed to abort rebase")
		}
		// Drop the local commit so the clone matches the remote again.
		if _, resetErr := s.run(ctx, "reset", "--hard", "--quiet", "@{upstream}"); resetErr != nil {
			s.log.WithError(resetErr).Warn("Failed to reset clone")
		}
		return fmt.Errorf("%w: registry changed concurrently: %v", models.ErrConflict, rebaseErr)
	}

	if _, err := s.run(ctx, "push", "--quiet", "origin", "HEAD"); err != nil {
		return fmt.Errorf("%w: failed to push registry: %v", models.ErrTransient, err)
	}
	return nil
}

// Close removes a temporary clone.
func (s *GitStore) Close() error {
	if s.tempDir {
		return os.RemoveAll(s.dir)
	}
	return nil
}
