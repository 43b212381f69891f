// Package git finds the repository a flowpad project lives in, so a linked
// worktree can reuse the main checkout's configuration.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const commandTimeout = 5 * time.Second

// Repo describes the checkout containing a directory.
type Repo struct {
	Root         string // top of this checkout (git rev-parse --show-toplevel)
	CommonDir    string // shared .git directory, absolute
	MainWorktree string // checkout that owns CommonDir
	IsWorktree   bool   // Root is a linked worktree, not the main checkout
}

// Detect inspects the checkout containing path. It fails when git is not
// installed or path is not inside a repository.
func Detect(ctx context.Context, path string) (*Repo, error) {
	root, err := revParse(ctx, path, "--show-toplevel")
	if err != nil {
		return nil, err
	}
	commonDir, err := revParse(ctx, path, "--git-common-dir")
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(commonDir) {
		commonDir = filepath.Join(root, commonDir)
	}
	commonDir, err = filepath.Abs(commonDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve git common dir: %w", err)
	}
	commonDir = filepath.Clean(commonDir)

	return &Repo{
		Root:         root,
		CommonDir:    commonDir,
		MainWorktree: filepath.Dir(commonDir),
		IsWorktree:   commonDir != filepath.Join(root, ".git"),
	}, nil
}

// IsRepo reports whether path is inside a git repository. Any failure,
// including git not being installed, counts as no.
func IsRepo(ctx context.Context, path string) bool {
	_, err := revParse(ctx, path, "--git-dir")
	return err == nil
}

func revParse(ctx context.Context, path, flag string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", "-C", path, "rev-parse", flag).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("not a git repository: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("failed to run git (is it installed?): %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
