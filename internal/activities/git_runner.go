// Package activities implements the side-effecting steps behind the
// Hierarchy, Student-Template, Student-Repository, and Test-Execution
// workflows (spec §4.7-§4.10). Activities are ordinary functions; all
// blocking I/O against Git, the object store, and the entity store happens
// here, never inside a workflow.
package activities

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
)

// GitRunner is the seam between activities and the local `git` binary,
// following the teacher's own idiom of shelling out to the git CLI
// (exec.CommandContext) rather than a Go git library. Tests substitute a
// fake so they run without a real git binary or network access.
type GitRunner interface {
	// Clone clones remoteURL into dir. If ref is non-empty, checks it out
	// after cloning.
	Clone(ctx context.Context, remoteURL, dir, ref string) error
	// CloneOrInit clones remoteURL into dir; if the remote is empty or
	// unreachable, it initializes a fresh repo on branch main and attaches
	// remoteURL as "origin" instead (spec §4.8 step 2).
	CloneOrInit(ctx context.Context, remoteURL, dir string) error
	// ResolveCommit validates that ref names a real commit in dir's repo and
	// returns its full SHA.
	ResolveCommit(ctx context.Context, dir, ref string) (string, error)
	// ListTree lists every regular file under subpath at commit, relative to
	// subpath.
	ListTree(ctx context.Context, dir, commit, subpath string) ([]string, error)
	// ReadFileAt returns the bytes of relPath (relative to the repo root) as
	// it existed at commit.
	ReadFileAt(ctx context.Context, dir, commit, relPath string) ([]byte, error)
	// WriteFile writes data to relPath inside dir's working tree, creating
	// parent directories as needed.
	WriteFile(ctx context.Context, dir, relPath string, data []byte) error
	// CommitAll stages every change in dir's working tree and commits it
	// under the given identity. changed is false when there was nothing to
	// commit (spec §4.8 step 6: "If there are no changes, treat as success").
	CommitAll(ctx context.Context, dir, message, authorName, authorEmail string) (sha string, changed bool, err error)
	// Push pushes branch to "origin", force-pushing only when force is true.
	Push(ctx context.Context, dir, branch string, force bool) error
	// RemoveAll deletes dir and everything under it.
	RemoveAll(ctx context.Context, dir string) error
}

// CLIGitRunner implements GitRunner by invoking the `git` binary on PATH.
type CLIGitRunner struct{}

func NewCLIGitRunner() *CLIGitRunner {
	return &CLIGitRunner{}
}

func (r *CLIGitRunner) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("git %s: %w (output: %s)", strings.Join(args, " "), err, out.String())
	}
	return out.String(), nil
}

func (r *CLIGitRunner) Clone(ctx context.Context, remoteURL, dir, ref string) error {
	if _, err := r.run(ctx, "", "clone", remoteURL, dir); err != nil {
		return apperrors.Upstream("cloning "+remoteURL, err)
	}
	if ref != "" {
		if _, err := r.run(ctx, dir, "checkout", ref); err != nil {
			return apperrors.Upstream("checking out "+ref+" in "+remoteURL, err)
		}
	}
	return nil
}

func (r *CLIGitRunner) CloneOrInit(ctx context.Context, remoteURL, dir string) error {
	if _, err := r.run(ctx, "", "clone", remoteURL, dir); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Internal("creating work dir "+dir, err)
	}
	if _, err := r.run(ctx, dir, "init", "-b", "main"); err != nil {
		return apperrors.Upstream("initializing empty repo at "+dir, err)
	}
	if _, err := r.run(ctx, dir, "remote", "add", "origin", remoteURL); err != nil {
		return apperrors.Upstream("attaching remote "+remoteURL, err)
	}
	return nil
}

func (r *CLIGitRunner) ResolveCommit(ctx context.Context, dir, ref string) (string, error) {
	out, err := r.run(ctx, dir, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", apperrors.NotFound("resolving commit "+ref, err)
	}
	return strings.TrimSpace(out), nil
}

func (r *CLIGitRunner) ListTree(ctx context.Context, dir, commit, subpath string) ([]string, error) {
	args := []string{"ls-tree", "-r", "--name-only", commit}
	if subpath != "" {
		args = append(args, "--", subpath)
	}
	out, err := r.run(ctx, dir, args...)
	if err != nil {
		return nil, apperrors.Upstream("listing tree at "+commit, err)
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rel := line
		if subpath != "" {
			rel = strings.TrimPrefix(line, subpath+"/")
		}
		files = append(files, rel)
	}
	return files, nil
}

func (r *CLIGitRunner) ReadFileAt(ctx context.Context, dir, commit, relPath string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", "show", commit+":"+relPath)
	cmd.Dir = dir
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return nil, apperrors.Upstream("reading "+relPath+" at "+commit, fmt.Errorf("%w: %s", err, errOut.String()))
	}
	return out.Bytes(), nil
}

func (r *CLIGitRunner) WriteFile(ctx context.Context, dir, relPath string, data []byte) error {
	full := joinRepoPath(dir, relPath)
	if err := os.MkdirAll(parentDir(full), 0o755); err != nil {
		return apperrors.Internal("creating parent dir for "+relPath, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return apperrors.Internal("writing "+relPath, err)
	}
	return nil
}

func (r *CLIGitRunner) CommitAll(ctx context.Context, dir, message, authorName, authorEmail string) (string, bool, error) {
	if _, err := r.run(ctx, dir, "config", "user.name", authorName); err != nil {
		return "", false, apperrors.Internal("configuring commit author name", err)
	}
	if _, err := r.run(ctx, dir, "config", "user.email", authorEmail); err != nil {
		return "", false, apperrors.Internal("configuring commit author email", err)
	}
	if _, err := r.run(ctx, dir, "add", "-A"); err != nil {
		return "", false, apperrors.Upstream("staging changes", err)
	}

	status, err := r.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return "", false, apperrors.Upstream("checking working tree status", err)
	}
	if strings.TrimSpace(status) == "" {
		sha, err := r.run(ctx, dir, "rev-parse", "HEAD")
		if err != nil {
			return "", false, nil
		}
		return strings.TrimSpace(sha), false, nil
	}

	if _, err := r.run(ctx, dir, "commit", "-m", message); err != nil {
		return "", false, apperrors.Upstream("committing changes", err)
	}
	sha, err := r.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", false, apperrors.Upstream("reading new commit sha", err)
	}
	return strings.TrimSpace(sha), true, nil
}

func (r *CLIGitRunner) Push(ctx context.Context, dir, branch string, force bool) error {
	args := []string{"push", "origin", "HEAD:" + branch}
	if force {
		args = append(args, "--force")
	}
	if _, err := r.run(ctx, dir, args...); err != nil {
		return apperrors.Upstream("pushing "+branch, err)
	}
	return nil
}

func (r *CLIGitRunner) RemoveAll(ctx context.Context, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return apperrors.Internal("removing work dir "+dir, err)
	}
	return nil
}

func joinRepoPath(dir, relPath string) string {
	return dir + string(os.PathSeparator) + relPath
}

func parentDir(path string) string {
	idx := strings.LastIndexByte(path, os.PathSeparator)
	if idx < 0 {
		return "."
	}
	return path[:idx]
}
