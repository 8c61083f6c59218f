// Package repository fetches remote repositories for analysis and publishes
// SARIF results back to GitHub code scanning.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// ErrEmptyURL is returned when Clone is called without a repository URL.
var ErrEmptyURL = errors.New("repository URL is empty")

// Checkout is a shallow working copy of a remote repository.
type Checkout struct {
	Dir    string
	URL    string
	Owner  string
	Repo   string
	Ref    string // fully qualified, e.g. refs/heads/main
	Commit string
	logger *slog.Logger
}

// FullName returns owner/repo, or just the repo when the owner is unknown.
func (c *Checkout) FullName() string {
	if c.Owner == "" {
		return c.Repo
	}
	return c.Owner + "/" + c.Repo
}

// Cleanup removes the working copy.
func (c *Checkout) Cleanup() {
	if c == nil || c.Dir == "" {
		return
	}
	if err := os.RemoveAll(c.Dir); err != nil {
		c.logger.Warn("Failed to clean up clone directory", "path", c.Dir, "error", err)
	}
}

// CloneOptions controls a Clone.
type CloneOptions struct {
	// Branch is optional; the remote HEAD is used when empty.
	Branch string
	// Token authenticates HTTPS clones of private repositories.
	Token string
	// TempRoot is the parent of the clone directory; os.TempDir() when empty.
	TempRoot string
}

// Cloner makes shallow clones with go-git.
type Cloner struct {
	logger *slog.Logger
}

// NewCloner creates a Cloner. A nil logger uses slog.Default().
func NewCloner(logger *slog.Logger) *Cloner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cloner{logger: logger}
}

// Clone makes a depth-1 clone of repoURL into a fresh temporary directory.
// The caller owns the returned Checkout and must call Cleanup. On error no
// directory is left behind.
func (c *Cloner) Clone(ctx context.Context, repoURL string, opts CloneOptions) (*Checkout, error) {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return nil, ErrEmptyURL
	}

	dir, err := os.MkdirTemp(opts.TempRoot, "pct-clone-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	cloneOpts := &gogit.CloneOptions{
		URL:   repoURL,
		Depth: 1,
		Tags:  gogit.NoTags,
	}
	if opts.Token != "" {
		cloneOpts.Auth = &githttp.BasicAuth{
			Username: "pct",
			Password: opts.Token,
		}
	}
	if opts.Branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
		cloneOpts.SingleBranch = true
	}

	c.logger.Debug("Cloning repository",
		"url", redactURL(repoURL),
		"branch", opts.Branch,
		"depth", 1,
		"dest", dir,
	)

	repo, err := gogit.PlainCloneContext(ctx, dir, false, cloneOpts)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning %s: %w", redactURL(repoURL), err)
	}

	head, err := repo.Head()
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	owner, name := ParseOwnerRepo(repoURL)
	co := &Checkout{
		Dir:    dir,
		URL:    repoURL,
		Owner:  owner,
		Repo:   name,
		Ref:    head.Name().String(),
		Commit: head.Hash().String(),
		logger: c.logger,
	}
	c.logger.Info("Repository cloned", "repo", co.FullName(), "ref", co.Ref, "commit", shortSHA(co.Commit))
	return co, nil
}

// ParseOwnerRepo extracts the owner and repository name from a git URL.
// Supports HTTPS (https://github.com/owner/repo.git) and SCP-style SSH
// (git@github.com:owner/repo.git).
func ParseOwnerRepo(repoURL string) (owner, repo string) {
	u := strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(repoURL), "/"), ".git")

	if _, rest, ok := strings.Cut(u, "://"); ok {
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) >= 3:
			return parts[len(parts)-2], parts[len(parts)-1]
		case len(parts) == 2:
			return "", parts[1]
		default:
			return "", rest
		}
	}

	if _, path, ok := strings.Cut(u, ":"); ok {
		if o, r, ok := strings.Cut(path, "/"); ok {
			return o, r
		}
		return "", path
	}

	return "", u
}

// redactURL strips any userinfo so tokens embedded in URLs never reach logs.
func redactURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		if slash := strings.Index(rest, "/"); slash < 0 || at < slash {
			rest = rest[at+1:]
		}
	}
	return scheme + "://" + rest
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// Head reports the checked-out commit and ref of the git work tree that
// contains dir. A detached HEAD yields ref "HEAD".
func Head(dir string) (commit, ref string, err error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", "", fmt.Errorf("opening git repository at %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return head.Hash().String(), head.Name().String(), nil
}
