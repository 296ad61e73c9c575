package source

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Cloner checks out a development branch into a directory and returns the
// checked-out commit hash.
type Cloner interface {
	Clone(ctx context.Context, url, branch, dir string) (string, error)
}

// GitCloner implements Cloner with go-git, so no git binary is required
// for remote URLs.
type GitCloner struct {
	// Depth limits history; zero means a full clone.
	Depth int
}

// NewGitCloner creates a cloner that makes shallow single-branch clones.
func NewGitCloner() *GitCloner {
	return &GitCloner{Depth: 1}
}

// Clone clones branch of url into dir.
func (c *GitCloner) Clone(ctx context.Context, url, branch, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	opts := &gogit.CloneOptions{
		URL:          url,
		SingleBranch: true,
		Depth:        c.Depth,
		Tags:         gogit.NoTags,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}

	repo, err := gogit.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", fmt.Errorf("branch %q not found: %w", branch, err)
		}
		return "", fmt.Errorf("clone repository: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}
