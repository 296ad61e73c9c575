// Package livecheck reports whether upstream has tagged a release newer
// than the one a formula packages.
package livecheck

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tcnksm/go-latest"

	"github.com/Zixiao-System/leizi-formula/internal/config"
	"github.com/Zixiao-System/leizi-formula/internal/formula"
)

// ErrNoRepository is returned when no GitHub repository can be derived from
// the formula.
var ErrNoRepository = errors.New("formula does not reference a GitHub repository")

// Result is the outcome of a livecheck.
type Result struct {
	Formula    string `json:"formula"`
	Current    string `json:"current"`
	Latest     string `json:"latest"`
	Outdated   bool   `json:"outdated"`
	Repository string `json:"repository"`
}

// SourceFunc builds the tag source for a repository.
type SourceFunc func(owner, repo string) latest.Source

// GitHubTags lists the repository's tags through the GitHub API.
func GitHubTags(owner, repo string) latest.Source {
	return &latest.GithubTag{Owner: owner, Repository: repo}
}

// Checker compares formula versions with upstream tags.
type Checker struct {
	source SourceFunc
	logger config.Logger
}

// NewChecker creates a checker. A nil source uses GitHubTags.
func NewChecker(source SourceFunc, logger config.Logger) *Checker {
	if source == nil {
		source = GitHubTags
	}
	return &Checker{source: source, logger: config.OrNop(logger)}
}

// Check looks up f's upstream tags. The lookup itself cannot be cancelled;
// ctx only bounds how long Check waits for it.
func (c *Checker) Check(ctx context.Context, f *formula.Formula) (*Result, error) {
	owner, repo, err := Repository(f)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		res *latest.CheckResponse
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := latest.Check(c.source(owner, repo), f.Version)
		done <- outcome{res, err}
	}()

	var out outcome
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out = <-done:
	}
	if out.err != nil {
		return nil, fmt.Errorf("check %s/%s tags: %w", owner, repo, out.err)
	}

	c.logger.Debug("livecheck", "repo", owner+"/"+repo, "current", f.Version, "latest", out.res.Current)
	return &Result{
		Formula:    f.Name,
		Current:    f.Version,
		Latest:     out.res.Current,
		Outdated:   out.res.Outdated,
		Repository: owner + "/" + repo,
	}, nil
}

// Repository derives the GitHub owner and repository from the formula's
// homepage, release URL or head URL, in that order.
func Repository(f *formula.Formula) (owner, repo string, err error) {
	for _, raw := range []string{f.Homepage, f.URL, f.Head.URL} {
		if owner, repo, ok := parseGitHub(raw); ok {
			return owner, repo, nil
		}
	}
	return "", "", ErrNoRepository
}

func parseGitHub(raw string) (owner, repo string, ok bool) {
	if raw == "" {
		return "", "", false
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Host, "github.com") {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
