package livecheck

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcnksm/go-latest"

	"github.com/Zixiao-System/leizi-formula/internal/formula"
)

type fakeTags struct {
	tags  []string
	err   error
	delay time.Duration
}

func (f *fakeTags) Validate() error { return nil }

func (f *fakeTags) Fetch() (*latest.FetchResponse, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	resp := &latest.FetchResponse{}
	for _, tag := range f.tags {
		v, err := version.NewVersion(tag)
		if err != nil {
			resp.Malformeds = append(resp.Malformeds, tag)
			continue
		}
		resp.Versions = append(resp.Versions, v)
	}
	return resp, nil
}

func sourceOf(src latest.Source, gotRepo *string) SourceFunc {
	return func(owner, repo string) latest.Source {
		if gotRepo != nil {
			*gotRepo = owner + "/" + repo
		}
		return src
	}
}

func TestChecker_Outdated(t *testing.T) {
	var repo string
	c := NewChecker(sourceOf(&fakeTags{tags: []string{"v1.3.0", "v1.4.0", "v1.5.1"}}, &repo), nil)

	res, err := c.Check(context.Background(), formula.Default())
	require.NoError(t, err)

	assert.Equal(t, "Zixiao-System/leizi-shell", repo)
	assert.True(t, res.Outdated)
	assert.Equal(t, "1.4.0", res.Current)
	assert.Equal(t, "1.5.1", res.Latest)
	assert.Equal(t, "leizi", res.Formula)
}

func TestChecker_UpToDate(t *testing.T) {
	c := NewChecker(sourceOf(&fakeTags{tags: []string{"v1.3.0", "v1.4.0"}}, nil), nil)

	res, err := c.Check(context.Background(), formula.Default())
	require.NoError(t, err)
	assert.False(t, res.Outdated)
}

func TestChecker_FetchError(t *testing.T) {
	c := NewChecker(sourceOf(&fakeTags{err: errors.New("rate limited")}, nil), nil)

	_, err := c.Check(context.Background(), formula.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Zixiao-System/leizi-shell")
}

func TestChecker_ContextDone(t *testing.T) {
	c := NewChecker(sourceOf(&fakeTags{tags: []string{"v2.0.0"}, delay: 2 * time.Second}, nil), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Check(ctx, formula.Default())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRepository(t *testing.T) {
	tests := []struct {
		name      string
		f         formula.Formula
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{
			name:      "homepage",
			f:         formula.Formula{Homepage: "https://github.com/acme/shell"},
			wantOwner: "acme",
			wantRepo:  "shell",
		},
		{
			name:      "release url when homepage is elsewhere",
			f:         formula.Formula{Homepage: "https://leizi.dev", URL: "https://github.com/acme/shell/archive/v1.0.0.tar.gz"},
			wantOwner: "acme",
			wantRepo:  "shell",
		},
		{
			name:      "head url strips .git",
			f:         formula.Formula{Head: formula.Head{URL: "https://github.com/acme/shell.git"}},
			wantOwner: "acme",
			wantRepo:  "shell",
		},
		{
			name:    "no github reference",
			f:       formula.Formula{Homepage: "https://leizi.dev", URL: "https://mirror.example.com/leizi.tar.gz"},
			wantErr: true,
		},
		{
			name:    "owner only",
			f:       formula.Formula{Homepage: "https://github.com/acme"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := Repository(&tt.f)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoRepository)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}
