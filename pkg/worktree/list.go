package worktree

import (
	"bufio"
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/agentkit/pkg/gitutil"
)

// Worktree is one entry of `git worktree list --porcelain`.
type Worktree struct {
	Path     string
	Head     string
	Branch   string // short name, empty when detached
	Bare     bool
	Detached bool
}

// List returns the worktrees of the repository containing dir.
func List(ctx context.Context, dir string) ([]Worktree, error) {
	out, err := gitutil.New(dir).Run(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list worktrees")
	}
	return parsePorcelain(out), nil
}

func parsePorcelain(out string) []Worktree {
	var (
		worktrees []Worktree
		current   *Worktree
	)
	flush := func() {
		if current != nil {
			worktrees = append(worktrees, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		key, value, _ := strings.Cut(line, " ")

		switch key {
		case "":
			flush()
		case "worktree":
			flush()
			current = &Worktree{Path: value}
		case "HEAD":
			if current != nil {
				current.Head = value
			}
		case "branch":
			if current != nil {
				current.Branch = strings.TrimPrefix(value, "refs/heads/")
			}
		case "bare":
			if current != nil {
				current.Bare = true
			}
		case "detached":
			if current != nil {
				current.Detached = true
			}
		}
	}
	flush()

	return worktrees
}
