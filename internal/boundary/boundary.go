// Package boundary decides whether a file mutation may proceed. Edits
// inside an issue workspace are allowed; edits inside the shared checkout
// are refused with a hint to start work first; anything else is not our
// business and is allowed.
package boundary

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/berth/internal/ctxutil"
	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
)

// WorkspaceSource lists the worktrees of the repository at basePath.
// *workspace.Manager satisfies it.
type WorkspaceSource interface {
	List(ctx context.Context, basePath string) ([]*domain.Workspace, error)
}

// Decision is the outcome of a Check.
type Decision struct {
	Allowed bool `json:"allowed"`
	// Reason explains a denial and names the remedy.
	Reason string `json:"reason,omitempty"`
	// Path is the absolute path that was checked.
	Path string `json:"path"`
	// Workspace is the workspace the path falls in, when it does.
	Workspace string `json:"workspace,omitempty"`
}

// Policy is the edit-boundary rule set for one shared checkout.
type Policy struct {
	// SharedRoot is the primary checkout that must not be edited directly.
	SharedRoot string
	// Workspaces supplies the registered workspaces.
	Workspaces WorkspaceSource
	// BaseDir resolves relative paths. Empty means the process working directory.
	BaseDir string
	// Logger receives debug output; the zero value discards it.
	Logger zerolog.Logger
}

// Check decides whether path may be edited. Symlinks are not followed;
// paths are compared after cleaning only.
func (p *Policy) Check(ctx context.Context, path string) (Decision, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return Decision{}, err
	}

	target, err := p.absolute(path)
	if err != nil {
		return Decision{}, err
	}
	decision := Decision{Allowed: true, Path: target}

	if p.SharedRoot == "" {
		return decision, nil
	}
	root, err := filepath.Abs(p.SharedRoot)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve shared root: %w", err)
	}

	if p.Workspaces != nil {
		workspaces, listErr := p.Workspaces.List(ctx, root)
		if listErr != nil {
			// Fall through: without a workspace list the shared root is still protected.
			p.Logger.Debug().Err(listErr).Str("shared_root", root).Msg("workspace list unavailable")
		}
		for _, ws := range workspaces {
			if ws.Primary || ws.Path == "" {
				continue
			}
			if Within(ws.Path, target) {
				decision.Workspace = filepath.Clean(ws.Path)
				return decision, nil
			}
		}
	}

	if Within(root, target) {
		decision.Allowed = false
		decision.Reason = fmt.Sprintf(
			"%s is inside the shared checkout %s; run 'berth start <ISSUE-KEY>' and edit inside the issue workspace instead",
			target, root)
	}
	return decision, nil
}

func (p *Policy) absolute(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path: %w", berrors.ErrEmptyValue)
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	// A relative BaseDir is itself resolved against the working directory.
	abs, err := filepath.Abs(filepath.Join(p.BaseDir, path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return abs, nil
}

// Within reports whether child is parent or lies beneath it. /repo2 is not
// within /repo.
func Within(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
