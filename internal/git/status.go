package git

import (
	"strings"
)

// Status represents the state of a git working tree.
type Status struct {
	Staged    []FileChange // Files staged for commit
	Unstaged  []FileChange // Modified but not staged
	Untracked []string     // Untracked files
	Branch    string       // Current branch name
}

// FileChange represents a changed file in the working tree.
type FileChange struct {
	Path    string     // File path relative to repo root
	Status  ChangeType // Type of change (Added, Modified, Deleted, etc.)
	OldPath string     // For renamed files, the original path
}

// ChangeType represents the type of change for a file.
type ChangeType string

// Change type constants for git status.
const (
	ChangeAdded    ChangeType = "A"
	ChangeModified ChangeType = "M"
	ChangeDeleted  ChangeType = "D"
	ChangeRenamed  ChangeType = "R"
	ChangeCopied   ChangeType = "C"
	ChangeUnmerged ChangeType = "U"
)

// IsClean returns true if the working tree has no changes.
func (s *Status) IsClean() bool {
	return s.UncommittedCount() == 0
}

// UncommittedCount returns the number of distinct paths that are staged,
// modified, or untracked. A file both staged and modified counts once.
func (s *Status) UncommittedCount() int {
	seen := make(map[string]struct{}, len(s.Staged)+len(s.Unstaged)+len(s.Untracked))
	for _, c := range s.Staged {
		seen[c.Path] = struct{}{}
	}
	for _, c := range s.Unstaged {
		seen[c.Path] = struct{}{}
	}
	for _, p := range s.Untracked {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// StatusArgs are the git arguments whose output ParseStatus understands.
func StatusArgs() []string {
	return []string{"status", "--porcelain", "-uall", "--branch"}
}

// ParseStatus parses `git status --porcelain -uall --branch` output.
func ParseStatus(output string) *Status {
	status := &Status{
		Staged:    []FileChange{},
		Unstaged:  []FileChange{},
		Untracked: []string{},
	}

	for _, line := range strings.Split(output, "\n") {
		if len(line) < 2 {
			continue
		}

		if strings.HasPrefix(line, "## ") {
			status.Branch = parseBranchLine(line)
			continue
		}
		if len(line) < 4 {
			continue
		}

		// XY PATH or XY ORIG -> PATH
		indexStatus := line[0]
		workTreeStatus := line[1]
		path := strings.TrimSpace(line[3:])

		var oldPath string
		if before, after, found := strings.Cut(path, " -> "); found {
			oldPath = before
			path = after
		}

		if indexStatus == '?' && workTreeStatus == '?' {
			status.Untracked = append(status.Untracked, path)
			continue
		}
		if indexStatus == '!' {
			continue
		}

		if indexStatus != ' ' {
			status.Staged = append(status.Staged, FileChange{
				Path:    path,
				Status:  ChangeType(string(indexStatus)),
				OldPath: oldPath,
			})
		}
		if workTreeStatus != ' ' {
			status.Unstaged = append(status.Unstaged, FileChange{
				Path:    path,
				Status:  ChangeType(string(workTreeStatus)),
				OldPath: oldPath,
			})
		}
	}

	return status
}

// parseBranchLine extracts the local branch from "## branch...origin/branch [ahead 1]".
// Returns "" for a detached HEAD.
func parseBranchLine(line string) string {
	line = strings.TrimPrefix(line, "## ")
	if strings.HasPrefix(line, "HEAD (no branch)") {
		return ""
	}
	// "No commits yet on main"
	if rest, ok := strings.CutPrefix(line, "No commits yet on "); ok {
		return rest
	}
	branch, _, _ := strings.Cut(line, "...")
	branch, _, _ = strings.Cut(branch, " ")
	return branch
}
