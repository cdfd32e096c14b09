package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/session"
	"github.com/mrz1836/berth/internal/tui"
)

type submitOptions struct {
	commit       string
	forceCleanup bool
}

func addSubmitCommand(root *cobra.Command, flags *GlobalFlags) {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit <ISSUE-KEY>",
		Short: "End the active session and hand the issue in for review",
		Long: `End the issue's active work session, move the issue to review, and remove
its workspace. The branch is kept.

A workspace with uncommitted changes is kept unless --force-cleanup is
given; the submission itself still succeeds. Remove a kept workspace later
with 'berth workspace cleanup <ISSUE-KEY>'.

Examples:
  berth submit DEMO-1
  berth submit DEMO-1 --commit 3f2a9c1
  berth submit DEMO-1 --force-cleanup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd.Context(), cmd.OutOrStdout(), flags, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.commit, "commit", "", "commit identifying the submitted work (default: HEAD of the workspace)")
	cmd.Flags().BoolVar(&opts.forceCleanup, "force-cleanup", false, "remove the workspace even with uncommitted changes")
	root.AddCommand(cmd)
}

// submitView is the JSON shape of a submission.
type submitView struct {
	Issue             *domain.Issue       `json:"issue"`
	Session           *domain.WorkSession `json:"session"`
	TimeSpentSeconds  int64               `json:"time_spent_seconds"`
	WorkspaceRemoved  bool                `json:"workspace_removed"`
	WorkspaceRetained bool                `json:"workspace_retained"`
	Warning           string              `json:"warning,omitempty"`
}

func runSubmit(ctx context.Context, w io.Writer, flags *GlobalFlags, opts *submitOptions, ref string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	commit := opts.commit
	if commit == "" {
		commit = a.activeHead(ctx, ref)
	}

	res, err := a.service.SubmitWork(ctx, session.SubmitRequest{
		IssueRef:     ref,
		CommitRef:    commit,
		ForceCleanup: opts.forceCleanup,
	})
	if err != nil {
		return err
	}

	out := tui.NewOutput(w, flags.Output)
	if flags.Output == OutputJSON {
		view := submitView{
			Issue:             res.Issue,
			Session:           res.Session,
			TimeSpentSeconds:  int64(res.TimeSpent / time.Second),
			WorkspaceRemoved:  res.Cleanup != nil && res.Cleanup.Removed,
			WorkspaceRetained: res.WorkspaceRetained,
		}
		if res.CleanupWarning != nil {
			view.Warning = res.CleanupWarning.Error()
		}
		return out.JSON(view)
	}

	out.Success(fmt.Sprintf("Submitted %s for review after %s", res.Issue.Key, tui.FormatDuration(res.TimeSpent)))
	if res.Session.CommitRef != "" {
		out.Info("  commit: " + res.Session.CommitRef)
	}
	if res.Cleanup != nil && res.Cleanup.Removed {
		out.Info("  workspace removed: " + res.Session.WorkspacePath)
	}
	if res.CleanupWarning != nil {
		out.Warning("Workspace kept: " + res.CleanupWarning.Error())
		if _, action := berrors.Actionable(res.CleanupWarning); action != "" {
			out.Info("  " + action)
		}
	}
	return nil
}

// activeHead reads HEAD from the workspace of ref's active session. Any
// failure yields "" and the submission proceeds without a commit ref.
func (a *app) activeHead(ctx context.Context, ref string) string {
	_, sessions, err := a.service.Sessions(ctx, ref)
	if err != nil || len(sessions) == 0 {
		return ""
	}
	latest := sessions[len(sessions)-1]
	if !latest.Active() || !latest.HasWorkspace() {
		return ""
	}
	return a.headCommit(ctx, latest.WorkspacePath)
}
