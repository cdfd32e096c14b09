package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/session"
	"github.com/mrz1836/berth/internal/tui"
)

type startOptions struct {
	operator string
	basePath string
}

func addStartCommand(root *cobra.Command, flags *GlobalFlags) {
	opts := &startOptions{}
	cmd := &cobra.Command{
		Use:   "start <ISSUE-KEY>",
		Short: "Start work on a ready issue in its own worktree",
		Long: `Move a ready issue to in_progress, record a work session, and create the
issue's workspace: a git worktree at <repo>-workspaces/<KEY> on the branch
<KEY>/<title-slug>.

If git fails the issue still moves to in_progress and a warning is shown;
the session is recorded without a workspace.

Examples:
  berth start DEMO-1
  berth start DEMO-1 --operator ci-bot
  berth start 0b5c1d1e-7f64-4a4e-9b7a-3c0f5c1a2b3d --base-path ~/src/repo`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), cmd.OutOrStdout(), flags, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.operator, "operator", "", "who is doing the work (default: config operator or OS user)")
	cmd.Flags().StringVar(&opts.basePath, "base-path", "", "shared checkout (default: repository of the working directory)")
	root.AddCommand(cmd)
}

// startView is the JSON shape of a started session.
type startView struct {
	Issue     *domain.Issue       `json:"issue"`
	Session   *domain.WorkSession `json:"session"`
	Workspace *domain.Workspace   `json:"workspace,omitempty"`
	Warning   string              `json:"warning,omitempty"`
}

func runStart(ctx context.Context, w io.Writer, flags *GlobalFlags, opts *startOptions, ref string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	base, err := a.sharedRoot(ctx, opts.basePath, "")
	if err != nil {
		return err
	}

	res, err := a.service.StartWork(ctx, session.StartRequest{
		IssueRef: ref,
		Operator: operatorName(opts.operator, a.cfg),
		BasePath: base,
	})
	if err != nil {
		return err
	}

	out := tui.NewOutput(w, flags.Output)
	if flags.Output == OutputJSON {
		view := startView{Issue: res.Issue, Session: res.Session, Workspace: res.Workspace}
		if res.WorkspaceWarning != nil {
			view.Warning = res.WorkspaceWarning.Error()
		}
		return out.JSON(view)
	}

	out.Success(fmt.Sprintf("Started %s: %s", res.Issue.Key, res.Issue.Title))
	out.Info(fmt.Sprintf("  status:   %s", tui.RenderIssueStatus(res.Issue.Status)))
	out.Info(fmt.Sprintf("  operator: %s", res.Session.Operator))
	if res.Workspace != nil {
		out.Info(fmt.Sprintf("  branch:   %s", res.Workspace.Branch))
		out.Info(fmt.Sprintf("  path:     %s", res.Workspace.Path))
		out.Info("")
		out.Info("cd " + res.Workspace.Path)
	}
	if res.WorkspaceWarning != nil {
		out.Warning("No workspace was created: " + res.WorkspaceWarning.Error())
		if _, action := berrors.Actionable(res.WorkspaceWarning); action != "" {
			out.Info("  " + action)
		}
	}
	return nil
}
