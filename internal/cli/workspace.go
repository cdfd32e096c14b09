package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/berth/internal/constants"
	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/tui"
	"github.com/mrz1836/berth/internal/workspace"
)

func addWorkspaceCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Inspect and clean up issue workspaces",
		Long: `Commands for the per-issue git worktrees created by 'berth start'.

Workspaces are read from git on every call; nothing about them is cached.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	addWorkspaceListCmd(cmd, flags)
	addWorkspaceStatusCmd(cmd, flags)
	addWorkspaceCleanupCmd(cmd, flags)

	root.AddCommand(cmd)
}

func addWorkspaceListCmd(parent *cobra.Command, flags *GlobalFlags) {
	var (
		withStatus bool
		basePath   string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the shared checkout and every issue workspace",
		Long: `List all worktrees of the repository, the shared checkout first.

Examples:
  berth workspace list
  berth workspace list --status      # include uncommitted change counts
  berth workspace list --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkspaceList(cmd.Context(), cmd.OutOrStdout(), flags, basePath, withStatus)
		},
	}
	cmd.Flags().BoolVarP(&withStatus, "status", "s", false, "query each workspace's working-tree status")
	cmd.Flags().StringVar(&basePath, "base-path", "", "shared checkout (default: repository of the working directory)")
	parent.AddCommand(cmd)
}

func runWorkspaceList(ctx context.Context, w io.Writer, flags *GlobalFlags, basePath string, withStatus bool) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	base, err := a.sharedRoot(ctx, basePath, "")
	if err != nil {
		return err
	}

	list, err := a.service.ListWorkspaces(ctx, base, withStatus)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(list)
	}

	writeWorkspaceTable(w, list, withStatus)
	if len(list) <= 1 {
		_, _ = fmt.Fprintln(w, "\nNo issue workspaces. Run 'berth start <ISSUE-KEY>' to create one.")
	}
	return nil
}

func writeWorkspaceTable(w io.Writer, list []*domain.Workspace, withStatus bool) {
	columns := []tui.TableColumn{
		{Name: "ISSUE", Width: 12},
		{Name: "BRANCH", Width: 36},
	}
	if withStatus {
		columns = append(columns, tui.TableColumn{Name: "CHANGES", Width: 7, Align: tui.AlignRight})
	}
	columns = append(columns, tui.TableColumn{Name: "PATH"})

	styles := tui.NewTableStyles()
	table := tui.NewTable(w, columns)
	table.WriteHeader()
	for _, ws := range list {
		row := []string{workspaceLabel(ws), ws.Branch}
		if withStatus {
			row = append(row, changesCell(ws))
		}
		path := ws.Path
		if ws.Prunable {
			path = styles.Dim.Render(path + " (missing)")
		}
		table.WriteRow(append(row, path)...)
	}
}

func workspaceLabel(ws *domain.Workspace) string {
	switch {
	case ws.Primary:
		return constants.PrimaryMarker
	case ws.IssueKey != "":
		return ws.IssueKey
	default:
		return "-"
	}
}

func changesCell(ws *domain.Workspace) string {
	switch {
	case ws.Primary:
		return ""
	case ws.Status == nil:
		return "?"
	case !ws.Status.HasChanges:
		return "clean"
	default:
		return strconv.Itoa(ws.Status.UncommittedCount)
	}
}

func addWorkspaceStatusCmd(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "status [PATH]",
		Short: "Show the working-tree state of one workspace",
		Long: `Report branch and uncommitted changes for the workspace at PATH
(default: the working directory).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runWorkspaceStatus(cmd.Context(), cmd.OutOrStdout(), flags, path)
		},
	}
	parent.AddCommand(cmd)
}

func runWorkspaceStatus(ctx context.Context, w io.Writer, flags *GlobalFlags, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.service.GetWorkspaceStatus(ctx, abs)
	if err != nil {
		return err
	}

	out := tui.NewOutput(w, flags.Output)
	if flags.Output == OutputJSON {
		return out.JSON(st)
	}

	out.Info(fmt.Sprintf("path:   %s", st.Path))
	out.Info(fmt.Sprintf("branch: %s", st.Branch))
	if st.HasChanges {
		out.Warning(fmt.Sprintf("%d uncommitted path(s)", st.UncommittedCount))
	} else {
		out.Success("clean")
	}
	return nil
}

func addWorkspaceCleanupCmd(parent *cobra.Command, flags *GlobalFlags) {
	var force bool
	cmd := &cobra.Command{
		Use:   "cleanup <ISSUE-KEY>",
		Short: "Remove the workspace kept after a submission",
		Long: `Remove the workspace left behind when 'berth submit' found uncommitted
changes. Without --force the workspace is kept while it is still dirty.

Examples:
  berth workspace cleanup DEMO-1
  berth workspace cleanup DEMO-1 --force   # discard uncommitted changes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkspaceCleanup(cmd.Context(), cmd.OutOrStdout(), flags, args[0], force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "remove even with uncommitted changes")
	parent.AddCommand(cmd)
}

func runWorkspaceCleanup(ctx context.Context, w io.Writer, flags *GlobalFlags, ref string, force bool) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.service.CleanupWorkspace(ctx, ref, force)
	if err != nil {
		return err
	}

	out := tui.NewOutput(w, flags.Output)
	if flags.Output == OutputJSON {
		if err := out.JSON(res); err != nil {
			return err
		}
		if res.Refused {
			return fmt.Errorf("%w: %w", berrors.ErrWorkspaceDirty, berrors.ErrJSONErrorOutput)
		}
		return nil
	}

	return reportCleanup(out, ref, res)
}

func reportCleanup(out tui.Output, ref string, res *workspace.RemoveResult) error {
	switch {
	case res.Refused:
		return fmt.Errorf("%s has %d uncommitted path(s): %w", ref, res.UncommittedCount, berrors.ErrWorkspaceDirty)
	case res.Removed:
		out.Success("Removed workspace for " + ref)
	default:
		out.Info("Workspace for " + ref + " was already gone")
	}
	return nil
}
