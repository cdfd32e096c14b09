package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrz1836/berth/internal/constants"
	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/resolver"
	"github.com/mrz1836/berth/internal/tracker"
	"github.com/mrz1836/berth/internal/tui"
)

func addIssueCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Create and inspect issues",
		Long: `Issues are the units of work berth hands out. Each has an immutable key
<PREFIX>-<N> minted from its project's sequence; numbers are never reused.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	addIssueCreateCmd(cmd, flags)
	addIssueShowCmd(cmd, flags)
	addIssueListCmd(cmd, flags)
	addIssueSetStatusCmd(cmd, flags)
	addIssueSessionsCmd(cmd, flags)
	addIssueDeleteCmd(cmd, flags)

	root.AddCommand(cmd)
}

func addIssueCreateCmd(parent *cobra.Command, flags *GlobalFlags) {
	var project string
	cmd := &cobra.Command{
		Use:   "create <TITLE>",
		Short: "Create a ready issue in a project",
		Long: `Create an issue and print its key.

Examples:
  berth issue create --project DEMO "Fix login timeout"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueCreate(cmd.Context(), cmd.OutOrStdout(), flags, project, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project prefix")
	_ = cmd.MarkFlagRequired("project")
	parent.AddCommand(cmd)
}

func runIssueCreate(ctx context.Context, w io.Writer, flags *GlobalFlags, project, title string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	issue, err := a.store.CreateIssue(ctx, project, title)
	if err != nil {
		return err
	}
	a.logger.Info().Str("issue_key", issue.Key).Msg("issue created")

	out := tui.NewOutput(w, flags.Output)
	if flags.Output == OutputJSON {
		return out.JSON(issue)
	}
	out.Success(fmt.Sprintf("Created %s: %s", issue.Key, issue.Title))
	return nil
}

func addIssueShowCmd(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "show <ISSUE-KEY>",
		Short: "Show an issue and its current session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueShow(cmd.Context(), cmd.OutOrStdout(), flags, args[0])
		},
	}
	parent.AddCommand(cmd)
}

// issueView is the JSON shape of 'issue show'.
type issueView struct {
	*domain.Issue

	ActiveSession *domain.WorkSession `json:"active_session,omitempty"`
	Sessions      int                 `json:"session_count"`
}

func runIssueShow(ctx context.Context, w io.Writer, flags *GlobalFlags, ref string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	issue, sessions, err := a.service.Sessions(ctx, ref)
	if err != nil {
		return err
	}
	view := issueView{Issue: issue, Sessions: len(sessions)}
	if n := len(sessions); n > 0 && sessions[n-1].Active() {
		view.ActiveSession = sessions[n-1]
	}

	out := tui.NewOutput(w, flags.Output)
	if flags.Output == OutputJSON {
		return out.JSON(view)
	}

	now := time.Now()
	out.Info(fmt.Sprintf("%s  %s", issue.Key, issue.Title))
	out.Info(fmt.Sprintf("  status:   %s", tui.RenderIssueStatus(issue.Status)))
	out.Info(fmt.Sprintf("  id:       %s", issue.ID))
	out.Info(fmt.Sprintf("  created:  %s", tui.RelativeTime(issue.CreatedAt, now)))
	out.Info(fmt.Sprintf("  sessions: %d", view.Sessions))
	if s := view.ActiveSession; s != nil {
		out.Info(fmt.Sprintf("  active:   %s for %s", s.Operator, tui.FormatDuration(s.TimeSpent(now))))
		if s.HasWorkspace() {
			out.Info(fmt.Sprintf("  path:     %s", s.WorkspacePath))
		}
	}
	return nil
}

func addIssueListCmd(parent *cobra.Command, flags *GlobalFlags) {
	var project, status string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List issues",
		Long: `List issues, optionally narrowed to one project or status.

Examples:
  berth issue list
  berth issue list --project DEMO --status ready`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIssueList(cmd.Context(), cmd.OutOrStdout(), flags, project, status)
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "only issues of this project prefix")
	cmd.Flags().StringVarP(&status, "status", "s", "", "only issues in this status (ready, in_progress, review, done)")
	parent.AddCommand(cmd)
}

func runIssueList(ctx context.Context, w io.Writer, flags *GlobalFlags, project, status string) error {
	filter := tracker.IssueFilter{Prefix: project}
	if status != "" {
		st, err := parseIssueStatus(status)
		if err != nil {
			return err
		}
		filter.Status = st
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	issues, err := a.store.ListIssues(ctx, filter)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		if issues == nil {
			issues = []*domain.Issue{}
		}
		return tui.NewJSONOutput(w).JSON(issues)
	}
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(w, "No issues. Create one with 'berth issue create --project <PREFIX> <TITLE>'.")
		return nil
	}

	now := time.Now()
	table := tui.NewTable(w, []tui.TableColumn{
		{Name: "KEY", Width: 12},
		{Name: "STATUS", Width: 14},
		{Name: "UPDATED", Width: 16},
		{Name: "TITLE", Width: 48},
	})
	table.WriteHeader()
	for _, issue := range issues {
		table.WriteRow(issue.Key, tui.RenderIssueStatus(issue.Status), tui.RelativeTime(issue.UpdatedAt, now), issue.Title)
	}
	return nil
}

func addIssueSetStatusCmd(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "set-status <ISSUE-KEY> <STATUS>",
		Short: "Move a reviewed issue to done, or back to ready",
		Long: `Apply a workflow transition that is not owned by a work session:
  review -> done, review -> ready, done -> ready

in_progress and review are entered only through 'berth start' and 'berth submit'.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueSetStatus(cmd.Context(), cmd.OutOrStdout(), flags, args[0], args[1])
		},
	}
	parent.AddCommand(cmd)
}

func runIssueSetStatus(ctx context.Context, w io.Writer, flags *GlobalFlags, ref, status string) error {
	to, err := parseIssueStatus(status)
	if err != nil {
		return err
	}
	switch to {
	case constants.IssueStatusInProgress:
		return fmt.Errorf("use 'berth start' to begin work: %w", berrors.ErrInvalidTransition)
	case constants.IssueStatusReview:
		return fmt.Errorf("use 'berth submit' to hand work in: %w", berrors.ErrInvalidTransition)
	case constants.IssueStatusReady, constants.IssueStatusDone:
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	issue, err := resolver.New(a.store).ResolveIssue(ctx, ref)
	if err != nil {
		return err
	}
	from := issue.Status
	issue, err = a.store.SetIssueStatus(ctx, issue.ID, to)
	if err != nil {
		return err
	}
	a.logger.Info().Str("issue_key", issue.Key).Str("from", from.String()).Str("to", to.String()).Msg("issue status changed")

	out := tui.NewOutput(w, flags.Output)
	if flags.Output == OutputJSON {
		return out.JSON(issue)
	}
	out.Success(fmt.Sprintf("%s: %s -> %s", issue.Key, from, issue.Status))
	return nil
}

func addIssueSessionsCmd(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "sessions <ISSUE-KEY>",
		Short: "Show the work-session history of an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueSessions(cmd.Context(), cmd.OutOrStdout(), flags, args[0])
		},
	}
	parent.AddCommand(cmd)
}

func runIssueSessions(ctx context.Context, w io.Writer, flags *GlobalFlags, ref string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	issue, sessions, err := a.service.Sessions(ctx, ref)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		if sessions == nil {
			sessions = []*domain.WorkSession{}
		}
		return tui.NewJSONOutput(w).JSON(sessions)
	}
	if len(sessions) == 0 {
		_, _ = fmt.Fprintf(w, "%s has no sessions yet.\n", issue.Key)
		return nil
	}

	now := time.Now()
	table := tui.NewTable(w, []tui.TableColumn{
		{Name: "STARTED", Width: 20},
		{Name: "OPERATOR", Width: 16},
		{Name: "SPENT", Width: 8, Align: tui.AlignRight},
		{Name: "COMMIT", Width: 12},
		{Name: "WORKSPACE"},
	})
	table.WriteHeader()
	for _, s := range sessions {
		table.WriteRow(
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			s.Operator,
			tui.FormatDuration(s.TimeSpent(now)),
			sessionCommit(s),
			sessionWorkspace(s),
		)
	}
	return nil
}

func sessionCommit(s *domain.WorkSession) string {
	switch {
	case s.Active():
		return "(active)"
	case len(s.CommitRef) > 10:
		return s.CommitRef[:10]
	default:
		return s.CommitRef
	}
}

func sessionWorkspace(s *domain.WorkSession) string {
	switch {
	case !s.HasWorkspace():
		return "-"
	case s.WorkspaceRetained:
		return s.WorkspacePath + " (kept)"
	default:
		return s.WorkspacePath
	}
}

func addIssueDeleteCmd(parent *cobra.Command, flags *GlobalFlags) {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <ISSUE-KEY>",
		Short: "Delete an issue that was never worked on",
		Long: `Delete an issue that has no recorded work sessions. Issues that were worked
on keep their session history; move them to done instead. The key is
retired: the project's sequence never hands the number out again.

This cannot be undone. On a terminal you are asked to confirm; elsewhere
pass --yes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueDelete(cmd.Context(), cmd.OutOrStdout(), flags, args[0], yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	parent.AddCommand(cmd)
}

func runIssueDelete(ctx context.Context, w io.Writer, flags *GlobalFlags, ref string, yes bool) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	issue, err := resolver.New(a.store).ResolveIssue(ctx, ref)
	if err != nil {
		return err
	}
	if err := confirmDelete(issue, yes); err != nil {
		return err
	}
	if err := a.store.DeleteIssue(ctx, issue.ID); err != nil {
		return fmt.Errorf("%s: %w", issue.Key, err)
	}
	a.logger.Info().Str("issue_key", issue.Key).Msg("issue deleted")

	out := tui.NewOutput(w, flags.Output)
	if flags.Output == OutputJSON {
		return out.JSON(map[string]string{"deleted": issue.Key})
	}
	out.Success("Deleted " + issue.Key)
	return nil
}

// terminalCheck reports whether stdin is interactive. Tests override it.
//
//nolint:gochecknoglobals // test injection point
var terminalCheck = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirmPrompt asks a yes/no question. Tests override it.
//
//nolint:gochecknoglobals // test injection point
var confirmPrompt = func(title, description string) (bool, error) {
	var confirm bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes, delete").
				Negative("No, cancel").
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirm, nil
}

func confirmDelete(issue *domain.Issue, yes bool) error {
	if yes {
		return nil
	}
	if !terminalCheck() {
		return fmt.Errorf("delete %s: %w", issue.Key, berrors.ErrNonInteractiveMode)
	}
	ok, err := confirmPrompt(
		fmt.Sprintf("Delete %s (%s)?", issue.Key, issue.Title),
		"This cannot be undone.")
	if err != nil {
		return fmt.Errorf("failed to get confirmation: %w", err)
	}
	if !ok {
		return fmt.Errorf("delete %s: %w", issue.Key, berrors.ErrOperationCanceled)
	}
	return nil
}

func parseIssueStatus(s string) (constants.IssueStatus, error) {
	st := constants.IssueStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", berrors.ErrValueOutOfRange, s)
	}
	return st, nil
}
