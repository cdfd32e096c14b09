package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/berth/internal/domain"
	"github.com/mrz1836/berth/internal/tui"
)

func addProjectCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects and their key prefixes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var name string
	create := &cobra.Command{
		Use:   "create <PREFIX>",
		Short: "Register a project; its issues are keyed PREFIX-1, PREFIX-2, ...",
		Long: `Register a project. The prefix is upper-cased and must start with a letter.

Examples:
  berth project create DEMO --name "Demo service"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectCreate(cmd.Context(), cmd.OutOrStdout(), flags, args[0], name)
		},
	}
	create.Flags().StringVarP(&name, "name", "n", "", "human-readable project name (defaults to the prefix)")

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProjectList(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.AddCommand(create, list)
	root.AddCommand(cmd)
}

func runProjectCreate(ctx context.Context, w io.Writer, flags *GlobalFlags, prefix, name string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	project, err := a.store.CreateProject(ctx, name, prefix)
	if err != nil {
		return err
	}
	a.logger.Info().Str("prefix", project.Prefix).Msg("project created")

	out := tui.NewOutput(w, flags.Output)
	if flags.Output == OutputJSON {
		return out.JSON(project)
	}
	out.Success(fmt.Sprintf("Created project %s (%s)", project.Prefix, project.Name))
	return nil
}

func runProjectList(ctx context.Context, w io.Writer, flags *GlobalFlags) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	projects, err := a.store.ListProjects(ctx)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		if projects == nil {
			projects = []*domain.Project{}
		}
		return tui.NewJSONOutput(w).JSON(projects)
	}
	if len(projects) == 0 {
		_, _ = fmt.Fprintln(w, "No projects. Create one with 'berth project create <PREFIX>'.")
		return nil
	}

	now := time.Now()
	table := tui.NewTable(w, []tui.TableColumn{
		{Name: "PREFIX", Width: 10},
		{Name: "ISSUES", Width: 8, Align: tui.AlignRight},
		{Name: "CREATED", Width: 16},
		{Name: "NAME"},
	})
	table.WriteHeader()
	for _, p := range projects {
		table.WriteRow(p.Prefix, strconv.Itoa(p.NextSeq-1), tui.RelativeTime(p.CreatedAt, now), p.Name)
	}
	return nil
}
