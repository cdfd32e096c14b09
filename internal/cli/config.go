package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/berth/internal/config"
	"github.com/mrz1836/berth/internal/constants"
	"github.com/mrz1836/berth/internal/tui"
)

func addConfigCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect berth configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration",
		Long: `Display the effective configuration and where each value comes from:
  env      BERTH_* environment variable
  project  .berth/config.yaml
  global   ~/.berth/config.yaml (or $BERTH_HOME/config.yaml)
  default  built-in value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.AddCommand(show)
	root.AddCommand(cmd)
}

// ConfigSource names the layer a configuration value came from.
type ConfigSource string

const (
	SourceDefault ConfigSource = "default"
	SourceGlobal  ConfigSource = "global"
	SourceProject ConfigSource = "project"
	SourceEnv     ConfigSource = "env"
)

// configEntry is one effective value with its source.
type configEntry struct {
	Key    string       `json:"key"`
	Value  any          `json:"value"`
	Source ConfigSource `json:"source"`
}

// configView is the JSON shape of 'config show'.
type configView struct {
	Values  []configEntry     `json:"values"`
	Derived map[string]string `json:"derived"`
}

func runConfigShow(ctx context.Context, w io.Writer, flags *GlobalFlags) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	view, err := buildConfigView(cfg)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return tui.NewJSONOutput(w).JSON(view)
	}
	writeConfigView(w, view)
	return nil
}

func buildConfigView(cfg *config.Config) (*configView, error) {
	var global map[string]any
	if path, err := config.GlobalConfigPath(); err == nil {
		global = readConfigFile(path)
	}
	project := readConfigFile(config.ProjectConfigPath())

	source := func(key string) ConfigSource {
		return determineSource(key, global, project)
	}
	entry := func(key string, value any) configEntry {
		return configEntry{Key: key, Value: value, Source: source(key)}
	}

	view := &configView{
		Values: []configEntry{
			entry("workspace.root", cfg.Workspace.Root),
			entry("workspace.branch_slug_max", cfg.Workspace.BranchSlugMax),
			entry("git.binary", cfg.Git.Binary),
			entry("git.timeout", cfg.Git.Timeout.String()),
			entry("tracker.db_path", cfg.Tracker.DBPath),
			entry("guard.lock_dir", cfg.Guard.LockDir),
			entry("operator", cfg.Operator),
		},
		Derived: map[string]string{},
	}

	dbPath, err := cfg.TrackerPath()
	if err != nil {
		return nil, err
	}
	lockDir, err := cfg.LockDir()
	if err != nil {
		return nil, err
	}
	view.Derived["tracker_path"] = dbPath
	view.Derived["lock_dir"] = lockDir
	if logPath, err := LogFilePath(); err == nil {
		view.Derived["log_file"] = logPath
	}
	return view, nil
}

// readConfigFile parses a YAML config file into a nested map. Missing or
// unreadable files yield nil.
func readConfigFile(path string) map[string]any {
	data, err := os.ReadFile(path) //nolint:gosec // config file path
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// hasKey reports whether the dotted key is set in a parsed config file.
func hasKey(values map[string]any, key string) bool {
	current := values
	parts := strings.Split(key, ".")
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return false
		}
		if i == len(parts)-1 {
			return true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return false
		}
		current = next
	}
	return false
}

func determineSource(key string, global, project map[string]any) ConfigSource {
	envKey := constants.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if os.Getenv(envKey) != "" {
		return SourceEnv
	}
	if hasKey(project, key) {
		return SourceProject
	}
	if hasKey(global, key) {
		return SourceGlobal
	}
	return SourceDefault
}

func writeConfigView(w io.Writer, view *configView) {
	styles := tui.NewTableStyles()
	key := lipgloss.NewStyle().Foreground(tui.ColorPrimary)
	sources := map[ConfigSource]lipgloss.Style{
		SourceEnv:     lipgloss.NewStyle().Foreground(tui.ColorError),
		SourceProject: lipgloss.NewStyle().Foreground(tui.ColorWarning),
		SourceGlobal:  lipgloss.NewStyle().Foreground(tui.ColorSuccess),
		SourceDefault: styles.Dim,
	}

	_, _ = fmt.Fprintln(w, styles.Header.Render("Effective berth configuration"))
	_, _ = fmt.Fprintln(w, styles.Dim.Render("Sources: env > project > global > default"))
	_, _ = fmt.Fprintln(w)

	for _, e := range view.Values {
		value := fmt.Sprint(e.Value)
		if value == "" {
			value = styles.Dim.Render("(unset)")
		}
		_, _ = fmt.Fprintf(w, "%s %s  %s\n",
			key.Render(tui.Cell(e.Key, 28, tui.AlignLeft)),
			value,
			sources[e.Source].Render("# "+string(e.Source)))
	}

	_, _ = fmt.Fprintln(w)
	for _, name := range []string{"tracker_path", "lock_dir", "log_file"} {
		if v, ok := view.Derived[name]; ok {
			_, _ = fmt.Fprintf(w, "%s %s\n", key.Render(tui.Cell(name, 28, tui.AlignLeft)), v)
		}
	}
}
