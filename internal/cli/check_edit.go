package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/berth/internal/boundary"
	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/tui"
)

type checkEditOptions struct {
	hook     bool
	basePath string
}

func addCheckEditCommand(root *cobra.Command, flags *GlobalFlags) {
	opts := &checkEditOptions{}
	cmd := &cobra.Command{
		Use:   "check-edit [PATH]",
		Short: "Check whether a path may be edited",
		Long: `Decide whether PATH may be edited. Paths inside an issue workspace are
allowed; paths inside the shared checkout are denied; anything else is allowed.

With --hook the command reads an agent tool-call payload from stdin, e.g.
  {"cwd": "/repo", "tool_input": {"file_path": "src/main.go"}}
and exits 2 with the reason on stderr when the edit is denied, so it can be
installed as a pre-edit hook.

Examples:
  berth check-edit src/main.go
  berth check-edit --hook < payload.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.hook {
				return runCheckEditHook(cmd.Context(), cmd.InOrStdin(), cmd.ErrOrStderr(), opts)
			}
			if len(args) != 1 {
				return fmt.Errorf("path: %w", berrors.ErrEmptyValue)
			}
			return runCheckEdit(cmd.Context(), cmd.OutOrStdout(), flags, opts, args[0])
		},
	}
	cmd.Flags().BoolVar(&opts.hook, "hook", false, "read a tool-call payload from stdin and exit 2 on deny")
	cmd.Flags().StringVar(&opts.basePath, "base-path", "", "shared checkout (default: repository of the working directory)")
	root.AddCommand(cmd)
}

func runCheckEdit(ctx context.Context, w io.Writer, flags *GlobalFlags, opts *checkEditOptions, path string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	root, err := a.sharedRoot(ctx, opts.basePath, "")
	if err != nil {
		return err
	}

	d, err := a.service.CheckEditAllowed(ctx, root, "", path)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		if err := tui.NewJSONOutput(w).JSON(d); err != nil {
			return err
		}
		if !d.Allowed {
			return fmt.Errorf("%w: %w", berrors.ErrEditOutsideWorkspace, berrors.ErrJSONErrorOutput)
		}
		return nil
	}

	if !d.Allowed {
		return fmt.Errorf("%s: %w", d.Reason, berrors.ErrEditOutsideWorkspace)
	}
	msg := "allowed: " + d.Path
	if d.Workspace != "" {
		msg += " (workspace " + d.Workspace + ")"
	}
	tui.NewTTYOutput(w).Success(msg)
	return nil
}

// hookPayload is the subset of an agent tool-call payload the hook reads.
type hookPayload struct {
	Cwd       string `json:"cwd"`
	ToolInput struct {
		FilePath     string `json:"file_path"`
		NotebookPath string `json:"notebook_path"`
		Path         string `json:"path"`
	} `json:"tool_input"`
}

// target returns the path the tool call would write, or "".
func (p hookPayload) target() string {
	switch {
	case p.ToolInput.FilePath != "":
		return p.ToolInput.FilePath
	case p.ToolInput.NotebookPath != "":
		return p.ToolInput.NotebookPath
	default:
		return p.ToolInput.Path
	}
}

func parseHookPayload(r io.Reader) (hookPayload, error) {
	var p hookPayload
	if err := json.NewDecoder(r).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return p, fmt.Errorf("decode hook payload: %w", err)
	}
	return p, nil
}

// runCheckEditHook allows whenever it cannot tell: no target path, or no
// repository around the payload's working directory. Only a positive
// decision against the shared checkout blocks.
func runCheckEditHook(ctx context.Context, r io.Reader, stderr io.Writer, opts *checkEditOptions) error {
	payload, err := parseHookPayload(r)
	if err != nil {
		return err
	}
	path := payload.target()
	if path == "" {
		return nil
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	root, err := a.sharedRoot(ctx, opts.basePath, payload.Cwd)
	if err != nil {
		a.logger.Debug().Err(err).Msg("edit hook: no shared checkout, allowing")
		return nil
	}

	d, err := a.service.CheckEditAllowed(ctx, root, payload.Cwd, path)
	if err != nil {
		return err
	}
	return hookVerdict(stderr, d)
}

func hookVerdict(stderr io.Writer, d boundary.Decision) error {
	if d.Allowed {
		return nil
	}
	_, _ = fmt.Fprintln(stderr, d.Reason)
	return berrors.NewExitCode2Error(fmt.Errorf("%w: %w", berrors.ErrEditOutsideWorkspace, errAlreadyReported))
}
