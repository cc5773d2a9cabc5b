package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/neurodesk/curly/pkg/config"
	"github.com/neurodesk/curly/pkg/curly"
	"github.com/neurodesk/curly/pkg/data"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	verbose    bool
	noEscape   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "curly",
		Short:         "Compile and render {{ ... }} templates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), opts.verbose || envBool("CURLY_VERBOSE"))
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultFile, "Path to curly configuration file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	root.PersistentFlags().BoolVar(&opts.noEscape, "no-escape", false, "Write interpolated values without HTML escaping")

	root.AddCommand(newRenderCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newAstCmd(opts))
	root.AddCommand(newVarsCmd(opts))
	return root
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// loadEngine loads the config named by --config. The default file is
// optional; an explicitly given one must exist.
func (o *rootOptions) loadEngine(cmd *cobra.Command) (*config.Engine, error) {
	optional := !cmd.Flags().Changed("config")
	cfg, err := config.Load(o.configPath, optional)
	if err != nil {
		return nil, err
	}
	if o.noEscape {
		cfg.Escape = false
	}
	slog.Debug("loaded config", "path", o.configPath, "filter_scripts", len(cfg.FilterScripts), "templates", len(cfg.Templates))
	return cfg.NewEngine()
}

// loadTemplate resolves a template reference; "-" reads standard input.
func loadTemplate(ctx context.Context, cmd *cobra.Command, e *config.Engine, ref string) (*curly.Template, error) {
	if ref != "-" {
		return e.Template(ctx, ref)
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("reading standard input: %w", err)
	}
	return e.Cache.Get(string(b))
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	var dataFiles, sets []string
	var output string
	cmd := &cobra.Command{
		Use:   "render [template]",
		Short: "Render a template file, URL, @name from the config, or - for stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.loadEngine(cmd)
			if err != nil {
				return err
			}
			ctx := curly.Context{}
			for _, path := range dataFiles {
				loaded, err := data.Load(path)
				if err != nil {
					return err
				}
				for k, v := range loaded {
					ctx[k] = v
				}
			}
			for _, s := range sets {
				if err := data.ParseSet(ctx, s); err != nil {
					return err
				}
			}

			tpl, err := loadTemplate(cmd.Context(), cmd, e, args[0])
			if err != nil {
				return err
			}
			out, err := tpl.Render(ctx)
			if err != nil {
				return fmt.Errorf("rendering %s: %w", args[0], err)
			}

			if output == "" || output == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), out)
				return err
			}
			if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			slog.Info("rendered template", "template", args[0], "output", output, "bytes", len(out))
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&dataFiles, "data", "d", nil, "YAML or JSON data file (repeatable, later files win)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a value as KEY=VALUE; dotted keys nest")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the result to a file instead of stdout")
	return cmd
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [templates...]",
		Short: "Compile templates and report syntax errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.loadEngine(cmd)
			if err != nil {
				return err
			}
			failed := 0
			for _, ref := range args {
				if _, err := loadTemplate(cmd.Context(), cmd, e, ref); err != nil {
					failed++
					var ce *curly.Error
					if errors.As(err, &ce) {
						fmt.Fprintln(cmd.ErrOrStderr(), ce.Snippet())
					} else {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", ref, err)
					}
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok  %s\n", ref)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d templates failed", failed, len(args))
			}
			return nil
		},
	}
}

func newAstCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ast [template]",
		Short: "Print the parsed template tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.loadEngine(cmd)
			if err != nil {
				return err
			}
			tpl, err := loadTemplate(cmd.Context(), cmd, e, args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), curly.Pretty(tpl.Nodes()))
			return err
		},
	}
}

func newVarsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vars [template]",
		Short: "List the context variables a template reads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.loadEngine(cmd)
			if err != nil {
				return err
			}
			tpl, err := loadTemplate(cmd.Context(), cmd, e, args[0])
			if err != nil {
				return err
			}
			for _, name := range tpl.Variables() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
