package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/statforge"
	"github.com/aretw0/statforge/internal/cli"
	"github.com/aretw0/statforge/internal/presentation/statblock"
	"github.com/aretw0/statforge/internal/presentation/tui"
	"github.com/aretw0/statforge/pkg/domain"
)

var convertCmd = &cobra.Command{
	Use:   "convert [description...]",
	Short: "Convert a description into a stat block",
	Long: `Runs a full conversion session and prints the final stat block.
Without arguments the built-in flaming scimitar description is used.
An interrupted session keeps its checkpoint; continue it with 'statforge resume <session-id>'.`,
	Example: `  statforge convert "A metal scimitar that is engulfed by flame"
  statforge convert --type spell --max-revisions 2 "A bolt of frost"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		system, _ := cmd.Flags().GetString("system")
		maxRevisions, _ := cmd.Flags().GetInt("max-revisions")
		sessionID, _ := cmd.Flags().GetString("session")
		entityType, _ := cmd.Flags().GetString("type")

		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}

		description := strings.Join(args, " ")
		if description == "" {
			description = statforge.DefaultDescription
		}

		return runSession(cmd, format, func(app *cli.App, sc *cli.SignalContext) (*domain.WorkflowState, error) {
			if system == "" {
				system = app.Config.System
			}
			if !cmd.Flags().Changed("max-revisions") {
				maxRevisions = app.Config.MaxRevisions
			}
			return app.Converter.Convert(sc, statforge.Request{
				SessionID:    sessionID,
				Description:  description,
				System:       system,
				EntityType:   domain.EntityType(entityType),
				MaxRevisions: maxRevisions,
			})
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Continue an interrupted session from its last checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}
		return runSession(cmd, format, func(app *cli.App, sc *cli.SignalContext) (*domain.WorkflowState, error) {
			return app.Converter.Resume(sc, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(resumeCmd)

	convertCmd.Flags().String("system", "", "Target game system (defaults to the configured system)")
	convertCmd.Flags().Int("max-revisions", 1, "Critique/revise rounds after the first draft (defaults to the configured value)")
	convertCmd.Flags().String("session", "", "Session ID (generated when empty)")
	convertCmd.Flags().String("type", "", "Skip classification and use this entity type")

	for _, c := range []*cobra.Command{convertCmd, resumeCmd} {
		c.Flags().StringP("format", "f", "markdown", "Output format: markdown, html, json, text")
		c.Flags().BoolP("quiet", "q", false, "Suppress banner and progress output")
	}
}

func formatFlag(cmd *cobra.Command) (statblock.Format, error) {
	raw, _ := cmd.Flags().GetString("format")
	return statblock.ParseFormat(raw)
}

type sessionFunc func(app *cli.App, sc *cli.SignalContext) (*domain.WorkflowState, error)

// runSession wires the app, runs fn under a signal-aware context and renders the result.
func runSession(cmd *cobra.Command, format statblock.Format, fn sessionFunc) error {
	quiet, _ := cmd.Flags().GetBool("quiet")
	interactive := !quiet && statblock.IsTerminal(os.Stderr)

	var opts cli.Options
	if interactive {
		tui.PrintBanner(os.Stderr, statforge.Version)
		opts.Hooks = append(opts.Hooks, tui.ProgressHooks(os.Stderr))
	}

	app, err := buildApp(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(cmd.Context()); err != nil {
			app.Logger.Warn("Failed to release resources", "error", err)
		}
	}()

	sc := cli.NewSignalContext(cmd.Context())
	defer sc.Stop()

	state, err := fn(app, sc)
	if err != nil {
		if sig := sc.Signal(); sig != nil {
			err = fmt.Errorf("interrupted by %v: %w", sig, err)
		}
		if state != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), cli.Summary(state))
			fmt.Fprintf(cmd.ErrOrStderr(), "resume with: statforge resume %s\n", state.SessionID)
		}
		return err
	}

	if interactive {
		fmt.Fprintln(cmd.ErrOrStderr(), cli.Summary(state))
	}
	if err := cli.RenderState(cmd.OutOrStdout(), state, app.Converter.Registry(), format); err != nil {
		if errors.Is(err, cli.ErrNoDraft) {
			return fmt.Errorf("%s: %w", state.SessionID, err)
		}
		return err
	}
	return nil
}
