package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/statforge"
	"github.com/aretw0/statforge/internal/cli"
	"github.com/aretw0/statforge/internal/presentation/statblock"
	"github.com/aretw0/statforge/pkg/schema"
)

var effectCmd = &cobra.Command{
	Use:   "effect [scene...]",
	Short: "Decide which magical effect a scene produces",
	Long: `Asks the model what magical effect the described circumstances produce and prints it.
A scene without magic prints "there is no magical effect" and is not an error.
With --convert the effect is then converted into a stat block in a new session.
Without arguments the built-in elemental gems scene is used.`,
	Example: `  statforge effect "Five adventurers chant around a fire holding elemental gems"
  statforge effect --convert --max-revisions 0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		system, _ := cmd.Flags().GetString("system")
		convert, _ := cmd.Flags().GetBool("convert")
		maxRevisions, _ := cmd.Flags().GetInt("max-revisions")

		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}

		scene := strings.Join(args, " ")
		if scene == "" {
			scene = statforge.DefaultScene
		}

		app, err := buildApp(cmd, cli.Options{})
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

		if system == "" {
			system = app.Config.System
		}
		effect, err := app.Converter.CreateEffect(sc, statforge.EffectRequest{Scene: scene, System: system})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !effect.Occurred() {
			fmt.Fprintln(out, "there is no magical effect")
			return nil
		}
		if !convert {
			return statblock.Write(out, format, *effect.Record, schema.Effect)
		}

		if !cmd.Flags().Changed("max-revisions") {
			maxRevisions = app.Config.MaxRevisions
		}
		state, err := app.Converter.Convert(sc, statforge.Request{
			Description:  effect.Description(),
			System:       system,
			MaxRevisions: maxRevisions,
		})
		if err != nil {
			if state != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), cli.Summary(state))
				fmt.Fprintf(cmd.ErrOrStderr(), "resume with: statforge resume %s\n", state.SessionID)
			}
			return err
		}
		return cli.RenderState(out, state, app.Converter.Registry(), format)
	},
}

func init() {
	rootCmd.AddCommand(effectCmd)

	effectCmd.Flags().String("system", "", "Target game system (defaults to the configured system)")
	effectCmd.Flags().Bool("convert", false, "Convert the effect into a stat block")
	effectCmd.Flags().Int("max-revisions", 1, "Critique/revise rounds when converting (defaults to the configured value)")
	effectCmd.Flags().StringP("format", "f", "markdown", "Output format: markdown, html, json, text")
}
