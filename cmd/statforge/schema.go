package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/statforge/internal/presentation/statblock"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/parser"
	"github.com/aretw0/statforge/pkg/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [type]",
	Short: "Print the field definitions of an entity type",
	Long:  `Without arguments, lists the entity types and the schema each one uses.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			for _, t := range schema.Default.Types() {
				s, _ := schema.Default.SchemaFor(t)
				fmt.Fprintf(out, "%-13s %s\n", t, s.Name)
			}
			return nil
		}

		t, err := domain.ParseEntityType(args[0])
		if err != nil {
			return err
		}
		s, err := schema.Default.SchemaFor(t)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json-schema"); asJSON {
			data, err := json.MarshalIndent(schema.JSONSchema(s), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		for _, f := range s.Fields() {
			req := "optional"
			if f.Required {
				req = "required"
			}
			fmt.Fprintf(out, "%-20s %-9s %-8s %s\n", f.Name, f.Kind.Name(), req, f.Description)
		}
		return nil
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse flat-text documents into records",
	Long: `Reads 'key: value' documents separated by --document-separator-- and prints
the records that carry every required field. Use '-' to read stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawType, _ := cmd.Flags().GetString("type")
		t, err := domain.ParseEntityType(rawType)
		if err != nil {
			return err
		}
		s, err := schema.Default.SchemaFor(t)
		if err != nil {
			return err
		}
		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}

		var data []byte
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		records, warnings := parser.New().Parse(string(data), s, t)
		for _, w := range warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
		}

		out := cmd.OutOrStdout()
		switch format {
		case statblock.FormatJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		case statblock.FormatText:
			_, err := fmt.Fprint(out, parser.FormatAll(records, s))
			return err
		}
		for _, rec := range records {
			if err := statblock.Write(out, format, rec, s); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(parseCmd)

	schemaCmd.Flags().Bool("json-schema", false, "Print the JSON Schema sent to the model")
	parseCmd.Flags().StringP("type", "t", "", "Entity type of the documents")
	parseCmd.Flags().StringP("format", "f", "text", "Output format: markdown, html, json, text")
	_ = parseCmd.MarkFlagRequired("type")
}
