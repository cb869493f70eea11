package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetflow/internal/core"
)

func newSchemasCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List the schema registry in declaration order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig(cmd.Context())
			reg, err := core.LoadRegistry(cfg.Paths.SchemaFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				type entry struct {
					TypeID       string   `json:"typeId"`
					Columns      []string `json:"columns"`
					NumericDates []string `json:"numericDates,omitempty"`
					SkipRows     []int    `json:"skipRows,omitempty"`
					HeaderRow    int      `json:"headerRow"`
				}
				entries := []entry{}
				for _, s := range reg.All() {
					entries = append(entries, entry{s.TypeID, s.Columns, s.NumericDates, s.SkipRows, s.HeaderRow})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tCOLUMNS\tDATES\tSKIP\tHEADER")
			for _, s := range reg.All() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
					s.TypeID,
					strings.Join(s.Columns, ", "),
					dashIfEmpty(strings.Join(s.NumericDates, ", ")),
					dashIfEmpty(strings.Trim(fmt.Sprint(s.SkipRows), "[]")),
					s.HeaderRow,
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, p := range reg.Problems() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", p)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the registry as JSON")
	return cmd
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
