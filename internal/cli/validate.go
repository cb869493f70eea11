package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetflow/internal/core"
	"github.com/JonMunkholm/sheetflow/internal/source"
)

func newValidateCommand() *cobra.Command {
	var typeID string

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check the header of a delimited file against a schema",
		Long: `Validate the header line of a delimited text file against one type of the
schema registry, using the input separator. Without --type the type is taken
from the file name prefix.`,
		Example: `  sheetflow validate entrada_csv/CLI_enero.csv
  sheetflow validate export.csv --type VTA`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd.Context())
			path := args[0]

			reg, err := core.LoadRegistry(cfg.Paths.SchemaFile)
			if err != nil {
				return err
			}
			if typeID == "" {
				id, ok := reg.LookupByFilenamePrefix(core.FileStem(filepath.Base(path)))
				if !ok {
					return fmt.Errorf("no type id prefixes %s, use --type", filepath.Base(path))
				}
				typeID = id
			}

			text, enc, err := source.ReadText(path)
			if err != nil {
				return &core.IOError{Op: "read", Path: path, Err: err}
			}

			v := core.NewColumnValidator(reg)
			if err := v.Validate(typeID, text, cfg.Format.InputSeparator); err != nil {
				msg := core.MapError(err)
				return fmt.Errorf("%s: %s (%s): %w", filepath.Base(path), msg.Message, msg.Code, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid %s (%s)\n", filepath.Base(path), typeID, enc)
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeID, "type", "t", "", "type id to validate against")
	return cmd
}
