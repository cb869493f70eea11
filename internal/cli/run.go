package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetflow/internal/app"
	"github.com/JonMunkholm/sheetflow/internal/core"
)

type runOptions struct {
	strict bool
	json   bool
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Convert every file in the input directory once",
		Long: `Run one batch: list the input directory, clean the output directory,
classify and convert each file, upload the results and record the run.

Rejected files stay in the input directory with their reason in the summary.`,
		Example: `  # Convert the spreadsheets in entrada_xlsx
  sheetflow run

  # Convert delimited files and fail the job on any rejection
  sheetflow run --mode csv --strict

  # Machine-readable result
  sheetflow run --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit with status 1 when any file is rejected")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the run result as JSON")

	return cmd
}

func runRun(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, getConfig(ctx))
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.RunOnce(core.ContextWithTrigger(ctx, core.TriggerCLI))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printSummary(out, a.InputDir(), res)
	}

	if opts.strict && !res.OK() {
		return ErrRejected
	}
	return nil
}

// printSummary writes the operator summary of one run.
func printSummary(w io.Writer, inputDir string, res app.RunResult) {
	if res.Skipped {
		fmt.Fprintf(w, "No input files in %s\n", inputDir)
		return
	}

	r := res.Report
	fmt.Fprintf(w, "Run %s (%s): %d files, %d converted, %d rejected\n",
		r.RunID, r.Mode, r.Total(), len(r.Succeeded), len(r.Rejected))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(r.Succeeded) > 0 {
		fmt.Fprintln(tw, "\nCONVERTED\tTYPE\tBY\tROWS\tOUTPUT")
		for _, f := range r.Succeeded {
			typeID := f.TypeID
			if typeID == "" {
				typeID = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", f.File, typeID, methodLabel(f.Method), f.Rows, f.Output)
		}
	}
	if len(r.Rejected) > 0 {
		fmt.Fprintln(tw, "\nREJECTED\tCODE\tREASON")
		for _, f := range r.Rejected {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", f.File, f.ErrorCode, f.Error)
		}
	}
	_ = tw.Flush()

	switch {
	case res.UploadError != "":
		fmt.Fprintf(w, "\nUpload failed: %s\n", res.UploadError)
	case res.Upload != nil && res.Upload.DryRun:
		fmt.Fprintln(w, "\nUpload disabled, nothing sent")
	case res.Upload != nil:
		fmt.Fprintf(w, "\nUploaded %d files", len(res.Upload.Uploaded))
		if n := len(res.Upload.Failed); n > 0 {
			fmt.Fprintf(w, ", %d failed:", n)
			for _, f := range res.Upload.Failed {
				fmt.Fprintf(w, "\n  %s: %s", f.File, f.Error)
			}
		}
		fmt.Fprintln(w)
	}
}

func methodLabel(m core.MatchMethod) string {
	if m == "" {
		return "-"
	}
	return string(m)
}
