package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/alignment-qc/measure"
	"github.com/maastricht-university/alignment-qc/orchestrator"
	"github.com/maastricht-university/alignment-qc/quality"
)

func newAssessCmd(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "assess <tables-dir>",
		Short: "Assess alignment quality from existing measurement tables",
		Long: "Reads " + measure.PhonemeTableFile + " and " + measure.WordTableFile +
			" from the directory and writes the quality report next to them.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, flagKey{"format", "report.format"}); err != nil {
				return err
			}
			dir := args[0]
			ds, err := measure.ReadTables(dir, measure.NewClassifier(a.conf.Measure.SilenceLabels))
			if err != nil {
				return err
			}

			rep := quality.NewAssessor(a.conf.Quality, a.log).
				Assess(quality.Input{Phonemes: ds.Phonemes, Words: ds.Words})

			if outPath == "" {
				outPath = filepath.Join(dir, orchestrator.ReportFile(a.conf.Report.Format))
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := rep.Encode(f, a.conf.Report.Format); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printReport(out, rep)
			printKV(out, "Output:", outPath)
			return nil
		},
	}
	cmd.Flags().String("format", "", "report format: json or yaml")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "report path (default <tables-dir>/quality_report.<format>)")
	return cmd
}
