package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/alignment-qc/orchestrator"
	"github.com/maastricht-university/alignment-qc/store"
)

var batchBinds = []flagKey{
	{"audio", "paths.audio"},
	{"textgrids", "paths.textgrids"},
	{"outputs", "paths.outputs"},
	{"workers", "pipeline.workers"},
}

func addBatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("audio", "", "directory of <id>.wav recordings")
	f.String("textgrids", "", "directory of <id>.TextGrid alignments")
	f.String("outputs", "", "root directory for run outputs")
	f.Int("workers", 0, "recordings processed in parallel")
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Measure every recording and assess the alignment quality",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			binds := append(batchBinds,
				flagKey{"store", "store.dsn"},
				flagKey{"format", "report.format"},
				flagKey{"webhook", "report.webhook_url"},
			)
			if err := a.setup(cmd, binds...); err != nil {
				return err
			}

			var opts []orchestrator.Option
			if dsn := a.conf.Store.DSN; dsn != "" {
				st, err := store.Open(dsn)
				if err != nil {
					return err
				}
				defer st.Close()
				opts = append(opts, orchestrator.WithStore(st))
			}

			res, err := orchestrator.NewPipeline(a.conf, a.log, opts...).Run(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSummary(out, res.Summary)
			printReport(out, res.Report)
			printKV(out, "Run:", res.RunID)
			printKV(out, "Output:", filepath.Join(res.OutputDir, orchestrator.ReportFile(a.conf.Report.Format)))
			return nil
		},
	}
	addBatchFlags(cmd)
	cmd.Flags().String("store", "", "database DSN to save the run into")
	cmd.Flags().String("format", "", "report format: json or yaml")
	cmd.Flags().String("webhook", "", "dashboard URL receiving the report")
	return cmd
}

func newMeasureCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Extract phoneme and word measurements without assessing them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, batchBinds...); err != nil {
				return err
			}
			res, err := orchestrator.NewPipeline(a.conf, a.log).Measure(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSummary(out, res.Summary)
			if len(res.Skipped) > 0 {
				printKV(out, "Skipped recordings:", len(res.Skipped))
			}
			printKV(out, "Output:", res.OutputDir)
			if res.Processed == 0 {
				return fmt.Errorf("no recording could be measured")
			}
			return nil
		},
	}
	addBatchFlags(cmd)
	return cmd
}
