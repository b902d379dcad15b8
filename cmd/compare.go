package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/alignment-qc/clients"
	"github.com/maastricht-university/alignment-qc/quality"
	"github.com/maastricht-university/alignment-qc/store"
)

func newCompareCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <first> <second>",
		Short: "Compare two quality reports, e.g. from two acoustic models",
		Long: "Arguments are report files, or run ids when a store is configured " +
			"(--store or store.dsn).",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.setup(cmd, flagKey{"store", "store.dsn"}, flagKey{"webhook", "report.webhook_url"})
			if err != nil {
				return err
			}

			load := func(arg string) (*quality.Report, error) { return quality.ReadReport(arg) }
			if dsn := a.conf.Store.DSN; dsn != "" {
				st, err := store.Open(dsn)
				if err != nil {
					return err
				}
				defer st.Close()
				load = func(arg string) (*quality.Report, error) { return st.Report(cmd.Context(), arg) }
			}
			first, err := load(args[0])
			if err != nil {
				return err
			}
			second, err := load(args[1])
			if err != nil {
				return err
			}

			c := quality.Compare(first, second)
			printComparison(cmd.OutOrStdout(), args[0], args[1], c)

			if url := a.conf.Report.WebhookURL; url != "" {
				h := clients.NewHTTP(a.conf.Report.Timeout())
				req := clients.ComparisonReq{First: args[0], Second: args[1], Comparison: c}
				if _, err := h.PostComparison(cmd.Context(), url, req); err != nil {
					a.log.WithError(err).Warn("comparison delivery failed")
				}
			}
			return nil
		},
	}
	cmd.Flags().String("store", "", "database DSN holding the runs")
	cmd.Flags().String("webhook", "", "dashboard URL receiving the comparison")
	return cmd
}

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs saved in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, flagKey{"store", "store.dsn"}); err != nil {
				return err
			}
			if a.conf.Store.DSN == "" {
				return fmt.Errorf("no store configured (set --store or store.dsn)")
			}
			st, err := store.Open(a.conf.Store.DSN)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.Reports(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("%d stored runs", len(runs))))
			for _, r := range runs {
				fmt.Fprintf(out, "%s %s  %6.2f%%  %s\n",
					KeyStyle.Render(r.GeneratedAt.Format("2006-01-02 15:04:05")),
					r.ID,
					r.ErrorRate*100,
					verdictStyle(quality.Verdict(r.Verdict)).Render(r.Verdict))
			}
			return nil
		},
	}
	cmd.Flags().String("store", "", "database DSN holding the runs")
	return cmd
}
