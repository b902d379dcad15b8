package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/alignment-qc/clients"
)

func newAlignCmd(a *app) *cobra.Command {
	var validate bool
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Run the external forced aligner over the corpus",
		Long: "Runs `<aligner.command> align <corpus> <dictionary> <acoustic_model> <output>`. " +
			"The corpus is paths.audio and the output is paths.textgrids.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.setup(cmd,
				flagKey{"corpus", "paths.audio"},
				flagKey{"output", "paths.textgrids"},
				flagKey{"dictionary", "aligner.dictionary"},
				flagKey{"acoustic-model", "aligner.acoustic_model"},
			)
			if err != nil {
				return err
			}

			al := clients.NewAligner(a.conf.Aligner, clients.ExecRunner{}, a.log)
			if validate {
				if err := al.Validate(cmd.Context(), a.conf.Paths.Audio); err != nil {
					return err
				}
			}
			res, err := al.Align(cmd.Context(), a.conf.Paths.Audio, a.conf.Paths.TextGrids)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printKV(out, "TextGrids:", len(res.TextGrids))
			printKV(out, "Output:", res.OutputDir)
			printKV(out, "Elapsed:", res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.String("corpus", "", "corpus directory (audio and transcripts)")
	f.String("output", "", "directory receiving the TextGrids")
	f.String("dictionary", "", "pronunciation dictionary")
	f.String("acoustic-model", "", "acoustic model")
	f.BoolVar(&validate, "validate", false, "validate the corpus against the dictionary first")
	return cmd
}
