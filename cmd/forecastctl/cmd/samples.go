package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
)

func newSamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "samples",
		Short: "List the built-in sample sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, kind := range dataset.Kinds() {
				series, err := dataset.SampleSet(kind)
				if err != nil {
					return err
				}
				cmd.Printf("%-8s %d values, first %.6g, last %.6g\n",
					kind, len(series), series[0], series[len(series)-1])
			}
			return nil
		},
	}
}
