package main

import (
	"fmt"

	"github.com/lewtec/dupclassifier/classifier"
	"github.com/spf13/cobra"
)

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare image1 image2",
	Short: "Print the mean difference of two images",
	Long: `Print the mean absolute per sample difference of two images of the same size
and whether they are within the threshold of each other.

Example:
  dupclassifier compare a.jpg b.png --threshold 15`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, _ := cmd.Flags().GetFloat64("threshold")

		a, err := classifier.DecodeFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to decode '%s': %w", args[0], err)
		}
		b, err := classifier.DecodeFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to decode '%s': %w", args[1], err)
		}

		diff, err := classifier.MeanAbsDifference(a, b)
		if err != nil {
			return err
		}
		within, err := classifier.MeetsDifferenceThreshold(a, b, threshold)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "difference\t%.4f\n", diff)
		fmt.Fprintf(out, "threshold\t%.4f\n", threshold)
		fmt.Fprintf(out, "within\t%t\n", within)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Float64P("threshold", "t", classifier.DefaultThreshold, "Threshold on the 0-255 scale")
}
