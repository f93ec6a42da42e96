package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marqueewinq/shooter/internal/draw"
)

// newAnnotateCmd creates the `annotate` command: re-render the labelled
// screenshot from an existing capture's artifacts.
func newAnnotateCmd() *cobra.Command {
	annotateCmd := &cobra.Command{
		Use:   "annotate <screenshot.png> <elements.json>",
		Short: "Draw element bounding boxes onto an existing screenshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			if err := draw.FromFiles(args[0], args[1], out); err != nil {
				return err
			}
			fmt.Printf("Labelled screenshot written to %s\n", out)
			return nil
		},
	}
	annotateCmd.Flags().String("out", "screenshot.labelled.png", "Output path for the labelled screenshot.")
	return annotateCmd
}
