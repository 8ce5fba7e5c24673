package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"textwarden/internal/clipboard"
	"textwarden/internal/engine"
)

// zonesCmd lists the exclusion zones detected in the target element
var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Detect exclusion zones in the target element",
	Long: `Runs exclusion detection over the target element's text and prints the
zones where suggestions would be suppressed: mentions, links, code blocks,
and quotes. Ranges are UTF-16 code units of the extracted text.`,
	RunE: runZones,
}

func init() {
	addTargetFlags(zonesCmd)
}

func runZones(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	target, cleanup, err := openTarget(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	text, err := target.Surface.QueryText(ctx, fullRange(ctx, target.Surface))
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	eng := engine.New(cfg, logs, clipboard.NewMemory())
	defer eng.Close()

	zones := eng.DetectZones(ctx, target, text)
	if len(zones) == 0 {
		fmt.Println("no exclusion zones")
		return nil
	}
	for _, z := range zones {
		fmt.Printf("%-8s %s\n", z.Kind, z.Range)
	}
	return nil
}
