package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"textwarden/internal/analysis"
	"textwarden/internal/clipboard"
	"textwarden/internal/engine"
	"textwarden/internal/textindex"
)

var (
	resolveStart int
	resolveEnd   int
)

// resolveCmd maps one text range to its on-screen rectangle
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a text range to screen coordinates",
	Long: `Opens the target element, extracts its text, and walks the resolution
strategy chain for the given range. Offsets are grapheme clusters of the
extracted text. Prints the winning strategy, its confidence, and the
rectangle, or reports that every strategy declined.`,
	RunE: runResolve,
}

func init() {
	addTargetFlags(resolveCmd)
	resolveCmd.Flags().IntVar(&resolveStart, "start", 0, "range start (grapheme clusters)")
	resolveCmd.Flags().IntVar(&resolveEnd, "end", 0, "range end, exclusive (grapheme clusters)")
}

func runResolve(cmd *cobra.Command, args []string) error {
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

	span := analysis.Span{Range: textindex.NewRange(resolveStart, resolveEnd)}
	snap := analysis.NewSnapshot(text, []analysis.Span{span})

	eng := engine.New(cfg, logs, clipboard.NewMemory())
	defer eng.Close()

	bounds, err := eng.Resolve(ctx, target, snap, span)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", span.Range, err)
	}

	fmt.Printf("strategy:   %s\n", bounds.Strategy)
	fmt.Printf("confidence: %.2f\n", bounds.Confidence)
	fmt.Printf("rect:       x=%.1f y=%.1f w=%.1f h=%.1f\n",
		bounds.Rect.Origin.X, bounds.Rect.Origin.Y,
		bounds.Rect.Size.Width, bounds.Rect.Size.Height)
	return nil
}
