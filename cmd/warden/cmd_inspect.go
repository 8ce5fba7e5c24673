package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"textwarden/internal/clipboard"
	"textwarden/internal/engine"
)

// inspectCmd dumps everything the engine can see in the target element
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Dump the target element's text, children, and exclusion zones",
	RunE:  runInspect,
}

func init() {
	addTargetFlags(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
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
	fmt.Printf("text (%d bytes):\n%s\n\n", len(text), text)

	frame := target.Frame
	fmt.Printf("frame: x=%.1f y=%.1f w=%.1f h=%.1f\n\n",
		frame.Origin.X, frame.Origin.Y, frame.Size.Width, frame.Size.Height)

	children, err := target.Surface.QueryChildren(ctx)
	if err != nil {
		fmt.Printf("children: unavailable (%v)\n", err)
	} else {
		fmt.Printf("children (%d):\n", len(children))
		for i, c := range children {
			fmt.Printf("  [%d] %-10s x=%.1f y=%.1f w=%.1f h=%.1f\n",
				i, c.Role, c.Frame.Origin.X, c.Frame.Origin.Y,
				c.Frame.Size.Width, c.Frame.Size.Height)
		}
	}

	eng := engine.New(cfg, logs, clipboard.NewMemory())
	defer eng.Close()

	zones := eng.DetectZones(ctx, target, text)
	fmt.Printf("\nexclusion zones (%d):\n", len(zones))
	for _, z := range zones {
		fmt.Printf("  %-8s %s\n", z.Kind, z.Range)
	}
	return nil
}
