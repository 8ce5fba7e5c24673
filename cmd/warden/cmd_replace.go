package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"textwarden/internal/clipboard"
	"textwarden/internal/engine"
	"textwarden/internal/replace"
	"textwarden/internal/textindex"
)

var (
	replaceFrom string
	replaceTo   string
)

// replaceCmd applies one correction through the clipboard pipeline
var replaceCmd = &cobra.Command{
	Use:   "replace",
	Short: "Replace text in the target element, preserving formatting",
	Long: `Finds the first occurrence of --from in the target element and replaces
it with --to through the selection and clipboard pipeline. The user's
clipboard contents are restored afterwards. Replacement is refused when
the element's text no longer contains --from where it was found.`,
	RunE: runReplace,
}

func init() {
	addTargetFlags(replaceCmd)
	replaceCmd.Flags().StringVar(&replaceFrom, "from", "", "exact text to replace")
	replaceCmd.Flags().StringVar(&replaceTo, "to", "", "replacement text")
	_ = replaceCmd.MarkFlagRequired("from")
	_ = replaceCmd.MarkFlagRequired("to")
}

func runReplace(cmd *cobra.Command, args []string) error {
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
	at := strings.Index(text, replaceFrom)
	if at < 0 {
		return fmt.Errorf("%q not found in element text", replaceFrom)
	}
	span, err := graphemeSpan(text, at, len(replaceFrom))
	if err != nil {
		return err
	}

	eng := engine.New(cfg, logs, clipboard.NewSystem())
	defer eng.Close()

	outcome, err := eng.AttemptReplacement(ctx, target, replace.Context{
		Surface:     target.Surface,
		Range:       span,
		ErrorText:   replaceFrom,
		Suggestion:  replaceTo,
		CurrentText: text,
	})
	if err != nil {
		return fmt.Errorf("replace: %w", err)
	}

	mode := "rich"
	if outcome.PlainText {
		mode = "plain-text"
	}
	fmt.Printf("replaced %q with %q (%s, %s)\n", replaceFrom, replaceTo, mode, outcome.Duration.Round(0))
	return nil
}

// graphemeSpan converts a byte offset and length into a grapheme range.
func graphemeSpan(text string, byteAt, byteLen int) (textindex.Range, error) {
	start := textindex.GraphemeCount(text[:byteAt])
	length := textindex.GraphemeCount(text[byteAt : byteAt+byteLen])
	r := textindex.NewRange(start, start+length)
	if !r.IsValid() {
		return textindex.Range{}, fmt.Errorf("cannot express %d+%d as a grapheme range", byteAt, byteLen)
	}
	return r, nil
}
