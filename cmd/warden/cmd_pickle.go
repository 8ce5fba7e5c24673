package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"textwarden/internal/pickle"
)

// pickleCmd decodes a binary clipboard container captured from a host
var pickleCmd = &cobra.Command{
	Use:   "pickle [file]",
	Short: "Decode a binary clipboard container",
	Long: `Decodes the length-prefixed clipboard container format and prints each
type/payload entry. Useful when debugging what a host actually put on the
clipboard during a replacement.`,
	Args: cobra.ExactArgs(1),
	RunE: runPickle,
}

func runPickle(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	container, err := pickle.Decode(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	for i, entry := range container.Entries {
		fmt.Printf("[%d] %-28s %q\n", i, entry.Type, entry.Value)
	}
	return nil
}
