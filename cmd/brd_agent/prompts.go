package main

import (
	"fmt"

	"github.com/jonathan/brd-pipeline/internal/generation"
	"github.com/jonathan/brd-pipeline/internal/prompts"
	"github.com/spf13/cobra"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts [kind]",
	Short: "List the embedded generation prompts or print one template",
	Long:  "Without arguments, list the prompt keys in the embedded generation prompt file. With a generation kind (e.g. functional_tests), print that kind's template.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPrompts,
}

func init() {
	rootCmd.AddCommand(promptsCmd)
}

func runPrompts(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		keys, err := prompts.List(prompts.GenerationFile)
		if err != nil {
			return err
		}
		for _, key := range keys {
			_, _ = fmt.Fprintln(out, key)
		}
		return nil
	}

	kind, err := generation.ParseKind(args[0])
	if err != nil {
		return err
	}
	template, err := prompts.Get(prompts.GenerationFile, string(kind))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, template)
	return nil
}
