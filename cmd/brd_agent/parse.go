package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonathan/brd-pipeline/internal/ingestion"
	"github.com/jonathan/brd-pipeline/internal/observability"
	"github.com/jonathan/brd-pipeline/internal/types"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse a BRD file into sections, tables and chunks",
	Long:  "Parse a plain text, Markdown or HTML business requirements document and print the structured document with its metadata as JSON.",
	RunE:  runParse,
}

var (
	parseInputFile  string
	parseOutputFile string
	parseVerbose    bool
)

func init() {
	parseCmd.Flags().StringVarP(&parseInputFile, "in", "i", "", "Path to the BRD file")
	parseCmd.Flags().StringVarP(&parseOutputFile, "out", "o", "", "Path to output JSON file (defaults to stdout)")
	parseCmd.Flags().BoolVarP(&parseVerbose, "verbose", "v", false, "Print a summary of the parsed document to stderr")
	_ = parseCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(parseCmd)
}

// parseOutput is the JSON written by the parse command.
type parseOutput struct {
	Metadata *ingestion.Metadata `json:"metadata"`
	Document *types.Document     `json:"document"`
}

func runParse(cmd *cobra.Command, _ []string) error {
	doc, meta, err := ingestion.ParseFile(parseInputFile)
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	if parseVerbose {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintDocument(meta, doc)
	}

	jsonBytes, err := json.MarshalIndent(parseOutput{Metadata: meta, Document: doc}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if parseOutputFile == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(jsonBytes))
		return err
	}

	if err := os.WriteFile(parseOutputFile, jsonBytes, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Parsed %d sections, %d tables, %d chunks\n", meta.Sections, meta.Tables, meta.Chunks)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", parseOutputFile)
	return nil
}
