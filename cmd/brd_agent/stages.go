package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jonathan/brd-pipeline/internal/pipeline"
	"github.com/jonathan/brd-pipeline/internal/types"
	"github.com/spf13/cobra"
)

var stagesDisable []string

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List pipeline stages and their dependencies",
	Long:  "List the pipeline stages in order, marking which ones run for the given artifacts configuration.",
	RunE:  runStages,
}

func init() {
	stagesCmd.Flags().StringSliceVar(&stagesDisable, "disable", nil, "Optional stages to disable (e.g. data_model,code_generation)")
	rootCmd.AddCommand(stagesCmd)
}

// disableStages turns off the named optional stages.
func disableStages(cfg *types.ArtifactsConfig, names []string) error {
	for _, name := range names {
		stage, err := types.ParseStage(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		switch stage {
		case types.StageFunctionalTests:
			cfg.FunctionalTests = false
		case types.StageGherkinTests:
			cfg.GherkinTests = false
		case types.StageDataModel:
			cfg.DataModel = false
		case types.StageCodeGeneration:
			cfg.CodeGeneration = false
		default:
			return fmt.Errorf("stage %s is mandatory and cannot be disabled", stage)
		}
	}
	return nil
}

func runStages(cmd *cobra.Command, _ []string) error {
	cfg := types.DefaultArtifactsConfig()
	if err := disableStages(&cfg, stagesDisable); err != nil {
		return err
	}

	enabled := make(map[types.Stage]bool)
	for _, stage := range pipeline.EnabledStages(cfg) {
		enabled[stage] = true
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STAGE\tOPTIONAL\tENABLED\tDEPENDS ON")
	for _, stage := range types.CanonicalStages() {
		def := pipeline.StageRegistry[stage]
		deps := make([]string, 0, len(def.Dependencies)+len(def.Soft))
		for _, dep := range def.Dependencies {
			deps = append(deps, string(dep))
		}
		for _, dep := range def.Soft {
			deps = append(deps, string(dep)+" (if enabled)")
		}
		depText := strings.Join(deps, ", ")
		if depText == "" {
			depText = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%t\t%t\t%s\n", stage, def.Optional, enabled[stage], depText)
	}
	return tw.Flush()
}
