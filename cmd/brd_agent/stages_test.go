package main

import (
	"strings"
	"testing"

	"github.com/jonathan/brd-pipeline/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagesCommand_ListsCanonicalOrder(t *testing.T) {
	t.Cleanup(func() { stagesDisable = nil })

	out, err := executeCommand(t, "stages")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1+len(types.CanonicalStages()))
	assert.True(t, strings.HasPrefix(lines[0], "STAGE"))
	for i, stage := range types.CanonicalStages() {
		assert.True(t, strings.HasPrefix(lines[i+1], string(stage)), "line %d: %s", i+1, lines[i+1])
	}
	assert.Contains(t, out, "data_model (if enabled)")
}

func TestStagesCommand_Disable(t *testing.T) {
	t.Cleanup(func() { stagesDisable = nil })

	out, err := executeCommand(t, "stages", "--disable", "data_model,code_generation")
	require.NoError(t, err)

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		switch types.Stage(fields[0]) {
		case types.StageDataModel, types.StageCodeGeneration:
			assert.Equal(t, "false", fields[2], line)
		case types.StageEpics, types.StageFunctionalTests:
			assert.Equal(t, "true", fields[2], line)
		}
	}
}

func TestDisableStages(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		want    types.ArtifactsConfig
		wantErr string
	}{
		{
			name:  "none",
			names: nil,
			want:  types.DefaultArtifactsConfig(),
		},
		{
			name:  "tests",
			names: []string{"functional_tests", " gherkin_tests"},
			want:  types.ArtifactsConfig{DataModel: true, CodeGeneration: true},
		},
		{
			name:    "mandatory",
			names:   []string{"epics"},
			wantErr: "mandatory",
		},
		{
			name:    "unknown",
			names:   []string{"deploy"},
			wantErr: "unknown stage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.DefaultArtifactsConfig()
			err := disableStages(&cfg, tt.names)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
		})
	}
}
