package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/scan-router/internal/cascade"
	"github.com/spherical/scan-router/internal/qr"
	"github.com/spherical/scan-router/internal/routing"
)

func TestRootCommand_WrongArgumentCount(t *testing.T) {
	for _, args := range [][]string{{}, {"only-source"}, {"a", "b", "c", "d"}} {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(args)

		err := rootCmd.Execute()
		assert.Error(t, err, "args %v", args)
		assert.Contains(t, out.String(), "Usage:")
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Cleanup(func() {
		journalPath, logFormat, verbose = "", "", false
		for _, name := range []string{"page-format", "report-mode", "workers", "keep-sources"} {
			f := rootCmd.Flags().Lookup(name)
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})

	require.NoError(t, rootCmd.Flags().Set("page-format", "png"))
	require.NoError(t, rootCmd.Flags().Set("report-mode", "per_batch"))
	require.NoError(t, rootCmd.Flags().Set("workers", "4"))
	require.NoError(t, rootCmd.Flags().Set("keep-sources", "true"))
	journalPath = "runs.db"
	verbose = true

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, "png", cfg.Output.PageFormat)
	assert.Equal(t, "per_batch", cfg.Output.ReportMode)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.False(t, cfg.Output.MoveSources)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "runs.db", cfg.Journal.Path)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestDescribePipeline(t *testing.T) {
	router, err := routing.NewRouter(routing.DefaultRules(), routing.Options{})
	require.NoError(t, err)
	c, err := cascade.New(cascade.DefaultStrategies(), 0, qr.NewDecoder(), nil)
	require.NoError(t, err)

	rules, strategies := describePipeline(router, c)
	assert.Equal(t, 1, rules)
	assert.Equal(t, []string{"native", "scale", "resolution", "crop", "affine"}, strategies)
}
