package main

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"blockrand/adapters/excel"
	"blockrand/app"
	"blockrand/internal/config"
	"blockrand/internal/container"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate_BalancedAndReproducible(t *testing.T) {
	sim := simulation{
		Subjects:   400,
		Seed:       11,
		FemaleRate: 0.5,
		Randomization: config.RandomizationConfig{
			BlockSize:    4,
			Seed:         11,
			BiasEnabled:  true,
			PriorityMode: "neutral",
		},
	}

	first, err := simulate(context.Background(), sim)
	require.NoError(t, err)
	second, err := simulate(context.Background(), sim)
	require.NoError(t, err)

	assert.Equal(t, 400, first.Total)
	assert.NotEmpty(t, first.Fingerprint)
	assert.Equal(t, first.Global, second.Global)
	assert.Equal(t, first.Strata, second.Strata)
	assert.LessOrEqual(t, first.MaxAbsDiff, 2.0)
	assert.LessOrEqual(t, first.Global.Diff(), 8)
}

func TestSimulate_RejectsBadSettings(t *testing.T) {
	_, err := simulate(context.Background(), simulation{
		Subjects:      10,
		Randomization: config.RandomizationConfig{BlockSize: 1, PriorityMode: "neutral"},
	})
	assert.Error(t, err)
}

func TestParseCovariates(t *testing.T) {
	got, err := parseCovariates([]string{"site=North", " smoker = Yes "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"site": "North", "smoker": "Yes"}, got)

	none, err := parseCovariates(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = parseCovariates([]string{"site"})
	assert.Error(t, err)
}

func TestExportHistory_WritesMirrorAndCSVCopy(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Randomization: config.RandomizationConfig{BlockSize: 4, Seed: 3, BiasEnabled: true, PriorityMode: "neutral"},
		Storage: config.StorageConfig{
			Backend:     config.BackendFile,
			HistoryCSV:  filepath.Join(dir, "assignments.csv"),
			HistoryXLSX: filepath.Join(dir, "assignments.xlsx"),
		},
		Server: config.ServerConfig{Port: "0", GinMode: "test"},
	}
	ctx := context.Background()
	c, err := container.New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Init(ctx))
	for i := 0; i < 3; i++ {
		_, err := c.Enrollment.Enroll(ctx, app.EnrollRequest{SubjectID: fmt.Sprintf("S%d", i), Gender: "Female", Age: 30})
		require.NoError(t, err)
	}

	copyPath := filepath.Join(dir, "backup.csv")
	written, err := exportHistory(ctx, c, copyPath)
	require.NoError(t, err)
	assert.Equal(t, []string{copyPath, cfg.Storage.HistoryXLSX}, written)

	copied, err := excel.NewDataReader(copyPath).ReadRecords()
	require.NoError(t, err)
	assert.Equal(t, c.Enrollment.History(), copied)

	_, err = exportHistory(ctx, c, filepath.Join(dir, "missing", "backup.csv"))
	assert.Error(t, err)
}
