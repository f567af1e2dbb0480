package container

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"blockrand/app"
	"blockrand/domain/allocation"
	"blockrand/internal/config"
	"blockrand/internal/errors"
	"blockrand/internal/randomization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	return &config.Config{
		Randomization: config.RandomizationConfig{
			BlockSize:    4,
			Seed:         99,
			BiasEnabled:  true,
			PriorityMode: "neutral",
		},
		Storage: config.StorageConfig{
			Backend:     config.BackendFile,
			HistoryCSV:  filepath.Join(dir, "assignments.csv"),
			HistoryXLSX: filepath.Join(dir, "assignments.xlsx"),
		},
		Server: config.ServerConfig{Port: "0", GinMode: "test"},
	}
}

func initContainer(t *testing.T, cfg *config.Config) *Container {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background()))
	return c
}

func TestContainer_FileBackendRestoresHistory(t *testing.T) {
	cfg := fileConfig(t, t.TempDir())
	ctx := context.Background()

	first := initContainer(t, cfg)
	var groups []allocation.Group
	for i := 0; i < 6; i++ {
		res, err := first.Enrollment.Enroll(ctx, app.EnrollRequest{SubjectID: fmt.Sprintf("S%d", i), Gender: "Female", Age: 60})
		require.NoError(t, err)
		groups = append(groups, res.Record.Group)
	}
	require.NoError(t, first.Shutdown(ctx))

	second := initContainer(t, cfg)
	records := second.Enrollment.History()
	require.Len(t, records, 6)
	for i, r := range records {
		assert.Equal(t, groups[i], r.Group)
	}
	assert.Equal(t, first.Engine.Tracker().Snapshot(), second.Engine.Tracker().Snapshot())
	assert.Equal(t, first.Engine.Tracker().Fingerprint(), second.Engine.Tracker().Fingerprint())
}

func TestContainer_SeedMakesAllocationReproducible(t *testing.T) {
	ctx := context.Background()
	draw := func() []allocation.Group {
		c := initContainer(t, fileConfig(t, t.TempDir()))
		var out []allocation.Group
		for i := 0; i < 10; i++ {
			res, err := c.Enrollment.Enroll(ctx, app.EnrollRequest{SubjectID: fmt.Sprintf("S%d", i), Gender: "Male", Age: 20 + i*5})
			require.NoError(t, err)
			out = append(out, res.Record.Group)
		}
		return out
	}

	assert.Equal(t, draw(), draw())
}

func TestContainer_ExtraStrata(t *testing.T) {
	cfg := fileConfig(t, t.TempDir())
	cfg.Randomization.ExtraStrata = []config.StratumSpec{{Name: "site", Levels: []string{"North", "South"}}}

	c := initContainer(t, cfg)
	assert.Len(t, c.Stratifier.Keys(), 8)

	res, err := c.Enrollment.Enroll(context.Background(), app.EnrollRequest{
		SubjectID:  "S1",
		Gender:     "Male",
		Age:        30,
		Covariates: map[string]string{"site": "south"},
	})
	require.NoError(t, err)
	assert.Equal(t, allocation.StrataKey("Male / <55 / South"), res.Record.Key)

	_, err = c.Enrollment.Enroll(context.Background(), app.EnrollRequest{SubjectID: "S2", Gender: "Male", Age: 30})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestEngineConfig(t *testing.T) {
	cfg, err := EngineConfig(config.RandomizationConfig{BlockSize: 6, PriorityMode: "weighted", BiasEnabled: false, Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.BlockSize)
	assert.Equal(t, randomization.PriorityWeighted, cfg.PriorityMode)
	assert.False(t, cfg.BiasEnabled)
	assert.Equal(t, int64(3), cfg.Seed)
	assert.Equal(t, allocation.DefaultGroups(), cfg.Groups)

	_, err = EngineConfig(config.RandomizationConfig{BlockSize: 1, PriorityMode: "neutral"})
	assert.Error(t, err)
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestContainer_OneShotProcessesKeepBlockBalance(t *testing.T) {
	cfg := fileConfig(t, t.TempDir())
	cfg.Randomization.Seed = 42
	ctx := context.Background()

	var counts allocation.ArmCounts
	for i := 0; i < 12; i++ {
		// a fresh container per subject, as the assign command does
		c := initContainer(t, cfg)
		res, err := c.Enrollment.Enroll(ctx, app.EnrollRequest{SubjectID: fmt.Sprintf("S%02d", i), Gender: "Male", Age: 40})
		require.NoError(t, err)
		require.NoError(t, c.Shutdown(ctx))

		counts.Add(res.Record.Group)
		assert.LessOrEqual(t, counts.Diff(), 2, "after %d subjects", i+1)
		if (i+1)%4 == 0 {
			assert.Equal(t, counts.A, counts.B, "after %d subjects", i+1)
		}
	}

	final := initContainer(t, cfg)
	assert.Equal(t, allocation.ArmCounts{A: 6, B: 6}, final.Engine.Tracker().Snapshot().Stratum("Male / <55"))
}
