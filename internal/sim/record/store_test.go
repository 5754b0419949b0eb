package record

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationsDir = "../../../db/migrations"

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "episodes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.MigrateUp(migrationsDir))
	return store
}

func TestMigrateUp_Idempotent(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.MigrateUp(migrationsDir))
}

func TestEpisodeRoundTrip(t *testing.T) {
	store := openStore(t)

	id, err := store.BeginEpisode(42, "state")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordStep(Step{
			EpisodeID: id,
			Index:     i,
			Action:    []float64{0.1, 0.2, 0.3},
			Reward:    float64(i) * 0.5,
			Success:   i == 2,
			TipX:      float64(i) * 0.01,
			TipY:      -float64(i) * 0.01,
		}))
	}
	require.NoError(t, store.FinishEpisode(id, 3, true))

	episodes, err := store.Episodes()
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, id, episodes[0].ID)
	assert.Equal(t, int64(42), episodes[0].Seed)
	assert.Equal(t, "state", episodes[0].ObsMode)
	assert.Equal(t, 3, episodes[0].Steps)
	assert.True(t, episodes[0].Success)

	traj, err := store.Trajectory(id)
	require.NoError(t, err)
	require.Len(t, traj, 3)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, traj[1].Action)
	assert.Equal(t, 0.5, traj[1].Reward)
	assert.InDelta(t, 0.02, traj[2].TipX, 1e-12)
	assert.True(t, traj[2].Success)
}

func TestFinishEpisode_UnknownID(t *testing.T) {
	store := openStore(t)
	assert.Error(t, store.FinishEpisode("not-an-episode", 1, false))
}

func TestTrajectory_EmptyForUnknownEpisode(t *testing.T) {
	store := openStore(t)
	traj, err := store.Trajectory("missing")
	require.NoError(t, err)
	assert.Empty(t, traj)
}

func TestEpisodes_MultipleOrdering(t *testing.T) {
	store := openStore(t)

	id1, err := store.BeginEpisode(1, "state")
	require.NoError(t, err)
	id2, err := store.BeginEpisode(2, "rgbd")
	require.NoError(t, err)

	episodes, err := store.Episodes()
	require.NoError(t, err)
	require.Len(t, episodes, 2)

	seen := map[string]bool{}
	for _, ep := range episodes {
		seen[ep.ID] = true
	}
	assert.True(t, seen[id1] && seen[id2])
}
