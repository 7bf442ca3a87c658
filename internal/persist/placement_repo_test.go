package persist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gritengine/gritd/internal/config"
	"github.com/gritengine/gritd/internal/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Runs against a throwaway database named by GRITD_TEST_DSN.
func newTestDB(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GRITD_TEST_DSN")
	if dsn == "" {
		t.Skip("GRITD_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.Positive(t, s.SchemaVersion())
	return s
}

func TestPlacementRepo_ReplaceAndLoad(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlacementRepo(db)
	ctx := context.Background()

	in := []data.Placement{
		{Name: "lighthouse", Class: "Lighthouse", Pos: [3]float32{120, -40, 8}, Radius: 900, Far: "lighthouse_lod"},
		{Name: "lighthouse_lod", Class: "LighthouseLod", Pos: [3]float32{120, -40, 8}, Radius: 4000},
		{Class: "Rock", Pos: [3]float32{10, 12, 0}, Fields: map[string]any{"mesh": "rock_03.mesh", "scale": 1.5}},
		{Class: "Rock", Pos: [3]float32{11, 12, 0}},
	}
	require.NoError(t, repo.ReplaceAll(ctx, in))

	out, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	require.NoError(t, repo.ReplaceAll(ctx, in[:1]))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPlacementRepo_DuplicateNameRollsBack(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlacementRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceAll(ctx, []data.Placement{{Name: "keep", Class: "A"}}))
	err := repo.ReplaceAll(ctx, []data.Placement{{Name: "x", Class: "A"}, {Name: "x", Class: "B"}})
	require.Error(t, err)

	out, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "keep", out[0].Name)
}
