package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrationNames(ms []Migration) []string {
	names := make([]string, 0, len(ms))
	for _, m := range ms {
		names = append(names, m.String())
	}
	return names
}

func TestMigrator_PostgresLifecycle(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	_, err := store.MigrateDown(ctx, 100)
	require.NoError(t, err)

	state, err := store.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.Version)
	assert.Zero(t, state.Applied)
	assert.Equal(t, []string{"0001_init", "0002_outbox"}, migrationNames(state.Pending))

	applied, err := store.MigrateUp(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init"}, migrationNames(applied))

	applied, err = store.MigrateUp(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_outbox"}, migrationNames(applied))

	applied, err = store.MigrateUp(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, applied)

	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.Version)
	assert.Equal(t, 2, state.Applied)
	assert.Empty(t, state.Pending)

	reverted, err := store.MigrateDown(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_outbox"}, migrationNames(reverted))

	reverted, err = store.MigrateDown(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init"}, migrationNames(reverted))

	reverted, err = store.MigrateDown(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, reverted)

	require.NoError(t, store.EnsureSchema(ctx))
}

func TestMigrator_NilStore(t *testing.T) {
	var store *Store
	ctx := context.Background()

	_, err := store.MigrateUp(ctx, 0)
	assert.Error(t, err)
	_, err = store.MigrateDown(ctx, 1)
	assert.Error(t, err)
	_, err = store.MigrationStatus(ctx)
	assert.Error(t, err)
}
