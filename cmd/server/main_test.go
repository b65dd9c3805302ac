package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/UkralStul/taskboard-comments/internal/comments"
	"github.com/UkralStul/taskboard-comments/internal/config"
	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/UkralStul/taskboard-comments/internal/storage/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillWithMockData(t *testing.T) {
	ctx := context.Background()
	store := inmemory.New()

	seeded, err := fillWithMockData(ctx, store)
	require.NoError(t, err)
	require.NotNil(t, seeded)

	svc := comments.NewService(store, comments.NewObserver(1))
	tree, err := svc.ListComments(ctx, seeded.Task.ID, seeded.Owner.ID)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	require.Len(t, tree[0].Replies, 1)
	assert.Equal(t, "Added the migration notes as well.", tree[0].Replies[0].Content)

	_, err = svc.ListComments(ctx, seeded.Task.ID, seeded.Visitor.ID)
	assert.ErrorIs(t, err, domain.ErrNotFoundOrForbidden)

	again, err := fillWithMockData(ctx, store)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestOpenStore_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.Type = config.StorageSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "taskboard.db")

	store, err := openStore(ctx, cfg)
	require.NoError(t, err)
	_, err = fillWithMockData(ctx, store)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = openStore(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()
	again, err := fillWithMockData(ctx, store)
	require.NoError(t, err)
	assert.Nil(t, again, "seed must not duplicate data in a persistent store")
}

func TestLoadConfig_StorageFlag(t *testing.T) {
	cfg, err := loadConfig(&rootOptions{storageType: config.StorageSQLite})
	require.NoError(t, err)
	assert.Equal(t, config.StorageSQLite, cfg.Storage.Type)

	_, err = loadConfig(&rootOptions{storageType: "mongo"})
	assert.Error(t, err)

	// postgres without a DSN fails validation
	t.Setenv("DATABASE_URL", "")
	_, err = loadConfig(&rootOptions{storageType: config.StoragePostgres})
	assert.Error(t, err)
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate", "seed"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("storage"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestRunMigrate_RejectsInMemory(t *testing.T) {
	t.Setenv("TASKBOARD_STORAGE", "")
	err := runMigrate(context.Background(), &rootOptions{storageType: config.StorageInMemory})
	assert.Error(t, err)
}
