package instance

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wadesk/wadesk/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Tables...))
	return db
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	repo := NewGormRepository(newTestDB(t))
	ctx := context.Background()

	inst := &domain.Instance{Name: "acme", Company: "Acme", Status: domain.StatusDisconnected, Active: true}
	require.NoError(t, repo.Upsert(ctx, inst))
	require.NotZero(t, inst.ID)

	created, err := repo.GetByName(ctx, "acme")
	require.NoError(t, err)
	firstID := created.ID
	firstCreatedAt := created.CreatedAt

	// Full-field rewrite keyed by name keeps identity and creation time.
	update := &domain.Instance{
		Name:        "acme",
		Company:     "Acme",
		Status:      domain.StatusOpen,
		ProfileName: "Acme Support",
		Active:      true,
		UpdateSeq:   4,
	}
	require.NoError(t, repo.Upsert(ctx, update))

	got, err := repo.GetByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, firstID, got.ID)
	assert.WithinDuration(t, firstCreatedAt, got.CreatedAt, 0)
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.Equal(t, domain.StatusOpen, got.ConnectionState)
	assert.Equal(t, "Acme Support", got.ProfileName)
	assert.Equal(t, int64(4), got.UpdateSeq)
}

func TestGetByNameNotFound(t *testing.T) {
	repo := NewGormRepository(newTestDB(t))

	_, err := repo.GetByName(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExistsActiveIgnoresInactive(t *testing.T) {
	repo := NewGormRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Instance{Name: "live", Status: domain.StatusOpen, Active: true}))
	require.NoError(t, repo.Upsert(ctx, &domain.Instance{Name: "dead", Status: domain.StatusClose, Active: false}))

	exists, err := repo.ExistsActive(ctx, "live")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsActive(ctx, "dead")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListActiveAndPagedList(t *testing.T) {
	repo := NewGormRepository(newTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Upsert(ctx, &domain.Instance{Name: name, Status: domain.StatusDisconnected, Active: true}))
	}
	require.NoError(t, repo.Upsert(ctx, &domain.Instance{Name: "d", Status: domain.StatusDisconnected, Active: false}))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	items, total, err := repo.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, items, 2)
}

func TestDeleteByName(t *testing.T) {
	repo := NewGormRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Instance{Name: "gone", Status: domain.StatusOpen, Active: true}))
	require.NoError(t, repo.DeleteByName(ctx, "gone"))

	_, err := repo.GetByName(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActiveConfigEmptyWhenUnset(t *testing.T) {
	repo := NewGormRepository(newTestDB(t))

	cfg, err := repo.ActiveConfig(context.Background())
	require.NoError(t, err)
	assert.False(t, cfg.Configured())
}

func TestSaveConfigKeepsSingleRow(t *testing.T) {
	repo := NewGormRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SaveConfig(ctx, &domain.GatewayConfig{
		ServerURL: "https://gw.example.com",
		ApiKey:    "key-one",
	}))
	require.NoError(t, repo.SaveConfig(ctx, &domain.GatewayConfig{
		ServerURL: "https://gw2.example.com",
		ApiKey:    "key-two",
	}))

	cfg, err := repo.ActiveConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://gw2.example.com", cfg.ServerURL)
	assert.Equal(t, "key-two", cfg.ApiKey)
	assert.True(t, cfg.Configured())

	var count int64
	repo.db.Model(&domain.GatewayConfig{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
