package repository_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	domain "github.com/nvclab/student-sync/internal/domain/sync"
	"github.com/nvclab/student-sync/internal/infrastructure/db/models"
	"github.com/nvclab/student-sync/internal/infrastructure/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.CachedStudent{},
		&models.SyncPass{},
		&models.MappingChoice{},
	))
	return db
}

type stubTableClient struct {
	records []domain.Record
	lists   int
}

func (s *stubTableClient) ListRecords(ctx context.Context, table domain.TableRef) ([]domain.Record, error) {
	s.lists++
	return s.records, nil
}

func (s *stubTableClient) FindRecord(ctx context.Context, table domain.TableRef, field, value string) (*domain.Record, error) {
	return nil, domain.ErrRecordNotFound
}

func (s *stubTableClient) CreateRecord(ctx context.Context, table domain.TableRef, fields map[string]any) (string, error) {
	return "", nil
}

func (s *stubTableClient) UpdateRecord(ctx context.Context, table domain.TableRef, recordID string, fields map[string]any) error {
	return nil
}

func (s *stubTableClient) CreateLink(ctx context.Context, source domain.TableRef, sourceID string, target domain.TableRef, targetID, linkField string) error {
	return nil
}

func newCache(t *testing.T, db *gorm.DB, client domain.TableClient) *repository.StudentCacheRepository {
	t.Helper()
	table := domain.TableRef{AppToken: "app", TableID: "tbl_students"}
	return repository.NewStudentCacheRepository(db, client, table, "用户ID", slog.New(slog.DiscardHandler))
}

func TestCacheWarmsFromRemoteAndPersists(t *testing.T) {
	db := newTestDB(t)
	client := &stubTableClient{records: []domain.Record{
		{ID: "rec1", Fields: map[string]any{"用户ID": "u1", "昵称": "Alice"}},
		{ID: "rec2", Fields: map[string]any{"用户ID": "u2", "昵称": "Bob"}},
		{ID: "rec3", Fields: map[string]any{"昵称": "no id, skipped"}},
	}}

	cache := newCache(t, db, client)
	require.NoError(t, cache.Load(context.Background()))

	rec, ok := cache.Get("u1")
	require.True(t, ok)
	require.Equal(t, "rec1", rec.ID)

	_, ok = cache.Get("missing")
	require.False(t, ok)

	require.NoError(t, cache.Flush(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.CachedStudent{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestCachePrefersLocalStore(t *testing.T) {
	db := newTestDB(t)
	client := &stubTableClient{records: []domain.Record{
		{ID: "rec1", Fields: map[string]any{"用户ID": "u1", "昵称": "Alice"}},
	}}

	warm := newCache(t, db, client)
	require.NoError(t, warm.Load(context.Background()))
	require.NoError(t, warm.Flush(context.Background()))
	require.Equal(t, 1, client.lists)

	// A fresh process finds the persisted rows and skips the remote scan.
	cache := newCache(t, db, client)
	require.NoError(t, cache.Load(context.Background()))
	require.Equal(t, 1, client.lists)

	rec, ok := cache.Get("u1")
	require.True(t, ok)
	require.Equal(t, "Alice", rec.FieldString("昵称"))
}

func TestCacheLoadIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	client := &stubTableClient{records: []domain.Record{
		{ID: "rec1", Fields: map[string]any{"用户ID": "u1"}},
	}}

	cache := newCache(t, db, client)
	require.NoError(t, cache.Load(context.Background()))
	require.NoError(t, cache.Load(context.Background()))
	require.Equal(t, 1, client.lists)
}

func TestCachePutFlushUpserts(t *testing.T) {
	db := newTestDB(t)
	cache := newCache(t, db, &stubTableClient{})
	require.NoError(t, cache.Load(context.Background()))

	cache.Put("u1", domain.Record{ID: "rec1", Fields: map[string]any{"用户ID": "u1", "城市": "上海"}})
	require.NoError(t, cache.Flush(context.Background()))

	cache.Put("u1", domain.Record{ID: "rec1", Fields: map[string]any{"用户ID": "u1", "城市": "北京"}})
	require.NoError(t, cache.Flush(context.Background()))

	var rows []models.CachedStudent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Contains(t, rows[0].Fields, "北京")
}

func TestCacheGetReturnsIndependentCopy(t *testing.T) {
	db := newTestDB(t)
	cache := newCache(t, db, &stubTableClient{})
	require.NoError(t, cache.Load(context.Background()))

	cache.Put("u1", domain.Record{ID: "rec1", Fields: map[string]any{"昵称": "Alice"}})

	rec, ok := cache.Get("u1")
	require.True(t, ok)
	rec.Fields["昵称"] = "Mallory"

	again, _ := cache.Get("u1")
	require.Equal(t, "Alice", again.FieldString("昵称"))
}
